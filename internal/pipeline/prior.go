package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	redigo "github.com/gomodule/redigo/redis"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/store"
)

// errStoreFailure marks a priorProcessOne failure that occurred talking
// to the store, as opposed to a decode/validation failure — only the
// former requires the caller to reacquire its connection.
type errStoreFailure struct{ err error }

func (e *errStoreFailure) Error() string { return e.err.Error() }
func (e *errStoreFailure) Unwrap() error { return e.err }

// startPrior decodes raw queue payloads into ProcessItems, checking the
// dedup window along the way. It holds one pool connection for the
// lifetime of the loop, reacquired via AcquireAnyway on the first store
// error.
func startPrior(ctx context.Context, wg *sync.WaitGroup, pool acquire.PoolSource, rx <-chan string, out chan<- model.ProcessItem, logger logging.StructuredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		conn := pool.AcquireAnyway()
		defer conn.Close()

		for {
			select {
			case received, ok := <-rx:
				if !ok {
					return
				}

				item, err := priorProcessOne(conn, received)
				if err != nil {
					var storeErr *errStoreFailure
					if errors.As(err, &storeErr) {
						logger.Error("prior.store", logging.ErrAttr(err))
						conn.Close()
						conn = pool.AcquireAnyway()
					} else {
						logger.Error("prior.decode", logging.ErrAttr(err))
					}
					continue
				}

				select {
				case out <- *item:
				case <-ctx.Done():
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// priorProcessOne decodes and dedup-checks one raw payload. A decode or
// validation error is returned plain (the item is dropped, connection
// untouched); a store error is wrapped in errStoreFailure (the item is
// dropped and the caller must reacquire its connection).
func priorProcessOne(conn redigo.Conn, received string) (*model.ProcessItem, error) {
	var req model.RedisRequest
	if err := json.Unmarshal([]byte(received), &req); err != nil {
		return nil, fmt.Errorf("prior: decode: %w", err)
	}
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("prior: validate: %w", err)
	}

	identifier := store.Identifier(req.URL)
	recently, err := store.IsRecentlyGot(conn, identifier)
	if err != nil {
		return nil, &errStoreFailure{fmt.Errorf("prior: is_recently_got: %w", err)}
	}

	return &model.ProcessItem{
		ID:          req.ID,
		JobID:       req.JobID,
		URL:         req.URL,
		Idx:         req.Index,
		NeedRequest: req.Force || !recently,
	}, nil
}
