package pipeline

import (
	"context"
	"fmt"
	"sync"
	"time"

	redigo "github.com/gomodule/redigo/redis"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/store"
)

// ProcessContract configures the Scrape and Post stages for one path.
type ProcessContract struct {
	ResultKeyword string
	StorageTime   time.Duration
	InnerBuf      int
}

// startPost writes ScrapeResults back to the store. It holds one pool
// connection for the lifetime of the loop, reacquired via AcquireAnyway
// on the first store error.
func startPost(ctx context.Context, wg *sync.WaitGroup, pool acquire.PoolSource, contract ProcessContract, rx <-chan model.ScrapeResult, logger logging.StructuredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		conn := pool.AcquireAnyway()
		defer conn.Close()

		for {
			select {
			case result, ok := <-rx:
				if !ok {
					return
				}

				if err := postOne(conn, result, contract); err != nil {
					logger.Error("post.process", logging.ErrAttr(err), "id", result.ID)
					conn.Close()
					conn = pool.AcquireAnyway()
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// postOne writes the result hash entry and job-status append
// unconditionally, then sets the dedup mark iff a fresh fetch actually
// occurred (StatusUpdateURL != nil). The mark is written with SET NX, so
// a mark that already exists keeps its original TTL.
func postOne(conn redigo.Conn, result model.ScrapeResult, contract ProcessContract) error {
	if err := store.PushResult(conn, contract.ResultKeyword, result.ID, result.SendContent); err != nil {
		return fmt.Errorf("post: push_result: %w", err)
	}
	if err := store.UpdateJobStatus(conn, result.JobID, result.ID); err != nil {
		return fmt.Errorf("post: update_job_status: %w", err)
	}
	if result.StatusUpdateURL == nil {
		return nil
	}

	identifier := store.Identifier(*result.StatusUpdateURL)
	if err := store.UpdateRecentlyGot(conn, identifier, contract.StorageTime); err != nil {
		return fmt.Errorf("post: update_recently_got: %w", err)
	}
	return nil
}
