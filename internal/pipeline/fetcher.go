// Package pipeline wires the four per-path stages — Fetcher, Prior,
// Scrape, Post — into one running Path.
package pipeline

import (
	"context"
	"sync"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/store"
)

// FetchContract configures the Fetcher stage for one path.
type FetchContract struct {
	ChannelBuf   int
	ReqQKeyword  string
	BlockingTime float64
}

// startFetcher acquires the dedicated BLPOP connection once — a
// failure here is fatal to path startup — then spawns the long-lived
// fetch loop. The returned channel delivers raw queue payloads in BLPOP
// order and is closed once the loop exits.
//
// redigo's BLPOP is a synchronous blocking call with no context
// support, so cancellation is implemented the idiomatic Go way for
// blocking I/O: a second goroutine waits on ctx.Done() and closes the
// live connection out from under the blocked call, which is the
// closest equivalent to "select { BLPOP, token.cancelled() }".
func startFetcher(ctx context.Context, wg *sync.WaitGroup, client acquire.ClientSource, contract FetchContract, logger logging.StructuredLogger) (<-chan string, error) {
	conn, err := client.Acquire()
	if err != nil {
		return nil, err
	}

	out := make(chan string, contract.ChannelBuf)

	var mu sync.Mutex
	current := conn

	wg.Add(1)
	go func() {
		defer wg.Done()
		<-ctx.Done()
		mu.Lock()
		if current != nil {
			current.Close()
		}
		mu.Unlock()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		for {
			if ctx.Err() != nil {
				return
			}

			mu.Lock()
			c := current
			mu.Unlock()

			payload, err := store.BlockingPop(c, contract.ReqQKeyword, contract.BlockingTime)
			if err != nil {
				if ctx.Err() != nil {
					return
				}

				logger.Error("fetcher.blocking_pop", logging.ErrAttr(err), "queue", contract.ReqQKeyword)
				c.Close()
				next := client.AcquireAnyway()
				mu.Lock()
				current = next
				mu.Unlock()
				continue
			}

			select {
			case out <- payload:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
