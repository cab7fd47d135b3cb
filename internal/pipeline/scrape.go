package pipeline

import (
	"context"
	"net/http"
	"sync"

	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/scraper"
)

// skippedMarker is the stable error text recorded for an item dropped
// by the dedup window.
const skippedMarker = "skipped: recently fetched"

// startScrape runs the dispatcher: it reads ProcessItems, acquires a
// permit from the process-wide semaphore, and spawns a short-lived
// worker per item. On cancellation the dispatcher stops accepting new
// items and drains every spawned worker before returning.
func startScrape(ctx context.Context, wg *sync.WaitGroup, httpClient *http.Client, sem chan struct{}, scrape scraper.Func, rx <-chan model.ProcessItem, out chan<- model.ScrapeResult, logger logging.StructuredLogger) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(out)

		var inner sync.WaitGroup
		defer inner.Wait()

		for {
			select {
			case item, ok := <-rx:
				if !ok {
					return
				}

				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					return
				}

				inner.Add(1)
				go scrapeWorker(ctx, &inner, httpClient, scrape, sem, item, out, logger)

			case <-ctx.Done():
				return
			}
		}
	}()
}

func scrapeWorker(ctx context.Context, inner *sync.WaitGroup, httpClient *http.Client, scrape scraper.Func, sem chan struct{}, item model.ProcessItem, out chan<- model.ScrapeResult, logger logging.StructuredLogger) {
	defer inner.Done()
	defer func() { <-sem }()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("scrape.worker_panic", "panic", r, "id", item.ID)
		}
	}()

	result := scrapeOne(ctx, httpClient, scrape, item)

	select {
	case out <- result:
	case <-ctx.Done():
	}
}

func scrapeOne(ctx context.Context, httpClient *http.Client, scrape scraper.Func, item model.ProcessItem) model.ScrapeResult {
	var resp model.RedisResponse
	var statusURL *string

	if !item.NeedRequest {
		msg := skippedMarker
		resp = model.RedisResponse{Error: &msg, Index: item.Idx}
	} else {
		resp = scrape(ctx, httpClient, item.URL)
		resp.Index = item.Idx
		url := item.URL
		statusURL = &url
	}

	content, _ := model.MarshalResponse(resp)

	return model.ScrapeResult{
		ID:              item.ID,
		JobID:           item.JobID,
		StatusUpdateURL: statusURL,
		SendContent:     content,
	}
}
