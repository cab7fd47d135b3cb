package pipeline

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"sync"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/scraper"
)

// Config wires one Path's four stages.
type Config struct {
	Name string

	Client acquire.ClientSource
	Fetch  FetchContract

	Pool acquire.PoolSource

	HTTPClient *http.Client
	Scraper    scraper.Func
	Semaphore  chan struct{}
	Process    ProcessContract

	Logger logging.StructuredLogger
}

// PathHandle owns a path's root cancellation and the WaitGroup tracking
// every stage goroutine. Stop cancels and joins; Close cancels without
// joining. A best-effort finalizer is also registered as a leak
// backstop — callers must still call Stop or Close explicitly.
type PathHandle struct {
	Name string

	cancel context.CancelFunc
	wg     *sync.WaitGroup
}

// Stop cancels the path and blocks until every stage goroutine returns.
func (h *PathHandle) Stop() {
	h.cancel()
	h.wg.Wait()
}

// Close cancels the path without waiting for its goroutines to drain.
func (h *PathHandle) Close() {
	h.cancel()
}

// NewPath wires Fetcher, Prior, Scrape and Post for one path and
// returns its handle. Failure to start the Fetcher (the only stage with
// a fallible startup step — the initial BLPOP connection) cancels the
// partially-built path and returns the error; no goroutines leak.
func NewPath(ctx context.Context, cfg Config) (*PathHandle, error) {
	pathCtx, cancel := context.WithCancel(ctx)
	wg := &sync.WaitGroup{}

	logger := cfg.Logger
	if logger == nil {
		logger = logging.Noop
	}

	rawCh, err := startFetcher(pathCtx, wg, cfg.Client, cfg.Fetch, logger)
	if err != nil {
		cancel()
		wg.Wait()
		return nil, fmt.Errorf("pipeline: path %q: start fetcher: %w", cfg.Name, err)
	}

	processCh := make(chan model.ProcessItem, cfg.Process.InnerBuf)
	scrapeCh := make(chan model.ScrapeResult, cfg.Process.InnerBuf)

	startPrior(pathCtx, wg, cfg.Pool, rawCh, processCh, logger)
	startScrape(pathCtx, wg, cfg.HTTPClient, cfg.Semaphore, cfg.Scraper, processCh, scrapeCh, logger)
	startPost(pathCtx, wg, cfg.Pool, cfg.Process, scrapeCh, logger)

	handle := &PathHandle{Name: cfg.Name, cancel: cancel, wg: wg}
	runtime.SetFinalizer(handle, (*PathHandle).Close)
	return handle, nil
}
