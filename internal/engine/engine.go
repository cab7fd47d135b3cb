// Package engine constructs and supervises the named Paths (meta,
// detail, tag, max_idx) a process runs: it owns the resources shared
// across every path (the connection pool, the HTTP client, the scrape
// semaphore) and the periodic job that logs per-path throughput, built
// on github.com/robfig/cron/v3.
package engine

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	redigo "github.com/gomodule/redigo/redis"
	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/parser"
	"github.com/tatsuokamon/scrape-serv/internal/pipeline"
	"github.com/tatsuokamon/scrape-serv/internal/scraper"
)

// PathSpec names one path's queue and parser, the per-path inputs to
// Engine.Start. Each named path (meta, detail, tag, max_idx) is
// expressed as one PathSpec by the caller.
type PathSpec struct {
	Name        string
	ReqQKeyword string
	Parser      parser.Func
}

// Config holds every process-wide knob an Engine needs, independent of
// which paths it runs.
type Config struct {
	RedisURL      string
	MaxPoolSize   int
	DialTimeout   time.Duration
	InitBackoff   time.Duration
	ChannelBuf    int
	BlockingTime  float64
	InnerBuf      int
	NetRetry      int
	StorageTime   time.Duration
	SemaphoreSize int
	ResultKeyword string

	// StatsLogInterval is how often per-path throughput counters are
	// logged; zero disables the periodic job.
	StatsLogInterval time.Duration

	Logger logging.StructuredLogger
}

// Engine owns every resource shared across paths: the pool, the
// dedicated-connection dial factory, the HTTP client, the scrape
// semaphore, and the cron scheduler driving the stats job.
type Engine struct {
	cfg Config

	id     uuid.UUID
	pool   *redigo.Pool
	client acquire.ClientSource
	http   *http.Client
	sem    chan struct{}
	cron   *cron.Cron
	logger logging.StructuredLogger

	mu       sync.Mutex
	handles  []*pipeline.PathHandle
	counters map[string]*atomic.Int64
}

// New builds an Engine's shared resources. It does not start any path.
func New(cfg Config) *Engine {
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Noop
	}

	pool := &redigo.Pool{
		MaxActive:   cfg.MaxPoolSize,
		MaxIdle:     cfg.MaxPoolSize,
		IdleTimeout: 5 * time.Minute,
		Dial: func() (redigo.Conn, error) {
			return redigo.DialURL(cfg.RedisURL, redigo.DialConnectTimeout(cfg.DialTimeout))
		},
	}

	acqCfg := acquire.Config{InitBackoff: cfg.InitBackoff, Logger: logger}

	return &Engine{
		cfg:  cfg,
		id:   uuid.New(),
		pool: pool,
		client: acquire.ClientSource{
			Config: acqCfg,
			Dial: func() (redigo.Conn, error) {
				return redigo.DialURL(cfg.RedisURL, redigo.DialConnectTimeout(cfg.DialTimeout))
			},
		},
		http:     &http.Client{},
		sem:      make(chan struct{}, cfg.SemaphoreSize),
		cron:     cron.New(),
		logger:   logger,
		counters: make(map[string]*atomic.Int64),
	}
}

// poolSource shares the pool across Prior and Post of every path.
func (e *Engine) poolSource() acquire.PoolSource {
	return acquire.PoolSource{Config: acquire.Config{InitBackoff: e.cfg.InitBackoff, Logger: e.logger}, Pool: e.pool}
}

// Start constructs one Path per spec and begins the periodic stats job.
// Failure to start any one path stops every path already started and
// returns the error, so a partial startup never leaks running paths.
func (e *Engine) Start(ctx context.Context, specs []PathSpec) error {
	e.logger.Info("engine.start", "instance", e.id.String(), "paths", len(specs))

	for _, spec := range specs {
		counter := &atomic.Int64{}
		e.mu.Lock()
		e.counters[spec.Name] = counter
		e.mu.Unlock()

		scrape := countingScraper(scraper.New(spec.Parser, e.cfg.NetRetry, e.logger), counter)

		handle, err := pipeline.NewPath(ctx, pipeline.Config{
			Name:   spec.Name,
			Client: e.client,
			Fetch: pipeline.FetchContract{
				ChannelBuf:   e.cfg.ChannelBuf,
				ReqQKeyword:  spec.ReqQKeyword,
				BlockingTime: e.cfg.BlockingTime,
			},
			Pool:       e.poolSource(),
			HTTPClient: e.http,
			Scraper:    scrape,
			Semaphore:  e.sem,
			Process: pipeline.ProcessContract{
				ResultKeyword: e.cfg.ResultKeyword,
				StorageTime:   e.cfg.StorageTime,
				InnerBuf:      e.cfg.InnerBuf,
			},
			Logger: e.logger,
		})
		if err != nil {
			e.Stop()
			return fmt.Errorf("engine: start path %q: %w", spec.Name, err)
		}

		e.mu.Lock()
		e.handles = append(e.handles, handle)
		e.mu.Unlock()
	}

	if e.cfg.StatsLogInterval > 0 {
		spec := fmt.Sprintf("@every %s", e.cfg.StatsLogInterval)
		if _, err := e.cron.AddFunc(spec, e.logStats); err != nil {
			return fmt.Errorf("engine: schedule stats job: %w", err)
		}
		e.cron.Start()
	}

	return nil
}

// logStats logs each path's cumulative completed-item count. Run by
// cron on cfg.StatsLogInterval.
func (e *Engine) logStats() {
	e.mu.Lock()
	defer e.mu.Unlock()

	for name, counter := range e.counters {
		e.logger.Info("engine.stats", "path", name, "completed", counter.Load())
	}
}

// Wait blocks until ctx is cancelled, then stops every path.
func (e *Engine) Wait(ctx context.Context) {
	<-ctx.Done()
	e.Stop()
}

// Stop cancels and joins every started path and stops the cron
// scheduler. Safe to call more than once.
func (e *Engine) Stop() {
	e.cron.Stop()

	e.mu.Lock()
	handles := e.handles
	e.handles = nil
	e.mu.Unlock()

	for _, h := range handles {
		h.Stop()
	}
}

// countingScraper wraps a scraper.Func so every completed call
// (success or error) increments counter, feeding the stats job.
func countingScraper(inner scraper.Func, counter *atomic.Int64) scraper.Func {
	return func(ctx context.Context, client *http.Client, url string) model.RedisResponse {
		defer counter.Add(1)
		return inner(ctx, client, url)
	}
}
