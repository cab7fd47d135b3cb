// Command scrapeserv is the process entrypoint: load config, build the
// four named scrapers (meta/detail/tag/max_idx) around the parser FFI
// entries, start the engine's four paths, and block until a
// termination signal drains them.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tatsuokamon/scrape-serv/internal/config"
	"github.com/tatsuokamon/scrape-serv/internal/engine"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/parser"
)

func main() {
	slogger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	logger := logging.FromSlog(slogger)

	cfg, err := config.Load()
	if err != nil {
		slogger.Error("scrapeserv: config load failed", logging.ErrAttr(err))
		os.Exit(1)
	}

	e := engine.New(engine.Config{
		RedisURL:         cfg.RedisURL,
		MaxPoolSize:      cfg.MaxPoolSize,
		DialTimeout:      cfg.ConnectionTimeout(),
		InitBackoff:      cfg.InitBackoff(),
		ChannelBuf:       cfg.ChannelBuf,
		BlockingTime:     cfg.BlockingTime,
		InnerBuf:         cfg.SemaphoreSize,
		NetRetry:         cfg.NetRequestRetry,
		StorageTime:      time.Duration(cfg.StorageTime) * time.Second,
		SemaphoreSize:    cfg.SemaphoreSize,
		ResultKeyword:    cfg.ResultKeyword,
		StatsLogInterval: time.Duration(cfg.StatsLogIntervalSeconds) * time.Second,
		Logger:           logger,
	})

	specs := []engine.PathSpec{
		{Name: "meta", ReqQKeyword: cfg.MetaRequestQueueKeyword, Parser: parser.FindMeta},
		{Name: "detail", ReqQKeyword: cfg.DetailRequestQueueKeyword, Parser: parser.FindDetail},
		{Name: "tag", ReqQKeyword: cfg.TagRequestQueueKeyword, Parser: parser.UpdateTag},
		{Name: "max_idx", ReqQKeyword: cfg.IdxRequestQueueKeyword, Parser: parser.MaxIdxFinder},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := e.Start(ctx, specs); err != nil {
		slogger.Error("scrapeserv: engine start failed", logging.ErrAttr(err))
		os.Exit(1)
	}

	logger.Info("scrapeserv: running", "paths", len(specs))
	e.Wait(ctx)
	logger.Info("scrapeserv: stopped")
}
