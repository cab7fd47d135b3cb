// Package config loads process configuration from the environment: a
// .env file is loaded first (best effort), then every recognized key is
// parsed into a typed struct. A missing required key or a malformed key
// is a fatal startup error; STATS_LOG_INTERVAL is optional and defaults
// to 60 seconds.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every environment-sourced knob the process needs at
// startup.
type Config struct {
	RedisURL string `env:"REDIS_URL,required"`

	ChannelBuf      int     `env:"CHANNEL_BUF,required"`
	BlockingTime    float64 `env:"BLOCKING_TIME,required"`
	NetRequestRetry int     `env:"NET_REQUEST_RETRY,required"`
	StorageTime     int     `env:"STORAGE_TIME,required"`

	InitBackoffSeconds uint64 `env:"INIT_BACKOFF,required"`

	MaxPoolSize          int `env:"MAX_POOL_SIZE,required"`
	ConnectionTimeoutSec int `env:"CENNECTION_TIMEOUT,required"`

	SemaphoreSize int `env:"SEMAPHORE_SIZE,required"`

	MetaRequestQueueKeyword   string `env:"META_REQUEST_Q_KEYWORD,required"`
	DetailRequestQueueKeyword string `env:"DETAIL_REQUEST_Q_KEYWORD,required"`
	TagRequestQueueKeyword    string `env:"TAG_REQUEST_Q_KEYWORD,required"`
	IdxRequestQueueKeyword    string `env:"IDX_REQUEST_Q_KEYWORD,required"`

	ResultKeyword string `env:"RESULT_KEYWORD,required"`

	// StatsLogIntervalSeconds is how often the engine logs aggregate
	// per-path throughput counters.
	StatsLogIntervalSeconds int `env:"STATS_LOG_INTERVAL" envDefault:"60"`
}

// InitBackoff is the parsed Duration form of InitBackoffSeconds.
func (c Config) InitBackoff() time.Duration {
	return time.Duration(c.InitBackoffSeconds) * time.Second
}

// ConnectionTimeout is the parsed Duration form of ConnectionTimeoutSec.
func (c Config) ConnectionTimeout() time.Duration {
	return time.Duration(c.ConnectionTimeoutSec) * time.Second
}

// Load reads a .env file (if present) and then parses Config from the
// process environment. A missing .env is not an error; a missing or
// malformed required key is.
func Load() (Config, error) {
	// Best effort: local dev convenience only, never fatal if absent.
	_ = godotenv.Load()

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config: %w", err)
	}

	return cfg, nil
}
