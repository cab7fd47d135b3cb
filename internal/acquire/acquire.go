// Package acquire implements the "get a usable connection" layer on top
// of redigo. It abstracts two backing resources: a Pool (a *redis.Pool
// connection checked out per operation) and a Client (a single
// dedicated connection dialed directly and held for the lifetime of one
// long-running consumer). Both support a single attempt, a
// bounded-retry attempt with exponential-ish backoff, and an
// infinite-retry attempt for callers with no useful fallback.
package acquire

import (
	"errors"
	"time"

	redigo "github.com/gomodule/redigo/redis"

	"github.com/tatsuokamon/scrape-serv/internal/logging"
)

// ErrOverRetry is returned once AcquireWithRetry exhausts its attempts.
var ErrOverRetry = errors.New("acquire: over retry")

// BackoffNext computes the next backoff duration from the current one.
type BackoffNext func(time.Duration) time.Duration

// DefaultBackoffNext is the x1.5 policy used when none is supplied.
func DefaultBackoffNext(d time.Duration) time.Duration {
	return time.Duration(float64(d) * 1.5)
}

// Config carries the retry policy shared by PoolSource and ClientSource.
// It is safe to share a single Config across many sources.
type Config struct {
	InitBackoff time.Duration
	BackoffNext BackoffNext
	Logger      logging.StructuredLogger
}

func (c Config) logger() logging.StructuredLogger {
	if c.Logger == nil {
		return logging.Noop
	}
	return c.Logger
}

func (c Config) backoffNext() BackoffNext {
	if c.BackoffNext == nil {
		return DefaultBackoffNext
	}
	return c.BackoffNext
}

// PoolSource acquires short-lived connections checked out of a redigo
// pool, one per operation — used by the Prior and Post stages.
type PoolSource struct {
	Config
	Pool *redigo.Pool
}

// Acquire makes a single attempt to check out a pool connection.
func (s PoolSource) Acquire() (redigo.Conn, error) {
	conn := s.Pool.Get()
	if err := conn.Err(); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// AcquireWithRetry retries up to n times with backoff, failing with
// ErrOverRetry once attempts are exhausted.
func (s PoolSource) AcquireWithRetry(n int) (redigo.Conn, error) {
	backoff := s.InitBackoff
	for attempt := 0; attempt < n; attempt++ {
		conn, err := s.Acquire()
		if err == nil {
			return conn, nil
		}

		s.logger().Error("acquire.pool.retry", logging.ErrAttr(err))
		if attempt+1 >= n {
			break
		}
		time.Sleep(backoff)
		backoff = s.backoffNext()(backoff)
	}
	return nil, ErrOverRetry
}

// AcquireAnyway retries forever until a connection is obtained. Used by
// long-lived consumer loops that have no alternative to waiting.
func (s PoolSource) AcquireAnyway() redigo.Conn {
	backoff := s.InitBackoff
	for {
		conn, err := s.Acquire()
		if err == nil {
			return conn
		}

		s.logger().Error("acquire.pool.anyway", logging.ErrAttr(err))
		time.Sleep(backoff)
		backoff = s.backoffNext()(backoff)
	}
}

// ClientSource acquires a single dedicated connection by dialing
// directly, bypassing any pool. Meant to be held for the lifetime of a
// single long-running consumer (a blocking-pop loop) rather than shared.
type ClientSource struct {
	Config
	Dial func() (redigo.Conn, error)
}

// Acquire makes a single dial attempt.
func (s ClientSource) Acquire() (redigo.Conn, error) {
	return s.Dial()
}

// AcquireWithRetry retries up to n times with backoff.
func (s ClientSource) AcquireWithRetry(n int) (redigo.Conn, error) {
	backoff := s.InitBackoff
	for attempt := 0; attempt < n; attempt++ {
		conn, err := s.Acquire()
		if err == nil {
			return conn, nil
		}

		s.logger().Error("acquire.client.retry", logging.ErrAttr(err))
		if attempt+1 >= n {
			break
		}
		time.Sleep(backoff)
		backoff = s.backoffNext()(backoff)
	}
	return nil, ErrOverRetry
}

// AcquireAnyway retries forever until a connection is dialed.
func (s ClientSource) AcquireAnyway() redigo.Conn {
	backoff := s.InitBackoff
	for {
		conn, err := s.Acquire()
		if err == nil {
			return conn
		}

		s.logger().Error("acquire.client.anyway", logging.ErrAttr(err))
		time.Sleep(backoff)
		backoff = s.backoffNext()(backoff)
	}
}
