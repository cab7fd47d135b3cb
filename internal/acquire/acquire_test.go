package acquire_test

import (
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redigo "github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"

	"github.com/tatsuokamon/scrape-serv/internal/acquire"
)

var errDial = errors.New("dial refused")

func newPool(addr string) *redigo.Pool {
	return &redigo.Pool{
		MaxIdle: 1,
		Dial: func() (redigo.Conn, error) {
			return redigo.Dial("tcp", addr)
		},
	}
}

func TestPoolSourceAcquireSuccess(t *testing.T) {
	mr := miniredis.RunT(t)
	src := acquire.PoolSource{
		Config: acquire.Config{InitBackoff: time.Millisecond},
		Pool:   newPool(mr.Addr()),
	}

	conn, err := src.Acquire()
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Do("PING")
	require.NoError(t, err)
}

func TestPoolSourceAcquireWithRetryExhausts(t *testing.T) {
	// No server listening at all: every attempt fails immediately.
	src := acquire.PoolSource{
		Config: acquire.Config{InitBackoff: time.Millisecond},
		Pool: &redigo.Pool{
			Dial: func() (redigo.Conn, error) {
				return redigo.Dial("tcp", "127.0.0.1:1")
			},
		},
	}

	_, err := src.AcquireWithRetry(3)
	require.ErrorIs(t, err, acquire.ErrOverRetry)
}

func TestClientSourceAcquireAnywayRecoversOnceServerComesUp(t *testing.T) {
	mr2, err := miniredis.Run()
	require.NoError(t, err)
	mr2.Close()

	attempts := 0
	src := acquire.ClientSource{
		Config: acquire.Config{InitBackoff: time.Millisecond},
		Dial: func() (redigo.Conn, error) {
			attempts++
			if attempts < 2 {
				return nil, errDial
			}
			return redigo.Dial("tcp", mr2.Addr())
		},
	}

	done := make(chan redigo.Conn, 1)
	go func() {
		done <- src.AcquireAnyway()
	}()

	// Bring the server back up shortly after the first failed attempt.
	time.Sleep(5 * time.Millisecond)
	require.NoError(t, mr2.Restart())

	select {
	case conn := <-done:
		require.NotNil(t, conn)
		conn.Close()
	case <-time.After(2 * time.Second):
		t.Fatal("AcquireAnyway did not recover in time")
	}
}
