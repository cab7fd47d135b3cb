package engine_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/tatsuokamon/scrape-serv/internal/engine"
	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/parser"
)

func echoParser(html string) (string, error) { return html, nil }

func TestEngineRunsMultiplePathsConcurrently(t *testing.T) {
	mr := miniredis.RunT(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("body"))
	}))
	defer srv.Close()

	e := engine.New(engine.Config{
		RedisURL:      "redis://" + mr.Addr(),
		MaxPoolSize:   5,
		DialTimeout:   time.Second,
		InitBackoff:   10 * time.Millisecond,
		ChannelBuf:    8,
		BlockingTime:  0.2,
		InnerBuf:      8,
		NetRetry:      2,
		StorageTime:   300 * time.Second,
		SemaphoreSize: 4,
		ResultKeyword: "result",
		Logger:        logging.Noop,
	})

	err := e.Start(context.Background(), []engine.PathSpec{
		{Name: "meta", ReqQKeyword: "meta_q", Parser: parser.FindMeta},
		{Name: "detail", ReqQKeyword: "detail_q", Parser: echoParser},
	})
	require.NoError(t, err)
	defer e.Stop()

	pushReq := func(queue, id string) {
		b, err := json.Marshal(model.RedisRequest{URL: srv.URL, ID: id, JobID: "j1", Index: 0, Force: true})
		require.NoError(t, err)
		mr.Lpush(queue, string(b))
	}

	pushReq("meta_q", "m1")
	pushReq("detail_q", "d1")

	require.Eventually(t, func() bool {
		v1, err1 := mr.HGet("result", "m1")
		v2, err2 := mr.HGet("result", "d1")
		return err1 == nil && v1 != "" && err2 == nil && v2 != ""
	}, 3*time.Second, 20*time.Millisecond)
}

func TestEngineStartFailureDoesNotLeakStartedPaths(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.Close()

	e := engine.New(engine.Config{
		RedisURL:      "redis://" + mr.Addr(),
		MaxPoolSize:   5,
		DialTimeout:   100 * time.Millisecond,
		InitBackoff:   10 * time.Millisecond,
		ChannelBuf:    8,
		InnerBuf:      8,
		NetRetry:      1,
		StorageTime:   time.Second,
		SemaphoreSize: 2,
		ResultKeyword: "result",
		Logger:        logging.Noop,
	})

	err := e.Start(context.Background(), []engine.PathSpec{
		{Name: "meta", ReqQKeyword: "meta_q", Parser: echoParser},
	})
	require.Error(t, err)

	// Stop must be safe to call again even though Start already called
	// it internally on failure.
	e.Stop()
}
