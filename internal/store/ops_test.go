package store_test

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redigo "github.com/gomodule/redigo/redis"
	"github.com/stretchr/testify/require"

	"github.com/tatsuokamon/scrape-serv/internal/store"
)

func dial(t *testing.T, addr string) redigo.Conn {
	t.Helper()
	conn, err := redigo.Dial("tcp", addr)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestIdentifierIsStableForSameURL(t *testing.T) {
	a := store.Identifier("http://h/a")
	b := store.Identifier("http://h/a")
	c := store.Identifier("http://h/b")

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.Len(t, a, 64) // hex-encoded sha256
}

func TestIsRecentlyGotAndUpdate(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := dial(t, mr.Addr())

	id := store.Identifier("http://h/a")

	got, err := store.IsRecentlyGot(conn, id)
	require.NoError(t, err)
	require.False(t, got)

	require.NoError(t, store.UpdateRecentlyGot(conn, id, 300*time.Second))

	got, err = store.IsRecentlyGot(conn, id)
	require.NoError(t, err)
	require.True(t, got)

	mr.CheckGet(t, id, "1")
	mr.FastForward(301 * time.Second)

	got, err = store.IsRecentlyGot(conn, id)
	require.NoError(t, err)
	require.False(t, got)
}

func TestUpdateRecentlyGotIsIdempotentNX(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := dial(t, mr.Addr())
	id := store.Identifier("http://h/a")

	require.NoError(t, store.UpdateRecentlyGot(conn, id, 300*time.Second))
	mr.SetTTL(id, 10*time.Second)

	// NX means a second call must not clobber the existing TTL.
	require.NoError(t, store.UpdateRecentlyGot(conn, id, 300*time.Second))
	require.Equal(t, 10*time.Second, mr.TTL(id))
}

func TestPushResultAndJobStatus(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := dial(t, mr.Addr())

	require.NoError(t, store.PushResult(conn, "result", "t1", `{"index":0}`))

	val, err := mr.HGet("result", "t1")
	require.NoError(t, err)
	require.Equal(t, `{"index":0}`, val)

	require.NoError(t, store.UpdateJobStatus(conn, "j1", "t1"))
	require.NoError(t, store.UpdateJobStatus(conn, "j1", "t1")) // at-least-once

	list, err := mr.List("j1")
	require.NoError(t, err)
	require.Equal(t, []string{"t1", "t1"}, list)
}

func TestBlockingPopReturnsPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := dial(t, mr.Addr())

	mr.Lpush("queue", "payload-1")

	payload, err := store.BlockingPop(conn, "queue", 1)
	require.NoError(t, err)
	require.Equal(t, "payload-1", payload)
}

func TestBlockingPopTimesOut(t *testing.T) {
	mr := miniredis.RunT(t)
	conn := dial(t, mr.Addr())

	_, err := store.BlockingPop(conn, "empty-queue", 0.1)
	require.ErrorIs(t, err, store.ErrBlockingPopTimeout)
}
