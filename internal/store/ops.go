package store

import (
	"errors"
	"time"

	redigo "github.com/gomodule/redigo/redis"
)

// ErrBlockingPopTimeout is returned by BlockingPop when the configured
// timeout elapses with nothing to pop.
var ErrBlockingPopTimeout = errors.New("store: blocking pop timed out")

// BlockingPop issues BLPOP key timeoutSeconds and returns the popped
// payload. timeoutSeconds of 0 blocks indefinitely, per Redis semantics.
func BlockingPop(conn redigo.Conn, key string, timeoutSeconds float64) (string, error) {
	reply, err := redigo.Values(conn.Do("BLPOP", key, timeoutSeconds))
	if errors.Is(err, redigo.ErrNil) {
		return "", ErrBlockingPopTimeout
	}
	if err != nil {
		return "", err
	}

	// BLPOP replies [key, value]; we only need the value.
	var payload string
	if _, err := redigo.Scan(reply, nil, &payload); err != nil {
		return "", err
	}
	return payload, nil
}

// IsRecentlyGot reports whether the dedup identifier is currently set.
func IsRecentlyGot(conn redigo.Conn, identifier string) (bool, error) {
	exists, err := redigo.String(conn.Do("GET", identifier))
	if errors.Is(err, redigo.ErrNil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return exists != "", nil
}

// UpdateRecentlyGot sets the dedup mark with a TTL, idempotently: SET
// identifier 1 NX EX ttl. It is not an error for the key to already
// exist — NX makes this a no-op refresh attempt in that case.
func UpdateRecentlyGot(conn redigo.Conn, identifier string, ttl time.Duration) error {
	_, err := conn.Do("SET", identifier, 1, "NX", "EX", int(ttl.Seconds()))
	if errors.Is(err, redigo.ErrNil) {
		return nil
	}
	return err
}

// PushResult writes the serialized response into the result hash,
// overwriting any previous value for the same task id.
func PushResult(conn redigo.Conn, hashKey, taskID, payload string) error {
	_, err := conn.Do("HSET", hashKey, taskID, payload)
	return err
}

// UpdateJobStatus appends the task id to the job's completion list.
// LPUSH is at-least-once by design: the job list may accumulate the
// same id more than once under retry.
func UpdateJobStatus(conn redigo.Conn, jobID, taskID string) error {
	_, err := conn.Do("LPUSH", jobID, taskID)
	return err
}
