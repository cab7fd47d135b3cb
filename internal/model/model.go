// Package model holds the data types that flow through a path's four
// stages. It is intentionally dependency free so every other package
// (store, scraper, pipeline) can import it without risking an import
// cycle.
package model

import "encoding/json"

// RedisRequest is decoded from a queue payload. index is a signed
// integer; -1 is a reserved sentinel. force absent is equivalent to
// force=false.
type RedisRequest struct {
	URL   string `json:"url"`
	ID    string `json:"id"`
	JobID string `json:"job_id"`
	Index int    `json:"index"`
	Force bool   `json:"force"`
}

// Validate enforces the required, non-empty fields.
func (r RedisRequest) Validate() error {
	if r.URL == "" {
		return errEmptyField("url")
	}
	if r.ID == "" {
		return errEmptyField("id")
	}
	if r.JobID == "" {
		return errEmptyField("job_id")
	}
	return nil
}

type emptyFieldError string

func (e emptyFieldError) Error() string { return "model: empty required field: " + string(e) }

func errEmptyField(field string) error { return emptyFieldError(field) }

// ProcessItem is the Fetcher→Prior→Scrape internal representation.
type ProcessItem struct {
	ID          string
	JobID       string
	URL         string
	Idx         int
	NeedRequest bool
}

// ScrapeResult is the Scrape→Post internal representation.
type ScrapeResult struct {
	ID    string
	JobID string
	// StatusUpdateURL is set iff a fresh fetch actually occurred; nil
	// iff the item was skipped by dedup.
	StatusUpdateURL *string
	SendContent     string
}

// RedisResponse is the public, serialized contract written into the
// result hash. Exactly one of Error and Payload is set; Index is
// always set.
type RedisResponse struct {
	Error   *string `json:"error"`
	Payload *string `json:"payload"`
	Index   int     `json:"index"`
}

// MarshalResponse serializes r the way Post writes it into the store.
func MarshalResponse(r RedisResponse) (string, error) {
	b, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
