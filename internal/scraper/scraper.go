// Package scraper composes an HTTP GET-with-retry with a pluggable
// parser.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tatsuokamon/scrape-serv/internal/logging"
	"github.com/tatsuokamon/scrape-serv/internal/model"
	"github.com/tatsuokamon/scrape-serv/internal/parser"
)

// ErrOverRetry is returned once every HTTP attempt has failed.
var ErrOverRetry = errors.New("scraper: over retry")

// Func performs one scrape: GET the url, hand the body to the parser,
// and always return a RedisResponse — it never returns a Go error.
// Index is left at the caller's zero value; stages fill it in from the
// originating request.
type Func func(ctx context.Context, client *http.Client, url string) model.RedisResponse

// New builds a Func around parse and retry:
//  1. up to retry attempts of GET url;
//  2. a transport error logs and advances the attempt counter;
//  3. a successful fetch is handed to parse — a parser error is
//     returned immediately, with no further HTTP retries;
//  4. exhausting retry attempts yields ErrOverRetry.
func New(parse parser.Func, retry int, logger logging.StructuredLogger) Func {
	if logger == nil {
		logger = logging.Noop
	}

	fetch := func(ctx context.Context, client *http.Client, url string) (string, error) {
		for attempt := 0; attempt < retry; attempt++ {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
			if err != nil {
				return "", fmt.Errorf("scraper: build request: %w", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				logger.Error("scraper.get", logging.ErrAttr(err), "url", url, "attempt", attempt)
				continue
			}

			body, err := io.ReadAll(resp.Body)
			resp.Body.Close()
			if err != nil {
				logger.Error("scraper.read_body", logging.ErrAttr(err), "url", url)
				continue
			}

			// A body was obtained: parser errors are deterministic with
			// respect to the body, so no further HTTP retries happen.
			return parse(string(body))
		}
		return "", ErrOverRetry
	}

	return func(ctx context.Context, client *http.Client, url string) model.RedisResponse {
		payload, err := fetch(ctx, client, url)
		if err != nil {
			return model.RedisResponse{Error: errString(err)}
		}
		return model.RedisResponse{Payload: &payload}
	}
}

func errString(err error) *string {
	s := err.Error()
	return &s
}
