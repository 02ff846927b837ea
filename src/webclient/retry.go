package webclient

import (
	"context"
	"fmt"

	"github.com/stake-plus/geo-sink/src/retry"
)

type AttemptFunc func(ctx context.Context) (status int, body []byte, err error)

// StatusError reports a non-success HTTP status.
type StatusError struct {
	Status int
	URL    string
}

func (e *StatusError) Error() string   { return fmt.Sprintf("GET %s: status %d", e.URL, e.Status) }
func (e *StatusError) StatusCode() int { return e.Status }

// DoWithRetry retries the attempt function on transient errors (429/5xx) or
// transport errors. Other 4xx statuses fail immediately.
func DoWithRetry(ctx context.Context, policy retry.Policy, url string, fn AttemptFunc) ([]byte, error) {
	var out []byte
	err := retry.Do(ctx, policy, func(ctx context.Context) error {
		status, body, err := fn(ctx)
		if err != nil {
			return err
		}
		if status == 429 || status >= 500 {
			return &StatusError{Status: status, URL: url}
		}
		if status >= 400 {
			return retry.Permanent(&StatusError{Status: status, URL: url})
		}
		out = body
		return nil
	})
	return out, err
}
