package logging

import (
	"errors"
	"strings"
)

// HTTPStatusError is implemented by errors that carry an HTTP status code.
type HTTPStatusError interface {
	StatusCode() int
}

func IsRateLimit(err error) bool {
	if err == nil {
		return false
	}
	var se HTTPStatusError
	if errors.As(err, &se) && se.StatusCode() == 429 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "rate_limit") || strings.Contains(msg, "429")
}
