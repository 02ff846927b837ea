package ipfs

import (
	"fmt"
	"time"
)

// UnableToParseEncodingError reports an inline payload or CID that does not decode.
type UnableToParseEncodingError struct {
	URI string
	Err error
}

func (e *UnableToParseEncodingError) Error() string {
	return fmt.Sprintf("unable to decode %s: %v", e.URI, e.Err)
}

func (e *UnableToParseEncodingError) Unwrap() error { return e.Err }

// FetchFailedError reports a gateway fetch that failed after retries.
type FetchFailedError struct {
	URI string
	Err error
}

func (e *FetchFailedError) Error() string {
	return fmt.Sprintf("failed fetching %s: %v", e.URI, e.Err)
}

func (e *FetchFailedError) Unwrap() error { return e.Err }

type UnableToParseJsonError struct {
	URI string
	Err error
}

func (e *UnableToParseJsonError) Error() string {
	return fmt.Sprintf("unable to parse json from %s: %v", e.URI, e.Err)
}

func (e *UnableToParseJsonError) Unwrap() error { return e.Err }

// TimeoutError reports a fetch that did not finish within the overall bound.
type TimeoutError struct {
	URI   string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timed out fetching %s after %s", e.URI, e.After)
}
