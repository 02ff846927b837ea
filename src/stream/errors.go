package stream

import (
	"fmt"
	"time"
)

// InvalidStreamConfigurationError means no start position is available.
// It is never retried.
type InvalidStreamConfigurationError struct {
	Reason string
}

func (e *InvalidStreamConfigurationError) Error() string {
	return "invalid stream configuration: " + e.Reason
}

// TimeoutError reports a stream that stayed silent longer than the idle
// timeout. The run is restarted without spending a retry attempt.
type TimeoutError struct {
	Idle time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("stream idle for %s", e.Idle)
}

// AuthError reports a rejected or expired stream credential.
type AuthError struct {
	Err error
}

func (e *AuthError) Error() string { return "stream authentication: " + e.Err.Error() }
func (e *AuthError) Unwrap() error { return e.Err }

// BlockProcessingError is returned when the handler fails on a block. The
// cursor was restored to the previous block before returning.
type BlockProcessingError struct {
	Block uint64
	Err   error
}

func (e *BlockProcessingError) Error() string {
	return fmt.Sprintf("process block %d: %v", e.Block, e.Err)
}

func (e *BlockProcessingError) Unwrap() error { return e.Err }
