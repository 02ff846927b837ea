// Package telemetry reports fatal errors and operational notices to an
// external channel.
package telemetry

import (
	"context"
	"sync"
)

type Telemetry interface {
	CaptureException(ctx context.Context, err error)
	CaptureMessage(ctx context.Context, msg string)
}

// New returns a Discord webhook reporter, or Nop when webhookURL is empty.
func New(webhookURL, environment string) (Telemetry, error) {
	if webhookURL == "" {
		return Nop{}, nil
	}
	return NewDiscord(webhookURL, environment)
}

type Nop struct{}

func (Nop) CaptureException(context.Context, error) {}
func (Nop) CaptureMessage(context.Context, string)  {}

// Recorder keeps everything it captures. Tests use it.
type Recorder struct {
	mu       sync.Mutex
	errors   []error
	messages []string
}

func (r *Recorder) CaptureException(_ context.Context, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, err)
}

func (r *Recorder) CaptureMessage(_ context.Context, msg string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *Recorder) Errors() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error(nil), r.errors...)
}

func (r *Recorder) Messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.messages...)
}
