package events

import (
	"context"
	"fmt"

	"github.com/stake-plus/geo-sink/src/metrics"
)

// HandlerFunc processes the elements of one kind in a batch. Returned errors
// abort the block.
type HandlerFunc func(ctx context.Context, b *Batch) error

type Router struct {
	handlers map[Kind]HandlerFunc
}

func NewRouter() *Router {
	return &Router{handlers: make(map[Kind]HandlerFunc)}
}

// Handle registers h for kind, replacing any earlier registration.
func (r *Router) Handle(kind Kind, h HandlerFunc) {
	r.handlers[kind] = h
}

// Dispatch calls the handler of every matched kind that decoded at least one
// element, in Order, and stops at the first error.
func (r *Router) Dispatch(ctx context.Context, b *Batch) error {
	for _, kind := range b.Kinds() {
		h, ok := r.handlers[kind]
		if !ok || b.Len(kind) == 0 {
			continue
		}
		if err := h(ctx, b); err != nil {
			return fmt.Errorf("%s: %w", kind, err)
		}
		metrics.EventsHandled.WithLabelValues(string(kind)).Add(float64(b.Len(kind)))
	}
	return nil
}
