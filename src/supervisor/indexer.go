package supervisor

import (
	"context"
	"errors"
	"sync"

	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/telemetry"
	"github.com/thejerf/suture/v4"
)

// Runner is satisfied by *stream.Consumer.
type Runner interface {
	RunWithRetry(ctx context.Context, startBlock *uint64) error
}

// Indexer supervises the stream consumer. The consumer already retries
// transport failures, so any error it returns is fatal and stops the tree.
type Indexer struct {
	runner    Runner
	telemetry telemetry.Telemetry

	mu    sync.Mutex
	start *uint64
	err   error
}

func NewIndexer(r Runner, startBlock *uint64, t telemetry.Telemetry) *Indexer {
	if t == nil {
		t = telemetry.Nop{}
	}
	return &Indexer{runner: r, start: startBlock, telemetry: t}
}

func (i *Indexer) String() string { return "indexer" }

func (i *Indexer) Serve(ctx context.Context) error {
	i.mu.Lock()
	start := i.start
	// An explicit start block only applies to the first run.
	i.start = nil
	i.mu.Unlock()

	err := i.runner.RunWithRetry(ctx, start)
	switch {
	case err == nil:
		logging.Info().Msg("stream ended")
		return suture.ErrTerminateSupervisorTree
	case ctx.Err() != nil && errors.Is(err, ctx.Err()):
		return err
	}

	i.mu.Lock()
	i.err = err
	i.mu.Unlock()
	logging.Err(err).Msg("indexer failed")
	i.telemetry.CaptureException(context.WithoutCancel(ctx), err)
	return suture.ErrTerminateSupervisorTree
}

// Err returns the fatal error that stopped the indexer, if any.
func (i *Indexer) Err() error {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.err
}
