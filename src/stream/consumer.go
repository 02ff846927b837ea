// Package stream drives block ingestion from a substream source, keeping
// the cursor durable per block.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/retry"
	"github.com/stake-plus/geo-sink/src/telemetry"
)

// BlockHandler processes one block's map output.
type BlockHandler interface {
	HandleBlock(ctx context.Context, clock Clock, output []byte) error
}

type BlockHandlerFunc func(ctx context.Context, clock Clock, output []byte) error

func (f BlockHandlerFunc) HandleBlock(ctx context.Context, clock Clock, output []byte) error {
	return f(ctx, clock, output)
}

type Options struct {
	Source    Source
	Cursors   cursor.Store
	Handler   BlockHandler
	Telemetry telemetry.Telemetry
	// MaxAttempts bounds RunWithRetry. Idle timeouts do not count.
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

type RunConfig struct {
	StartBlock *uint64
	UseCursor  bool
}

// Stream states reported by Status.
const (
	StateIdle       = "idle"
	StateStreaming  = "streaming"
	StateRestarting = "restarting"
	StateStopped    = "stopped"
	StateFailed     = "failed"
)

type Status struct {
	State     string
	LastBlock uint64
	Cursor    string
	Restarts  int
	LastError string
}

type Consumer struct {
	source    Source
	cursors   cursor.Store
	handler   BlockHandler
	telemetry telemetry.Telemetry
	attempts  int
	baseDelay time.Duration
	maxDelay  time.Duration
	log       zerolog.Logger

	mu     sync.RWMutex
	status Status
}

func NewConsumer(opts Options) *Consumer {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 5
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = time.Second
	}
	if opts.MaxDelay <= 0 {
		opts.MaxDelay = 30 * time.Second
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.Nop{}
	}
	return &Consumer{
		source:    opts.Source,
		cursors:   opts.Cursors,
		handler:   opts.Handler,
		telemetry: opts.Telemetry,
		attempts:  opts.MaxAttempts,
		baseDelay: opts.BaseDelay,
		maxDelay:  opts.MaxDelay,
		log:       logging.Component("stream"),
		status:    Status{State: StateIdle},
	}
}

// Status returns a snapshot of the consumer's progress.
func (c *Consumer) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

func (c *Consumer) update(fn func(s *Status)) {
	c.mu.Lock()
	fn(&c.status)
	c.mu.Unlock()
}

// startPoint picks the resume position: the stored cursor, the block after
// a cursorless checkpoint, or the configured start block.
func startPoint(pos *cursor.Position, cfg RunConfig) (StartPoint, error) {
	if cfg.UseCursor && pos != nil {
		if pos.Cursor != "" {
			return StartPoint{Cursor: pos.Cursor, Block: pos.BlockNumber + 1}, nil
		}
		return StartPoint{Block: pos.BlockNumber + 1}, nil
	}
	if cfg.StartBlock != nil {
		return StartPoint{Block: *cfg.StartBlock}, nil
	}
	if cfg.UseCursor {
		return StartPoint{}, &InvalidStreamConfigurationError{Reason: "no cursor stored and no start block set"}
	}
	return StartPoint{}, &InvalidStreamConfigurationError{Reason: "no start block set"}
}

// Run performs one stream run. It returns nil when the source ends.
func (c *Consumer) Run(ctx context.Context, cfg RunConfig) error {
	pos, err := c.cursors.Read(ctx)
	if err != nil {
		return fmt.Errorf("read cursor: %w", err)
	}
	start, err := startPoint(pos, cfg)
	if err != nil {
		return err
	}

	session, err := c.source.Open(ctx, start)
	if err != nil {
		return fmt.Errorf("open stream: %w", err)
	}
	defer session.Close()

	c.log.Info().Str("cursor", start.Cursor).Uint64("start_block", start.Block).Msg("stream started")
	c.update(func(s *Status) { s.State = StateStreaming })

	var prev *cursor.Position
	if cfg.UseCursor && pos != nil {
		prev = pos
	} else if start.Block > 0 {
		prev = &cursor.Position{BlockNumber: start.Block - 1}
	}

	for {
		msg, err := session.Recv(ctx)
		if errors.Is(err, io.EOF) {
			c.log.Info().Msg("stream ended")
			return nil
		}
		if err != nil {
			return err
		}

		switch msg.Type {
		case MessageData:
			next, err := c.handleData(ctx, msg, prev)
			if err != nil {
				return err
			}
			prev = next
		case MessageUndo:
			next, err := c.handleUndo(ctx, msg)
			if err != nil {
				return err
			}
			prev = next
		}
	}
}

func (c *Consumer) handleData(ctx context.Context, msg *Message, prev *cursor.Position) (*cursor.Position, error) {
	next := cursor.Position{
		Cursor:         msg.Cursor,
		BlockNumber:    msg.Clock.Number,
		BlockHash:      msg.Clock.ID,
		BlockTimestamp: msg.Clock.Timestamp,
	}
	if err := c.cursors.Write(ctx, next); err != nil {
		return nil, fmt.Errorf("write cursor: %w", err)
	}

	if len(bytes.TrimSpace(msg.Output)) > 0 {
		if err := c.handler.HandleBlock(ctx, msg.Clock, msg.Output); err != nil {
			metrics.BlocksFailed.Inc()
			c.restore(ctx, prev)
			return nil, &BlockProcessingError{Block: msg.Clock.Number, Err: err}
		}
	}

	metrics.BlocksProcessed.Inc()
	c.update(func(s *Status) {
		s.LastBlock = next.BlockNumber
		s.Cursor = next.Cursor
	})
	return &next, nil
}

// restore puts back the last durable position so a resume redelivers the
// failed block.
func (c *Consumer) restore(ctx context.Context, prev *cursor.Position) {
	if prev == nil {
		return
	}
	if err := c.cursors.Write(context.WithoutCancel(ctx), *prev); err != nil {
		c.log.Error().Err(err).Uint64("block", prev.BlockNumber).Msg("unable to restore cursor")
	}
}

// handleUndo rewinds the cursor to the last valid block. Rows written for
// the dropped blocks are kept.
func (c *Consumer) handleUndo(ctx context.Context, msg *Message) (*cursor.Position, error) {
	pos := cursor.Position{
		Cursor:         msg.LastValidCursor,
		BlockNumber:    msg.LastValidBlock.Number,
		BlockHash:      msg.LastValidBlock.ID,
		BlockTimestamp: msg.LastValidBlock.Timestamp,
	}
	if err := c.cursors.Write(ctx, pos); err != nil {
		return nil, fmt.Errorf("write cursor on undo: %w", err)
	}
	metrics.UndoSignals.Inc()
	c.log.Warn().Uint64("last_valid_block", pos.BlockNumber).Msg("undo signal, cursor rewound")
	c.telemetry.CaptureMessage(ctx, fmt.Sprintf("chain reorganization: cursor rewound to block %d", pos.BlockNumber))
	c.update(func(s *Status) {
		s.LastBlock = pos.BlockNumber
		s.Cursor = pos.Cursor
	})
	return &pos, nil
}

// RunWithRetry runs the stream until it ends, the context is cancelled, or
// the attempt budget is spent. The first run starts at startBlock when one
// is given; every later run resumes from the cursor.
func (c *Consumer) RunWithRetry(ctx context.Context, startBlock *uint64) error {
	cfg := RunConfig{StartBlock: startBlock, UseCursor: startBlock == nil}
	failures := 0
	for {
		err := c.Run(ctx, cfg)
		if err == nil {
			c.update(func(s *Status) { s.State = StateStopped })
			return nil
		}
		if ctx.Err() != nil {
			c.update(func(s *Status) { s.State = StateStopped })
			return ctx.Err()
		}
		c.update(func(s *Status) { s.LastError = err.Error() })
		cfg = RunConfig{StartBlock: startBlock, UseCursor: true}

		var cfgErr *InvalidStreamConfigurationError
		var authErr *AuthError
		if errors.As(err, &cfgErr) || errors.As(err, &authErr) {
			c.update(func(s *Status) { s.State = StateFailed })
			return err
		}

		var timeout *TimeoutError
		if errors.As(err, &timeout) {
			metrics.StreamRestarts.WithLabelValues("idle_timeout").Inc()
			c.log.Warn().Err(err).Msg("stream idle, restarting from cursor")
			c.update(func(s *Status) {
				s.State = StateRestarting
				s.Restarts++
			})
			continue
		}

		failures++
		if failures >= c.attempts {
			c.update(func(s *Status) { s.State = StateFailed })
			return fmt.Errorf("stream failed after %d attempts: %w", failures, err)
		}

		reason := "transport"
		var blockErr *BlockProcessingError
		if errors.As(err, &blockErr) {
			reason = "block"
		}
		metrics.StreamRestarts.WithLabelValues(reason).Inc()
		wait := retry.Backoff(c.baseDelay, c.maxDelay, failures)
		c.log.Warn().Err(err).Int("attempt", failures).Dur("wait", wait).Msg("stream failed, resuming from cursor")
		c.update(func(s *Status) {
			s.State = StateRestarting
			s.Restarts++
		})

		t := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			t.Stop()
			c.update(func(s *Status) { s.State = StateStopped })
			return ctx.Err()
		case <-t.C:
		}
	}
}
