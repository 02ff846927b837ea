// Package sink turns one block's map output into governance and content
// writes.
package sink

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/governance"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/stream"
)

// LastBlock describes the most recent block the handler completed.
type LastBlock struct {
	Number      uint64
	Hash        string
	Timestamp   int64
	Events      int
	Rejected    int
	ProcessedAt time.Time
}

type Handler struct {
	tracker *governance.Tracker
	log     zerolog.Logger

	mu   sync.RWMutex
	last *LastBlock
}

func NewHandler(t *governance.Tracker) *Handler {
	return &Handler{tracker: t, log: logging.Component("sink")}
}

// Last returns the most recent completed block, or nil before the first.
func (h *Handler) Last() *LastBlock {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.last == nil {
		return nil
	}
	l := *h.last
	return &l
}

// router binds every event kind to its tracker handler for one block.
func (h *Handler) router(blk governance.Block) *events.Router {
	t := h.tracker
	r := events.NewRouter()
	r.Handle(events.KindSpacesCreated, func(ctx context.Context, b *events.Batch) error {
		return t.SpacesCreated(ctx, b.SpacesCreated, blk)
	})
	r.Handle(events.KindGovernancePluginsCreated, func(ctx context.Context, b *events.Batch) error {
		return t.GovernancePluginsCreated(ctx, b.GovernancePluginsCreated, blk)
	})
	r.Handle(events.KindEditorsAdded, func(ctx context.Context, b *events.Batch) error {
		return t.EditorsAdded(ctx, b.EditorsAdded, blk)
	})
	r.Handle(events.KindEditorsRemoved, func(ctx context.Context, b *events.Batch) error {
		return t.EditorsRemoved(ctx, b.EditorsRemoved, blk)
	})
	r.Handle(events.KindMembersAdded, func(ctx context.Context, b *events.Batch) error {
		return t.MembersAdded(ctx, b.MembersAdded, blk)
	})
	r.Handle(events.KindMembersRemoved, func(ctx context.Context, b *events.Batch) error {
		return t.MembersRemoved(ctx, b.MembersRemoved, blk)
	})
	r.Handle(events.KindSubspacesAdded, func(ctx context.Context, b *events.Batch) error {
		return t.SubspacesAdded(ctx, b.SubspacesAdded, blk)
	})
	r.Handle(events.KindSubspacesRemoved, func(ctx context.Context, b *events.Batch) error {
		return t.SubspacesRemoved(ctx, b.SubspacesRemoved, blk)
	})
	r.Handle(events.KindProfilesRegistered, func(ctx context.Context, b *events.Batch) error {
		return t.ProfilesRegistered(ctx, b.ProfilesRegistered, blk)
	})
	r.Handle(events.KindRoleChanges, func(ctx context.Context, b *events.Batch) error {
		return t.RoleChanges(ctx, b.RoleChanges, blk)
	})
	r.Handle(events.KindEntries, func(ctx context.Context, b *events.Batch) error {
		return t.Entries(ctx, b.Entries, blk)
	})
	r.Handle(events.KindProposalsCreated, func(ctx context.Context, b *events.Batch) error {
		return t.ProposalsCreated(ctx, b.ProposalsCreated, blk)
	})
	r.Handle(events.KindVotesCast, func(ctx context.Context, b *events.Batch) error {
		return t.VotesCast(ctx, b.VotesCast, blk)
	})
	r.Handle(events.KindProposalsProcessed, func(ctx context.Context, b *events.Batch) error {
		return t.ProposalsProcessed(ctx, b.ProposalsProcessed, blk)
	})
	r.Handle(events.KindProposalsExecuted, func(ctx context.Context, b *events.Batch) error {
		return t.ProposalsExecuted(ctx, b.ProposalsExecuted, blk)
	})
	return r
}

// HandleBlock parses the output, dispatches every matched kind in order,
// then sweeps proposals whose voting window closed. A malformed output is
// logged and skipped.
func (h *Handler) HandleBlock(ctx context.Context, clock stream.Clock, output []byte) error {
	blk := governance.Block{
		Number:    clock.Number,
		Hash:      clock.ID,
		Timestamp: clock.Timestamp,
		RequestID: ids.NewRequestID(),
	}
	l := h.log.With().Str("request_id", blk.RequestID).Uint64("block", blk.Number).Logger()

	total := 0
	batch, err := events.Parse(output)
	var parseErr *events.ParseError
	switch {
	case errors.As(err, &parseErr):
		l.Error().Err(err).Msg("skipping undecodable block output")
		metrics.EventsSkipped.WithLabelValues("block", "undecodable").Inc()
	case err != nil:
		return err
	case !batch.Empty():
		kinds := batch.Kinds()
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
			total += batch.Len(k)
		}
		l.Info().Strs("kinds", names).Int("events", total).Msg("processing block")
		if err := h.router(blk).Dispatch(ctx, batch); err != nil {
			return err
		}
	}

	rejected, err := h.tracker.ExpireProposals(ctx, blk)
	if err != nil {
		return err
	}

	h.mu.Lock()
	h.last = &LastBlock{
		Number:      blk.Number,
		Hash:        blk.Hash,
		Timestamp:   blk.Timestamp,
		Events:      total,
		Rejected:    rejected,
		ProcessedAt: time.Now(),
	}
	h.mu.Unlock()
	return nil
}
