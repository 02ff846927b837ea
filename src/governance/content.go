package governance

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/versioning"
)

// ProposalsProcessed applies published content. A proposal that was never
// seen (spaces without a voting plugin publish directly) is recorded as
// accepted first.
func (t *Tracker) ProposalsProcessed(ctx context.Context, processed []events.ProposalProcessed, b Block) error {
	kind := string(events.KindProposalsProcessed)
	l := t.logger(b)

	type pending struct {
		event events.ProposalProcessed
		space *data.Space
	}
	var todo []pending
	var uris []string
	for _, pp := range processed {
		sp, err := t.spaceForPlugin(ctx, pp.PluginAddress)
		if err != nil {
			if isMappingError(err) {
				t.skip(b, kind, err)
				continue
			}
			return err
		}
		todo = append(todo, pending{event: pp, space: sp})
		uris = append(uris, pp.ContentURI)
	}
	if len(todo) == 0 {
		return nil
	}

	results := t.resolver.FetchAll(ctx, uris)
	for i, p := range todo {
		res := results[i]
		if res.Err != nil || res.Payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Warn().Err(res.Err).Str("uri", res.URI).Msg("unable to resolve published content")
			metrics.EventsSkipped.WithLabelValues(kind, "unresolved").Inc()
			continue
		}
		content, err := events.DecodeContent(res.Payload.Raw)
		if err == nil && content.Type != data.ProposalContent {
			err = &unsupportedTypeError{Type: content.Type}
		}
		if err != nil {
			l.Warn().Err(err).Str("uri", res.URI).Msg("invalid published content")
			metrics.EventsSkipped.WithLabelValues(kind, "invalid_metadata").Inc()
			continue
		}
		if err := t.applyPublished(ctx, p.event, p.space, content, b); err != nil {
			return err
		}
	}
	return nil
}

func (t *Tracker) applyPublished(ctx context.Context, pp events.ProposalProcessed, sp *data.Space, content *events.ContentProposal, b Block) error {
	kind := string(events.KindProposalsProcessed)
	proposal, err := t.store.ProposalByID(ctx, content.ProposalID)
	if err != nil {
		return err
	}
	if proposal == nil {
		// Fall back to the proposal created with the same uri.
		if proposal, err = t.store.ProposalByURI(ctx, sp.ID, pp.ContentURI); err != nil {
			return err
		}
	}
	if proposal != nil && proposal.SpaceID != sp.ID {
		l := t.logger(b)
		l.Warn().Str("proposal_id", proposal.ID).Str("proposal_space", proposal.SpaceID).Str("space", sp.ID).
			Msg("published content belongs to another space, ignoring")
		metrics.EventsSkipped.WithLabelValues(kind, "space_mismatch").Inc()
		return nil
	}
	if proposal != nil && t.closed(proposal, kind, b) {
		return nil
	}
	if proposal == nil {
		if sp.MainVotingPluginAddress != nil {
			l := t.logger(b)
			l.Warn().Str("proposal_id", content.ProposalID).Str("space", sp.ID).
				Msg("published content has no recorded proposal, recording it as accepted")
		}
		uri := pp.ContentURI
		created := data.Proposal{
			ID:                content.ProposalID,
			OnchainProposalID: "-1",
			PluginAddress:     ids.ChecksumAddress(pp.PluginAddress),
			SpaceID:           sp.ID,
			Name:              content.Name,
			URI:               &uri,
			Type:              data.ProposalContent,
			Status:            data.StatusAccepted,
			CreatedByID:       ids.GeoBotAddress,
			StartTime:         b.Timestamp,
			EndTime:           b.Timestamp,
			CreatedAt:         b.Timestamp,
			CreatedAtBlock:    b.Number,
		}
		if err := t.recordContent(ctx, created, content.Actions, b); err != nil {
			return err
		}
		proposal = &created
	}

	res, err := t.engine.Apply(ctx, versioning.Input{
		SpaceID:    sp.ID,
		ProposalID: proposal.ID,
		CreatedBy:  proposal.CreatedByID,
		Block:      versioning.Block{Number: b.Number, Timestamp: b.Timestamp},
		Actions:    content.Actions,
	})
	if err != nil {
		return fmt.Errorf("apply proposal %s: %w", proposal.ID, err)
	}
	if err := t.accept(ctx, proposal.ID); err != nil {
		return err
	}
	l := t.logger(b)
	l.Info().Str("proposal_id", proposal.ID).Str("space", sp.ID).Int("entities", len(res.Versions)).
		Int("actions", len(content.Actions)).Msg("content applied")
	return nil
}

// recordContent writes an already accepted content proposal with its
// proposed versions and actions.
func (t *Tracker) recordContent(ctx context.Context, p data.Proposal, actions []events.Action, b Block) error {
	versions, rows := proposedContent(p, actions, b)
	return t.writeProposals(ctx, proposalRows{
		accounts:  []string{p.CreatedByID},
		proposals: []data.Proposal{p},
		versions:  versions,
		actions:   rows,
	})
}

// Publish records an accepted content proposal and applies its actions.
// Re-publishing the same proposal leaves the store unchanged.
func (t *Tracker) Publish(ctx context.Context, p data.Proposal, actions []events.Action, b Block) (*versioning.Result, error) {
	p.Type = data.ProposalContent
	p.Status = data.StatusAccepted
	if err := t.recordContent(ctx, p, actions, b); err != nil {
		return nil, err
	}
	res, err := t.engine.Apply(ctx, versioning.Input{
		SpaceID:    p.SpaceID,
		ProposalID: p.ID,
		CreatedBy:  p.CreatedByID,
		Block:      versioning.Block{Number: b.Number, Timestamp: b.Timestamp},
		Actions:    actions,
	})
	if err != nil {
		return nil, fmt.Errorf("apply proposal %s: %w", p.ID, err)
	}
	return res, nil
}

// Entries applies legacy content in index order. Legacy spaces have no
// voting, so every entry is accepted as it is published.
func (t *Tracker) Entries(ctx context.Context, entries []events.Entry, b Block) error {
	kind := string(events.KindEntries)
	l := t.logger(b)

	ordered := append([]events.Entry(nil), entries...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, errA := strconv.ParseUint(ordered[i].Index, 10, 64)
		c, errC := strconv.ParseUint(ordered[j].Index, 10, 64)
		if errA != nil || errC != nil {
			return false
		}
		return a < c
	})

	uris := make([]string, len(ordered))
	for i, e := range ordered {
		uris[i] = e.URI
	}
	results := t.resolver.FetchAll(ctx, uris)

	for i, e := range ordered {
		res := results[i]
		if res.Err != nil || res.Payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Warn().Err(res.Err).Str("uri", e.URI).Str("entry", e.ID).Msg("unable to resolve entry")
			metrics.EventsSkipped.WithLabelValues(kind, "unresolved").Inc()
			continue
		}
		content, err := events.DecodeEntryContent(res.Payload.Raw)
		if err != nil {
			l.Warn().Err(err).Str("uri", e.URI).Str("entry", e.ID).Msg("invalid entry content")
			metrics.EventsSkipped.WithLabelValues(kind, "invalid_metadata").Inc()
			continue
		}

		spaceID, err := t.ensureLegacySpace(ctx, e.Space, b)
		if err != nil {
			return err
		}
		author := ids.ChecksumAddress(e.Author)
		uri := e.URI
		proposal := data.Proposal{
			ID:                ids.LegacyProposalID(e.ID),
			OnchainProposalID: e.Index,
			PluginAddress:     spaceID,
			SpaceID:           spaceID,
			Name:              content.Name,
			URI:               &uri,
			Type:              data.ProposalContent,
			Status:            data.StatusAccepted,
			CreatedByID:       author,
			StartTime:         b.Timestamp,
			EndTime:           b.Timestamp,
			CreatedAt:         b.Timestamp,
			CreatedAtBlock:    b.Number,
		}
		if _, err := t.Publish(ctx, proposal, content.Actions, b); err != nil {
			return fmt.Errorf("entry %s: %w", e.ID, err)
		}
	}
	return nil
}
