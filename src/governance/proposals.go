package governance

import (
	"context"
	"strconv"

	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/ipfs"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/storage"
	"golang.org/x/sync/errgroup"
)

// proposalRows collects everything written for the proposals of one batch.
type proposalRows struct {
	accounts  []string
	proposals []data.Proposal
	members   []data.ProposedMember
	editors   []data.ProposedEditor
	subspaces []data.ProposedSubspace
	versions  []data.ProposedVersion
	actions   []data.Action
}

// ProposalsCreated records new proposals as proposed. Documents are resolved
// with bounded concurrency; a proposal whose document cannot be resolved or
// decoded is skipped.
func (t *Tracker) ProposalsCreated(ctx context.Context, created []events.ProposalCreated, b Block) error {
	l := t.logger(b)
	kind := string(events.KindProposalsCreated)

	type pending struct {
		event events.ProposalCreated
		space *data.Space
	}
	var todo []pending
	var uris []string
	for _, pc := range created {
		sp, err := t.spaceForPlugin(ctx, pc.PluginAddress)
		if err != nil {
			if isMappingError(err) {
				t.skip(b, kind, err)
				continue
			}
			return err
		}
		todo = append(todo, pending{event: pc, space: sp})
		uris = append(uris, pc.MetadataURI)
	}
	if len(todo) == 0 {
		return nil
	}

	results := t.resolver.FetchAll(ctx, uris)
	var rows proposalRows
	for i, p := range todo {
		res := results[i]
		if res.Err != nil || res.Payload == nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			l.Warn().Err(res.Err).Str("uri", res.URI).Str("onchain_proposal_id", p.event.ProposalID).Msg("unable to resolve proposal metadata")
			metrics.EventsSkipped.WithLabelValues(kind, "unresolved").Inc()
			continue
		}
		if err := t.collectProposal(&rows, p.event, p.space, res.Payload, b); err != nil {
			l.Warn().Err(err).Str("uri", res.URI).Str("onchain_proposal_id", p.event.ProposalID).Msg("invalid proposal metadata")
			metrics.EventsSkipped.WithLabelValues(kind, "invalid_metadata").Inc()
		}
	}
	return t.writeProposals(ctx, rows)
}

func (t *Tracker) collectProposal(rows *proposalRows, pc events.ProposalCreated, sp *data.Space, payload *ipfs.UriPayload, b Block) error {
	meta, err := events.DecodeMetadata(payload.Raw)
	if err != nil {
		return err
	}
	start, _ := strconv.ParseInt(pc.StartTime, 10, 64)
	end, _ := strconv.ParseInt(pc.EndTime, 10, 64)
	creator := ids.ChecksumAddress(pc.Creator)
	uri := pc.MetadataURI

	proposal := data.Proposal{
		ID:                meta.ProposalID,
		OnchainProposalID: pc.ProposalID,
		PluginAddress:     ids.ChecksumAddress(pc.PluginAddress),
		SpaceID:           sp.ID,
		Name:              meta.Name,
		URI:               &uri,
		Type:              meta.Type,
		Status:            data.StatusProposed,
		CreatedByID:       creator,
		StartTime:         start,
		EndTime:           end,
		CreatedAt:         b.Timestamp,
		CreatedAtBlock:    b.Number,
	}

	switch meta.Type {
	case data.ProposalContent:
		content, err := events.DecodeContent(payload.Raw)
		if err != nil {
			return err
		}
		versions, actions := proposedContent(proposal, content.Actions, b)
		rows.versions = append(rows.versions, versions...)
		rows.actions = append(rows.actions, actions...)

	case data.ProposalAddMember, data.ProposalRemoveMember:
		m, err := events.DecodeMembership(payload.Raw)
		if err != nil {
			return err
		}
		account := ids.ChecksumAddress(m.UserAddress)
		rows.accounts = append(rows.accounts, account)
		rows.members = append(rows.members, data.ProposedMember{
			ID: proposal.ID, Type: proposal.Type, SpaceID: sp.ID, AccountID: account,
			ProposalID: proposal.ID, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		})

	case data.ProposalAddEditor, data.ProposalRemoveEditor:
		m, err := events.DecodeMembership(payload.Raw)
		if err != nil {
			return err
		}
		account := ids.ChecksumAddress(m.UserAddress)
		rows.accounts = append(rows.accounts, account)
		rows.editors = append(rows.editors, data.ProposedEditor{
			ID: proposal.ID, Type: proposal.Type, SpaceID: sp.ID, AccountID: account,
			ProposalID: proposal.ID, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		})

	case data.ProposalAddSubspace, data.ProposalRemoveSubspace:
		s, err := events.DecodeSubspace(payload.Raw)
		if err != nil {
			return err
		}
		rows.subspaces = append(rows.subspaces, data.ProposedSubspace{
			ID: proposal.ID, Type: proposal.Type, ParentSpaceID: sp.ID, SubspaceID: ids.ChecksumAddress(s.Subspace),
			ProposalID: proposal.ID, CreatedAt: b.Timestamp, CreatedAtBlock: b.Number,
		})

	default:
		return &unsupportedTypeError{Type: meta.Type}
	}

	rows.accounts = append(rows.accounts, creator)
	rows.proposals = append(rows.proposals, proposal)
	return nil
}

type unsupportedTypeError struct{ Type string }

func (e *unsupportedTypeError) Error() string { return "unsupported proposal type " + e.Type }

// proposedContent builds the proposed versions and ordered action rows of a
// content proposal.
func proposedContent(p data.Proposal, actions []events.Action, b Block) ([]data.ProposedVersion, []data.Action) {
	var versions []data.ProposedVersion
	seen := make(map[string]string)
	rows := make([]data.Action, 0, len(actions))
	for i, a := range actions {
		versionID, ok := seen[a.EntityID]
		if !ok {
			versionID = ids.VersionID(a.EntityID, p.ID)
			seen[a.EntityID] = versionID
			versions = append(versions, data.ProposedVersion{
				ID:             versionID,
				EntityID:       a.EntityID,
				ProposalID:     p.ID,
				SpaceID:        p.SpaceID,
				CreatedByID:    p.CreatedByID,
				CreatedAt:      b.Timestamp,
				CreatedAtBlock: b.Number,
			})
		}
		row := data.Action{
			ID:                ids.ActionID(p.ID, i),
			ProposedVersionID: versionID,
			ActionIndex:       i,
			ActionType:        a.Type,
			EntityID:          a.EntityID,
			AttributeID:       a.AttributeID,
			ValueType:         a.Value.Type,
			ValueID:           a.Value.ID,
			CreatedAt:         b.Timestamp,
			CreatedAtBlock:    b.Number,
		}
		if a.Value.Type == events.ValueEntity {
			ref := a.Value.ID
			row.EntityValueID = &ref
		} else {
			row.TextValue = a.Value.Value
		}
		rows = append(rows, row)
	}
	return versions, rows
}

// writeProposals writes accounts and proposals concurrently, then the rows
// that reference proposals.
func (t *Tracker) writeProposals(ctx context.Context, rows proposalRows) error {
	if len(rows.proposals) == 0 {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	g.Go(func() error { return t.upsertAccounts(gctx, rows.accounts...) })
	g.Go(func() error {
		return storage.UpsertChunked(gctx, t.store, "proposals", rows.proposals, []string{"id"}, nil)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.SetLimit(t.concurrency)
	g.Go(func() error {
		return storage.UpsertChunked(gctx, t.store, "proposed_members", rows.members, []string{"id"}, nil)
	})
	g.Go(func() error {
		return storage.UpsertChunked(gctx, t.store, "proposed_editors", rows.editors, []string{"id"}, nil)
	})
	g.Go(func() error {
		return storage.UpsertChunked(gctx, t.store, "proposed_subspaces", rows.subspaces, []string{"id"}, nil)
	})
	g.Go(func() error {
		return storage.UpsertChunked(gctx, t.store, "proposed_versions", rows.versions, []string{"id"}, nil)
	})
	if err := g.Wait(); err != nil {
		return err
	}
	return storage.UpsertChunked(ctx, t.store, "actions", rows.actions, []string{"id"}, nil)
}

// VotesCast records accept and reject votes. Other options are skipped. A
// voter's first vote on a proposal stands; repeats are ignored.
func (t *Tracker) VotesCast(ctx context.Context, votes []events.VoteCast, b Block) error {
	kind := string(events.KindVotesCast)
	for _, v := range votes {
		var vote string
		switch v.VoteOption {
		case events.VoteOptionYes:
			vote = data.VoteAccept
		case events.VoteOptionNo:
			vote = data.VoteReject
		default:
			l := t.logger(b)
			l.Debug().Str("option", v.VoteOption).Str("onchain_proposal_id", v.OnchainProposalID).Msg("ignoring vote option")
			metrics.EventsSkipped.WithLabelValues(kind, "vote_option").Inc()
			continue
		}

		plugin := ids.ChecksumAddress(v.PluginAddress)
		p, err := t.store.ProposalByOnchainID(ctx, v.OnchainProposalID, plugin)
		if err != nil {
			return err
		}
		if p == nil {
			t.skip(b, kind, &ProposalNotFoundError{OnchainProposalID: v.OnchainProposalID, PluginAddress: plugin})
			continue
		}

		voter := ids.ChecksumAddress(v.Voter)
		if err := t.upsertAccounts(ctx, voter); err != nil {
			return err
		}
		row := data.ProposalVote{
			ProposalID:        p.ID,
			AccountID:         voter,
			OnchainProposalID: v.OnchainProposalID,
			SpaceID:           p.SpaceID,
			Vote:              vote,
			CreatedAt:         b.Timestamp,
			CreatedAtBlock:    b.Number,
		}
		if err := storage.UpsertChunked(ctx, t.store, "proposal_votes", []data.ProposalVote{row},
			[]string{"proposal_id", "account_id"}, nil); err != nil {
			return err
		}
	}
	return nil
}

// ProposalsExecuted accepts proposals and applies the roster or subspace
// change they carry. Content is applied when it is published.
func (t *Tracker) ProposalsExecuted(ctx context.Context, executed []events.ProposalExecuted, b Block) error {
	kind := string(events.KindProposalsExecuted)
	l := t.logger(b)
	for _, ex := range executed {
		plugin := ids.ChecksumAddress(ex.PluginAddress)
		p, err := t.store.ProposalByOnchainID(ctx, ex.ProposalID, plugin)
		if err != nil {
			return err
		}
		if p == nil {
			t.skip(b, kind, &ProposalNotFoundError{OnchainProposalID: ex.ProposalID, PluginAddress: plugin})
			continue
		}
		if t.closed(p, kind, b) {
			continue
		}
		if err := t.applyExecuted(ctx, p, b); err != nil {
			return err
		}
		if err := t.accept(ctx, p.ID); err != nil {
			return err
		}
		l.Info().Str("proposal_id", p.ID).Str("type", p.Type).Msg("proposal executed")
	}
	return nil
}

func (t *Tracker) applyExecuted(ctx context.Context, p *data.Proposal, b Block) error {
	switch p.Type {
	case data.ProposalAddMember, data.ProposalRemoveMember:
		rows, err := storage.RowsForProposal[data.ProposedMember](ctx, t.store, "proposed_members", p.ID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := t.setRole(ctx, rosterMembers, r.SpaceID, r.AccountID, p.Type == data.ProposalAddMember, b); err != nil {
				return err
			}
		}
	case data.ProposalAddEditor, data.ProposalRemoveEditor:
		rows, err := storage.RowsForProposal[data.ProposedEditor](ctx, t.store, "proposed_editors", p.ID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := t.setRole(ctx, rosterEditors, r.SpaceID, r.AccountID, p.Type == data.ProposalAddEditor, b); err != nil {
				return err
			}
		}
	case data.ProposalAddSubspace, data.ProposalRemoveSubspace:
		rows, err := storage.RowsForProposal[data.ProposedSubspace](ctx, t.store, "proposed_subspaces", p.ID)
		if err != nil {
			return err
		}
		for _, r := range rows {
			if err := t.setSubspace(ctx, r.ParentSpaceID, r.SubspaceID, p.Type == data.ProposalAddSubspace, b); err != nil {
				return err
			}
		}
	}
	return nil
}

// closed reports whether p was already rejected. Rejection is terminal, so
// later executions and publications of p are skipped.
func (t *Tracker) closed(p *data.Proposal, kind string, b Block) bool {
	if p.Status != data.StatusRejected {
		return false
	}
	l := t.logger(b)
	l.Warn().Str("proposal_id", p.ID).Str("kind", kind).Msg("proposal already rejected, ignoring")
	metrics.EventsSkipped.WithLabelValues(kind, "rejected").Inc()
	return true
}

// accept moves a proposed proposal to accepted. Accepted and rejected
// proposals are left as they are.
func (t *Tracker) accept(ctx context.Context, proposalID string) error {
	ok, err := t.store.TransitionProposal(ctx, proposalID, data.StatusProposed, data.StatusAccepted)
	if ok {
		metrics.ProposalTransitions.WithLabelValues(data.StatusAccepted).Inc()
	}
	return err
}

// ExpireProposals rejects open proposals whose voting window closed before
// the block without a simple majority. Majority proposals stay proposed
// until they are executed.
func (t *Tracker) ExpireProposals(ctx context.Context, b Block) (int, error) {
	expired, err := t.store.ExpiredProposals(ctx, b.Timestamp)
	if err != nil || len(expired) == 0 {
		return 0, err
	}
	idList := make([]string, len(expired))
	for i, p := range expired {
		idList[i] = p.ID
	}
	tallies, err := t.store.VoteTallies(ctx, idList)
	if err != nil {
		return 0, err
	}

	var rejected []string
	for _, id := range idList {
		if !tallies[id].Passing() {
			rejected = append(rejected, id)
		}
	}
	if len(rejected) == 0 {
		return 0, nil
	}
	err = t.store.UpdateWhere(ctx, "proposals", &data.Proposal{},
		map[string]interface{}{"status": data.StatusRejected},
		"id IN ? AND status = ?", rejected, data.StatusProposed)
	if err != nil {
		return 0, err
	}
	metrics.ProposalTransitions.WithLabelValues(data.StatusRejected).Add(float64(len(rejected)))
	l := t.logger(b)
	l.Info().Int("count", len(rejected)).Msg("rejected expired proposals")
	return len(rejected), nil
}
