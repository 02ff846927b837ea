package storage

import (
	"context"

	"github.com/stake-plus/geo-sink/src/data"
	"gorm.io/gorm"
)

// SpaceByID returns nil when the space does not exist.
func (s *Store) SpaceByID(ctx context.Context, id string) (*data.Space, error) {
	var sp data.Space
	ok, err := s.first(ctx, "spaces", &sp, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &sp, nil
}

// SpaceForPlugin finds the space any of whose plugins has the given address.
func (s *Store) SpaceForPlugin(ctx context.Context, plugin string) (*data.Space, error) {
	var sp data.Space
	ok, err := s.first(ctx, "spaces", &sp,
		"space_plugin_address = ? OR main_voting_plugin_address = ? OR member_access_plugin_address = ?",
		plugin, plugin, plugin)
	if err != nil || !ok {
		return nil, err
	}
	return &sp, nil
}

func (s *Store) ProposalByID(ctx context.Context, id string) (*data.Proposal, error) {
	var p data.Proposal
	ok, err := s.first(ctx, "proposals", &p, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// ProposalByOnchainID looks a proposal up by its on-chain id, which is only
// unique per plugin.
func (s *Store) ProposalByOnchainID(ctx context.Context, onchainID, plugin string) (*data.Proposal, error) {
	var p data.Proposal
	ok, err := s.first(ctx, "proposals", &p, "onchain_proposal_id = ? AND plugin_address = ?", onchainID, plugin)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// ProposalByURI finds a content proposal by its metadata uri within a space.
func (s *Store) ProposalByURI(ctx context.Context, spaceID, uri string) (*data.Proposal, error) {
	var p data.Proposal
	ok, err := s.first(ctx, "proposals", &p, "space_id = ? AND uri = ?", spaceID, uri)
	if err != nil || !ok {
		return nil, err
	}
	return &p, nil
}

// Cursor returns the stream checkpoint row, or nil before the first write.
func (s *Store) Cursor(ctx context.Context) (*data.Cursor, error) {
	var c data.Cursor
	ok, err := s.first(ctx, "cursors", &c, "id = ?", 0)
	if err != nil || !ok {
		return nil, err
	}
	return &c, nil
}

// NonStaleTriples returns an entity's live triples ordered by id.
func (s *Store) NonStaleTriples(ctx context.Context, entityID string) ([]data.Triple, error) {
	var rows []data.Triple
	err := s.exec(ctx, "triples", "select", func(db *gorm.DB) error {
		return db.Where("entity_id = ? AND is_stale = ?", entityID, false).Order("id").Find(&rows).Error
	})
	return rows, err
}

func (s *Store) EntityByID(ctx context.Context, id string) (*data.Entity, error) {
	var e data.Entity
	ok, err := s.first(ctx, "entities", &e, "id = ?", id)
	if err != nil || !ok {
		return nil, err
	}
	return &e, nil
}

func (s *Store) EntityTypes(ctx context.Context, entityID string) ([]string, error) {
	var types []string
	err := s.exec(ctx, "entity_types", "select", func(db *gorm.DB) error {
		return db.Model(&data.EntityType{}).Where("entity_id = ?", entityID).Order("type_id").Pluck("type_id", &types).Error
	})
	return types, err
}

// CurrentVersion returns the id of the entity's latest accepted version, or
// "" when none has been recorded.
func (s *Store) CurrentVersion(ctx context.Context, entityID string) (string, error) {
	var cv data.CurrentVersion
	ok, err := s.first(ctx, "current_versions", &cv, "entity_id = ?", entityID)
	if err != nil || !ok {
		return "", err
	}
	return cv.VersionID, nil
}

// VersionTriples lists the triple ids joined to a version, ordered by id.
func (s *Store) VersionTriples(ctx context.Context, versionID string) ([]string, error) {
	var out []string
	err := s.exec(ctx, "triple_versions", "select", func(db *gorm.DB) error {
		return db.Model(&data.TripleVersion{}).Where("version_id = ?", versionID).Order("triple_id").Pluck("triple_id", &out).Error
	})
	return out, err
}

// ExpiredProposals lists proposals still open whose voting window closed
// before ts.
func (s *Store) ExpiredProposals(ctx context.Context, ts int64) ([]data.Proposal, error) {
	var rows []data.Proposal
	err := s.exec(ctx, "proposals", "select", func(db *gorm.DB) error {
		return db.Where("status = ? AND end_time > 0 AND end_time < ?", data.StatusProposed, ts).Order("id").Find(&rows).Error
	})
	return rows, err
}

type Tally struct {
	Accept int64
	Reject int64
}

func (t Tally) Total() int64 { return t.Accept + t.Reject }

// Passing reports a simple majority: accepts exceed half of all votes.
func (t Tally) Passing() bool {
	return t.Total() > 0 && t.Accept*2 > t.Total()
}

// VoteTallies counts accept and reject votes for each proposal id.
func (s *Store) VoteTallies(ctx context.Context, proposalIDs []string) (map[string]Tally, error) {
	out := make(map[string]Tally, len(proposalIDs))
	if len(proposalIDs) == 0 {
		return out, nil
	}
	type row struct {
		ProposalID string
		Vote       string
		N          int64
	}
	var rows []row
	err := s.exec(ctx, "proposal_votes", "select", func(db *gorm.DB) error {
		return db.Model(&data.ProposalVote{}).
			Select("proposal_id, vote, COUNT(*) AS n").
			Where("proposal_id IN ?", proposalIDs).
			Group("proposal_id, vote").
			Scan(&rows).Error
	})
	if err != nil {
		return nil, err
	}
	for _, r := range rows {
		t := out[r.ProposalID]
		switch r.Vote {
		case data.VoteAccept:
			t.Accept += r.N
		case data.VoteReject:
			t.Reject += r.N
		}
		out[r.ProposalID] = t
	}
	return out, nil
}

// TableCounts returns the row count of every sink table.
func (s *Store) TableCounts(ctx context.Context) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, m := range data.AllModels() {
		tabler, ok := m.(interface{ TableName() string })
		if !ok {
			continue
		}
		name := tabler.TableName()
		var n int64
		err := s.exec(ctx, name, "count", func(db *gorm.DB) error {
			return db.Model(m).Count(&n).Error
		})
		if err != nil {
			return nil, err
		}
		out[name] = n
	}
	return out, nil
}

// RowsForProposal loads the proposed-change rows of type T recorded for a
// proposal.
func RowsForProposal[T any](ctx context.Context, s *Store, table, proposalID string) ([]T, error) {
	var rows []T
	err := s.exec(ctx, table, "select", func(db *gorm.DB) error {
		return db.Table(table).Where("proposal_id = ?", proposalID).Find(&rows).Error
	})
	return rows, err
}
