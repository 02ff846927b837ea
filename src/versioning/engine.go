package versioning

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/storage"
)

// Engine applies accepted content to the store.
type Engine struct {
	store *storage.Store
	log   zerolog.Logger
}

func NewEngine(s *storage.Store) *Engine {
	return &Engine{store: s, log: logging.Component("versioning")}
}

type Result struct {
	// Versions maps each touched entity to its new version id.
	Versions map[string]string
	Writes   int
}

// Apply loads the touched entities, persists their entity and version rows,
// then runs the planned writes in order. Re-applying the same input leaves
// the store unchanged.
func (e *Engine) Apply(ctx context.Context, in Input) (*Result, error) {
	entities := Entities(in.Actions)
	if len(entities) == 0 {
		return &Result{Versions: map[string]string{}}, nil
	}

	snapshots := make(map[string]Snapshot, len(entities))
	for _, id := range entities {
		snap, err := e.snapshot(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load entity %s: %w", id, err)
		}
		snapshots[id] = snap
	}

	plan := BuildPlan(in, snapshots)
	if err := e.persistVersions(ctx, in, plan); err != nil {
		return nil, err
	}
	for _, run := range coalesce(plan.Writes) {
		if err := e.execute(ctx, in, run); err != nil {
			return nil, fmt.Errorf("%s: %w", run[0].Kind, err)
		}
	}
	if err := e.setCurrent(ctx, plan); err != nil {
		return nil, err
	}

	e.log.Debug().Str("proposal_id", in.ProposalID).Int("entities", len(entities)).
		Int("actions", len(in.Actions)).Int("writes", len(plan.Writes)).Msg("applied content")
	return &Result{Versions: plan.Versions, Writes: len(plan.Writes)}, nil
}

func (e *Engine) snapshot(ctx context.Context, entityID string) (Snapshot, error) {
	rows, err := e.store.NonStaleTriples(ctx, entityID)
	if err != nil {
		return Snapshot{}, err
	}
	ent, err := e.store.EntityByID(ctx, entityID)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{Triples: make([]Triple, len(rows))}
	for i, r := range rows {
		snap.Triples[i] = Triple{
			ID:            r.ID,
			SpaceID:       r.SpaceID,
			EntityID:      r.EntityID,
			AttributeID:   r.AttributeID,
			ValueType:     r.ValueType,
			ValueID:       r.ValueID,
			TextValue:     r.TextValue,
			EntityValueID: r.EntityValueID,
		}
	}
	if ent != nil {
		snap.Name = ent.Name
		snap.Description = ent.Description
	}
	return snap, nil
}

// persistVersions writes entity and version rows, which join rows depend on.
func (e *Engine) persistVersions(ctx context.Context, in Input, plan Plan) error {
	entities := make([]data.Entity, 0, len(plan.Entities))
	versions := make([]data.Version, 0, len(plan.Entities))
	for _, id := range plan.Entities {
		entities = append(entities, data.Entity{
			ID:             id,
			CreatedByID:    in.CreatedBy,
			CreatedAt:      in.Block.Timestamp,
			CreatedAtBlock: in.Block.Number,
			UpdatedAt:      in.Block.Timestamp,
			UpdatedAtBlock: in.Block.Number,
		})
		versions = append(versions, data.Version{
			ID:             plan.Versions[id],
			EntityID:       id,
			ProposalID:     in.ProposalID,
			SpaceID:        in.SpaceID,
			CreatedByID:    in.CreatedBy,
			CreatedAt:      in.Block.Timestamp,
			CreatedAtBlock: in.Block.Number,
		})
	}
	if err := storage.UpsertChunked(ctx, e.store, "entities", entities,
		[]string{"id"}, []string{"updated_at", "updated_at_block"}); err != nil {
		return err
	}
	return storage.UpsertChunked(ctx, e.store, "versions", versions, []string{"id"}, nil)
}

func (e *Engine) setCurrent(ctx context.Context, plan Plan) error {
	rows := make([]data.CurrentVersion, 0, len(plan.Entities))
	for _, id := range plan.Entities {
		rows = append(rows, data.CurrentVersion{EntityID: id, VersionID: plan.Versions[id]})
	}
	return storage.UpsertChunked(ctx, e.store, "current_versions", rows, []string{"entity_id"}, []string{"version_id"})
}

// coalesce groups consecutive writes of a set-like kind so each group is one
// statement. Other kinds stay one write per group.
func coalesce(writes []Write) [][]Write {
	var out [][]Write
	for _, w := range writes {
		n := len(out)
		if n > 0 && batchable(w.Kind) && out[n-1][0].Kind == w.Kind {
			out[n-1] = append(out[n-1], w)
			continue
		}
		out = append(out, []Write{w})
	}
	return out
}

func batchable(k WriteKind) bool {
	return k == UpsertTriple || k == LinkTriple || k == AddType
}

func (e *Engine) execute(ctx context.Context, in Input, run []Write) error {
	w := run[0]
	switch w.Kind {
	case UpsertTriple:
		seen := make(map[string]int, len(run))
		rows := make([]data.Triple, 0, len(run))
		for _, w := range run {
			t := w.Triple
			row := data.Triple{
				ID:             t.ID,
				SpaceID:        t.SpaceID,
				EntityID:       t.EntityID,
				AttributeID:    t.AttributeID,
				ValueType:      t.ValueType,
				ValueID:        t.ValueID,
				TextValue:      t.TextValue,
				EntityValueID:  t.EntityValueID,
				IsStale:        false,
				CreatedAt:      in.Block.Timestamp,
				CreatedAtBlock: in.Block.Number,
			}
			if i, ok := seen[t.ID]; ok {
				rows[i] = row
				continue
			}
			seen[t.ID] = len(rows)
			rows = append(rows, row)
		}
		return storage.UpsertChunked(ctx, e.store, "triples", rows, []string{"id"}, []string{"is_stale"})

	case LinkTriple:
		seen := make(map[string]bool, len(run))
		rows := make([]data.TripleVersion, 0, len(run))
		for _, w := range run {
			key := w.TripleID + "/" + w.VersionID
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, data.TripleVersion{TripleID: w.TripleID, VersionID: w.VersionID})
		}
		return storage.UpsertChunked(ctx, e.store, "triple_versions", rows, []string{"triple_id", "version_id"}, nil)

	case UnlinkTriple:
		return e.store.DeleteWhere(ctx, "triple_versions", &data.TripleVersion{},
			"triple_id = ? AND version_id = ?", w.TripleID, w.VersionID)

	case MarkStale:
		return e.store.UpdateWhere(ctx, "triples", &data.Triple{},
			map[string]interface{}{"is_stale": true}, "id = ?", w.TripleID)

	case SetName:
		return e.store.UpdateWhere(ctx, "entities", &data.Entity{},
			map[string]interface{}{"name": w.Text}, "id = ?", w.EntityID)

	case SetDescription:
		return e.store.UpdateWhere(ctx, "entities", &data.Entity{},
			map[string]interface{}{"description": w.Text}, "id = ?", w.EntityID)

	case AddType:
		seen := make(map[string]bool, len(run))
		rows := make([]data.EntityType, 0, len(run))
		for _, w := range run {
			key := w.EntityID + "/" + w.TypeID
			if seen[key] {
				continue
			}
			seen[key] = true
			rows = append(rows, data.EntityType{
				EntityID:       w.EntityID,
				TypeID:         w.TypeID,
				CreatedAt:      in.Block.Timestamp,
				CreatedAtBlock: in.Block.Number,
			})
		}
		return storage.UpsertChunked(ctx, e.store, "entity_types", rows, []string{"entity_id", "type_id"}, nil)

	case RemoveType:
		return e.store.DeleteWhere(ctx, "entity_types", &data.EntityType{},
			"entity_id = ? AND type_id = ?", w.EntityID, w.TypeID)
	}
	return fmt.Errorf("unknown write kind %d", w.Kind)
}
