package sink

import (
	"context"
	"sort"

	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/governance"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/storage"
)

// BootstrapProposalID identifies the proposal that seeds the root space.
var BootstrapProposalID = ids.LegacyProposalID("bootstrap:root-space")

var (
	attributeEntities = []string{ids.NameAttribute, ids.DescriptionAttribute, ids.TypesAttribute, ids.ImageAttribute}
	typeEntities      = []string{ids.AttributeType, ids.SchemaType, ids.PersonType}
)

// BootstrapActions names every system entity and types the ontology's
// attributes and types.
func BootstrapActions() []events.Action {
	entities := make([]string, 0, len(ids.SystemNames))
	for id := range ids.SystemNames {
		entities = append(entities, id)
	}
	sort.Strings(entities)

	var actions []events.Action
	for _, id := range entities {
		name := ids.SystemNames[id]
		actions = append(actions, events.Action{
			Type:        events.ActionCreateTriple,
			EntityID:    id,
			AttributeID: ids.NameAttribute,
			Value:       events.Value{Type: events.ValueString, ID: "bootstrap-name-" + id, Value: &name},
		})
	}
	typed := func(entity, typeID string) events.Action {
		return events.Action{
			Type:        events.ActionCreateTriple,
			EntityID:    entity,
			AttributeID: ids.TypesAttribute,
			Value:       events.Value{Type: events.ValueEntity, ID: typeID},
		}
	}
	for _, id := range attributeEntities {
		actions = append(actions, typed(id, ids.AttributeType))
	}
	for _, id := range typeEntities {
		actions = append(actions, typed(id, ids.SchemaType))
	}
	return actions
}

// Bootstrap writes the root space and applies the system ontology as an
// accepted proposal authored by the geo bot. Running it twice is harmless.
func Bootstrap(ctx context.Context, store *storage.Store, tracker *governance.Tracker, rootAddress string, blk governance.Block) error {
	root := ids.ChecksumAddress(rootAddress)
	space := data.Space{
		ID:             root,
		Type:           data.SpacePublic,
		IsRootSpace:    true,
		CreatedAtBlock: blk.Number,
	}
	if err := storage.UpsertChunked(ctx, store, "spaces", []data.Space{space},
		[]string{"id"}, []string{"is_root_space"}); err != nil {
		return err
	}

	name := "Bootstrap root space"
	res, err := tracker.Publish(ctx, data.Proposal{
		ID:                BootstrapProposalID,
		OnchainProposalID: "-1",
		PluginAddress:     root,
		SpaceID:           root,
		Name:              &name,
		CreatedByID:       ids.GeoBotAddress,
		StartTime:         blk.Timestamp,
		EndTime:           blk.Timestamp,
		CreatedAt:         blk.Timestamp,
		CreatedAtBlock:    blk.Number,
	}, BootstrapActions(), blk)
	if err != nil {
		return err
	}
	logging.Info().Str("space", root).Int("entities", len(res.Versions)).Msg("root space bootstrapped")
	return nil
}
