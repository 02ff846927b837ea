package versioning

import (
	"sort"

	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
)

// Input is one proposal's content, already resolved.
type Input struct {
	SpaceID    string
	ProposalID string
	CreatedBy  string
	Block      Block
	Actions    []events.Action
}

type Block struct {
	Number    uint64
	Timestamp int64
}

// Snapshot is an entity's persisted state before the proposal.
type Snapshot struct {
	Triples     []Triple
	Name        *string
	Description *string
}

type Plan struct {
	// Entities lists the touched entities in first-touch order.
	Entities []string
	Versions map[string]string
	States   map[string]*State
	Writes   []Write
}

// Entities returns the distinct entity ids of actions in first-touch order.
func Entities(actions []events.Action) []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range actions {
		if !seen[a.EntityID] {
			seen[a.EntityID] = true
			out = append(out, a.EntityID)
		}
	}
	return out
}

// BuildPlan folds the proposal's actions strictly in order. The first time an
// entity is touched its current triples are linked to the new version before
// the action's own writes.
func BuildPlan(in Input, snapshots map[string]Snapshot) Plan {
	p := Plan{
		Versions: make(map[string]string),
		States:   make(map[string]*State),
	}
	for _, a := range in.Actions {
		st, ok := p.States[a.EntityID]
		if !ok {
			snap := snapshots[a.EntityID]
			versionID := ids.VersionID(a.EntityID, in.ProposalID)
			st = NewState(in.SpaceID, a.EntityID, versionID, snap.Triples, snap.Name, snap.Description)
			p.States[a.EntityID] = st
			p.Versions[a.EntityID] = versionID
			p.Entities = append(p.Entities, a.EntityID)
			p.Writes = append(p.Writes, st.Seed()...)
		}
		p.Writes = append(p.Writes, st.Apply(a)...)
	}
	return p
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
