// Package versioning turns an ordered log of triple edits into entity
// versions. State.Apply is the pure fold; Engine persists its writes.
package versioning

import (
	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
)

// Triple is the content of one triple row.
type Triple struct {
	ID            string
	SpaceID       string
	EntityID      string
	AttributeID   string
	ValueType     string
	ValueID       string
	TextValue     *string
	EntityValueID *string
}

// NewTriple derives the triple an action refers to.
func NewTriple(spaceID string, a events.Action) Triple {
	t := Triple{
		ID:          ids.TripleID(spaceID, a.EntityID, a.AttributeID, a.Value.ID),
		SpaceID:     spaceID,
		EntityID:    a.EntityID,
		AttributeID: a.AttributeID,
		ValueType:   a.Value.Type,
		ValueID:     a.Value.ID,
	}
	if a.Value.Type == events.ValueEntity {
		ref := a.Value.ID
		t.EntityValueID = &ref
	} else if a.Value.Value != nil {
		text := *a.Value.Value
		t.TextValue = &text
	}
	return t
}

type WriteKind int

const (
	UpsertTriple WriteKind = iota
	LinkTriple
	UnlinkTriple
	MarkStale
	SetName
	SetDescription
	AddType
	RemoveType
)

func (k WriteKind) String() string {
	switch k {
	case UpsertTriple:
		return "upsert_triple"
	case LinkTriple:
		return "link_triple"
	case UnlinkTriple:
		return "unlink_triple"
	case MarkStale:
		return "mark_stale"
	case SetName:
		return "set_name"
	case SetDescription:
		return "set_description"
	case AddType:
		return "add_type"
	case RemoveType:
		return "remove_type"
	}
	return "unknown"
}

// Write is one side effect of applying an action. Fields not used by Kind
// are zero.
type Write struct {
	Kind      WriteKind
	EntityID  string
	VersionID string
	TripleID  string
	Triple    Triple
	// Text is the new name or description; nil clears it.
	Text   *string
	TypeID string
}

// State is the working snapshot of one entity while a proposal's actions
// are folded into its new version.
type State struct {
	SpaceID   string
	EntityID  string
	VersionID string

	live        map[string]Triple
	name        *string
	description *string
}

// NewState starts a version from the entity's current non-stale triples and
// denormalized name and description.
func NewState(spaceID, entityID, versionID string, current []Triple, name, description *string) *State {
	s := &State{
		SpaceID:     spaceID,
		EntityID:    entityID,
		VersionID:   versionID,
		live:        make(map[string]Triple, len(current)),
		name:        name,
		description: description,
	}
	for _, t := range current {
		s.live[t.ID] = t
	}
	return s
}

// Seed links every current triple to the new version.
func (s *State) Seed() []Write {
	out := make([]Write, 0, len(s.live))
	for _, id := range sortedKeys(s.live) {
		out = append(out, Write{Kind: LinkTriple, EntityID: s.EntityID, VersionID: s.VersionID, TripleID: id})
	}
	return out
}

// Apply folds one action into the snapshot and returns the writes that
// persist it, in the order they must run.
func (s *State) Apply(a events.Action) []Write {
	switch a.Type {
	case events.ActionCreateTriple:
		return s.create(a)
	case events.ActionDeleteTriple:
		return s.delete(a)
	}
	return nil
}

func (s *State) create(a events.Action) []Write {
	t := NewTriple(s.SpaceID, a)
	s.live[t.ID] = t
	out := []Write{
		{Kind: UpsertTriple, EntityID: s.EntityID, VersionID: s.VersionID, TripleID: t.ID, Triple: t},
		{Kind: LinkTriple, EntityID: s.EntityID, VersionID: s.VersionID, TripleID: t.ID},
	}

	switch {
	case a.AttributeID == ids.NameAttribute && isText(t):
		s.name = copyText(t.TextValue)
		out = append(out, Write{Kind: SetName, EntityID: s.EntityID, Text: copyText(s.name)})
	case a.AttributeID == ids.DescriptionAttribute && isText(t):
		s.description = copyText(t.TextValue)
		out = append(out, Write{Kind: SetDescription, EntityID: s.EntityID, Text: copyText(s.description)})
	case a.AttributeID == ids.TypesAttribute:
		out = append(out, Write{Kind: AddType, EntityID: s.EntityID, TypeID: a.Value.ID})
	}
	return out
}

func (s *State) delete(a events.Action) []Write {
	id := ids.TripleID(s.SpaceID, a.EntityID, a.AttributeID, a.Value.ID)
	old, wasLive := s.live[id]
	if !wasLive {
		old = NewTriple(s.SpaceID, a)
	}
	delete(s.live, id)

	out := []Write{
		{Kind: UnlinkTriple, EntityID: s.EntityID, VersionID: s.VersionID, TripleID: id},
		{Kind: MarkStale, EntityID: s.EntityID, TripleID: id},
	}

	switch a.AttributeID {
	case ids.NameAttribute:
		if sameText(s.name, old.TextValue) {
			s.name = s.derive(ids.NameAttribute)
			out = append(out, Write{Kind: SetName, EntityID: s.EntityID, Text: copyText(s.name)})
		}
	case ids.DescriptionAttribute:
		if sameText(s.description, old.TextValue) {
			s.description = s.derive(ids.DescriptionAttribute)
			out = append(out, Write{Kind: SetDescription, EntityID: s.EntityID, Text: copyText(s.description)})
		}
	case ids.TypesAttribute:
		if !s.hasType(a.Value.ID) {
			out = append(out, Write{Kind: RemoveType, EntityID: s.EntityID, TypeID: a.Value.ID})
		}
	}
	return out
}

// derive picks the remaining text triple for attribute with the lowest id.
func (s *State) derive(attribute string) *string {
	for _, id := range sortedKeys(s.live) {
		t := s.live[id]
		if t.AttributeID == attribute && isText(t) {
			return copyText(t.TextValue)
		}
	}
	return nil
}

// hasType reports whether another live triple still asserts typeID.
func (s *State) hasType(typeID string) bool {
	for _, t := range s.live {
		if t.AttributeID == ids.TypesAttribute && t.ValueID == typeID {
			return true
		}
	}
	return false
}

// Name and Description return the denormalized values as of the last action.
func (s *State) Name() *string        { return copyText(s.name) }
func (s *State) Description() *string { return copyText(s.description) }

// Live returns the ids of the triples in the version, sorted.
func (s *State) Live() []string { return sortedKeys(s.live) }

func isText(t Triple) bool {
	return t.ValueType == events.ValueString && t.TextValue != nil
}

func sameText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func copyText(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
