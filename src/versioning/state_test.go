package versioning

import (
	"testing"

	"github.com/stake-plus/geo-sink/src/events"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const space = "0x0000000000000000000000000000000000000001"

func text(s string) *string { return &s }

func create(entity, attribute, valueID, literal string) events.Action {
	return events.Action{
		Type: events.ActionCreateTriple, EntityID: entity, AttributeID: attribute,
		Value: events.Value{Type: events.ValueString, ID: valueID, Value: text(literal)},
	}
}

func remove(entity, attribute, valueID string) events.Action {
	return events.Action{
		Type: events.ActionDeleteTriple, EntityID: entity, AttributeID: attribute,
		Value: events.Value{Type: events.ValueString, ID: valueID},
	}
}

func typeAction(kind, entity, typeID string) events.Action {
	return events.Action{
		Type: kind, EntityID: entity, AttributeID: ids.TypesAttribute,
		Value: events.Value{Type: events.ValueEntity, ID: typeID},
	}
}

func fold(s *State, actions ...events.Action) []Write {
	var out []Write
	for _, a := range actions {
		out = append(out, s.Apply(a)...)
	}
	return out
}

func kinds(ws []Write) []WriteKind {
	out := make([]WriteKind, len(ws))
	for i, w := range ws {
		out[i] = w.Kind
	}
	return out
}

func TestTripleIDIsContentDerived(t *testing.T) {
	a := NewTriple(space, create("e1", "attr", "v1", "Foo"))
	b := NewTriple(space, create("e1", "attr", "v1", "Bar"))
	c := NewTriple(space, create("e1", "attr", "v2", "Foo"))
	assert.Equal(t, a.ID, b.ID)
	assert.NotEqual(t, a.ID, c.ID)
	assert.Equal(t, ids.TripleID(space, "e1", "attr", "v1"), a.ID)
}

func TestEntityValueTriple(t *testing.T) {
	tr := NewTriple(space, typeAction(events.ActionCreateTriple, "e1", "type-1"))
	require.NotNil(t, tr.EntityValueID)
	assert.Equal(t, "type-1", *tr.EntityValueID)
	assert.Nil(t, tr.TextValue)
}

func TestSnapshotCreateDeleteCreate(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	fold(s,
		create("e1", "attr", "A", "a"),
		create("e1", "attr", "B", "b"),
		remove("e1", "attr", "A"),
		create("e1", "attr", "C", "c"),
	)
	want := []string{
		ids.TripleID(space, "e1", "attr", "B"),
		ids.TripleID(space, "e1", "attr", "C"),
	}
	assert.ElementsMatch(t, want, s.Live())
}

func TestCreateThenDeleteEmitsOrderedWrites(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	ws := fold(s, create("e1", "attr", "A", "a"), remove("e1", "attr", "A"))
	assert.Equal(t, []WriteKind{UpsertTriple, LinkTriple, UnlinkTriple, MarkStale}, kinds(ws))
	assert.Empty(t, s.Live())
}

func TestSeedLinksCurrentTriples(t *testing.T) {
	cur := []Triple{
		NewTriple(space, create("e1", "x", "2", "two")),
		NewTriple(space, create("e1", "x", "1", "one")),
	}
	s := NewState(space, "e1", "v2", cur, nil, nil)
	seed := s.Seed()
	require.Len(t, seed, 2)
	for _, w := range seed {
		assert.Equal(t, LinkTriple, w.Kind)
		assert.Equal(t, "v2", w.VersionID)
	}
	assert.Less(t, seed[0].TripleID, seed[1].TripleID)
}

func TestNameIsDenormalized(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	ws := s.Apply(create("e1", ids.NameAttribute, "n1", "Foo"))
	require.Len(t, ws, 3)
	assert.Equal(t, SetName, ws[2].Kind)
	assert.Equal(t, "Foo", *ws[2].Text)
	assert.Equal(t, "Foo", *s.Name())
	assert.Nil(t, s.Description())
}

func TestDescriptionDoesNotTouchName(t *testing.T) {
	s := NewState(space, "e1", "v", nil, text("Keep"), nil)
	ws := s.Apply(create("e1", ids.DescriptionAttribute, "d1", "About"))
	for _, w := range ws {
		assert.NotEqual(t, SetName, w.Kind)
	}
	assert.Equal(t, "Keep", *s.Name())
	assert.Equal(t, "About", *s.Description())
}

func TestDeletingNameRederivesLowestID(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	fold(s,
		create("e1", ids.NameAttribute, "n1", "First"),
		create("e1", ids.NameAttribute, "n2", "Second"),
		create("e1", ids.NameAttribute, "n3", "Third"),
	)
	require.Equal(t, "Third", *s.Name())

	ws := s.Apply(remove("e1", ids.NameAttribute, "n3"))
	require.Equal(t, SetName, ws[len(ws)-1].Kind)

	first := ids.TripleID(space, "e1", ids.NameAttribute, "n1")
	second := ids.TripleID(space, "e1", ids.NameAttribute, "n2")
	want := "First"
	if second < first {
		want = "Second"
	}
	assert.Equal(t, want, *s.Name())
}

func TestDeletingOnlyNameClearsIt(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	fold(s, create("e1", ids.NameAttribute, "n1", "Foo"))
	ws := s.Apply(remove("e1", ids.NameAttribute, "n1"))
	last := ws[len(ws)-1]
	assert.Equal(t, SetName, last.Kind)
	assert.Nil(t, last.Text)
	assert.Nil(t, s.Name())
}

func TestDeletingOtherNameKeepsCurrent(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	fold(s,
		create("e1", ids.NameAttribute, "n1", "Old"),
		create("e1", ids.NameAttribute, "n2", "New"),
	)
	ws := s.Apply(remove("e1", ids.NameAttribute, "n1"))
	assert.Equal(t, []WriteKind{UnlinkTriple, MarkStale}, kinds(ws))
	assert.Equal(t, "New", *s.Name())
}

func TestTypesMaintainMembership(t *testing.T) {
	s := NewState(space, "e1", "v", nil, nil, nil)
	ws := s.Apply(typeAction(events.ActionCreateTriple, "e1", "person"))
	assert.Equal(t, AddType, ws[len(ws)-1].Kind)
	assert.Equal(t, "person", ws[len(ws)-1].TypeID)

	ws = s.Apply(typeAction(events.ActionDeleteTriple, "e1", "person"))
	assert.Equal(t, RemoveType, ws[len(ws)-1].Kind)
}

func TestTypeKeptWhileAnotherSpaceAssertsIt(t *testing.T) {
	other := NewTriple("0xother", typeAction(events.ActionCreateTriple, "e1", "person"))
	s := NewState(space, "e1", "v", []Triple{other}, nil, nil)
	s.Apply(typeAction(events.ActionCreateTriple, "e1", "person"))
	ws := s.Apply(typeAction(events.ActionDeleteTriple, "e1", "person"))
	for _, w := range ws {
		assert.NotEqual(t, RemoveType, w.Kind)
	}
}

func TestBuildPlanSeedsOncePerEntity(t *testing.T) {
	existing := NewTriple(space, create("e1", "x", "old", "old"))
	in := Input{
		SpaceID:    space,
		ProposalID: "p1",
		Actions: []events.Action{
			create("e1", "x", "a", "a"),
			create("e2", "x", "b", "b"),
			create("e1", "x", "c", "c"),
		},
	}
	p := BuildPlan(in, map[string]Snapshot{"e1": {Triples: []Triple{existing}}})
	assert.Equal(t, []string{"e1", "e2"}, p.Entities)
	assert.Equal(t, ids.VersionID("e1", "p1"), p.Versions["e1"])
	assert.Equal(t, []WriteKind{
		LinkTriple,
		UpsertTriple, LinkTriple,
		UpsertTriple, LinkTriple,
		UpsertTriple, LinkTriple,
	}, kinds(p.Writes))
	assert.Equal(t, existing.ID, p.Writes[0].TripleID)
	assert.Len(t, p.States["e1"].Live(), 3)
}

func TestCoalesceGroupsSetLikeRuns(t *testing.T) {
	runs := coalesce([]Write{
		{Kind: LinkTriple}, {Kind: LinkTriple},
		{Kind: UpsertTriple}, {Kind: LinkTriple},
		{Kind: UnlinkTriple}, {Kind: UnlinkTriple},
	})
	require.Len(t, runs, 5)
	assert.Len(t, runs[0], 2)
	assert.Len(t, runs[3], 1)
	assert.Len(t, runs[4], 1)
}
