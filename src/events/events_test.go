package events

import (
	"context"
	"errors"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEmpty(t *testing.T) {
	b, err := Parse(nil)
	require.NoError(t, err)
	assert.True(t, b.Empty())

	b, err = Parse([]byte(`{}`))
	require.NoError(t, err)
	assert.True(t, b.Empty())
}

func TestParseRejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestParseMatchesMultipleKinds(t *testing.T) {
	payload := `{
		"votesCast": [{"onchainProposalId":"1","voter":"0xa","voteOption":"2","pluginAddress":"0xp"}],
		"spacesCreated": [{"daoAddress":"0xdao","spaceAddress":"0xspace"}],
		"editorsAdded": [],
		"somethingNew": [{"x":1}]
	}`
	b, err := Parse([]byte(payload))
	require.NoError(t, err)
	assert.Equal(t, []Kind{KindSpacesCreated, KindVotesCast}, b.Kinds())
	assert.False(t, b.Matched(KindEditorsAdded))
	require.Len(t, b.SpacesCreated, 1)
	assert.Equal(t, "0xdao", b.SpacesCreated[0].DAOAddress)
	require.Len(t, b.VotesCast, 1)
	assert.Equal(t, VoteOptionYes, b.VotesCast[0].VoteOption)
}

func TestParseSkipsInvalidElements(t *testing.T) {
	payload := `{"proposalsCreated": [
		{"proposalId":"1","pluginAddress":"0xp","creator":"0xc","metadataUri":"ipfs://x","startTime":"10","endTime":"20"},
		{"proposalId":"2","pluginAddress":"0xp","creator":"0xc","metadataUri":"ipfs://y","startTime":"soon","endTime":"20"},
		{"pluginAddress":"0xp"}
	]}`
	b, err := Parse([]byte(payload))
	require.NoError(t, err)
	assert.True(t, b.Matched(KindProposalsCreated))
	require.Len(t, b.ProposalsCreated, 1)
	assert.Equal(t, "1", b.ProposalsCreated[0].ProposalID)
	assert.Equal(t, 2, b.Skipped[KindProposalsCreated])
}

func TestParseSubspaceChangeTypeSeparatesKinds(t *testing.T) {
	payload := `{
		"subspacesAdded": [{"subspace":"0xs","pluginAddress":"0xp","changeType":"removed"}],
		"subspacesRemoved": [{"subspace":"0xs","pluginAddress":"0xp","changeType":"removed"}]
	}`
	b, err := Parse([]byte(payload))
	require.NoError(t, err)
	assert.Empty(t, b.SubspacesAdded)
	assert.Equal(t, 1, b.Skipped[KindSubspacesAdded])
	assert.Len(t, b.SubspacesRemoved, 1)
}

func TestParseRoleChangesNeedExactlyOne(t *testing.T) {
	role := `{"id":"1","role":"MEMBER","account":"0xa","sender":"0xs","space":"0xsp"}`
	payload := `{"roleChanges": [
		{"granted": ` + role + `},
		{"revoked": ` + role + `},
		{"granted": ` + role + `, "revoked": ` + role + `},
		{}
	]}`
	b, err := Parse([]byte(payload))
	require.NoError(t, err)
	require.Len(t, b.RoleChanges, 2)
	assert.NotNil(t, b.RoleChanges[0].Granted)
	assert.NotNil(t, b.RoleChanges[1].Revoked)
	assert.Equal(t, 2, b.Skipped[KindRoleChanges])
}

func TestRouterDispatchOrder(t *testing.T) {
	payload := `{
		"proposalsExecuted": [{"proposalId":"1","pluginAddress":"0xp"}],
		"editorsAdded": [{"addresses":["0xa"],"pluginAddress":"0xp"}],
		"spacesCreated": [{"daoAddress":"0xdao","spaceAddress":"0xspace"}]
	}`
	b, err := Parse([]byte(payload))
	require.NoError(t, err)

	var got []Kind
	r := NewRouter()
	for _, k := range Order {
		k := k
		r.Handle(k, func(context.Context, *Batch) error {
			got = append(got, k)
			return nil
		})
	}
	require.NoError(t, r.Dispatch(context.Background(), b))
	assert.Equal(t, []Kind{KindSpacesCreated, KindEditorsAdded, KindProposalsExecuted}, got)
}

func TestRouterStopsOnError(t *testing.T) {
	b, err := Parse([]byte(`{
		"spacesCreated": [{"daoAddress":"0xdao","spaceAddress":"0xspace"}],
		"votesCast": [{"onchainProposalId":"1","voter":"0xa","voteOption":"2","pluginAddress":"0xp"}]
	}`))
	require.NoError(t, err)

	boom := errors.New("boom")
	votes := false
	r := NewRouter()
	r.Handle(KindSpacesCreated, func(context.Context, *Batch) error { return boom })
	r.Handle(KindVotesCast, func(context.Context, *Batch) error { votes = true; return nil })

	err = r.Dispatch(context.Background(), b)
	assert.ErrorIs(t, err, boom)
	assert.False(t, votes)
}

func TestDecodeContentFiltersActions(t *testing.T) {
	doc := `{
		"type": "CONTENT",
		"version": "1.0.0",
		"proposalId": "p1",
		"name": "Edit",
		"actions": [
			{"type":"createTriple","entityId":"e1","attributeId":"a1","value":{"type":"string","id":"v1","value":"Foo"}},
			{"type":"createTriple","entityId":"","attributeId":"a1","value":{"type":"string","id":"v2","value":"Bar"}},
			{"type":"renameTriple","entityId":"e1","attributeId":"a1","value":{"type":"string","id":"v3"}},
			{"type":"deleteTriple","entityId":"e1","attributeId":"a2","value":{"type":"entity","id":"e2"}},
			{"type":"createTriple","entityId":"e1","attributeId":"a3","value":{"type":"string","id":"","value":""}}
		]
	}`
	p, err := DecodeContent([]byte(doc))
	require.NoError(t, err)
	assert.Equal(t, "content", p.Type)
	assert.Equal(t, "p1", p.ProposalID)
	require.Len(t, p.Actions, 2)
	assert.Equal(t, "Foo", p.Actions[0].Value.Literal())
	assert.Equal(t, ActionDeleteTriple, p.Actions[1].Type)
	assert.Equal(t, "", p.Actions[1].Value.Literal())
	assert.Equal(t, 3, p.SkippedActions)
}

func TestDecodeMembershipAndSubspace(t *testing.T) {
	m, err := DecodeMembership([]byte(`{"type":"ADD_EDITOR","version":"1","proposalId":"p2","userAddress":"0xabc"}`))
	require.NoError(t, err)
	assert.Equal(t, "add_editor", m.Type)
	assert.Equal(t, "0xabc", m.UserAddress)

	_, err = DecodeMembership([]byte(`{"type":"add_editor","version":"1","proposalId":"p2"}`))
	assert.Error(t, err)

	s, err := DecodeSubspace([]byte(`{"type":"add_subspace","version":"1","proposalId":"p3","subspace":"0xsub"}`))
	require.NoError(t, err)
	assert.Equal(t, "0xsub", s.Subspace)
}

func TestDecodeEntryContent(t *testing.T) {
	raw, err := json.Marshal(map[string]interface{}{
		"type":    "root",
		"version": "1.0.0",
		"name":    "Legacy",
		"actions": []interface{}{
			map[string]interface{}{"type": "createTriple", "entityId": "e", "attributeId": "a", "value": map[string]interface{}{"type": "number", "id": "n1", "value": "42"}},
			"garbage",
		},
	})
	require.NoError(t, err)
	c, err := DecodeEntryContent(raw)
	require.NoError(t, err)
	require.Len(t, c.Actions, 1)
	assert.Equal(t, 1, c.SkippedActions)
	assert.Equal(t, "Legacy", *c.Name)
}
