package sink

import (
	"context"
	"encoding/base64"
	"fmt"
	"testing"
	"time"

	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/data/datatest"
	"github.com/stake-plus/geo-sink/src/governance"
	"github.com/stake-plus/geo-sink/src/ids"
	"github.com/stake-plus/geo-sink/src/ipfs"
	"github.com/stake-plus/geo-sink/src/retry"
	"github.com/stake-plus/geo-sink/src/storage"
	"github.com/stake-plus/geo-sink/src/stream"
	"github.com/stake-plus/geo-sink/src/versioning"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	dao     = "0x1111111111111111111111111111111111111111"
	plugin  = "0x2222222222222222222222222222222222222222"
	voting  = "0x3333333333333333333333333333333333333333"
	access  = "0x4444444444444444444444444444444444444444"
	editor  = "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa"
	joining = "0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb"
)

type fixture struct {
	store   *storage.Store
	tracker *governance.Tracker
	handler *Handler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	s := storage.New(datatest.Open(t), storage.Options{
		Retry: retry.Policy{BaseDelay: time.Millisecond, MaxAttempts: 2},
	})
	resolver := ipfs.NewResolver(ipfs.Options{Gateway: "http://127.0.0.1:1/ipfs/", Timeout: time.Second})
	tr := governance.New(s, versioning.NewEngine(s), resolver, governance.Options{RootSpaceAddress: dao})
	return fixture{store: s, tracker: tr, handler: NewHandler(tr)}
}

func inline(doc string) string {
	return "data:application/json;base64," + base64.StdEncoding.EncodeToString([]byte(doc))
}

func clock(n uint64) stream.Clock {
	return stream.Clock{Number: n, ID: fmt.Sprintf("0x%02x", n), Timestamp: int64(n) * 100}
}

func (f fixture) block(t *testing.T, n uint64, output string) {
	t.Helper()
	require.NoError(t, f.handler.HandleBlock(context.Background(), clock(n), []byte(output)))
}

func (f fixture) proposal(t *testing.T, id string) *data.Proposal {
	t.Helper()
	p, err := f.store.ProposalByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, p)
	return p
}

func TestGovernanceScenario(t *testing.T) {
	f := newFixture(t)

	f.block(t, 1, fmt.Sprintf(`{
		"spacesCreated":[{"daoAddress":%q,"spaceAddress":%q}],
		"governancePluginsCreated":[{"daoAddress":%q,"mainVotingAddress":%q,"memberAccessAddress":%q}],
		"editorsAdded":[{"addresses":[%q],"pluginAddress":%q}]
	}`, dao, plugin, dao, voting, access, editor, voting))

	sp, err := f.store.SpaceByID(context.Background(), ids.ChecksumAddress(dao))
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.True(t, sp.IsRootSpace)

	editorDoc := fmt.Sprintf(`{"type":"add_editor","version":"1.0.0","proposalId":"p-editor","userAddress":%q}`, joining)
	contentDoc := fmt.Sprintf(`{"type":"content","name":"Describe","version":"1.0.0","proposalId":"p-content","actions":[
		{"type":"createTriple","entityId":"e1","attributeId":%q,"value":{"type":"string","id":"v1","value":"Entity one"}},
		{"type":"createTriple","entityId":"e1","attributeId":%q,"value":{"type":"string","id":"v2","value":"First entity"}}
	]}`, ids.NameAttribute, ids.DescriptionAttribute)

	f.block(t, 2, fmt.Sprintf(`{"proposalsCreated":[
		{"proposalId":"1","pluginAddress":%q,"creator":%q,"metadataUri":%q,"startTime":"200","endTime":"450"},
		{"proposalId":"2","pluginAddress":%q,"creator":%q,"metadataUri":%q,"startTime":"200","endTime":"450"}
	]}`, voting, editor, inline(editorDoc), voting, editor, inline(contentDoc)))

	assert.Equal(t, data.StatusProposed, f.proposal(t, "p-editor").Status)
	assert.Equal(t, data.StatusProposed, f.proposal(t, "p-content").Status)

	f.block(t, 3, fmt.Sprintf(`{"votesCast":[
		{"onchainProposalId":"1","voter":%q,"voteOption":"2","pluginAddress":%q},
		{"onchainProposalId":"2","voter":%q,"voteOption":"2","pluginAddress":%q}
	]}`, editor, voting, editor, voting))
	assert.Equal(t, data.StatusProposed, f.proposal(t, "p-editor").Status)

	f.block(t, 4, fmt.Sprintf(`{
		"proposalsProcessed":[{"contentUri":%q,"pluginAddress":%q}],
		"proposalsExecuted":[{"proposalId":"1","pluginAddress":%q},{"proposalId":"2","pluginAddress":%q}]
	}`, inline(contentDoc), plugin, voting, voting))

	assert.Equal(t, data.StatusAccepted, f.proposal(t, "p-editor").Status)
	assert.Equal(t, data.StatusAccepted, f.proposal(t, "p-content").Status)

	var editors int64
	require.NoError(t, f.store.DB().Model(&data.SpaceEditor{}).Count(&editors).Error)
	assert.EqualValues(t, 2, editors)

	ent, err := f.store.EntityByID(context.Background(), "e1")
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Equal(t, "Entity one", *ent.Name)
	assert.Equal(t, "First entity", *ent.Description)

	last := f.handler.Last()
	require.NotNil(t, last)
	assert.Equal(t, uint64(4), last.Number)
	assert.Equal(t, 3, last.Events)
}

func TestExpirySweepRunsEveryBlock(t *testing.T) {
	f := newFixture(t)
	doc := fmt.Sprintf(`{"type":"add_member","version":"1.0.0","proposalId":"p-member","userAddress":%q}`, joining)

	f.block(t, 1, fmt.Sprintf(`{
		"spacesCreated":[{"daoAddress":%q,"spaceAddress":%q}],
		"governancePluginsCreated":[{"daoAddress":%q,"mainVotingAddress":%q,"memberAccessAddress":%q}]
	}`, dao, plugin, dao, voting, access))
	f.block(t, 2, fmt.Sprintf(`{"proposalsCreated":[
		{"proposalId":"1","pluginAddress":%q,"creator":%q,"metadataUri":%q,"startTime":"200","endTime":"250"}
	]}`, access, editor, inline(doc)))

	f.block(t, 3, ``)
	assert.Equal(t, data.StatusRejected, f.proposal(t, "p-member").Status)
	assert.Equal(t, 1, f.handler.Last().Rejected)
}

func TestMalformedOutputIsSkipped(t *testing.T) {
	f := newFixture(t)
	f.block(t, 1, `not json`)
	f.block(t, 2, `{"unknownKey":[1,2]}`)
	f.block(t, 3, `{"spacesCreated":[{"daoAddress":1}]}`)

	var spaces int64
	require.NoError(t, f.store.DB().Model(&data.Space{}).Count(&spaces).Error)
	assert.Zero(t, spaces)
	assert.Equal(t, uint64(3), f.handler.Last().Number)
}

func TestLegacyEntriesThroughConsumer(t *testing.T) {
	f := newFixture(t)
	space := "0x5555555555555555555555555555555555555555"
	entry := fmt.Sprintf(`{"type":"content","version":"0.0.1","actions":[
		{"type":"createTriple","entityId":"legacy-e","attributeId":%q,"value":{"type":"string","id":"n1","value":"Legacy"}}
	]}`, ids.NameAttribute)
	output := fmt.Sprintf(`{"entries":[{"id":"en-1","index":"0","uri":%q,"author":%q,"space":%q}]}`,
		inline(entry), editor, space)

	cur := cursor.NewDBStore(f.store)
	src := &stream.SliceSource{Messages: []stream.Message{
		{Type: stream.MessageData, Cursor: "c1", Clock: clock(1), Output: []byte(output)},
		{Type: stream.MessageData, Cursor: "c2", Clock: clock(2)},
	}}
	c := stream.NewConsumer(stream.Options{Source: src, Cursors: cur, Handler: f.handler})
	start := uint64(1)
	require.NoError(t, c.RunWithRetry(context.Background(), &start))

	pos, err := cur.Read(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "c2", pos.Cursor)

	ent, err := f.store.EntityByID(context.Background(), "legacy-e")
	require.NoError(t, err)
	require.NotNil(t, ent)
	assert.Equal(t, "Legacy", *ent.Name)
	assert.Equal(t, data.StatusAccepted, f.proposal(t, ids.LegacyProposalID("en-1")).Status)
}

func TestBootstrap(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	blk := governance.Block{Number: 0, Timestamp: 1}

	require.NoError(t, Bootstrap(ctx, f.store, f.tracker, ids.RootSpaceAddress, blk))
	require.NoError(t, Bootstrap(ctx, f.store, f.tracker, ids.RootSpaceAddress, blk))

	sp, err := f.store.SpaceByID(ctx, ids.ChecksumAddress(ids.RootSpaceAddress))
	require.NoError(t, err)
	require.NotNil(t, sp)
	assert.True(t, sp.IsRootSpace)

	for id, name := range ids.SystemNames {
		ent, err := f.store.EntityByID(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, ent, id)
		require.NotNil(t, ent.Name)
		assert.Equal(t, name, *ent.Name)
	}

	types, err := f.store.EntityTypes(ctx, ids.NameAttribute)
	require.NoError(t, err)
	assert.Equal(t, []string{ids.AttributeType}, types)
	types, err = f.store.EntityTypes(ctx, ids.PersonType)
	require.NoError(t, err)
	assert.Equal(t, []string{ids.SchemaType}, types)

	p := f.proposal(t, BootstrapProposalID)
	assert.Equal(t, ids.GeoBotAddress, p.CreatedByID)
	assert.Equal(t, data.StatusAccepted, p.Status)
}
