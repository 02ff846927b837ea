package cursor

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stake-plus/geo-sink/src/data/datatest"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/retry"
	"github.com/stake-plus/geo-sink/src/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDBStoreReadEmpty(t *testing.T) {
	s := NewDBStore(storage.New(datatest.Open(t), storage.Options{}))
	pos, err := s.Read(context.Background())
	require.NoError(t, err)
	assert.Nil(t, pos)
}

func TestDBStoreWriteOverwritesSingleton(t *testing.T) {
	db := datatest.Open(t)
	s := NewDBStore(storage.New(db, storage.Options{}))
	ctx := context.Background()

	require.NoError(t, s.Write(ctx, Position{Cursor: "c1", BlockNumber: 10, BlockHash: "0xaa", BlockTimestamp: 1000}))
	require.NoError(t, s.Write(ctx, Position{Cursor: "c2", BlockNumber: 11, BlockHash: "0xbb", BlockTimestamp: 1012}))

	pos, err := s.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Equal(t, Position{Cursor: "c2", BlockNumber: 11, BlockHash: "0xbb", BlockTimestamp: 1012}, *pos)

	var n int64
	require.NoError(t, db.Table("cursors").Count(&n).Error)
	assert.EqualValues(t, 1, n)
}

func TestDBStoreEmptyCursorKeepsBlock(t *testing.T) {
	s := NewDBStore(storage.New(datatest.Open(t), storage.Options{}))
	ctx := context.Background()
	require.NoError(t, s.Write(ctx, Position{BlockNumber: 41}))
	pos, err := s.Read(ctx)
	require.NoError(t, err)
	require.NotNil(t, pos)
	assert.Empty(t, pos.Cursor)
	assert.EqualValues(t, 41, pos.BlockNumber)
}

func TestDBStoreReadRetriesThenFails(t *testing.T) {
	db := datatest.Open(t)
	s := NewDBStore(storage.New(db, storage.Options{
		Retry: retry.Policy{BaseDelay: time.Millisecond, MaxAttempts: 3},
	}))
	require.NoError(t, db.Migrator().DropTable("cursors"))
	before := testutil.ToFloat64(metrics.StoreRetries.WithLabelValues("cursors", "select"))

	pos, err := s.Read(context.Background())
	assert.Nil(t, pos)
	var we *storage.WriteError
	require.ErrorAs(t, err, &we)
	assert.Equal(t, "cursors", we.Table)
	assert.Equal(t, "select", we.Op)
	assert.Equal(t, before+2, testutil.ToFloat64(metrics.StoreRetries.WithLabelValues("cursors", "select")))
}

func TestMemoryStore(t *testing.T) {
	m := &MemoryStore{}
	ctx := context.Background()
	pos, err := m.Read(ctx)
	require.NoError(t, err)
	assert.Nil(t, pos)

	require.NoError(t, m.Write(ctx, Position{Cursor: "x", BlockNumber: 1}))
	pos, err = m.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", pos.Cursor)
	assert.Len(t, m.Writes, 1)
}
