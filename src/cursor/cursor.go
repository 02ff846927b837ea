// Package cursor persists the single stream checkpoint.
package cursor

import (
	"context"

	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/storage"
)

// Position is the durable stream position.
type Position struct {
	Cursor         string
	BlockNumber    uint64
	BlockHash      string
	BlockTimestamp int64
}

// Store reads and writes the checkpoint. Read returns nil when none exists.
type Store interface {
	Read(ctx context.Context) (*Position, error)
	Write(ctx context.Context, pos Position) error
}

type DBStore struct {
	store *storage.Store
}

func NewDBStore(s *storage.Store) *DBStore {
	return &DBStore{store: s}
}

func (d *DBStore) Read(ctx context.Context) (*Position, error) {
	c, err := d.store.Cursor(ctx)
	if err != nil || c == nil {
		return nil, err
	}
	return &Position{
		Cursor:         c.Cursor,
		BlockNumber:    c.BlockNumber,
		BlockHash:      c.BlockHash,
		BlockTimestamp: c.BlockTimestamp,
	}, nil
}

// Write upserts the singleton row.
func (d *DBStore) Write(ctx context.Context, pos Position) error {
	row := data.Cursor{
		ID:             0,
		Cursor:         pos.Cursor,
		BlockNumber:    pos.BlockNumber,
		BlockHash:      pos.BlockHash,
		BlockTimestamp: pos.BlockTimestamp,
	}
	err := storage.UpsertChunked(ctx, d.store, "cursors", []data.Cursor{row},
		[]string{"id"}, []string{"cursor", "block_number", "block_hash", "block_timestamp"})
	if err != nil {
		return err
	}
	metrics.CursorBlock.Set(float64(pos.BlockNumber))
	return nil
}

// MemoryStore keeps the checkpoint in memory and records every write.
type MemoryStore struct {
	pos    *Position
	Writes []Position
	// FailWrites makes Write return the error when set.
	FailWrites error
}

func (m *MemoryStore) Read(context.Context) (*Position, error) {
	if m.pos == nil {
		return nil, nil
	}
	p := *m.pos
	return &p, nil
}

func (m *MemoryStore) Write(_ context.Context, pos Position) error {
	if m.FailWrites != nil {
		return m.FailWrites
	}
	m.pos = &pos
	m.Writes = append(m.Writes, pos)
	return nil
}
