// Package storage is the retrying write path and the typed read queries
// shared by the sink's handlers.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/logging"
	"github.com/stake-plus/geo-sink/src/metrics"
	"github.com/stake-plus/geo-sink/src/retry"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const DefaultChunkSize = 500

type Options struct {
	ChunkSize int
	Retry     retry.Policy
}

type Store struct {
	db        *gorm.DB
	chunkSize int
	policy    retry.Policy
	log       zerolog.Logger
}

func New(db *gorm.DB, opts Options) *Store {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = DefaultChunkSize
	}
	if opts.Retry.MaxAttempts <= 0 && opts.Retry.MaxElapsed <= 0 {
		opts.Retry = retry.Default()
	}
	return &Store{
		db:        db,
		chunkSize: opts.ChunkSize,
		policy:    opts.Retry,
		log:       logging.Component("storage"),
	}
}

// DB exposes the underlying handle for callers that need raw access.
func (s *Store) DB() *gorm.DB { return s.db }

// WriteError reports a store operation that failed after retries.
type WriteError struct {
	Table string
	Op    string
	Err   error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Table, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

func isPermanent(err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, gorm.ErrRecordNotFound) ||
		errors.Is(err, gorm.ErrMissingWhereClause) ||
		errors.Is(err, gorm.ErrInvalidData) ||
		errors.Is(err, gorm.ErrInvalidField) ||
		errors.Is(err, gorm.ErrModelValueRequired)
}

// exec runs fn under the retry policy and wraps a final failure in WriteError.
func (s *Store) exec(ctx context.Context, table, op string, fn func(db *gorm.DB) error) error {
	p := s.policy
	p.Notify = func(attempt int, err error, wait time.Duration) {
		metrics.StoreRetries.WithLabelValues(table, op).Inc()
		s.log.Warn().Err(err).Str("table", table).Str("op", op).
			Int("attempt", attempt).Dur("wait", wait).Msg("store operation failed, retrying")
	}

	err := retry.Do(ctx, p, func(ctx context.Context) error {
		err := fn(s.db.WithContext(ctx))
		if err != nil && isPermanent(err) {
			return retry.Permanent(err)
		}
		return err
	})
	if err != nil {
		metrics.StoreFailures.WithLabelValues(table, op).Inc()
		return &WriteError{Table: table, Op: op, Err: err}
	}
	return nil
}

func columns(names []string) []clause.Column {
	out := make([]clause.Column, len(names))
	for i, n := range names {
		out[i] = clause.Column{Name: n}
	}
	return out
}

// UpsertChunked inserts rows in chunks, updating updateColumns on a conflict
// over conflictColumns. With no update columns conflicting rows are left
// untouched. Each chunk is retried independently.
func UpsertChunked[T any](ctx context.Context, s *Store, table string, rows []T, conflictColumns, updateColumns []string) error {
	if len(rows) == 0 {
		return nil
	}
	onConflict := clause.OnConflict{Columns: columns(conflictColumns)}
	if len(updateColumns) == 0 {
		onConflict.DoNothing = true
	} else {
		onConflict.DoUpdates = clause.AssignmentColumns(updateColumns)
	}

	for start := 0; start < len(rows); start += s.chunkSize {
		end := start + s.chunkSize
		if end > len(rows) {
			end = len(rows)
		}
		chunk := rows[start:end]
		err := s.exec(ctx, table, "upsert", func(db *gorm.DB) error {
			return db.Table(table).Clauses(onConflict).Create(&chunk).Error
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// DeleteWhere deletes rows of model's table matching query. Matching nothing
// is not an error.
func (s *Store) DeleteWhere(ctx context.Context, table string, model interface{}, query string, args ...interface{}) error {
	return s.exec(ctx, table, "delete", func(db *gorm.DB) error {
		return db.Where(query, args...).Delete(model).Error
	})
}

// UpdateWhere sets values on rows of model's table matching query.
func (s *Store) UpdateWhere(ctx context.Context, table string, model interface{}, values map[string]interface{}, query string, args ...interface{}) error {
	return s.exec(ctx, table, "update", func(db *gorm.DB) error {
		return db.Model(model).Where(query, args...).Updates(values).Error
	})
}

// TransitionProposal moves a proposal from one status to another and reports
// whether the row was in the from status.
func (s *Store) TransitionProposal(ctx context.Context, id, from, to string) (bool, error) {
	var n int64
	err := s.exec(ctx, "proposals", "update", func(db *gorm.DB) error {
		res := db.Model(&data.Proposal{}).Where("id = ? AND status = ?", id, from).Update("status", to)
		n = res.RowsAffected
		return res.Error
	})
	return n > 0, err
}

// first loads at most one row into dst and reports whether one was found.
func (s *Store) first(ctx context.Context, table string, dst interface{}, query string, args ...interface{}) (bool, error) {
	var n int64
	err := s.exec(ctx, table, "select", func(db *gorm.DB) error {
		res := db.Where(query, args...).Limit(1).Find(dst)
		n = res.RowsAffected
		return res.Error
	})
	return n > 0, err
}
