// Package datatest opens migrated in-memory SQLite databases for tests.
package datatest

import (
	"context"
	"testing"

	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/ncruces/go-sqlite3/gormlite"
	"github.com/stake-plus/geo-sink/src/data"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open returns a fresh, fully migrated database that lives as long as t.
// The pool is pinned to one connection: every connection to ":memory:"
// would otherwise see its own empty database.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(gormlite.Open(":memory:"), &gorm.Config{Logger: logger.Discard})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := data.ApplyPool(db, data.PoolOptions{MaxOpenConns: 1}); err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := data.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
