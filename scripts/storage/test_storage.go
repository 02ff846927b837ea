package main

import (
	"context"
	"log"
	"sort"

	"github.com/stake-plus/geo-sink/src/config"
	"github.com/stake-plus/geo-sink/src/cursor"
	"github.com/stake-plus/geo-sink/src/data"
	"github.com/stake-plus/geo-sink/src/storage"
)

func main() {
	ctx := context.Background()

	cfg, _, err := config.Load("")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	dsn, err := data.GetMySQLDSN(cfg.Database.DSN)
	if err != nil {
		log.Fatalf("dsn: %v", err)
	}
	db, err := data.ConnectMySQL(dsn, data.PoolOptions{MaxOpenConns: 2})
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	store := storage.New(db, storage.Options{})

	pos, err := cursor.NewDBStore(store).Read(ctx)
	if err != nil {
		log.Fatalf("Error reading cursor: %v", err)
	}
	if pos == nil {
		log.Printf("Cursor: none")
	} else {
		log.Printf("Cursor:")
		log.Printf("  Block: %d", pos.BlockNumber)
		log.Printf("  Hash: %s", pos.BlockHash)
		log.Printf("  Timestamp: %d", pos.BlockTimestamp)
		log.Printf("  Cursor: %s", pos.Cursor)
	}

	counts, err := store.TableCounts(ctx)
	if err != nil {
		log.Fatalf("Error counting rows: %v", err)
	}
	tables := make([]string, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	log.Printf("Rows:")
	for _, t := range tables {
		log.Printf("  %-20s %d", t, counts[t])
	}
}
