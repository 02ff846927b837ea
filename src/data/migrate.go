package data

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// Migrate creates or updates every table the sink writes to.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Reset drops every sink table except settings and migrates again.
func Reset(ctx context.Context, db *gorm.DB) error {
	models := AllModels()
	drop := make([]interface{}, 0, len(models))
	for i := len(models) - 1; i >= 0; i-- {
		if _, ok := models[i].(*Setting); ok {
			continue
		}
		drop = append(drop, models[i])
	}
	if err := db.WithContext(ctx).Migrator().DropTable(drop...); err != nil {
		return fmt.Errorf("drop tables: %w", err)
	}
	return Migrate(ctx, db)
}
