package data

import (
	"context"

	"gorm.io/gorm"
)

// LoadSettings returns the active rows of the settings table keyed by name.
// A missing table yields an empty map so a fresh database can still boot.
func LoadSettings(ctx context.Context, db *gorm.DB) (map[string]string, error) {
	if !db.Migrator().HasTable(&Setting{}) {
		return map[string]string{}, nil
	}

	var settings []Setting
	if err := db.WithContext(ctx).Where("active = ?", 1).Find(&settings).Error; err != nil {
		return nil, err
	}

	out := make(map[string]string, len(settings))
	for _, s := range settings {
		out[s.Name] = s.Value
	}
	return out, nil
}
