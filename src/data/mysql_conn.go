package data

import (
	"fmt"
	"strings"
	"time"

	"github.com/stake-plus/geo-sink/src/logging"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// PoolOptions sizes the underlying database/sql pool.
type PoolOptions struct {
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// ConnectMySQL opens a gorm DB with sane defaults.
func ConnectMySQL(dsn string, pool PoolOptions) (*gorm.DB, error) {
	dsn = ensureParam(dsn, "parseTime", "true")
	if !strings.Contains(dsn, "charset=") {
		dsn = ensureParam(dsn, "charset", "utf8mb4")
		dsn = ensureParam(dsn, "collation", "utf8mb4_unicode_ci")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{Logger: NewGormLogger()})
	if err != nil {
		return nil, fmt.Errorf("open mysql: %w", err)
	}
	if err := ApplyPool(db, pool); err != nil {
		return nil, err
	}
	return db, nil
}

// NewGormLogger routes gorm warnings and slow queries to the process logger.
func NewGormLogger() logger.Interface {
	return logger.New(
		logging.Printf{},
		logger.Config{SlowThreshold: time.Second, LogLevel: logger.Warn, IgnoreRecordNotFoundError: true, Colorful: false},
	)
}

func ApplyPool(db *gorm.DB, pool PoolOptions) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	if pool.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	}
	if pool.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	}
	if pool.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(pool.ConnMaxLife)
	}
	return nil
}

func ensureParam(dsn, key, val string) string {
	if strings.Contains(dsn, key+"=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + key + "=" + val
}
