package storage

import (
	"fmt"

	"sdo-docs/config"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewReadOnlyDB opens the document store for the API. The store has no
// writers at runtime, so the connection is opened mode=ro and shared across
// requests.
func NewReadOnlyDB(cfg *config.Config) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", cfg.DatabasePath)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening document store %s: %w", cfg.DatabasePath, err)
	}
	return db, nil
}

// NewWritableDB opens (or creates) the store for cmd/ingest.
func NewWritableDB(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening document store %s: %w", path, err)
	}
	return db, nil
}
