package database

import (
	"fmt"
	"os"
	"path/filepath"

	"dosekeeper/internal/config"
)

// NewDatabaseFromConfig opens the store selected by the database config type.
func NewDatabaseFromConfig(cfg config.DatabaseConfig, hostID string) (*SQLiteDatabase, error) {
	driver := cfg.Driver
	switch driver {
	case "":
		driver = DriverCGO
	case DriverCGO, DriverPureGo:
	default:
		return nil, fmt.Errorf("unknown sqlite driver: %s", cfg.Driver)
	}

	switch cfg.Type {
	case "sqlite":
		if cfg.DataDir == "" {
			return nil, fmt.Errorf("data_dir required for sqlite database")
		}
		if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
			return nil, fmt.Errorf("creating data dir: %w", err)
		}
		return NewSQLiteDatabase(driver, DatabasePath(cfg, hostID))
	case "memory":
		return NewSQLiteDatabase(driver, ":memory:")
	default:
		return nil, fmt.Errorf("unknown database type: %s", cfg.Type)
	}
}

// DatabasePath is where a sqlite database for hostID lives.
func DatabasePath(cfg config.DatabaseConfig, hostID string) string {
	return filepath.Join(cfg.DataDir, hostID+".db")
}
