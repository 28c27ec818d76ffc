// Package sharing persists the remote users a library is shared with.
package sharing

import (
	"fmt"
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"mediashelf/internal/models"
)

// DatabaseFile is the name of the shared-users database inside the data dir
const DatabaseFile = "sharing.db"

// GORMConfig is used for every sharing database
var GORMConfig = &gorm.Config{
	Logger:                 logger.Default.LogMode(logger.Silent),
	SkipDefaultTransaction: true,
}

// OpenDB opens (creating when needed) the sharing database in dataDir and migrates it
func OpenDB(dataDir string) (*gorm.DB, error) {
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return Open(filepath.Join(dataDir, DatabaseFile))
}

// Open opens a sqlite DSN and migrates the shared users table
func Open(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(dsn), GORMConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open sharing database: %w", err)
	}

	// sqlite allows a single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.SharedUser{}); err != nil {
		return nil, fmt.Errorf("failed to migrate sharing database: %w", err)
	}
	return db, nil
}

// Close closes the underlying connection pool
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
