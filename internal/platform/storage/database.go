package storage

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Global database instance shared by the sqlite-backed stores.
var db *gorm.DB

// InitDatabase opens the SQLite database and migrates the binding and
// audit tables. dsn may be empty, in which case ./data/voicegate.db is used.
func InitDatabase(dsn string) error {
	if db != nil {
		return nil
	}

	if dsn == "" {
		dataDir := "./data"
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "voicegate.db")
	}

	var err error
	db, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&DeviceBindingRecord{}, &AuthEventRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	return nil
}

// GetDB returns the global database instance.
func GetDB() *gorm.DB {
	if db == nil {
		panic("database not initialized, call InitDatabase() first")
	}
	return db
}

// OpenTestDB opens an isolated in-memory database for tests. Each call gets
// its own named memory database so parallel tests do not share state.
func OpenTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	testDB, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}
	if err := testDB.AutoMigrate(&DeviceBindingRecord{}, &AuthEventRecord{}); err != nil {
		return nil, err
	}
	return testDB, nil
}
