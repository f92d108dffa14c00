package database

import (
	"path/filepath"
	"testing"

	"gorm.io/gorm"
)

// OpenTest returns a migrated SQLite database living in the test's temp dir
func OpenTest(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "learnhub_test.db")
	db, err := Open("sqlite", path+"?_busy_timeout=5000")
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	if err := Migrate(db); err != nil {
		t.Fatalf("migrate test database: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}
