package db

import (
	"database/sql"
	"path/filepath"
	"testing"
)

// OpenTestSQLite opens a hardened SQLite pool in t.TempDir(), runs all
// pending migrations, and registers cleanup.
func OpenTestSQLite(t *testing.T) *sql.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.sqlite")

	sqlDB, err := OpenSQLite(path)
	if err != nil {
		t.Fatalf("open test sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := RunMigrations(sqlDB); err != nil {
		t.Fatalf("run migrations: %v", err)
	}

	return sqlDB
}
