// Package dbtest opens migrated in-memory databases for tests.
package dbtest

import (
	"context"
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"

	"riskadmin/internal/db"
	"riskadmin/internal/db/migrate"
)

// OpenSQLite returns an empty in-memory SQLite database. The pool is pinned
// to one connection so every statement sees the same memory database.
func OpenSQLite(t testing.TB) *db.Database {
	t.Helper()
	sqlDB, err := sql.Open(db.DriverSQLite, ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)
	sqlDB.SetConnMaxIdleTime(0)
	t.Cleanup(func() { _ = sqlDB.Close() })

	dialect, err := db.DialectFor(db.DriverSQLite)
	if err != nil {
		t.Fatalf("dialect: %v", err)
	}
	return db.NewDatabase(sqlDB, dialect)
}

// Open returns an in-memory SQLite database with every migration applied.
func Open(t testing.TB) *db.Database {
	t.Helper()
	database := OpenSQLite(t)
	if err := migrate.Apply(context.Background(), database); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return database
}
