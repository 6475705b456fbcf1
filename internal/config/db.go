package config

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/go-sql-driver/mysql"
	_ "modernc.org/sqlite"

	"riskadmin/internal/db"
	"riskadmin/internal/db/migrate"
	"riskadmin/internal/utils"
)

var (
	DB   *db.Database
	dbMu sync.Mutex
)

// OpenDB opens and pings a pool for the configured driver.
func OpenDB(ctx context.Context, cfg Env) (*db.Database, error) {
	dialect, err := db.DialectFor(cfg.DBDriver)
	if err != nil {
		return nil, err
	}
	sqlDB, err := sql.Open(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.DBMaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.DBMaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.DBConnLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.DBConnIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, cfg.DBPingTimeout)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db.NewDatabase(sqlDB, dialect), nil
}

// ConnectDB initializes the shared database (idempotent) and applies migrations.
func ConnectDB(ctx context.Context, cfg Env) (*db.Database, error) {
	dbMu.Lock()
	defer dbMu.Unlock()

	if DB != nil {
		return DB, nil
	}
	database, err := OpenDB(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.DBMigrate {
		if err := migrate.Apply(ctx, database); err != nil {
			_ = database.DB.Close()
			return nil, err
		}
	}
	DB = database
	utils.LogEvent("", "config", "connect_db", "connected to "+cfg.DBDriver)
	return DB, nil
}

// EnsureDB pings the shared database.
func EnsureDB(ctx context.Context) error {
	dbMu.Lock()
	database := DB
	dbMu.Unlock()

	if database == nil {
		return fmt.Errorf("database not initialized")
	}
	return database.Ping(ctx)
}

func CloseDB() {
	dbMu.Lock()
	defer dbMu.Unlock()

	if DB != nil {
		_ = DB.DB.Close()
		DB = nil
	}
}
