package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	_ "modernc.org/sqlite"             // registers "sqlite"
)

// PoolOptions sizes the database/sql pool.
type PoolOptions struct {
	MaxConns    int
	MinConns    int
	MaxLifetime time.Duration
}

// NewPool opens a pool for the given driver and verifies it with a ping.
func NewPool(ctx context.Context, driver Driver, databaseURL string, opts PoolOptions) (*sql.DB, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database url is empty")
	}
	name, err := driver.sqlDriverName()
	if err != nil {
		return nil, err
	}

	dsn := databaseURL
	if driver == DriverSQLite {
		dsn = sqliteDSN(databaseURL)
	}

	pool, err := sql.Open(name, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	if opts.MaxConns > 0 {
		pool.SetMaxOpenConns(opts.MaxConns)
	}
	if opts.MinConns > 0 {
		pool.SetMaxIdleConns(opts.MinConns)
	}
	if opts.MaxLifetime > 0 {
		pool.SetConnMaxLifetime(opts.MaxLifetime)
	}

	if err := pool.PingContext(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// sqliteDSN requests BEGIN IMMEDIATE for every transaction unless the caller
// already chose a lock mode.
func sqliteDSN(databaseURL string) string {
	if strings.Contains(databaseURL, "_txlock=") {
		return databaseURL
	}
	sep := "?"
	if strings.Contains(databaseURL, "?") {
		sep = "&"
	}
	return databaseURL + sep + "_txlock=immediate"
}
