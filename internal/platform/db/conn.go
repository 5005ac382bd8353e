package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// ConnOptions controls per-connection setup done right after acquisition.
type ConnOptions struct {
	// ForeignKeys turns SQLite foreign key enforcement on or off for the
	// acquired connection. Postgres always enforces declared constraints.
	ForeignKeys bool
	// BusyTimeout is how long a SQLite connection waits on a locked
	// database before failing with SQLITE_BUSY. Zero keeps the driver default.
	BusyTimeout time.Duration
}

// Acquire takes one connection out of the pool for exclusive use and applies
// the connection settings. The caller must Close the returned connection.
func Acquire(ctx context.Context, pool *sql.DB, driver Driver, opts ConnOptions) (*sql.Conn, error) {
	conn, err := pool.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}

	if driver == DriverSQLite {
		pragma := "PRAGMA foreign_keys = OFF"
		if opts.ForeignKeys {
			pragma = "PRAGMA foreign_keys = ON"
		}
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("set foreign key support: %w", err)
		}
		if opts.BusyTimeout > 0 {
			pragma := fmt.Sprintf("PRAGMA busy_timeout = %d", opts.BusyTimeout.Milliseconds())
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("set busy timeout: %w", err)
			}
		}
	}

	return conn, nil
}

// ForeignKeysEnabled reports the foreign key setting of a SQLite connection.
// Postgres connections always report true.
func ForeignKeysEnabled(ctx context.Context, conn *sql.Conn, driver Driver) (bool, error) {
	if driver != DriverSQLite {
		return true, nil
	}
	var on int
	if err := conn.QueryRowContext(ctx, "PRAGMA foreign_keys").Scan(&on); err != nil {
		return false, fmt.Errorf("read foreign key status: %w", err)
	}
	return on == 1, nil
}
