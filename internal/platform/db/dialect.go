package db

import (
	"database/sql"
	"fmt"
	"strings"
)

// Driver names a supported storage engine.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ParseDriver accepts the configured driver name.
func ParseDriver(s string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	}
	return "", fmt.Errorf("unsupported database driver %q", s)
}

func (d Driver) sqlDriverName() (string, error) {
	switch d {
	case DriverSQLite:
		return "sqlite", nil
	case DriverPostgres:
		return "pgx", nil
	}
	return "", fmt.Errorf("unsupported database driver %q", string(d))
}

// ParseIsolation maps a configuration value onto a database/sql isolation level.
func ParseIsolation(s string) (sql.IsolationLevel, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "default":
		return sql.LevelDefault, nil
	case "read-uncommitted", "read_uncommitted":
		return sql.LevelReadUncommitted, nil
	case "read-committed", "read_committed":
		return sql.LevelReadCommitted, nil
	case "repeatable-read", "repeatable_read":
		return sql.LevelRepeatableRead, nil
	case "serializable":
		return sql.LevelSerializable, nil
	}
	return sql.LevelDefault, fmt.Errorf("unsupported isolation level %q", s)
}

// TxIsolation returns the level to request from the engine. SQLite only
// accepts the default and serializable levels, and every SQLite transaction
// is serializable anyway.
func (d Driver) TxIsolation(level sql.IsolationLevel) sql.IsolationLevel {
	if d == DriverSQLite && level != sql.LevelDefault {
		return sql.LevelSerializable
	}
	return level
}
