// Package migrations embeds the versioned schema for each storage engine.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"

	"github.com/medforum/medforum/internal/platform/db"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// For returns the migration files for the given engine.
func For(driver db.Driver) (fs.FS, error) {
	switch driver {
	case db.DriverSQLite:
		return fs.Sub(files, "sqlite")
	case db.DriverPostgres:
		return fs.Sub(files, "postgres")
	}
	return nil, fmt.Errorf("no migrations for driver %q", driver)
}
