package db

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"
)

func openTestSQLite(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := NewPool(context.Background(), DriverSQLite, filepath.Join(t.TempDir(), "test.db"), PoolOptions{MaxConns: 1})
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(func() { pool.Close() })
	return pool
}

func TestLoadMigrations(t *testing.T) {
	fsys := fstest.MapFS{
		"001_core.sql":     {Data: []byte("CREATE TABLE accounts (account_id INTEGER PRIMARY KEY);")},
		"002_messages.sql": {Data: []byte("CREATE TABLE messages (message_id INTEGER PRIMARY KEY);")},
		"003_dgs.sql":      {Data: []byte("CREATE TABLE diagnoses (diagnosis_id INTEGER PRIMARY KEY);")},
	}

	migrator := NewMigrator(nil, fsys)
	migrations, err := migrator.LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 3 {
		t.Fatalf("expected 3 migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 {
		t.Errorf("expected version 1, got %d", migrations[0].Version)
	}
	if migrations[0].Name != "001_core.sql" {
		t.Errorf("expected name 001_core.sql, got %s", migrations[0].Name)
	}
	if migrations[0].SQL != "CREATE TABLE accounts (account_id INTEGER PRIMARY KEY);" {
		t.Errorf("unexpected SQL content: %s", migrations[0].SQL)
	}
	if migrations[2].Version != 3 {
		t.Errorf("expected version 3, got %d", migrations[2].Version)
	}
}

func TestLoadMigrations_SortOrder(t *testing.T) {
	fsys := fstest.MapFS{
		"010_tables.sql": {Data: []byte("SELECT 10;")},
		"002_second.sql": {Data: []byte("SELECT 2;")},
		"001_first.sql":  {Data: []byte("SELECT 1;")},
		"005_middle.sql": {Data: []byte("SELECT 5;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	expected := []int{1, 2, 5, 10}
	if len(migrations) != len(expected) {
		t.Fatalf("expected %d migrations, got %d", len(expected), len(migrations))
	}
	for i, v := range expected {
		if migrations[i].Version != v {
			t.Errorf("migration[%d]: expected version %d, got %d", i, v, migrations[i].Version)
		}
	}
}

func TestLoadMigrations_InvalidFilename(t *testing.T) {
	fsys := fstest.MapFS{
		"001_valid.sql":      {Data: []byte("SELECT 1;")},
		"readme.sql":         {Data: []byte("-- no version prefix")},
		"notes.txt":          {Data: []byte("not a sql file")},
		"abc_invalid.sql":    {Data: []byte("-- non-numeric prefix")},
		"002_also_valid.sql": {Data: []byte("SELECT 2;")},
		"sub/003_nested.sql": {Data: []byte("SELECT 3;")},
	}

	migrations, err := NewMigrator(nil, fsys).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}

	if len(migrations) != 2 {
		t.Fatalf("expected 2 valid migrations, got %d", len(migrations))
	}
	if migrations[0].Version != 1 || migrations[1].Version != 2 {
		t.Errorf("unexpected versions %d, %d", migrations[0].Version, migrations[1].Version)
	}
}

func TestLoadMigrations_Empty(t *testing.T) {
	migrations, err := NewMigrator(nil, fstest.MapFS{}).LoadMigrations()
	if err != nil {
		t.Fatalf("LoadMigrations() error: %v", err)
	}
	if len(migrations) != 0 {
		t.Errorf("expected 0 migrations, got %d", len(migrations))
	}
}

func TestMigrator_UpAndStatus(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"001_accounts.sql": {Data: []byte("CREATE TABLE accounts (account_id INTEGER PRIMARY KEY, username TEXT);")},
		"002_messages.sql": {Data: []byte("CREATE TABLE messages (message_id INTEGER PRIMARY KEY);\nCREATE INDEX idx_m ON messages(message_id);")},
	}
	migrator := NewMigrator(pool, fsys)

	count, err := migrator.UpTo(ctx, 1)
	if err != nil {
		t.Fatalf("UpTo() error: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 applied migration, got %d", count)
	}

	statuses, err := migrator.Status(ctx)
	if err != nil {
		t.Fatalf("Status() error: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	if !statuses[0].Applied || statuses[0].AppliedAt == nil {
		t.Error("expected migration 1 to be applied")
	}
	if statuses[1].Applied {
		t.Error("expected migration 2 to be pending")
	}

	count, err = migrator.Up(ctx)
	if err != nil {
		t.Fatalf("Up() error: %v", err)
	}
	if count != 1 {
		t.Errorf("expected 1 newly applied migration, got %d", count)
	}

	count, err = migrator.Up(ctx)
	if err != nil {
		t.Fatalf("second Up() error: %v", err)
	}
	if count != 0 {
		t.Errorf("expected Up to be idempotent, applied %d", count)
	}
}

func TestMigrator_FailedMigrationRollsBack(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()
	fsys := fstest.MapFS{
		"001_broken.sql": {Data: []byte("CREATE TABLE ok_table (id INTEGER);\nTHIS IS NOT SQL;")},
	}
	migrator := NewMigrator(pool, fsys)

	if _, err := migrator.Up(ctx); err == nil {
		t.Fatal("expected error from broken migration")
	}

	applied, err := migrator.AppliedVersions(ctx)
	if err != nil {
		t.Fatalf("AppliedVersions() error: %v", err)
	}
	if applied[1] {
		t.Error("broken migration must not be recorded")
	}
}
