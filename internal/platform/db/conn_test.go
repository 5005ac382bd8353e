package db

import (
	"context"
	"database/sql"
	"testing"
	"time"
)

func TestAcquire_ForeignKeysToggle(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()

	for _, want := range []bool{true, false} {
		conn, err := Acquire(ctx, pool, DriverSQLite, ConnOptions{ForeignKeys: want})
		if err != nil {
			t.Fatalf("Acquire() error: %v", err)
		}
		got, err := ForeignKeysEnabled(ctx, conn, DriverSQLite)
		conn.Close()
		if err != nil {
			t.Fatalf("ForeignKeysEnabled() error: %v", err)
		}
		if got != want {
			t.Errorf("foreign keys: expected %v, got %v", want, got)
		}
	}
}

func TestIsUniqueViolation_SQLite(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()

	if _, err := pool.ExecContext(ctx, `CREATE TABLE u (name TEXT UNIQUE)`); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := pool.ExecContext(ctx, `INSERT INTO u (name) VALUES ($1)`, "a"); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_, err := pool.ExecContext(ctx, `INSERT INTO u (name) VALUES ($1)`, "a")
	if err == nil {
		t.Fatal("expected duplicate insert to fail")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("expected unique violation, got %v", err)
	}
	if IsForeignKeyViolation(err) {
		t.Error("unique violation misreported as foreign key violation")
	}
}

func TestIsForeignKeyViolation_SQLite(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()

	conn, err := Acquire(ctx, pool, DriverSQLite, ConnOptions{ForeignKeys: true})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, `CREATE TABLE p (id INTEGER PRIMARY KEY)`); err != nil {
		t.Fatalf("create p: %v", err)
	}
	if _, err := conn.ExecContext(ctx, `CREATE TABLE c (id INTEGER PRIMARY KEY, p_id INTEGER REFERENCES p(id))`); err != nil {
		t.Fatalf("create c: %v", err)
	}
	_, err = conn.ExecContext(ctx, `INSERT INTO c (id, p_id) VALUES ($1, $2)`, 1, 99)
	if err == nil {
		t.Fatal("expected foreign key failure")
	}
	if !IsForeignKeyViolation(err) {
		t.Errorf("expected foreign key violation, got %v", err)
	}
}

func TestIsUniqueViolation_PlainError(t *testing.T) {
	if IsUniqueViolation(sql.ErrNoRows) {
		t.Error("sql.ErrNoRows is not a unique violation")
	}
	if IsForeignKeyViolation(nil) {
		t.Error("nil is not a foreign key violation")
	}
}

func TestAcquire_BusyTimeout(t *testing.T) {
	pool := openTestSQLite(t)
	ctx := context.Background()

	conn, err := Acquire(ctx, pool, DriverSQLite, ConnOptions{BusyTimeout: 2500 * time.Millisecond})
	if err != nil {
		t.Fatalf("Acquire() error: %v", err)
	}
	defer conn.Close()

	var ms int
	if err := conn.QueryRowContext(ctx, "PRAGMA busy_timeout").Scan(&ms); err != nil {
		t.Fatalf("read busy_timeout: %v", err)
	}
	if ms != 2500 {
		t.Errorf("expected busy_timeout 2500, got %d", ms)
	}
}

func TestSQLiteDSN(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"/tmp/forum.db", "/tmp/forum.db?_txlock=immediate"},
		{"file:forum.db?cache=shared", "file:forum.db?cache=shared&_txlock=immediate"},
		{"forum.db?_txlock=exclusive", "forum.db?_txlock=exclusive"},
	}
	for _, tt := range tests {
		if got := sqliteDSN(tt.in); got != tt.want {
			t.Errorf("sqliteDSN(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
