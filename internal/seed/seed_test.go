package seed

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/medforum/medforum/internal/forum"
	"github.com/medforum/medforum/internal/platform/db"
	"github.com/medforum/medforum/migrations"
)

func openSession(t *testing.T) *forum.Session {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, db.DriverSQLite, filepath.Join(t.TempDir(), "seed.db"), db.PoolOptions{MaxConns: 2})
	if err != nil {
		t.Fatalf("NewPool() error: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	fsys, err := migrations.For(db.DriverSQLite)
	if err != nil {
		t.Fatalf("migrations.For() error: %v", err)
	}
	if _, err := db.NewMigrator(pool, fsys).Up(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	sess, err := forum.NewStore(pool, db.DriverSQLite, forum.Options{ForeignKeys: true}).Open(ctx)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { sess.Close() })
	return sess
}

func TestLoadFile(t *testing.T) {
	f, err := LoadFile(filepath.Join("testdata", "forum.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	if len(f.Accounts) != 3 || len(f.Messages) != 4 || len(f.Diagnoses) != 2 {
		t.Fatalf("unexpected fixture sizes: %d accounts, %d messages, %d diagnoses",
			len(f.Accounts), len(f.Messages), len(f.Diagnoses))
	}
	if f.Accounts[0].Age == nil || *f.Accounts[0].Age != 21 {
		t.Errorf("expected age 21, got %v", f.Accounts[0].Age)
	}
	if f.Accounts[1].Email != nil {
		t.Errorf("expected nil email, got %q", *f.Accounts[1].Email)
	}
}

func TestLoad_Empty(t *testing.T) {
	f, err := Load(strings.NewReader(""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if len(f.Accounts) != 0 {
		t.Errorf("expected no accounts, got %d", len(f.Accounts))
	}
}

func TestLoad_UnknownField(t *testing.T) {
	_, err := Load(strings.NewReader("accounts:\n  - username: a\n    nickname: b\n"))
	if err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestFixture_Validate(t *testing.T) {
	tests := []struct {
		name    string
		fixture Fixture
		wantErr string
	}{
		{
			name:    "missing username",
			fixture: Fixture{Accounts: []AccountFixture{{Role: "patient"}}},
			wantErr: "username is required",
		},
		{
			name: "duplicate username",
			fixture: Fixture{Accounts: []AccountFixture{
				{Username: "a", Role: "patient"},
				{Username: "a", Role: "doctor"},
			}},
			wantErr: "duplicate username",
		},
		{
			name:    "unknown role",
			fixture: Fixture{Accounts: []AccountFixture{{Username: "a", Role: "nurse"}}},
			wantErr: "unknown role",
		},
		{
			name:    "forward reply",
			fixture: Fixture{Messages: []MessageFixture{{Ref: "a", ReplyTo: "b"}, {Ref: "b"}}},
			wantErr: "earlier message",
		},
		{
			name:    "duplicate ref",
			fixture: Fixture{Messages: []MessageFixture{{Ref: "a"}, {Ref: "a"}}},
			wantErr: "duplicate ref",
		},
		{
			name:    "diagnosis on unknown message",
			fixture: Fixture{Diagnoses: []DiagnosisFixture{{Author: "d", Message: "x"}}},
			wantErr: "unknown message ref",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.fixture.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestApply(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)

	f, err := LoadFile(filepath.Join("testdata", "forum.yaml"))
	if err != nil {
		t.Fatalf("LoadFile() error: %v", err)
	}
	res, err := Apply(ctx, sess, f)
	if err != nil {
		t.Fatalf("Apply() error: %v", err)
	}

	if res.Accounts != 3 {
		t.Errorf("expected 3 accounts, got %d", res.Accounts)
	}
	if len(res.Messages) != 4 || len(res.Diagnoses) != 2 {
		t.Fatalf("expected 4 messages and 2 diagnoses, got %d and %d", len(res.Messages), len(res.Diagnoses))
	}

	reply, err := sess.GetMessage(ctx, res.Messages["headache-reply"])
	if err != nil || reply == nil {
		t.Fatalf("GetMessage() = %v, %v", reply, err)
	}
	if reply.ReplyTo == nil || *reply.ReplyTo != res.Messages["headache"] {
		t.Errorf("expected reply to %s, got %v", res.Messages["headache"], reply.ReplyTo)
	}

	house, err := sess.GetAccount(ctx, "Dr. House")
	if err != nil || house == nil {
		t.Fatalf("GetAccount() = %v, %v", house, err)
	}
	if house.Role != forum.RoleDoctor {
		t.Errorf("expected doctor, got %s", house.Role)
	}
	if house.MessageCount != 1 {
		t.Errorf("expected 1 message, got %d", house.MessageCount)
	}

	dgs, err := sess.ListDiagnoses(ctx, forum.DiagnosisFilter{MessageID: res.Messages["knee"]})
	if err != nil {
		t.Fatalf("ListDiagnoses() error: %v", err)
	}
	if len(dgs) != 1 || dgs[0].Disease != "Patellar tendinopathy" {
		t.Errorf("unexpected diagnoses for knee: %+v", dgs)
	}
}

func TestApply_PatientDiagnosisRejected(t *testing.T) {
	ctx := context.Background()
	sess := openSession(t)

	f := &Fixture{
		Accounts: []AccountFixture{{Username: "pat", Role: "patient"}},
		Messages: []MessageFixture{{Ref: "m", Author: "pat", Title: "t", Body: "b"}},
		Diagnoses: []DiagnosisFixture{
			{Author: "pat", Message: "m", Disease: "flu", Description: "rest"},
		},
	}
	res, err := Apply(ctx, sess, f)
	if !errors.Is(err, forum.ErrAuthorization) {
		t.Fatalf("expected ErrAuthorization, got %v", err)
	}
	if res.Accounts != 1 || len(res.Messages) != 1 {
		t.Errorf("expected earlier rows to be reported, got %+v", res)
	}
}

func TestApply_UnknownDiagnosisAuthor(t *testing.T) {
	sess := openSession(t)

	f := &Fixture{
		Accounts:  []AccountFixture{{Username: "pat", Role: "patient"}},
		Messages:  []MessageFixture{{Ref: "m", Author: "pat", Title: "t", Body: "b"}},
		Diagnoses: []DiagnosisFixture{{Author: "ghost", Message: "m", Disease: "x"}},
	}
	_, err := Apply(context.Background(), sess, f)
	if !errors.Is(err, forum.ErrIntegrity) {
		t.Fatalf("expected ErrIntegrity, got %v", err)
	}
}
