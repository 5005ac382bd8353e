package forum

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
)

// recordingQuerier records Exec calls and returns canned row counts.
type recordingQuerier struct {
	queries  []string
	affected map[int]int64 // by call index
	failAt   int           // -1 for never
}

func newRecordingQuerier() *recordingQuerier {
	return &recordingQuerier{affected: map[int]int64{}, failAt: -1}
}

type fakeResult int64

func (r fakeResult) LastInsertId() (int64, error) { return 0, nil }
func (r fakeResult) RowsAffected() (int64, error) { return int64(r), nil }

func (q *recordingQuerier) ExecContext(_ context.Context, query string, args ...any) (sql.Result, error) {
	i := len(q.queries)
	q.queries = append(q.queries, query)
	if i == q.failAt {
		return nil, errors.New("engine failure")
	}
	return fakeResult(q.affected[i]), nil
}

func (q *recordingQuerier) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("not implemented")
}

func (q *recordingQuerier) QueryRowContext(context.Context, string, ...any) *sql.Row {
	return nil
}

func TestDeleteAccountPlan_Order(t *testing.T) {
	want := []string{
		"DELETE FROM diagnoses WHERE message_id IN",
		"DELETE FROM diagnoses WHERE account_id",
		"UPDATE messages SET reply_to = NULL",
		"DELETE FROM messages WHERE account_id",
		"DELETE FROM account_profiles",
		"DELETE FROM accounts",
	}
	if len(deleteAccountPlan.steps) != len(want) {
		t.Fatalf("expected %d steps, got %d", len(want), len(deleteAccountPlan.steps))
	}
	for i, prefix := range want {
		if !strings.HasPrefix(deleteAccountPlan.steps[i].query, prefix) {
			t.Errorf("step %d: expected %q, got %q", i, prefix, deleteAccountPlan.steps[i].query)
		}
	}
}

func TestDeleteMessagePlan_Order(t *testing.T) {
	steps := deleteMessagePlan.steps
	if !strings.HasPrefix(steps[0].query, "DELETE FROM diagnoses") {
		t.Errorf("diagnoses must be removed first, got %q", steps[0].query)
	}
	if !strings.HasPrefix(steps[len(steps)-1].query, "DELETE FROM messages") {
		t.Errorf("message row must be removed last, got %q", steps[len(steps)-1].query)
	}
}

func TestCascadePlan_Run(t *testing.T) {
	t.Run("final step decides", func(t *testing.T) {
		q := newRecordingQuerier()
		q.affected[len(deleteMessagePlan.steps)-1] = 1

		n, err := deleteMessagePlan.run(context.Background(), q, 7)
		if err != nil {
			t.Fatalf("run() error: %v", err)
		}
		if n != 1 {
			t.Errorf("expected 1, got %d", n)
		}
		if len(q.queries) != len(deleteMessagePlan.steps) {
			t.Errorf("expected every step to run, ran %d", len(q.queries))
		}
	})

	t.Run("dependent rows do not count", func(t *testing.T) {
		q := newRecordingQuerier()
		q.affected[0] = 3 // diagnoses removed, primary row absent

		n, err := deleteMessagePlan.run(context.Background(), q, 7)
		if err != nil {
			t.Fatalf("run() error: %v", err)
		}
		if n != 0 {
			t.Errorf("expected 0, got %d", n)
		}
	})

	t.Run("failure stops the plan", func(t *testing.T) {
		q := newRecordingQuerier()
		q.failAt = 1

		_, err := deleteAccountPlan.run(context.Background(), q, 1)
		if err == nil {
			t.Fatal("expected error")
		}
		if !strings.Contains(err.Error(), "diagnoses by account") {
			t.Errorf("expected failing step in error, got %v", err)
		}
		if len(q.queries) != 2 {
			t.Errorf("expected plan to stop after failing step, ran %d", len(q.queries))
		}
	})
}
