package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// querier is the subset of *sql.Conn and *sql.Tx used by the rules and the
// Session operations.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// cascadeStep is one statement of a cascade plan. Each step binds the primary
// key as $1.
type cascadeStep struct {
	name  string
	query string
}

// cascadePlan is an ordered list of dependent deletes ending with the delete
// of the primary row. Only the last step's row count is reported.
type cascadePlan struct {
	name  string
	steps []cascadeStep
}

var deleteAccountPlan = cascadePlan{
	name: "delete account",
	steps: []cascadeStep{
		{"diagnoses on account messages", `DELETE FROM diagnoses WHERE message_id IN (SELECT message_id FROM messages WHERE account_id = $1)`},
		{"diagnoses by account", `DELETE FROM diagnoses WHERE account_id = $1`},
		{"detach replies", `UPDATE messages SET reply_to = NULL WHERE reply_to IN (SELECT message_id FROM messages WHERE account_id = $1)`},
		{"messages", `DELETE FROM messages WHERE account_id = $1`},
		{"profile", `DELETE FROM account_profiles WHERE account_id = $1`},
		{"account", `DELETE FROM accounts WHERE account_id = $1`},
	},
}

var deleteMessagePlan = cascadePlan{
	name: "delete message",
	steps: []cascadeStep{
		{"diagnoses", `DELETE FROM diagnoses WHERE message_id = $1`},
		{"detach replies", `UPDATE messages SET reply_to = NULL WHERE reply_to = $1`},
		{"author message count", `UPDATE accounts SET msg_count = msg_count - 1
			WHERE msg_count > 0 AND account_id IN (SELECT account_id FROM messages WHERE message_id = $1)`},
		{"message", `DELETE FROM messages WHERE message_id = $1`},
	},
}

// run executes every step in order against q, which should be a transaction.
// Dependent steps that match no rows are not errors.
func (p cascadePlan) run(ctx context.Context, q querier, key int64) (int64, error) {
	var affected int64
	for _, step := range p.steps {
		res, err := q.ExecContext(ctx, step.query, key)
		if err != nil {
			return 0, fmt.Errorf("%s: %s: %w", p.name, step.name, err)
		}
		if affected, err = res.RowsAffected(); err != nil {
			return 0, fmt.Errorf("%s: %s: rows affected: %w", p.name, step.name, err)
		}
	}
	return affected, nil
}

// lookupAccountID returns the internal key for username, or false.
func lookupAccountID(ctx context.Context, q querier, username string) (int64, bool, error) {
	var id int64
	err := q.QueryRowContext(ctx, `SELECT account_id FROM accounts WHERE username = $1`, username).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}

// requireAuthor resolves a message author by username.
func requireAuthor(ctx context.Context, q querier, username string) (int64, error) {
	id, ok, err := lookupAccountID(ctx, q, username)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("%w: account %q does not exist", ErrIntegrity, username)
	}
	return id, nil
}

// requireDoctor checks the role of accountID before any diagnosis write.
func requireDoctor(ctx context.Context, q querier, accountID int64) error {
	var role int
	err := q.QueryRowContext(ctx, `SELECT role FROM accounts WHERE account_id = $1`, accountID).Scan(&role)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: account %d does not exist", ErrIntegrity, accountID)
	}
	if err != nil {
		return err
	}
	if Role(role) != RoleDoctor {
		return fmt.Errorf("%w: account %d is a %s, only doctors may write diagnoses", ErrAuthorization, accountID, Role(role))
	}
	return nil
}

// requireMessage checks that a referenced message exists.
func requireMessage(ctx context.Context, q querier, messageID int64) error {
	ok, err := exists(ctx, q, `SELECT 1 FROM messages WHERE message_id = $1`, messageID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: message %s does not exist", ErrIntegrity, Encode(messageID, MessagePrefix))
	}
	return nil
}

func exists(ctx context.Context, q querier, query string, args ...any) (bool, error) {
	var one int
	err := q.QueryRowContext(ctx, query, args...).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
