package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// GetMessage returns the message with external id, or nil when it does not
// exist. A malformed id fails with ErrFormat.
func (s *Session) GetMessage(ctx context.Context, id string) (*Message, error) {
	var out *Message
	err := s.run(ctx, "get_message", func(ctx context.Context) error {
		key, err := Decode(id, MessagePrefix)
		if err != nil {
			return err
		}
		m, err := scanMessage(s.conn.QueryRowContext(ctx,
			`SELECT `+messageCols+` FROM messages WHERE message_id = $1`, key))
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}
		out = m
		return nil
	})
	return out, err
}

// ListMessages returns message summaries matching f, newest first. No match
// yields an empty slice.
func (s *Session) ListMessages(ctx context.Context, f MessageFilter) ([]MessageSummary, error) {
	out := []MessageSummary{}
	err := s.run(ctx, "list_messages", func(ctx context.Context) error {
		q := messageListQuery(f)
		rows, err := s.conn.QueryContext(ctx, q.SQL(), q.Args()...)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			m, err := scanMessageSummary(rows)
			if err != nil {
				return err
			}
			out = append(out, m)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// CreateMessage stores a new message and returns its external id. It fails
// with ErrIntegrity when the author or the ReplyTo parent does not exist.
func (s *Session) CreateMessage(ctx context.Context, nm NewMessage) (string, error) {
	return s.createMessage(ctx, "create_message", nm)
}

// AppendAnswer is CreateMessage with a mandatory parent.
func (s *Session) AppendAnswer(ctx context.Context, replyTo string, nm NewMessage) (string, error) {
	nm.ReplyTo = replyTo
	if replyTo == "" {
		return "", fmt.Errorf("append_answer: %w: missing parent message id", ErrFormat)
	}
	return s.createMessage(ctx, "append_answer", nm)
}

func (s *Session) createMessage(ctx context.Context, op string, nm NewMessage) (string, error) {
	var out string
	err := s.run(ctx, op, func(ctx context.Context) error {
		var parent *int64
		if nm.ReplyTo != "" {
			key, err := Decode(nm.ReplyTo, MessagePrefix)
			if err != nil {
				return err
			}
			parent = &key
		}

		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			if parent != nil {
				if err := requireMessage(ctx, tx, *parent); err != nil {
					return err
				}
			}
			authorID, err := requireAuthor(ctx, tx, nm.Author)
			if err != nil {
				return err
			}

			var id int64
			err = tx.QueryRowContext(ctx, `
				INSERT INTO messages (reply_to, title, body, account_id, username, views, timestamp)
				VALUES ($1, $2, $3, $4, $5, 0, $6)
				RETURNING message_id`,
				nullable(parent), nm.Title, nm.Body, authorID, nm.Author, s.store.now().Unix(),
			).Scan(&id)
			if err != nil {
				return err
			}

			if _, err := tx.ExecContext(ctx,
				`UPDATE accounts SET msg_count = msg_count + 1 WHERE account_id = $1`, authorID); err != nil {
				return err
			}
			out = Encode(id, MessagePrefix)
			return nil
		})
	})
	return out, err
}

// ModifyMessage replaces the title and body of a message. It returns the id
// and true, or false when the message does not exist.
func (s *Session) ModifyMessage(ctx context.Context, id, title, body string) (string, bool, error) {
	const op = "modify_message"
	var found bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		key, err := Decode(id, MessagePrefix)
		if err != nil {
			return err
		}
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			res, err := tx.ExecContext(ctx,
				`UPDATE messages SET title = $1, body = $2 WHERE message_id = $3`, title, body, key)
			if err != nil {
				return err
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			found = n > 0
			return nil
		})
	})
	if err != nil || !found {
		return "", false, err
	}
	return id, true, nil
}

// DeleteMessage removes a message and the diagnoses targeting it in one
// transaction. Direct replies are kept and detached from the message. It
// reports false when the message did not exist.
func (s *Session) DeleteMessage(ctx context.Context, id string) (bool, error) {
	const op = "delete_message"
	var deleted bool
	err := s.run(ctx, op, func(ctx context.Context) error {
		key, err := Decode(id, MessagePrefix)
		if err != nil {
			return err
		}
		return s.inTx(ctx, op, func(tx *sql.Tx) error {
			n, err := deleteMessagePlan.run(ctx, tx, key)
			if err != nil {
				return err
			}
			deleted = n > 0
			return nil
		})
	})
	return deleted, err
}

// ContainsMessage reports whether the message exists.
func (s *Session) ContainsMessage(ctx context.Context, id string) (bool, error) {
	var ok bool
	err := s.run(ctx, "contains_message", func(ctx context.Context) error {
		key, err := Decode(id, MessagePrefix)
		if err != nil {
			return err
		}
		ok, err = exists(ctx, s.conn, `SELECT 1 FROM messages WHERE message_id = $1`, key)
		return err
	})
	return ok, err
}
