package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Session is a unit of work bound to one exclusive connection. Every mutating
// call commits its own transaction before returning. A Session is not safe
// for concurrent use; open one per concurrent unit of work.
type Session struct {
	store  *Store
	conn   *sql.Conn
	logger zerolog.Logger

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

// Close releases the connection. Calling it more than once is a no-op that
// returns the first result.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.closed = true
		s.closeErr = s.conn.Close()
		s.store.metrics.SessionClosed()
		if s.closeErr != nil {
			s.logger.Error().Err(s.closeErr).Msg("session close failed")
			return
		}
		s.logger.Debug().Msg("session closed")
	})
	return s.closeErr
}

// run applies the operation deadline and records the outcome of fn.
func (s *Session) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	if s.closed {
		return fmt.Errorf("%s: %w", op, ErrSessionClosed)
	}

	ctx, cancel := s.store.withTimeout(ctx)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	if err != nil && !isKind(err) {
		err = classify(op, err)
	}
	s.store.metrics.ObserveOperation(op, outcome(err), time.Since(start))

	if errors.Is(err, ErrStorage) {
		s.logger.Error().Err(err).Str("operation", op).Msg("storage failure")
	}
	return err
}

// inTx runs fn inside a transaction at the configured isolation level. Any
// error from fn, or from commit, rolls the transaction back.
func (s *Session) inTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.conn.BeginTx(ctx, &sql.TxOptions{Isolation: s.store.isolation})
	if err != nil {
		return storageErr(op+": begin", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			s.logger.Error().Err(rbErr).Str("operation", op).Msg("rollback failed")
		}
		return classify(op, err)
	}

	if err := tx.Commit(); err != nil {
		return classify(op+": commit", err)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrFormat):
		return "format"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrAuthorization):
		return "authorization"
	case errors.Is(err, ErrIntegrity):
		return "integrity"
	case errors.Is(err, ErrSessionClosed):
		return "closed"
	default:
		return "storage"
	}
}
