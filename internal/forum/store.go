package forum

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medforum/medforum/internal/platform/db"
	"github.com/medforum/medforum/internal/platform/metrics"
	"github.com/medforum/medforum/internal/platform/phi"
)

// Options configure a Store. The zero value uses the engine's default
// isolation, no per-operation deadline and foreign keys off.
type Options struct {
	// Isolation is requested for every transaction a Session begins.
	Isolation sql.IsolationLevel
	// ForeignKeys enables per-connection foreign key enforcement on SQLite.
	ForeignKeys bool
	// BusyTimeout is how long a SQLite Session waits for another writer.
	BusyTimeout time.Duration
	// OpTimeout caps every Session operation. Zero means no extra deadline.
	OpTimeout time.Duration
	// Codec seals restricted profile fields. Nil stores them as plain text.
	Codec *phi.Codec
	// Metrics may be nil.
	Metrics *metrics.SessionMetrics
	// Logger defaults to a no-op logger.
	Logger *zerolog.Logger
	// Now defaults to time.Now.
	Now func() time.Time
}

// Store hands out Sessions over a connection pool.
type Store struct {
	pool      *sql.DB
	driver    db.Driver
	isolation sql.IsolationLevel
	fk        bool
	busy      time.Duration
	timeout   time.Duration
	codec     *phi.Codec
	metrics   *metrics.SessionMetrics
	logger    zerolog.Logger
	now       func() time.Time
}

// NewStore returns a Store over pool. The pool must have been opened for driver.
func NewStore(pool *sql.DB, driver db.Driver, opts Options) *Store {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Store{
		pool:      pool,
		driver:    driver,
		isolation: driver.TxIsolation(opts.Isolation),
		fk:        opts.ForeignKeys,
		busy:      opts.BusyTimeout,
		timeout:   opts.OpTimeout,
		codec:     opts.Codec,
		metrics:   opts.Metrics,
		logger:    logger.With().Str("component", "forum").Logger(),
		now:       now,
	}
}

// Open acquires one connection for exclusive use by the returned Session.
// The caller must Close it; WithSession does that automatically.
func (s *Store) Open(ctx context.Context) (*Session, error) {
	conn, err := db.Acquire(ctx, s.pool, s.driver, db.ConnOptions{ForeignKeys: s.fk, BusyTimeout: s.busy})
	if err != nil {
		return nil, storageErr("open session", err)
	}

	id := uuid.New().String()
	sess := &Session{
		store:  s,
		conn:   conn,
		logger: s.logger.With().Str("session_id", id).Logger(),
	}
	s.metrics.SessionOpened()
	sess.logger.Debug().Msg("session opened")
	return sess, nil
}

// WithSession opens a Session, runs fn and closes the Session on every exit
// path. A close failure is joined to fn's error.
func (s *Store) WithSession(ctx context.Context, fn func(*Session) error) (err error) {
	sess, err := s.Open(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := sess.Close(); cerr != nil {
			err = errors.Join(err, fmt.Errorf("close session: %w", cerr))
		}
	}()
	return fn(sess)
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}
