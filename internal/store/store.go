package store

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"
)

// Store is the State Store: transactional access to devices, pins,
// variables, input triggers and logs.
//
// All reads and writes go through WithTx so that a whole pipeline pass
// (snapshot, trigger execution, snapshot) observes and mutates a single
// consistent state. A mutex serializes passes on top of the database
// transaction: expression evaluation both reads and writes variables and
// must not interleave with a concurrent report.
type Store struct {
	db               *sql.DB
	heartbeatTimeout time.Duration

	// now is replaceable in tests.
	now func() time.Time

	mu sync.Mutex
}

// New creates a Store over an open database connection.
//
// Parameters:
//   - db: Open database handle (schema already migrated)
//   - heartbeatTimeout: Silence duration after which a device counts as dead
func New(db *sql.DB, heartbeatTimeout time.Duration) *Store {
	return &Store{
		db:               db,
		heartbeatTimeout: heartbeatTimeout,
		now:              time.Now,
	}
}

// SetNow replaces the clock used for last_seen stamps and aliveness checks.
// Intended for tests.
func (s *Store) SetNow(now func() time.Time) {
	s.now = now
}

// Tx provides the typed accessors valid for the duration of one
// transaction. It is only ever handed out by WithTx and must not be
// retained after the callback returns.
type Tx struct {
	tx  *sql.Tx
	ctx context.Context
	s   *Store
}

// WithTx runs fn inside a single database transaction, committing if fn
// returns nil and rolling back otherwise. The store-level mutex is held for
// the duration, serializing evaluation-pipeline passes.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - fn: Callback receiving the transactional accessors
//
// Returns:
//   - error: fn's error (transaction rolled back), or a begin/commit failure
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}

	if err := fn(&Tx{tx: tx, ctx: ctx, s: s}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rolling back after %w: %v", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Log appends a log entry in its own transaction. Convenience for callers
// outside a pipeline pass (e.g. the dispatch error handler).
func (s *Store) Log(ctx context.Context, severity Severity, message string, device, pin *string) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.AppendLog(severity, message, device, pin)
	})
}

// heartbeatLimit returns the oldest last_seen stamp that still counts as
// alive, formatted for comparison against stored timestamps.
func (s *Store) heartbeatLimit() string {
	return s.now().UTC().Add(-s.heartbeatTimeout).Format(time.RFC3339)
}

// timestamp formats a time for storage.
func timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

// parseTimestamp parses a stored timestamp. The format is controlled by
// this package, so parse failures yield the zero time.
func parseTimestamp(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s) //nolint:errcheck // Format is controlled
	return t
}
