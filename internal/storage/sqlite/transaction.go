package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

// Verify sqliteTxStorage implements storage.Transaction at compile time
var _ storage.Transaction = (*sqliteTxStorage)(nil)

// sqliteTxStorage implements the storage.Transaction interface for SQLite.
// It wraps a dedicated database connection with an active transaction.
type sqliteTxStorage struct {
	conn   *sql.Conn      // Dedicated connection for the transaction
	parent *SQLiteStorage // Parent storage for the clock
}

// RunInTransaction executes a function within a database transaction.
//
// The transaction uses BEGIN IMMEDIATE to take the write lock before the
// callback reads anything. A lane snapshot read inside fn therefore cannot
// change under it, which is what makes Move and Reorder atomic against
// concurrent writers.
//
// Transaction lifecycle:
//  1. Acquire dedicated connection from pool
//  2. Begin IMMEDIATE transaction, retrying with backoff on SQLITE_BUSY
//  3. Execute user function with Transaction interface
//  4. On success: COMMIT
//  5. On error or panic: ROLLBACK
func (s *SQLiteStorage) RunInTransaction(ctx context.Context, fn func(tx storage.Transaction) error) error {
	if s.closed.Load() {
		return storage.ErrClosed
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection for transaction: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn, s.lockTimeout); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback completes even if ctx is cancelled
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	// Handle panics: rollback happens via the committed=false check above
	defer func() {
		if r := recover(); r != nil {
			panic(r)
		}
	}()

	if err := fn(&sqliteTxStorage{conn: conn, parent: s}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	committed = true
	return nil
}

func newBusyBackoff(maxElapsed time.Duration) *backoff.ExponentialBackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 500 * time.Millisecond
	bo.MaxElapsedTime = maxElapsed
	return bo
}

// beginImmediateWithRetry starts an IMMEDIATE transaction. busy_timeout
// already makes SQLite wait for the lock; the backoff covers the cases where
// SQLite returns SQLITE_BUSY without invoking the busy handler.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, maxElapsed time.Duration) error {
	op := func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusyError(err) {
			return err
		}
		return backoff.Permanent(err)
	}
	return backoff.Retry(op, backoff.WithContext(newBusyBackoff(maxElapsed), ctx))
}

func (t *sqliteTxStorage) CreateFeature(ctx context.Context, f *types.Feature) error {
	return insertFeature(ctx, t.conn, f, t.parent.now())
}

func (t *sqliteTxStorage) GetFeature(ctx context.Context, id int64) (*types.Feature, error) {
	return getFeature(ctx, t.conn, id)
}

func (t *sqliteTxStorage) ListFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error) {
	return listFeatures(ctx, t.conn, filter)
}

func (t *sqliteTxStorage) CountFeatures(ctx context.Context, filter types.FeatureFilter) (int, error) {
	return countFeatures(ctx, t.conn, filter)
}

func (t *sqliteTxStorage) LaneFeatures(ctx context.Context, passes, inProgress bool) ([]*types.Feature, error) {
	return laneFeatures(ctx, t.conn, passes, inProgress)
}

func (t *sqliteTxStorage) MaxPriority(ctx context.Context) (int, error) {
	return maxPriority(ctx, t.conn)
}

func (t *sqliteTxStorage) UpdateFeature(ctx context.Context, id int64, updates map[string]interface{}) error {
	return updateFeature(ctx, t.conn, id, updates, t.parent.now())
}

func (t *sqliteTxStorage) DeleteFeature(ctx context.Context, id int64) error {
	return deleteFeature(ctx, t.conn, id)
}
