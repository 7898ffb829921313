package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"sync"
	"testing"
	"time"
)

// testClock is a settable clock for deterministic timestamps.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore(t *testing.T, opts ...Option) *SQLiteStorage {
	t.Helper()
	path := filepath.Join(t.TempDir(), "features.db")
	store, err := New(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

// legacySchemaV0 is the features table as written before any migration
// existed: no in_progress flag and no timestamps.
const legacySchemaV0 = `
	CREATE TABLE features (
		id INTEGER PRIMARY KEY,
		priority INTEGER NOT NULL DEFAULT 999,
		category VARCHAR(100) NOT NULL,
		name VARCHAR(255) NOT NULL,
		description TEXT NOT NULL,
		steps JSON NOT NULL,
		passes BOOLEAN
	);
	CREATE INDEX ix_features_priority ON features(priority);
	CREATE INDEX ix_features_passes ON features(passes);`

// writeLegacyStore creates a version-0 store file with the given rows
// (executed verbatim) and returns its path.
func writeLegacyStore(t *testing.T, inserts ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("open legacy db: %v", err)
	}
	defer func() { _ = db.Close() }()
	if _, err := db.Exec(legacySchemaV0); err != nil {
		t.Fatalf("create legacy schema: %v", err)
	}
	for _, stmt := range inserts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("seed legacy row: %v", err)
		}
	}
	return path
}

// openRaw opens a store file without the schema or migrations.
func openRaw(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	return db, nil
}
