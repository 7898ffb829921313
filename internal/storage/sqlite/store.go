// Package sqlite implements the storage interface using SQLite.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"github.com/featureboard/featureboard/internal/storage"
)

// Verify SQLiteStorage implements storage.Storage at compile time
var _ storage.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite
type SQLiteStorage struct {
	db          *sql.DB
	dbPath      string
	closed      atomic.Bool // Tracks whether Close() has been called
	logger      *slog.Logger
	now         func() time.Time
	lockTimeout time.Duration
}

// Option configures a store at open time.
type Option func(*SQLiteStorage)

// WithLogger routes migration and store diagnostics to logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *SQLiteStorage) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock replaces time.Now for created/modified/completed timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStorage) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockTimeout bounds how long a transaction waits for the write lock.
func WithLockTimeout(d time.Duration) Option {
	return func(s *SQLiteStorage) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

const defaultLockTimeout = 30 * time.Second

// New opens (creating if needed) the store at path and migrates it to the
// latest schema. A failed migration is returned as *MigrationError and the
// store is not usable.
func New(ctx context.Context, path string, opts ...Option) (*SQLiteStorage, error) {
	s := &SQLiteStorage{
		logger:      slog.New(slog.DiscardHandler),
		now:         time.Now,
		lockTimeout: defaultLockTimeout,
	}
	for _, opt := range opts {
		opt(s)
	}

	busyMillis := s.lockTimeout.Milliseconds()
	pragmas := fmt.Sprintf("_pragma=foreign_keys(1)&_pragma=busy_timeout(%d)", busyMillis)

	// Build connection string with proper URI syntax
	var connStr string
	isInMemory := path == ":memory:"
	if isInMemory {
		// WAL is unavailable for in-memory databases
		connStr = "file::memory:?" + pragmas
	} else if strings.HasPrefix(path, "file:") {
		connStr = path
		if !strings.Contains(path, "_pragma=busy_timeout") {
			sep := "?"
			if strings.Contains(path, "?") {
				sep = "&"
			}
			connStr += sep + pragmas
		}
		isInMemory = strings.Contains(path, "mode=memory")
	} else {
		// Ensure directory exists for file-based databases
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create directory: %w", err)
		}
		connStr = "file:" + path + "?" + pragmas
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if isInMemory {
		// Every connection would otherwise get its own empty database.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	} else {
		// WAL allows one writer plus readers; more connections only pile up
		// on the write lock.
		maxConns := runtime.NumCPU() + 1
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(2)
		db.SetConnMaxLifetime(0)

		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.db = db
	if err := runMigrations(ctx, db, s.registeredMigrations(), s.logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	absPath := path
	if !isInMemory && !strings.HasPrefix(path, "file:") {
		absPath, err = filepath.Abs(path)
		if err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to get absolute path: %w", err)
		}
	}
	s.dbPath = absPath

	s.logger.Debug("opened feature store", "path", absPath)
	return s, nil
}

// Close closes the database connection.
// It checkpoints the WAL so that all writes land in the main database file.
func (s *SQLiteStorage) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.db.Close()
}

// Path returns the absolute path to the database file
func (s *SQLiteStorage) Path() string {
	return s.dbPath
}

// IsClosed returns true if Close() has been called on this storage
func (s *SQLiteStorage) IsClosed() bool {
	return s.closed.Load()
}

// UnderlyingDB returns the underlying *sql.DB connection.
// Callers must not close it or change its pragmas; it is intended for tests
// and read-only diagnostics.
func (s *SQLiteStorage) UnderlyingDB() *sql.DB {
	return s.db
}
