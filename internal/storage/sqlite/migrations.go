package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/storage/sqlite/migrations"
)

// Migration is one registered schema step.
type Migration struct {
	Version int
	Name    string
	Func    func(ctx context.Context, db migrations.Execer) error
}

// MigrationError reports a step that failed. The recorded schema version is
// left at Version-1, so reopening the store retries this step.
type MigrationError struct {
	Version int
	Name    string
	Err     error
}

func (e *MigrationError) Error() string {
	return fmt.Sprintf("migration %d (%s) failed: %v", e.Version, e.Name, e.Err)
}

func (e *MigrationError) Unwrap() error { return e.Err }

// MigrationStatus describes one registered step relative to a store.
type MigrationStatus struct {
	Version int    `json:"version"`
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// registeredMigrations returns the ordered step registry. The timestamp
// backfill needs the store's clock, so the list is built per store.
func (s *SQLiteStorage) registeredMigrations() []Migration {
	return []Migration{
		{Version: 1, Name: "in_progress_column", Func: migrations.MigrateInProgressColumn},
		{Version: 2, Name: "null_state_flags", Func: migrations.MigrateNullStateFlags},
		{Version: 3, Name: "timestamp_columns", Func: func(ctx context.Context, db migrations.Execer) error {
			return migrations.MigrateTimestampColumns(ctx, db, formatTime(s.now()))
		}},
	}
}

// LatestVersion returns the schema version a fully migrated store reports.
func LatestVersion() int {
	var s SQLiteStorage
	steps := s.registeredMigrations()
	return steps[len(steps)-1].Version
}

// validateMigrations checks that versions start at 1 and increase by one.
func validateMigrations(steps []Migration) error {
	for i, m := range steps {
		if m.Version != i+1 {
			return fmt.Errorf("migration %q registered as version %d, expected %d", m.Name, m.Version, i+1)
		}
		if m.Func == nil {
			return fmt.Errorf("migration %d (%s) has no function", m.Version, m.Name)
		}
	}
	return nil
}

// ensureMeta creates the single db_meta row at version 0 if it is missing.
func ensureMeta(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO db_meta (schema_version)
		SELECT 0 WHERE NOT EXISTS (SELECT 1 FROM db_meta)`)
	if err != nil {
		return fmt.Errorf("failed to initialize db_meta: %w", err)
	}
	return nil
}

func readSchemaVersion(ctx context.Context, q interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}) (int, error) {
	var version int
	err := q.QueryRowContext(ctx, `SELECT schema_version FROM db_meta LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	return version, nil
}

// runMigrations applies every step newer than the recorded version, in order.
// Each step and its version bump share one exclusive transaction, so a failed
// step leaves both the schema and the recorded version untouched.
func runMigrations(ctx context.Context, db *sql.DB, steps []Migration, logger *slog.Logger) error {
	if err := validateMigrations(steps); err != nil {
		return err
	}
	if err := ensureMeta(ctx, db); err != nil {
		return err
	}

	current, err := readSchemaVersion(ctx, db)
	if err != nil {
		return err
	}

	for _, m := range steps {
		if m.Version <= current {
			continue
		}
		applied, err := applyMigration(ctx, db, m)
		if err != nil {
			logger.Error("migration failed", "version", m.Version, "name", m.Name, "error", err)
			return &MigrationError{Version: m.Version, Name: m.Name, Err: err}
		}
		if applied {
			logger.Info("applied migration", "version", m.Version, "name", m.Name)
		}
		current = m.Version
	}
	return nil
}

// applyMigration runs m unless the version read under the exclusive lock
// already covers it. It reports whether the step ran. schema_version never
// decreases.
func applyMigration(ctx context.Context, db *sql.DB, m Migration) (bool, error) {
	conn, err := db.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if _, err := conn.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return false, fmt.Errorf("failed to begin migration transaction: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	current, err := readSchemaVersion(ctx, conn)
	if err != nil {
		return false, err
	}
	if current >= m.Version {
		return false, nil
	}

	if err := m.Func(ctx, conn); err != nil {
		return false, err
	}
	if _, err := conn.ExecContext(ctx,
		`UPDATE db_meta SET schema_version = ? WHERE schema_version < ?`, m.Version, m.Version); err != nil {
		return false, fmt.Errorf("failed to record schema version: %w", err)
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return false, fmt.Errorf("failed to commit migration: %w", err)
	}
	committed = true
	return true, nil
}

// SchemaVersion returns the migration version recorded in db_meta.
func (s *SQLiteStorage) SchemaVersion(ctx context.Context) (int, error) {
	if s.closed.Load() {
		return 0, fmt.Errorf("schema version: %w", storage.ErrClosed)
	}
	return readSchemaVersion(ctx, s.db)
}

// MigrationsStatus lists every registered step and whether the store has it.
func (s *SQLiteStorage) MigrationsStatus(ctx context.Context) ([]MigrationStatus, error) {
	current, err := s.SchemaVersion(ctx)
	if err != nil {
		return nil, err
	}
	steps := s.registeredMigrations()
	out := make([]MigrationStatus, 0, len(steps))
	for _, m := range steps {
		out = append(out, MigrationStatus{Version: m.Version, Name: m.Name, Applied: m.Version <= current})
	}
	return out, nil
}
