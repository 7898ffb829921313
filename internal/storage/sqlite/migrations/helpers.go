// Package migrations holds the versioned schema steps applied to feature stores.
//
// Each step probes the physical schema before changing it, so running a step
// against a store that already has its change is a no-op. Steps never commit;
// the runner in the parent package wraps each one in an exclusive transaction
// together with the schema_version bump.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// Execer is the subset of *sql.DB, *sql.Conn and *sql.Tx that steps use.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

const featuresTable = "features"

// columnExists checks if a column exists in a table using pragma_table_info.
func columnExists(ctx context.Context, db Execer, table, column string) (bool, error) {
	var exists bool
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) > 0 FROM pragma_table_info(?) WHERE name = ?`, table, column,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check %s.%s column: %w", table, column, err)
	}
	return exists, nil
}

// addColumnIfMissing adds column with the given type/default clause unless it
// is already present. A concurrent opener adding the same column first is
// tolerated.
func addColumnIfMissing(ctx context.Context, db Execer, table, column, definition string) (bool, error) {
	exists, err := columnExists(ctx, db, table, column)
	if err != nil {
		return false, err
	}
	if exists {
		return false, nil
	}
	// #nosec G202 -- table, column and definition are internal constants
	_, err = db.ExecContext(ctx, "ALTER TABLE "+table+" ADD COLUMN "+column+" "+definition)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "duplicate column") {
			return false, nil
		}
		return false, fmt.Errorf("failed to add %s column: %w", column, err)
	}
	return true, nil
}
