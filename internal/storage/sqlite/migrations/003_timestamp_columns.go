package migrations

import (
	"context"
	"fmt"
)

// MigrateTimestampColumns adds created_at, modified_at and completed_at.
// Rows lacking created_at or modified_at are backfilled with now, which the
// caller passes pre-formatted in the store's timestamp layout. completed_at is
// left NULL: the completion time of legacy done rows is unknown.
func MigrateTimestampColumns(ctx context.Context, db Execer, now string) error {
	for _, column := range []string{"created_at", "modified_at", "completed_at"} {
		if _, err := addColumnIfMissing(ctx, db, featuresTable, column, "DATETIME"); err != nil {
			return err
		}
	}

	for _, column := range []string{"created_at", "modified_at"} {
		// #nosec G202 -- column names are internal constants
		_, err := db.ExecContext(ctx, `UPDATE features SET `+column+` = ? WHERE `+column+` IS NULL`, now)
		if err != nil {
			return fmt.Errorf("failed to backfill %s: %w", column, err)
		}
	}
	return nil
}
