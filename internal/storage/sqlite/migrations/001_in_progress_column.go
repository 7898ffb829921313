package migrations

import (
	"context"
	"fmt"
)

// MigrateInProgressColumn adds the in_progress flag that splits pending
// features into the todo and in-progress lanes. Existing rows default to
// false (todo).
func MigrateInProgressColumn(ctx context.Context, db Execer) error {
	if _, err := addColumnIfMissing(ctx, db, featuresTable, "in_progress", "BOOLEAN DEFAULT 0"); err != nil {
		return err
	}

	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS ix_features_in_progress ON features(in_progress)`)
	if err != nil {
		return fmt.Errorf("failed to create in_progress index: %w", err)
	}
	return nil
}
