package migrations

import (
	"context"
	"fmt"
)

// MigrateNullStateFlags normalizes NULL passes/in_progress values to false.
// Rows inserted before the columns had defaults, or by tools that wrote
// explicit NULLs, would otherwise match no lane at all.
func MigrateNullStateFlags(ctx context.Context, db Execer) error {
	for _, column := range []string{"passes", "in_progress"} {
		// #nosec G202 -- column names are internal constants
		_, err := db.ExecContext(ctx, `UPDATE features SET `+column+` = 0 WHERE `+column+` IS NULL`)
		if err != nil {
			return fmt.Errorf("failed to normalize %s: %w", column, err)
		}
	}
	return nil
}
