package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

// dbtx is implemented by *sql.DB, *sql.Conn and *sql.Tx, letting the store
// and its transactions share one set of queries.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// rowScanner is implemented by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanFeature(row rowScanner) (*types.Feature, error) {
	var (
		f                             types.Feature
		priority                      sql.NullInt64
		passes, inProgress            sql.NullBool
		steps                         interface{}
		createdAt, modifiedAt, doneAt interface{}
	)
	if err := row.Scan(&f.ID, &priority, &f.Category, &f.Name, &f.Description, &steps,
		&passes, &inProgress, &createdAt, &modifiedAt, &doneAt); err != nil {
		return nil, err
	}

	f.Priority = 999
	if priority.Valid {
		f.Priority = int(priority.Int64)
	}
	f.Passes = passes.Valid && passes.Bool
	f.InProgress = inProgress.Valid && inProgress.Bool

	parsed, err := parseSteps(steps)
	if err != nil {
		return nil, fmt.Errorf("feature %d: %w", f.ID, err)
	}
	f.Steps = parsed

	if t := parseTimeValue(createdAt); t != nil {
		f.CreatedAt = *t
	}
	if t := parseTimeValue(modifiedAt); t != nil {
		f.ModifiedAt = *t
	}
	f.CompletedAt = parseTimeValue(doneAt)
	return &f, nil
}

func scanFeatures(rows *sql.Rows) ([]*types.Feature, error) {
	defer func() { _ = rows.Close() }()
	features := []*types.Feature{}
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		features = append(features, f)
	}
	return features, rows.Err()
}

func getFeature(ctx context.Context, q dbtx, id int64) (*types.Feature, error) {
	row := q.QueryRowContext(ctx, `SELECT `+featureColumns+` FROM features WHERE id = ?`, id)
	f, err := scanFeature(row)
	if err != nil {
		return nil, wrapDBErrorf(err, "get feature %d", id)
	}
	return f, nil
}

// buildWhere renders the filter's predicates. Pagination is not included.
func buildWhere(filter types.FeatureFilter) (string, []interface{}) {
	var clauses []string
	var args []interface{}
	if filter.Passes != nil {
		clauses = append(clauses, "COALESCE(passes, 0) = ?")
		args = append(args, *filter.Passes)
	}
	if filter.InProgress != nil {
		clauses = append(clauses, "COALESCE(in_progress, 0) = ?")
		args = append(args, *filter.InProgress)
	}
	if filter.Category != nil {
		clauses = append(clauses, "category = ?")
		args = append(args, *filter.Category)
	}
	if filter.CompletedAfter != nil {
		clauses = append(clauses, "completed_at >= ?")
		args = append(args, formatTime(*filter.CompletedAfter))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func orderBy(filter types.FeatureFilter) string {
	if filter.DoneOrdering() {
		return " ORDER BY completed_at IS NULL, completed_at DESC, id ASC"
	}
	return " ORDER BY priority ASC, id ASC"
}

func listFeatures(ctx context.Context, q dbtx, filter types.FeatureFilter) ([]*types.Feature, error) {
	where, args := buildWhere(filter)
	query := `SELECT ` + featureColumns + ` FROM features` + where + orderBy(filter)
	switch {
	case filter.Limit > 0:
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, max(filter.Offset, 0))
	case filter.Offset > 0:
		query += " LIMIT -1 OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, wrapDBError("list features", err)
	}
	features, err := scanFeatures(rows)
	if err != nil {
		return nil, wrapDBError("scan features", err)
	}
	return features, nil
}

func countFeatures(ctx context.Context, q dbtx, filter types.FeatureFilter) (int, error) {
	where, args := buildWhere(filter)
	var n int
	if err := q.QueryRowContext(ctx, `SELECT COUNT(*) FROM features`+where, args...).Scan(&n); err != nil {
		return 0, wrapDBError("count features", err)
	}
	return n, nil
}

func laneFeatures(ctx context.Context, q dbtx, passes, inProgress bool) ([]*types.Feature, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+featureColumns+` FROM features
		WHERE COALESCE(passes, 0) = ? AND COALESCE(in_progress, 0) = ?
		ORDER BY priority ASC, id ASC`, passes, inProgress)
	if err != nil {
		return nil, wrapDBError("list lane", err)
	}
	features, err := scanFeatures(rows)
	if err != nil {
		return nil, wrapDBError("scan lane", err)
	}
	return features, nil
}

func maxPriority(ctx context.Context, q dbtx) (int, error) {
	var p sql.NullInt64
	if err := q.QueryRowContext(ctx, `SELECT MAX(priority) FROM features`).Scan(&p); err != nil {
		return 0, wrapDBError("max priority", err)
	}
	if !p.Valid {
		return 0, nil
	}
	return int(p.Int64), nil
}

func statistics(ctx context.Context, q dbtx) (*types.Statistics, error) {
	var total, passing, inProgress int
	err := q.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN passes THEN 1 ELSE 0 END), 0),
		       COALESCE(SUM(CASE WHEN in_progress THEN 1 ELSE 0 END), 0)
		FROM features`).Scan(&total, &passing, &inProgress)
	if err != nil {
		return nil, wrapDBError("statistics", err)
	}
	stats := types.NewStatistics(passing, inProgress, total)
	return &stats, nil
}

func insertFeature(ctx context.Context, q dbtx, f *types.Feature, now time.Time) error {
	if err := f.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	steps, err := formatSteps(f.Steps)
	if err != nil {
		return err
	}
	if f.Steps == nil {
		f.Steps = []string{}
	}

	// Match the stored precision so the caller's copy equals a re-read.
	now = now.UTC().Truncate(time.Microsecond)
	f.CreatedAt = now
	f.ModifiedAt = now
	var completed interface{}
	if f.Passes {
		if f.CompletedAt == nil {
			t := now
			f.CompletedAt = &t
		} else {
			t := f.CompletedAt.UTC().Truncate(time.Microsecond)
			f.CompletedAt = &t
		}
		completed = formatTime(*f.CompletedAt)
	}

	var id interface{}
	if f.ID != 0 {
		id = f.ID
	}
	res, err := q.ExecContext(ctx, `
		INSERT INTO features (id, priority, category, name, description, steps,
			passes, in_progress, created_at, modified_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, f.Priority, f.Category, f.Name, f.Description, steps,
		f.Passes, f.InProgress, formatTime(now), formatTime(now), completed)
	if err != nil {
		return wrapDBError("insert feature", err)
	}
	if f.ID == 0 {
		lastID, err := res.LastInsertId()
		if err != nil {
			return wrapDBError("read feature id", err)
		}
		f.ID = lastID
	}
	return nil
}

// allowedUpdateFields is the set of columns UpdateFeature may write.
var allowedUpdateFields = map[string]bool{
	storage.FieldCategory:    true,
	storage.FieldName:        true,
	storage.FieldDescription: true,
	storage.FieldSteps:       true,
	storage.FieldPriority:    true,
	storage.FieldPasses:      true,
	storage.FieldInProgress:  true,
}

func updateFeature(ctx context.Context, q dbtx, id int64, updates map[string]interface{}, now time.Time) error {
	setClauses := []string{"modified_at = ?"}
	args := []interface{}{formatTime(now)}

	for key, value := range updates {
		if !allowedUpdateFields[key] {
			return fmt.Errorf("invalid field for update: %s", key)
		}
		switch key {
		case storage.FieldSteps:
			steps, ok := value.([]string)
			if !ok {
				return fmt.Errorf("steps must be []string, got %T", value)
			}
			encoded, err := formatSteps(steps)
			if err != nil {
				return err
			}
			value = encoded
		case storage.FieldPriority:
			if _, ok := value.(int); !ok {
				return fmt.Errorf("priority must be int, got %T", value)
			}
		case storage.FieldPasses, storage.FieldInProgress:
			if _, ok := value.(bool); !ok {
				return fmt.Errorf("%s must be bool, got %T", key, value)
			}
		default:
			if _, ok := value.(string); !ok {
				return fmt.Errorf("%s must be string, got %T", key, value)
			}
		}
		// #nosec G202 -- key is checked against allowedUpdateFields
		setClauses = append(setClauses, key+" = ?")
		args = append(args, value)
	}

	setClauses, args = manageCompletedAt(updates, setClauses, args, now)

	args = append(args, id)
	// #nosec G202 -- set clauses are built from allowedUpdateFields
	res, err := q.ExecContext(ctx, `UPDATE features SET `+strings.Join(setClauses, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return wrapDBErrorf(err, "update feature %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErrorf(err, "update feature %d", id)
	}
	if n == 0 {
		return fmt.Errorf("update feature %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// manageCompletedAt keeps completed_at in step with passes: every write of
// passes=true stamps it with now and every write of passes=false clears it.
func manageCompletedAt(updates map[string]interface{}, setClauses []string, args []interface{}, now time.Time) ([]string, []interface{}) {
	passes, ok := updates[storage.FieldPasses].(bool)
	if !ok {
		return setClauses, args
	}
	if passes {
		setClauses = append(setClauses, "completed_at = ?")
		args = append(args, formatTime(now))
	} else {
		setClauses = append(setClauses, "completed_at = NULL")
	}
	return setClauses, args
}

func deleteFeature(ctx context.Context, q dbtx, id int64) error {
	res, err := q.ExecContext(ctx, `DELETE FROM features WHERE id = ?`, id)
	if err != nil {
		return wrapDBErrorf(err, "delete feature %d", id)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrapDBErrorf(err, "delete feature %d", id)
	}
	if n == 0 {
		return fmt.Errorf("delete feature %d: %w", id, storage.ErrNotFound)
	}
	return nil
}

// Read methods on the store run outside RunInTransaction against the pool.

// GetFeature retrieves a feature by id.
func (s *SQLiteStorage) GetFeature(ctx context.Context, id int64) (*types.Feature, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	return getFeature(ctx, s.db, id)
}

// ListFeatures returns features matching filter in display order.
func (s *SQLiteStorage) ListFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	return listFeatures(ctx, s.db, filter)
}

// CountFeatures counts features matching filter, ignoring limit and offset.
func (s *SQLiteStorage) CountFeatures(ctx context.Context, filter types.FeatureFilter) (int, error) {
	if s.closed.Load() {
		return 0, storage.ErrClosed
	}
	return countFeatures(ctx, s.db, filter)
}

// GetStatistics returns pass/in-progress counts for the whole store.
func (s *SQLiteStorage) GetStatistics(ctx context.Context) (*types.Statistics, error) {
	if s.closed.Load() {
		return nil, storage.ErrClosed
	}
	return statistics(ctx, s.db)
}
