// Package lanes implements the board ordering rules on top of a feature store.
//
// Features live in three lanes derived from their state flags. Within the
// todo and in-progress lanes the display order is ascending priority; the
// Engine provides the operations a drag-and-drop board needs to change that
// order. Every mutating operation runs as one storage transaction, so a
// lane snapshot read by Move or Reorder cannot change before its writes land.
package lanes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

// DefaultPageSize is used when a paginated list asks for a non-positive limit.
const DefaultPageSize = 20

// Engine applies lane ordering operations to a store.
type Engine struct {
	store  storage.Storage
	logger *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used for mutation diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New returns an Engine operating on store.
func New(store storage.Storage, opts ...Option) *Engine {
	e := &Engine{store: store, logger: slog.New(slog.DiscardHandler)}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Store returns the underlying store handle.
func (e *Engine) Store() storage.Storage {
	return e.store
}

// NewFeature holds the caller-supplied fields of Create.
type NewFeature struct {
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
}

func (n NewFeature) validate() error {
	if strings.TrimSpace(n.Category) == "" {
		return invalid("category", "is required")
	}
	if strings.TrimSpace(n.Name) == "" {
		return invalid("name", "is required")
	}
	return nil
}

func (n NewFeature) feature(priority int) *types.Feature {
	steps := append([]string{}, n.Steps...)
	return &types.Feature{
		Priority:    priority,
		Category:    n.Category,
		Name:        n.Name,
		Description: n.Description,
		Steps:       steps,
	}
}

// Create adds a todo feature after every existing feature. The priority is
// one more than the highest priority in the whole store, not just the todo
// lane, so new cards also sort after in-progress and done ones.
func (e *Engine) Create(ctx context.Context, in NewFeature) (*types.Feature, error) {
	created, err := e.CreateBulk(ctx, []NewFeature{in})
	if err != nil {
		return nil, err
	}
	return created[0], nil
}

// CreateBulk adds features in order with consecutive priorities starting
// after the current store maximum. Either all are created or none.
func (e *Engine) CreateBulk(ctx context.Context, in []NewFeature) ([]*types.Feature, error) {
	if len(in) == 0 {
		return nil, invalid("features", "at least one feature is required")
	}
	for i, n := range in {
		if err := n.validate(); err != nil {
			if len(in) > 1 {
				return nil, invalid(fmt.Sprintf("features[%d]", i), "%v", err)
			}
			return nil, err
		}
	}

	created := make([]*types.Feature, 0, len(in))
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		top, err := tx.MaxPriority(ctx)
		if err != nil {
			return err
		}
		for i, n := range in {
			f := n.feature(top + i + 1)
			if err := tx.CreateFeature(ctx, f); err != nil {
				return err
			}
			created = append(created, f)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create features: %w", err)
	}
	e.logger.Debug("created features", "count", len(created), "first_priority", created[0].Priority)
	return created, nil
}

// Get returns one feature.
func (e *Engine) Get(ctx context.Context, id int64) (*types.Feature, error) {
	f, err := e.store.GetFeature(ctx, id)
	if err != nil {
		return nil, notFound(err, id, false)
	}
	return f, nil
}

// List returns features matching filter in display order: by completion time
// when the filter selects the done lane, by priority otherwise.
func (e *Engine) List(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error) {
	return e.store.ListFeatures(ctx, filter)
}

// ListPage is List with pagination metadata. A non-positive limit becomes
// DefaultPageSize and a negative offset becomes zero.
func (e *Engine) ListPage(ctx context.Context, filter types.FeatureFilter) (*types.Page, error) {
	if filter.Limit <= 0 {
		filter.Limit = DefaultPageSize
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}
	total, err := e.store.CountFeatures(ctx, filter)
	if err != nil {
		return nil, err
	}
	features, err := e.store.ListFeatures(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &types.Page{Features: features, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// Stats returns store-wide progress counts.
func (e *Engine) Stats(ctx context.Context) (*types.Statistics, error) {
	return e.store.GetStatistics(ctx)
}

// Update applies a partial field update and returns the updated feature.
func (e *Engine) Update(ctx context.Context, id int64, u types.FeatureUpdate) (*types.Feature, error) {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return nil, invalid("name", "cannot be empty")
	}
	if u.Category != nil && strings.TrimSpace(*u.Category) == "" {
		return nil, invalid("category", "cannot be empty")
	}

	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		if u.IsEmpty() {
			return nil
		}
		merged := *f
		u.Apply(&merged)
		if err := merged.Validate(); err != nil {
			return &ValidationError{Message: err.Error()}
		}
		updates := map[string]interface{}{}
		if u.Category != nil {
			updates[storage.FieldCategory] = merged.Category
		}
		if u.Name != nil {
			updates[storage.FieldName] = merged.Name
		}
		if u.Description != nil {
			updates[storage.FieldDescription] = merged.Description
		}
		if u.Steps != nil {
			updates[storage.FieldSteps] = merged.Steps
		}
		return tx.UpdateFeature(ctx, id, updates)
	})
}

// Delete removes a feature. Remaining priorities are left as they are; the
// ordering tolerates gaps.
func (e *Engine) Delete(ctx context.Context, id int64) error {
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		return tx.DeleteFeature(ctx, id)
	})
	if err != nil {
		return notFound(err, id, false)
	}
	e.logger.Debug("deleted feature", "id", id)
	return nil
}

// SetState changes the lane flags. passes=true stamps completed_at and
// passes=false clears it; in_progress never affects completed_at. Priority
// is kept across lane changes.
func (e *Engine) SetState(ctx context.Context, id int64, change types.StateChange) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		updates := map[string]interface{}{}
		if change.Passes != nil {
			updates[storage.FieldPasses] = *change.Passes
		}
		if change.InProgress != nil {
			updates[storage.FieldInProgress] = *change.InProgress
		}
		if len(updates) == 0 {
			return nil
		}
		return tx.UpdateFeature(ctx, id, updates)
	})
}

// SetPriority assigns an absolute priority. Values below 1 are rejected.
func (e *Engine) SetPriority(ctx context.Context, id int64, priority int) (*types.Feature, error) {
	if priority < 1 {
		return nil, invalid("priority", "must be >= 1")
	}
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		return tx.UpdateFeature(ctx, id, map[string]interface{}{storage.FieldPriority: priority})
	})
}

// Move swaps the feature's priority with its nearest neighbor in the same
// lane. It fails with ErrEdgeOfLane when there is no neighbor in that
// direction.
func (e *Engine) Move(ctx context.Context, id int64, dir types.Direction) (*types.Feature, error) {
	if !dir.IsValid() {
		return nil, invalid("direction", "must be 'up' or 'down'")
	}
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		lane, err := tx.LaneFeatures(ctx, f.Passes, f.InProgress)
		if err != nil {
			return err
		}
		idx := indexOf(lane, id)
		if idx < 0 {
			return fmt.Errorf("feature %d missing from its own lane snapshot", id)
		}
		other, ok := neighbor(lane, idx, dir)
		if !ok {
			return fmt.Errorf("cannot move feature %s: %w", dir, ErrEdgeOfLane)
		}
		if err := tx.UpdateFeature(ctx, id, map[string]interface{}{storage.FieldPriority: other.Priority}); err != nil {
			return err
		}
		if err := tx.UpdateFeature(ctx, other.ID, map[string]interface{}{storage.FieldPriority: f.Priority}); err != nil {
			return err
		}
		e.logger.Debug("moved feature", "id", id, "direction", string(dir), "swapped_with", other.ID)
		return nil
	})
}

// Reorder places the feature immediately before or after target, which must
// be in the same lane. The lane's existing priority values are reassigned in
// the new order, so the set of values the lane uses never changes and other
// lanes are unaffected.
func (e *Engine) Reorder(ctx context.Context, id, targetID int64, insertBefore bool) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		target, err := tx.GetFeature(ctx, targetID)
		if err != nil {
			return notFound(err, targetID, true)
		}
		if !f.SameLane(target) {
			return fmt.Errorf("reorder %d relative to %d: %w", id, targetID, ErrLaneMismatch)
		}
		if targetID == id {
			return invalid("target_id", "must differ from the feature being moved")
		}

		lane, err := tx.LaneFeatures(ctx, f.Passes, f.InProgress)
		if err != nil {
			return err
		}
		changes, ok := planReorder(lane, id, targetID, insertBefore)
		if !ok {
			return fmt.Errorf("reorder %d relative to %d: %w", id, targetID, ErrLaneMismatch)
		}
		for fid, p := range changes {
			if err := tx.UpdateFeature(ctx, fid, map[string]interface{}{storage.FieldPriority: p}); err != nil {
				return err
			}
		}
		e.logger.Debug("reordered feature", "id", id, "target", targetID, "before", insertBefore, "changed", len(changes))
		return nil
	})
}

// Next returns the todo feature with the lowest priority.
func (e *Engine) Next(ctx context.Context) (*types.Feature, error) {
	filter := types.LaneTodo.Filter()
	filter.Limit = 1
	features, err := e.store.ListFeatures(ctx, filter)
	if err != nil {
		return nil, err
	}
	if len(features) == 0 {
		return nil, ErrNoPending
	}
	return features[0], nil
}

// MarkInProgress claims a todo feature.
func (e *Engine) MarkInProgress(ctx context.Context, id int64) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		switch {
		case f.Passes:
			return fmt.Errorf("feature %d: %w", id, ErrAlreadyPassing)
		case f.InProgress:
			return fmt.Errorf("feature %d: %w", id, ErrAlreadyInProgress)
		}
		return tx.UpdateFeature(ctx, id, map[string]interface{}{storage.FieldInProgress: true})
	})
}

// MarkPassing moves a feature to done and releases any in-progress claim.
func (e *Engine) MarkPassing(ctx context.Context, id int64) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		return tx.UpdateFeature(ctx, id, map[string]interface{}{
			storage.FieldPasses:     true,
			storage.FieldInProgress: false,
		})
	})
}

// ClearInProgress returns an in-progress feature to todo.
func (e *Engine) ClearInProgress(ctx context.Context, id int64) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		return tx.UpdateFeature(ctx, id, map[string]interface{}{storage.FieldInProgress: false})
	})
}

// Skip sends a pending feature to the back of the queue, using the same
// store-wide maximum as Create, and releases any in-progress claim.
func (e *Engine) Skip(ctx context.Context, id int64) (*types.Feature, error) {
	return e.mutate(ctx, id, func(tx storage.Transaction, f *types.Feature) error {
		if f.Passes {
			return fmt.Errorf("feature %d: %w", id, ErrAlreadyPassing)
		}
		top, err := tx.MaxPriority(ctx)
		if err != nil {
			return err
		}
		return tx.UpdateFeature(ctx, id, map[string]interface{}{
			storage.FieldPriority:   top + 1,
			storage.FieldInProgress: false,
		})
	})
}

// mutate loads id inside a transaction, runs fn, and returns the feature as
// committed.
func (e *Engine) mutate(ctx context.Context, id int64, fn func(tx storage.Transaction, f *types.Feature) error) (*types.Feature, error) {
	var out *types.Feature
	err := e.store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		f, err := tx.GetFeature(ctx, id)
		if err != nil {
			return notFound(err, id, false)
		}
		if err := fn(tx, f); err != nil {
			return err
		}
		out, err = tx.GetFeature(ctx, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
