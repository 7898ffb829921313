// Package storage provides shared types for feature storage.
//
// The concrete storage implementation lives in the sqlite sub-package.
// This package holds the interfaces and sentinel errors referenced by both
// the sqlite implementation and its consumers (lanes, api, cmd/fb, etc.).
package storage

import (
	"context"
	"errors"

	"github.com/featureboard/featureboard/internal/types"
)

// ErrNotFound is returned when a requested feature does not exist in the database.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an explicit feature id is already taken.
var ErrConflict = errors.New("conflict")

// ErrClosed is returned by operations on a store that has been closed.
var ErrClosed = errors.New("store is closed")

// Updatable field names accepted by Transaction.UpdateFeature.
const (
	FieldCategory    = "category"
	FieldName        = "name"
	FieldDescription = "description"
	FieldSteps       = "steps"
	FieldPriority    = "priority"
	FieldPasses      = "passes"
	FieldInProgress  = "in_progress"
)

// Storage is the interface satisfied by *sqlite.SQLiteStorage.
// Consumers depend on this interface rather than on the concrete type so that
// decorators (telemetry) and alternative implementations can be substituted.
//
// Read methods run outside a transaction. Every mutation goes through
// RunInTransaction so that read-compute-write sequences are atomic.
type Storage interface {
	GetFeature(ctx context.Context, id int64) (*types.Feature, error)
	ListFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error)
	CountFeatures(ctx context.Context, filter types.FeatureFilter) (int, error)
	GetStatistics(ctx context.Context) (*types.Statistics, error)

	// SchemaVersion returns the migration version recorded in db_meta.
	SchemaVersion(ctx context.Context) (int, error)

	// RunInTransaction executes fn inside a single write transaction.
	// If fn returns an error (or panics) every change is rolled back.
	RunInTransaction(ctx context.Context, fn func(tx Transaction) error) error

	// Path returns the absolute path of the store file.
	Path() string
	Close() error
}

// Transaction is the set of operations available inside RunInTransaction.
// All reads observe the transaction's own writes.
type Transaction interface {
	// CreateFeature inserts f. A zero ID is assigned by the store; a non-zero
	// ID is inserted as given. CreatedAt and ModifiedAt are set to now.
	CreateFeature(ctx context.Context, f *types.Feature) error
	GetFeature(ctx context.Context, id int64) (*types.Feature, error)
	ListFeatures(ctx context.Context, filter types.FeatureFilter) ([]*types.Feature, error)
	CountFeatures(ctx context.Context, filter types.FeatureFilter) (int, error)

	// LaneFeatures returns every feature with exactly the given state flags,
	// ordered by priority then id.
	LaneFeatures(ctx context.Context, passes, inProgress bool) ([]*types.Feature, error)

	// MaxPriority returns the highest priority in the store, or 0 when empty.
	MaxPriority(ctx context.Context) (int, error)

	// UpdateFeature applies the given field updates (keys are the Field*
	// constants) and refreshes modified_at. Setting passes to true stamps
	// completed_at; setting it to false clears completed_at.
	UpdateFeature(ctx context.Context, id int64, updates map[string]interface{}) error
	DeleteFeature(ctx context.Context, id int64) error
}
