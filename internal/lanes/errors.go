package lanes

import (
	"errors"
	"fmt"

	"github.com/featureboard/featureboard/internal/storage"
)

var (
	// ErrInvalidInput matches every *ValidationError via errors.Is.
	ErrInvalidInput = errors.New("invalid input")

	// ErrLaneMismatch is returned when a reorder names features in different lanes.
	ErrLaneMismatch = errors.New("features must be in the same lane")

	// ErrEdgeOfLane is returned when a move has no neighbor in the requested direction.
	ErrEdgeOfLane = errors.New("already at the edge of the lane")

	// ErrAlreadyInProgress and ErrAlreadyPassing reject agent state changes
	// that would skip a lane.
	ErrAlreadyInProgress = errors.New("feature is already in-progress")
	ErrAlreadyPassing    = errors.New("feature is already passing")

	// ErrNoPending is returned by Next when the todo lane is empty.
	ErrNoPending = errors.New("no pending features")
)

// ValidationError describes malformed input detected before any mutation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Is lets callers match any validation failure with errors.Is(err, ErrInvalidInput).
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// NotFoundError names the feature id that could not be resolved. It matches
// storage.ErrNotFound via errors.Is.
type NotFoundError struct {
	ID     int64
	Target bool // the id was the reorder target rather than the moved feature
}

func (e *NotFoundError) Error() string {
	if e.Target {
		return fmt.Sprintf("target feature %d not found", e.ID)
	}
	return fmt.Sprintf("feature %d not found", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == storage.ErrNotFound
}

// notFound converts a storage not-found error for id into *NotFoundError and
// passes every other error through.
func notFound(err error, id int64, target bool) error {
	if errors.Is(err, storage.ErrNotFound) {
		return &NotFoundError{ID: id, Target: target}
	}
	return err
}
