// Package types defines core data structures for the featureboard backlog.
package types

import (
	"fmt"
	"math"
	"strings"
	"time"
)

// Feature represents one backlog item shown as a card on the board.
type Feature struct {
	ID          int64      `json:"id"`
	Priority    int        `json:"priority"` // Lower sorts earlier within todo and in-progress lanes
	Category    string     `json:"category"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Steps       []string   `json:"steps"`
	Passes      bool       `json:"passes"`
	InProgress  bool       `json:"in_progress"`
	CreatedAt   time.Time  `json:"created_at"`
	ModifiedAt  time.Time  `json:"modified_at"`
	CompletedAt *time.Time `json:"completed_at"` // Set while passes is true
}

// Lane returns the board column the feature is displayed in.
func (f *Feature) Lane() Lane {
	return LaneOf(f.Passes, f.InProgress)
}

// SameLane reports whether two features share the exact (passes, in_progress)
// pair. Ordering operations only ever consider neighbors under this relation.
func (f *Feature) SameLane(other *Feature) bool {
	return f.Passes == other.Passes && f.InProgress == other.InProgress
}

// Validate checks that the feature has the fields every card needs.
func (f *Feature) Validate() error {
	if strings.TrimSpace(f.Name) == "" {
		return fmt.Errorf("name is required")
	}
	if len(f.Name) > 255 {
		return fmt.Errorf("name must be 255 characters or less (got %d)", len(f.Name))
	}
	if strings.TrimSpace(f.Category) == "" {
		return fmt.Errorf("category is required")
	}
	if len(f.Category) > 100 {
		return fmt.Errorf("category must be 100 characters or less (got %d)", len(f.Category))
	}
	if f.Priority < 0 {
		return fmt.Errorf("priority cannot be negative (got %d)", f.Priority)
	}
	if !f.Passes && f.CompletedAt != nil {
		return fmt.Errorf("non-passing features cannot have completed_at timestamp")
	}
	return nil
}

// Lane is one of the three board columns.
type Lane string

const (
	LaneTodo       Lane = "todo"
	LaneInProgress Lane = "in_progress"
	LaneDone       Lane = "done"
)

// LaneOf maps the state flags onto a lane. Any passing feature is done,
// regardless of in_progress.
func LaneOf(passes, inProgress bool) Lane {
	switch {
	case passes:
		return LaneDone
	case inProgress:
		return LaneInProgress
	default:
		return LaneTodo
	}
}

// ParseLane accepts the lane names used on the command line ("in-progress"
// is an alias for in_progress).
func ParseLane(s string) (Lane, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "todo", "pending":
		return LaneTodo, nil
	case "in_progress", "in-progress", "doing":
		return LaneInProgress, nil
	case "done", "passing":
		return LaneDone, nil
	}
	return "", fmt.Errorf("invalid lane %q (want todo, in-progress or done)", s)
}

// Filter returns the state filter selecting this lane.
func (l Lane) Filter() FeatureFilter {
	f := false
	t := true
	switch l {
	case LaneDone:
		return FeatureFilter{Passes: &t}
	case LaneInProgress:
		return FeatureFilter{Passes: &f, InProgress: &t}
	default:
		return FeatureFilter{Passes: &f, InProgress: &f}
	}
}

// Direction is the argument of a single-step move.
type Direction string

const (
	DirectionUp   Direction = "up"
	DirectionDown Direction = "down"
)

// IsValid reports whether d names a known direction.
func (d Direction) IsValid() bool {
	return d == DirectionUp || d == DirectionDown
}

// FeatureFilter narrows a List query. Nil pointers mean "any".
type FeatureFilter struct {
	Passes         *bool
	InProgress     *bool
	Category       *string
	CompletedAfter *time.Time
	Limit          int // 0 means unlimited
	Offset         int
}

// DoneOrdering reports whether results are sorted by completion time rather
// than priority. This is the case exactly when the filter selects passing
// features.
func (f FeatureFilter) DoneOrdering() bool {
	return f.Passes != nil && *f.Passes
}

// FeatureUpdate carries the optional fields of a partial update.
type FeatureUpdate struct {
	Category    *string
	Name        *string
	Description *string
	Steps       []string // nil leaves steps unchanged; an empty slice clears them
}

// IsEmpty reports whether the update changes nothing.
func (u FeatureUpdate) IsEmpty() bool {
	return u.Category == nil && u.Name == nil && u.Description == nil && u.Steps == nil
}

// Apply copies the set fields onto f.
func (u FeatureUpdate) Apply(f *Feature) {
	if u.Category != nil {
		f.Category = *u.Category
	}
	if u.Name != nil {
		f.Name = *u.Name
	}
	if u.Description != nil {
		f.Description = *u.Description
	}
	if u.Steps != nil {
		f.Steps = append([]string(nil), u.Steps...)
	}
}

// StateChange carries the optional state flags of a lane transition.
type StateChange struct {
	Passes     *bool `json:"passes,omitempty"`
	InProgress *bool `json:"in_progress,omitempty"`
}

// Statistics summarizes progress across the whole store.
type Statistics struct {
	Passing    int     `json:"passing"`
	InProgress int     `json:"in_progress"`
	Total      int     `json:"total"`
	Percentage float64 `json:"percentage"`
}

// NewStatistics computes the completion percentage, rounded to one decimal.
func NewStatistics(passing, inProgress, total int) Statistics {
	pct := 0.0
	if total > 0 {
		pct = math.Round(float64(passing)/float64(total)*1000) / 10
	}
	return Statistics{Passing: passing, InProgress: inProgress, Total: total, Percentage: pct}
}

// Page is a paginated List result.
type Page struct {
	Features []*Feature `json:"features"`
	Total    int        `json:"total"`
	Limit    int        `json:"limit"`
	Offset   int        `json:"offset"`
}
