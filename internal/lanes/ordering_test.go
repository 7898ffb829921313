package lanes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/featureboard/featureboard/internal/types"
)

func lane(priorities ...int) []*types.Feature {
	out := make([]*types.Feature, len(priorities))
	for i, p := range priorities {
		out[i] = &types.Feature{ID: int64(i + 1), Priority: p}
	}
	return out
}

func TestNeighbor(t *testing.T) {
	tests := []struct {
		name   string
		lane   []*types.Feature
		idx    int
		dir    types.Direction
		wantID int64
		wantOK bool
	}{
		{"up from middle", lane(1, 2, 3), 1, types.DirectionUp, 1, true},
		{"down from middle", lane(1, 2, 3), 1, types.DirectionDown, 3, true},
		{"up from top", lane(1, 2, 3), 0, types.DirectionUp, 0, false},
		{"down from bottom", lane(1, 2, 3), 2, types.DirectionDown, 0, false},
		{"sole item", lane(5), 0, types.DirectionDown, 0, false},
		{"skips equal priorities going up", lane(1, 4, 4), 2, types.DirectionUp, 1, true},
		{"skips equal priorities going down", lane(4, 4, 9), 0, types.DirectionDown, 3, true},
		{"all equal", lane(7, 7, 7), 1, types.DirectionUp, 0, false},
		{"gaps", lane(10, 50, 900), 1, types.DirectionDown, 3, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := neighbor(tt.lane, tt.idx, tt.dir)
			require.Equal(t, tt.wantOK, ok)
			if ok {
				assert.Equal(t, tt.wantID, got.ID)
			}
		})
	}
}

func TestPlanReorder(t *testing.T) {
	tests := []struct {
		name    string
		lane    []*types.Feature
		moved   int64
		target  int64
		before  bool
		changes map[int64]int
	}{
		{
			name: "first after middle",
			lane: lane(1, 2, 3), moved: 1, target: 2, before: false,
			changes: map[int64]int{2: 1, 1: 2},
		},
		{
			name: "last before first",
			lane: lane(1, 2, 3), moved: 3, target: 1, before: true,
			changes: map[int64]int{3: 1, 1: 2, 2: 3},
		},
		{
			name: "already in place",
			lane: lane(1, 2, 3), moved: 2, target: 3, before: true,
			changes: map[int64]int{},
		},
		{
			name: "gapped priorities are reused",
			lane: lane(10, 20, 30, 40), moved: 4, target: 2, before: true,
			changes: map[int64]int{4: 20, 2: 30, 3: 40},
		},
		{
			name: "after last",
			lane: lane(1, 2, 3), moved: 1, target: 3, before: false,
			changes: map[int64]int{2: 1, 3: 2, 1: 3},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			changes, ok := planReorder(tt.lane, tt.moved, tt.target, tt.before)
			require.True(t, ok)
			assert.Equal(t, tt.changes, changes)
		})
	}
}

func TestPlanReorderPreservesPriorityMultiset(t *testing.T) {
	base := []int{3, 3, 8, 12, 12, 40}
	for moved := int64(1); moved <= int64(len(base)); moved++ {
		for target := int64(1); target <= int64(len(base)); target++ {
			if moved == target {
				continue
			}
			for _, before := range []bool{true, false} {
				l := lane(base...)
				changes, ok := planReorder(l, moved, target, before)
				require.True(t, ok)

				after := make([]int, 0, len(l))
				for _, f := range l {
					if p, changed := changes[f.ID]; changed {
						after = append(after, p)
					} else {
						after = append(after, f.Priority)
					}
				}
				assert.ElementsMatch(t, base, after, "moved=%d target=%d before=%v", moved, target, before)
			}
		}
	}
}

func TestPlanReorderUnknownIDs(t *testing.T) {
	_, ok := planReorder(lane(1, 2), 9, 1, true)
	assert.False(t, ok)
	_, ok = planReorder(lane(1, 2), 1, 9, true)
	assert.False(t, ok)
}
