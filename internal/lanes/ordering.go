package lanes

import (
	"github.com/featureboard/featureboard/internal/types"
)

// The functions in this file are pure: they take a lane snapshot sorted by
// (priority, id) and compute new priorities without touching storage.

// indexOf returns the position of id in lane, or -1.
func indexOf(lane []*types.Feature, id int64) int {
	for i, f := range lane {
		if f.ID == id {
			return i
		}
	}
	return -1
}

// neighbor finds the feature that Move swaps with: for up, the nearest
// strictly lower priority; for down, the nearest strictly higher one. Equal
// priorities are skipped since swapping them changes nothing.
func neighbor(lane []*types.Feature, idx int, dir types.Direction) (*types.Feature, bool) {
	p := lane[idx].Priority
	switch dir {
	case types.DirectionUp:
		for j := idx - 1; j >= 0; j-- {
			if lane[j].Priority < p {
				return lane[j], true
			}
		}
	case types.DirectionDown:
		for j := idx + 1; j < len(lane); j++ {
			if lane[j].Priority > p {
				return lane[j], true
			}
		}
	}
	return nil, false
}

// planReorder moves movedID next to targetID and redistributes the lane's
// existing priority values over the new order. The returned map holds only
// features whose priority changes. The multiset of priorities in the lane is
// the same before and after.
func planReorder(lane []*types.Feature, movedID, targetID int64, insertBefore bool) (map[int64]int, bool) {
	priorities := make([]int, len(lane))
	for i, f := range lane {
		priorities[i] = f.Priority
	}

	movedIdx := indexOf(lane, movedID)
	if movedIdx < 0 {
		return nil, false
	}
	ordered := make([]*types.Feature, 0, len(lane))
	ordered = append(ordered, lane[:movedIdx]...)
	ordered = append(ordered, lane[movedIdx+1:]...)

	targetIdx := indexOf(ordered, targetID)
	if targetIdx < 0 {
		return nil, false
	}
	insertIdx := targetIdx
	if !insertBefore {
		insertIdx++
	}
	ordered = append(ordered, nil)
	copy(ordered[insertIdx+1:], ordered[insertIdx:])
	ordered[insertIdx] = lane[movedIdx]

	changes := make(map[int64]int)
	for i, f := range ordered {
		if f.Priority != priorities[i] {
			changes[f.ID] = priorities[i]
		}
	}
	return changes, true
}
