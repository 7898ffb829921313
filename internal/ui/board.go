package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/featureboard/featureboard/internal/types"
)

// boardLanes is the display order of the three lanes.
var boardLanes = []types.Lane{types.LaneTodo, types.LaneInProgress, types.LaneDone}

// GroupByLane splits features into lanes, keeping their order.
func GroupByLane(features []*types.Feature) map[types.Lane][]*types.Feature {
	out := make(map[types.Lane][]*types.Feature, len(boardLanes))
	for _, f := range features {
		l := f.Lane()
		out[l] = append(out[l], f)
	}
	return out
}

// FeatureLine renders one feature as a single list row.
func FeatureLine(f *types.Feature, width int) string {
	id := fmt.Sprintf("#%-4d", f.ID)
	prio := fmt.Sprintf("p%-3d", f.Priority)
	category := "[" + f.Category + "]"

	// icon, id, priority and category plus separating spaces
	fixed := 2 + len(id) + 1 + len(prio) + 1 + len([]rune(category)) + 1
	nameWidth := width - fixed
	if nameWidth < 12 {
		nameWidth = 12
	}

	return strings.Join([]string{
		LaneIcon(f.Lane()),
		RenderMuted(id),
		RenderMuted(prio),
		RenderAccent(category),
		Truncate(f.Name, nameWidth),
	}, " ")
}

// RenderBoard writes every non-empty lane with a header. When only one lane
// is present the header still names it.
func RenderBoard(w io.Writer, features []*types.Feature, width int) {
	grouped := GroupByLane(features)
	first := true
	for _, l := range boardLanes {
		fs := grouped[l]
		if len(fs) == 0 {
			continue
		}
		if !first {
			fmt.Fprintln(w)
		}
		first = false
		fmt.Fprintln(w, RenderLaneHeader(l, len(fs)))
		for _, f := range fs {
			fmt.Fprintln(w, FeatureLine(f, width))
		}
	}
	if first {
		fmt.Fprintln(w, RenderMuted("No features."))
	}
}

// RenderStats writes the one-line progress summary used by `fb stats`.
func RenderStats(w io.Writer, s *types.Statistics) {
	bar := progressBar(s.Percentage, 24)
	fmt.Fprintf(w, "%s %s  %s passing · %s in progress · %d total\n",
		bar,
		RenderPass(fmt.Sprintf("%.1f%%", s.Percentage)),
		RenderPass(fmt.Sprint(s.Passing)),
		RenderWarn(fmt.Sprint(s.InProgress)),
		s.Total,
	)
}

func progressBar(pct float64, width int) string {
	filled := int(pct / 100 * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return RenderPass(strings.Repeat("█", filled)) + RenderMuted(strings.Repeat("░", width-filled))
}
