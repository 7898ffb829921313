package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/featureboard/featureboard/internal/debug"
	"github.com/featureboard/featureboard/internal/types"
	"github.com/featureboard/featureboard/internal/ui"
)

// outputJSON writes v as indented JSON.
func outputJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

// parseID parses a positional feature id.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id < 1 {
		return 0, fmt.Errorf("invalid feature id %q: must be a positive integer", arg)
	}
	return id, nil
}

// reportFeature prints the result of a mutation: JSON with --json, otherwise
// a one-line confirmation suppressed by --quiet.
func (a *app) reportFeature(verb string, f *types.Feature) error {
	if a.jsonOutput() {
		return outputJSON(a.out, f)
	}
	debug.PrintNormal("%s %s feature #%d: %s %s\n",
		ui.RenderPassIcon(), verb, f.ID, f.Name,
		ui.RenderMuted(fmt.Sprintf("(%s, priority %d)", ui.LaneTitle(f.Lane()), f.Priority)))
	return nil
}
