package sqlite

import (
	"encoding/json"
	"fmt"
	"time"
)

// timeLayout is the on-disk timestamp format. It is fixed width so that
// lexical order of the TEXT value matches chronological order, which the
// done-lane ORDER BY and completed_after filter rely on.
const timeLayout = "2006-01-02 15:04:05.000000"

// readLayouts lists every format found in stores written by this or earlier
// versions of the tool, most specific first.
var readLayouts = []string{
	timeLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

// parseTimeValue converts a scanned DATETIME column to a time. The driver
// hands back time.Time for values it recognizes and the raw text otherwise.
// NULL, empty and unparseable values yield nil.
func parseTimeValue(v interface{}) *time.Time {
	switch x := v.(type) {
	case nil:
		return nil
	case time.Time:
		if x.IsZero() {
			return nil
		}
		t := x.UTC()
		return &t
	case []byte:
		return parseTimeString(string(x))
	case string:
		return parseTimeString(x)
	}
	return nil
}

func parseTimeString(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

// parseSteps decodes the steps JSON array. Empty or NULL columns decode to
// an empty, non-nil slice so the API always emits [].
func parseSteps(v interface{}) ([]string, error) {
	var raw []byte
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case []byte:
		raw = x
	case string:
		raw = []byte(x)
	default:
		return nil, fmt.Errorf("unexpected steps column type %T", v)
	}
	if len(raw) == 0 {
		return []string{}, nil
	}
	steps := []string{}
	if err := json.Unmarshal(raw, &steps); err != nil {
		return nil, fmt.Errorf("decode steps: %w", err)
	}
	if steps == nil {
		steps = []string{}
	}
	return steps, nil
}

func formatSteps(steps []string) (string, error) {
	if steps == nil {
		steps = []string{}
	}
	b, err := json.Marshal(steps)
	if err != nil {
		return "", fmt.Errorf("encode steps: %w", err)
	}
	return string(b), nil
}
