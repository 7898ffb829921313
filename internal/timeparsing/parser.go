// Package timeparsing turns the time expressions accepted by
// --completed-after and the completed_after query parameter into instants.
//
// Layers are tried in order:
//  1. Compact duration (-3d, +2w, 6h)
//  2. Absolute timestamp (RFC 3339 or YYYY-MM-DD)
//  3. Natural language (yesterday, last monday, 3 days ago)
package timeparsing

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// compactDurationRe matches [+-]?(\d+)([hdwmy]), e.g. -1d, +2w, 3m.
var compactDurationRe = regexp.MustCompile(`^([+-]?)(\d+)([hdwmy])$`)

// ParseCompactDuration applies a compact duration to now. Units are h (hours),
// d (days), w (weeks), m (months) and y (years); no sign means positive.
// Calendar units use time.AddDate, so month overflow normalizes the way Go
// does (Jan 31 +1m lands in March).
func ParseCompactDuration(s string, now time.Time) (time.Time, error) {
	matches := compactDurationRe.FindStringSubmatch(s)
	if matches == nil {
		return time.Time{}, fmt.Errorf("not a compact duration: %q", s)
	}

	amount, err := strconv.Atoi(matches[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration amount: %q", matches[2])
	}
	if matches[1] == "-" {
		amount = -amount
	}

	switch matches[3] {
	case "h":
		return now.Add(time.Duration(amount) * time.Hour), nil
	case "d":
		return now.AddDate(0, 0, amount), nil
	case "w":
		return now.AddDate(0, 0, amount*7), nil
	case "m":
		return now.AddDate(0, amount, 0), nil
	default:
		return now.AddDate(amount, 0, 0), nil
	}
}

// IsCompactDuration returns true if the string matches compact duration syntax.
func IsCompactDuration(s string) bool {
	return compactDurationRe.MatchString(s)
}

var absoluteLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseAbsolute parses an RFC 3339 timestamp or a bare date. Inputs without
// a zone are interpreted in loc.
func ParseAbsolute(s string, loc *time.Location) (time.Time, error) {
	for _, layout := range absoluteLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("not an absolute time: %q", s)
}

var nlpParser = newNLPParser()

func newNLPParser() *when.Parser {
	p := when.New(nil)
	p.Add(en.All...)
	p.Add(common.All...)
	return p
}

// ParseNaturalLanguage resolves English expressions relative to now.
func ParseNaturalLanguage(s string, now time.Time) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	result, err := nlpParser.Parse(s, now)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %q: %w", s, err)
	}
	if result == nil {
		return time.Time{}, fmt.Errorf("no time expression found in %q", s)
	}
	return result.Time, nil
}

// ParseRelativeTime runs the layers in order and returns the first match.
func ParseRelativeTime(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty time expression")
	}
	if IsCompactDuration(s) {
		return ParseCompactDuration(s, now)
	}
	if t, err := ParseAbsolute(s, now.Location()); err == nil {
		return t, nil
	}
	if t, err := ParseNaturalLanguage(s, now); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("cannot parse time %q (try -3d, 2025-01-31 or \"yesterday\")", s)
}
