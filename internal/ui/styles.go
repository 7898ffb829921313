// Package ui provides terminal styling for fb CLI output.
// Uses the Ayu color theme with adaptive light/dark mode support.
package ui

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/lipgloss"

	"github.com/featureboard/featureboard/internal/types"
)

// Ayu theme color palette
// Dark: https://terminalcolors.com/themes/ayu/dark/
// Light: https://terminalcolors.com/themes/ayu/light/
var (
	ColorPass = lipgloss.AdaptiveColor{
		Light: "#86b300", // ayu light bright green
		Dark:  "#c2d94c", // ayu dark bright green
	}
	ColorWarn = lipgloss.AdaptiveColor{
		Light: "#f2ae49", // ayu light bright yellow
		Dark:  "#ffb454", // ayu dark bright yellow
	}
	ColorFail = lipgloss.AdaptiveColor{
		Light: "#f07171", // ayu light bright red
		Dark:  "#f07178", // ayu dark bright red
	}
	ColorMuted = lipgloss.AdaptiveColor{
		Light: "#828c99", // ayu light muted
		Dark:  "#6c7680", // ayu dark muted
	}
	ColorAccent = lipgloss.AdaptiveColor{
		Light: "#399ee6", // ayu light bright blue
		Dark:  "#59c2ff", // ayu dark bright blue
	}
)

var (
	PassStyle   = lipgloss.NewStyle().Foreground(ColorPass)
	WarnStyle   = lipgloss.NewStyle().Foreground(ColorWarn)
	FailStyle   = lipgloss.NewStyle().Foreground(ColorFail)
	MutedStyle  = lipgloss.NewStyle().Foreground(ColorMuted)
	AccentStyle = lipgloss.NewStyle().Foreground(ColorAccent)

	// LaneHeaderStyle is used for the todo / in progress / done headings.
	LaneHeaderStyle = lipgloss.NewStyle().Bold(true)
)

const (
	IconPass = "✓"
	IconWarn = "⚠"
	IconFail = "✗"
	IconTodo = "○"
	IconWork = "◐"
)

const SeparatorLight = "──────────────────────────────────────────"

func RenderPass(s string) string   { return PassStyle.Render(s) }
func RenderWarn(s string) string   { return WarnStyle.Render(s) }
func RenderFail(s string) string   { return FailStyle.Render(s) }
func RenderMuted(s string) string  { return MutedStyle.Render(s) }
func RenderAccent(s string) string { return AccentStyle.Render(s) }

func RenderPassIcon() string { return PassStyle.Render(IconPass) }
func RenderWarnIcon() string { return WarnStyle.Render(IconWarn) }
func RenderFailIcon() string { return FailStyle.Render(IconFail) }

// RenderSeparator renders the light separator line in muted color
func RenderSeparator() string {
	return MutedStyle.Render(SeparatorLight)
}

// LaneTitle is the human heading for a lane.
func LaneTitle(l types.Lane) string {
	switch l {
	case types.LaneInProgress:
		return "In Progress"
	case types.LaneDone:
		return "Done"
	default:
		return "To Do"
	}
}

func laneStyle(l types.Lane) lipgloss.Style {
	switch l {
	case types.LaneInProgress:
		return WarnStyle
	case types.LaneDone:
		return PassStyle
	default:
		return AccentStyle
	}
}

// LaneIcon returns the styled state icon for a lane.
func LaneIcon(l types.Lane) string {
	switch l {
	case types.LaneInProgress:
		return WarnStyle.Render(IconWork)
	case types.LaneDone:
		return PassStyle.Render(IconPass)
	default:
		return MutedStyle.Render(IconTodo)
	}
}

// RenderLaneHeader renders "TO DO (3)" in the lane color.
func RenderLaneHeader(l types.Lane, count int) string {
	title := strings.ToUpper(LaneTitle(l))
	return LaneHeaderStyle.Inherit(laneStyle(l)).Render(title) + " " + MutedStyle.Render("("+strconv.Itoa(count)+")")
}

// Truncate shortens text to maxLen runes with a "..." suffix.
func Truncate(text string, maxLen int) string {
	if utf8.RuneCountInString(text) <= maxLen {
		return text
	}
	if maxLen <= 3 {
		return "..."
	}
	return string([]rune(text)[:maxLen-3]) + "..."
}
