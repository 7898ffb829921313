package ui

import (
	"os"
	"sync"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

var (
	colorMu       sync.Mutex
	forceNoColor  bool
	stdoutIsTTY   = func() bool { return term.IsTerminal(int(os.Stdout.Fd())) }
	terminalWidth = func() int {
		w, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil {
			return 0
		}
		return w
	}
)

// IsTerminal reports whether stdout is a terminal.
func IsTerminal() bool {
	return stdoutIsTTY()
}

// SetNoColor disables color regardless of the environment (--no-color).
func SetNoColor(disabled bool) {
	colorMu.Lock()
	forceNoColor = disabled
	colorMu.Unlock()
	ApplyColorProfile()
}

// ShouldUseColor follows the NO_COLOR and CLICOLOR conventions:
// NO_COLOR always wins, CLICOLOR=0 disables, CLICOLOR_FORCE enables even
// without a TTY, and otherwise color is used only on a terminal.
func ShouldUseColor() bool {
	colorMu.Lock()
	disabled := forceNoColor
	colorMu.Unlock()
	if disabled {
		return false
	}
	if _, ok := os.LookupEnv("NO_COLOR"); ok {
		return false
	}
	if os.Getenv("CLICOLOR") == "0" {
		return false
	}
	if v := os.Getenv("CLICOLOR_FORCE"); v != "" && v != "0" {
		return true
	}
	return IsTerminal()
}

// ApplyColorProfile points lipgloss at the profile implied by ShouldUseColor.
func ApplyColorProfile() {
	if !ShouldUseColor() {
		lipgloss.SetColorProfile(termenv.Ascii)
		return
	}
	profile := termenv.EnvColorProfile()
	if profile == termenv.Ascii {
		// CLICOLOR_FORCE on a pipe: termenv sees no TTY and reports Ascii.
		profile = termenv.ANSI256
	}
	lipgloss.SetColorProfile(profile)
}

// Width returns the terminal width, or fallback when stdout is not a terminal.
func Width(fallback int) int {
	if w := terminalWidth(); w > 0 {
		return w
	}
	return fallback
}
