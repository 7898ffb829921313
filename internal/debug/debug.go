// Package debug holds the process-wide verbose/quiet switches used by the fb
// CLI and builds the slog logger handed to library packages.
package debug

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"
)

var (
	enabled     = os.Getenv("FB_DEBUG") != ""
	verboseMode = false
	quietMode   = false

	outMu  sync.Mutex
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func Enabled() bool {
	return enabled || verboseMode
}

// SetVerbose enables verbose/debug output
func SetVerbose(verbose bool) {
	verboseMode = verbose
}

// SetQuiet enables quiet mode (suppress non-essential output)
func SetQuiet(quiet bool) {
	quietMode = quiet
}

// IsQuiet returns true if quiet mode is enabled
func IsQuiet() bool {
	return quietMode
}

func Logf(format string, args ...interface{}) {
	if Enabled() {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(stderr, format, args...)
	}
}

// PrintNormal prints output unless quiet mode is enabled
// Use this for normal informational output that should be suppressed in quiet mode
func PrintNormal(format string, args ...interface{}) {
	if !quietMode {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintf(stdout, format, args...)
	}
}

// SetOutput redirects PrintNormal and Logf. A nil writer keeps the current one.
func SetOutput(out, errOut io.Writer) {
	outMu.Lock()
	defer outMu.Unlock()
	if out != nil {
		stdout = out
	}
	if errOut != nil {
		stderr = errOut
	}
}

// PrintlnNormal prints a line unless quiet mode is enabled
func PrintlnNormal(args ...interface{}) {
	if !quietMode {
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Fprintln(stdout, args...)
	}
}

// Level is Debug when verbose output is on, Warn in quiet mode and Info
// otherwise.
func Level() slog.Level {
	switch {
	case Enabled():
		return slog.LevelDebug
	case quietMode:
		return slog.LevelWarn
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w at Level().
func NewLogger(w io.Writer) *slog.Logger {
	if w == nil {
		w = stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: Level()}))
}
