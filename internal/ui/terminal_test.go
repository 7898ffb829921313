package ui

import (
	"os"
	"testing"
)

func TestShouldUseColor(t *testing.T) {
	orig := stdoutIsTTY
	t.Cleanup(func() { stdoutIsTTY = orig })

	tests := []struct {
		name          string
		noColor       string
		cliColor      string
		cliColorForce string
		tty           bool
		wantColor     bool
	}{
		{name: "NO_COLOR disables color", noColor: "1", tty: true, wantColor: false},
		{name: "no TTY and no env disables", wantColor: false},
		{name: "TTY enables", tty: true, wantColor: true},
		{name: "CLICOLOR=0 disables color", cliColor: "0", tty: true, wantColor: false},
		{name: "CLICOLOR_FORCE enables color even in non-TTY", cliColorForce: "1", wantColor: true},
		{name: "NO_COLOR takes precedence over CLICOLOR_FORCE", noColor: "1", cliColorForce: "1", wantColor: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			unsetEnv(t, "NO_COLOR")
			unsetEnv(t, "CLICOLOR")
			unsetEnv(t, "CLICOLOR_FORCE")
			if tt.noColor != "" {
				t.Setenv("NO_COLOR", tt.noColor)
			}
			if tt.cliColor != "" {
				t.Setenv("CLICOLOR", tt.cliColor)
			}
			if tt.cliColorForce != "" {
				t.Setenv("CLICOLOR_FORCE", tt.cliColorForce)
			}
			tty := tt.tty
			stdoutIsTTY = func() bool { return tty }

			if got := ShouldUseColor(); got != tt.wantColor {
				t.Errorf("ShouldUseColor() = %v, want %v", got, tt.wantColor)
			}
		})
	}
}

func TestSetNoColorOverridesForce(t *testing.T) {
	t.Setenv("CLICOLOR_FORCE", "1")
	SetNoColor(true)
	t.Cleanup(func() { SetNoColor(false) })

	if ShouldUseColor() {
		t.Fatal("ShouldUseColor() = true after SetNoColor(true)")
	}
}

func TestWidthFallback(t *testing.T) {
	orig := terminalWidth
	t.Cleanup(func() { terminalWidth = orig })

	terminalWidth = func() int { return 0 }
	if got := Width(80); got != 80 {
		t.Errorf("Width(80) = %d, want fallback 80", got)
	}
	terminalWidth = func() int { return 132 }
	if got := Width(80); got != 132 {
		t.Errorf("Width(80) = %d, want 132", got)
	}
}

func TestIsTerminal(t *testing.T) {
	// Under go test stdout is usually not a TTY; only check it does not panic.
	t.Logf("IsTerminal() = %v", IsTerminal())
}

// unsetEnv clears key for the duration of the test.
func unsetEnv(t *testing.T, key string) {
	t.Helper()
	t.Setenv(key, "")
	os.Unsetenv(key)
}
