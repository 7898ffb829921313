package debug

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
)

// capture redirects package output for the duration of a test.
func capture(t *testing.T) (out, errOut *bytes.Buffer) {
	t.Helper()
	out, errOut = &bytes.Buffer{}, &bytes.Buffer{}
	oldOut, oldErr := stdout, stderr
	oldEnabled, oldVerbose, oldQuiet := enabled, verboseMode, quietMode
	stdout, stderr = out, errOut
	t.Cleanup(func() {
		stdout, stderr = oldOut, oldErr
		enabled, verboseMode, quietMode = oldEnabled, oldVerbose, oldQuiet
	})
	return out, errOut
}

func TestEnabled(t *testing.T) {
	tests := []struct {
		name    string
		env     bool
		verbose bool
		want    bool
	}{
		{"env only", true, false, true},
		{"verbose only", false, true, true},
		{"neither", false, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			capture(t)
			enabled = tt.env
			SetVerbose(tt.verbose)
			if got := Enabled(); got != tt.want {
				t.Errorf("Enabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogf(t *testing.T) {
	tests := []struct {
		name       string
		enabled    bool
		wantOutput string
	}{
		{"outputs when enabled", true, "test message: hello\n"},
		{"no output when disabled", false, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, errOut := capture(t)
			enabled = tt.enabled
			verboseMode = false

			Logf("test message: %s\n", "hello")

			if got := errOut.String(); got != tt.wantOutput {
				t.Errorf("Logf() stderr = %q, want %q", got, tt.wantOutput)
			}
			if out.Len() != 0 {
				t.Errorf("Logf() wrote to stdout: %q", out.String())
			}
		})
	}
}

func TestPrintNormal(t *testing.T) {
	out, _ := capture(t)

	PrintNormal("%d features\n", 3)
	PrintlnNormal("done")
	SetQuiet(true)
	PrintNormal("hidden\n")
	PrintlnNormal("hidden")

	if got, want := out.String(), "3 features\ndone\n"; got != want {
		t.Errorf("output = %q, want %q", got, want)
	}
	if !IsQuiet() {
		t.Error("IsQuiet() = false after SetQuiet(true)")
	}
}

func TestLevel(t *testing.T) {
	capture(t)
	enabled, verboseMode, quietMode = false, false, false
	if Level() != slog.LevelInfo {
		t.Errorf("default level = %v", Level())
	}
	SetQuiet(true)
	if Level() != slog.LevelWarn {
		t.Errorf("quiet level = %v", Level())
	}
	SetVerbose(true)
	if Level() != slog.LevelDebug {
		t.Errorf("verbose level = %v, want debug even when quiet", Level())
	}
}

func TestNewLogger(t *testing.T) {
	capture(t)
	enabled, verboseMode, quietMode = false, false, false

	var buf bytes.Buffer
	logger := NewLogger(&buf)
	logger.Debug("hidden")
	logger.Info("visible", "id", 7)

	if bytes.Contains(buf.Bytes(), []byte("hidden")) {
		t.Errorf("debug record written at info level: %q", buf.String())
	}
	if !bytes.Contains(buf.Bytes(), []byte("msg=visible id=7")) {
		t.Errorf("info record missing: %q", buf.String())
	}
	if !logger.Enabled(context.Background(), slog.LevelInfo) {
		t.Error("logger should be enabled at info")
	}
}

func TestSetOutput(t *testing.T) {
	capture(t)
	var out bytes.Buffer
	SetOutput(&out, nil)
	SetQuiet(false)
	PrintNormal("hello %d\n", 1)
	if out.String() != "hello 1\n" {
		t.Fatalf("PrintNormal wrote %q to redirected stdout", out.String())
	}
}
