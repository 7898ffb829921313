package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func writeProjectConfig(t *testing.T, dir, content string) string {
	t.Helper()
	cfgDir := filepath.Join(dir, DirName)
	if err := os.MkdirAll(cfgDir, 0750); err != nil {
		t.Fatalf("failed to create %s: %v", DirName, err)
	}
	path := filepath.Join(cfgDir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}
	return path
}

func TestInitialize(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if v == nil {
		t.Fatal("viper instance is nil after Initialize()")
	}
	if got := ConfigFileUsed(); got != "" {
		t.Errorf("ConfigFileUsed() = %q with no config file, want \"\"", got)
	}
}

func TestDefaults(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	tests := []struct {
		key      string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"db", "features.db", func(k string) interface{} { return GetString(k) }},
		{"stores-file", "dashboards.json", func(k string) interface{} { return GetString(k) }},
		{"listen", "127.0.0.1:8000", func(k string) interface{} { return GetString(k) }},
		{"allow-remote", false, func(k string) interface{} { return GetBool(k) }},
		{"json", false, func(k string) interface{} { return GetBool(k) }},
		{"no-color", false, func(k string) interface{} { return GetBool(k) }},
		{"migrate.concurrency", 4, func(k string) interface{} { return GetInt(k) }},
		{"lock-timeout", 30 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"import.file", "feature_list.json", func(k string) interface{} { return GetString(k) }},
		{"export.file", "feature_list_export.json", func(k string) interface{} { return GetString(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("GetXXX(%q) = %v, want %v", tt.key, got, tt.expected)
			}
		})
	}

	origins := GetStringSlice("cors-origins")
	if len(origins) != 2 || origins[0] != "http://localhost:5173" {
		t.Errorf("GetStringSlice(cors-origins) = %v", origins)
	}
}

func TestEnvironmentBinding(t *testing.T) {
	tests := []struct {
		envVar   string
		key      string
		value    string
		expected interface{}
		getter   func(string) interface{}
	}{
		{"FB_JSON", "json", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"FB_DB", "db", "/tmp/test.db", "/tmp/test.db", func(k string) interface{} { return GetString(k) }},
		{"FB_ALLOW_REMOTE", "allow-remote", "true", true, func(k string) interface{} { return GetBool(k) }},
		{"FB_LOCK_TIMEOUT", "lock-timeout", "5s", 5 * time.Second, func(k string) interface{} { return GetDuration(k) }},
		{"FB_MIGRATE_CONCURRENCY", "migrate.concurrency", "9", 9, func(k string) interface{} { return GetInt(k) }},
	}

	for _, tt := range tests {
		t.Run(tt.envVar, func(t *testing.T) {
			t.Setenv(tt.envVar, tt.value)
			if err := Initialize(); err != nil {
				t.Fatalf("Initialize() returned error: %v", err)
			}
			if got := tt.getter(tt.key); got != tt.expected {
				t.Errorf("GetXXX(%q) with %s=%s = %v, want %v", tt.key, tt.envVar, tt.value, got, tt.expected)
			}
		})
	}
}

func TestCommaSeparatedSliceFromEnv(t *testing.T) {
	t.Setenv("FB_CORS_ORIGINS", "http://a.test, http://b.test")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	got := GetStringSlice("cors-origins")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Errorf("GetStringSlice(cors-origins) = %v, want [http://a.test http://b.test]", got)
	}
}

func TestConfigFileDiscoveredFromSubdirectory(t *testing.T) {
	tmpDir := t.TempDir()
	path := writeProjectConfig(t, tmpDir, `
db: board.db
listen: 127.0.0.1:9000
migrate:
  concurrency: 2
cors-origins:
  - http://localhost:8080
`)
	sub := filepath.Join(tmpDir, "a", "b")
	if err := os.MkdirAll(sub, 0750); err != nil {
		t.Fatal(err)
	}
	t.Chdir(sub)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	// macOS temp dirs resolve through /private; compare on the base names.
	if got := ConfigFileUsed(); filepath.Base(filepath.Dir(got)) != DirName || filepath.Base(got) != filepath.Base(path) {
		t.Errorf("ConfigFileUsed() = %q, want %q", got, path)
	}
	if got := GetString("db"); got != "board.db" {
		t.Errorf("GetString(db) = %q, want board.db", got)
	}
	if got := GetString("listen"); got != "127.0.0.1:9000" {
		t.Errorf("GetString(listen) = %q", got)
	}
	if got := GetInt("migrate.concurrency"); got != 2 {
		t.Errorf("GetInt(migrate.concurrency) = %d, want 2", got)
	}
	if got := GetStringSlice("cors-origins"); len(got) != 1 || got[0] != "http://localhost:8080" {
		t.Errorf("GetStringSlice(cors-origins) = %v", got)
	}

	resolved := ResolvePath("board.db")
	if filepath.Base(resolved) != "board.db" || filepath.Base(filepath.Dir(resolved)) != filepath.Base(tmpDir) {
		t.Errorf("ResolvePath(board.db) = %q, want it next to %s", resolved, DirName)
	}
	if got := ResolvePath("/abs/x.db"); got != "/abs/x.db" {
		t.Errorf("ResolvePath(abs) = %q", got)
	}
}

func TestConfigPrecedence(t *testing.T) {
	tmpDir := t.TempDir()
	writeProjectConfig(t, tmpDir, `json: false`)
	t.Chdir(tmpDir)

	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool("json"); got != false {
		t.Errorf("GetBool(json) from config file = %v, want false", got)
	}

	t.Setenv("FB_JSON", "true")
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}
	if got := GetBool("json"); got != true {
		t.Errorf("GetBool(json) with env var = %v, want true (env should override config)", got)
	}

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("json", false, "")
	if err := flags.Parse([]string{"--json=false"}); err != nil {
		t.Fatal(err)
	}
	if err := BindFlag("json", flags.Lookup("json")); err != nil {
		t.Fatalf("BindFlag: %v", err)
	}
	if got := GetBool("json"); got != false {
		t.Errorf("GetBool(json) with explicit flag = %v, want false (flag should override env)", got)
	}
}

func TestInvalidConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	writeProjectConfig(t, tmpDir, "db: [unterminated\n")
	t.Chdir(tmpDir)

	if err := Initialize(); err == nil {
		t.Fatal("Initialize() accepted malformed YAML")
	}
}

func TestSetAndGet(t *testing.T) {
	if err := Initialize(); err != nil {
		t.Fatalf("Initialize() returned error: %v", err)
	}

	Set("test-key", "test-value")
	if got := GetString("test-key"); got != "test-value" {
		t.Errorf("GetString(test-key) = %q, want \"test-value\"", got)
	}
	Set("test-int", 42)
	if got := GetInt("test-int"); got != 42 {
		t.Errorf("GetInt(test-int) = %d, want 42", got)
	}
	if settings := AllSettings(); settings["test-key"] != "test-value" {
		t.Errorf("AllSettings() missing test-key: %v", settings)
	}
}

func TestNilViperBehavior(t *testing.T) {
	savedV := v
	v = nil
	defer func() { v = savedV }()

	if got := GetString("any-key"); got != "" {
		t.Errorf("GetString with nil viper = %q, want \"\"", got)
	}
	if got := GetBool("any-key"); got != false {
		t.Errorf("GetBool with nil viper = %v, want false", got)
	}
	if got := GetInt("any-key"); got != 0 {
		t.Errorf("GetInt with nil viper = %d, want 0", got)
	}
	if got := GetDuration("any-key"); got != 0 {
		t.Errorf("GetDuration with nil viper = %v, want 0", got)
	}
	if got := GetStringSlice("any-key"); got == nil || len(got) != 0 {
		t.Errorf("GetStringSlice with nil viper = %v, want empty slice", got)
	}
	if got := AllSettings(); got == nil || len(got) != 0 {
		t.Errorf("AllSettings with nil viper = %v, want empty map", got)
	}
	if err := BindFlag("json", &pflag.Flag{Name: "json"}); err == nil {
		t.Error("BindFlag with nil viper should fail")
	}

	Set("any-key", "any-value") // Should be a no-op
}
