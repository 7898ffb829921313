// Package config loads featureboard settings from config files, FB_*
// environment variables and command-line flags through a viper singleton.
//
// Lookup order (first match wins):
//
//  1. command-line flags bound with BindFlag
//  2. FB_* environment variables ("-" and "." become "_")
//  3. .featureboard/config.yaml, searched from the working directory upward
//  4. $XDG_CONFIG_HOME/featureboard/config.yaml (~/.config/featureboard)
//  5. built-in defaults
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// DirName is the per-project configuration directory.
const DirName = ".featureboard"

var v *viper.Viper

// Initialize builds a fresh viper instance. It is safe to call more than once;
// each call discards earlier Set overrides and flag bindings.
func Initialize() error {
	nv := viper.New()
	nv.SetConfigType("yaml")

	nv.SetEnvPrefix("FB")
	nv.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	nv.AutomaticEnv()

	setDefaults(nv)

	if path := findConfigFile(); path != "" {
		nv.SetConfigFile(path)
		if err := nv.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return fmt.Errorf("reading config %s: %w", path, err)
			}
		}
	}

	v = nv
	return nil
}

func setDefaults(nv *viper.Viper) {
	nv.SetDefault("db", "features.db")
	nv.SetDefault("stores-file", "dashboards.json")
	nv.SetDefault("listen", "127.0.0.1:8000")
	nv.SetDefault("allow-remote", false)
	nv.SetDefault("cors-origins", []string{"http://localhost:5173", "http://localhost:3000"})
	nv.SetDefault("json", false)
	nv.SetDefault("no-color", false)
	nv.SetDefault("migrate.concurrency", 4)
	nv.SetDefault("lock-timeout", 30*time.Second)
	nv.SetDefault("import.file", "feature_list.json")
	nv.SetDefault("export.file", "feature_list_export.json")
}

// findConfigFile walks up from the working directory looking for
// .featureboard/config.yaml, then falls back to the user config directory.
func findConfigFile() string {
	if cwd, err := os.Getwd(); err == nil {
		for dir := cwd; ; dir = filepath.Dir(dir) {
			candidate := filepath.Join(dir, DirName, "config.yaml")
			if _, err := os.Stat(candidate); err == nil {
				return candidate
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}
	if userDir, err := os.UserConfigDir(); err == nil {
		candidate := filepath.Join(userDir, "featureboard", "config.yaml")
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	return ""
}

// ConfigFileUsed returns the path of the loaded config file, or "".
func ConfigFileUsed() string {
	if v == nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// BindFlag makes a cobra/pflag flag override key when it is set explicitly.
func BindFlag(key string, flag *pflag.Flag) error {
	if v == nil {
		return fmt.Errorf("config not initialized")
	}
	if flag == nil {
		return fmt.Errorf("no flag for config key %q", key)
	}
	return v.BindPFlag(key, flag)
}

func GetString(key string) string {
	if v == nil {
		return ""
	}
	return v.GetString(key)
}

func GetBool(key string) bool {
	if v == nil {
		return false
	}
	return v.GetBool(key)
}

func GetInt(key string) int {
	if v == nil {
		return 0
	}
	return v.GetInt(key)
}

func GetDuration(key string) time.Duration {
	if v == nil {
		return 0
	}
	return v.GetDuration(key)
}

// GetStringSlice also splits a comma-separated env value such as
// FB_CORS_ORIGINS="http://a,http://b".
func GetStringSlice(key string) []string {
	if v == nil {
		return []string{}
	}
	out := []string{}
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func AllSettings() map[string]interface{} {
	if v == nil {
		return map[string]interface{}{}
	}
	return v.AllSettings()
}

// Set overrides a value for the rest of the process (no-op before Initialize).
func Set(key string, value interface{}) {
	if v != nil {
		v.Set(key, value)
	}
}

// ResolvePath returns p unchanged when absolute, otherwise relative to the
// directory holding the project config (or the working directory when
// there is none).
func ResolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	if used := ConfigFileUsed(); used != "" && filepath.Base(filepath.Dir(used)) == DirName {
		return filepath.Join(filepath.Dir(filepath.Dir(used)), p)
	}
	return p
}
