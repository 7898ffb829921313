// Package registry manages the dashboards.json list of named feature stores
// and runs schema migrations across all of them.
package registry

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/featureboard/featureboard/internal/storage/sqlite"
)

// DefaultEntry is listed when no registry file exists.
var DefaultEntry = Entry{Name: "Feature Dashboard", Path: "features.db"}

// Entry is one named store. Path may be relative to the registry file.
type Entry struct {
	Name string `json:"name" yaml:"name"`
	Path string `json:"path" yaml:"path"`
}

// Status describes an entry as reported by /api/databases and `fb stores list`.
type Status struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Resolved string `json:"-"`
	Exists   bool   `json:"exists"`
	IsActive bool   `json:"is_active"`
}

// Registry is an in-memory copy of a registry file.
type Registry struct {
	path    string
	entries []Entry
	onDisk  bool
}

// Load reads path. A missing file yields a registry holding only
// DefaultEntry; Save writes it out on first modification.
func Load(path string) (*Registry, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve registry path: %w", err)
	}
	r := &Registry{path: abs}

	data, err := os.ReadFile(abs) // #nosec G304 - path comes from config
	if errors.Is(err, os.ErrNotExist) {
		r.entries = []Entry{DefaultEntry}
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", abs, err)
	}
	r.onDisk = true

	if err := decodeEntries(data, &r.entries); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", abs, err)
	}
	for i, e := range r.entries {
		if strings.TrimSpace(e.Path) == "" {
			return nil, fmt.Errorf("parse registry %s: entry %d has no path", abs, i)
		}
		if e.Name == "" {
			r.entries[i].Name = e.Path
		}
	}
	return r, nil
}

// decodeEntries accepts the JSON written by Save and, for hand-edited files,
// YAML. Tab-indented JSON is not valid YAML, so JSON is tried first.
func decodeEntries(data []byte, out *[]Entry) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil
	}
	if trimmed[0] == '[' || trimmed[0] == '{' {
		if err := json.Unmarshal(trimmed, out); err == nil {
			return nil
		}
	}
	return yaml.Unmarshal(trimmed, out)
}

// Path returns the absolute registry file path.
func (r *Registry) Path() string {
	return r.path
}

// OnDisk reports whether the registry was read from an existing file.
func (r *Registry) OnDisk() bool {
	return r.onDisk
}

// Entries returns a copy of the entries in file order.
func (r *Registry) Entries() []Entry {
	return append([]Entry(nil), r.entries...)
}

// Resolve returns the absolute store path for e.
func (r *Registry) Resolve(e Entry) string {
	if filepath.IsAbs(e.Path) {
		return filepath.Clean(e.Path)
	}
	return filepath.Join(filepath.Dir(r.path), e.Path)
}

// Add inserts an entry or replaces the one with the same name. It reports
// whether an entry was replaced.
func (r *Registry) Add(name, path string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" || strings.TrimSpace(path) == "" {
		return false, fmt.Errorf("store name and path are required")
	}
	for i, e := range r.entries {
		if e.Name == name {
			r.entries[i].Path = path
			return true, nil
		}
	}
	r.entries = append(r.entries, Entry{Name: name, Path: path})
	return false, nil
}

// Remove deletes the entry called name and reports whether it existed.
func (r *Registry) Remove(name string) bool {
	for i, e := range r.entries {
		if e.Name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Save writes the registry as indented JSON, replacing the file atomically.
func (r *Registry) Save() error {
	entries := r.entries
	if entries == nil {
		entries = []Entry{}
	}
	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("encode registry: %w", err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(r.path), 0o750); err != nil {
		return fmt.Errorf("create registry dir: %w", err)
	}
	if err := atomic.WriteFile(r.path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write registry %s: %w", r.path, err)
	}
	r.onDisk = true
	return nil
}

// Statuses reports each entry with whether it holds a features table and
// whether it is the store at activePath.
func (r *Registry) Statuses(ctx context.Context, activePath string) []Status {
	active := ""
	if activePath != "" {
		if abs, err := filepath.Abs(activePath); err == nil {
			active = abs
		}
	}
	out := make([]Status, 0, len(r.entries))
	for _, e := range r.entries {
		resolved := r.Resolve(e)
		out = append(out, Status{
			Name:     e.Name,
			Path:     e.Path,
			Resolved: resolved,
			Exists:   hasFeaturesTable(ctx, resolved),
			IsActive: active != "" && resolved == active,
		})
	}
	return out
}

// hasFeaturesTable opens path read-only and checks for the features table.
func hasFeaturesTable(ctx context.Context, path string) bool {
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return false
	}
	db, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return false
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRowContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'features'`).Scan(&name)
	return err == nil
}

// MigrateOpts controls MigrateAll.
type MigrateOpts struct {
	Concurrency int          // Max stores migrated at once (default 4)
	Logger      *slog.Logger // Per-store progress (default: discard)

	// Open overrides how a store is opened; it must run migrations and
	// return the resulting schema version. Tests use it to inject failures.
	Open func(ctx context.Context, path string) (int, error)
}

func (o MigrateOpts) concurrency() int {
	if o.Concurrency > 0 {
		return o.Concurrency
	}
	return 4
}

// MigrateResult is the outcome for one registered store.
type MigrateResult struct {
	Name    string `json:"name"`
	Path    string `json:"path"`
	Version int    `json:"version,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
	Err     error  `json:"-"`
}

// Error returns the failure text, or "" on success.
func (m MigrateResult) Error() string {
	if m.Err == nil {
		return ""
	}
	return m.Err.Error()
}

// MigrateAll opens every registered store that exists, which brings it to
// the latest schema, and closes it again. Stores are independent: one
// failure is recorded in its result and does not stop the others. Results
// are returned in registry order. A cancelled ctx marks the remaining
// stores as failed.
func (r *Registry) MigrateAll(ctx context.Context, opts MigrateOpts) []MigrateResult {
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	open := opts.Open
	if open == nil {
		open = openAndMigrate
	}

	results := make([]MigrateResult, len(r.entries))
	var g errgroup.Group
	g.SetLimit(opts.concurrency())

	for i, e := range r.entries {
		path := r.Resolve(e)
		results[i] = MigrateResult{Name: e.Name, Path: path}
		if _, err := os.Stat(path); err != nil {
			results[i].Skipped = true
			logger.Info("skipping store: file not found", "store", e.Name, "path", path)
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return nil
			}
			logger.Info("migrating store", "store", e.Name, "path", path)
			version, err := open(ctx, path)
			if err != nil {
				results[i].Err = err
				logger.Error("store migration failed", "store", e.Name, "path", path, "error", err)
				return nil
			}
			results[i].Version = version
			logger.Info("store migrated", "store", e.Name, "version", version)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func openAndMigrate(ctx context.Context, path string) (int, error) {
	store, err := sqlite.New(ctx, path)
	if err != nil {
		return 0, err
	}
	defer func() { _ = store.Close() }()
	return store.SchemaVersion(ctx)
}
