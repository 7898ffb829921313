// Package jsonsync moves features between a store and the legacy
// feature_list.json file format.
package jsonsync

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/natefinch/atomic"
	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/types"
)

//go:embed feature_list.schema.json
var schemaJSON string

const schemaURL = "mem://featureboard/feature_list.schema.json"

// backupLayout is appended to the source path after a successful import.
const backupLayout = "20060102_150405"

// ErrInvalidFile is returned when the import file is not a valid feature list.
var ErrInvalidFile = errors.New("invalid feature list")

// SchemaError points at the first offending location in the file.
type SchemaError struct {
	Location string // JSON pointer, e.g. /3/steps/0
	Message  string
}

func (e *SchemaError) Error() string {
	if e.Location == "" {
		return fmt.Sprintf("%v: %s", ErrInvalidFile, e.Message)
	}
	return fmt.Sprintf("%v: %s: %s", ErrInvalidFile, e.Location, e.Message)
}

func (e *SchemaError) Unwrap() error { return ErrInvalidFile }

// record is one element of feature_list.json. Every field is optional.
type record struct {
	ID          *int64   `json:"id,omitempty"`
	Priority    *int     `json:"priority,omitempty"`
	Category    *string  `json:"category,omitempty"`
	Name        *string  `json:"name,omitempty"`
	Description *string  `json:"description,omitempty"`
	Steps       []string `json:"steps,omitempty"`
	Passes      *bool    `json:"passes,omitempty"`
	InProgress  *bool    `json:"in_progress,omitempty"`
}

// feature applies the positional defaults for element i.
func (r record) feature(i int) *types.Feature {
	f := &types.Feature{
		ID:       int64(i + 1),
		Priority: i + 1,
		Category: "uncategorized",
		Name:     fmt.Sprintf("Feature %d", i+1),
		Steps:    []string{},
	}
	if r.ID != nil {
		f.ID = *r.ID
	}
	if r.Priority != nil {
		f.Priority = *r.Priority
	}
	if r.Category != nil {
		f.Category = *r.Category
	}
	if r.Name != nil {
		f.Name = *r.Name
	}
	if r.Description != nil {
		f.Description = *r.Description
	}
	if r.Steps != nil {
		f.Steps = r.Steps
	}
	if r.Passes != nil {
		f.Passes = *r.Passes
	}
	if r.InProgress != nil {
		f.InProgress = *r.InProgress
	}
	return f
}

// ImportOptions controls Import.
type ImportOptions struct {
	// KeepSource leaves the file in place instead of renaming it to a backup.
	KeepSource bool
	// Now stamps the backup name (default time.Now).
	Now func() time.Time
}

// ImportResult reports what Import did.
type ImportResult struct {
	Imported int    `json:"imported"`
	Skipped  bool   `json:"skipped"`
	Existing int    `json:"existing,omitempty"`
	Backup   string `json:"backup,omitempty"`
}

// Import loads path into an empty store in one transaction and then renames
// the file to path.backup.YYYYmmdd_HHMMSS. A store that already holds
// features is left alone and the result reports Skipped.
func Import(ctx context.Context, store storage.Storage, path string, opts ImportOptions) (*ImportResult, error) {
	existing, err := store.CountFeatures(ctx, types.FeatureFilter{})
	if err != nil {
		return nil, fmt.Errorf("count features: %w", err)
	}
	if existing > 0 {
		return &ImportResult{Skipped: true, Existing: existing}, nil
	}

	data, err := os.ReadFile(path) // #nosec G304 - user-supplied import path
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	records, err := parse(data)
	if err != nil {
		return nil, err
	}

	err = store.RunInTransaction(ctx, func(tx storage.Transaction) error {
		for i, r := range records {
			f := r.feature(i)
			if err := f.Validate(); err != nil {
				return &SchemaError{Location: fmt.Sprintf("/%d", i), Message: err.Error()}
			}
			if err := tx.CreateFeature(ctx, f); err != nil {
				return fmt.Errorf("import feature %d: %w", f.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := &ImportResult{Imported: len(records)}
	if !opts.KeepSource {
		now := time.Now
		if opts.Now != nil {
			now = opts.Now
		}
		backup := path + ".backup." + now().Format(backupLayout)
		if err := os.Rename(path, backup); err != nil {
			return result, fmt.Errorf("imported %d features but could not back up %s: %w", len(records), path, err)
		}
		result.Backup = backup
	}
	return result, nil
}

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, strings.NewReader(schemaJSON)); err != nil {
		panic(fmt.Sprintf("jsonsync: add schema: %v", err))
	}
	return compiler.MustCompile(schemaURL)
}

// parse validates data against the feature list schema and decodes it.
func parse(data []byte) ([]record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc interface{}
	if err := dec.Decode(&doc); err != nil {
		return nil, &SchemaError{Message: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return nil, schemaError(err)
	}

	var records []record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, &SchemaError{Message: err.Error()}
	}
	return records, nil
}

// schemaError reduces a jsonschema error tree to its first leaf.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return &SchemaError{Message: err.Error()}
	}
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return &SchemaError{Location: ve.InstanceLocation, Message: ve.Message}
}

// exported mirrors the fields the feature_list.json format has always had.
type exported struct {
	ID          int64    `json:"id"`
	Priority    int      `json:"priority"`
	Category    string   `json:"category"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Steps       []string `json:"steps"`
	Passes      bool     `json:"passes"`
	InProgress  bool     `json:"in_progress"`
}

// Export writes every feature, ordered by priority then id, to path as
// indented JSON. The file is replaced atomically. It returns the count.
func Export(ctx context.Context, store storage.Storage, path string) (int, error) {
	features, err := store.ListFeatures(ctx, types.FeatureFilter{})
	if err != nil {
		return 0, fmt.Errorf("list features: %w", err)
	}

	out := make([]exported, 0, len(features))
	for _, f := range features {
		steps := f.Steps
		if steps == nil {
			steps = []string{}
		}
		out = append(out, exported{
			ID:          f.ID,
			Priority:    f.Priority,
			Category:    f.Category,
			Name:        f.Name,
			Description: f.Description,
			Steps:       steps,
			Passes:      f.Passes,
			InProgress:  f.InProgress,
		})
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return 0, fmt.Errorf("encode features: %w", err)
	}
	data = append(data, '\n')
	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(out), nil
}
