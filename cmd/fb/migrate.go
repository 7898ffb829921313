package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/config"
	"github.com/featureboard/featureboard/internal/registry"
	"github.com/featureboard/featureboard/internal/storage/sqlite"
	"github.com/featureboard/featureboard/internal/ui"
)

func newMigrateCmd(a *app) *cobra.Command {
	var status, all bool
	cmd := &cobra.Command{
		Use:     "migrate",
		GroupID: GroupData,
		Short:   "Bring stores up to the latest schema",
		Long: `Bring the active store up to the latest schema version.

--status lists every migration step and whether the store has applied it.
--all migrates every store in the registry file instead; a failing store
does not stop the others, but the command exits non-zero.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if status && all {
				return errors.New("--status and --all are mutually exclusive")
			}
			if all {
				return a.migrateAll(cmd)
			}

			raw, store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if status {
				steps, err := raw.MigrationsStatus(cmd.Context())
				if err != nil {
					return err
				}
				if a.jsonOutput() {
					return outputJSON(a.out, steps)
				}
				for _, s := range steps {
					icon := ui.RenderMuted(ui.IconTodo)
					if s.Applied {
						icon = ui.RenderPassIcon()
					}
					fmt.Fprintf(a.out, "%s %3d  %s\n", icon, s.Version, s.Name)
				}
				return nil
			}

			version, err := store.SchemaVersion(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{
					"path":    store.Path(),
					"version": version,
					"latest":  sqlite.LatestVersion(),
				})
			}
			fmt.Fprintf(a.out, "%s %s is at schema version %d (latest %d)\n",
				ui.RenderPassIcon(), store.Path(), version, sqlite.LatestVersion())
			return nil
		},
	}
	cmd.Flags().BoolVar(&status, "status", false, "List applied and pending migration steps")
	cmd.Flags().BoolVar(&all, "all", false, "Migrate every store in the registry file")
	return cmd
}

func (a *app) migrateAll(cmd *cobra.Command) error {
	reg, err := registry.Load(config.ResolvePath(config.GetString("stores-file")))
	if err != nil {
		return err
	}
	results := reg.MigrateAll(cmd.Context(), registry.MigrateOpts{
		Concurrency: config.GetInt("migrate.concurrency"),
		Logger:      a.logger,
	})

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}

	if a.jsonOutput() {
		type row struct {
			Name    string `json:"name"`
			Path    string `json:"path"`
			Version int    `json:"version,omitempty"`
			Skipped bool   `json:"skipped,omitempty"`
			Error   string `json:"error,omitempty"`
		}
		rows := make([]row, len(results))
		for i, r := range results {
			rows[i] = row{Name: r.Name, Path: r.Path, Version: r.Version, Skipped: r.Skipped, Error: r.Error()}
		}
		if err := outputJSON(a.out, rows); err != nil {
			return err
		}
	} else {
		for _, r := range results {
			switch {
			case r.Err != nil:
				fmt.Fprintf(a.out, "%s %s: %v\n", ui.RenderFailIcon(), r.Name, r.Err)
			case r.Skipped:
				fmt.Fprintf(a.out, "%s %s: %s\n", ui.RenderMuted(ui.IconTodo), r.Name, ui.RenderMuted("not found, skipped"))
			default:
				fmt.Fprintf(a.out, "%s %s: schema version %d\n", ui.RenderPassIcon(), r.Name, r.Version)
			}
		}
	}

	if failed > 0 {
		return &migrateAllError{failed: failed, total: len(results), first: firstErr(results)}
	}
	return nil
}

// migrateAllError unwraps to the first failure so a *sqlite.MigrationError
// still selects the migration exit code.
type migrateAllError struct {
	failed, total int
	first         error
}

func (e *migrateAllError) Error() string {
	return fmt.Sprintf("%d of %d stores failed to migrate", e.failed, e.total)
}

func (e *migrateAllError) Unwrap() error { return e.first }

func firstErr(results []registry.MigrateResult) error {
	for _, r := range results {
		if r.Err != nil {
			return r.Err
		}
	}
	return nil
}
