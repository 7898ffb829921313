package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/config"
	"github.com/featureboard/featureboard/internal/debug"
	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/storage"
	"github.com/featureboard/featureboard/internal/storage/sqlite"
	"github.com/featureboard/featureboard/internal/telemetry"
	"github.com/featureboard/featureboard/internal/ui"
)

// Command groups for organized help output.
const (
	GroupFeatures = "features"
	GroupBoard    = "board"
	GroupData     = "data"
	GroupServe    = "serve"
)

// app carries the per-invocation state shared by every command.
type app struct {
	verbose bool
	quiet   bool

	out    io.Writer
	errOut io.Writer
	logger *slog.Logger
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "fb",
		Short:         "fb - feature board for agent-driven development",
		Long:          `A kanban board of features moving from to-do through in-progress to done, shared by people and coding agents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = telemetry.Shutdown(context.Background())
		},
	}

	pf := root.PersistentFlags()
	pf.String("db", "", "Feature store path (default: features.db, config key db)")
	pf.Bool("json", false, "Output in JSON format")
	pf.Bool("no-color", false, "Disable colored output")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "Enable verbose/debug output")
	pf.BoolVarP(&a.quiet, "quiet", "q", false, "Suppress non-essential output (errors only)")
	for _, key := range []string{"db", "json", "no-color"} {
		_ = config.BindFlag(key, pf.Lookup(key))
	}

	root.AddGroup(
		&cobra.Group{ID: GroupFeatures, Title: "Working With Features:"},
		&cobra.Group{ID: GroupBoard, Title: "Board Views:"},
		&cobra.Group{ID: GroupData, Title: "Stores & Data:"},
		&cobra.Group{ID: GroupServe, Title: "Servers:"},
	)

	root.AddCommand(
		newAddCmd(a),
		newUpdateCmd(a),
		newDeleteCmd(a),
		newStateCmd(a),
		newPriorityCmd(a),
		newMoveCmd(a),
		newReorderCmd(a),
		newListCmd(a),
		newShowCmd(a),
		newStatsCmd(a),
		newNextCmd(a),
		newMigrateCmd(a),
		newStoresCmd(a),
		newImportCmd(a),
		newExportCmd(a),
		newServeCmd(a),
		newMCPCmd(a),
		newVersionCmd(a),
	)
	return root
}

// setup applies verbosity, color and telemetry before any command runs.
func (a *app) setup(cmd *cobra.Command) error {
	debug.SetVerbose(a.verbose)
	debug.SetQuiet(a.quiet)
	debug.SetOutput(a.out, a.errOut)
	ui.SetNoColor(config.GetBool("no-color"))
	a.logger = debug.NewLogger(a.errOut)

	if err := telemetry.Init(cmd.Context(), a.errOut, "fb", Version); err != nil {
		a.logger.Warn("telemetry disabled", "error", err)
	}
	return nil
}

func (a *app) jsonOutput() bool {
	return config.GetBool("json")
}

// storePath resolves the store file from --db, FB_DB or config.
func (a *app) storePath() string {
	p := config.GetString("db")
	if p == "" {
		p = "features.db"
	}
	return config.ResolvePath(p)
}

// openStore opens and migrates the store. The returned storage is the
// telemetry-wrapped view used by everything except migration status.
func (a *app) openStore(ctx context.Context) (*sqlite.SQLiteStorage, storage.Storage, error) {
	path := a.storePath()
	debug.Logf("opening store %s\n", path)
	opts := []sqlite.Option{sqlite.WithLogger(a.logger)}
	if d := config.GetDuration("lock-timeout"); d > 0 {
		opts = append(opts, sqlite.WithLockTimeout(d))
	}
	raw, err := sqlite.New(ctx, path, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("open store %s: %w", path, err)
	}
	return raw, telemetry.WrapStorage(raw), nil
}

// withEngine opens the store, runs fn with an engine over it and closes it.
func (a *app) withEngine(ctx context.Context, fn func(e *lanes.Engine) error) error {
	_, store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	return fn(lanes.New(store, lanes.WithLogger(a.logger)))
}

// execute runs the CLI and returns the process exit code.
func execute(ctx context.Context, args []string, out, errOut io.Writer) int {
	if err := config.Initialize(); err != nil {
		fmt.Fprintf(errOut, "Warning: failed to initialize config: %v\n", err)
	}

	a := &app{out: out, errOut: errOut, logger: slog.New(slog.DiscardHandler)}
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(out)
	root.SetErr(errOut)

	if err := root.ExecuteContext(ctx); err != nil {
		if a.jsonOutput() {
			enc := json.NewEncoder(errOut)
			enc.SetIndent("", "  ")
			_ = enc.Encode(map[string]string{"error": err.Error()})
		} else {
			fmt.Fprintf(errOut, "Error: %v\n", err)
		}
		var migErr *sqlite.MigrationError
		if errors.As(err, &migErr) {
			return 2
		}
		return 1
	}
	return 0
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := execute(ctx, os.Args[1:], os.Stdout, os.Stderr)
	cancel()
	os.Exit(code)
}
