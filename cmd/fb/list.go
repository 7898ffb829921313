package main

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/timeparsing"
	"github.com/featureboard/featureboard/internal/types"
	"github.com/featureboard/featureboard/internal/ui"
)

// watchDebounce coalesces the burst of writes a single commit produces.
var watchDebounce = 500 * time.Millisecond

type listFlags struct {
	lane           string
	category       string
	completedAfter string
	limit          int
	offset         int
	watch          bool
}

func (lf listFlags) filter(now time.Time) (types.FeatureFilter, error) {
	var filter types.FeatureFilter
	if lf.lane != "" {
		l, err := types.ParseLane(lf.lane)
		if err != nil {
			return filter, err
		}
		filter = l.Filter()
	}
	if lf.category != "" {
		c := lf.category
		filter.Category = &c
	}
	if lf.completedAfter != "" {
		t, err := timeparsing.ParseRelativeTime(lf.completedAfter, now)
		if err != nil {
			return filter, fmt.Errorf("invalid --completed-after: %w", err)
		}
		t = t.UTC()
		filter.CompletedAfter = &t
	}
	if lf.limit < 0 || lf.offset < 0 {
		return filter, fmt.Errorf("--limit and --offset must not be negative")
	}
	filter.Limit = lf.limit
	filter.Offset = lf.offset
	return filter, nil
}

func newListCmd(a *app) *cobra.Command {
	var lf listFlags
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"board", "ls"},
		GroupID: GroupBoard,
		Short:   "Show the board, grouped by lane",
		Long: `Show features grouped into the to-do, in-progress and done lanes.

To-do and in-progress features are ordered by priority, done features by
completion time (most recent first) when --lane done is given.`,
		Example: `  fb list
  fb list --lane done --completed-after "last week"
  fb list --category auth --limit 10 --offset 10
  fb list --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := lf.filter(time.Now())
			if err != nil {
				return err
			}
			if lf.watch {
				return a.watchBoard(cmd.Context(), filter)
			}
			return a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				return a.renderList(cmd.Context(), e, filter)
			})
		},
	}
	cmd.Flags().StringVar(&lf.lane, "lane", "", "Only this lane: todo, in-progress or done")
	cmd.Flags().StringVar(&lf.category, "category", "", "Only this category")
	cmd.Flags().StringVar(&lf.completedAfter, "completed-after", "", `Only features completed after this time (e.g. "2026-01-01", "-7d", "yesterday")`)
	cmd.Flags().IntVar(&lf.limit, "limit", 0, "Page size (0 lists everything)")
	cmd.Flags().IntVar(&lf.offset, "offset", 0, "Skip this many features (with --limit)")
	cmd.Flags().BoolVarP(&lf.watch, "watch", "w", false, "Redraw the board whenever the store changes")
	return cmd
}

func (a *app) renderList(ctx context.Context, e *lanes.Engine, filter types.FeatureFilter) error {
	if filter.Limit > 0 {
		page, err := e.ListPage(ctx, filter)
		if err != nil {
			return err
		}
		if a.jsonOutput() {
			return outputJSON(a.out, page)
		}
		ui.RenderBoard(a.out, page.Features, ui.Width(80))
		end := page.Offset + len(page.Features)
		fmt.Fprintln(a.out, ui.RenderMuted(fmt.Sprintf("\nShowing %d-%d of %d", min(page.Offset+1, end), end, page.Total)))
		return nil
	}

	features, err := e.List(ctx, filter)
	if err != nil {
		return err
	}
	if a.jsonOutput() {
		if features == nil {
			features = []*types.Feature{}
		}
		return outputJSON(a.out, features)
	}
	ui.RenderBoard(a.out, features, ui.Width(80))
	return nil
}

// watchBoard redraws the board on every write to the store file or its WAL
// until ctx is cancelled.
func (a *app) watchBoard(ctx context.Context, filter types.FeatureFilter) error {
	_, store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()
	engine := lanes.New(store, lanes.WithLogger(a.logger))

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dbPath, err := filepath.Abs(store.Path())
	if err != nil {
		return fmt.Errorf("resolve store path: %w", err)
	}
	if err := watcher.Add(filepath.Dir(dbPath)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(dbPath), err)
	}
	base := filepath.Base(dbPath)

	redraw := func() {
		if ui.IsTerminal() {
			fmt.Fprint(a.out, "\033[H\033[2J")
		}
		if err := a.renderList(ctx, engine, filter); err != nil {
			a.logger.Error("refresh board", "error", err)
			return
		}
		fmt.Fprintln(a.errOut, ui.RenderMuted("\nWatching for changes... (Press Ctrl+C to exit)"))
	}
	redraw()

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.errOut, "\nStopped watching.")
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			name := filepath.Base(event.Name)
			if name != base && !strings.HasPrefix(name, base+"-wal") {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(watchDebounce, redraw)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.logger.Warn("watcher error", "error", err)
		}
	}
}
