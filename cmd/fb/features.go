package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/featureboard/featureboard/internal/debug"
	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/types"
	"github.com/featureboard/featureboard/internal/ui"
)

// stdinIsTerminal is swapped in tests.
var stdinIsTerminal = func() bool { return term.IsTerminal(int(os.Stdin.Fd())) }

func newAddCmd(a *app) *cobra.Command {
	var in lanes.NewFeature
	cmd := &cobra.Command{
		Use:     "add",
		GroupID: GroupFeatures,
		Short:   "Add a feature to the end of the to-do lane",
		Long: `Add a feature to the end of the to-do lane.

With no flags on a terminal an interactive form is shown. Otherwise
--category and --name are required; repeat --step for each test step.`,
		Example: `  fb add --category auth --name "Login page" --step "Open /login" --step "Submit"`,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !anyChanged(cmd, "category", "name", "description", "step") && stdinIsTerminal() && !a.jsonOutput() {
				var err error
				in, err = runAddForm()
				if errors.Is(err, errFormAborted) {
					debug.PrintNormal("Feature creation cancelled.\n")
					return nil
				}
				if err != nil {
					return err
				}
			}
			var f *types.Feature
			err := a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				var err error
				f, err = e.Create(cmd.Context(), in)
				return err
			})
			if err != nil {
				return err
			}
			return a.reportFeature("Created", f)
		},
	}
	cmd.Flags().StringVar(&in.Category, "category", "", "Feature category")
	cmd.Flags().StringVar(&in.Name, "name", "", "Feature name")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "What the feature does")
	cmd.Flags().StringArrayVar(&in.Steps, "step", nil, "Test step (repeatable)")
	return cmd
}

func newUpdateCmd(a *app) *cobra.Command {
	var (
		category, name, description string
		steps                       []string
		clearSteps                  bool
	)
	cmd := &cobra.Command{
		Use:     "update <id>",
		GroupID: GroupFeatures,
		Short:   "Change a feature's category, name, description or steps",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var u types.FeatureUpdate
			if cmd.Flags().Changed("category") {
				u.Category = &category
			}
			if cmd.Flags().Changed("name") {
				u.Name = &name
			}
			if cmd.Flags().Changed("description") {
				u.Description = &description
			}
			switch {
			case clearSteps && cmd.Flags().Changed("step"):
				return errors.New("--step and --clear-steps are mutually exclusive")
			case clearSteps:
				u.Steps = []string{}
			case cmd.Flags().Changed("step"):
				u.Steps = steps
			}
			if u.IsEmpty() {
				return errors.New("nothing to update: pass at least one of --category, --name, --description, --step, --clear-steps")
			}
			return a.mutateAndReport(cmd, "Updated", func(e *lanes.Engine) (*types.Feature, error) {
				return e.Update(cmd.Context(), id, u)
			})
		},
	}
	cmd.Flags().StringVar(&category, "category", "", "New category")
	cmd.Flags().StringVar(&name, "name", "", "New name")
	cmd.Flags().StringVarP(&description, "description", "d", "", "New description")
	cmd.Flags().StringArrayVar(&steps, "step", nil, "Replacement test step (repeatable)")
	cmd.Flags().BoolVar(&clearSteps, "clear-steps", false, "Remove every step")
	return cmd
}

func newDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		GroupID: GroupFeatures,
		Short:   "Delete a feature",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			err = a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				return e.Delete(cmd.Context(), id)
			})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{"deleted": id})
			}
			debug.PrintNormal("%s Deleted feature #%d\n", ui.RenderPassIcon(), id)
			return nil
		},
	}
}

func newStateCmd(a *app) *cobra.Command {
	var passes, inProgress bool
	cmd := &cobra.Command{
		Use:     "state <id>",
		GroupID: GroupFeatures,
		Short:   "Set the passes / in-progress flags, moving the feature between lanes",
		Example: `  fb state 4 --in-progress
  fb state 4 --passes
  fb state 4 --passes=false --in-progress=false`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var change types.StateChange
			if cmd.Flags().Changed("passes") {
				change.Passes = &passes
			}
			if cmd.Flags().Changed("in-progress") {
				change.InProgress = &inProgress
			}
			return a.mutateAndReport(cmd, "Updated", func(e *lanes.Engine) (*types.Feature, error) {
				return e.SetState(cmd.Context(), id, change)
			})
		},
	}
	cmd.Flags().BoolVar(&passes, "passes", false, "Mark passing (done)")
	cmd.Flags().BoolVar(&inProgress, "in-progress", false, "Mark in progress")
	return cmd
}

func newPriorityCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "priority <id> <n>",
		GroupID: GroupFeatures,
		Short:   "Set an absolute priority (>= 1, lower sorts first)",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			n, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("invalid priority %q: %w", args[1], err)
			}
			return a.mutateAndReport(cmd, "Reprioritized", func(e *lanes.Engine) (*types.Feature, error) {
				return e.SetPriority(cmd.Context(), id, n)
			})
		},
	}
}

func newMoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:       "move <id> up|down",
		GroupID:   GroupFeatures,
		Short:     "Swap a feature with its neighbor in the same lane",
		Args:      cobra.ExactArgs(2),
		ValidArgs: []string{string(types.DirectionUp), string(types.DirectionDown)},
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			dir := types.Direction(args[1])
			return a.mutateAndReport(cmd, "Moved", func(e *lanes.Engine) (*types.Feature, error) {
				return e.Move(cmd.Context(), id, dir)
			})
		},
	}
}

func newReorderCmd(a *app) *cobra.Command {
	var (
		target int64
		after  bool
	)
	cmd := &cobra.Command{
		Use:     "reorder <id> --target <id>",
		GroupID: GroupFeatures,
		Short:   "Place a feature directly before (or --after) another in the same lane",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if target < 1 {
				return errors.New("--target must be a positive feature id")
			}
			return a.mutateAndReport(cmd, "Reordered", func(e *lanes.Engine) (*types.Feature, error) {
				return e.Reorder(cmd.Context(), id, target, !after)
			})
		},
	}
	cmd.Flags().Int64Var(&target, "target", 0, "Feature to place this one next to (required)")
	cmd.Flags().BoolVar(&after, "after", false, "Insert after the target instead of before")
	_ = cmd.MarkFlagRequired("target")
	return cmd
}

// mutateAndReport runs a single-feature engine mutation and reports the result.
func (a *app) mutateAndReport(cmd *cobra.Command, verb string, fn func(e *lanes.Engine) (*types.Feature, error)) error {
	var f *types.Feature
	err := a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
		var err error
		f, err = fn(e)
		return err
	})
	if err != nil {
		return err
	}
	return a.reportFeature(verb, f)
}

func anyChanged(cmd *cobra.Command, names ...string) bool {
	for _, n := range names {
		if cmd.Flags().Changed(n) {
			return true
		}
	}
	return false
}
