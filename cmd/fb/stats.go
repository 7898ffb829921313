package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/types"
	"github.com/featureboard/featureboard/internal/ui"
)

func newStatsCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "stats",
		GroupID: GroupBoard,
		Short:   "Show passing / in-progress / total counts and the completion percentage",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var s *types.Statistics
			err := a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				var err error
				s, err = e.Stats(cmd.Context())
				return err
			})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, s)
			}
			ui.RenderStats(a.out, s)
			return nil
		},
	}
}

func newNextCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "next",
		GroupID: GroupBoard,
		Short:   "Show the highest-priority feature that is neither passing nor in progress",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var f *types.Feature
			err := a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				var err error
				f, err = e.Next(cmd.Context())
				return err
			})
			if errors.Is(err, lanes.ErrNoPending) {
				if a.jsonOutput() {
					return outputJSON(a.out, map[string]interface{}{"feature": nil})
				}
				fmt.Fprintln(a.out, ui.RenderMuted("No pending features. All features are passing or in progress."))
				return nil
			}
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{"feature": f})
			}
			fmt.Fprintln(a.out, ui.FeatureLine(f, ui.Width(80)))
			return nil
		},
	}
}
