package main

import (
	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/types"
	"github.com/featureboard/featureboard/internal/ui"
)

func newShowCmd(a *app) *cobra.Command {
	var noPager bool
	cmd := &cobra.Command{
		Use:     "show <id>",
		GroupID: GroupBoard,
		Short:   "Show one feature with its description and test steps",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			var f *types.Feature
			err = a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				f, err = e.Get(cmd.Context(), id)
				return err
			})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, f)
			}
			return ui.ToPager(a.out, ui.RenderMarkdown(ui.FeatureMarkdown(f)), ui.PagerOptions{NoPager: noPager})
		},
	}
	cmd.Flags().BoolVar(&noPager, "no-pager", false, "Write straight to stdout")
	return cmd
}
