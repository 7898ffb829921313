package main

import (
	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/mcp"
)

func newMCPCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "mcp",
		GroupID: GroupServe,
		Short:   "Serve the feature tools to a coding agent over MCP stdio",
		Long: `Run an MCP server on stdin/stdout exposing the feature_* tools
(get_stats, get_next, get_by_id, mark_in_progress, mark_passing,
clear_in_progress, skip, create_bulk). Logs go to stderr.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withEngine(cmd.Context(), func(e *lanes.Engine) error {
				return mcp.ServeStdio(mcp.NewServer(e, Version, a.logger))
			})
		},
	}
}
