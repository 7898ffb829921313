package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/config"
	"github.com/featureboard/featureboard/internal/debug"
	"github.com/featureboard/featureboard/internal/registry"
	"github.com/featureboard/featureboard/internal/ui"
)

func newStoresCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "stores",
		GroupID: GroupData,
		Short:   "Manage the registry of named feature stores",
		Long: `Manage the registry file (config key stores-file, default dashboards.json)
listing named feature stores. Relative store paths resolve against the
registry file's directory.`,
	}
	cmd.AddCommand(newStoresListCmd(a), newStoresAddCmd(a), newStoresRemoveCmd(a))
	return cmd
}

func (a *app) loadRegistry() (*registry.Registry, error) {
	return registry.Load(config.ResolvePath(config.GetString("stores-file")))
}

func newStoresListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List registered stores with whether each exists and which is active",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			statuses := reg.Statuses(cmd.Context(), a.storePath())
			if a.jsonOutput() {
				return outputJSON(a.out, statuses)
			}
			for _, s := range statuses {
				marker := " "
				if s.IsActive {
					marker = ui.RenderAccent("*")
				}
				state := ui.RenderPass("exists")
				if !s.Exists {
					state = ui.RenderMuted("missing")
				}
				fmt.Fprintf(a.out, "%s %-24s %s  %s\n", marker, s.Name, s.Path, state)
			}
			if !reg.OnDisk() {
				fmt.Fprintln(a.out, ui.RenderMuted(fmt.Sprintf("\n%s does not exist yet; showing the default store.", reg.Path())))
			}
			return nil
		},
	}
}

func newStoresAddCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "add <name> <path>",
		Short: "Register a store, replacing any entry with the same name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			replaced, err := reg.Add(args[0], args[1])
			if err != nil {
				return err
			}
			if err := reg.Save(); err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{"name": args[0], "path": args[1], "replaced": replaced})
			}
			verb := "Added"
			if replaced {
				verb = "Updated"
			}
			debug.PrintNormal("%s %s store %q -> %s\n", ui.RenderPassIcon(), verb, args[0], args[1])
			return nil
		},
	}
}

func newStoresRemoveCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Unregister a store (the file itself is left alone)",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg, err := a.loadRegistry()
			if err != nil {
				return err
			}
			if !reg.Remove(args[0]) {
				return fmt.Errorf("no store named %q in %s", args[0], reg.Path())
			}
			if err := reg.Save(); err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{"removed": args[0]})
			}
			debug.PrintNormal("%s Removed store %q\n", ui.RenderPassIcon(), args[0])
			return nil
		},
	}
}
