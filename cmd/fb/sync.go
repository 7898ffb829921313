package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/config"
	"github.com/featureboard/featureboard/internal/debug"
	"github.com/featureboard/featureboard/internal/jsonsync"
	"github.com/featureboard/featureboard/internal/ui"
)

func newImportCmd(a *app) *cobra.Command {
	var keep bool
	cmd := &cobra.Command{
		Use:     "import [file]",
		GroupID: GroupData,
		Short:   "Load a feature_list.json file into an empty store",
		Long: `Load a feature_list.json array into the store in one transaction.

The import only runs when the store is empty. Afterwards the file is renamed
to <file>.backup.<timestamp> unless --keep is given. The default file is
config key import.file (feature_list.json).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(config.GetString("import.file"))
			if len(args) == 1 {
				path = args[0]
			}

			_, store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			res, err := jsonsync.Import(cmd.Context(), store, path, jsonsync.ImportOptions{KeepSource: keep})
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, res)
			}
			if res.Skipped {
				debug.PrintNormal("%s Store already holds %d features; nothing imported\n", ui.RenderWarnIcon(), res.Existing)
				return nil
			}
			debug.PrintNormal("%s Imported %d features from %s\n", ui.RenderPassIcon(), res.Imported, path)
			if res.Backup != "" {
				debug.PrintNormal("  %s\n", ui.RenderMuted(fmt.Sprintf("source moved to %s", res.Backup)))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&keep, "keep", false, "Leave the source file in place")
	return cmd
}

func newExportCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "export [file]",
		GroupID: GroupData,
		Short:   "Write every feature to a feature_list.json file",
		Long: `Write every feature, ordered by priority, as an indented JSON array.
The default file is config key export.file (feature_list_export.json).`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ResolvePath(config.GetString("export.file"))
			if len(args) == 1 {
				path = args[0]
			}

			_, store, err := a.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			n, err := jsonsync.Export(cmd.Context(), store, path)
			if err != nil {
				return err
			}
			if a.jsonOutput() {
				return outputJSON(a.out, map[string]interface{}{"exported": n, "path": path})
			}
			debug.PrintNormal("%s Exported %d features to %s\n", ui.RenderPassIcon(), n, path)
			return nil
		},
	}
}
