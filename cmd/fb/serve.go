package main

import (
	"fmt"
	"net"
	"strings"

	"github.com/spf13/cobra"

	"github.com/featureboard/featureboard/internal/api"
	"github.com/featureboard/featureboard/internal/config"
	"github.com/featureboard/featureboard/internal/lanes"
	"github.com/featureboard/featureboard/internal/registry"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		GroupID: GroupServe,
		Short:   "Serve the board over the HTTP API",
		Long: `Serve the board's JSON API under /api.

Every store listed in the registry file is migrated before the listener
opens. The server binds to loopback unless --allow-remote is given.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			listenAddr := strings.TrimSpace(config.GetString("listen"))
			remote, err := api.DetermineAccess(listenAddr, config.GetBool("allow-remote"))
			if err != nil {
				return err
			}
			if remote {
				a.logger.Warn("serving on a non-loopback address; the API has no authentication", "addr", listenAddr)
			}

			storesFile := config.ResolvePath(config.GetString("stores-file"))
			reg, err := registry.Load(storesFile)
			if err != nil {
				return err
			}
			if reg.OnDisk() {
				results := reg.MigrateAll(ctx, registry.MigrateOpts{
					Concurrency: config.GetInt("migrate.concurrency"),
					Logger:      a.logger,
				})
				for _, r := range results {
					if r.Err != nil {
						a.logger.Error("registered store not migrated", "store", r.Name, "error", r.Err)
					}
				}
			}

			_, store, err := a.openStore(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			h, err := api.NewHandler(api.Config{
				Engine:      lanes.New(store, lanes.WithLogger(a.logger)),
				StoresFile:  storesFile,
				CORSOrigins: config.GetStringSlice("cors-origins"),
				Logger:      a.logger,
			})
			if err != nil {
				return err
			}

			ln, err := net.Listen("tcp", listenAddr)
			if err != nil {
				return fmt.Errorf("listen on %s: %w", listenAddr, err)
			}
			fmt.Fprintf(a.errOut, "Serving %s on http://%s/api\n", store.Path(), ln.Addr())
			return api.Serve(ctx, ln, h, a.logger)
		},
	}
	cmd.Flags().String("listen", "127.0.0.1:8000", "Address to bind (host:port)")
	cmd.Flags().Bool("allow-remote", false, "Permit binding to non-loopback addresses")
	_ = config.BindFlag("listen", cmd.Flags().Lookup("listen"))
	_ = config.BindFlag("allow-remote", cmd.Flags().Lookup("allow-remote"))
	return cmd
}
