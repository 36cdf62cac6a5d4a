package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	davapp "github.com/stacklok/davsync/internal/app"
)

func newWatchCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for changes and sync whenever a document changes",
		Long: `Poll the ETags of the main document and the satellites and run a sync cycle
whenever one of them changed. The first check always syncs with the satellites
as the source of truth.

Health, readiness and the latest cycle are served on --address (or
listen_address) together with Prometheus metrics when that exporter is enabled.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWatch(cmd, v)
		},
	}
	cmd.Flags().Duration("interval", 0, "Polling interval (default: interval from the configuration, or 30s)")
	cmd.Flags().Bool("once", false, "Check once, sync if needed, and exit")
	cmd.Flags().String("address", "", "Address of the status server (default: listen_address from the configuration)")
	return cmd
}

func runWatch(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	interval, err := cmd.Flags().GetDuration("interval")
	if err != nil {
		return err
	}
	once, err := cmd.Flags().GetBool("once")
	if err != nil {
		return err
	}

	opts := []davapp.SyncAppOptions{
		davapp.WithConfig(cfg),
		davapp.WithInterval(interval),
		davapp.WithOnce(once),
		davapp.WithProgress(printProgress(cmd)),
	}
	if cmd.Flags().Changed("address") {
		address, err := cmd.Flags().GetString("address")
		if err != nil {
			return err
		}
		opts = append(opts, davapp.WithAddress(address))
	}

	app, err := davapp.NewSyncApp(ctx, opts...)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}

	runErr := app.Start()
	if err := app.Stop(shutdownTimeout); err != nil {
		slog.Error("Shutdown failed", "error", err)
	}
	return runErr
}
