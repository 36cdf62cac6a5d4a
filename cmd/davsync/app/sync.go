package app

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	davapp "github.com/stacklok/davsync/internal/app"
	pkgsync "github.com/stacklok/davsync/internal/sync"
)

const (
	fromResources = "resources"
	fromMain      = "main"
)

func newSyncCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Run a single sync cycle",
		Long: `Run a single sync cycle and exit.

By default the satellites are the source of truth. Use --from main to push the main document's subsections into the
satellites instead. An empty main document ends the run successfully without
writing anything.`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd, v)
		},
	}
	cmd.Flags().String("from", "", `Source of truth: "resources" or "main" (default: decided by change detection)`)
	return cmd
}

func runSync(cmd *cobra.Command, v *viper.Viper) error {
	ctx := cmd.Context()

	from, err := cmd.Flags().GetString("from")
	if err != nil {
		return err
	}
	var direction *bool
	switch from {
	case "":
	case fromResources, fromMain:
		resources := from == fromResources
		direction = &resources
	default:
		return fmt.Errorf("--from must be %q or %q, got %q", fromResources, fromMain, from)
	}

	cfg, err := loadConfig(v)
	if err != nil {
		return err
	}

	app, err := davapp.NewSyncApp(ctx,
		davapp.WithConfig(cfg),
		davapp.WithAddress(""),
		davapp.WithProgress(printProgress(cmd)),
	)
	if err != nil {
		return fmt.Errorf("failed to build application: %w", err)
	}
	defer func() {
		if err := app.Stop(shutdownTimeout); err != nil {
			slog.Error("Shutdown failed", "error", err)
		}
	}()

	result, err := app.SyncOnce(ctx, direction)
	if errors.Is(err, pkgsync.ErrEmptyMainDocument) {
		slog.Info("Main document is empty, nothing to sync", "main", cfg.Main)
		return nil
	}
	if err != nil {
		return err
	}

	slog.Info("Sync completed",
		"cycle_id", result.CycleID,
		"direction", result.Direction,
		"synced", result.Synced,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)
	return nil
}

// printProgress writes a progress notice per synced satellite to stdout
func printProgress(cmd *cobra.Command) func(name string) {
	out := cmd.OutOrStdout()
	return func(name string) {
		_, _ = fmt.Fprintln(out, pkgsync.ProgressNotice(name))
	}
}
