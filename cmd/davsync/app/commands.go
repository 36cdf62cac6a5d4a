// Package app provides the command line interface of davsync.
package app

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/stacklok/davsync/internal/config"
	"github.com/stacklok/davsync/internal/logging"
	"github.com/stacklok/davsync/internal/versions"
)

// shutdownTimeout bounds the shutdown of the status server and telemetry
const shutdownTimeout = 10 * time.Second

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	v := viper.New()

	rootCmd := &cobra.Command{
		Use:               "davsync",
		DisableAutoGenTag: true,
		Short:             "Synchronize task lists between WebDAV documents",
		Long: `davsync keeps the <task> subtrees of satellite XML documents and a main XML
document in sync over WebDAV. Resources are locked with LOCK/UNLOCK while they
are merged and written back, and ETags decide which side changed.`,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return setupLogging(v)
		},
		Run: func(cmd *cobra.Command, _ []string) {
			// If no subcommand is provided, print help
			if err := cmd.Help(); err != nil {
				slog.Error("Error displaying help", "error", err)
			}
		},
	}

	rootCmd.PersistentFlags().String("config", "", "Path to configuration file (JSON or YAML)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging in console format")
	rootCmd.PersistentFlags().String("log-file", "", "Also write logs to this file, rotated by size")
	for _, name := range []string{"config", "debug", "log-file"} {
		if err := v.BindPFlag(name, rootCmd.PersistentFlags().Lookup(name)); err != nil {
			slog.Error("Error binding flag", "flag", name, "error", err)
		}
	}

	rootCmd.AddCommand(newSyncCmd(v))
	rootCmd.AddCommand(newWatchCmd(v))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// setupLogging replaces the default handler when --debug or --log-file is set
func setupLogging(v *viper.Viper) error {
	debug := v.GetBool("debug")
	logFile := v.GetString("log-file")
	if !debug && logFile == "" {
		return nil
	}

	level := logging.LevelFromEnv(config.EnvPrefix)
	if debug {
		level = slog.LevelDebug
	}
	opts := []logging.Option{
		logging.WithLevel(level),
		logging.WithDevelopment(debug),
	}
	if logFile != "" {
		opts = append(opts, logging.WithFile(logFile))
	}
	slog.SetDefault(slog.New(logging.NewHandler(opts...)))
	return nil
}

// loadConfig loads the file named by --config
func loadConfig(v *viper.Viper) (*config.Config, error) {
	path := v.GetString("config")
	if path == "" {
		return nil, fmt.Errorf("--config is required")
	}

	cfg, err := config.LoadConfig(config.WithConfigPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Loaded configuration",
		"path", path,
		"base_url", cfg.BaseURL,
		"main", cfg.Main,
		"resources", len(cfg.Resources),
	)
	return cfg, nil
}

func newVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := versions.GetVersionInfo()
			format, err := cmd.Flags().GetString("format")
			if err != nil {
				return fmt.Errorf("error retrieving format flag: %w", err)
			}

			if format == "json" {
				output, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return fmt.Errorf("error formatting version info as JSON: %w", err)
				}
				_, err = fmt.Fprintln(cmd.OutOrStdout(), string(output))
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), info.String())
			return err
		},
	}
	cmd.Flags().String("format", "", "Output format (json)")
	return cmd
}
