// Package main is the entry point for davsync.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/stacklok/davsync/cmd/davsync/app"
	"github.com/stacklok/davsync/internal/config"
	"github.com/stacklok/davsync/internal/logging"
)

func main() {
	// Logs go to stderr so stdout carries only command output
	// (progress notices, version --format json).
	handler := logging.NewHandler(logging.WithLevel(logging.LevelFromEnv(config.EnvPrefix)))
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := app.NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
