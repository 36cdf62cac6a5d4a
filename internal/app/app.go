// Package app provides application lifecycle management for davsync.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/stacklok/davsync/internal/config"
	pkgsync "github.com/stacklok/davsync/internal/sync"
	"github.com/stacklok/davsync/internal/sync/state"
)

// SyncApp encapsulates all components needed to run the sync loop and its status server
type SyncApp struct {
	config     *config.Config
	components *AppComponents
	httpServer *http.Server

	// ownsTelemetry is false when the telemetry was injected
	ownsTelemetry bool

	// Lifecycle management
	ctx        context.Context
	cancelFunc context.CancelFunc
}

// Start runs the sync coordinator and, when configured, the status server.
// It blocks until the coordinator stops, the context is cancelled, or the
// server fails. The server is shut down when the coordinator stops.
func (app *SyncApp) Start() error {
	g, gctx := errgroup.WithContext(app.ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	defer stopServer()

	g.Go(func() error {
		defer stopServer()
		return app.components.SyncCoordinator.Start(gctx)
	})

	if app.httpServer != nil {
		g.Go(func() error {
			slog.Info("Server listening", "address", app.httpServer.Addr)
			if err := app.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("HTTP server failed: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-serverCtx.Done()
			return app.shutdownServer(defaultShutdownTimeout)
		})
	}

	return g.Wait()
}

// SyncOnce runs a single cycle against fresh baselines. fromResources selects
// the direction; nil lets change detection decide.
func (app *SyncApp) SyncOnce(ctx context.Context, fromResources *bool) (*pkgsync.Result, error) {
	etags := state.NewETags()
	manager := app.components.SyncManager

	var resourcesChanged bool
	if fromResources != nil {
		resourcesChanged = *fromResources
	} else {
		var err error
		resourcesChanged, err = manager.ResourcesChanged(ctx, etags)
		if err != nil {
			return nil, fmt.Errorf("failed to check for changes: %w", err)
		}
	}

	return manager.SyncFiles(ctx, etags, resourcesChanged)
}

// Stop gracefully stops the application with the given timeout.
// It stops the sync coordinator, shuts down the HTTP server and flushes telemetry.
func (app *SyncApp) Stop(timeout time.Duration) error {
	slog.Info("Shutting down...")

	if err := app.components.SyncCoordinator.Stop(); err != nil {
		slog.Error("Failed to stop sync coordinator", "error", err)
	}

	if app.cancelFunc != nil {
		app.cancelFunc()
	}

	var errs []error
	if err := app.shutdownServer(timeout); err != nil {
		errs = append(errs, err)
	}

	if app.ownsTelemetry {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := app.components.Telemetry.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, err)
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	slog.Info("Shutdown complete")
	return nil
}

func (app *SyncApp) shutdownServer(timeout time.Duration) error {
	if app.httpServer == nil {
		return nil
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := app.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	return nil
}

// GetConfig returns the application configuration
func (app *SyncApp) GetConfig() *config.Config {
	return app.config
}

// GetComponents returns the application components
func (app *SyncApp) GetComponents() *AppComponents {
	return app.components
}

// GetHTTPServer returns the HTTP server, or nil when none is configured
func (app *SyncApp) GetHTTPServer() *http.Server {
	return app.httpServer
}
