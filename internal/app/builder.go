package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/netip"
	"strings"
	"time"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/stacklok/davsync/internal/api"
	"github.com/stacklok/davsync/internal/config"
	"github.com/stacklok/davsync/internal/status"
	pkgsync "github.com/stacklok/davsync/internal/sync"
	"github.com/stacklok/davsync/internal/sync/coordinator"
	"github.com/stacklok/davsync/internal/sync/state"
	"github.com/stacklok/davsync/internal/telemetry"
	"github.com/stacklok/davsync/internal/versions"
	"github.com/stacklok/davsync/internal/webdav"
)

const (
	defaultRequestTimeout  = 10 * time.Second
	defaultReadTimeout     = 10 * time.Second
	defaultWriteTimeout    = 15 * time.Second
	defaultIdleTimeout     = 60 * time.Second
	defaultShutdownTimeout = 10 * time.Second
)

// SyncAppOptions is a function that configures the sync app builder
type SyncAppOptions func(*syncAppConfig) error

// syncAppConfig collects the options of NewSyncApp.
// It supports dependency injection for testing while providing sensible defaults for production.
type syncAppConfig struct {
	config *config.Config

	// Optional component overrides (primarily for testing)
	client      webdav.Client
	prober      webdav.Prober
	syncManager pkgsync.Manager
	telemetry   *telemetry.Telemetry

	progress func(name string)
	interval time.Duration
	once     bool

	// HTTP server options
	address        string
	addressSet     bool
	middlewares    []func(http.Handler) http.Handler
	requestTimeout time.Duration
	readTimeout    time.Duration
	writeTimeout   time.Duration
	idleTimeout    time.Duration
}

func baseConfig(opts ...SyncAppOptions) (*syncAppConfig, error) {
	cfg := &syncAppConfig{
		requestTimeout: defaultRequestTimeout,
		readTimeout:    defaultReadTimeout,
		writeTimeout:   defaultWriteTimeout,
		idleTimeout:    defaultIdleTimeout,
	}

	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	if cfg.config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if !cfg.addressSet {
		cfg.address = cfg.config.GetListenAddress()
	}
	if cfg.interval == 0 {
		cfg.interval = cfg.config.GetInterval()
	}

	return cfg, nil
}

// NewSyncApp builds a SyncApp from the configuration
func NewSyncApp(
	ctx context.Context,
	opts ...SyncAppOptions,
) (*SyncApp, error) {
	cfg, err := baseConfig(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to build base configuration: %w", err)
	}

	ownsTelemetry := cfg.telemetry == nil
	if ownsTelemetry {
		cfg.telemetry, err = telemetry.New(ctx, cfg.config.Telemetry,
			telemetry.WithServiceVersion(versions.GetVersionInfo().Version))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
		}
	}

	// Ensure cleanup happens on error
	cleanupNeeded := true
	defer func() {
		if cleanupNeeded && ownsTelemetry {
			_ = cfg.telemetry.Shutdown(context.Background())
		}
	}()

	if err := buildTransport(cfg); err != nil {
		return nil, fmt.Errorf("failed to build WebDAV client: %w", err)
	}

	components, err := buildSyncComponents(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to build sync components: %w", err)
	}

	var httpServer *http.Server
	if cfg.address != "" {
		httpServer = buildHTTPServer(cfg, components)
	}

	appCtx, cancel := context.WithCancel(ctx)
	cleanupNeeded = false

	return &SyncApp{
		config:        cfg.config,
		components:    components,
		httpServer:    httpServer,
		ownsTelemetry: ownsTelemetry,
		ctx:           appCtx,
		cancelFunc:    cancel,
	}, nil
}

// WithConfig sets the configuration
func WithConfig(c *config.Config) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.config = c
		return nil
	}
}

// WithAddress sets the status server address, overriding the configuration.
// An empty address disables the server.
func WithAddress(addr string) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.addressSet = true
		if addr == "" {
			cfg.address = ""
			return nil
		}

		host, port, found := strings.Cut(addr, ":")
		if !found || port == "" {
			return fmt.Errorf("address is not a valid port: %s", addr)
		}
		if host == "localhost" {
			host = "127.0.0.1"
		}
		if host == "" {
			host = "0.0.0.0"
		}

		if _, err := netip.ParseAddrPort(host + ":" + port); err != nil {
			return fmt.Errorf("address is not a valid port: %w", err)
		}

		cfg.address = addr
		return nil
	}
}

// WithMiddlewares sets custom HTTP middlewares
func WithMiddlewares(mw ...func(http.Handler) http.Handler) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.middlewares = mw
		return nil
	}
}

// WithClient allows injecting a custom WebDAV client (for testing)
func WithClient(c webdav.Client) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.client = c
		return nil
	}
}

// WithProber allows injecting a custom ETag prober (for testing)
func WithProber(p webdav.Prober) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.prober = p
		return nil
	}
}

// WithSyncManager allows injecting a custom sync manager (for testing)
func WithSyncManager(sm pkgsync.Manager) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.syncManager = sm
		return nil
	}
}

// WithTelemetry uses tel instead of building providers from the configuration.
// The caller keeps ownership of tel.
func WithTelemetry(tel *telemetry.Telemetry) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.telemetry = tel
		return nil
	}
}

// WithProgress sets the callback receiving the display name of every synced satellite
func WithProgress(fn func(name string)) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.progress = fn
		return nil
	}
}

// WithInterval overrides the configured polling interval
func WithInterval(interval time.Duration) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		if interval < 0 {
			return fmt.Errorf("interval cannot be negative: %s", interval)
		}
		cfg.interval = interval
		return nil
	}
}

// WithOnce makes the watch loop stop after its first check
func WithOnce(once bool) SyncAppOptions {
	return func(cfg *syncAppConfig) error {
		cfg.once = once
		return nil
	}
}

// buildTransport builds the WebDAV client and ETag prober unless injected
func buildTransport(b *syncAppConfig) error {
	if b.client != nil {
		return nil
	}

	password, err := b.config.GetPassword()
	if err != nil {
		return err
	}

	webdavMetrics, err := telemetry.NewWebDAVMetrics(b.telemetry.MeterProvider())
	if err != nil {
		return fmt.Errorf("failed to create WebDAV metrics: %w", err)
	}

	client, err := webdav.NewClient(b.config.BaseURL,
		webdav.WithCredentials(b.config.Username, password),
		webdav.WithLockBody(b.config.Body),
		webdav.WithTimeout(b.config.GetTimeout()),
		webdav.WithTransport(telemetry.InstrumentTransport(
			http.DefaultTransport, b.telemetry.TracerProvider(), webdavMetrics)),
	)
	if err != nil {
		return err
	}
	b.client = client

	if b.prober == nil {
		b.prober, err = webdav.NewProber(b.config.GetETagProbe(), client,
			b.config.Username, password, b.config.GetTimeout())
		if err != nil {
			return err
		}
	}

	slog.Info("WebDAV client configured",
		"base_url", client.BaseURL(),
		"etag_probe", b.config.GetETagProbe(),
	)
	return nil
}

// buildSyncComponents builds sync manager, coordinator, and related components
func buildSyncComponents(ctx context.Context, b *syncAppConfig) (*AppComponents, error) {
	slog.Info("Initializing sync components")

	if b.syncManager == nil {
		syncMetrics, err := telemetry.NewSyncMetrics(b.telemetry.MeterProvider())
		if err != nil {
			return nil, fmt.Errorf("failed to create sync metrics: %w", err)
		}

		managerOpts := []pkgsync.Option{
			pkgsync.WithSyncMetrics(syncMetrics),
			pkgsync.WithTracerProvider(b.telemetry.TracerProvider()),
		}
		if b.prober != nil {
			managerOpts = append(managerOpts, pkgsync.WithProber(b.prober))
		}
		if b.progress != nil {
			managerOpts = append(managerOpts, pkgsync.WithProgress(b.progress))
		}

		b.syncManager, err = pkgsync.NewDefaultSyncManager(b.client, b.config.Main, b.config.Resources, managerOpts...)
		if err != nil {
			return nil, err
		}
	}

	var trackerOpts []status.TrackerOption
	if b.config.StatusFile != "" {
		trackerOpts = append(trackerOpts, status.WithPersistence(status.NewFileStatusPersistence(b.config.StatusFile)))
	}
	tracker := status.NewTracker(trackerOpts...)
	if err := tracker.Restore(ctx); err != nil {
		slog.Warn("Failed to restore sync status", "path", b.config.StatusFile, "error", err)
	}

	etags := state.NewETags()
	coordOpts := []coordinator.Option{
		coordinator.WithETags(etags),
		coordinator.WithStatus(tracker),
	}
	if b.once {
		coordOpts = append(coordOpts, coordinator.WithOnce())
	}

	slog.Info("Sync components initialized successfully",
		"main", b.config.Main,
		"resources", len(b.config.Resources),
		"interval", b.interval,
	)

	return &AppComponents{
		SyncManager:     b.syncManager,
		SyncCoordinator: coordinator.New(b.syncManager, b.interval, coordOpts...),
		ETags:           etags,
		Status:          tracker,
		Telemetry:       b.telemetry,
	}, nil
}

// buildHTTPServer builds the status server with router and middleware
func buildHTTPServer(b *syncAppConfig, components *AppComponents) *http.Server {
	slog.Info("Initializing HTTP server")

	if b.middlewares == nil {
		b.middlewares = []func(http.Handler) http.Handler{
			middleware.RequestID,
			middleware.RealIP,
			middleware.Recoverer,
			middleware.Timeout(b.requestTimeout),
			api.LoggingMiddleware,
		}
	}

	serverOpts := []api.ServerOption{api.WithMiddlewares(b.middlewares...)}
	if registry := components.Telemetry.Registry(); registry != nil {
		serverOpts = append(serverOpts, api.WithMetricsGatherer(registry))
	}

	server := &http.Server{
		Addr:         b.address,
		Handler:      api.NewServer(components.Status, serverOpts...),
		ReadTimeout:  b.readTimeout,
		WriteTimeout: b.writeTimeout,
		IdleTimeout:  b.idleTimeout,
	}

	slog.Info("HTTP server configured", "address", b.address)
	return server
}
