package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/stacklok/davsync/internal/otel"
	"github.com/stacklok/davsync/internal/sync/state"
	"github.com/stacklok/davsync/internal/tasks"
	"github.com/stacklok/davsync/internal/telemetry"
	"github.com/stacklok/davsync/internal/webdav"
)

// TracerName is the name used for the sync tracer
const TracerName = "github.com/stacklok/davsync/sync"

// Direction constants
const (
	// DirectionResourcesToMain copies satellite tasks into the main document
	DirectionResourcesToMain = "resources-to-main"

	// DirectionMainToResources copies main document tasks into the satellites
	DirectionMainToResources = "main-to-resources"
)

// Result contains the result of a completed sync cycle
type Result struct {
	CycleID   string
	Direction string
	// Synced lists the satellites that were locked, merged and written, in configured order
	Synced []string
	// Skipped lists the satellites whose lock was not granted
	Skipped  []string
	Duration time.Duration
}

// Manager runs change detection and sync cycles over a main document and its satellites
//
//go:generate mockgen -destination=mocks/mock_manager.go -package=mocks github.com/stacklok/davsync/internal/sync Manager
type Manager interface {
	// MainChanged reports whether the main document's ETag differs from its baseline
	MainChanged(ctx context.Context, etags *state.ETags) (bool, error)

	// ResourcesChanged reports whether any satellite's ETag differs from its baseline.
	// It stops probing at the first changed satellite.
	ResourcesChanged(ctx context.Context, etags *state.ETags) (bool, error)

	// FilesHaveChanged evaluates MainChanged and ResourcesChanged independently
	FilesHaveChanged(ctx context.Context, etags *state.ETags) (mainChanged, resourcesChanged bool, err error)

	// SyncFiles runs one sync cycle. When resourcesChanged is true the satellites
	// are the source of truth, otherwise the main document is.
	SyncFiles(ctx context.Context, etags *state.ETags, resourcesChanged bool) (*Result, error)
}

// Option configures the default sync manager
type Option func(*defaultSyncManager) error

// WithProber sets how current ETags are read. The default issues GET requests
// through the manager's client.
func WithProber(prober webdav.Prober) Option {
	return func(m *defaultSyncManager) error {
		if prober == nil {
			return fmt.Errorf("prober cannot be nil")
		}
		m.prober = prober
		return nil
	}
}

// WithSyncMetrics sets the sync metrics for the manager
func WithSyncMetrics(metrics *telemetry.SyncMetrics) Option {
	return func(m *defaultSyncManager) error {
		m.metrics = metrics
		return nil
	}
}

// WithTracerProvider sets the tracer provider used for cycle spans
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(m *defaultSyncManager) error {
		if provider != nil {
			m.tracer = provider.Tracer(TracerName)
		}
		return nil
	}
}

// WithProgress sets a function called with the display name of every satellite
// written back during a cycle
func WithProgress(fn func(name string)) Option {
	return func(m *defaultSyncManager) error {
		m.progress = fn
		return nil
	}
}

// defaultSyncManager is the default implementation of Manager
type defaultSyncManager struct {
	client    webdav.Client
	prober    webdav.Prober
	main      string
	resources []string
	metrics   *telemetry.SyncMetrics
	tracer    trace.Tracer
	progress  func(name string)
}

// NewDefaultSyncManager creates a Manager syncing main with resources through client
func NewDefaultSyncManager(client webdav.Client, main string, resources []string, opts ...Option) (Manager, error) {
	if client == nil {
		return nil, fmt.Errorf("client cannot be nil")
	}
	if main == "" {
		return nil, fmt.Errorf("main document cannot be empty")
	}

	m := &defaultSyncManager{
		client:    client,
		prober:    webdav.NewGetProber(client),
		main:      main,
		resources: append([]string(nil), resources...),
		tracer:    noop.NewTracerProvider().Tracer(TracerName),
	}
	for _, opt := range opts {
		if err := opt(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// MainChanged reports whether the main document changed since its baseline
func (m *defaultSyncManager) MainChanged(ctx context.Context, etags *state.ETags) (bool, error) {
	current, err := m.currentETag(ctx, m.main, StageProbe)
	if err != nil {
		return false, err
	}
	changed := etags.Changed(m.main, current)
	slog.Debug("Checked main document ETag", "resource", m.main, "etag", current, "changed", changed)
	return changed, nil
}

// ResourcesChanged reports whether any satellite changed since its baseline
func (m *defaultSyncManager) ResourcesChanged(ctx context.Context, etags *state.ETags) (bool, error) {
	for _, resource := range m.resources {
		current, err := m.currentETag(ctx, resource, StageProbe)
		if err != nil {
			return false, err
		}
		if etags.Changed(resource, current) {
			slog.Debug("Satellite ETag changed", "resource", resource, "etag", current)
			return true, nil
		}
	}
	return false, nil
}

// FilesHaveChanged pairs MainChanged and ResourcesChanged
func (m *defaultSyncManager) FilesHaveChanged(
	ctx context.Context, etags *state.ETags,
) (mainChanged, resourcesChanged bool, err error) {
	mainChanged, err = m.MainChanged(ctx, etags)
	if err != nil {
		return false, false, err
	}
	resourcesChanged, err = m.ResourcesChanged(ctx, etags)
	if err != nil {
		return false, false, err
	}
	return mainChanged, resourcesChanged, nil
}

// cycle carries the per-cycle state of SyncFiles
type cycle struct {
	logger     *slog.Logger
	result     *Result
	tokens     map[string]string
	satellites map[string]*tasks.Document
	names      map[string]string
	main       *tasks.Document
}

// SyncFiles runs one sync cycle
func (m *defaultSyncManager) SyncFiles(ctx context.Context, etags *state.ETags, resourcesChanged bool) (*Result, error) {
	start := time.Now()

	direction := DirectionMainToResources
	if resourcesChanged {
		direction = DirectionResourcesToMain
	}
	cycleID := uuid.NewString()

	ctx, span := otel.StartSpan(ctx, m.tracer, "sync.files", trace.WithAttributes(
		otel.AttrCycleID.String(cycleID),
		otel.AttrDirection.String(direction),
		otel.AttrResourceCount.Int(len(m.resources)),
	))
	defer span.End()

	c := &cycle{
		logger:     slog.With("cycle_id", cycleID, "direction", direction),
		result:     &Result{CycleID: cycleID, Direction: direction},
		tokens:     make(map[string]string, len(m.resources)+1),
		satellites: make(map[string]*tasks.Document, len(m.resources)),
		names:      make(map[string]string, len(m.resources)),
	}
	c.logger.Info("Starting sync cycle", "main", m.main, "resources", len(m.resources))

	err := m.runCycle(ctx, c, etags, resourcesChanged)
	c.result.Duration = time.Since(start)

	switch {
	case errors.Is(err, ErrEmptyMainDocument):
		c.logger.Info("Main document is empty, nothing to sync", "main", m.main)
		span.SetStatus(codes.Ok, "main document is empty")
		m.metrics.RecordSyncDuration(ctx, direction, c.result.Duration, true)
		return nil, err
	case err != nil:
		c.logger.Error("Sync cycle failed", "error", err)
		otel.RecordError(span, err)
		m.metrics.RecordSyncDuration(ctx, direction, c.result.Duration, false)
		return nil, err
	}

	span.SetAttributes(
		otel.AttrSyncedCount.Int(len(c.result.Synced)),
		otel.AttrSkippedCount.Int(len(c.result.Skipped)),
	)
	span.SetStatus(codes.Ok, "")
	m.metrics.RecordSyncDuration(ctx, direction, c.result.Duration, true)
	c.logger.Info("Sync cycle completed",
		"synced", len(c.result.Synced),
		"skipped", len(c.result.Skipped),
		"duration", c.result.Duration)

	return c.result, nil
}

// runCycle runs the stages of a cycle in order, each in its own span
func (m *defaultSyncManager) runCycle(ctx context.Context, c *cycle, etags *state.ETags, resourcesChanged bool) error {
	stages := []struct {
		stage Stage
		run   func(context.Context) error
	}{
		{StageLock, func(ctx context.Context) error { return m.lockAll(ctx, c) }},
		{StageFetch, func(ctx context.Context) error { return m.fetchAll(ctx, c) }},
		{StageMerge, func(context.Context) error { return m.mergeAll(c, resourcesChanged) }},
		{StageWrite, func(ctx context.Context) error { return m.writeAll(ctx, c) }},
		{StageUnlock, func(ctx context.Context) error { return m.unlockAll(ctx, c) }},
		{StageRefresh, func(ctx context.Context) error { return m.refreshAll(ctx, etags) }},
	}

	for _, s := range stages {
		if err := m.runStage(ctx, s.stage, s.run); err != nil {
			return err
		}
	}
	return nil
}

func (m *defaultSyncManager) runStage(ctx context.Context, stage Stage, run func(context.Context) error) error {
	ctx, span := otel.StartSpan(ctx, m.tracer, "sync."+string(stage),
		trace.WithAttributes(otel.AttrStage.String(string(stage))))
	defer span.End()

	err := run(ctx)
	if err != nil && !errors.Is(err, ErrEmptyMainDocument) {
		otel.RecordError(span, err)
	}
	return err
}

// lockAll locks every satellite, then the main document
func (m *defaultSyncManager) lockAll(ctx context.Context, c *cycle) error {
	for _, resource := range m.resources {
		token, err := m.lock(ctx, resource)
		if err != nil {
			return err
		}
		c.tokens[resource] = token
		if token == "" {
			c.logger.Warn("Lock not granted, skipping resource for this cycle", "resource", resource)
			m.metrics.RecordLockDenied(ctx, resource)
			c.result.Skipped = append(c.result.Skipped, resource)
		}
	}

	token, err := m.lock(ctx, m.main)
	if err != nil {
		return err
	}
	c.tokens[m.main] = token
	if token == "" {
		c.logger.Warn("Lock not granted on main document", "resource", m.main)
		m.metrics.RecordLockDenied(ctx, m.main)
	}
	return nil
}

func (m *defaultSyncManager) lock(ctx context.Context, resource string) (string, error) {
	token, err := m.client.Lock(ctx, resource)
	if err != nil {
		return "", &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to lock %s: %v", resource, err),
			Stage:    StageLock,
			Resource: resource,
		}
	}
	return token, nil
}

// fetchAll reads every locked satellite, then the main document
func (m *defaultSyncManager) fetchAll(ctx context.Context, c *cycle) error {
	for _, resource := range m.resources {
		if c.tokens[resource] == "" {
			continue
		}
		doc, err := m.fetch(ctx, resource)
		if err != nil {
			return err
		}
		c.satellites[resource] = doc
	}

	doc, err := m.fetch(ctx, m.main)
	if err != nil {
		return err
	}
	if doc.Empty() {
		return ErrEmptyMainDocument
	}
	c.main = doc
	return nil
}

func (m *defaultSyncManager) fetch(ctx context.Context, resource string) (*tasks.Document, error) {
	resp, err := m.client.Get(ctx, resource)
	if err != nil {
		return nil, &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to fetch %s: %v", resource, err),
			Stage:    StageFetch,
			Resource: resource,
		}
	}
	doc, err := tasks.Parse(resp.Body)
	if err != nil {
		return nil, &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to parse %s: %v", resource, err),
			Stage:    StageParse,
			Resource: resource,
		}
	}
	return doc, nil
}

// mergeAll copies tasks between every fetched satellite and its main document subsection
func (m *defaultSyncManager) mergeAll(c *cycle, resourcesChanged bool) error {
	for _, resource := range m.resources {
		satellite, ok := c.satellites[resource]
		if !ok {
			continue
		}
		name, err := tasks.DisplayName(resource)
		if err == nil {
			err = mergeOne(c.main, satellite, name, resourcesChanged)
		}
		if err != nil {
			return &Error{
				Err:      err,
				Message:  fmt.Sprintf("failed to merge %s: %v", resource, err),
				Stage:    StageMerge,
				Resource: resource,
			}
		}
		c.names[resource] = name
	}
	return nil
}

func mergeOne(main, satellite *tasks.Document, name string, resourcesChanged bool) error {
	subsection, err := main.Subsection(name)
	if err != nil {
		return err
	}

	var dest *etree.Element
	var src []*etree.Element
	if resourcesChanged {
		dest = subsection
		src, err = satellite.TaskElements()
	} else {
		dest, err = satellite.Tasks()
		src = subsection.SelectElements(tasks.TaskTag)
	}
	if err != nil {
		return err
	}

	tasks.ReplaceChildren(dest, src)
	return nil
}

// writeAll writes every synced satellite, then the main document
func (m *defaultSyncManager) writeAll(ctx context.Context, c *cycle) error {
	for _, resource := range m.resources {
		satellite, ok := c.satellites[resource]
		if !ok {
			continue
		}
		if err := m.write(ctx, resource, satellite, c.tokens[resource]); err != nil {
			return err
		}
		c.result.Synced = append(c.result.Synced, resource)

		name := c.names[resource]
		c.logger.Info("Added tasks", "resource", resource, "name", name)
		if m.progress != nil {
			m.progress(name)
		}
	}

	return m.write(ctx, m.main, c.main, c.tokens[m.main])
}

func (m *defaultSyncManager) write(ctx context.Context, resource string, doc *tasks.Document, token string) error {
	content, err := doc.String()
	if err == nil {
		err = m.client.Put(ctx, resource, content, token)
	}
	if err != nil {
		return &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to write %s: %v", resource, err),
			Stage:    StageWrite,
			Resource: resource,
		}
	}
	m.metrics.RecordResourceWritten(ctx, resource)
	return nil
}

// unlockAll releases every lock taken in the cycle, main document last
func (m *defaultSyncManager) unlockAll(ctx context.Context, c *cycle) error {
	for _, resource := range append(append([]string(nil), m.resources...), m.main) {
		token := c.tokens[resource]
		if token == "" {
			continue
		}
		if err := m.client.Unlock(ctx, resource, token); err != nil {
			return &Error{
				Err:      err,
				Message:  fmt.Sprintf("failed to unlock %s: %v", resource, err),
				Stage:    StageUnlock,
				Resource: resource,
			}
		}
	}
	return nil
}

// refreshAll records the current ETag of every resource as its new baseline
func (m *defaultSyncManager) refreshAll(ctx context.Context, etags *state.ETags) error {
	for _, resource := range append(append([]string(nil), m.resources...), m.main) {
		current, err := m.currentETag(ctx, resource, StageRefresh)
		if err != nil {
			return err
		}
		etags.Set(resource, current)
	}
	return nil
}

func (m *defaultSyncManager) currentETag(ctx context.Context, resource string, stage Stage) (string, error) {
	raw, err := m.prober.ETag(ctx, resource)
	if err != nil {
		return "", &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to read ETag of %s: %v", resource, err),
			Stage:    stage,
			Resource: resource,
		}
	}
	etag, err := CleanETag(raw)
	if err != nil {
		return "", &Error{
			Err:      err,
			Message:  fmt.Sprintf("failed to read ETag of %s: %v", resource, err),
			Stage:    StageParse,
			Resource: resource,
		}
	}
	return etag, nil
}

// ProgressNotice formats the notice printed for a written satellite
func ProgressNotice(name string) string {
	return "Added tasks from " + strings.ToLower(name)
}
