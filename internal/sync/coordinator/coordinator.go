package coordinator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	gosync "sync"
	"time"

	"github.com/stacklok/davsync/internal/status"
	pkgsync "github.com/stacklok/davsync/internal/sync"
	"github.com/stacklok/davsync/internal/sync/state"
)

// jitterDivisor bounds the random offset applied to the interval to ±interval/10
const jitterDivisor = 10

// Coordinator schedules change checks and sync cycles
type Coordinator interface {
	// Start runs checks until the context is cancelled, Stop is called, or a
	// check fails. It blocks until then.
	Start(ctx context.Context) error

	// Stop cancels a running Start and waits for it to return
	Stop() error
}

// defaultCoordinator is the default implementation of Coordinator
type defaultCoordinator struct {
	manager  pkgsync.Manager
	interval time.Duration
	once     bool
	etags    *state.ETags
	status   *status.Tracker

	mu         gosync.Mutex
	cancelFunc context.CancelFunc
	done       chan struct{}
}

// Option is a function that configures the coordinator
type Option func(*defaultCoordinator)

// WithOnce makes Start return after the first check
func WithOnce() Option {
	return func(c *defaultCoordinator) {
		c.once = true
	}
}

// WithETags sets the baselines the coordinator starts from
func WithETags(etags *state.ETags) Option {
	return func(c *defaultCoordinator) {
		c.etags = etags
	}
}

// WithStatus sets the tracker that records the outcome of every check
func WithStatus(tracker *status.Tracker) Option {
	return func(c *defaultCoordinator) {
		c.status = tracker
	}
}

// New creates a coordinator checking for changes every interval
func New(manager pkgsync.Manager, interval time.Duration, opts ...Option) Coordinator {
	c := &defaultCoordinator{
		manager:  manager,
		interval: interval,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.etags == nil {
		c.etags = state.NewETags()
	}
	if c.status == nil {
		c.status = status.NewTracker()
	}
	return c
}

// calculatePollingInterval returns base with a random offset of up to ±10% applied
func calculatePollingInterval(base time.Duration) time.Duration {
	jitter := base / jitterDivisor
	if jitter <= 0 {
		return base
	}
	//nolint:gosec // G404: Non-cryptographic randomness is sufficient for polling jitter
	offset := time.Duration(rand.Int64N(int64(2*jitter))) - jitter
	return base + offset
}

// Start runs the check loop
func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.mu.Lock()
	c.cancelFunc = cancel
	c.mu.Unlock()
	defer func() {
		cancel()
		close(c.done)
		slog.Info("Sync coordinator stopped")
	}()

	slog.Info("Starting sync coordinator", "interval", c.interval, "once", c.once)

	if err := c.processCycle(coordCtx); err != nil || c.once {
		return c.finish(coordCtx, err)
	}

	ticker := time.NewTicker(calculatePollingInterval(c.interval))
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if coordCtx.Err() != nil {
				return nil
			}
			if err := c.processCycle(coordCtx); err != nil {
				return c.finish(coordCtx, err)
			}
			ticker.Reset(calculatePollingInterval(c.interval))
		case <-coordCtx.Done():
			slog.Info("Sync coordinator stopping")
			return nil
		}
	}
}

// Stop cancels the loop and waits for Start to return
func (c *defaultCoordinator) Stop() error {
	c.mu.Lock()
	cancel := c.cancelFunc
	c.mu.Unlock()

	if cancel != nil {
		slog.Info("Stopping sync coordinator")
		cancel()
		<-c.done
	}
	return nil
}

// finish maps the error that ended the loop to the result of Start
func (c *defaultCoordinator) finish(ctx context.Context, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pkgsync.ErrEmptyMainDocument):
		slog.Info("Main document is empty, stopping sync coordinator")
		return nil
	case ctx.Err() != nil:
		slog.Debug("Sync interrupted by shutdown", "error", err)
		return nil
	default:
		return err
	}
}

// emptyMainMessage is the status message of a cycle stopped by an empty main document
const emptyMainMessage = "Main document is empty, nothing synced"

// processCycle checks for changes and runs a sync cycle if anything changed
func (c *defaultCoordinator) processCycle(ctx context.Context) error {
	mainChanged, resourcesChanged, err := c.manager.FilesHaveChanged(ctx, c.etags)
	if err != nil {
		err = fmt.Errorf("failed to check for changes: %w", err)
		c.status.Failed(ctx, err)
		return err
	}
	if !mainChanged && !resourcesChanged {
		slog.Debug("No changes detected")
		c.status.Checked(ctx)
		return nil
	}

	slog.Info("Changes detected", "main_changed", mainChanged, "resources_changed", resourcesChanged)

	direction := pkgsync.DirectionMainToResources
	if resourcesChanged {
		direction = pkgsync.DirectionResourcesToMain
	}
	c.status.Started(ctx, direction)

	result, err := c.manager.SyncFiles(ctx, c.etags, resourcesChanged)
	if errors.Is(err, pkgsync.ErrEmptyMainDocument) {
		c.status.Stopped(ctx, emptyMainMessage)
		return err
	}
	if err != nil {
		c.status.Failed(ctx, err)
		return err
	}
	c.status.Completed(ctx, result.CycleID, result.Direction, result.Synced, result.Skipped, c.etags.Snapshot())

	slog.Info("Sync completed successfully",
		"cycle_id", result.CycleID,
		"direction", result.Direction,
		"synced", len(result.Synced),
		"skipped", len(result.Skipped),
		"duration", result.Duration)
	return nil
}
