package status

import (
	"context"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"
)

// Tracker holds the status of the sync loop in memory and mirrors every
// change to an optional StatusPersistence.
type Tracker struct {
	mu          sync.RWMutex
	status      SyncStatus
	persistence StatusPersistence
	now         func() time.Time
}

// TrackerOption configures a Tracker
type TrackerOption func(*Tracker)

// WithPersistence mirrors the status to p
func WithPersistence(p StatusPersistence) TrackerOption {
	return func(t *Tracker) {
		t.persistence = p
	}
}

// WithClock sets the time source, mainly for tests
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		t.now = now
	}
}

// NewTracker creates a Tracker in the idle phase
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{
		status: SyncStatus{Phase: SyncPhaseIdle},
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Restore loads the persisted status, if any. A previous Syncing phase means
// the process stopped mid-cycle and is reported as Failed.
func (t *Tracker) Restore(ctx context.Context) error {
	if t.persistence == nil {
		return nil
	}
	loaded, err := t.persistence.LoadStatus(ctx)
	if err != nil {
		return err
	}
	if loaded.Phase == SyncPhaseSyncing {
		loaded.Phase = SyncPhaseFailed
		loaded.Message = "Interrupted during previous run"
	}

	t.mu.Lock()
	t.status = *loaded
	t.mu.Unlock()
	return nil
}

// Checked records a change check that found nothing to sync
func (t *Tracker) Checked(ctx context.Context) {
	t.update(ctx, func(s *SyncStatus) {
		now := t.now()
		s.LastCheck = &now
		if s.Phase != SyncPhaseFailed {
			s.Phase = SyncPhaseComplete
			s.Message = "No changes detected"
		}
	})
}

// Started records the start of a cycle
func (t *Tracker) Started(ctx context.Context, direction string) {
	t.update(ctx, func(s *SyncStatus) {
		now := t.now()
		s.Phase = SyncPhaseSyncing
		s.Message = ""
		s.Direction = direction
		s.LastCheck = &now
		s.LastAttempt = &now
		s.AttemptCount++
	})
}

// Completed records a successful cycle and the baselines it left behind
func (t *Tracker) Completed(ctx context.Context, cycleID, direction string, synced, skipped []string, etags map[string]string) {
	t.update(ctx, func(s *SyncStatus) {
		now := t.now()
		s.Phase = SyncPhaseComplete
		s.Message = "Sync completed"
		s.CycleID = cycleID
		s.Direction = direction
		s.LastSyncTime = &now
		s.AttemptCount = 0
		s.Synced = slices.Clone(synced)
		s.Skipped = slices.Clone(skipped)
		s.ETags = maps.Clone(etags)
	})
}

// Stopped records a cycle that ended without writing anything but is not a
// failure, such as an empty main document. Baselines are left untouched.
func (t *Tracker) Stopped(ctx context.Context, message string) {
	t.update(ctx, func(s *SyncStatus) {
		s.Phase = SyncPhaseComplete
		s.Message = message
	})
}

// Failed records a failed check or cycle
func (t *Tracker) Failed(ctx context.Context, err error) {
	t.update(ctx, func(s *SyncStatus) {
		s.Phase = SyncPhaseFailed
		s.Message = err.Error()
	})
}

// Status returns a copy of the current status
func (t *Tracker) Status() SyncStatus {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return copyStatus(t.status)
}

// Ready reports whether the latest check or cycle succeeded
func (t *Tracker) Ready() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.status.Phase == SyncPhaseComplete || (t.status.Phase == SyncPhaseSyncing && t.status.LastSyncTime != nil)
}

func (t *Tracker) update(ctx context.Context, fn func(*SyncStatus)) {
	t.mu.Lock()
	fn(&t.status)
	snapshot := copyStatus(t.status)
	t.mu.Unlock()

	if t.persistence == nil {
		return
	}
	if err := t.persistence.SaveStatus(ctx, &snapshot); err != nil {
		slog.Warn("Failed to persist sync status", "error", err)
	}
}

func copyStatus(s SyncStatus) SyncStatus {
	s.Synced = slices.Clone(s.Synced)
	s.Skipped = slices.Clone(s.Skipped)
	s.ETags = maps.Clone(s.ETags)
	return s
}
