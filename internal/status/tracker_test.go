package status_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/davsync/internal/status"
	"github.com/stacklok/davsync/internal/status/mocks"
)

func fixedClock() func() time.Time {
	now := time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	return func() time.Time {
		return now
	}
}

func TestTracker_Lifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := status.NewTracker(status.WithClock(fixedClock()))

	assert.Equal(t, status.SyncPhaseIdle, tracker.Status().Phase)
	assert.False(t, tracker.Ready())

	tracker.Checked(ctx)
	assert.Equal(t, status.SyncPhaseComplete, tracker.Status().Phase)
	assert.True(t, tracker.Ready())

	tracker.Started(ctx, "resources-to-main")
	s := tracker.Status()
	assert.Equal(t, status.SyncPhaseSyncing, s.Phase)
	assert.Equal(t, 1, s.AttemptCount)
	assert.False(t, tracker.Ready(), "no cycle has succeeded yet")

	etags := map[string]string{"main.xml": "m2"}
	tracker.Completed(ctx, "cycle-1", "resources-to-main", []string{"folder/tasks.xml"}, nil, etags)
	etags["main.xml"] = "mutated"

	s = tracker.Status()
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Equal(t, "cycle-1", s.CycleID)
	assert.Zero(t, s.AttemptCount)
	assert.Equal(t, []string{"folder/tasks.xml"}, s.Synced)
	assert.Equal(t, "m2", s.ETags["main.xml"], "tracker must keep its own copy")
	require.NotNil(t, s.LastSyncTime)

	tracker.Started(ctx, "main-to-resources")
	assert.True(t, tracker.Ready(), "a previous success keeps the tracker ready while syncing")

	tracker.Failed(ctx, errors.New("lock failed"))
	s = tracker.Status()
	assert.Equal(t, status.SyncPhaseFailed, s.Phase)
	assert.Equal(t, "lock failed", s.Message)
	assert.False(t, tracker.Ready())

	tracker.Checked(ctx)
	assert.Equal(t, status.SyncPhaseFailed, tracker.Status().Phase, "a quiet check does not clear a failure")
}

func TestTracker_StoppedIsReady(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tracker := status.NewTracker(status.WithClock(fixedClock()))
	tracker.Completed(ctx, "cycle-1", "resources-to-main", nil, nil, map[string]string{"main.xml": "m1"})

	tracker.Started(ctx, "main-to-resources")
	tracker.Stopped(ctx, "Main document is empty")

	s := tracker.Status()
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Equal(t, "Main document is empty", s.Message)
	assert.Equal(t, "cycle-1", s.CycleID)
	assert.Equal(t, map[string]string{"main.xml": "m1"}, s.ETags)
	assert.True(t, tracker.Ready())
}

func TestTracker_StatusIsACopy(t *testing.T) {
	t.Parallel()

	tracker := status.NewTracker()
	tracker.Completed(context.Background(), "c", "d", []string{"a.xml"}, nil, map[string]string{"a.xml": "1"})

	s := tracker.Status()
	s.Synced[0] = "changed"
	s.ETags["a.xml"] = "changed"

	again := tracker.Status()
	assert.Equal(t, "a.xml", again.Synced[0])
	assert.Equal(t, "1", again.ETags["a.xml"])
}

func TestTracker_Persistence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "status.json")

	first := status.NewTracker(status.WithPersistence(status.NewFileStatusPersistence(path)))
	first.Started(ctx, "resources-to-main")

	second := status.NewTracker(status.WithPersistence(status.NewFileStatusPersistence(path)))
	require.NoError(t, second.Restore(ctx))

	s := second.Status()
	assert.Equal(t, status.SyncPhaseFailed, s.Phase)
	assert.Equal(t, "Interrupted during previous run", s.Message)
	assert.Equal(t, "resources-to-main", s.Direction)
}

func TestTracker_PersistenceErrorsAreNotFatal(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().SaveStatus(gomock.Any(), gomock.Any()).Return(errors.New("disk full"))

	tracker := status.NewTracker(status.WithPersistence(persistence))
	tracker.Checked(context.Background())

	assert.Equal(t, status.SyncPhaseComplete, tracker.Status().Phase)
}

func TestTracker_RestoreError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	persistence := mocks.NewMockStatusPersistence(ctrl)
	persistence.EXPECT().LoadStatus(gomock.Any()).Return(nil, errors.New("permission denied"))

	tracker := status.NewTracker(status.WithPersistence(persistence))
	assert.ErrorContains(t, tracker.Restore(context.Background()), "permission denied")
	assert.NoError(t, status.NewTracker().Restore(context.Background()))
}
