package app

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/stacklok/davsync/internal/status"
	pkgsync "github.com/stacklok/davsync/internal/sync"
	syncmocks "github.com/stacklok/davsync/internal/sync/mocks"
	"github.com/stacklok/davsync/internal/webdav/davtest"
)

func TestSyncApp_StartOnce(t *testing.T) {
	t.Parallel()

	server := davtest.NewServer(t, map[string]string{testMain: testMainBody, testResource: testSatellite})

	var progress []string
	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig(server.URL)),
		WithOnce(true),
		WithProgress(func(name string) { progress = append(progress, pkgsync.ProgressNotice(name)) }),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Stop(time.Second)
	})

	require.NoError(t, app.Start())

	assert.Equal(t,
		`<root><tasks><task name="Tasks"><task id="1"/></task></tasks></root>`,
		server.Read(t, testMain))
	assert.Equal(t, []string{"Added tasks from tasks"}, progress)

	components := app.GetComponents()
	assert.Equal(t, 2, components.ETags.Len())
	s := components.Status.Status()
	assert.Equal(t, status.SyncPhaseComplete, s.Phase)
	assert.Equal(t, pkgsync.DirectionResourcesToMain, s.Direction)
	assert.Equal(t, []string{testResource}, s.Synced)
}

func TestSyncApp_StartOnceWithServer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	manager.EXPECT().FilesHaveChanged(gomock.Any(), gomock.Any()).Return(false, false, nil)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig("https://dav.example.com")),
		WithSyncManager(manager),
		WithAddress("127.0.0.1:0"),
		WithOnce(true),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- app.Start()
	}()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after the single check")
	}
	assert.NoError(t, app.Stop(time.Second))
}

func TestSyncApp_StartReturnsCycleError(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	syncErr := errors.New("failed to lock main.xml")
	manager.EXPECT().FilesHaveChanged(gomock.Any(), gomock.Any()).Return(true, true, nil)
	manager.EXPECT().SyncFiles(gomock.Any(), gomock.Any(), true).Return(nil, syncErr)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig("https://dav.example.com")),
		WithSyncManager(manager),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Stop(time.Second)
	})

	assert.ErrorIs(t, app.Start(), syncErr)
	assert.Equal(t, status.SyncPhaseFailed, app.GetComponents().Status.Status().Phase)
}

func TestSyncApp_StopEndsLoop(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)
	manager.EXPECT().FilesHaveChanged(gomock.Any(), gomock.Any()).Return(false, false, nil).AnyTimes()

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig("https://dav.example.com")),
		WithSyncManager(manager),
		WithInterval(time.Hour),
	)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() {
		done <- app.Start()
	}()

	require.Eventually(t, func() bool {
		return app.GetComponents().Status.Ready()
	}, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, app.Stop(time.Second))
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Start did not return after Stop")
	}
}

func TestSyncApp_SyncOnce(t *testing.T) {
	t.Parallel()

	fromMain := false
	tests := []struct {
		name              string
		from              *bool
		expectedDirection string
		expectedMain      string
		expectedSatellite string
	}{
		{
			name:              "detected direction syncs from resources",
			expectedDirection: pkgsync.DirectionResourcesToMain,
			expectedMain:      `<root><tasks><task name="Tasks"><task id="1"/></task></tasks></root>`,
			expectedSatellite: testSatellite,
		},
		{
			name:              "forced direction syncs from main",
			from:              &fromMain,
			expectedDirection: pkgsync.DirectionMainToResources,
			expectedMain:      testMainBody,
			expectedSatellite: `<root><tasks/></root>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			server := davtest.NewServer(t, map[string]string{testMain: testMainBody, testResource: testSatellite})
			app, err := NewSyncApp(context.Background(), WithConfig(createValidTestConfig(server.URL)))
			require.NoError(t, err)
			t.Cleanup(func() {
				_ = app.Stop(time.Second)
			})

			result, err := app.SyncOnce(context.Background(), tt.from)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedDirection, result.Direction)
			assert.Equal(t, tt.expectedMain, server.Read(t, testMain))
			assert.Equal(t, tt.expectedSatellite, server.Read(t, testResource))
		})
	}
}

func TestSyncApp_SyncOnceEmptyMain(t *testing.T) {
	t.Parallel()

	server := davtest.NewServer(t, map[string]string{testMain: `<root/>`, testResource: testSatellite})
	app, err := NewSyncApp(context.Background(), WithConfig(createValidTestConfig(server.URL)))
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Stop(time.Second)
	})

	_, err = app.SyncOnce(context.Background(), nil)
	assert.ErrorIs(t, err, pkgsync.ErrEmptyMainDocument)
}

func TestSyncApp_StatusServer(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	manager := syncmocks.NewMockManager(ctrl)

	app, err := NewSyncApp(context.Background(),
		WithConfig(createValidTestConfig("https://dav.example.com")),
		WithSyncManager(manager),
		WithAddress(":0"),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = app.Stop(time.Second)
	})

	handler := app.GetHTTPServer().Handler
	req := httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/readiness", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)

	app.GetComponents().Status.Checked(context.Background())
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequestWithContext(context.Background(), http.MethodGet, "/metrics", nil)
	rr = httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code, "metrics are only served with the Prometheus exporter")
}
