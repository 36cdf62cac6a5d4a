package api_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stacklok/davsync/internal/api"
	"github.com/stacklok/davsync/internal/status"
)

func serve(t *testing.T, handler http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req, err := http.NewRequestWithContext(context.Background(), http.MethodGet, path, nil)
	require.NoError(t, err)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthEndpoint(t *testing.T) {
	t.Parallel()

	rr := serve(t, api.NewServer(status.NewTracker()), "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))

	var response api.HealthResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, "healthy", response.Status)
}

func TestReadinessEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		setup          func(*status.Tracker)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:           "no check yet",
			setup:          func(*status.Tracker) {},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "sync loop not ready: Idle",
		},
		{
			name: "quiet check",
			setup: func(tr *status.Tracker) {
				tr.Checked(context.Background())
			},
			expectedStatus: http.StatusOK,
			expectedBody:   "ready",
		},
		{
			name: "failed cycle",
			setup: func(tr *status.Tracker) {
				tr.Failed(context.Background(), errors.New("failed to lock main.xml"))
			},
			expectedStatus: http.StatusServiceUnavailable,
			expectedBody:   "Failed: failed to lock main.xml",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			tracker := status.NewTracker()
			tt.setup(tracker)

			rr := serve(t, api.NewServer(tracker), "/readiness")
			assert.Equal(t, tt.expectedStatus, rr.Code)
			assert.Contains(t, rr.Body.String(), tt.expectedBody)
		})
	}
}

func TestVersionEndpoint(t *testing.T) {
	t.Parallel()

	rr := serve(t, api.NewServer(status.NewTracker()), "/version")
	require.Equal(t, http.StatusOK, rr.Code)

	var response api.VersionResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.NotEmpty(t, response.Version)
	assert.NotEmpty(t, response.GoVersion)
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()

	tracker := status.NewTracker()
	tracker.Completed(context.Background(), "cycle-1", "resources-to-main",
		[]string{"folder/tasks.xml"}, []string{"folder/work.xml"}, map[string]string{"main.xml": "m1"})

	rr := serve(t, api.NewServer(tracker), "/status")
	require.Equal(t, http.StatusOK, rr.Code)

	var response status.SyncStatus
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &response))
	assert.Equal(t, status.SyncPhaseComplete, response.Phase)
	assert.Equal(t, "cycle-1", response.CycleID)
	assert.Equal(t, []string{"folder/work.xml"}, response.Skipped)
	assert.Equal(t, "m1", response.ETags["main.xml"])
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	t.Run("not mounted without a gatherer", func(t *testing.T) {
		t.Parallel()
		rr := serve(t, api.NewServer(status.NewTracker()), "/metrics")
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("serves the registry", func(t *testing.T) {
		t.Parallel()

		registry := prometheus.NewRegistry()
		counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "davsync_test_total", Help: "test"})
		registry.MustRegister(counter)
		counter.Inc()

		rr := serve(t, api.NewServer(status.NewTracker(), api.WithMetricsGatherer(registry)), "/metrics")
		require.Equal(t, http.StatusOK, rr.Code)
		assert.True(t, strings.Contains(rr.Body.String(), "davsync_test_total 1"))
	})
}

func TestMiddlewaresAreApplied(t *testing.T) {
	t.Parallel()

	var called bool
	mw := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			next.ServeHTTP(w, r)
		})
	}

	rr := serve(t, api.NewServer(status.NewTracker(), api.WithMiddlewares(mw, api.LoggingMiddleware)), "/health")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, called)
}
