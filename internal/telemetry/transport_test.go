package telemetry

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

func newRecordingTracerProvider(t *testing.T) (*sdktrace.TracerProvider, *tracetest.SpanRecorder) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() {
		_ = provider.Shutdown(context.Background())
	})
	return provider, recorder
}

func TestInstrumentTransport_Passthrough(t *testing.T) {
	t.Parallel()

	next := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("unused")
	})
	assert.NotNil(t, InstrumentTransport(next, nil, nil))
	assert.Equal(t, http.DefaultTransport, InstrumentTransport(nil, nil, nil))
}

func TestInstrumentTransport_TracesAndCounts(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == "LOCK" {
			w.WriteHeader(http.StatusLocked)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	t.Cleanup(server.Close)

	tracerProvider, recorder := newRecordingTracerProvider(t)
	meterProvider, reader := newManualMeterProvider(t)
	metrics, err := NewWebDAVMetrics(meterProvider)
	require.NoError(t, err)

	client := &http.Client{Transport: InstrumentTransport(http.DefaultTransport, tracerProvider, metrics)}

	for _, method := range []string{http.MethodGet, "LOCK"} {
		req, err := http.NewRequestWithContext(context.Background(), method, server.URL+"/main.xml", nil)
		require.NoError(t, err)
		resp, err := client.Do(req)
		require.NoError(t, err)
		require.NoError(t, resp.Body.Close())
	}

	spans := recorder.Ended()
	require.Len(t, spans, 2)

	assert.Equal(t, http.MethodGet, spans[0].Name())
	assert.Equal(t, trace.SpanKindClient, spans[0].SpanKind())
	assert.Equal(t, codes.Ok, spans[0].Status().Code)

	assert.Equal(t, "LOCK", spans[1].Name())
	assert.Equal(t, codes.Error, spans[1].Status().Code)
	assert.Contains(t, spans[1].Attributes(), attribute.Int("http.response.status_code", http.StatusLocked))

	collected := collect(t, reader)
	total, ok := collected["davsync_webdav_requests_total"]
	require.True(t, ok)
	sum, ok := total.Data.(metricdata.Sum[int64])
	require.True(t, ok)

	statuses := make(map[string]int64)
	for _, dp := range sum.DataPoints {
		status, _ := dp.Attributes.Value(attribute.Key("status_code"))
		statuses[status.AsString()] += dp.Value
	}
	assert.Equal(t, map[string]int64{"200": 1, "423": 1}, statuses)

	_, ok = collected["davsync_webdav_request_duration_seconds"]
	assert.True(t, ok)
}

func TestInstrumentTransport_TransportError(t *testing.T) {
	t.Parallel()

	tracerProvider, recorder := newRecordingTracerProvider(t)
	meterProvider, reader := newManualMeterProvider(t)
	metrics, err := NewWebDAVMetrics(meterProvider)
	require.NoError(t, err)

	failing := roundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, errors.New("connection refused")
	})
	transport := InstrumentTransport(failing, tracerProvider, metrics)

	req, err := http.NewRequestWithContext(context.Background(), http.MethodPut, "http://dav.example.com/main.xml", nil)
	require.NoError(t, err)
	_, err = transport.RoundTrip(req)
	require.ErrorContains(t, err, "connection refused")

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "connection refused", spans[0].Status().Description)

	sum, ok := collect(t, reader)["davsync_webdav_requests_total"].Data.(metricdata.Sum[int64])
	require.True(t, ok)
	require.Len(t, sum.DataPoints, 1)
	status, _ := sum.DataPoints[0].Attributes.Value(attribute.Key("status_code"))
	assert.Equal(t, "error", status.AsString())
}
