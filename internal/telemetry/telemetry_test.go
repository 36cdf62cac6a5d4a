package telemetry

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

func TestNew_Disabled(t *testing.T) {
	t.Parallel()

	for _, cfg := range []*Config{nil, {Enabled: false}} {
		tel, err := New(context.Background(), cfg)
		require.NoError(t, err)

		assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())
		assert.IsType(t, metricnoop.MeterProvider{}, tel.MeterProvider())
		assert.Nil(t, tel.Registry())
		assert.Empty(t, tel.MetricsAddress())
		assert.NoError(t, tel.Shutdown(context.Background()))
	}
}

func TestNew_InvalidConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), &Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: "statsd"},
	})
	assert.ErrorContains(t, err, "invalid telemetry configuration")
}

func TestNew_PrometheusExporter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tel, err := New(ctx, &Config{
		Enabled: true,
		Metrics: &MetricsConfig{Enabled: true, Exporter: ExporterPrometheus, Address: ":19090"},
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = tel.Shutdown(context.Background())
	})

	require.NotNil(t, tel.Registry())
	assert.Equal(t, ":19090", tel.MetricsAddress())
	assert.IsType(t, tracenoop.TracerProvider{}, tel.TracerProvider())

	m, err := NewSyncMetrics(tel.MeterProvider())
	require.NoError(t, err)
	m.RecordLockDenied(ctx, "folder/work.xml")

	families, err := tel.Registry().Gather()
	require.NoError(t, err)

	var found bool
	for _, f := range families {
		if strings.HasPrefix(f.GetName(), "davsync_locks_denied") {
			found = true
		}
	}
	assert.True(t, found, "locks denied counter should be exposed for scraping")
}

func TestNewMeterProvider_Disabled(t *testing.T) {
	t.Parallel()

	mp, err := NewMeterProvider(context.Background(), WithMetricsConfig(&MetricsConfig{Enabled: false}))
	require.NoError(t, err)
	assert.IsType(t, metricnoop.MeterProvider{}, mp)
}

func TestNewTracerProvider_Disabled(t *testing.T) {
	t.Parallel()

	tp, err := NewTracerProvider(context.Background())
	require.NoError(t, err)
	assert.IsType(t, tracenoop.TracerProvider{}, tp)
}
