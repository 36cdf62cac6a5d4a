package telemetry

import (
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the name used for the WebDAV client tracer
const TracerName = "github.com/stacklok/davsync/webdav"

// WebDAVMetrics holds the OpenTelemetry instruments for WebDAV requests
type WebDAVMetrics struct {
	requestDuration metric.Float64Histogram
	requestsTotal   metric.Int64Counter
}

// NewWebDAVMetrics creates a new WebDAVMetrics instance with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewWebDAVMetrics(provider metric.MeterProvider) (*WebDAVMetrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(WebDAVMetricsMeterName)

	requestDuration, err := meter.Float64Histogram(
		"davsync_webdav_request_duration_seconds",
		metric.WithDescription("Duration of WebDAV requests in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10),
	)
	if err != nil {
		return nil, err
	}

	requestsTotal, err := meter.Int64Counter(
		"davsync_webdav_requests_total",
		metric.WithDescription("Total number of WebDAV requests"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	return &WebDAVMetrics{
		requestDuration: requestDuration,
		requestsTotal:   requestsTotal,
	}, nil
}

// InstrumentTransport wraps next so every request is traced with a client span
// and counted in metrics. Either provider may be nil.
func InstrumentTransport(next http.RoundTripper, tracerProvider trace.TracerProvider, metrics *WebDAVMetrics) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	if tracerProvider == nil && metrics == nil {
		return next
	}
	t := &instrumentedTransport{next: next, metrics: metrics}
	if tracerProvider != nil {
		t.tracer = tracerProvider.Tracer(TracerName)
	}
	return t
}

type instrumentedTransport struct {
	next    http.RoundTripper
	tracer  trace.Tracer
	metrics *WebDAVMetrics
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()
	start := time.Now()

	var span trace.Span
	if t.tracer != nil {
		ctx, span = t.tracer.Start(ctx, req.Method,
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				semconv.HTTPRequestMethodKey.String(req.Method),
				semconv.URLFull(req.URL.String()),
				semconv.ServerAddress(req.URL.Hostname()),
			),
		)
		defer span.End()

		req = req.Clone(ctx)
		otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))
	}

	resp, err := t.next.RoundTrip(req)

	status := "error"
	if err == nil {
		status = strconv.Itoa(resp.StatusCode)
	}

	if span != nil {
		switch {
		case err != nil:
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case resp.StatusCode >= 400:
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
			span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		default:
			span.SetAttributes(semconv.HTTPResponseStatusCode(resp.StatusCode))
			span.SetStatus(codes.Ok, "")
		}
	}

	if t.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("status_code", status),
		)
		t.metrics.requestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		t.metrics.requestsTotal.Add(ctx, 1, attrs)
	}

	return resp, err
}
