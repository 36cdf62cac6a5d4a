// Package otel provides OpenTelemetry instrumentation utilities for sync cycles.
package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys shared by the spans of a sync cycle
const (
	AttrCycleID       = attribute.Key("sync.cycle_id")
	AttrDirection     = attribute.Key("sync.direction")
	AttrStage         = attribute.Key("sync.stage")
	AttrResourceCount = attribute.Key("sync.resources")
	AttrSyncedCount   = attribute.Key("sync.synced")
	AttrSkippedCount  = attribute.Key("sync.skipped")
	AttrResource      = attribute.Key("webdav.resource")
)

// StartSpan starts a new span if the tracer is non-nil, otherwise returns a no-op span.
func StartSpan(
	ctx context.Context,
	tracer trace.Tracer,
	name string,
	opts ...trace.SpanStartOption,
) (context.Context, trace.Span) {
	if tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return tracer.Start(ctx, name, opts...)
}

// RecordError records err on span and marks the span as failed.
// The status description stays generic; the error itself is kept as a span event.
func RecordError(span trace.Span, err error) {
	if err != nil && span != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "operation failed")
	}
}
