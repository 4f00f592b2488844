// Package tracing wraps the two in-scope suspension points spec §5
// names — flush_vacb's backing-store write and trim_cache's page-out —
// in OpenTelemetry spans, the same instrumentation style
// abiolaogu-MinIO's enterprise package uses go.opentelemetry.io/otel
// for around its own I/O operations.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("viewkern/viewcache")

var provider *sdktrace.TracerProvider

// InitProvider installs an always-sampling SDK TracerProvider as the
// global provider, so FlushVacb/PageOut spans actually get exported
// instead of going to the package-default no-op tracer. Callers that
// never call this still get correct, zero-cost no-op spans.
func InitProvider(exporter sdktrace.SpanExporter) *sdktrace.TracerProvider {
	res := resource.NewWithAttributes(semconv.SchemaURL, semconv.ServiceName("viewkern"))
	provider = sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(provider)
	return provider
}

// Shutdown flushes and tears down the provider installed by InitProvider.
// A no-op if InitProvider was never called.
func Shutdown(ctx context.Context) error {
	if provider == nil {
		return nil
	}
	return provider.Shutdown(ctx)
}

// FlushVacb wraps the write_region callback of one flush_vacb call in a
// span tagged with the VACB's file offset; the clean transition that
// follows a successful write runs outside the span.
func FlushVacb(ctx context.Context, fileOffset int64, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "flush_vacb", trace.WithAttributes(
		attribute.Int64("file_offset", fileOffset),
	))
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// PageOut wraps one trim_cache page-out of a VACB's whole window.
func PageOut(ctx context.Context, base uintptr, fn func(context.Context) error) error {
	ctx, span := tracer.Start(ctx, "page_out", trace.WithAttributes(
		attribute.Int64("base", int64(base)),
	))
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
