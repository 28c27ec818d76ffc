// Package tracing installs the OpenTelemetry provider and wraps the spans the
// import pipeline emits. Spans are no-ops until NewTracer runs.
package tracing

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	ServiceName    = "mediashelf"
	ServiceVersion = "1.0.0"

	instrumentation = "mediashelf/importer"
)

// Exporter names accepted by NewTracer
const (
	ExporterStdout = "stdout"
	ExporterOTLP   = "otlp"
)

// Tracer owns the installed provider
type Tracer struct {
	tp *sdktrace.TracerProvider
}

// NewTracer installs a global provider exporting to stdout or to an OTLP/gRPC
// collector at endpoint
func NewTracer(ctx context.Context, exporter, endpoint string) (*Tracer, error) {
	return newTracer(ctx, exporter, endpoint, os.Stdout)
}

func newTracer(ctx context.Context, exporter, endpoint string, out io.Writer) (*Tracer, error) {
	var (
		exp sdktrace.SpanExporter
		err error
	)
	switch exporter {
	case ExporterOTLP:
		exp, err = otlptrace.New(ctx, otlptracegrpc.NewClient(
			otlptracegrpc.WithEndpoint(endpoint),
			otlptracegrpc.WithInsecure(),
		))
	case ExporterStdout, "":
		exp, err = stdouttrace.New(stdouttrace.WithWriter(out))
	default:
		return nil, fmt.Errorf("unknown trace exporter %q", exporter)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s trace exporter: %w", exporter, err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exp),
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(ServiceName),
			semconv.ServiceVersionKey.String(ServiceVersion),
		)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.TraceContext{})
	return &Tracer{tp: tp}, nil
}

// Shutdown flushes pending spans and stops the provider
func (t *Tracer) Shutdown(ctx context.Context) error {
	return t.tp.Shutdown(ctx)
}

// StartSpan starts a span on the global provider
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(instrumentation).Start(ctx, name, trace.WithAttributes(attrs...))
}

// SetSpanError records err on the span in ctx and marks it failed
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

// ImportBatchAttrs describes one import batch
func ImportBatchAttrs(libraryRoot string, files int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("library.root", libraryRoot),
		attribute.Int("import.files", files),
	}
}

// ImportFileAttrs describes one file of a batch
func ImportFileAttrs(path string, index int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("import.source", path),
		attribute.Int("import.index", index),
	}
}
