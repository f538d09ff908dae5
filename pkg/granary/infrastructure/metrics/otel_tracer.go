package metrics

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"

	metrics "github.com/orbitalworks/granary/pkg/granary/core/metrics"
	logger "github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer that exports
// spans over OTLP/HTTP. Exporter endpoint and headers follow the standard
// OTEL_EXPORTER_OTLP_* environment variables.
type OpenTelemetryTracer struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// NewOpenTelemetryTracer creates a new OpenTelemetryTracer. The caller is
// responsible for calling Shutdown when the process stops.
func NewOpenTelemetryTracer(ctx context.Context) (*OpenTelemetryTracer, error) {
	exporter, err := otlptracehttp.New(ctx)
	if err != nil {
		return nil, err
	}
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(resource.NewSchemaless(
			attribute.String("service.name", "granary"),
		)),
	)
	return &OpenTelemetryTracer{
		provider: provider,
		tracer:   provider.Tracer("granary/write"),
	}, nil
}

// Shutdown flushes and stops the span exporter.
func (t *OpenTelemetryTracer) Shutdown(ctx context.Context) error {
	return t.provider.Shutdown(ctx)
}

// StartWriteSpan starts a span for one record write.
func (t *OpenTelemetryTracer) StartWriteSpan(ctx context.Context, recordType, naturalKey string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "write "+recordType,
		trace.WithAttributes(
			attribute.String("record.type", recordType),
			attribute.String("record.key", naturalKey),
		),
	)
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		logger.Debugf("Tracer: error outside an active span in module %s: %v", module, err)
		return
	}
	span.RecordError(err, trace.WithAttributes(attribute.String("module", module)))
	span.SetStatus(codes.Error, err.Error())
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
