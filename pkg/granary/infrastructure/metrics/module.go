package metrics

import (
	"context"

	"go.uber.org/fx"

	metrics "github.com/orbitalworks/granary/pkg/granary/core/metrics"
)

// Module is an Fx module that provides PrometheusRecorder and
// OpenTelemetryTracer.
var Module = fx.Options(
	// Provide PrometheusRecorder as a core metrics.MetricRecorder interface.
	fx.Provide(NewPrometheusRecorder),
	// Provide OpenTelemetryTracer as a core metrics.Tracer interface,
	// shutting the exporter down with the application.
	fx.Provide(func(lc fx.Lifecycle) (metrics.Tracer, error) {
		tracer, err := NewOpenTelemetryTracer(context.Background())
		if err != nil {
			return nil, err
		}
		lc.Append(fx.Hook{
			OnStop: tracer.Shutdown,
		})
		return tracer, nil
	}),
)
