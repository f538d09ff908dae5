// Package metrics defines the observability ports of the write path.
// Concrete recorders live under infrastructure/metrics; the Noop variants
// here keep the coordinator free of nil checks.
package metrics

import (
	"context"
	"time"
)

// Write outcomes recorded per coordinator invocation.
const (
	OutcomeApplied   = "applied"
	OutcomeDiscarded = "discarded"
	OutcomeDeferred  = "deferred" // referential gating, mirror-only write
	OutcomeFailed    = "failed"
)

// MetricRecorder records write-path metrics.
type MetricRecorder interface {
	// RecordWrite counts one coordinator invocation by record type and outcome.
	RecordWrite(recordType, outcome string)
	// RecordWriteDuration records the latency of one coordinator invocation.
	RecordWriteDuration(recordType string, d time.Duration)
	// RecordCompensation counts one compensation attempt against a
	// non-transactional store; success=false marks an inconsistent state.
	RecordCompensation(store string, success bool)
	// RecordBatch records one dispatched batch and how many records failed.
	RecordBatch(size, failures int)
}

// Tracer starts spans around coordinated writes.
type Tracer interface {
	// StartWriteSpan starts a span for one record write; the returned
	// function ends it.
	StartWriteSpan(ctx context.Context, recordType, naturalKey string) (context.Context, func())
	// RecordError records an error in the current span.
	RecordError(ctx context.Context, module string, err error)
}

// NoopRecorder discards all metrics.
type NoopRecorder struct{}

// NewNoopRecorder creates a NoopRecorder.
func NewNoopRecorder() MetricRecorder { return &NoopRecorder{} }

func (r *NoopRecorder) RecordWrite(recordType, outcome string)               {}
func (r *NoopRecorder) RecordWriteDuration(recordType string, d time.Duration) {}
func (r *NoopRecorder) RecordCompensation(store string, success bool)        {}
func (r *NoopRecorder) RecordBatch(size, failures int)                       {}

var _ MetricRecorder = (*NoopRecorder)(nil)

// NoopTracer discards all spans.
type NoopTracer struct{}

// NewNoopTracer creates a NoopTracer.
func NewNoopTracer() Tracer { return &NoopTracer{} }

func (t *NoopTracer) StartWriteSpan(ctx context.Context, recordType, naturalKey string) (context.Context, func()) {
	return ctx, func() {}
}

func (t *NoopTracer) RecordError(ctx context.Context, module string, err error) {}

var _ Tracer = (*NoopTracer)(nil)
