package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	metrics "github.com/orbitalworks/granary/pkg/granary/core/metrics"
	logger "github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	writeCounter         *prometheus.CounterVec
	writeDurationSeconds *prometheus.HistogramVec
	compensationCounter  *prometheus.CounterVec
	batchCounter         prometheus.Counter
	batchRecordsCounter  prometheus.Counter
	batchFailuresCounter prometheus.Counter
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		writeCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_write_total",
			Help: "Total coordinated record writes by record type and outcome.",
		}, []string{"record_type", "outcome"}),
		writeDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "granary_write_duration_seconds",
			Help:    "Duration of coordinated record writes.",
			Buckets: prometheus.DefBuckets,
		}, []string{"record_type"}),
		compensationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_compensation_total",
			Help: "Total compensation attempts against non-transactional stores.",
		}, []string{"store", "success"}),
		batchCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_batch_total",
			Help: "Total dispatched batches.",
		}),
		batchRecordsCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_batch_records_total",
			Help: "Total records dispatched across all batches.",
		}),
		batchFailuresCounter: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "granary_batch_failures_total",
			Help: "Total per-record failures across all batches.",
		}),
	}

	registry.MustRegister(r.writeCounter)
	registry.MustRegister(r.writeDurationSeconds)
	registry.MustRegister(r.compensationCounter)
	registry.MustRegister(r.batchCounter)
	registry.MustRegister(r.batchRecordsCounter)
	registry.MustRegister(r.batchFailuresCounter)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordWrite counts one coordinator invocation by record type and outcome.
func (r *PrometheusRecorder) RecordWrite(recordType, outcome string) {
	r.writeCounter.WithLabelValues(recordType, outcome).Inc()
}

// RecordWriteDuration records the latency of one coordinator invocation.
func (r *PrometheusRecorder) RecordWriteDuration(recordType string, d time.Duration) {
	r.writeDurationSeconds.WithLabelValues(recordType).Observe(d.Seconds())
}

// RecordCompensation counts one compensation attempt.
func (r *PrometheusRecorder) RecordCompensation(store string, success bool) {
	r.compensationCounter.WithLabelValues(store, strconv.FormatBool(success)).Inc()
	if !success {
		logger.Warnf("Metrics: failed compensation recorded for store '%s'.", store)
	}
}

// RecordBatch records one dispatched batch and how many records failed.
func (r *PrometheusRecorder) RecordBatch(size, failures int) {
	r.batchCounter.Inc()
	r.batchRecordsCounter.Add(float64(size))
	r.batchFailuresCounter.Add(float64(failures))
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
