package write

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/go-multierror"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/metrics"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// Dispatcher fans one inbound pipeline message out to independent
// coordinator invocations. Each record's write is isolated: one record's
// failure neither prevents nor rolls back any sibling's commit, and all
// per-record failures are raised once, aggregated, after every record has
// settled.
type Dispatcher struct {
	coordinator *Coordinator
	concurrency int
	recorder    metrics.MetricRecorder
}

// NewDispatcher creates a Dispatcher. concurrency bounds the worker pool;
// zero or negative means one worker per record.
func NewDispatcher(coordinator *Coordinator, concurrency int, recorder metrics.MetricRecorder) *Dispatcher {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	return &Dispatcher{
		coordinator: coordinator,
		concurrency: concurrency,
		recorder:    recorder,
	}
}

// DispatchMessage writes everything one workflow message carries: the
// execution first (so the granules' run reference can resolve), then the
// PDR, then the granule batch. Execution and PDR failures are collected
// like per-granule failures; the granules are still dispatched.
func (d *Dispatcher) DispatchMessage(ctx context.Context, msg *model.WorkflowMessage) error {
	var errs *multierror.Error

	if msg.Execution != nil {
		if _, _, err := d.coordinator.WriteExecution(ctx, msg.Execution.ToExecution()); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("execution '%s': %w", msg.Execution.ARN, err))
		}
	}
	if msg.Pdr != nil {
		if _, _, err := d.coordinator.WritePdr(ctx, msg.Pdr.ToPdr()); err != nil {
			errs = multierror.Append(errs, fmt.Errorf("pdr '%s': %w", msg.Pdr.Name, err))
		}
	}

	granules := make([]*model.Granule, 0, len(msg.Granules))
	for i := range msg.Granules {
		granules = append(granules, msg.Granules[i].ToGranule())
	}
	if err := d.DispatchGranules(ctx, granules); err != nil {
		errs = multierror.Append(errs, err)
	}
	return errs.ErrorOrNil()
}

// DispatchGranules writes the granules concurrently over a bounded worker
// pool and returns one aggregate error naming every record that failed.
// Records that succeeded stay committed regardless.
func (d *Dispatcher) DispatchGranules(ctx context.Context, granules []*model.Granule) error {
	n := len(granules)
	if n == 0 {
		return nil
	}
	workers := d.concurrency
	if workers <= 0 || workers > n {
		workers = n
	}

	type job struct {
		idx     int
		granule *model.Granule
	}
	jobs := make(chan job)
	results := make([]error, n)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range jobs {
				_, _, err := d.coordinator.WriteGranule(ctx, j.granule)
				results[j.idx] = err
			}
		}()
	}
	for i, g := range granules {
		jobs <- job{idx: i, granule: g}
	}
	close(jobs)
	wg.Wait()

	var errs *multierror.Error
	failures := 0
	for i, err := range results {
		if err != nil {
			failures++
			errs = multierror.Append(errs, fmt.Errorf("granule '%s': %w", granules[i].GranuleID, err))
		}
	}
	d.recorder.RecordBatch(n, failures)
	if failures > 0 {
		logger.Warnf("Dispatcher: %d of %d granule writes failed.", failures, n)
	}
	return errs.ErrorOrNil()
}
