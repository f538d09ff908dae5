// Package write implements the coordinated multi-store write path: per
// record, one conditional relational upsert, a mirrored document-store
// write, a search-index projection, file reconciliation for terminal
// granules, and exactly one change notification per committed state.
// Partial failures against the non-transactional stores are compensated
// back to the pre-write snapshot before the relational transaction aborts.
package write

import (
	"context"
	"time"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/core/metrics"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/core/tx"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

const moduleName = "coordinator"

// Coordinator orchestrates one logical record write across the relational
// store, the document-store mirror, the search index, and the
// notification bus. It holds no per-record state; one instance serves
// concurrent invocations.
type Coordinator struct {
	tm         tx.TransactionManager
	resolver   repository.ParentResolver
	granules   repository.GranuleRepository
	files      repository.FileRepository
	executions repository.ExecutionRepository
	pdrs       repository.PdrRepository
	mirror     ports.DocumentStore
	index      ports.SearchIndex
	publisher  ports.NotificationPublisher
	objects    ports.ObjectStore
	recorder   metrics.MetricRecorder
	tracer     metrics.Tracer
}

// NewCoordinator creates a Coordinator over the given stores. recorder and
// tracer may be nil; the noop implementations are substituted.
func NewCoordinator(
	tm tx.TransactionManager,
	resolver repository.ParentResolver,
	granules repository.GranuleRepository,
	files repository.FileRepository,
	executions repository.ExecutionRepository,
	pdrs repository.PdrRepository,
	mirror ports.DocumentStore,
	index ports.SearchIndex,
	publisher ports.NotificationPublisher,
	objects ports.ObjectStore,
	recorder metrics.MetricRecorder,
	tracer metrics.Tracer,
) *Coordinator {
	if recorder == nil {
		recorder = metrics.NewNoopRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoopTracer()
	}
	return &Coordinator{
		tm:         tm,
		resolver:   resolver,
		granules:   granules,
		files:      files,
		executions: executions,
		pdrs:       pdrs,
		mirror:     mirror,
		index:      index,
		publisher:  publisher,
		objects:    objects,
		recorder:   recorder,
		tracer:     tracer,
	}
}

// WriteGranule coordinates one granule write. The returned record is the
// row as stored after the call (the pre-existing row when the write was
// discarded as stale); it is nil when the write was deferred by
// referential gating. The outcome is one of the metrics outcome values.
func (c *Coordinator) WriteGranule(ctx context.Context, g *model.Granule) (stored *model.Granule, outcome string, err error) {
	defer c.observe(ctx, ports.KindGranule, g.Key().String(), time.Now(), &outcome, &err)()
	return c.writeGranule(ctx, g, true)
}

// writeGranule is the coordination body. reconcileFiles is false for the
// follow-up failed-status write after a file reconciliation failure, so
// that write cannot itself prune or rewrite file rows.
func (c *Coordinator) writeGranule(ctx context.Context, g *model.Granule, reconcileFiles bool) (*model.Granule, string, error) {
	if err := g.Validate(); err != nil {
		return nil, "", exception.NewValidationError(ports.KindGranule, err.Error())
	}

	refs, err := c.resolveGranuleParents(ctx, g)
	if err != nil {
		if exception.IsUnresolvedParent(err) {
			return nil, metrics.OutcomeDeferred, c.deferToMirror(ctx, granuleDocument(g), err)
		}
		return nil, "", err
	}

	key := g.Key()
	existed, err := c.granules.Exists(ctx, key)
	if err != nil {
		return nil, "", err
	}
	prev, err := c.mirror.Get(ctx, ports.KindGranule, key.String())
	if err != nil {
		return nil, "", err
	}

	var stored *model.Granule
	var cumulusID int64
	var applied bool
	err = tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		var err error
		stored, cumulusID, applied, err = c.granules.Upsert(ctx, g, refs)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return c.projectRecord(ctx, granuleDocument(stored), granuleIndexDocument(stored, cumulusID), prev)
	})
	if err != nil {
		return nil, "", err
	}
	if !applied {
		logger.Infof("Coordinator: granule '%s' write discarded as stale.", key)
		return stored, metrics.OutcomeDiscarded, nil
	}

	if reconcileFiles && stored.Status.IsTerminal() {
		if ferr := c.reconcileFiles(ctx, cumulusID, g.Files); ferr != nil {
			return c.failGranuleFiles(ctx, stored, ferr)
		}
		stored.Files = g.Files
	}

	if err := c.publishChange(ctx, ports.KindGranule, existed, granuleNotification(stored)); err != nil {
		return nil, "", err
	}
	return stored, metrics.OutcomeApplied, nil
}

// WriteExecution coordinates one execution write. Same contract as
// WriteGranule, minus file reconciliation.
func (c *Coordinator) WriteExecution(ctx context.Context, e *model.Execution) (stored *model.Execution, outcome string, err error) {
	defer c.observe(ctx, ports.KindExecution, e.ARN, time.Now(), &outcome, &err)()

	if err := e.Validate(); err != nil {
		return nil, "", exception.NewValidationError(ports.KindExecution, err.Error())
	}

	refs, err := c.resolveExecutionParents(ctx, e)
	if err != nil {
		if exception.IsUnresolvedParent(err) {
			return nil, metrics.OutcomeDeferred, c.deferToMirror(ctx, executionDocument(e), err)
		}
		return nil, "", err
	}

	existed, err := c.executions.Exists(ctx, e.ARN)
	if err != nil {
		return nil, "", err
	}
	prev, err := c.mirror.Get(ctx, ports.KindExecution, e.ARN)
	if err != nil {
		return nil, "", err
	}

	var applied bool
	err = tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		var err error
		var cumulusID int64
		stored, cumulusID, applied, err = c.executions.Upsert(ctx, e, refs)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return c.projectRecord(ctx, executionDocument(stored), executionIndexDocument(stored, cumulusID), prev)
	})
	if err != nil {
		return nil, "", err
	}
	if !applied {
		logger.Infof("Coordinator: execution '%s' write discarded as stale.", e.ARN)
		return stored, metrics.OutcomeDiscarded, nil
	}

	if err := c.publishChange(ctx, ports.KindExecution, existed, executionNotification(stored)); err != nil {
		return nil, "", err
	}
	return stored, metrics.OutcomeApplied, nil
}

// WritePdr coordinates one PDR write. Same contract as WriteExecution.
func (c *Coordinator) WritePdr(ctx context.Context, p *model.Pdr) (stored *model.Pdr, outcome string, err error) {
	defer c.observe(ctx, ports.KindPdr, p.Name, time.Now(), &outcome, &err)()

	if err := p.Validate(); err != nil {
		return nil, "", exception.NewValidationError(ports.KindPdr, err.Error())
	}

	refs, err := c.resolvePdrParents(ctx, p)
	if err != nil {
		if exception.IsUnresolvedParent(err) {
			return nil, metrics.OutcomeDeferred, c.deferToMirror(ctx, pdrDocument(p), err)
		}
		return nil, "", err
	}

	existed, err := c.pdrs.Exists(ctx, p.Name)
	if err != nil {
		return nil, "", err
	}
	prev, err := c.mirror.Get(ctx, ports.KindPdr, p.Name)
	if err != nil {
		return nil, "", err
	}

	var applied bool
	err = tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		var err error
		var cumulusID int64
		stored, cumulusID, applied, err = c.pdrs.Upsert(ctx, p, refs)
		if err != nil {
			return err
		}
		if !applied {
			return nil
		}
		return c.projectRecord(ctx, pdrDocument(stored), pdrIndexDocument(stored, cumulusID), prev)
	})
	if err != nil {
		return nil, "", err
	}
	if !applied {
		logger.Infof("Coordinator: pdr '%s' write discarded as stale.", p.Name)
		return stored, metrics.OutcomeDiscarded, nil
	}

	if err := c.publishChange(ctx, ports.KindPdr, existed, pdrNotification(stored)); err != nil {
		return nil, "", err
	}
	return stored, metrics.OutcomeApplied, nil
}

// AssociateExecution points an existing granule at an existing execution
// without touching any other field.
func (c *Coordinator) AssociateExecution(ctx context.Context, key model.GranuleKey, executionARN string) error {
	executionID, err := c.resolver.ResolveExecution(ctx, executionARN)
	if err != nil {
		return err
	}
	return tx.RunInTransaction(ctx, c.tm, func(ctx context.Context) error {
		return c.granules.AssociateExecution(ctx, key, executionID)
	})
}

// projectRecord performs steps 3 and 4 of the coordinated write: the
// mirror write and the index upsert. When the index upsert fails the
// mirror is restored to its pre-write snapshot before the error is
// returned, so the enclosing relational transaction aborts against a
// consistent mirror.
func (c *Coordinator) projectRecord(ctx context.Context, doc *ports.Document, idx *ports.IndexDocument, prev *ports.Document) error {
	if _, err := c.mirror.Upsert(ctx, doc); err != nil {
		c.tracer.RecordError(ctx, "mirror", err)
		return err
	}
	if err := c.index.Upsert(ctx, idx); err != nil {
		c.tracer.RecordError(ctx, "index", err)
		c.restoreMirror(ctx, doc.Kind, doc.ID, prev)
		return err
	}
	return nil
}

// restoreMirror compensates the document store back to a pre-write
// snapshot. A failed restore has no automatic remedy here; it is logged
// as an inconsistent-state condition for external reconciliation.
func (c *Coordinator) restoreMirror(ctx context.Context, kind, id string, prev *ports.Document) {
	if err := c.mirror.Restore(ctx, kind, id, prev); err != nil {
		c.recorder.RecordCompensation("document-store", false)
		inconsistent := exception.NewInconsistentStateError("document-store", id, err)
		logger.Errorf("Coordinator: %v", inconsistent)
		return
	}
	c.recorder.RecordCompensation("document-store", true)
}

// deferToMirror is the referential-gating path: the relational write is
// skipped for this cycle and only the mirror is updated. The event is
// expected to be redelivered once the missing parent lands.
func (c *Coordinator) deferToMirror(ctx context.Context, doc *ports.Document, cause error) error {
	logger.Infof("Coordinator: %s '%s' relational write deferred (%v).", doc.Kind, doc.ID, cause)
	if _, err := c.mirror.Upsert(ctx, doc); err != nil {
		return err
	}
	return nil
}

// publishChange emits the single change notification for a committed
// write. Publish failures are not retried and surface as a per-record
// error.
func (c *Coordinator) publishChange(ctx context.Context, kind string, existed bool, record interface{}) error {
	event := ports.EventCreate
	if existed {
		event = ports.EventUpdate
	}
	return c.publisher.Publish(ctx, event, kind, record)
}

// observe wraps one coordinator invocation in a span and records the
// outcome and latency when it returns.
func (c *Coordinator) observe(ctx context.Context, recordType, naturalKey string, start time.Time, outcome *string, errp *error) func() {
	_, end := c.tracer.StartWriteSpan(ctx, recordType, naturalKey)
	return func() {
		end()
		o := *outcome
		if *errp != nil {
			o = metrics.OutcomeFailed
		}
		c.recorder.RecordWrite(recordType, o)
		c.recorder.RecordWriteDuration(recordType, time.Since(start))
	}
}

// resolveGranuleParents resolves the granule's named parents to surrogate
// ids. The collection is required; execution, provider, and PDR resolve
// only when the record names them. Any named-but-missing parent surfaces
// as an unresolved-parent condition.
func (c *Coordinator) resolveGranuleParents(ctx context.Context, g *model.Granule) (repository.ParentRefs, error) {
	var refs repository.ParentRefs

	collectionID, err := c.resolver.ResolveCollection(ctx, g.Collection)
	if err != nil {
		return refs, err
	}
	refs.CollectionID = &collectionID

	if g.ProviderName != "" {
		providerID, err := c.resolver.ResolveProvider(ctx, g.ProviderName)
		if err != nil {
			return refs, err
		}
		refs.ProviderID = &providerID
	}
	if g.ExecutionARN != "" {
		executionID, err := c.resolver.ResolveExecution(ctx, g.ExecutionARN)
		if err != nil {
			return refs, err
		}
		refs.ExecutionID = &executionID
	}
	if g.PdrName != "" {
		pdrID, err := c.resolver.ResolvePdr(ctx, g.PdrName)
		if err != nil {
			return refs, err
		}
		refs.PdrID = &pdrID
	}
	return refs, nil
}

func (c *Coordinator) resolveExecutionParents(ctx context.Context, e *model.Execution) (repository.ParentRefs, error) {
	var refs repository.ParentRefs

	if !e.Collection.IsZero() {
		collectionID, err := c.resolver.ResolveCollection(ctx, e.Collection)
		if err != nil {
			return refs, err
		}
		refs.CollectionID = &collectionID
	}
	if e.ParentARN != "" {
		parentID, err := c.resolver.ResolveExecution(ctx, e.ParentARN)
		if err != nil {
			return refs, err
		}
		refs.ParentExecutionID = &parentID
	}
	return refs, nil
}

func (c *Coordinator) resolvePdrParents(ctx context.Context, p *model.Pdr) (repository.ParentRefs, error) {
	var refs repository.ParentRefs

	collectionID, err := c.resolver.ResolveCollection(ctx, p.Collection)
	if err != nil {
		return refs, err
	}
	refs.CollectionID = &collectionID

	if p.ProviderName != "" {
		providerID, err := c.resolver.ResolveProvider(ctx, p.ProviderName)
		if err != nil {
			return refs, err
		}
		refs.ProviderID = &providerID
	}
	if p.ExecutionARN != "" {
		executionID, err := c.resolver.ResolveExecution(ctx, p.ExecutionARN)
		if err != nil {
			return refs, err
		}
		refs.ExecutionID = &executionID
	}
	return refs, nil
}
