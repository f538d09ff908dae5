package usecase

import (
	"context"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
)

// GranuleService exposes the synchronous granule operations consumed by
// external controllers (HTTP, CLI). All calls complete before returning;
// there is no deferred result handle.
type GranuleService interface {
	// Create writes a new granule. exception.ConflictError when a record
	// already exists under the same natural key.
	Create(ctx context.Context, g *model.Granule) (*model.Granule, error)

	// Update writes an existing granule. exception.NotFoundError when no
	// record exists under the natural key.
	Update(ctx context.Context, g *model.Granule) (*model.Granule, error)

	// Delete removes the granule from every store.
	// exception.DeletionConflictError when the granule is published.
	Delete(ctx context.Context, key model.GranuleKey) error

	// AssociateExecution points the granule at the given execution without
	// touching any other field.
	AssociateExecution(ctx context.Context, key model.GranuleKey, executionARN string) error
}

// ExecutionService exposes the synchronous execution operations.
type ExecutionService interface {
	Create(ctx context.Context, e *model.Execution) (*model.Execution, error)
	Update(ctx context.Context, e *model.Execution) (*model.Execution, error)
	Delete(ctx context.Context, arn string) error
}

// PdrService exposes the synchronous PDR operations.
type PdrService interface {
	Create(ctx context.Context, p *model.Pdr) (*model.Pdr, error)
	Update(ctx context.Context, p *model.Pdr) (*model.Pdr, error)
	Delete(ctx context.Context, name string) error
}

// IngestService consumes inbound pipeline messages. Unlike the record
// services it tolerates unresolved parents (the queue redelivers) and
// isolates per-record failures within one message.
type IngestService interface {
	// Ingest decodes one raw message body and writes everything it carries.
	Ingest(ctx context.Context, raw map[string]interface{}) error

	// IngestMessage writes an already-decoded message.
	IngestMessage(ctx context.Context, msg *model.WorkflowMessage) error
}
