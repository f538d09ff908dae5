// Package repository defines the authoritative relational store's
// interfaces: per-record upserts guarded by the merge policy, file
// sub-record access, and natural-key parent resolution. The SQL
// implementation lives under infrastructure/repository/sql.
package repository

import (
	"context"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
)

// ParentRefs carries the surrogate ids of a record's resolved parents.
// Nil pointers mean the reference is absent on the record (not
// unresolved: unresolved required parents surface as
// exception.UnresolvedParentError during resolution).
type ParentRefs struct {
	CollectionID *int64
	ProviderID   *int64
	ExecutionID  *int64
	PdrID        *int64
	// ParentExecutionID is the surrogate id of an execution's parent run.
	ParentExecutionID *int64
}

// ParentResolver resolves parent records by natural key. A missing parent
// yields exception.UnresolvedParentError, which the coordinator turns
// into referential gating rather than a failure.
type ParentResolver interface {
	ResolveCollection(ctx context.Context, key model.CollectionKey) (int64, error)
	ResolveProvider(ctx context.Context, name string) (int64, error)
	ResolveExecution(ctx context.Context, arn string) (int64, error)
	ResolvePdr(ctx context.Context, name string) (int64, error)
}

// GranuleRepository is the authoritative store of granule records.
//
// Upsert implements the merge policy as a conditional write evaluated
// atomically against the current row: when the guard fails the write is a
// no-op, applied is false, and the pre-existing row is returned unchanged.
type GranuleRepository interface {
	// Get returns the stored granule and its surrogate id.
	// exception.NotFoundError when no row exists.
	Get(ctx context.Context, key model.GranuleKey) (*model.Granule, int64, error)
	// Exists reports whether a row exists for the key.
	Exists(ctx context.Context, key model.GranuleKey) (bool, error)
	// Upsert conditionally writes the granule and returns the stored row,
	// its surrogate id, and whether the incoming record was applied.
	Upsert(ctx context.Context, g *model.Granule, refs ParentRefs) (stored *model.Granule, cumulusID int64, applied bool, err error)
	// AssociateExecution points the granule at the given execution without
	// touching any other field.
	AssociateExecution(ctx context.Context, key model.GranuleKey, executionID int64) error
	// Delete removes the granule row and its file rows.
	Delete(ctx context.Context, cumulusID int64) error
}

// FileRepository accesses granule file sub-records. Files are owned by
// exactly one granule and addressed by (bucket, key) within it.
type FileRepository interface {
	// UpsertFile writes one file row and returns its surrogate id.
	UpsertFile(ctx context.Context, granuleCumulusID int64, f model.File) (int64, error)
	// DeleteFilesExcept prunes every file row of the granule whose
	// surrogate id is not in keep.
	DeleteFilesExcept(ctx context.Context, granuleCumulusID int64, keep []int64) error
	// ListFiles returns the granule's current file rows.
	ListFiles(ctx context.Context, granuleCumulusID int64) ([]model.File, error)
}

// ExecutionRepository is the authoritative store of execution records.
type ExecutionRepository interface {
	Get(ctx context.Context, arn string) (*model.Execution, int64, error)
	Exists(ctx context.Context, arn string) (bool, error)
	Upsert(ctx context.Context, e *model.Execution, refs ParentRefs) (stored *model.Execution, cumulusID int64, applied bool, err error)
	Delete(ctx context.Context, cumulusID int64) error
}

// PdrRepository is the authoritative store of PDR records.
type PdrRepository interface {
	Get(ctx context.Context, name string) (*model.Pdr, int64, error)
	Exists(ctx context.Context, name string) (bool, error)
	Upsert(ctx context.Context, p *model.Pdr, refs ParentRefs) (stored *model.Pdr, cumulusID int64, applied bool, err error)
	Delete(ctx context.Context, cumulusID int64) error
}
