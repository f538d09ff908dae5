package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	repository "github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

// resolveCollectionID looks a collection up by natural key.
func resolveCollectionID(db *gorm.DB, key model.CollectionKey) (int64, error) {
	var entity CollectionEntity
	err := db.Where("name = ? AND version = ?", key.Name, key.Version).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, exception.NewUnresolvedParentError("collection", key.String())
	}
	if err != nil {
		return 0, exception.NewWriteError("sql", fmt.Sprintf("failed to resolve collection '%s'", key), err)
	}
	return entity.CumulusID, nil
}

// SQLParentResolver implements repository.ParentResolver with natural-key
// lookups against the relational store.
type SQLParentResolver struct {
	conn *gormadapter.Connection
}

// NewSQLParentResolver creates a new SQLParentResolver.
func NewSQLParentResolver(conn *gormadapter.Connection) repository.ParentResolver {
	return &SQLParentResolver{conn: conn}
}

// ResolveCollection resolves a collection's surrogate id by (name, version).
func (r *SQLParentResolver) ResolveCollection(ctx context.Context, key model.CollectionKey) (int64, error) {
	return resolveCollectionID(r.conn.Executor(ctx), key)
}

// ResolveProvider resolves a provider's surrogate id by name.
func (r *SQLParentResolver) ResolveProvider(ctx context.Context, name string) (int64, error) {
	var entity ProviderEntity
	err := r.conn.Executor(ctx).Where("name = ?", name).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, exception.NewUnresolvedParentError("provider", name)
	}
	if err != nil {
		return 0, exception.NewWriteError("sql", fmt.Sprintf("failed to resolve provider '%s'", name), err)
	}
	return entity.CumulusID, nil
}

// ResolveExecution resolves an execution's surrogate id by ARN.
func (r *SQLParentResolver) ResolveExecution(ctx context.Context, arn string) (int64, error) {
	var entity ExecutionEntity
	err := r.conn.Executor(ctx).Where("arn = ?", arn).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, exception.NewUnresolvedParentError("execution", arn)
	}
	if err != nil {
		return 0, exception.NewWriteError("sql", fmt.Sprintf("failed to resolve execution '%s'", arn), err)
	}
	return entity.CumulusID, nil
}

// ResolvePdr resolves a PDR's surrogate id by name.
func (r *SQLParentResolver) ResolvePdr(ctx context.Context, name string) (int64, error) {
	var entity PdrEntity
	err := r.conn.Executor(ctx).Where("name = ?", name).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, exception.NewUnresolvedParentError("pdr", name)
	}
	if err != nil {
		return 0, exception.NewWriteError("sql", fmt.Sprintf("failed to resolve pdr '%s'", name), err)
	}
	return entity.CumulusID, nil
}

var _ repository.ParentResolver = (*SQLParentResolver)(nil)
