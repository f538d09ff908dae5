package sql

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	repository "github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/core/policy"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// executionRunningColumns is the mutable subset for a running write: an
// execution's own ARN is the run, so the identity never changes, but the
// in-flight payload may be re-reported.
var executionRunningColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "original_payload",
}

// executionFullColumns is the column set for queued and terminal writes.
var executionFullColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "parent_cumulus_id",
	"collection_cumulus_id", "async_operation_id", "original_payload",
	"final_payload", "duration", "error",
}

// SQLExecutionRepository implements repository.ExecutionRepository over GORM.
type SQLExecutionRepository struct {
	conn *gormadapter.Connection
}

// NewSQLExecutionRepository creates a new SQLExecutionRepository.
func NewSQLExecutionRepository(conn *gormadapter.Connection) repository.ExecutionRepository {
	return &SQLExecutionRepository{conn: conn}
}

// Get returns the stored execution and its surrogate id.
func (r *SQLExecutionRepository) Get(ctx context.Context, arn string) (*model.Execution, int64, error) {
	db := r.conn.Executor(ctx)

	var entity ExecutionEntity
	err := db.Where("arn = ?", arn).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, exception.NewNotFoundError("execution", arn)
	}
	if err != nil {
		return nil, 0, exception.NewWriteError("sql", fmt.Sprintf("failed to load execution '%s'", arn), err)
	}

	return r.hydrate(db, &entity), entity.CumulusID, nil
}

// Exists reports whether a row exists for the ARN.
func (r *SQLExecutionRepository) Exists(ctx context.Context, arn string) (bool, error) {
	var count int64
	err := r.conn.Executor(ctx).Model(&ExecutionEntity{}).Where("arn = ?", arn).Count(&count).Error
	if err != nil {
		return false, exception.NewWriteError("sql", fmt.Sprintf("failed to check execution '%s'", arn), err)
	}
	return count > 0, nil
}

// Upsert performs the conditional write. An execution's ARN names the run
// itself, so the guard reduces to the ordering rule plus
// no-regression-from-terminal: a finished run never goes back to running.
func (r *SQLExecutionRepository) Upsert(ctx context.Context, ex *model.Execution, refs repository.ParentRefs) (*model.Execution, int64, bool, error) {
	db := r.conn.Executor(ctx)
	entity := fromDomainExecution(ex, refs)

	updateColumns := executionFullColumns
	if policy.RestrictedUpdate(ex.Status) {
		updateColumns = executionRunningColumns
	}

	exprs := []clause.Expression{
		clause.Expr{SQL: "executions.created_at <= ?", Vars: []interface{}{ex.CreatedAt}},
	}
	if ex.Status == model.StatusRunning {
		exprs = append(exprs, clause.Expr{SQL: "executions.status NOT IN ('completed','failed')"})
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "arn"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
		Where:     clause.Where{Exprs: exprs},
	}).Create(entity)
	if res.Error != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to upsert execution '%s'", ex.ARN), res.Error)
	}
	applied := res.RowsAffected > 0
	if !applied {
		logger.Infof("Execution '%s': conditional write discarded as stale.", ex.ARN)
	}

	var stored ExecutionEntity
	if err := db.Where("arn = ?", ex.ARN).Take(&stored).Error; err != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to reload execution '%s' after upsert", ex.ARN), err)
	}
	return r.hydrate(db, &stored), stored.CumulusID, applied, nil
}

// Delete removes the execution row.
func (r *SQLExecutionRepository) Delete(ctx context.Context, cumulusID int64) error {
	err := r.conn.Executor(ctx).Where("cumulus_id = ?", cumulusID).Delete(&ExecutionEntity{}).Error
	if err != nil {
		return exception.NewWriteError("sql", fmt.Sprintf("failed to delete execution %d", cumulusID), err)
	}
	return nil
}

// hydrate joins the surrogate parent ids back to natural keys.
func (r *SQLExecutionRepository) hydrate(db *gorm.DB, e *ExecutionEntity) *model.Execution {
	collection := model.CollectionKey{}
	if e.CollectionCumulusID != nil {
		var coll CollectionEntity
		if err := db.Where("cumulus_id = ?", *e.CollectionCumulusID).Take(&coll).Error; err == nil {
			collection = model.CollectionKey{Name: coll.Name, Version: coll.Version}
		}
	}
	parentARN := ""
	if e.ParentCumulusID != nil {
		var parent ExecutionEntity
		if err := db.Where("cumulus_id = ?", *e.ParentCumulusID).Take(&parent).Error; err == nil {
			parentARN = parent.ARN
		}
	}
	return toDomainExecution(e, collection, parentARN)
}

var _ repository.ExecutionRepository = (*SQLExecutionRepository)(nil)
