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

var pdrRunningColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "stats", "progress",
}

var pdrFullColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "collection_cumulus_id",
	"provider_cumulus_id", "execution_cumulus_id", "stats", "progress",
	"pan_sent", "pan_message",
}

// SQLPdrRepository implements repository.PdrRepository over GORM.
type SQLPdrRepository struct {
	conn *gormadapter.Connection
}

// NewSQLPdrRepository creates a new SQLPdrRepository.
func NewSQLPdrRepository(conn *gormadapter.Connection) repository.PdrRepository {
	return &SQLPdrRepository{conn: conn}
}

// Get returns the stored PDR and its surrogate id.
func (r *SQLPdrRepository) Get(ctx context.Context, name string) (*model.Pdr, int64, error) {
	db := r.conn.Executor(ctx)

	var entity PdrEntity
	err := db.Where("name = ?", name).Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, exception.NewNotFoundError("pdr", name)
	}
	if err != nil {
		return nil, 0, exception.NewWriteError("sql", fmt.Sprintf("failed to load pdr '%s'", name), err)
	}
	return r.hydrate(db, &entity), entity.CumulusID, nil
}

// Exists reports whether a row exists for the name.
func (r *SQLPdrRepository) Exists(ctx context.Context, name string) (bool, error) {
	var count int64
	err := r.conn.Executor(ctx).Model(&PdrEntity{}).Where("name = ?", name).Count(&count).Error
	if err != nil {
		return false, exception.NewWriteError("sql", fmt.Sprintf("failed to check pdr '%s'", name), err)
	}
	return count > 0, nil
}

// Upsert performs the conditional write, with the same guard shape as
// executions: ordering plus no-regression-from-terminal.
func (r *SQLPdrRepository) Upsert(ctx context.Context, p *model.Pdr, refs repository.ParentRefs) (*model.Pdr, int64, bool, error) {
	db := r.conn.Executor(ctx)
	entity := fromDomainPdr(p, refs)

	updateColumns := pdrFullColumns
	if policy.RestrictedUpdate(p.Status) {
		updateColumns = pdrRunningColumns
	}

	exprs := []clause.Expression{
		clause.Expr{SQL: "pdrs.created_at <= ?", Vars: []interface{}{p.CreatedAt}},
	}
	if p.Status == model.StatusRunning {
		exprs = append(exprs, clause.Expr{SQL: "pdrs.status NOT IN ('completed','failed')"})
	}

	res := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
		Where:     clause.Where{Exprs: exprs},
	}).Create(entity)
	if res.Error != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to upsert pdr '%s'", p.Name), res.Error)
	}
	applied := res.RowsAffected > 0
	if !applied {
		logger.Infof("PDR '%s': conditional write discarded as stale.", p.Name)
	}

	var stored PdrEntity
	if err := db.Where("name = ?", p.Name).Take(&stored).Error; err != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to reload pdr '%s' after upsert", p.Name), err)
	}
	return r.hydrate(db, &stored), stored.CumulusID, applied, nil
}

// Delete removes the PDR row.
func (r *SQLPdrRepository) Delete(ctx context.Context, cumulusID int64) error {
	err := r.conn.Executor(ctx).Where("cumulus_id = ?", cumulusID).Delete(&PdrEntity{}).Error
	if err != nil {
		return exception.NewWriteError("sql", fmt.Sprintf("failed to delete pdr %d", cumulusID), err)
	}
	return nil
}

// hydrate joins the surrogate parent ids back to natural keys.
func (r *SQLPdrRepository) hydrate(db *gorm.DB, e *PdrEntity) *model.Pdr {
	collection := model.CollectionKey{}
	if e.CollectionCumulusID != nil {
		var coll CollectionEntity
		if err := db.Where("cumulus_id = ?", *e.CollectionCumulusID).Take(&coll).Error; err == nil {
			collection = model.CollectionKey{Name: coll.Name, Version: coll.Version}
		}
	}
	providerName := ""
	if e.ProviderCumulusID != nil {
		var prov ProviderEntity
		if err := db.Where("cumulus_id = ?", *e.ProviderCumulusID).Take(&prov).Error; err == nil {
			providerName = prov.Name
		}
	}
	executionARN := ""
	if e.ExecutionCumulusID != nil {
		var exec ExecutionEntity
		if err := db.Where("cumulus_id = ?", *e.ExecutionCumulusID).Take(&exec).Error; err == nil {
			executionARN = exec.ARN
		}
	}
	return toDomainPdr(e, collection, providerName, executionARN)
}

var _ repository.PdrRepository = (*SQLPdrRepository)(nil)
