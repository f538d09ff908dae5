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

// granuleRunningColumns is the mutable subset while the resulting status
// is running: ordering pivot, audit times, status, and the run identity.
// Everything else, files included, waits for a terminal status.
var granuleRunningColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "execution_cumulus_id",
}

// granuleFullColumns is the column set for queued and terminal writes.
var granuleFullColumns = []string{
	"created_at", "updated_at", "timestamp", "status", "execution_cumulus_id",
	"provider_cumulus_id", "pdr_cumulus_id", "published", "error",
	"duration", "product_volume", "time_to_archive", "time_to_process",
	"query_fields",
}

// SQLGranuleRepository implements repository.GranuleRepository over GORM.
type SQLGranuleRepository struct {
	conn *gormadapter.Connection
}

// NewSQLGranuleRepository creates a new SQLGranuleRepository.
func NewSQLGranuleRepository(conn *gormadapter.Connection) repository.GranuleRepository {
	return &SQLGranuleRepository{conn: conn}
}

// Get returns the stored granule (files included) and its surrogate id.
func (r *SQLGranuleRepository) Get(ctx context.Context, key model.GranuleKey) (*model.Granule, int64, error) {
	db := r.conn.Executor(ctx)

	collectionID, err := resolveCollectionID(db, key.Collection)
	if err != nil {
		return nil, 0, err
	}

	var entity GranuleEntity
	err = db.Where("granule_id = ? AND collection_cumulus_id = ?", key.GranuleID, collectionID).
		Take(&entity).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, 0, exception.NewNotFoundError("granule", key.String())
	}
	if err != nil {
		return nil, 0, exception.NewWriteError("sql", fmt.Sprintf("failed to load granule '%s'", key), err)
	}

	g, err := r.hydrate(db, &entity, key.Collection)
	if err != nil {
		return nil, 0, err
	}
	return g, entity.CumulusID, nil
}

// Exists reports whether a row exists for the key. A missing collection
// means the granule cannot exist either.
func (r *SQLGranuleRepository) Exists(ctx context.Context, key model.GranuleKey) (bool, error) {
	db := r.conn.Executor(ctx)

	collectionID, err := resolveCollectionID(db, key.Collection)
	if err != nil {
		if exception.IsUnresolvedParent(err) {
			return false, nil
		}
		return false, err
	}

	var count int64
	err = db.Model(&GranuleEntity{}).
		Where("granule_id = ? AND collection_cumulus_id = ?", key.GranuleID, collectionID).
		Count(&count).Error
	if err != nil {
		return false, exception.NewWriteError("sql", fmt.Sprintf("failed to check granule '%s'", key), err)
	}
	return count > 0, nil
}

// Upsert performs the conditional write. The merge policy's rules 2-6 are
// encoded in the DO UPDATE guard, evaluated atomically against the current
// row; when the guard fails the statement affects zero rows and the
// pre-existing row is returned unchanged.
func (r *SQLGranuleRepository) Upsert(ctx context.Context, g *model.Granule, refs repository.ParentRefs) (*model.Granule, int64, bool, error) {
	db := r.conn.Executor(ctx)
	entity := fromDomainGranule(g, refs)

	updateColumns := granuleFullColumns
	if policy.RestrictedUpdate(g.Status) {
		updateColumns = granuleRunningColumns
	}

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "granule_id"}, {Name: "collection_cumulus_id"}},
		DoUpdates: clause.AssignmentColumns(updateColumns),
		Where:     clause.Where{Exprs: granuleGuardExprs(g, refs)},
	}).Create(entity)
	if res.Error != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to upsert granule '%s'", g.Key()), res.Error)
	}
	applied := res.RowsAffected > 0
	if !applied {
		logger.Infof("Granule '%s': conditional write discarded as stale.", g.Key())
	}

	var stored GranuleEntity
	err := db.Where("granule_id = ? AND collection_cumulus_id = ?", entity.GranuleID, entity.CollectionCumulusID).
		Take(&stored).Error
	if err != nil {
		return nil, 0, false, exception.NewWriteError("sql", fmt.Sprintf("failed to reload granule '%s' after upsert", g.Key()), err)
	}

	domain, err := r.hydrate(db, &stored, g.Collection)
	if err != nil {
		return nil, 0, false, err
	}
	return domain, stored.CumulusID, applied, nil
}

// AssociateExecution points the granule at the given execution without
// touching any other field.
func (r *SQLGranuleRepository) AssociateExecution(ctx context.Context, key model.GranuleKey, executionID int64) error {
	db := r.conn.Executor(ctx)

	collectionID, err := resolveCollectionID(db, key.Collection)
	if err != nil {
		return err
	}

	res := db.Model(&GranuleEntity{}).
		Where("granule_id = ? AND collection_cumulus_id = ?", key.GranuleID, collectionID).
		Update("execution_cumulus_id", executionID)
	if res.Error != nil {
		return exception.NewWriteError("sql", fmt.Sprintf("failed to associate execution with granule '%s'", key), res.Error)
	}
	if res.RowsAffected == 0 {
		return exception.NewNotFoundError("granule", key.String())
	}
	return nil
}

// Delete removes the granule row and its file rows.
func (r *SQLGranuleRepository) Delete(ctx context.Context, cumulusID int64) error {
	db := r.conn.Executor(ctx)

	if err := db.Where("granule_cumulus_id = ?", cumulusID).Delete(&FileEntity{}).Error; err != nil {
		return exception.NewWriteError("sql", fmt.Sprintf("failed to delete files of granule %d", cumulusID), err)
	}
	if err := db.Where("cumulus_id = ?", cumulusID).Delete(&GranuleEntity{}).Error; err != nil {
		return exception.NewWriteError("sql", fmt.Sprintf("failed to delete granule %d", cumulusID), err)
	}
	return nil
}

// hydrate joins the surrogate parent ids back to natural keys and loads
// the file sub-records.
func (r *SQLGranuleRepository) hydrate(db *gorm.DB, e *GranuleEntity, collection model.CollectionKey) (*model.Granule, error) {
	executionARN := ""
	if e.ExecutionCumulusID != nil {
		var exec ExecutionEntity
		if err := db.Where("cumulus_id = ?", *e.ExecutionCumulusID).Take(&exec).Error; err == nil {
			executionARN = exec.ARN
		}
	}
	providerName := ""
	if e.ProviderCumulusID != nil {
		var prov ProviderEntity
		if err := db.Where("cumulus_id = ?", *e.ProviderCumulusID).Take(&prov).Error; err == nil {
			providerName = prov.Name
		}
	}
	pdrName := ""
	if e.PdrCumulusID != nil {
		var pdr PdrEntity
		if err := db.Where("cumulus_id = ?", *e.PdrCumulusID).Take(&pdr).Error; err == nil {
			pdrName = pdr.Name
		}
	}

	g := toDomainGranule(e, collection, executionARN, providerName, pdrName)

	var fileEntities []FileEntity
	if err := db.Where("granule_cumulus_id = ?", e.CumulusID).Order("bucket, key").Find(&fileEntities).Error; err != nil {
		return nil, exception.NewWriteError("sql", fmt.Sprintf("failed to load files of granule %d", e.CumulusID), err)
	}
	for i := range fileEntities {
		g.Files = append(g.Files, toDomainFile(&fileEntities[i]))
	}
	return g, nil
}

// granuleGuardExprs translates the merge policy's discard rules into the
// DO UPDATE guard. The execution comparison is null-safe: an absent
// incoming reference only matches a row whose execution is also absent.
func granuleGuardExprs(g *model.Granule, refs repository.ParentRefs) []clause.Expression {
	exprs := []clause.Expression{
		// Rule 2: a write from an older run never supersedes.
		clause.Expr{SQL: "granules.created_at <= ?", Vars: []interface{}{g.CreatedAt}},
	}

	switch g.Status {
	case model.StatusRunning:
		// Rule 3: running over a terminal record applies only for a
		// different execution.
		if refs.ExecutionID != nil {
			exprs = append(exprs, clause.Expr{
				SQL:  "NOT (granules.status IN ('completed','failed') AND COALESCE(granules.execution_cumulus_id = ?, FALSE))",
				Vars: []interface{}{*refs.ExecutionID},
			})
		} else {
			exprs = append(exprs, clause.Expr{
				SQL: "NOT (granules.status IN ('completed','failed') AND granules.execution_cumulus_id IS NULL)",
			})
		}
	case model.StatusQueued:
		// Rule 5: a re-queue naming the recorded execution is redundant.
		if refs.ExecutionID != nil {
			exprs = append(exprs, clause.Expr{
				SQL:  "NOT COALESCE(granules.execution_cumulus_id = ?, FALSE)",
				Vars: []interface{}{*refs.ExecutionID},
			})
		} else {
			exprs = append(exprs, clause.Expr{
				SQL: "granules.execution_cumulus_id IS NOT NULL",
			})
		}
	}

	return exprs
}

var _ repository.GranuleRepository = (*SQLGranuleRepository)(nil)
