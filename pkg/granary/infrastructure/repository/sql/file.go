package sql

import (
	"context"
	"fmt"

	"gorm.io/gorm/clause"

	gormadapter "github.com/orbitalworks/granary/pkg/granary/adapter/database/gorm"
	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	repository "github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

// SQLFileRepository implements repository.FileRepository over GORM.
type SQLFileRepository struct {
	conn *gormadapter.Connection
}

// NewSQLFileRepository creates a new SQLFileRepository.
func NewSQLFileRepository(conn *gormadapter.Connection) repository.FileRepository {
	return &SQLFileRepository{conn: conn}
}

// UpsertFile writes one file row, keyed by (bucket, key) within the
// granule, and returns its surrogate id.
func (r *SQLFileRepository) UpsertFile(ctx context.Context, granuleCumulusID int64, f model.File) (int64, error) {
	db := r.conn.Executor(ctx)
	entity := fromDomainFile(granuleCumulusID, f)

	res := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "granule_cumulus_id"}, {Name: "bucket"}, {Name: "key"},
		},
		DoUpdates: clause.AssignmentColumns([]string{"file_name", "size", "checksum", "checksum_type", "updated_at"}),
	}).Create(entity)
	if res.Error != nil {
		return 0, exception.NewWriteError("sql",
			fmt.Sprintf("failed to upsert file s3://%s/%s for granule %d", f.Bucket, f.Key, granuleCumulusID), res.Error)
	}

	// The conflict path does not backfill the primary key; reload it.
	var stored FileEntity
	err := db.Where("granule_cumulus_id = ? AND bucket = ? AND key = ?", granuleCumulusID, f.Bucket, f.Key).
		Take(&stored).Error
	if err != nil {
		return 0, exception.NewWriteError("sql",
			fmt.Sprintf("failed to reload file s3://%s/%s for granule %d", f.Bucket, f.Key, granuleCumulusID), err)
	}
	return stored.CumulusID, nil
}

// DeleteFilesExcept prunes every file row of the granule not named in
// keep. An empty keep set removes all of the granule's files.
func (r *SQLFileRepository) DeleteFilesExcept(ctx context.Context, granuleCumulusID int64, keep []int64) error {
	db := r.conn.Executor(ctx).Where("granule_cumulus_id = ?", granuleCumulusID)
	if len(keep) > 0 {
		db = db.Where("cumulus_id NOT IN ?", keep)
	}
	if err := db.Delete(&FileEntity{}).Error; err != nil {
		return exception.NewWriteError("sql",
			fmt.Sprintf("failed to prune files of granule %d", granuleCumulusID), err)
	}
	return nil
}

// ListFiles returns the granule's current file rows.
func (r *SQLFileRepository) ListFiles(ctx context.Context, granuleCumulusID int64) ([]model.File, error) {
	var entities []FileEntity
	err := r.conn.Executor(ctx).
		Where("granule_cumulus_id = ?", granuleCumulusID).
		Order("bucket, key").
		Find(&entities).Error
	if err != nil {
		return nil, exception.NewWriteError("sql",
			fmt.Sprintf("failed to list files of granule %d", granuleCumulusID), err)
	}

	files := make([]model.File, 0, len(entities))
	for i := range entities {
		files = append(files, toDomainFile(&entities[i]))
	}
	return files, nil
}

var _ repository.FileRepository = (*SQLFileRepository)(nil)
