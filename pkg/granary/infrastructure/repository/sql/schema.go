// Package sql implements the authoritative relational store: per-record
// conditional upserts that encode the merge policy as an
// `ON CONFLICT ... DO UPDATE ... WHERE` guard, file sub-record access, and
// natural-key parent resolution.
package sql

import (
	"time"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
)

// CollectionEntity is the GORM entity for the collections table.
// Collections are parents only; their catalog is maintained externally.
type CollectionEntity struct {
	CumulusID int64     `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;uniqueIndex:idx_collections_name_version"`
	Version   string    `gorm:"column:version;uniqueIndex:idx_collections_name_version"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
}

// TableName returns the table name for CollectionEntity.
func (CollectionEntity) TableName() string { return "collections" }

// ProviderEntity is the GORM entity for the providers table.
type ProviderEntity struct {
	CumulusID int64     `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	Name      string    `gorm:"column:name;uniqueIndex"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
}

// TableName returns the table name for ProviderEntity.
func (ProviderEntity) TableName() string { return "providers" }

// ExecutionEntity is the GORM entity for the executions table.
// created_at/updated_at carry pipeline times (workflow start, last touch),
// not row times, so GORM's automatic time tracking is disabled.
type ExecutionEntity struct {
	CumulusID           int64         `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	ARN                 string        `gorm:"column:arn;uniqueIndex"`
	Status              string        `gorm:"column:status"`
	ParentCumulusID     *int64        `gorm:"column:parent_cumulus_id"`
	CollectionCumulusID *int64        `gorm:"column:collection_cumulus_id"`
	AsyncOperationID    string        `gorm:"column:async_operation_id"`
	OriginalPayload     model.Payload `gorm:"column:original_payload;type:text"`
	FinalPayload        model.Payload `gorm:"column:final_payload;type:text"`
	Duration            float64       `gorm:"column:duration"`
	Error               *string       `gorm:"column:error;type:text"`
	CreatedAt           time.Time     `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt           time.Time     `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
	Timestamp           time.Time     `gorm:"column:timestamp"`
}

// TableName returns the table name for ExecutionEntity.
func (ExecutionEntity) TableName() string { return "executions" }

// PdrEntity is the GORM entity for the pdrs table.
type PdrEntity struct {
	CumulusID           int64          `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	Name                string         `gorm:"column:name;uniqueIndex"`
	Status              string         `gorm:"column:status"`
	CollectionCumulusID *int64         `gorm:"column:collection_cumulus_id"`
	ProviderCumulusID   *int64         `gorm:"column:provider_cumulus_id"`
	ExecutionCumulusID  *int64         `gorm:"column:execution_cumulus_id"`
	Stats               model.PdrStats `gorm:"column:stats;type:text"`
	Progress            float64        `gorm:"column:progress"`
	PanSent             bool           `gorm:"column:pan_sent"`
	PanMessage          string         `gorm:"column:pan_message"`
	CreatedAt           time.Time      `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt           time.Time      `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
	Timestamp           time.Time      `gorm:"column:timestamp"`
}

// TableName returns the table name for PdrEntity.
func (PdrEntity) TableName() string { return "pdrs" }

// GranuleEntity is the GORM entity for the granules table.
// (granule_id, collection_cumulus_id) is the natural key; cumulus_id is
// the surrogate primary key referenced by file rows.
type GranuleEntity struct {
	CumulusID           int64             `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	GranuleID           string            `gorm:"column:granule_id;uniqueIndex:idx_granules_granule_id_collection"`
	CollectionCumulusID int64             `gorm:"column:collection_cumulus_id;uniqueIndex:idx_granules_granule_id_collection"`
	Status              string            `gorm:"column:status"`
	ExecutionCumulusID  *int64            `gorm:"column:execution_cumulus_id"`
	ProviderCumulusID   *int64            `gorm:"column:provider_cumulus_id"`
	PdrCumulusID        *int64            `gorm:"column:pdr_cumulus_id"`
	Published           bool              `gorm:"column:published"`
	Error               *string           `gorm:"column:error;type:text"`
	Duration            float64           `gorm:"column:duration"`
	ProductVolume       int64             `gorm:"column:product_volume"`
	TimeToArchive       float64           `gorm:"column:time_to_archive"`
	TimeToProcess       float64           `gorm:"column:time_to_process"`
	QueryFields         model.QueryFields `gorm:"column:query_fields;type:text"`
	CreatedAt           time.Time         `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt           time.Time         `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
	Timestamp           time.Time         `gorm:"column:timestamp"`
}

// TableName returns the table name for GranuleEntity.
func (GranuleEntity) TableName() string { return "granules" }

// FileEntity is the GORM entity for the files table. A file row belongs
// to exactly one granule and is addressed by (bucket, key) within it.
type FileEntity struct {
	CumulusID        int64     `gorm:"column:cumulus_id;primaryKey;autoIncrement"`
	GranuleCumulusID int64     `gorm:"column:granule_cumulus_id;uniqueIndex:idx_files_granule_bucket_key"`
	Bucket           string    `gorm:"column:bucket;uniqueIndex:idx_files_granule_bucket_key"`
	Key              string    `gorm:"column:key;uniqueIndex:idx_files_granule_bucket_key"`
	FileName         string    `gorm:"column:file_name"`
	Size             int64     `gorm:"column:size"`
	Checksum         string    `gorm:"column:checksum"`
	ChecksumType     string    `gorm:"column:checksum_type"`
	CreatedAt        time.Time `gorm:"column:created_at;autoCreateTime:false;autoUpdateTime:false"`
	UpdatedAt        time.Time `gorm:"column:updated_at;autoCreateTime:false;autoUpdateTime:false"`
}

// TableName returns the table name for FileEntity.
func (FileEntity) TableName() string { return "files" }

// AllEntities lists every entity, in FK dependency order. Used by the
// test helpers to build schemas with AutoMigrate; production schemas come
// from the migration runner.
func AllEntities() []interface{} {
	return []interface{}{
		&CollectionEntity{},
		&ProviderEntity{},
		&ExecutionEntity{},
		&PdrEntity{},
		&GranuleEntity{},
		&FileEntity{},
	}
}
