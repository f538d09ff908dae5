package sql

import (
	"encoding/json"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	repository "github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
)

// marshalRecordError serializes a structured record error to its JSON
// column form; nil errors map to a NULL column.
func marshalRecordError(e *model.RecordError) *string {
	if e == nil {
		return nil
	}
	data, err := json.Marshal(e)
	if err != nil {
		return nil
	}
	s := string(data)
	return &s
}

// unmarshalRecordError deserializes the JSON error column; NULL or
// malformed columns map to nil.
func unmarshalRecordError(s *string) *model.RecordError {
	if s == nil || *s == "" {
		return nil
	}
	var e model.RecordError
	if err := json.Unmarshal([]byte(*s), &e); err != nil {
		return nil
	}
	return &e
}

// fromDomainGranule builds the row for a granule write. The collection id
// is required (resolved before the writer runs); the remaining parent ids
// stay NULL when the record carries no reference.
func fromDomainGranule(g *model.Granule, refs repository.ParentRefs) *GranuleEntity {
	entity := &GranuleEntity{
		GranuleID:          g.GranuleID,
		Status:             g.Status.String(),
		ExecutionCumulusID: refs.ExecutionID,
		ProviderCumulusID:  refs.ProviderID,
		PdrCumulusID:       refs.PdrID,
		Published:          g.Published,
		Error:              marshalRecordError(g.Error),
		Duration:           g.Duration,
		ProductVolume:      g.ProductVolume,
		TimeToArchive:      g.TimeToArchive,
		TimeToProcess:      g.TimeToProcess,
		QueryFields:        g.QueryFields,
		CreatedAt:          g.CreatedAt,
		UpdatedAt:          g.UpdatedAt,
		Timestamp:          g.Timestamp,
	}
	if refs.CollectionID != nil {
		entity.CollectionCumulusID = *refs.CollectionID
	}
	return entity
}

// toDomainGranule converts a stored row back to the domain record. The
// execution ARN and collection key are natural-key fields the row only
// holds surrogate ids for; the repository joins them back in.
func toDomainGranule(e *GranuleEntity, collection model.CollectionKey, executionARN, providerName, pdrName string) *model.Granule {
	return &model.Granule{
		GranuleID:     e.GranuleID,
		Collection:    collection,
		Status:        model.Status(e.Status),
		ExecutionARN:  executionARN,
		ProviderName:  providerName,
		PdrName:       pdrName,
		Published:     e.Published,
		Error:         unmarshalRecordError(e.Error),
		Duration:      e.Duration,
		ProductVolume: e.ProductVolume,
		TimeToArchive: e.TimeToArchive,
		TimeToProcess: e.TimeToProcess,
		QueryFields:   e.QueryFields,
		CreatedAt:     e.CreatedAt,
		UpdatedAt:     e.UpdatedAt,
		Timestamp:     e.Timestamp,
	}
}

// fromDomainExecution builds the row for an execution write.
func fromDomainExecution(ex *model.Execution, refs repository.ParentRefs) *ExecutionEntity {
	return &ExecutionEntity{
		ARN:                 ex.ARN,
		Status:              ex.Status.String(),
		ParentCumulusID:     refs.ParentExecutionID,
		CollectionCumulusID: refs.CollectionID,
		AsyncOperationID:    ex.AsyncOperationID,
		OriginalPayload:     ex.OriginalPayload,
		FinalPayload:        ex.FinalPayload,
		Duration:            ex.Duration,
		Error:               marshalRecordError(ex.Error),
		CreatedAt:           ex.CreatedAt,
		UpdatedAt:           ex.UpdatedAt,
		Timestamp:           ex.Timestamp,
	}
}

// toDomainExecution converts a stored row back to the domain record.
func toDomainExecution(e *ExecutionEntity, collection model.CollectionKey, parentARN string) *model.Execution {
	return &model.Execution{
		ARN:              e.ARN,
		Status:           model.Status(e.Status),
		ParentARN:        parentARN,
		Collection:       collection,
		AsyncOperationID: e.AsyncOperationID,
		OriginalPayload:  e.OriginalPayload,
		FinalPayload:     e.FinalPayload,
		Duration:         e.Duration,
		Error:            unmarshalRecordError(e.Error),
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Timestamp:        e.Timestamp,
	}
}

// fromDomainPdr builds the row for a PDR write.
func fromDomainPdr(p *model.Pdr, refs repository.ParentRefs) *PdrEntity {
	return &PdrEntity{
		Name:                p.Name,
		Status:              p.Status.String(),
		CollectionCumulusID: refs.CollectionID,
		ProviderCumulusID:   refs.ProviderID,
		ExecutionCumulusID:  refs.ExecutionID,
		Stats:               p.Stats,
		Progress:            p.Stats.Progress(),
		PanSent:             p.PanSent,
		PanMessage:          p.PanMessage,
		CreatedAt:           p.CreatedAt,
		UpdatedAt:           p.UpdatedAt,
		Timestamp:           p.Timestamp,
	}
}

// toDomainPdr converts a stored row back to the domain record.
func toDomainPdr(e *PdrEntity, collection model.CollectionKey, providerName, executionARN string) *model.Pdr {
	return &model.Pdr{
		Name:         e.Name,
		Status:       model.Status(e.Status),
		Collection:   collection,
		ProviderName: providerName,
		ExecutionARN: executionARN,
		Stats:        e.Stats,
		PanSent:      e.PanSent,
		PanMessage:   e.PanMessage,
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
		Timestamp:    e.Timestamp,
	}
}

// fromDomainFile builds the row for one file sub-record.
func fromDomainFile(granuleCumulusID int64, f model.File) *FileEntity {
	return &FileEntity{
		GranuleCumulusID: granuleCumulusID,
		Bucket:           f.Bucket,
		Key:              f.Key,
		FileName:         f.FileName,
		Size:             f.Size,
		Checksum:         f.Checksum,
		ChecksumType:     f.ChecksumType,
	}
}

// toDomainFile converts a stored file row back to the domain sub-record.
func toDomainFile(e *FileEntity) model.File {
	return model.File{
		Bucket:       e.Bucket,
		Key:          e.Key,
		FileName:     e.FileName,
		Size:         e.Size,
		Checksum:     e.Checksum,
		ChecksumType: e.ChecksumType,
	}
}
