package write

import (
	"time"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// millis renders a timestamp as epoch milliseconds, the unit both derived
// stores carry. The zero time renders as 0.
func millis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func recordErrorFields(e *model.RecordError) map[string]interface{} {
	return map[string]interface{}{
		"Error": e.Error,
		"Cause": e.Cause,
	}
}

func fileFields(files []model.File) []map[string]interface{} {
	out := make([]map[string]interface{}, 0, len(files))
	for _, f := range files {
		entry := map[string]interface{}{
			"bucket":   f.Bucket,
			"key":      f.Key,
			"fileName": f.FileName,
			"size":     f.Size,
		}
		if f.Checksum != "" {
			entry["checksum"] = f.Checksum
			entry["checksumType"] = f.ChecksumType
		}
		out = append(out, entry)
	}
	return out
}

// granuleFields is the shared field payload carried by the granule's
// mirror document, index document, and change notification.
func granuleFields(g *model.Granule) map[string]interface{} {
	fields := map[string]interface{}{
		"granuleId":     g.GranuleID,
		"collectionId":  g.Collection.String(),
		"status":        g.Status.String(),
		"published":     g.Published,
		"createdAt":     millis(g.CreatedAt),
		"updatedAt":     millis(g.UpdatedAt),
		"timestamp":     millis(g.Timestamp),
		"duration":      g.Duration,
		"productVolume": g.ProductVolume,
		"timeToArchive": g.TimeToArchive,
		"timeToProcess": g.TimeToProcess,
		"files":         fileFields(g.Files),
	}
	if g.ExecutionARN != "" {
		fields["execution"] = g.ExecutionARN
	}
	if g.ProviderName != "" {
		fields["provider"] = g.ProviderName
	}
	if g.PdrName != "" {
		fields["pdrName"] = g.PdrName
	}
	if g.Error != nil {
		fields["error"] = recordErrorFields(g.Error)
	}
	if len(g.QueryFields) > 0 {
		fields["queryFields"] = map[string]interface{}(g.QueryFields)
	}
	return fields
}

func granuleDocument(g *model.Granule) *ports.Document {
	return &ports.Document{
		ID:           g.Key().String(),
		Kind:         ports.KindGranule,
		CreatedAt:    millis(g.CreatedAt),
		UpdatedAt:    millis(g.UpdatedAt),
		Status:       g.Status.String(),
		ExecutionARN: g.ExecutionARN,
		Published:    g.Published,
		Fields:       granuleFields(g),
	}
}

func granuleIndexDocument(g *model.Granule, cumulusID int64) *ports.IndexDocument {
	fields := granuleFields(g)
	fields["cumulusId"] = cumulusID
	return &ports.IndexDocument{
		ID:     g.Key().String(),
		Kind:   ports.KindGranule,
		Fields: fields,
	}
}

func granuleNotification(g *model.Granule) map[string]interface{} {
	return granuleFields(g)
}

func executionFields(e *model.Execution) map[string]interface{} {
	fields := map[string]interface{}{
		"arn":       e.ARN,
		"status":    e.Status.String(),
		"createdAt": millis(e.CreatedAt),
		"updatedAt": millis(e.UpdatedAt),
		"timestamp": millis(e.Timestamp),
		"duration":  e.Duration,
	}
	if !e.Collection.IsZero() {
		fields["collectionId"] = e.Collection.String()
	}
	if e.ParentARN != "" {
		fields["parentArn"] = e.ParentARN
	}
	if e.AsyncOperationID != "" {
		fields["asyncOperationId"] = e.AsyncOperationID
	}
	if e.OriginalPayload != nil {
		fields["originalPayload"] = map[string]interface{}(e.OriginalPayload)
	}
	if e.FinalPayload != nil {
		fields["finalPayload"] = map[string]interface{}(e.FinalPayload)
	}
	if e.Error != nil {
		fields["error"] = recordErrorFields(e.Error)
	}
	return fields
}

func executionDocument(e *model.Execution) *ports.Document {
	return &ports.Document{
		ID:           e.ARN,
		Kind:         ports.KindExecution,
		CreatedAt:    millis(e.CreatedAt),
		UpdatedAt:    millis(e.UpdatedAt),
		Status:       e.Status.String(),
		ExecutionARN: e.ARN,
		Fields:       executionFields(e),
	}
}

func executionIndexDocument(e *model.Execution, cumulusID int64) *ports.IndexDocument {
	fields := executionFields(e)
	fields["cumulusId"] = cumulusID
	return &ports.IndexDocument{
		ID:     e.ARN,
		Kind:   ports.KindExecution,
		Fields: fields,
	}
}

func executionNotification(e *model.Execution) map[string]interface{} {
	return executionFields(e)
}

func pdrFields(p *model.Pdr) map[string]interface{} {
	fields := map[string]interface{}{
		"pdrName":      p.Name,
		"collectionId": p.Collection.String(),
		"status":       p.Status.String(),
		"createdAt":    millis(p.CreatedAt),
		"updatedAt":    millis(p.UpdatedAt),
		"timestamp":    millis(p.Timestamp),
		"progress":     p.Stats.Progress(),
		"stats": map[string]interface{}{
			"total":      p.Stats.Total,
			"completed":  p.Stats.Completed,
			"failed":     p.Stats.Failed,
			"processing": p.Stats.Processing,
		},
		"panSent": p.PanSent,
	}
	if p.ProviderName != "" {
		fields["provider"] = p.ProviderName
	}
	if p.ExecutionARN != "" {
		fields["execution"] = p.ExecutionARN
	}
	if p.PanMessage != "" {
		fields["panMessage"] = p.PanMessage
	}
	return fields
}

func pdrDocument(p *model.Pdr) *ports.Document {
	return &ports.Document{
		ID:           p.Name,
		Kind:         ports.KindPdr,
		CreatedAt:    millis(p.CreatedAt),
		UpdatedAt:    millis(p.UpdatedAt),
		Status:       p.Status.String(),
		ExecutionARN: p.ExecutionARN,
		Fields:       pdrFields(p),
	}
}

func pdrIndexDocument(p *model.Pdr, cumulusID int64) *ports.IndexDocument {
	fields := pdrFields(p)
	fields["cumulusId"] = cumulusID
	return &ports.IndexDocument{
		ID:     p.Name,
		Kind:   ports.KindPdr,
		Fields: fields,
	}
}

func pdrNotification(p *model.Pdr) map[string]interface{} {
	return pdrFields(p)
}
