package usecase

import (
	"context"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/write"
)

// DefaultIngestService implements IngestService over the batch dispatcher.
type DefaultIngestService struct {
	dispatcher *write.Dispatcher
}

var _ IngestService = (*DefaultIngestService)(nil)

// NewDefaultIngestService creates a DefaultIngestService.
func NewDefaultIngestService(dispatcher *write.Dispatcher) *DefaultIngestService {
	return &DefaultIngestService{dispatcher: dispatcher}
}

func (s *DefaultIngestService) Ingest(ctx context.Context, raw map[string]interface{}) error {
	msg, err := model.DecodeWorkflowMessage(raw)
	if err != nil {
		return err
	}
	return s.dispatcher.DispatchMessage(ctx, msg)
}

func (s *DefaultIngestService) IngestMessage(ctx context.Context, msg *model.WorkflowMessage) error {
	return s.dispatcher.DispatchMessage(ctx, msg)
}
