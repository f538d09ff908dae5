package usecase

import (
	"context"

	model "github.com/orbitalworks/granary/pkg/granary/core/domain/model"
	"github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/core/write"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
)

const moduleName = "service"

// DefaultGranuleService implements GranuleService on top of the write
// coordinator. Create and Update differ from the ingest path only in
// their pre-checks: a create must not find an existing row, an update
// must. Unresolved parents are an error here, not a gating condition,
// because a controller-submitted record has no redelivery to wait for.
type DefaultGranuleService struct {
	coordinator *write.Coordinator
	granules    repository.GranuleRepository
}

var _ GranuleService = (*DefaultGranuleService)(nil)

// NewDefaultGranuleService creates a DefaultGranuleService.
func NewDefaultGranuleService(coordinator *write.Coordinator, granules repository.GranuleRepository) *DefaultGranuleService {
	return &DefaultGranuleService{coordinator: coordinator, granules: granules}
}

func (s *DefaultGranuleService) Create(ctx context.Context, g *model.Granule) (*model.Granule, error) {
	exists, err := s.granules.Exists(ctx, g.Key())
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, exception.NewConflictError(ports.KindGranule, g.Key().String())
	}
	return s.submit(ctx, g)
}

func (s *DefaultGranuleService) Update(ctx context.Context, g *model.Granule) (*model.Granule, error) {
	exists, err := s.granules.Exists(ctx, g.Key())
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, exception.NewNotFoundError(ports.KindGranule, g.Key().String())
	}
	return s.submit(ctx, g)
}

func (s *DefaultGranuleService) submit(ctx context.Context, g *model.Granule) (*model.Granule, error) {
	stored, _, err := s.coordinator.WriteGranule(ctx, g)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, exception.NewWriteErrorf(moduleName,
			"granule '%s' not written: referenced parent records are missing", g.Key())
	}
	return stored, nil
}

func (s *DefaultGranuleService) Delete(ctx context.Context, key model.GranuleKey) error {
	return s.coordinator.DeleteGranule(ctx, key)
}

func (s *DefaultGranuleService) AssociateExecution(ctx context.Context, key model.GranuleKey, executionARN string) error {
	return s.coordinator.AssociateExecution(ctx, key, executionARN)
}

// DefaultExecutionService implements ExecutionService.
type DefaultExecutionService struct {
	coordinator *write.Coordinator
	executions  repository.ExecutionRepository
}

var _ ExecutionService = (*DefaultExecutionService)(nil)

// NewDefaultExecutionService creates a DefaultExecutionService.
func NewDefaultExecutionService(coordinator *write.Coordinator, executions repository.ExecutionRepository) *DefaultExecutionService {
	return &DefaultExecutionService{coordinator: coordinator, executions: executions}
}

func (s *DefaultExecutionService) Create(ctx context.Context, e *model.Execution) (*model.Execution, error) {
	exists, err := s.executions.Exists(ctx, e.ARN)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, exception.NewConflictError(ports.KindExecution, e.ARN)
	}
	return s.submit(ctx, e)
}

func (s *DefaultExecutionService) Update(ctx context.Context, e *model.Execution) (*model.Execution, error) {
	exists, err := s.executions.Exists(ctx, e.ARN)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, exception.NewNotFoundError(ports.KindExecution, e.ARN)
	}
	return s.submit(ctx, e)
}

func (s *DefaultExecutionService) submit(ctx context.Context, e *model.Execution) (*model.Execution, error) {
	stored, _, err := s.coordinator.WriteExecution(ctx, e)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, exception.NewWriteErrorf(moduleName,
			"execution '%s' not written: referenced parent records are missing", e.ARN)
	}
	return stored, nil
}

func (s *DefaultExecutionService) Delete(ctx context.Context, arn string) error {
	return s.coordinator.DeleteExecution(ctx, arn)
}

// DefaultPdrService implements PdrService.
type DefaultPdrService struct {
	coordinator *write.Coordinator
	pdrs        repository.PdrRepository
}

var _ PdrService = (*DefaultPdrService)(nil)

// NewDefaultPdrService creates a DefaultPdrService.
func NewDefaultPdrService(coordinator *write.Coordinator, pdrs repository.PdrRepository) *DefaultPdrService {
	return &DefaultPdrService{coordinator: coordinator, pdrs: pdrs}
}

func (s *DefaultPdrService) Create(ctx context.Context, p *model.Pdr) (*model.Pdr, error) {
	exists, err := s.pdrs.Exists(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, exception.NewConflictError(ports.KindPdr, p.Name)
	}
	return s.submit(ctx, p)
}

func (s *DefaultPdrService) Update(ctx context.Context, p *model.Pdr) (*model.Pdr, error) {
	exists, err := s.pdrs.Exists(ctx, p.Name)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, exception.NewNotFoundError(ports.KindPdr, p.Name)
	}
	return s.submit(ctx, p)
}

func (s *DefaultPdrService) submit(ctx context.Context, p *model.Pdr) (*model.Pdr, error) {
	stored, _, err := s.coordinator.WritePdr(ctx, p)
	if err != nil {
		return nil, err
	}
	if stored == nil {
		return nil, exception.NewWriteErrorf(moduleName,
			"pdr '%s' not written: referenced parent records are missing", p.Name)
	}
	return stored, nil
}

func (s *DefaultPdrService) Delete(ctx context.Context, name string) error {
	return s.coordinator.DeletePdr(ctx, name)
}
