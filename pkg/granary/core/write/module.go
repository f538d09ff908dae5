package write

import (
	"go.uber.org/fx"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/domain/repository"
	"github.com/orbitalworks/granary/pkg/granary/core/metrics"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/core/tx"
)

// CoordinatorParams collects the coordinator's collaborators for Fx.
type CoordinatorParams struct {
	fx.In

	TxManager  tx.TransactionManager
	Resolver   repository.ParentResolver
	Granules   repository.GranuleRepository
	Files      repository.FileRepository
	Executions repository.ExecutionRepository
	Pdrs       repository.PdrRepository
	Mirror     ports.DocumentStore
	Index      ports.SearchIndex
	Publisher  ports.NotificationPublisher
	Objects    ports.ObjectStore
	Recorder   metrics.MetricRecorder `optional:"true"`
	Tracer     metrics.Tracer         `optional:"true"`
}

// NewCoordinatorFromParams builds the coordinator from injected collaborators.
func NewCoordinatorFromParams(p CoordinatorParams) *Coordinator {
	return NewCoordinator(
		p.TxManager, p.Resolver,
		p.Granules, p.Files, p.Executions, p.Pdrs,
		p.Mirror, p.Index, p.Publisher, p.Objects,
		p.Recorder, p.Tracer,
	)
}

// DispatcherParams collects the dispatcher's collaborators for Fx.
type DispatcherParams struct {
	fx.In

	Coordinator *Coordinator
	Config      *config.Config
	Recorder    metrics.MetricRecorder `optional:"true"`
}

// NewDispatcherFromConfig sizes the dispatcher's worker pool from the
// configuration.
func NewDispatcherFromConfig(p DispatcherParams) *Dispatcher {
	return NewDispatcher(p.Coordinator, p.Config.Granary.Write.Concurrency, p.Recorder)
}

// Module provides the write coordinator and the batch dispatcher to Fx.
var Module = fx.Options(
	fx.Provide(NewCoordinatorFromParams),
	fx.Provide(NewDispatcherFromConfig),
)
