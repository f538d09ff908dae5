package usecase

import "go.uber.org/fx"

// Module provides the record and ingest services to Fx, bound to their
// interfaces.
var Module = fx.Options(
	fx.Provide(fx.Annotate(
		NewDefaultGranuleService,
		fx.As(new(GranuleService)),
	)),
	fx.Provide(fx.Annotate(
		NewDefaultExecutionService,
		fx.As(new(ExecutionService)),
	)),
	fx.Provide(fx.Annotate(
		NewDefaultPdrService,
		fx.As(new(PdrService)),
	)),
	fx.Provide(fx.Annotate(
		NewDefaultIngestService,
		fx.As(new(IngestService)),
	)),
)
