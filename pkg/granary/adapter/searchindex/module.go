package searchindex

import (
	"context"

	"go.uber.org/fx"
	"gocloud.dev/docstore"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// NewProjectorFromConfig opens the per-kind index collections named in
// the configuration.
func NewProjectorFromConfig(lc fx.Lifecycle, cfg *config.Config) (ports.SearchIndex, error) {
	ctx := context.Background()

	granules, err := docstore.OpenCollection(ctx, cfg.Granary.SearchIndex.GranulesURL)
	if err != nil {
		return nil, err
	}
	executions, err := docstore.OpenCollection(ctx, cfg.Granary.SearchIndex.ExecutionsURL)
	if err != nil {
		return nil, err
	}
	pdrs, err := docstore.OpenCollection(ctx, cfg.Granary.SearchIndex.PdrsURL)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = granules.Close()
			_ = executions.Close()
			return pdrs.Close()
		},
	})
	return NewProjector(granules, executions, pdrs), nil
}

// Module provides the search-index projector to Fx.
var Module = fx.Options(
	fx.Provide(NewProjectorFromConfig),
)
