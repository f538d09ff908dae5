package docstore

import (
	"context"

	"go.uber.org/fx"
	"gocloud.dev/docstore"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// NewMirrorFromConfig opens the per-kind document collections named in the
// configuration. Driver availability is decided by the URL schemes the
// binary imports (awsdynamodb, memdocstore, ...).
func NewMirrorFromConfig(lc fx.Lifecycle, cfg *config.Config) (ports.DocumentStore, error) {
	ctx := context.Background()

	granules, err := docstore.OpenCollection(ctx, cfg.Granary.DocumentStore.GranulesURL)
	if err != nil {
		return nil, err
	}
	executions, err := docstore.OpenCollection(ctx, cfg.Granary.DocumentStore.ExecutionsURL)
	if err != nil {
		return nil, err
	}
	pdrs, err := docstore.OpenCollection(ctx, cfg.Granary.DocumentStore.PdrsURL)
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
	return NewMirror(granules, executions, pdrs), nil
}

// Module provides the document-store mirror to Fx.
var Module = fx.Options(
	fx.Provide(NewMirrorFromConfig),
)
