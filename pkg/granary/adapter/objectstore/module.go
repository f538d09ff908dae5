package objectstore

import (
	"context"

	"go.uber.org/fx"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// NewDeleterFromConfig builds the object deleter from the configured
// bucket URL template and closes its cached buckets on shutdown.
func NewDeleterFromConfig(lc fx.Lifecycle, cfg *config.Config) (ports.ObjectStore, error) {
	d, err := NewDeleter(cfg.Granary.ObjectStore.BucketURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return d.Close()
		},
	})
	return d, nil
}

// Module provides the object store to Fx.
var Module = fx.Options(
	fx.Provide(NewDeleterFromConfig),
)
