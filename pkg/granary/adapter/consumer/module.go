package consumer

import (
	"context"

	"go.uber.org/fx"
	"gocloud.dev/pubsub"

	"github.com/orbitalworks/granary/pkg/granary/core/application/usecase"
	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// StartConsumer opens the configured ingest subscription and runs the
// receive loop for the lifetime of the application. An empty
// subscription URL disables the consumer.
func StartConsumer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg *config.Config, ingest usecase.IngestService) error {
	url := cfg.Granary.Ingest.SubscriptionURL
	if url == "" {
		logger.Infof("Consumer: no ingest subscription configured, consumer disabled.")
		return nil
	}

	subscription, err := pubsub.OpenSubscription(context.Background(), url)
	if err != nil {
		return err
	}
	c := NewConsumer(subscription, ingest)

	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := c.Run(runCtx); err != nil {
					logger.Errorf("Consumer: receive loop stopped: %v", err)
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			cancel()
			return subscription.Shutdown(ctx)
		},
	})
	return nil
}

// Module starts the ingest consumer with the application.
var Module = fx.Options(
	fx.Invoke(StartConsumer),
)
