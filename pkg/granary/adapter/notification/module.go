package notification

import (
	"context"

	"go.uber.org/fx"
	"gocloud.dev/pubsub"

	"github.com/orbitalworks/granary/pkg/granary/core/config"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

// NewPublisherFromConfig opens the change-event topic named in the
// configuration and closes it on shutdown.
func NewPublisherFromConfig(lc fx.Lifecycle, cfg *config.Config) (ports.NotificationPublisher, error) {
	ctx := context.Background()
	topic, err := pubsub.OpenTopic(ctx, cfg.Granary.Notification.TopicURL)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return topic.Shutdown(ctx)
		},
	})
	return NewPublisher(topic), nil
}

// Module provides the notification publisher to Fx.
var Module = fx.Options(
	fx.Provide(NewPublisherFromConfig),
)
