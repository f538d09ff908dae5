// Package notification publishes change events for committed writes over a
// gocloud.dev pubsub topic.
package notification

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gocloud.dev/pubsub"

	"github.com/orbitalworks/granary/pkg/granary/core/ports"
	"github.com/orbitalworks/granary/pkg/granary/support/util/exception"
	"github.com/orbitalworks/granary/pkg/granary/support/util/serialization"
)

const moduleName = "notification"

// Publisher sends one message per committed write. The body is a JSON
// envelope of {event, record, payload}: the payload is the full record for
// Create and Update, and the natural key for Delete. Publish failures are
// surfaced to the caller and never retried here.
type Publisher struct {
	topic *pubsub.Topic
}

func NewPublisher(topic *pubsub.Topic) *Publisher {
	return &Publisher{topic: topic}
}

var _ ports.NotificationPublisher = (*Publisher)(nil)

func (p *Publisher) Publish(ctx context.Context, eventType ports.EventType, recordType string, record interface{}) error {
	body, err := serialization.MarshalJSONMap(map[string]interface{}{
		"event":   string(eventType),
		"record":  recordType,
		"payload": record,
	})
	if err != nil {
		return err
	}
	msg := &pubsub.Message{
		Body: body,
		Metadata: map[string]string{
			"messageId": uuid.NewString(),
			"event":     string(eventType),
			"record":    recordType,
		},
	}
	if err := p.topic.Send(ctx, msg); err != nil {
		return exception.NewWriteError(moduleName, fmt.Sprintf("failed to publish %s %s event", recordType, eventType), err)
	}
	return nil
}
