// Package consumer drives the ingest service from a gocloud.dev pubsub
// subscription. One message carries one workflow event; redelivery on
// failure is the queue's job, and safety under redelivery comes from the
// merge policy downstream.
package consumer

import (
	"context"
	"encoding/json"

	"gocloud.dev/pubsub"

	"github.com/orbitalworks/granary/pkg/granary/core/application/usecase"
	"github.com/orbitalworks/granary/pkg/granary/support/util/logger"
)

// Consumer receives inbound pipeline messages and hands them to the
// ingest service.
type Consumer struct {
	subscription *pubsub.Subscription
	ingest       usecase.IngestService
}

// NewConsumer creates a Consumer over an open subscription.
func NewConsumer(subscription *pubsub.Subscription, ingest usecase.IngestService) *Consumer {
	return &Consumer{subscription: subscription, ingest: ingest}
}

// Run receives messages until the context is canceled or the
// subscription is shut down. A message that fails to decode is acked
// and dropped (redelivering it cannot help); a message whose writes
// fail is nacked where the driver supports it, so the queue redelivers.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.subscription.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		c.handle(ctx, msg)
	}
}

func (c *Consumer) handle(ctx context.Context, msg *pubsub.Message) {
	var raw map[string]interface{}
	if err := json.Unmarshal(msg.Body, &raw); err != nil {
		logger.Errorf("Consumer: dropping undecodable message: %v", err)
		msg.Ack()
		return
	}

	if err := c.ingest.Ingest(ctx, raw); err != nil {
		logger.Errorf("Consumer: ingest failed, requesting redelivery: %v", err)
		if msg.Nackable() {
			msg.Nack()
		} else {
			msg.Ack()
		}
		return
	}
	msg.Ack()
}
