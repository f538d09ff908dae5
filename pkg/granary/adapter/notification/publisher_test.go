package notification_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gocloud.dev/pubsub/mempubsub"

	"github.com/orbitalworks/granary/pkg/granary/adapter/notification"
	"github.com/orbitalworks/granary/pkg/granary/core/ports"
)

func TestPublisher_SendsEnvelope(t *testing.T) {
	ctx := context.Background()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	t.Cleanup(func() {
		topic.Shutdown(ctx)
		sub.Shutdown(ctx)
	})

	p := notification.NewPublisher(topic)
	record := map[string]interface{}{
		"granuleId":    "g1",
		"collectionId": "MOD09GQ___006",
		"status":       "completed",
	}
	require.NoError(t, p.Publish(ctx, ports.EventUpdate, ports.KindGranule, record))

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	defer msg.Ack()

	assert.Equal(t, "Update", msg.Metadata["event"])
	assert.Equal(t, "granule", msg.Metadata["record"])
	assert.NotEmpty(t, msg.Metadata["messageId"])

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Body, &envelope))
	assert.Equal(t, "Update", envelope["event"])
	assert.Equal(t, "granule", envelope["record"])
	payload, ok := envelope["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "g1", payload["granuleId"])
	assert.Equal(t, "completed", payload["status"])
}

func TestPublisher_DeleteCarriesNaturalKey(t *testing.T) {
	ctx := context.Background()
	topic := mempubsub.NewTopic()
	sub := mempubsub.NewSubscription(topic, time.Minute)
	t.Cleanup(func() {
		topic.Shutdown(ctx)
		sub.Shutdown(ctx)
	})

	p := notification.NewPublisher(topic)
	require.NoError(t, p.Publish(ctx, ports.EventDelete, ports.KindPdr, map[string]interface{}{
		"pdrName": "pdr-1",
	}))

	msg, err := sub.Receive(ctx)
	require.NoError(t, err)
	defer msg.Ack()

	var envelope map[string]interface{}
	require.NoError(t, json.Unmarshal(msg.Body, &envelope))
	assert.Equal(t, "Delete", envelope["event"])
	payload, ok := envelope["payload"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "pdr-1", payload["pdrName"])
}
