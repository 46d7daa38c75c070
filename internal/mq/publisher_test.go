package mq

import (
	"context"
	"encoding/json"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublishing(t *testing.T) {
	event := NewEvent(RoutingKeyApplicationStatus, map[string]string{"id": "42", "status": "Hired"})
	require.NotEmpty(t, event.ID)

	msg, err := Publishing(event)
	require.NoError(t, err)

	assert.Equal(t, uint8(amqp.Persistent), msg.DeliveryMode)
	assert.Equal(t, "application/json", msg.ContentType)
	assert.Equal(t, event.ID, msg.MessageId)
	assert.Equal(t, "application.status_changed", msg.Type)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(msg.Body, &decoded))
	assert.Equal(t, "application.status_changed", decoded["type"])
	assert.Equal(t, map[string]any{"id": "42", "status": "Hired"}, decoded["data"])
}

func TestPublishingRejectsUnencodable(t *testing.T) {
	_, err := Publishing(NewEvent(RoutingKeyContact, make(chan int)))
	assert.Error(t, err)
}

func TestNoopPublisher(t *testing.T) {
	var p Publisher = NoopPublisher{}
	assert.NoError(t, p.Publish(context.Background(), NewEvent(RoutingKeyNewsletter, nil)))
	assert.NoError(t, p.Close())
}
