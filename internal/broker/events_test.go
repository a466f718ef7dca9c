package broker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"storefront-orders/internal/models"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingProducer struct {
	keys   []string
	events []interface{}
}

func (r *recordingProducer) PublishEvent(ctx context.Context, key string, event interface{}) error {
	r.keys = append(r.keys, key)
	r.events = append(r.events, event)
	return nil
}

func TestEventPublisherKeysByOrder(t *testing.T) {
	producer := &recordingProducer{}
	publisher := NewEventPublisher(producer)
	ctx := context.Background()

	require.NoError(t, publisher.PublishOrderPlaced(ctx, &models.OrderPlacedEvent{OrderID: "o1"}))
	require.NoError(t, publisher.PublishOrderStatusChanged(ctx, &models.OrderStatusChangedEvent{OrderID: "o1"}))

	assert.Equal(t, []string{"order-o1", "order-o1"}, producer.keys)
}

func encode(t *testing.T, event interface{}) kafka.Message {
	t.Helper()
	value, err := json.Marshal(event)
	require.NoError(t, err)
	return kafka.Message{Value: value}
}

func TestEventHandlerRoutesByType(t *testing.T) {
	handler := NewEventHandler()

	var placed *models.OrderPlacedEvent
	var changed *models.OrderStatusChangedEvent
	handler.OnOrderPlaced(func(ctx context.Context, e *models.OrderPlacedEvent) error {
		placed = e
		return nil
	})
	handler.OnOrderStatusChanged(func(ctx context.Context, e *models.OrderStatusChangedEvent) error {
		changed = e
		return errors.New("boom")
	})
	ctx := context.Background()

	err := handler.HandleMessage(ctx, encode(t, &models.OrderPlacedEvent{
		BaseEvent: models.BaseEvent{EventID: "e1", EventType: models.EventTypeOrderPlaced, Timestamp: time.Now()},
		OrderID:   "o1",
		Status:    models.OrderStatusForDelivery,
		Items:     []models.OrderLineData{{ProductID: "p1", Quantity: 2, Price: "10"}},
	}))
	require.NoError(t, err)
	require.NotNil(t, placed)
	assert.Equal(t, "o1", placed.OrderID)
	assert.Len(t, placed.Items, 1)

	err = handler.HandleMessage(ctx, encode(t, &models.OrderStatusChangedEvent{
		BaseEvent: models.BaseEvent{EventID: "e2", EventType: models.EventTypeOrderStatusChanged},
		OrderID:   "o1",
		Status:    models.OrderStatusShipped,
	}))
	assert.EqualError(t, err, "boom", "handler errors propagate so the message is not committed")
	require.NotNil(t, changed)
	assert.Equal(t, models.OrderStatusShipped, changed.Status)

	assert.NoError(t, handler.HandleMessage(ctx, encode(t, &models.BaseEvent{EventType: "SOMETHING_ELSE"})))
	assert.Error(t, handler.HandleMessage(ctx, kafka.Message{Value: []byte("not json")}))
}
