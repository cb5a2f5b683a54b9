//go:build integration

package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/logging"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/testutil"
)

func newIntegrationPublisher(t *testing.T) (*RabbitPublisher, *testutil.RabbitMQ) {
	t.Helper()
	broker := testutil.StartRabbitMQ(t)

	pub, err := NewRabbitPublisher(broker.Conn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pub.Close() })
	return pub, broker
}

func TestRabbitPublisherPublishesCartSynced(t *testing.T) {
	pub, broker := newIntegrationPublisher(t)
	msgs := broker.Subscribe(t, EventsExchange, CartSyncedRoutingKey)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, pub.PublishCartSynced(ctx, CartSynced{
		CorrelationID: "cid-42",
		Operation:     "add_item",
		ProductID:     42,
		Outcome:       OutcomeSuccess,
		ItemCount:     3,
	}))

	select {
	case m := <-msgs:
		assert.Equal(t, "cid-42", m.CorrelationId)
		var env struct {
			EventName string     `json:"eventName"`
			Payload   CartSynced `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(m.Body, &env))
		assert.Equal(t, CartSyncedEventName, env.EventName)
		assert.Equal(t, int64(42), env.Payload.ProductID)
		assert.Equal(t, 3, env.Payload.ItemCount)
	case <-ctx.Done():
		t.Fatal("no CartSynced message received")
	}
}

func TestNotificationSinkReachesBroker(t *testing.T) {
	pub, broker := newIntegrationPublisher(t)
	msgs := broker.Subscribe(t, EventsExchange, NotificationShownRoutingKey)

	sink := NotificationSink{Publisher: pub, Logger: logging.Discard()}
	sink.Show(notify.Notification{ID: "n-1", Message: "Item removed from cart", Severity: notify.Info, CreatedAt: time.Now()})

	select {
	case m := <-msgs:
		var env struct {
			EventName string            `json:"eventName"`
			Payload   NotificationShown `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(m.Body, &env))
		assert.Equal(t, NotificationShownEventName, env.EventName)
		assert.Equal(t, "n-1", env.Payload.NotificationID)
	case <-time.After(10 * time.Second):
		t.Fatal("no NotificationShown message received")
	}
}
