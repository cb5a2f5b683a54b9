package events

import (
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	EventsExchange              = "ecommerce.events"
	CartSyncedRoutingKey        = "storefront.cart.synced.v1"
	NotificationShownRoutingKey = "storefront.notification.shown.v1"
	producerName                = "storefront-client-go"
)

func declareEventsExchange(ch *amqp.Channel) error {
	return ch.ExchangeDeclare(
		EventsExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
}

type EventEnvelope struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	Producer      string    `json:"producer"`
	OccurredAt    time.Time `json:"occurredAt"`
	Payload       any       `json:"payload"`
}

func newEnvelope(name, correlationID string, occurredAt time.Time, payload any) EventEnvelope {
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}
	return EventEnvelope{
		EventName:     name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: correlationID,
		Producer:      producerName,
		OccurredAt:    occurredAt,
		Payload:       payload,
	}
}
