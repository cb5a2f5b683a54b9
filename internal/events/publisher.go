package events

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"

	"github.com/andreasstove999/ecommerce-system/storefront-client-go/internal/notify"
)

type Publisher interface {
	PublishCartSynced(ctx context.Context, ev CartSynced) error
	PublishNotificationShown(ctx context.Context, ev NotificationShown) error
	Close() error
}

func Dial(url string) (*amqp.Connection, error) {
	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	if err != nil {
		return nil, errors.Wrap(err, "connect to RabbitMQ")
	}
	return conn, nil
}

type RabbitPublisher struct {
	mu sync.Mutex
	ch *amqp.Channel
}

func NewRabbitPublisher(conn *amqp.Connection) (*RabbitPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, errors.Wrap(err, "open channel")
	}
	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, errors.Wrapf(err, "declare %s", EventsExchange)
	}
	return &RabbitPublisher{ch: ch}, nil
}

func (p *RabbitPublisher) Close() error {
	return p.ch.Close()
}

func (p *RabbitPublisher) PublishCartSynced(ctx context.Context, ev CartSynced) error {
	env := newEnvelope(CartSyncedEventName, ev.CorrelationID, ev.OccurredAt, ev)
	return p.publishJSON(ctx, CartSyncedRoutingKey, env)
}

func (p *RabbitPublisher) PublishNotificationShown(ctx context.Context, ev NotificationShown) error {
	env := newEnvelope(NotificationShownEventName, "", ev.OccurredAt, ev)
	return p.publishJSON(ctx, NotificationShownRoutingKey, env)
}

func (p *RabbitPublisher) publishJSON(ctx context.Context, routingKey string, env EventEnvelope) error {
	body, err := json.Marshal(env)
	if err != nil {
		return errors.Wrapf(err, "marshal %s", env.EventName)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch.PublishWithContext(ctx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:   "application/json",
			DeliveryMode:  amqp.Persistent,
			MessageId:     env.EventID,
			CorrelationId: env.CorrelationID,
			Timestamp:     env.OccurredAt,
			Body:          body,
		},
	)
}

// NopPublisher is used when event publishing is disabled.
type NopPublisher struct{}

func (NopPublisher) PublishCartSynced(context.Context, CartSynced) error { return nil }
func (NopPublisher) PublishNotificationShown(context.Context, NotificationShown) error {
	return nil
}
func (NopPublisher) Close() error { return nil }

// NotificationSink mirrors shown notifications onto the event bus. Show is
// called from the UI loop, so publishing happens in the background; failures
// are logged and never affect what the shopper sees.
type NotificationSink struct {
	Publisher Publisher
	Logger    logrus.FieldLogger
	Timeout   time.Duration
}

func (s NotificationSink) Show(n notify.Notification) {
	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	ev := NotificationShown{
		NotificationID: n.ID,
		Message:        n.Message,
		Severity:       string(n.Severity),
		OccurredAt:     n.CreatedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := s.Publisher.PublishNotificationShown(ctx, ev); err != nil {
			s.Logger.WithError(err).WithField("notification_id", ev.NotificationID).Warn("publish notification event")
		}
	}()
}

func (NotificationSink) Dismiss(notify.Notification) {}
