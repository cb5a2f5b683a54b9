package testutil

import (
	"context"
	"fmt"
	"os"
	"testing"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// RabbitMQURLEnv points integration tests at an existing broker instead of a
// throwaway container.
const RabbitMQURLEnv = "RABBITMQ_TEST_URL"

// RabbitMQ is a broker reachable for the duration of one test.
type RabbitMQ struct {
	URL  string
	Conn *amqp.Connection
}

// StartRabbitMQ connects to RABBITMQ_TEST_URL when set and otherwise starts a
// RabbitMQ container. Everything is released at test cleanup.
func StartRabbitMQ(t *testing.T) *RabbitMQ {
	t.Helper()

	url := os.Getenv(RabbitMQURLEnv)
	if url == "" {
		url = startRabbitContainer(t)
	}

	conn, err := amqp.DialConfig(url, amqp.Config{Dial: amqp.DefaultDial(10 * time.Second)})
	require.NoError(t, err, "dial %s", url)
	t.Cleanup(func() { _ = conn.Close() })

	return &RabbitMQ{URL: url, Conn: conn}
}

func startRabbitContainer(t *testing.T) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "rabbitmq:3.13-alpine",
			ExposedPorts: []string{"5672/tcp"},
			WaitingFor:   wait.ForListeningPort("5672/tcp").WithStartupTimeout(90 * time.Second),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		stopCtx, stop := context.WithTimeout(context.Background(), 30*time.Second)
		defer stop()
		_ = container.Terminate(stopCtx)
	})

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "5672")
	require.NoError(t, err)

	return fmt.Sprintf("amqp://guest:guest@%s:%s/", host, port.Port())
}

// Subscribe binds an exclusive, auto-deleted queue to exchange with routingKey
// and returns its deliveries. The exchange must already exist.
func (r *RabbitMQ) Subscribe(t *testing.T, exchange, routingKey string) <-chan amqp.Delivery {
	t.Helper()

	ch, err := r.Conn.Channel()
	require.NoError(t, err)
	t.Cleanup(func() { _ = ch.Close() })

	q, err := ch.QueueDeclare("", false, true, true, false, nil)
	require.NoError(t, err)
	require.NoError(t, ch.QueueBind(q.Name, routingKey, exchange, false, nil))

	deliveries, err := ch.Consume(q.Name, "", true, true, false, false, nil)
	require.NoError(t, err)
	return deliveries
}
