package queue

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/OFFIS-RIT/fingraph/internal/util"
	"github.com/OFFIS-RIT/fingraph/pkg/logger"

	"github.com/rabbitmq/amqp091-go"
)

// BuildQueue carries graph build requests.
const BuildQueue = "graph_build_queue"

// Queues lists every work queue the worker consumes.
var Queues = []string{BuildQueue}

const retryTTLMs = int32(10000)

// channel is the subset of *amqp091.Channel used for declaring and publishing.
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp091.Table) (amqp091.Queue, error)
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp091.Publishing) error
}

// ConnectionURL builds the broker URL from the RABBITMQ_* variables.
func ConnectionURL() string {
	u := url.URL{
		Scheme: "amqp",
		User:   url.UserPassword(util.GetEnvString("RABBITMQ_USER", "guest"), util.GetEnvString("RABBITMQ_PASSWORD", "guest")),
		Host:   fmt.Sprintf("%s:%s", util.GetEnvString("RABBITMQ_HOST", "localhost"), util.GetEnvString("RABBITMQ_PORT", "5672")),
		Path:   "/",
	}
	return u.String()
}

func Init() *amqp091.Connection {
	conn, err := amqp091.Dial(ConnectionURL())
	if err != nil {
		logger.Fatal("Failed to connect to RabbitMQ", "err", err)
	}

	return conn
}

// SetupQueues declares each queue with its dead-letter queue and a retry
// queue that dead-letters back into the work queue after a fixed delay.
func SetupQueues(ch channel, queueNames []string) error {
	for _, name := range queueNames {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", name, err)
		}

		dlqName := name + "_dlq"
		if _, err := ch.QueueDeclare(dlqName, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare %s: %w", dlqName, err)
		}

		retryName := name + "_retry"
		_, err := ch.QueueDeclare(
			retryName,
			true,
			false,
			false,
			false,
			amqp091.Table{
				"x-message-ttl":             retryTTLMs,
				"x-dead-letter-exchange":    "",
				"x-dead-letter-routing-key": name,
			},
		)
		if err != nil {
			return fmt.Errorf("declare %s: %w", retryName, err)
		}
	}

	return nil
}

func PublishFIFO(ctx context.Context, ch channel, queueName string, data []byte, headers amqp091.Table) error {
	publishing := amqp091.Publishing{
		ContentType:  "application/json",
		Body:         data,
		Headers:      headers,
		DeliveryMode: amqp091.Persistent,
		Timestamp:    time.Now(),
	}

	return ch.PublishWithContext(ctx, "", queueName, false, false, publishing)
}
