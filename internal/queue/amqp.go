package queue

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/streadway/amqp"
)

// AMQPQueue publishes jobs to RabbitMQ. Queues are declared durable on
// first use. Consuming stays in the worker binary; the server side only
// publishes.
type AMQPQueue struct {
	conn *amqp.Connection
	ch   *amqp.Channel

	mu       sync.Mutex
	declared map[string]bool
}

func NewAMQPQueue(url string) (*AMQPQueue, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open a channel: %w", err)
	}
	return &AMQPQueue{
		conn:     conn,
		ch:       ch,
		declared: make(map[string]bool),
	}, nil
}

func (q *AMQPQueue) Close() error {
	q.ch.Close()
	return q.conn.Close()
}

func (q *AMQPQueue) declare(topic string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.declared[topic] {
		return nil
	}
	_, err := q.ch.QueueDeclare(
		topic,
		true,  // durable
		false, // delete when unused
		false, // exclusive
		false, // no-wait
		nil,   // arguments
	)
	if err != nil {
		return fmt.Errorf("failed to declare queue %s: %w", topic, err)
	}
	q.declared[topic] = true
	return nil
}

// Publish marshals the payload as JSON and attaches the retry/dedup options
// as headers for the consumer to honor.
func (q *AMQPQueue) Publish(topic string, payload any, opts PublishOptions) error {
	if err := q.declare(topic); err != nil {
		return err
	}
	if opts.MaxAttempts <= 0 {
		opts = DefaultPublishOptions
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal job payload: %w", err)
	}

	return q.ch.Publish(
		"",
		topic,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
			Headers: amqp.Table{
				"x-max-attempts":    int32(opts.MaxAttempts),
				"x-backoff-ms":      opts.Backoff.Milliseconds(),
				"x-dedup-window-ms": opts.DedupWindow.Milliseconds(),
			},
		},
	)
}

// Subscribe is not supported on the publisher side; consumers attach to the
// broker directly (see cmd/worker).
func (q *AMQPQueue) Subscribe(topic string, handler func(payload any) error) error {
	return fmt.Errorf("AMQPQueue does not consume; run cmd/worker against topic %s", topic)
}
