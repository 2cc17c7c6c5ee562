package queue

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// PublishOptions carries delivery guarantees for one job: retry attempts,
// backoff between attempts, and the window within which identical jobs are
// collapsed by the broker.
type PublishOptions struct {
	MaxAttempts int
	Backoff     time.Duration
	DedupWindow time.Duration
}

// DefaultPublishOptions are used when the caller passes a zero value.
var DefaultPublishOptions = PublishOptions{
	MaxAttempts: 3,
	Backoff:     500 * time.Millisecond,
}

// Queue is the durable job queue primitive. Persistence and redelivery are
// the broker's problem; this subsystem only publishes and consumes.
type Queue interface {
	Publish(topic string, payload any, opts PublishOptions) error
	Subscribe(topic string, handler func(payload any) error) error
}

// InMemoryQueue is an in-process queue with retry, used in tests and
// single-process runs without a broker.
type InMemoryQueue struct {
	mu       sync.Mutex
	handlers map[string][]func(payload any) error
}

func NewInMemoryQueue() *InMemoryQueue {
	return &InMemoryQueue{
		handlers: make(map[string][]func(payload any) error),
	}
}

// JobPayload wraps a message payload with retry info
type JobPayload struct {
	Payload    any
	RetryCount int
	MaxRetries int
	Backoff    time.Duration
}

// Publish sends a message to all subscribers
func (q *InMemoryQueue) Publish(topic string, payload any, opts PublishOptions) error {
	q.mu.Lock()
	handlers := q.handlers[topic]
	q.mu.Unlock()

	if len(handlers) == 0 {
		return fmt.Errorf("no subscribers for topic %s", topic)
	}

	if opts.MaxAttempts <= 0 {
		opts = DefaultPublishOptions
	}
	job := JobPayload{
		Payload:    payload,
		RetryCount: 0,
		MaxRetries: opts.MaxAttempts,
		Backoff:    opts.Backoff,
	}

	for _, handler := range handlers {
		go q.processJob(handler, job)
	}

	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(handler func(payload any) error, job JobPayload) {
	for job.RetryCount < job.MaxRetries {
		err := handler(job.Payload)
		if err == nil {
			return // ACK
		}

		job.RetryCount++
		log.Printf("Job failed (attempt %d/%d): %+v, error: %v\n", job.RetryCount, job.MaxRetries, job.Payload, err)

		if job.RetryCount >= job.MaxRetries {
			log.Printf("Job permanently failed after %d attempts: %+v\n", job.MaxRetries, job.Payload)
			return // No requeue
		}

		// Backoff scales with the attempt number
		time.Sleep(time.Duration(job.RetryCount) * job.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(topic string, handler func(payload any) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}
