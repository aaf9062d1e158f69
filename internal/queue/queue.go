package queue

import "context"

// Publisher publishes push messages to the work queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg PushMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg PushMessage) error

// Consumer consumes push messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}

const (
	// WorkQueueName is the single durable queue carrying accepted pushes.
	WorkQueueName = "push"
	// DLQName receives messages rejected as malformed.
	DLQName = "dlq.push"
)
