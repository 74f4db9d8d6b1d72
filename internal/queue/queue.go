package queue

import "context"

const (
	// ArchiveQueueName is the work queue for card image archive jobs.
	ArchiveQueueName = "cards.images"

	// ArchiveDLQName receives archive jobs rejected as unprocessable.
	ArchiveDLQName = "dlq.cards.images"

	dlxExchangeName   = "namecard.dlx"
	archiveRoutingKey = "cards.images"
)

// Publisher publishes archive job messages to a queue.
type Publisher interface {
	Publish(ctx context.Context, queue string, msg ArchiveMessage) error
	Close() error
}

// MessageHandler handles a consumed queue message.
type MessageHandler func(ctx context.Context, msg ArchiveMessage) error

// Consumer consumes archive job messages from a queue.
type Consumer interface {
	Consume(ctx context.Context, queue string, handler MessageHandler) error
	Close() error
}
