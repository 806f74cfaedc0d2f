package repository

import (
	"context"

	"github.com/google/uuid"
)

// PrewarmTask asks a worker to resolve an identifier ahead of demand.
type PrewarmTask struct {
	TaskID     uuid.UUID `json:"task_id"`
	MediaID    string    `json:"media_id"`
	RetryCount int       `json:"retry_count"`
}

// MessageQueue defines the interface for prewarm task delivery.
// Implementations should be provided by the infrastructure layer (e.g., RabbitMQ).
type MessageQueue interface {
	// PublishPrewarmTask enqueues a prewarm request.
	// Used by the API server when a client asks for an identifier to be warmed.
	PublishPrewarmTask(ctx context.Context, task PrewarmTask) error

	// ConsumePrewarmTasks blocks consuming tasks until ctx is cancelled.
	// The handler is called for each received task.
	ConsumePrewarmTasks(ctx context.Context, handler func(task PrewarmTask) error) error

	// Close gracefully closes the connection to the message queue.
	Close() error
}
