package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
)

// DefaultMaxPrewarmRetries is how many times a failed prewarm task is requeued.
const DefaultMaxPrewarmRetries = 3

// PrewarmService defines the interface for resolving identifiers ahead of demand.
type PrewarmService interface {
	// Enqueue validates id and publishes a prewarm task for it.
	Enqueue(ctx context.Context, id string) (*repository.PrewarmTask, error)

	// ProcessTask handles a prewarm task from the message queue.
	// Returns nil on success or permanent failure.
	// Returns error for transient failures that should trigger a retry.
	ProcessTask(ctx context.Context, task repository.PrewarmTask) error
}

type prewarmService struct {
	queue      repository.MessageQueue
	audio      AudioService
	maxRetries int
}

// NewPrewarmService creates a new PrewarmService.
// audio may be nil on the publishing side, queue may be nil on the consuming side.
func NewPrewarmService(queue repository.MessageQueue, audio AudioService, maxRetries int) PrewarmService {
	if maxRetries <= 0 {
		maxRetries = DefaultMaxPrewarmRetries
	}
	return &prewarmService{
		queue:      queue,
		audio:      audio,
		maxRetries: maxRetries,
	}
}

// Enqueue publishes a prewarm task for id.
func (s *prewarmService) Enqueue(ctx context.Context, id string) (*repository.PrewarmTask, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, newResolveError(KindInvalidIdentifier, id, 0, err)
	}

	task := repository.PrewarmTask{
		TaskID:  uuid.New(),
		MediaID: id,
	}
	if err := s.queue.PublishPrewarmTask(ctx, task); err != nil {
		return nil, fmt.Errorf("publish prewarm task: %w", err)
	}

	slog.Info("prewarm task published", "id", id, "task_id", task.TaskID)
	return &task, nil
}

// ProcessTask resolves the task's identifier through the caching pipeline,
// which leaves the result in the shared store for API instances.
func (s *prewarmService) ProcessTask(ctx context.Context, task repository.PrewarmTask) error {
	if task.RetryCount >= s.maxRetries {
		slog.Warn("dropping prewarm task after max retries",
			"id", task.MediaID,
			"task_id", task.TaskID,
			"retry_count", task.RetryCount,
		)
		return nil
	}

	out, err := s.audio.ResolveAudio(ctx, task.MediaID)
	if err == nil {
		slog.Info("prewarm task completed",
			"id", task.MediaID,
			"task_id", task.TaskID,
			"cached", out.Cached,
			"resolved_via", out.Result.ResolvedVia,
		)
		return nil
	}

	// Only upstream outages are worth retrying later.
	if errors.Is(err, ErrUpstreamUnavailable) {
		return err
	}

	slog.Warn("prewarm task failed permanently",
		"id", task.MediaID,
		"task_id", task.TaskID,
		"kind", KindOf(err),
		"error", err,
	)
	return nil
}
