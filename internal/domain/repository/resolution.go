package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Resolution is one audit record of a pipeline run.
type Resolution struct {
	ID        uuid.UUID
	MediaID   string
	Outcome   string
	Source    string
	Attempts  int
	ErrorKind string
	Duration  time.Duration
	CreatedAt time.Time
}

// ResolutionLog records pipeline outcomes for observability.
// Implementations should be provided by the infrastructure layer (e.g., PostgreSQL).
type ResolutionLog interface {
	// Record appends a resolution record.
	Record(ctx context.Context, r *Resolution) error

	// ListByMediaID returns the most recent records for mediaID, newest first.
	// Returns empty slice if none exist.
	ListByMediaID(ctx context.Context, mediaID string, limit int) ([]*Resolution, error)
}
