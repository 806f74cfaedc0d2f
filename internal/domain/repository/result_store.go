package repository

import (
	"context"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
)

// ResultStore is a shared, TTL-bound result store that lets API replicas and
// the prewarm worker reuse each other's resolutions.
type ResultStore interface {
	// Get returns the stored result.
	// Returns nil, nil on miss.
	Get(ctx context.Context, mediaID string) (*model.Result, error)

	// Set stores result with the specified TTL.
	Set(ctx context.Context, result *model.Result, ttl time.Duration) error

	// Delete removes a stored result. Returns nil if it was not present.
	Delete(ctx context.Context, mediaID string) error

	// Flush removes all stored results and returns how many were removed.
	Flush(ctx context.Context) (int, error)
}
