package repository

import (
	"context"
	"time"
)

// PayloadArchive stores raw upstream payloads that could not be decoded,
// so malformed responses can be inspected after the fact.
type PayloadArchive interface {
	// Archive stores payload under a key derived from mediaID and at.
	// Returns the object key.
	Archive(ctx context.Context, mediaID string, at time.Time, payload []byte) (string, error)

	// Fetch returns a previously archived payload.
	// Returns ErrObjectNotFound if the key does not exist.
	Fetch(ctx context.Context, key string) ([]byte, error)
}
