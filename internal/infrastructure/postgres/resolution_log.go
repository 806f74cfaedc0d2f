package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/infrastructure/metrics"
)

// DBTX is an interface that abstracts pgxpool.Pool and pgx.Tx for testability.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// DefaultListLimit caps ListByMediaID when no positive limit is given.
const DefaultListLimit = 50

// Schema creates the resolutions table if it does not exist.
const Schema = `
	CREATE TABLE IF NOT EXISTS resolutions (
		id          UUID PRIMARY KEY,
		media_id    VARCHAR(11) NOT NULL,
		outcome     VARCHAR(16) NOT NULL,
		source      TEXT,
		attempts    INTEGER NOT NULL,
		error_kind  VARCHAR(32),
		duration_ms BIGINT NOT NULL,
		created_at  TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS resolutions_media_id_created_at_idx
		ON resolutions (media_id, created_at DESC);
`

// ResolutionLog implements repository.ResolutionLog using PostgreSQL.
type ResolutionLog struct {
	db DBTX
}

// NewResolutionLog creates a new ResolutionLog instance.
func NewResolutionLog(db DBTX) *ResolutionLog {
	return &ResolutionLog{db: db}
}

// EnsureSchema creates the resolutions table and index.
func (l *ResolutionLog) EnsureSchema(ctx context.Context) error {
	if _, err := l.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to ensure resolutions schema: %w", err)
	}
	return nil
}

// Record appends a resolution record.
func (l *ResolutionLog) Record(ctx context.Context, r *repository.Resolution) error {
	const query = `
		INSERT INTO resolutions (id, media_id, outcome, source, attempts, error_kind, duration_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := l.db.Exec(ctx, query,
		r.ID,
		r.MediaID,
		r.Outcome,
		nullString(r.Source),
		r.Attempts,
		nullString(r.ErrorKind),
		r.Duration.Milliseconds(),
		r.CreatedAt,
	)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQueryInsert, metrics.TableResolutions).Inc()
	if err != nil {
		return fmt.Errorf("failed to record resolution: %w", err)
	}

	return nil
}

// ListByMediaID returns the most recent records for mediaID, newest first.
func (l *ResolutionLog) ListByMediaID(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error) {
	const query = `
		SELECT id, media_id, outcome, source, attempts, error_kind, duration_ms, created_at
		FROM resolutions
		WHERE media_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := l.db.Query(ctx, query, mediaID, limit)
	metrics.DBQueriesTotal.WithLabelValues(metrics.DBQuerySelect, metrics.TableResolutions).Inc()
	if err != nil {
		return nil, fmt.Errorf("failed to query resolutions by media ID: %w", err)
	}
	defer rows.Close()

	resolutions := []*repository.Resolution{}
	for rows.Next() {
		r, err := scanResolution(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan resolution: %w", err)
		}
		resolutions = append(resolutions, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating resolutions: %w", err)
	}

	return resolutions, nil
}

// scanResolution scans a single row into a Resolution.
func scanResolution(row pgx.Row) (*repository.Resolution, error) {
	var (
		r          repository.Resolution
		source     *string
		errorKind  *string
		durationMs int64
	)

	err := row.Scan(
		&r.ID,
		&r.MediaID,
		&r.Outcome,
		&source,
		&r.Attempts,
		&errorKind,
		&durationMs,
		&r.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if source != nil {
		r.Source = *source
	}
	if errorKind != nil {
		r.ErrorKind = *errorKind
	}
	r.Duration = time.Duration(durationMs) * time.Millisecond

	return &r, nil
}

// nullString returns nil for empty strings, otherwise returns a pointer to the string.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Compile-time verification that ResolutionLog implements repository.ResolutionLog.
var _ repository.ResolutionLog = (*ResolutionLog)(nil)
