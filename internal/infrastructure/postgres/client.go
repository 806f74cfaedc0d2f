// Package postgres keeps the resolution audit trail in PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// AuditPoolOptions sizes the pool behind the resolution log. The log sees one
// short INSERT per resolution, so a handful of connections is plenty.
type AuditPoolOptions struct {
	DSN string
	// ApplicationName is reported to the server as application_name.
	ApplicationName string
	MaxConns        int32
	IdleTimeout     time.Duration
	// ConnectTimeout bounds the initial reachability check in OpenAuditPool.
	ConnectTimeout time.Duration
}

// DefaultAuditPoolOptions returns the options used by the API and the worker.
func DefaultAuditPoolOptions(dsn string) AuditPoolOptions {
	return AuditPoolOptions{
		DSN:             dsn,
		ApplicationName: "audiostream",
		MaxConns:        4,
		IdleTimeout:     10 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

func (o AuditPoolOptions) pgxConfig() (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(o.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse audit DSN: %w", err)
	}
	if o.MaxConns > 0 {
		pc.MaxConns = o.MaxConns
	}
	// The pool is idle between resolutions; don't hold a connection open for it.
	pc.MinConns = 0
	if o.IdleTimeout > 0 {
		pc.MaxConnIdleTime = o.IdleTimeout
	}
	if o.ApplicationName != "" {
		pc.ConnConfig.RuntimeParams["application_name"] = o.ApplicationName
	}
	return pc, nil
}

// Client owns the audit pool.
type Client struct {
	pool *pgxpool.Pool
}

// OpenAuditPool connects to the audit database and fails fast when it does
// not answer within ConnectTimeout.
func OpenAuditPool(ctx context.Context, opts AuditPoolOptions) (*Client, error) {
	pc, err := opts.pgxConfig()
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("open audit pool: %w", err)
	}

	pingCtx := ctx
	if opts.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, opts.ConnectTimeout)
		defer cancel()
	}
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("audit database unreachable: %w", err)
	}

	return &Client{pool: pool}, nil
}

// ResolutionLog returns the resolution history stored in this pool.
func (c *Client) ResolutionLog() *ResolutionLog {
	return NewResolutionLog(c.pool)
}

func (c *Client) Ping(ctx context.Context) error {
	return c.pool.Ping(ctx)
}

// Close releases every pooled connection. In-flight audit writes finish first.
func (c *Client) Close() {
	c.pool.Close()
}
