package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/hszk-dev/audiostream/internal/api/handler"
	"github.com/hszk-dev/audiostream/internal/config"
	"github.com/hszk-dev/audiostream/internal/infrastructure/cache"
	"github.com/hszk-dev/audiostream/internal/infrastructure/postgres"
	"github.com/hszk-dev/audiostream/internal/infrastructure/queue"
	"github.com/hszk-dev/audiostream/internal/infrastructure/storage"
)

// Backends are the external services enabled in configuration.
// A nil field means the service is disabled.
type Backends struct {
	Redis    *redis.Client
	Postgres *postgres.Client
	MinIO    *storage.Client
	RabbitMQ *queue.Client

	closers []func() error
}

// Open connects to every enabled backend, failing fast on the first error.
// On failure, already opened connections are closed.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (_ *Backends, err error) {
	b := &Backends{}
	defer func() {
		if err != nil {
			_ = b.Close()
		}
	}()

	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		b.closers = append(b.closers, client.Close)
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		b.Redis = client
		logger.Info("connected to Redis", slog.String("addr", cfg.Redis.Addr()))
	}

	if cfg.Database.Enabled {
		client, err := postgres.OpenAuditPool(ctx, postgres.DefaultAuditPoolOptions(cfg.Database.DSN()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
		}
		b.closers = append(b.closers, func() error { client.Close(); return nil })
		if err := client.ResolutionLog().EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("failed to prepare resolution log: %w", err)
		}
		b.Postgres = client
		logger.Info("connected to PostgreSQL")
	}

	if cfg.MinIO.Enabled {
		client, err := storage.NewClient(ctx, storage.ClientConfig{
			Endpoint:     cfg.MinIO.Endpoint,
			AccessKey:    cfg.MinIO.AccessKey,
			SecretKey:    cfg.MinIO.SecretKey,
			Bucket:       cfg.MinIO.Bucket,
			UseSSL:       cfg.MinIO.UseSSL,
			CreateBucket: cfg.MinIO.CreateBucket,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MinIO: %w", err)
		}
		b.MinIO = client
		logger.Info("connected to MinIO", slog.String("bucket", client.Bucket()))
	}

	if cfg.RabbitMQ.Enabled {
		client, err := queue.NewClient(ctx, queue.DefaultClientConfig(cfg.RabbitMQ.URL()))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
		}
		b.closers = append(b.closers, client.Close)
		b.RabbitMQ = client
		logger.Info("connected to RabbitMQ")
	}

	return b, nil
}

// PipelineDeps returns the pipeline collaborators backed by the enabled services.
func (b *Backends) PipelineDeps() PipelineDeps {
	var deps PipelineDeps
	if b.Redis != nil {
		deps.Store = cache.NewRedisResultStore(b.Redis)
	}
	if b.Postgres != nil {
		deps.History = b.Postgres.ResolutionLog()
	}
	if b.MinIO != nil {
		deps.Archive = b.MinIO
	}
	return deps
}

// HealthChecks returns a pinger per enabled service.
func (b *Backends) HealthChecks() map[string]handler.Pinger {
	checks := make(map[string]handler.Pinger)
	if b.Redis != nil {
		checks["redis"] = handler.PingFunc(func(ctx context.Context) error {
			return b.Redis.Ping(ctx).Err()
		})
	}
	if b.Postgres != nil {
		checks["postgres"] = b.Postgres
	}
	if b.MinIO != nil {
		checks["minio"] = b.MinIO
	}
	if b.RabbitMQ != nil {
		checks["rabbitmq"] = b.RabbitMQ
	}
	return checks
}

// Close closes every opened connection in reverse order.
func (b *Backends) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
