package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/hszk-dev/audiostream/internal/app"
	"github.com/hszk-dev/audiostream/internal/config"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.Log.Level,
	}))
	slog.SetDefault(logger)

	if !cfg.RabbitMQ.Enabled {
		return errors.New("worker requires RABBITMQ_ENABLED=true")
	}
	if !cfg.Redis.Enabled {
		// Results would only land in this process's memory and never reach the API.
		logger.Warn("REDIS_ENABLED=false: prewarmed results will not be shared with API instances")
	}

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	pipeline, err := app.NewPipeline(cfg, app.NewResolvers(cfg.Resolver), backends.PipelineDeps())
	if err != nil {
		return err
	}
	prewarmSvc := usecase.NewPrewarmService(backends.RabbitMQ, pipeline.Audio, cfg.Worker.MaxRetries)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Tasks run on their own context so a shutdown signal stops consumption
	// without aborting resolutions that are already underway.
	taskCtx, cancelTasks := context.WithCancel(context.Background())
	defer cancelTasks()

	// WaitGroup to track in-flight tasks
	var wg sync.WaitGroup

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting worker, consuming prewarm tasks")
		err := backends.RabbitMQ.ConsumePrewarmTasks(ctx, func(task repository.PrewarmTask) error {
			wg.Add(1)
			defer wg.Done()

			logger.Info("processing prewarm task",
				slog.String("id", task.MediaID),
				slog.String("task_id", task.TaskID.String()),
				slog.Int("retry_count", task.RetryCount),
			)

			if err := prewarmSvc.ProcessTask(taskCtx, task); err != nil {
				logger.Error("prewarm task failed",
					slog.String("id", task.MediaID),
					slog.Int("retry_count", task.RetryCount),
					slog.String("error", err.Error()),
				)
				return err
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			errCh <- fmt.Errorf("consumer error: %w", err)
		}
	}()

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down worker", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Worker.ShutdownTimeout)
	defer shutdownCancel()

	// Stop consuming new messages
	cancel()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logger.Info("all in-flight tasks completed")
	case <-shutdownCtx.Done():
		logger.Warn("shutdown timeout exceeded, some tasks may not have completed")
		cancelTasks()
	}

	logger.Info("worker stopped")
	return nil
}
