package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/hszk-dev/audiostream/internal/api"
	"github.com/hszk-dev/audiostream/internal/app"
	"github.com/hszk-dev/audiostream/internal/config"
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

	backends, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer backends.Close()

	deps := backends.PipelineDeps()
	pipeline, err := app.NewPipeline(cfg, app.NewResolvers(cfg.Resolver), deps)
	if err != nil {
		return err
	}
	logger.Info("resolution pipeline ready",
		slog.Int("max_attempts", pipeline.Retry.MaxAttempts()),
		slog.Int("fallback_endpoints", pipeline.Fallback.Len()),
		slog.Int("cache_capacity", pipeline.Memory.Capacity()),
		slog.Duration("cache_ttl", pipeline.Memory.TTL()),
		slog.Bool("shared_store", deps.Store != nil),
	)

	routerDeps := api.RouterDeps{
		Audio:   pipeline.Audio,
		History: deps.History,
		Health:  backends.HealthChecks(),
	}
	if backends.RabbitMQ != nil {
		routerDeps.Prewarm = usecase.NewPrewarmService(backends.RabbitMQ, pipeline.Audio, cfg.Worker.MaxRetries)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      api.NewRouter(logger, routerDeps),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", slog.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("server error: %w", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		logger.Info("shutting down server", slog.String("signal", sig.String()))
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}

	logger.Info("server stopped")
	return nil
}
