// Package api assembles the HTTP surface.
package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/hszk-dev/audiostream/internal/api/handler"
	"github.com/hszk-dev/audiostream/internal/api/middleware"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

// RouterDeps are the services behind the HTTP routes.
type RouterDeps struct {
	Audio usecase.CachingAudioService
	// Prewarm and History are optional.
	Prewarm usecase.PrewarmService
	History repository.ResolutionLog
	Health  map[string]handler.Pinger
}

func NewRouter(logger *slog.Logger, deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Recoverer(logger))

	health := handler.NewHealthHandler(deps.Health)
	audio := handler.NewAudioHandler(deps.Audio, deps.Prewarm, deps.History)
	cacheAdmin := handler.NewCacheHandler(deps.Audio)

	r.Get("/health", health.Health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Route("/audio/{id}", func(r chi.Router) {
			r.Get("/", audio.Get)
			r.Get("/stream", audio.Stream)
			r.Post("/prewarm", audio.Prewarm)
			r.Get("/history", audio.History)
		})
		r.Get("/cache", cacheAdmin.Status)
		r.Delete("/cache", cacheAdmin.Clear)
	})

	return r
}
