// Package app assembles the resolution pipeline and its backing services
// from configuration. Both binaries share it.
package app

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/hszk-dev/audiostream/internal/config"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/infrastructure/cache"
	"github.com/hszk-dev/audiostream/internal/upstream"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

// Resolver kinds accepted as the prefix of a fallback endpoint name.
const (
	KindExtractor = "extractor"
	KindFrontend  = "frontend"
)

// Resolvers holds one instance per resolver kind.
type Resolvers struct {
	Extractor upstream.Resolver
	Frontend  upstream.Resolver
}

// NewResolvers builds the production resolvers from cfg.
func NewResolvers(cfg config.ResolverConfig) Resolvers {
	ext := upstream.DefaultExtractorConfig()
	if cfg.ExtractorPath != "" {
		ext.Path = cfg.ExtractorPath
	}
	if cfg.Format != "" {
		ext.Format = cfg.Format
	}
	if cfg.SocketTimeout > 0 {
		ext.SocketTimeout = cfg.SocketTimeout
	}

	var httpClient *http.Client
	if cfg.FrontendTimeout > 0 {
		httpClient = &http.Client{Timeout: cfg.FrontendTimeout}
	}

	return Resolvers{
		Extractor: upstream.NewExtractor(ext),
		Frontend:  upstream.NewFrontendClient(httpClient),
	}
}

// ByName picks the resolver for a fallback endpoint named "kind:label".
// Names without a kind prefix use the extractor.
func (r Resolvers) ByName(name string) (upstream.Resolver, error) {
	kind, _, ok := strings.Cut(name, ":")
	if !ok {
		kind = KindExtractor
	}
	switch kind {
	case KindExtractor:
		return r.Extractor, nil
	case KindFrontend:
		return r.Frontend, nil
	default:
		return nil, fmt.Errorf("unknown resolver kind %q", kind)
	}
}

// Pipeline is the assembled resolution pipeline.
type Pipeline struct {
	Audio    usecase.CachingAudioService
	Retry    *usecase.RetryOrchestrator
	Fallback *usecase.FallbackChain
	Memory   *cache.Memory
}

// PipelineDeps are the optional collaborators of the pipeline.
// Nil fields disable the corresponding feature.
type PipelineDeps struct {
	Store   repository.ResultStore
	Archive repository.PayloadArchive
	History repository.ResolutionLog
	// RetryOptions are appended after the configured attempt budget.
	RetryOptions []usecase.RetryOption
}

// NewPipeline wires retry, fallback, the uncached pipeline and the cache decorator.
func NewPipeline(cfg *config.Config, resolvers Resolvers, deps PipelineDeps) (*Pipeline, error) {
	identities := upstream.NewIdentityPool(cfg.Resolver.UserAgents)

	endpoints, err := usecase.ParseEndpoints(cfg.Resolver.FallbackEndpoints, resolvers.ByName)
	if err != nil {
		return nil, fmt.Errorf("failed to parse fallback endpoints: %w", err)
	}

	opts := append([]usecase.RetryOption{usecase.WithMaxAttempts(cfg.Resolver.MaxAttempts)}, deps.RetryOptions...)
	retry := usecase.NewRetryOrchestrator(resolvers.Extractor, identities, cfg.Resolver.PrimaryURL, opts...)
	fallback := usecase.NewFallbackChain(endpoints, identities.Default())

	audio := usecase.NewAudioService(retry, fallback, deps.Archive, deps.History, usecase.AudioServiceConfig{
		ResolveTimeout: cfg.Resolver.ResolveTimeout,
	})

	memory := cache.NewMemory(cfg.Cache.Capacity, cfg.Cache.TTL)

	return &Pipeline{
		Audio:    usecase.NewCachedAudioService(audio, memory, deps.Store),
		Retry:    retry,
		Fallback: fallback,
		Memory:   memory,
	}, nil
}
