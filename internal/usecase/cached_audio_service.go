package usecase

import (
	"context"
	"log/slog"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/infrastructure/cache"
	"github.com/hszk-dev/audiostream/internal/infrastructure/metrics"
	"golang.org/x/sync/singleflight"
)

// CacheStatus describes the in-process result cache.
type CacheStatus struct {
	Size     int
	Capacity int
	TTL      time.Duration
	// Keys lists cached identifiers in eviction order, oldest first.
	Keys []string
}

// CacheAdmin exposes cache introspection and administration.
type CacheAdmin interface {
	CacheStatus(ctx context.Context) CacheStatus
	// ClearCache empties the cache and returns how many entries it held.
	ClearCache(ctx context.Context) (int, error)
}

// CachingAudioService is an AudioService that owns a result cache.
type CachingAudioService interface {
	AudioService
	CacheAdmin
}

// cachedAudioService wraps AudioService with a bounded in-process cache and an
// optional shared result store.
type cachedAudioService struct {
	delegate AudioService
	memory   *cache.Memory
	store    repository.ResultStore
	sfGroup  singleflight.Group
	now      func() time.Time
}

// NewCachedAudioService creates a CachingAudioService wrapping the provided AudioService.
// store may be nil, in which case only the in-process cache is used.
func NewCachedAudioService(
	delegate AudioService,
	memory *cache.Memory,
	store repository.ResultStore,
) CachingAudioService {
	return &cachedAudioService{
		delegate: delegate,
		memory:   memory,
		store:    store,
		now:      time.Now,
	}
}

// ResolveAudio serves id from cache when possible and otherwise resolves it,
// coalescing concurrent requests for the same identifier.
func (s *cachedAudioService) ResolveAudio(ctx context.Context, id string) (*ResolveOutput, error) {
	if err := model.ValidateID(id); err != nil {
		return nil, newResolveError(KindInvalidIdentifier, id, 0, err)
	}

	if r, ok := s.memory.Get(id); ok {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeMemory).Inc()
		return cachedOutput(r), nil
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeMemory).Inc()

	// The flight outlives any single caller; the delegate's resolve timeout bounds it.
	flightCtx := context.WithoutCancel(ctx)
	ch := s.sfGroup.DoChan(id, func() (any, error) {
		return s.resolveWithCache(flightCtx, id)
	})

	var res singleflight.Result
	select {
	case <-ctx.Done():
		return nil, newResolveError(KindUpstreamUnavailable, id, 0, ctx.Err())
	case res = <-ch:
	}

	if res.Shared {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightShared).Inc()
	} else {
		metrics.SingleflightRequestsTotal.WithLabelValues(metrics.SingleflightInitiated).Inc()
	}

	if res.Err != nil {
		return nil, res.Err
	}

	out := res.Val.(*ResolveOutput)
	// Each caller gets its own copy so the cached record is never exposed.
	result := *out.Result
	return &ResolveOutput{Result: &result, Cached: out.Cached}, nil
}

func cachedOutput(r *model.Result) *ResolveOutput {
	result := *r
	return &ResolveOutput{Result: &result, Cached: true}
}

func (s *cachedAudioService) resolveWithCache(ctx context.Context, id string) (*ResolveOutput, error) {
	// A flight that finished just before this one started may have filled the cache.
	if r, ok := s.memory.Get(id); ok {
		return &ResolveOutput{Result: r, Cached: true}, nil
	}

	if r := s.fromStore(ctx, id); r != nil {
		s.remember(id, r, r.ResolvedAt)
		return &ResolveOutput{Result: r, Cached: true}, nil
	}

	out, err := s.delegate.ResolveAudio(ctx, id)
	if err != nil {
		return nil, err
	}

	s.remember(id, out.Result, time.Time{})
	if s.store != nil {
		if err := s.store.Set(ctx, out.Result, s.memory.TTL()); err != nil {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
			slog.Warn("failed to write shared result store",
				"id", id,
				"error", err,
			)
		} else {
			metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
		}
	}

	return &ResolveOutput{Result: out.Result}, nil
}

// fromStore reads the shared store. Entries resolved longer than one TTL ago
// are ignored so that promotion never extends a stream URL's life.
func (s *cachedAudioService) fromStore(ctx context.Context, id string) *model.Result {
	if s.store == nil {
		return nil
	}

	r, err := s.store.Get(ctx, id)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		slog.Warn("shared result store get failed, resolving upstream",
			"id", id,
			"error", err,
		)
		return nil
	}
	if r == nil || s.now().Sub(r.ResolvedAt) >= s.memory.TTL() {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusMiss, metrics.CacheTypeRedis).Inc()
		return nil
	}

	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpGet, metrics.CacheStatusHit, metrics.CacheTypeRedis).Inc()
	return r
}

// remember caches r as created at createdAt; zero means now.
func (s *cachedAudioService) remember(id string, r *model.Result, createdAt time.Time) {
	evicted, ok := s.memory.SetAt(id, r, createdAt)
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpSet, metrics.CacheStatusSuccess, metrics.CacheTypeMemory).Inc()
	if ok {
		metrics.CacheEvictionsTotal.Inc()
		slog.Debug("evicted cache entry", "id", evicted, "inserted", id)
	}
}

// CacheStatus reports the in-process cache state.
func (s *cachedAudioService) CacheStatus(ctx context.Context) CacheStatus {
	return CacheStatus{
		Size:     s.memory.Len(),
		Capacity: s.memory.Capacity(),
		TTL:      s.memory.TTL(),
		Keys:     s.memory.Keys(),
	}
}

// ClearCache empties the in-process cache and flushes the shared store.
// The returned count is the number of in-process entries removed.
func (s *cachedAudioService) ClearCache(ctx context.Context) (int, error) {
	n := s.memory.Clear()
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusSuccess, metrics.CacheTypeMemory).Inc()
	slog.Info("cleared result cache", "entries", n)

	if s.store == nil {
		return n, nil
	}
	flushed, err := s.store.Flush(ctx)
	if err != nil {
		metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusError, metrics.CacheTypeRedis).Inc()
		return n, err
	}
	metrics.CacheOperationsTotal.WithLabelValues(metrics.CacheOpClear, metrics.CacheStatusSuccess, metrics.CacheTypeRedis).Inc()
	slog.Info("flushed shared result store", "entries", flushed)
	return n, nil
}
