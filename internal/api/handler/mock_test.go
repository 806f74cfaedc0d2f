package handler

import (
	"context"

	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

const testID = "dQw4w9WgXcQ"

type mockAudioService struct {
	resolveFn     func(ctx context.Context, id string) (*usecase.ResolveOutput, error)
	cacheStatusFn func(ctx context.Context) usecase.CacheStatus
	clearCacheFn  func(ctx context.Context) (int, error)
}

var _ usecase.CachingAudioService = (*mockAudioService)(nil)

func (m *mockAudioService) ResolveAudio(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
	if m.resolveFn != nil {
		return m.resolveFn(ctx, id)
	}
	return nil, nil
}

func (m *mockAudioService) CacheStatus(ctx context.Context) usecase.CacheStatus {
	if m.cacheStatusFn != nil {
		return m.cacheStatusFn(ctx)
	}
	return usecase.CacheStatus{}
}

func (m *mockAudioService) ClearCache(ctx context.Context) (int, error) {
	if m.clearCacheFn != nil {
		return m.clearCacheFn(ctx)
	}
	return 0, nil
}

type mockPrewarmService struct {
	enqueueFn func(ctx context.Context, id string) (*repository.PrewarmTask, error)
}

func (m *mockPrewarmService) Enqueue(ctx context.Context, id string) (*repository.PrewarmTask, error) {
	if m.enqueueFn != nil {
		return m.enqueueFn(ctx, id)
	}
	return nil, nil
}

func (m *mockPrewarmService) ProcessTask(ctx context.Context, task repository.PrewarmTask) error {
	return nil
}

type mockResolutionLog struct {
	listFn func(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error)
}

func (m *mockResolutionLog) Record(ctx context.Context, r *repository.Resolution) error {
	return nil
}

func (m *mockResolutionLog) ListByMediaID(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error) {
	if m.listFn != nil {
		return m.listFn(ctx, mediaID, limit)
	}
	return nil, nil
}

type mockPinger struct {
	err error
}

func (m mockPinger) Ping(ctx context.Context) error {
	return m.err
}
