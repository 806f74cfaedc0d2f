package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/upstream"
)

const testID = "dQw4w9WgXcQ"

// mockResolver provides a configurable mock for upstream.Resolver.
type mockResolver struct {
	resolveFn func(ctx context.Context, req upstream.Request) (*model.RawResponse, error)
	calls     atomic.Int32

	mu       sync.Mutex
	requests []upstream.Request
}

func (m *mockResolver) Resolve(ctx context.Context, req upstream.Request) (*model.RawResponse, error) {
	m.calls.Add(1)
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	if m.resolveFn != nil {
		return m.resolveFn(ctx, req)
	}
	return nil, nil
}

func (m *mockResolver) Requests() []upstream.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]upstream.Request(nil), m.requests...)
}

// mockAudioService provides a configurable mock for AudioService.
type mockAudioService struct {
	resolveAudioFn func(ctx context.Context, id string) (*ResolveOutput, error)
	calls          atomic.Int32
}

func (m *mockAudioService) ResolveAudio(ctx context.Context, id string) (*ResolveOutput, error) {
	m.calls.Add(1)
	if m.resolveAudioFn != nil {
		return m.resolveAudioFn(ctx, id)
	}
	return nil, nil
}

// mockResultStore provides a configurable in-memory mock for ResultStore.
type mockResultStore struct {
	mu      sync.Mutex
	data    map[string]*model.Result
	getFn   func(ctx context.Context, mediaID string) (*model.Result, error)
	setFn   func(ctx context.Context, result *model.Result, ttl time.Duration) error
	flushFn func(ctx context.Context) (int, error)
}

func newMockResultStore() *mockResultStore {
	return &mockResultStore{data: make(map[string]*model.Result)}
}

func (m *mockResultStore) Get(ctx context.Context, mediaID string) (*model.Result, error) {
	if m.getFn != nil {
		return m.getFn(ctx, mediaID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.data[mediaID], nil
}

func (m *mockResultStore) Set(ctx context.Context, result *model.Result, ttl time.Duration) error {
	if m.setFn != nil {
		return m.setFn(ctx, result, ttl)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[result.ID] = result
	return nil
}

func (m *mockResultStore) Delete(ctx context.Context, mediaID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, mediaID)
	return nil
}

func (m *mockResultStore) Flush(ctx context.Context) (int, error) {
	if m.flushFn != nil {
		return m.flushFn(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.data)
	m.data = make(map[string]*model.Result)
	return n, nil
}

// mockResolutionLog provides a configurable mock for ResolutionLog.
type mockResolutionLog struct {
	mu       sync.Mutex
	records  []*repository.Resolution
	recordFn func(ctx context.Context, r *repository.Resolution) error
}

func (m *mockResolutionLog) Record(ctx context.Context, r *repository.Resolution) error {
	m.mu.Lock()
	m.records = append(m.records, r)
	m.mu.Unlock()
	if m.recordFn != nil {
		return m.recordFn(ctx, r)
	}
	return nil
}

func (m *mockResolutionLog) ListByMediaID(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error) {
	return nil, nil
}

func (m *mockResolutionLog) Records() []*repository.Resolution {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*repository.Resolution(nil), m.records...)
}

// mockPayloadArchive provides a configurable mock for PayloadArchive.
type mockPayloadArchive struct {
	archiveFn func(ctx context.Context, mediaID string, at time.Time, payload []byte) (string, error)
	archived  [][]byte
}

func (m *mockPayloadArchive) Archive(ctx context.Context, mediaID string, at time.Time, payload []byte) (string, error) {
	m.archived = append(m.archived, payload)
	if m.archiveFn != nil {
		return m.archiveFn(ctx, mediaID, at, payload)
	}
	return "payloads/" + mediaID + "/archived.json", nil
}

func (m *mockPayloadArchive) Fetch(ctx context.Context, key string) ([]byte, error) {
	return nil, repository.ErrObjectNotFound
}

// mockMessageQueue provides a configurable mock for MessageQueue.
type mockMessageQueue struct {
	publishPrewarmTaskFn  func(ctx context.Context, task repository.PrewarmTask) error
	consumePrewarmTasksFn func(ctx context.Context, handler func(task repository.PrewarmTask) error) error
}

func (m *mockMessageQueue) PublishPrewarmTask(ctx context.Context, task repository.PrewarmTask) error {
	if m.publishPrewarmTaskFn != nil {
		return m.publishPrewarmTaskFn(ctx, task)
	}
	return nil
}

func (m *mockMessageQueue) ConsumePrewarmTasks(ctx context.Context, handler func(task repository.PrewarmTask) error) error {
	if m.consumePrewarmTasksFn != nil {
		return m.consumePrewarmTasksFn(ctx, handler)
	}
	return nil
}

func (m *mockMessageQueue) Close() error {
	return nil
}

// fixedRandom is a deterministic Random: IntN always returns 0 and Float64
// returns jitter.
type fixedRandom struct {
	jitter float64
}

func (r fixedRandom) IntN(n int) int   { return 0 }
func (r fixedRandom) Float64() float64 { return r.jitter }

// recordingSleeper records requested sleeps without blocking.
type recordingSleeper struct {
	mu     sync.Mutex
	sleeps []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sleeps = append(s.sleeps, d)
	return ctx.Err()
}

func (s *recordingSleeper) Total() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	var total time.Duration
	for _, d := range s.sleeps {
		total += d
	}
	return total
}

func (s *recordingSleeper) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sleeps)
}

func audioOnlyResponse(url string) *model.RawResponse {
	return &model.RawResponse{
		ID:       testID,
		Title:    "Never Gonna Give You Up",
		Uploader: "Rick Astley",
		Duration: 212,
		Formats: []model.CandidateAsset{
			{URL: url, AudioCodec: "opus", VideoCodec: "none", Bitrate: 160},
		},
	}
}
