package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

func newAudioRouter(h *AudioHandler) *chi.Mux {
	r := chi.NewRouter()
	r.Get("/v1/audio/{id}", h.Get)
	r.Get("/v1/audio/{id}/stream", h.Stream)
	r.Post("/v1/audio/{id}/prewarm", h.Prewarm)
	r.Get("/v1/audio/{id}/history", h.History)
	return r
}

func testResult() *model.Result {
	return &model.Result{
		ID:          testID,
		Title:       "Never Gonna Give You Up",
		Artist:      "Rick Astley",
		Duration:    213,
		StreamURL:   "https://cdn.example/audio.m4a",
		SourceURL:   model.WatchURL(testID),
		Success:     true,
		ResolvedVia: "primary",
		ResolvedAt:  time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func resolveErr(kind usecase.ErrorKind) error {
	return &usecase.ResolveError{Kind: kind, ID: testID, Attempt: 3, Err: errors.New("boom")}
}

func TestAudioHandler_Get(t *testing.T) {
	tests := []struct {
		name           string
		resolveFn      func(ctx context.Context, id string) (*usecase.ResolveOutput, error)
		wantStatusCode int
		wantErrorKind  string
		checkResponse  func(t *testing.T, resp AudioResponse)
	}{
		{
			name: "resolved result",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return &usecase.ResolveOutput{Result: testResult()}, nil
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, resp AudioResponse) {
				if resp.StreamURL != "https://cdn.example/audio.m4a" || !resp.Success {
					t.Errorf("response = %+v", resp)
				}
				if resp.Cached {
					t.Error("expected cached=false")
				}
				if resp.ResolvedAt != "2024-01-01T00:00:00Z" {
					t.Errorf("ResolvedAt = %q", resp.ResolvedAt)
				}
			},
		},
		{
			name: "cached result",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return &usecase.ResolveOutput{Result: testResult(), Cached: true}, nil
			},
			wantStatusCode: http.StatusOK,
			checkResponse: func(t *testing.T, resp AudioResponse) {
				if !resp.Cached {
					t.Error("expected cached=true")
				}
			},
		},
		{
			name: "invalid identifier",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, resolveErr(usecase.KindInvalidIdentifier)
			},
			wantStatusCode: http.StatusBadRequest,
			wantErrorKind:  "invalid_identifier",
		},
		{
			name: "not found",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, resolveErr(usecase.KindNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantErrorKind:  "not_found",
		},
		{
			name: "no playable asset",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, resolveErr(usecase.KindNoPlayableAsset)
			},
			wantStatusCode: http.StatusUnprocessableEntity,
			wantErrorKind:  "no_playable_asset",
		},
		{
			name: "upstream unavailable",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, resolveErr(usecase.KindUpstreamUnavailable)
			},
			wantStatusCode: http.StatusServiceUnavailable,
			wantErrorKind:  "upstream_unavailable",
		},
		{
			name: "internal",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, resolveErr(usecase.KindInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantErrorKind:  "internal",
		},
		{
			name: "foreign error",
			resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
				return nil, errors.New("unexpected")
			},
			wantStatusCode: http.StatusInternalServerError,
			wantErrorKind:  "internal",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockAudioService{resolveFn: tt.resolveFn}
			router := newAudioRouter(NewAudioHandler(svc, nil, nil))

			req := httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID, nil)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d (body %s)", rec.Code, tt.wantStatusCode, rec.Body.String())
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("Content-Type = %q", ct)
			}

			if tt.wantErrorKind != "" {
				var resp ErrorResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
					t.Fatalf("failed to unmarshal response: %v", err)
				}
				if resp.Error != tt.wantErrorKind {
					t.Errorf("error = %q, want %q", resp.Error, tt.wantErrorKind)
				}
				if resp.ID != testID {
					t.Errorf("id = %q", resp.ID)
				}
				if strings.Contains(resp.Message, "boom") {
					t.Errorf("message leaks internal cause: %q", resp.Message)
				}
				return
			}

			var resp AudioResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, resp)
			}
		})
	}
}

func TestAudioHandler_Get_UnavailableMessageMentionsBlocking(t *testing.T) {
	svc := &mockAudioService{resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
		return nil, resolveErr(usecase.KindUpstreamUnavailable)
	}}
	router := newAudioRouter(NewAudioHandler(svc, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID, nil))

	if !strings.Contains(rec.Body.String(), "blocking") {
		t.Errorf("body = %s, want a note about upstream blocking", rec.Body.String())
	}
}

func TestAudioHandler_Get_ErrorLogIncludesAttempt(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	svc := &mockAudioService{resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
		return nil, resolveErr(usecase.KindUpstreamUnavailable)
	}}
	router := newAudioRouter(NewAudioHandler(svc, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID, nil))

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["msg"] != "resolution failed" || entry["id"] != testID {
		t.Errorf("log entry = %v", entry)
	}
	if entry["attempt"] != float64(3) {
		t.Errorf("attempt = %v, want 3", entry["attempt"])
	}
}

func TestAudioHandler_Stream(t *testing.T) {
	svc := &mockAudioService{resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
		if id != testID {
			t.Errorf("id = %q", id)
		}
		return &usecase.ResolveOutput{Result: testResult()}, nil
	}}
	router := newAudioRouter(NewAudioHandler(svc, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID+"/stream", nil))

	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "https://cdn.example/audio.m4a" {
		t.Errorf("Location = %q", loc)
	}
}

func TestAudioHandler_Stream_Error(t *testing.T) {
	svc := &mockAudioService{resolveFn: func(ctx context.Context, id string) (*usecase.ResolveOutput, error) {
		return nil, resolveErr(usecase.KindNotFound)
	}}
	router := newAudioRouter(NewAudioHandler(svc, nil, nil))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID+"/stream", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
	if rec.Header().Get("Location") != "" {
		t.Error("error response must not redirect")
	}
}

func TestAudioHandler_Prewarm(t *testing.T) {
	taskID := uuid.New()

	tests := []struct {
		name           string
		prewarm        usecase.PrewarmService
		wantStatusCode int
	}{
		{
			name: "task published",
			prewarm: &mockPrewarmService{enqueueFn: func(ctx context.Context, id string) (*repository.PrewarmTask, error) {
				return &repository.PrewarmTask{TaskID: taskID, MediaID: id}, nil
			}},
			wantStatusCode: http.StatusAccepted,
		},
		{
			name: "invalid identifier",
			prewarm: &mockPrewarmService{enqueueFn: func(ctx context.Context, id string) (*repository.PrewarmTask, error) {
				return nil, resolveErr(usecase.KindInvalidIdentifier)
			}},
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "queue failure",
			prewarm: &mockPrewarmService{enqueueFn: func(ctx context.Context, id string) (*repository.PrewarmTask, error) {
				return nil, fmt.Errorf("publish prewarm task: %w", errors.New("channel closed"))
			}},
			wantStatusCode: http.StatusServiceUnavailable,
		},
		{
			name:           "prewarm disabled",
			prewarm:        nil,
			wantStatusCode: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAudioRouter(NewAudioHandler(&mockAudioService{}, tt.prewarm, nil))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/v1/audio/"+testID+"/prewarm", nil))

			if rec.Code != tt.wantStatusCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatusCode)
			}
			if tt.wantStatusCode != http.StatusAccepted {
				return
			}

			var resp PrewarmResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if resp.TaskID != taskID.String() || resp.ID != testID {
				t.Errorf("response = %+v", resp)
			}
		})
	}
}

func TestAudioHandler_History(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	var gotLimit int
	history := &mockResolutionLog{listFn: func(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error) {
		gotLimit = limit
		return []*repository.Resolution{
			{ID: uuid.New(), MediaID: mediaID, Outcome: "failure", Attempts: 3, ErrorKind: "upstream_unavailable", Duration: 7500 * time.Millisecond, CreatedAt: created},
			{ID: uuid.New(), MediaID: mediaID, Outcome: "success", Source: "primary", Attempts: 1, Duration: 900 * time.Millisecond, CreatedAt: created},
		}, nil
	}}
	router := newAudioRouter(NewAudioHandler(&mockAudioService{}, nil, history))

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/audio/"+testID+"/history?limit=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if gotLimit != 5 {
		t.Errorf("limit = %d, want 5", gotLimit)
	}

	var resp HistoryResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if len(resp.Resolutions) != 2 {
		t.Fatalf("len(resolutions) = %d, want 2", len(resp.Resolutions))
	}
	first := resp.Resolutions[0]
	if first.Outcome != "failure" || first.ErrorKind != "upstream_unavailable" || first.DurationMS != 7500 {
		t.Errorf("first = %+v", first)
	}
	if first.CreatedAt != "2024-01-02T03:04:05Z" {
		t.Errorf("CreatedAt = %q", first.CreatedAt)
	}
}

func TestAudioHandler_History_Errors(t *testing.T) {
	tests := []struct {
		name           string
		history        repository.ResolutionLog
		path           string
		wantStatusCode int
	}{
		{
			name:           "disabled",
			history:        nil,
			path:           "/v1/audio/" + testID + "/history",
			wantStatusCode: http.StatusServiceUnavailable,
		},
		{
			name:           "invalid identifier",
			history:        &mockResolutionLog{},
			path:           "/v1/audio/short/history",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name:           "invalid limit",
			history:        &mockResolutionLog{},
			path:           "/v1/audio/" + testID + "/history?limit=abc",
			wantStatusCode: http.StatusBadRequest,
		},
		{
			name: "store failure",
			history: &mockResolutionLog{listFn: func(ctx context.Context, mediaID string, limit int) ([]*repository.Resolution, error) {
				return nil, errors.New("connection refused")
			}},
			path:           "/v1/audio/" + testID + "/history",
			wantStatusCode: http.StatusInternalServerError,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newAudioRouter(NewAudioHandler(&mockAudioService{}, nil, tt.history))

			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			if rec.Code != tt.wantStatusCode {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatusCode)
			}
		})
	}
}
