package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/hszk-dev/audiostream/internal/domain/model"
	"github.com/hszk-dev/audiostream/internal/domain/repository"
	"github.com/hszk-dev/audiostream/internal/usecase"
)

// Request/Response types

type AudioResponse struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Duration    int    `json:"duration"`
	StreamURL   string `json:"stream_url"`
	Thumbnail   string `json:"thumbnail,omitempty"`
	SourceURL   string `json:"source_url"`
	Success     bool   `json:"success"`
	ResolvedVia string `json:"resolved_via"`
	ResolvedAt  string `json:"resolved_at"`
	Cached      bool   `json:"cached"`
}

type PrewarmResponse struct {
	TaskID string `json:"task_id"`
	ID     string `json:"id"`
}

type ResolutionResponse struct {
	ID         string `json:"id"`
	Outcome    string `json:"outcome"`
	Source     string `json:"source,omitempty"`
	Attempts   int    `json:"attempts"`
	ErrorKind  string `json:"error_kind,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	CreatedAt  string `json:"created_at"`
}

type HistoryResponse struct {
	ID          string               `json:"id"`
	Resolutions []ResolutionResponse `json:"resolutions"`
}

// AudioHandler handles audio resolution HTTP requests.
type AudioHandler struct {
	svc     usecase.AudioService
	prewarm usecase.PrewarmService
	history repository.ResolutionLog
}

// NewAudioHandler creates a new AudioHandler.
// prewarm and history are optional; their endpoints answer 503 when nil.
func NewAudioHandler(svc usecase.AudioService, prewarm usecase.PrewarmService, history repository.ResolutionLog) *AudioHandler {
	return &AudioHandler{svc: svc, prewarm: prewarm, history: history}
}

// Get handles GET /v1/audio/{id}
func (h *AudioHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := h.svc.ResolveAudio(r.Context(), id)
	if err != nil {
		resolveError(w, id, err)
		return
	}

	JSON(w, http.StatusOK, toAudioResponse(out))
}

// Stream handles GET /v1/audio/{id}/stream by redirecting to the resolved stream URL.
func (h *AudioHandler) Stream(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	out, err := h.svc.ResolveAudio(r.Context(), id)
	if err != nil {
		resolveError(w, id, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	http.Redirect(w, r, out.Result.StreamURL, http.StatusFound)
}

// Prewarm handles POST /v1/audio/{id}/prewarm
func (h *AudioHandler) Prewarm(w http.ResponseWriter, r *http.Request) {
	if h.prewarm == nil {
		Error(w, http.StatusServiceUnavailable, "prewarm_disabled", "Prewarm queue is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	task, err := h.prewarm.Enqueue(r.Context(), id)
	if err != nil {
		if usecase.KindOf(err) == usecase.KindInvalidIdentifier {
			resolveError(w, id, err)
			return
		}
		Error(w, http.StatusServiceUnavailable, "queue_unavailable", "Failed to enqueue prewarm task")
		return
	}

	JSON(w, http.StatusAccepted, PrewarmResponse{
		TaskID: task.TaskID.String(),
		ID:     task.MediaID,
	})
}

// History handles GET /v1/audio/{id}/history
func (h *AudioHandler) History(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		Error(w, http.StatusServiceUnavailable, "history_disabled", "Resolution log is not configured")
		return
	}

	id := chi.URLParam(r, "id")
	if err := model.ValidateID(id); err != nil {
		Error(w, http.StatusBadRequest, string(usecase.KindInvalidIdentifier), err.Error())
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			Error(w, http.StatusBadRequest, "invalid_limit", "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	records, err := h.history.ListByMediaID(r.Context(), id, limit)
	if err != nil {
		Error(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		return
	}

	JSON(w, http.StatusOK, HistoryResponse{
		ID: id,
		Resolutions: lo.Map(records, func(rec *repository.Resolution, _ int) ResolutionResponse {
			return ResolutionResponse{
				ID:         rec.ID.String(),
				Outcome:    rec.Outcome,
				Source:     rec.Source,
				Attempts:   rec.Attempts,
				ErrorKind:  rec.ErrorKind,
				DurationMS: rec.Duration.Milliseconds(),
				CreatedAt:  rec.CreatedAt.Format(time.RFC3339),
			}
		}),
	})
}

func toAudioResponse(out *usecase.ResolveOutput) AudioResponse {
	r := out.Result
	return AudioResponse{
		ID:          r.ID,
		Title:       r.Title,
		Artist:      r.Artist,
		Duration:    r.Duration,
		StreamURL:   r.StreamURL,
		Thumbnail:   r.Thumbnail,
		SourceURL:   r.SourceURL,
		Success:     r.Success,
		ResolvedVia: r.ResolvedVia,
		ResolvedAt:  r.ResolvedAt.Format(time.RFC3339),
		Cached:      out.Cached,
	}
}
