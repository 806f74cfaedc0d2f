package handler

import (
	"net/http"

	"github.com/hszk-dev/audiostream/internal/usecase"
)

type CacheStatusResponse struct {
	Size       int      `json:"size"`
	Capacity   int      `json:"capacity"`
	TTLSeconds int64    `json:"ttl_seconds"`
	Keys       []string `json:"keys"`
}

type CacheClearResponse struct {
	Cleared int `json:"cleared"`
}

// CacheHandler exposes result cache administration.
type CacheHandler struct {
	admin usecase.CacheAdmin
}

func NewCacheHandler(admin usecase.CacheAdmin) *CacheHandler {
	return &CacheHandler{admin: admin}
}

// Status handles GET /v1/cache
func (h *CacheHandler) Status(w http.ResponseWriter, r *http.Request) {
	st := h.admin.CacheStatus(r.Context())
	keys := st.Keys
	if keys == nil {
		keys = []string{}
	}
	JSON(w, http.StatusOK, CacheStatusResponse{
		Size:       st.Size,
		Capacity:   st.Capacity,
		TTLSeconds: int64(st.TTL.Seconds()),
		Keys:       keys,
	})
}

// Clear handles DELETE /v1/cache
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	n, err := h.admin.ClearCache(r.Context())
	if err != nil {
		// The in-process cache is already empty at this point; only the shared store failed.
		Error(w, http.StatusBadGateway, "store_flush_failed", "Local cache cleared but the shared store could not be flushed")
		return
	}
	JSON(w, http.StatusOK, CacheClearResponse{Cleared: n})
}
