package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/panops/panorama-address-manager/internal/service"
	"github.com/panops/panorama-address-manager/internal/storage"
)

// PushHandler handles push endpoints.
type PushHandler struct {
	store       storage.Storage
	pushService *service.PushService
}

// NewPushHandler creates a new PushHandler.
func NewPushHandler(store storage.Storage, pushService *service.PushService) *PushHandler {
	return &PushHandler{store: store, pushService: pushService}
}

// Preview returns the artifact that a push would send, without pushing.
func (h *PushHandler) Preview(w http.ResponseWriter, r *http.Request) {
	artifact, err := h.pushService.Preview(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, artifact)
}

// Sync pushes the current records to the device immediately.
func (h *PushHandler) Sync(w http.ResponseWriter, r *http.Request) {
	resp, err := h.pushService.ForcePush(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}

// Versions lists push versions, newest first.
func (h *PushHandler) Versions(w http.ResponseWriter, r *http.Request) {
	limit := 20
	offset := 0

	if l := r.URL.Query().Get("limit"); l != "" {
		parsed, err := strconv.Atoi(l)
		if err != nil || parsed < 1 || parsed > 100 {
			respondError(w, http.StatusBadRequest, "limit must be between 1 and 100")
			return
		}
		limit = parsed
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		parsed, err := strconv.Atoi(o)
		if err != nil || parsed < 0 {
			respondError(w, http.StatusBadRequest, "offset must be non-negative")
			return
		}
		offset = parsed
	}

	versions, err := h.store.ListPushVersions(r.Context(), limit, offset)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, versions)
}

// Redeploy pushes a previous version's artifact as a new version.
func (h *PushHandler) Redeploy(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "id is required")
		return
	}

	resp, err := h.pushService.Redeploy(r.Context(), id)
	if err != nil {
		handleError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, resp)
}
