package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Ideality/internal/rescore"
)

type AdminHandler struct {
	rescore *rescore.Worker
}

func NewAdminHandler(rw *rescore.Worker) *AdminHandler {
	return &AdminHandler{rescore: rw}
}

// Rescore runs one rescore batch synchronously.
// POST /api/v1/admin/rescore
func (h *AdminHandler) Rescore(w http.ResponseWriter, r *http.Request) {
	if h.rescore == nil {
		writeError(w, http.StatusServiceUnavailable, "rescore worker disabled")
		return
	}
	stats, err := h.rescore.RunOnce(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// POST /api/v1/admin/properties/{id}/rescore
func (h *AdminHandler) RescoreProperty(w http.ResponseWriter, r *http.Request) {
	if h.rescore == nil {
		writeError(w, http.StatusServiceUnavailable, "rescore worker disabled")
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}
	result, err := h.rescore.RescoreProperty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if result == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}
