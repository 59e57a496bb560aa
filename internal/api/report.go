package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/report"
)

type ReportHandler struct {
	builder *report.Builder
	hermes  hermes.Client
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewReportHandler(b *report.Builder, h hermes.Client, m *metrics.Metrics, logger *slog.Logger) *ReportHandler {
	return &ReportHandler{builder: b, hermes: h, metrics: m, logger: logger}
}

// Get returns the report data for a property.
// GET /api/v1/properties/{id}/report
func (h *ReportHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return
	}

	rep, err := h.builder.Build(r.Context(), id)
	if err != nil {
		h.logger.Error("failed to build report", "property_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to generate report")
		return
	}
	if rep == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	h.metrics.ObserveScore(metrics.SourceReport, rep.IdealityScore)
	hermes.Emit(h.hermes, h.logger, hermes.SubjectReportGenerated(id.String()), hermes.ReportGeneratedEvent{
		PropertyID:     id.String(),
		Score:          rep.IdealityScore,
		Neighbors:      rep.Neighborhood.TotalProperties - 1,
		EvaluationYear: rep.EvaluationYear,
		Timestamp:      time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, rep)
}
