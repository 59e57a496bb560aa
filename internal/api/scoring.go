package api

import (
	"encoding/json"
	"net/http"

	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
)

type ScoringHandler struct {
	scorer  *scoring.Scorer
	metrics *metrics.Metrics
}

func NewScoringHandler(sc *scoring.Scorer, m *metrics.Metrics) *ScoringHandler {
	return &ScoringHandler{scorer: sc, metrics: m}
}

type ComputeRequest struct {
	Property scoring.PropertyAttributes `json:"property"`
	Preset   string                     `json:"preset,omitempty"`
	Weights  scoring.WeightOverrides    `json:"weights,omitempty"`
}

type ComputeResponse struct {
	Score          int                   `json:"score"`
	Breakdown      scoring.Breakdown     `json:"breakdown"`
	Preset         string                `json:"preset"`
	Weights        scoring.WeightProfile `json:"weights"`
	EvaluationYear int                   `json:"evaluation_year"`
	Warning        string                `json:"warning,omitempty"`
}

// Compute scores an ad-hoc property. The preset is resolved first and the
// explicit weights then override it key by key.
// POST /api/v1/scoring/compute
func (h *ScoringHandler) Compute(w http.ResponseWriter, r *http.Request) {
	var req ComputeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	preset := resolvePresetName(req.Preset)
	weights := scoring.PresetWeights(preset).Merge(req.Weights)
	if err := weights.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result := h.scorer.ScoreWith(req.Property, weights)
	h.metrics.ObserveScore(metrics.SourceAPI, result.Score)

	writeJSON(w, http.StatusOK, ComputeResponse{
		Score:          result.Score,
		Breakdown:      result.Breakdown,
		Preset:         preset,
		Weights:        weights,
		EvaluationYear: h.scorer.EvaluationYear(),
		Warning:        sumWarning(weights),
	})
}

// Presets lists every named weight profile.
// GET /api/v1/scoring/presets
func (h *ScoringHandler) Presets(w http.ResponseWriter, _ *http.Request) {
	out := make(map[string]scoring.WeightProfile)
	for _, name := range scoring.PresetNames() {
		out[name] = scoring.PresetWeights(name)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"default": scoring.PresetDefault,
		"presets": out,
	})
}
