package api

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

type ExplainHandler struct {
	store  store.Store
	scorer *scoring.Scorer
}

func NewExplainHandler(s store.Store, sc *scoring.Scorer) *ExplainHandler {
	return &ExplainHandler{store: s, scorer: sc}
}

type ExplainResponse struct {
	PropertyID     string                 `json:"property_id"`
	Preset         string                 `json:"preset"`
	Weights        scoring.WeightProfile  `json:"weights"`
	WeightsSum     float64                `json:"weights_sum"`
	Score          int                    `json:"score"`
	Breakdown      scoring.Breakdown      `json:"breakdown"`
	Factors        []scoring.FactorResult `json:"factors"`
	EvaluationYear int                    `json:"evaluation_year"`
	Warning        string                 `json:"warning,omitempty"`
}

// Explain returns the per-dimension contribution to a property's score.
// GET /api/v1/properties/{id}/explain?preset=family&price=0.3
func (h *ExplainHandler) Explain(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	overrides, err := weightQuery(q)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	preset := resolvePresetName(q.Get("preset"))
	weights := scoring.PresetWeights(preset).Merge(overrides)
	if err := weights.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	p, ok := loadProperty(w, r, h.store)
	if !ok {
		return
	}

	attrs := p.Attributes()
	result := h.scorer.ScoreWith(attrs, weights)
	writeJSON(w, http.StatusOK, ExplainResponse{
		PropertyID:     p.ID.String(),
		Preset:         preset,
		Weights:        weights,
		WeightsSum:     weights.Sum(),
		Score:          result.Score,
		Breakdown:      result.Breakdown,
		Factors:        h.scorer.Factors(attrs, weights),
		EvaluationYear: h.scorer.EvaluationYear(),
		Warning:        sumWarning(weights),
	})
}

// weightQuery reads per-dimension weight overrides from query parameters
// named after the dimensions.
func weightQuery(q url.Values) (scoring.WeightOverrides, error) {
	var o scoring.WeightOverrides
	targets := map[string]**float64{
		"price":    &o.Price,
		"features": &o.Features,
		"location": &o.Location,
		"safety":   &o.Safety,
		"schools":  &o.Schools,
		"commute":  &o.Commute,
	}
	for _, name := range scoring.Dimensions() {
		v := q.Get(name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return o, fmt.Errorf("invalid %s weight %q", name, v)
		}
		*targets[name] = &f
	}
	return o, nil
}

// resolvePresetName maps unknown or empty names to the default preset.
func resolvePresetName(name string) string {
	if scoring.IsPreset(name) {
		return name
	}
	return scoring.PresetDefault
}

func sumWarning(w scoring.WeightProfile) string {
	if w.SumsToOne() {
		return ""
	}
	return fmt.Sprintf("weights sum to %.3f, not 1.0; scores are not on the 0-100 scale", w.Sum())
}
