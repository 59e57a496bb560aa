package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

const (
	favoriteAdd    = "add"
	favoriteRemove = "remove"
)

type FavoritesHandler struct {
	store   store.Store
	hermes  hermes.Client
	scorer  *scoring.Scorer
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewFavoritesHandler(s store.Store, h hermes.Client, sc *scoring.Scorer, m *metrics.Metrics, logger *slog.Logger) *FavoritesHandler {
	return &FavoritesHandler{store: s, hermes: h, scorer: sc, metrics: m, logger: logger}
}

type RankedFavorite struct {
	Property       *store.Property   `json:"property"`
	IdealityScore  int               `json:"ideality_score"`
	ScoreBreakdown scoring.Breakdown `json:"score_breakdown"`
	OnFrontier     bool              `json:"on_frontier"`
}

// List returns the user's favorites ranked by ideality score. Favorites no
// other favorite beats on every dimension are flagged on_frontier.
// GET /api/v1/favorites
func (h *FavoritesHandler) List(w http.ResponseWriter, r *http.Request) {
	props, err := h.store.ListFavorites(r.Context(), UserIDFrom(r.Context()))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch favorites")
		return
	}

	byID := lo.KeyBy(props, func(p *store.Property) string { return p.ID.String() })
	ranked := h.scorer.Rank(lo.Map(props, func(p *store.Property, _ int) scoring.Candidate {
		return scoring.Candidate{ID: p.ID.String(), Attributes: p.Attributes()}
	}), scoring.DefaultWeights())

	frontier := scoring.ComputeFrontier(lo.Map(ranked, func(rk scoring.Ranked, _ int) scoring.FrontierCandidate {
		return scoring.FrontierCandidate{ID: rk.ID, Breakdown: rk.Result.Breakdown}
	}))
	onFrontier := lo.Associate(frontier, func(f scoring.FrontierCandidate) (string, bool) { return f.ID, true })

	favorites := lo.Map(ranked, func(rk scoring.Ranked, _ int) RankedFavorite {
		return RankedFavorite{
			Property:       byID[rk.ID],
			IdealityScore:  rk.Result.Score,
			ScoreBreakdown: rk.Result.Breakdown,
			OnFrontier:     onFrontier[rk.ID],
		}
	})
	writeJSON(w, http.StatusOK, map[string]interface{}{"favorites": favorites})
}

type FavoriteRequest struct {
	PropertyID string `json:"property_id"`
	Action     string `json:"action"`
}

// Update adds or removes a favorite.
// POST /api/v1/favorites
func (h *FavoritesHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req FavoriteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Action != favoriteAdd && req.Action != favoriteRemove {
		writeError(w, http.StatusBadRequest, "action must be add or remove")
		return
	}
	id, err := uuid.Parse(req.PropertyID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property_id")
		return
	}

	ctx := r.Context()
	p, err := h.store.GetProperty(ctx, id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return
	}

	userID := UserIDFrom(ctx)
	var subject, message string
	if req.Action == favoriteAdd {
		err = h.store.AddFavorite(ctx, userID, id)
		subject, message = hermes.SubjectFavoriteAdded(userID), "property added to favorites"
	} else {
		err = h.store.RemoveFavorite(ctx, userID, id)
		subject, message = hermes.SubjectFavoriteRemoved(userID), "property removed from favorites"
	}
	switch {
	case errors.Is(err, store.ErrAlreadyFavorited), errors.Is(err, store.ErrNotFavorited):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		writeError(w, http.StatusInternalServerError, "failed to manage favorite")
		return
	}

	if h.metrics != nil {
		h.metrics.FavoriteActions.WithLabelValues(req.Action).Inc()
	}
	hermes.Emit(h.hermes, h.logger, subject, hermes.FavoriteEvent{
		UserID:     userID,
		PropertyID: id.String(),
		Action:     req.Action,
		Timestamp:  time.Now().UTC(),
	})
	writeJSON(w, http.StatusOK, map[string]string{"message": message})
}
