package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/MikeSquared-Agency/Ideality/internal/config"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

type PropertiesHandler struct {
	store   store.Store
	scorer  *scoring.Scorer
	metrics *metrics.Metrics

	defaultLimit int
	maxLimit     int
}

func NewPropertiesHandler(s store.Store, sc *scoring.Scorer, m *metrics.Metrics, cfg config.APIConfig) *PropertiesHandler {
	h := &PropertiesHandler{store: s, scorer: sc, metrics: m, defaultLimit: cfg.DefaultPageSize, maxLimit: cfg.MaxPageSize}
	if h.defaultLimit <= 0 {
		h.defaultLimit = 20
	}
	if h.maxLimit < h.defaultLimit {
		h.maxLimit = h.defaultLimit
	}
	return h
}

type Pagination struct {
	HasMore    bool    `json:"has_more"`
	NextCursor *string `json:"next_cursor"`
	Limit      int     `json:"limit"`
}

type ListPropertiesResponse struct {
	Properties []*store.Property `json:"properties"`
	Pagination Pagination        `json:"pagination"`
}

// List returns one page of properties.
// GET /api/v1/properties?minPrice=&maxPrice=&minSqft=&maxSqft=&minYear=&maxYear=&type=&beds=&baths=&sortBy=&sortOrder=&limit=&cursor=
func (h *PropertiesHandler) List(w http.ResponseWriter, r *http.Request) {
	filter, err := h.parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := filter.Limit
	filter.Limit = limit + 1

	props, err := h.store.ListProperties(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch properties")
		return
	}

	resp := ListPropertiesResponse{Properties: props, Pagination: Pagination{Limit: limit}}
	if len(props) > limit {
		resp.Properties = props[:limit]
		resp.Pagination.HasMore = true
		next := store.CursorFor(resp.Properties[limit-1], filter.SortBy).Encode()
		resp.Pagination.NextCursor = &next
	}
	if resp.Properties == nil {
		resp.Properties = []*store.Property{}
	}
	writeJSON(w, http.StatusOK, resp)
}

// sortAliases maps the camelCase names older clients send.
var sortAliases = map[string]store.SortField{
	"yearBuilt": store.SortYearBuilt,
	"createdAt": store.SortCreatedAt,
}

func (h *PropertiesHandler) parseFilter(q url.Values) (store.PropertyFilter, error) {
	f := store.PropertyFilter{
		Type:      q.Get("type"),
		SortBy:    store.SortIdealityScore,
		SortOrder: store.SortDesc,
		Limit:     h.defaultLimit,
	}
	var err error

	if f.MinPrice, err = floatParam(q, "minPrice"); err != nil {
		return f, err
	}
	if f.MaxPrice, err = floatParam(q, "maxPrice"); err != nil {
		return f, err
	}
	if f.MinSqft, err = intParam(q, "minSqft"); err != nil {
		return f, err
	}
	if f.MaxSqft, err = intParam(q, "maxSqft"); err != nil {
		return f, err
	}
	if f.MinYear, err = intParam(q, "minYear"); err != nil {
		return f, err
	}
	if f.MaxYear, err = intParam(q, "maxYear"); err != nil {
		return f, err
	}
	if f.Beds, err = intParam(q, "beds"); err != nil {
		return f, err
	}
	if f.Baths, err = floatParam(q, "baths"); err != nil {
		return f, err
	}

	if v := q.Get("sortBy"); v != "" {
		sortBy := store.SortField(v)
		if alias, ok := sortAliases[v]; ok {
			sortBy = alias
		}
		if !sortBy.Valid() {
			return f, fmt.Errorf("invalid sortBy %q", v)
		}
		f.SortBy = sortBy
	}
	if v := q.Get("sortOrder"); v != "" {
		if !store.SortOrder(v).Valid() {
			return f, fmt.Errorf("invalid sortOrder %q", v)
		}
		f.SortOrder = store.SortOrder(v)
	}

	limit, err := intParam(q, "limit")
	if err != nil {
		return f, err
	}
	if limit != nil {
		if *limit < 1 {
			return f, errors.New("limit must be positive")
		}
		f.Limit = min(*limit, h.maxLimit)
	}

	if v := q.Get("cursor"); v != "" {
		c, err := store.DecodeCursor(v)
		if err != nil {
			return f, err
		}
		f.Cursor = c
	}
	return f, nil
}

func intParam(q url.Values, name string) (*int, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, v)
	}
	return &n, nil
}

func floatParam(q url.Values, name string) (*float64, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q", name, v)
	}
	return &n, nil
}

// PropertyDetail is a property with its live ideality score under default
// weights.
type PropertyDetail struct {
	*store.Property
	IdealityScore  int               `json:"ideality_score"`
	ScoreBreakdown scoring.Breakdown `json:"score_breakdown"`
	EvaluationYear int               `json:"evaluation_year"`
}

// Get returns a single property with its score breakdown.
// GET /api/v1/properties/{id}
func (h *PropertiesHandler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := loadProperty(w, r, h.store)
	if !ok {
		return
	}

	result := h.scorer.Score(p.Attributes(), scoring.WeightOverrides{})
	h.metrics.ObserveScore(metrics.SourceAPI, result.Score)

	writeJSON(w, http.StatusOK, PropertyDetail{
		Property:       p,
		IdealityScore:  result.Score,
		ScoreBreakdown: result.Breakdown,
		EvaluationYear: h.scorer.EvaluationYear(),
	})
}

// Facets returns the filter bounds over all listings.
// GET /api/v1/facets
func (h *PropertiesHandler) Facets(w http.ResponseWriter, r *http.Request) {
	f, err := h.store.GetFacets(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to fetch facets")
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// loadProperty resolves the {id} URL parameter, writing 400/404/500 itself
// when it returns false.
func loadProperty(w http.ResponseWriter, r *http.Request, s store.Store) (*store.Property, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid property id")
		return nil, false
	}
	p, err := s.GetProperty(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	if p == nil {
		writeError(w, http.StatusNotFound, "property not found")
		return nil, false
	}
	return p, true
}
