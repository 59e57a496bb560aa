package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeSquared-Agency/Ideality/internal/config"
	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/rescore"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

// Mocks
type mockStore struct {
	order      []uuid.UUID
	props      map[uuid.UUID]*store.Property
	favorites  map[string][]uuid.UUID
	lastFilter store.PropertyFilter
}

func newMockStore() *mockStore {
	return &mockStore{props: map[uuid.UUID]*store.Property{}, favorites: map[string][]uuid.UUID{}}
}

func (m *mockStore) CreateProperty(_ context.Context, p *store.Property) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	p.CreatedAt = time.Now()
	m.props[p.ID] = p
	m.order = append(m.order, p.ID)
	return nil
}
func (m *mockStore) GetProperty(_ context.Context, id uuid.UUID) (*store.Property, error) {
	return m.props[id], nil
}
func (m *mockStore) ListProperties(_ context.Context, f store.PropertyFilter) ([]*store.Property, error) {
	m.lastFilter = f
	var out []*store.Property
	for _, id := range m.order {
		if len(out) == f.Limit {
			break
		}
		out = append(out, m.props[id])
	}
	return out, nil
}
func (m *mockStore) ListNeighbors(_ context.Context, _ store.BoundingBox, exclude uuid.UUID) ([]*store.Property, error) {
	var out []*store.Property
	for _, id := range m.order {
		if id != exclude {
			out = append(out, m.props[id])
		}
	}
	return out, nil
}
func (m *mockStore) GetFacets(_ context.Context) (*store.Facets, error) {
	return &store.Facets{MinPrice: 100000, MaxPrice: 900000, MinYear: 1900, MaxYear: 2025}, nil
}
func (m *mockStore) ListStaleScores(_ context.Context, year, _ int) ([]*store.Property, error) {
	var out []*store.Property
	for _, id := range m.order {
		p := m.props[id]
		if p.ScoredYear == nil || *p.ScoredYear != year {
			out = append(out, p)
		}
	}
	return out, nil
}
func (m *mockStore) UpdateIdealityScore(_ context.Context, id uuid.UUID, score, year int) error {
	m.props[id].IdealityScore, m.props[id].ScoredYear = &score, &year
	return nil
}
func (m *mockStore) AddFavorite(_ context.Context, userID string, id uuid.UUID) error {
	for _, f := range m.favorites[userID] {
		if f == id {
			return store.ErrAlreadyFavorited
		}
	}
	m.favorites[userID] = append(m.favorites[userID], id)
	return nil
}
func (m *mockStore) RemoveFavorite(_ context.Context, userID string, id uuid.UUID) error {
	favs := m.favorites[userID]
	for i, f := range favs {
		if f == id {
			m.favorites[userID] = append(favs[:i], favs[i+1:]...)
			return nil
		}
	}
	return store.ErrNotFavorited
}
func (m *mockStore) ListFavorites(_ context.Context, userID string) ([]*store.Property, error) {
	var out []*store.Property
	for _, id := range m.favorites[userID] {
		out = append(out, m.props[id])
	}
	return out, nil
}
func (m *mockStore) Close() error { return nil }

type mockHermes struct {
	subjects []string
}

func (m *mockHermes) Publish(subject string, _ interface{}) error {
	m.subjects = append(m.subjects, subject)
	return nil
}
func (m *mockHermes) Subscribe(_ string, _ func(string, []byte)) error { return nil }
func (m *mockHermes) Close()                                           {}

type testEnv struct {
	router http.Handler
	store  *mockStore
	hermes *mockHermes
	scorer *scoring.Scorer
}

func setupTestRouter(t *testing.T) *testEnv {
	t.Helper()
	return setupTestRouterWith(t, config.ServerConfig{AdminToken: "test-token"})
}

func setupTestRouterWith(t *testing.T, srv config.ServerConfig) *testEnv {
	t.Helper()
	ms := newMockStore()
	mh := &mockHermes{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sc, err := scoring.NewScorer(scoring.DefaultNormalization(), scoring.FixedYear(2025), logger)
	require.NoError(t, err)
	m := metrics.New(prometheus.NewRegistry())
	rw := rescore.New(ms, mh, sc, m, config.RescoreConfig{IntervalMs: 1000, BatchSize: 10, MaxRetries: 1, BreakerThreshold: 5}, logger)
	cfg := config.APIConfig{RateLimitPerMinute: 1000, DefaultPageSize: 2, MaxPageSize: 5}
	router := NewRouter(ms, mh, sc, rw, m, cfg, srv, logger)
	return &testEnv{router: router, store: ms, hermes: mh, scorer: sc}
}

func (e *testEnv) addProperty(t *testing.T, title string, price float64, location float64) *store.Property {
	t.Helper()
	p := &store.Property{
		Title: title, Type: "house", Price: price, Sqft: 1800, YearBuilt: 2010,
		Beds: 3, Baths: 2, Lat: 40, Lng: -74,
		LocationScore: location, SafetyScore: 70, SchoolScore: 60, CommuteMinutes: 30,
	}
	require.NoError(t, e.store.CreateProperty(context.Background(), p))
	return p
}

func (e *testEnv) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.NewDecoder(w.Body).Decode(v))
}

func TestHealthAndMetricsEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ObserveScore(metrics.SourceAPI, 72)
	router := NewMetricsRouter(reg)

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok"`)

	w = httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ideality_scores_computed_total")
}

func TestListPropertiesPagination(t *testing.T) {
	env := setupTestRouter(t)
	for i := 0; i < 3; i++ {
		env.addProperty(t, "House", 300000, 70)
	}

	w := env.do("GET", "/api/v1/properties?sortBy=price&sortOrder=asc&minPrice=100000", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ListPropertiesResponse
	decode(t, w, &resp)
	assert.Len(t, resp.Properties, 2)
	assert.True(t, resp.Pagination.HasMore)
	require.NotNil(t, resp.Pagination.NextCursor)
	assert.Equal(t, 2, resp.Pagination.Limit)

	assert.Equal(t, store.SortPrice, env.store.lastFilter.SortBy)
	assert.Equal(t, store.SortAsc, env.store.lastFilter.SortOrder)
	assert.Equal(t, 3, env.store.lastFilter.Limit, "handler asks for one extra row")
	require.NotNil(t, env.store.lastFilter.MinPrice)
	assert.Equal(t, 100000.0, *env.store.lastFilter.MinPrice)

	c, err := store.DecodeCursor(*resp.Pagination.NextCursor)
	require.NoError(t, err)
	assert.Equal(t, resp.Properties[1].ID, c.ID)

	w = env.do("GET", "/api/v1/properties?cursor="+*resp.Pagination.NextCursor, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, env.store.lastFilter.Cursor)
	assert.Equal(t, c.ID, env.store.lastFilter.Cursor.ID)
}

func TestListPropertiesLastPage(t *testing.T) {
	env := setupTestRouter(t)
	env.addProperty(t, "Only", 300000, 70)

	w := env.do("GET", "/api/v1/properties?sortBy=yearBuilt", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ListPropertiesResponse
	decode(t, w, &resp)
	assert.Len(t, resp.Properties, 1)
	assert.False(t, resp.Pagination.HasMore)
	assert.Nil(t, resp.Pagination.NextCursor)
	assert.Equal(t, store.SortYearBuilt, env.store.lastFilter.SortBy)
}

func TestListPropertiesInvalidQuery(t *testing.T) {
	env := setupTestRouter(t)
	for _, q := range []string{
		"sortBy=bedrooms",
		"sortOrder=sideways",
		"minPrice=cheap",
		"beds=two",
		"limit=0",
		"cursor=not-a-cursor",
	} {
		w := env.do("GET", "/api/v1/properties?"+q, "", nil)
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
	}
}

func TestListPropertiesLimitCapped(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do("GET", "/api/v1/properties?limit=500", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 6, env.store.lastFilter.Limit)
}

func TestGetProperty(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "Detail", 450000, 80)

	w := env.do("GET", "/api/v1/properties/"+p.ID.String(), "", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]interface{}
	decode(t, w, &body)
	want := env.scorer.Score(p.Attributes(), scoring.WeightOverrides{})
	assert.Equal(t, "Detail", body["title"])
	assert.Equal(t, float64(want.Score), body["ideality_score"])
	breakdown, ok := body["score_breakdown"].(map[string]interface{})
	require.True(t, ok)
	for _, dim := range scoring.Dimensions() {
		assert.Contains(t, breakdown, dim)
	}
	assert.Equal(t, float64(2025), body["evaluation_year"])
}

func TestGetPropertyErrors(t *testing.T) {
	env := setupTestRouter(t)
	assert.Equal(t, http.StatusBadRequest, env.do("GET", "/api/v1/properties/not-a-uuid", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/v1/properties/"+uuid.NewString(), "", nil).Code)
}

func TestExplainWithPresetAndOverride(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "Explain", 450000, 80)

	w := env.do("GET", "/api/v1/properties/"+p.ID.String()+"/explain?preset=family&price=0.5", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ExplainResponse
	decode(t, w, &resp)
	assert.Equal(t, "family", resp.Preset)
	assert.Equal(t, 0.5, resp.Weights.Price)
	assert.Equal(t, scoring.PresetWeights("family").Features, resp.Weights.Features)
	assert.Len(t, resp.Factors, 6)
	assert.NotEmpty(t, resp.Warning, "0.5 price weight pushes the sum above 1")
}

func TestExplainRejectsBadWeights(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "Explain", 450000, 80)

	assert.Equal(t, http.StatusBadRequest,
		env.do("GET", "/api/v1/properties/"+p.ID.String()+"/explain?price=abc", "", nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do("GET", "/api/v1/properties/"+p.ID.String()+"/explain?safety=-0.1", "", nil).Code)
}

func TestReport(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "Subject", 400000, 80)
	env.addProperty(t, "Neighbor", 500000, 60)

	w := env.do("GET", "/api/v1/properties/"+p.ID.String()+"/report", "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var body struct {
		IdealityScore int `json:"ideality_score"`
		Neighborhood  struct {
			AveragePrice    int64 `json:"average_price"`
			TotalProperties int   `json:"total_properties"`
		} `json:"neighborhood"`
		Bars []json.RawMessage `json:"bar_chart"`
	}
	decode(t, w, &body)
	assert.Equal(t, int64(500000), body.Neighborhood.AveragePrice)
	assert.Equal(t, 2, body.Neighborhood.TotalProperties)
	assert.Len(t, body.Bars, 6)
	assert.Contains(t, env.hermes.subjects, hermes.SubjectReportGenerated(p.ID.String()))

	assert.Equal(t, http.StatusNotFound, env.do("GET", "/api/v1/properties/"+uuid.NewString()+"/report", "", nil).Code)
}

func TestFacets(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do("GET", "/api/v1/facets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var f store.Facets
	decode(t, w, &f)
	assert.Equal(t, 1900, f.MinYear)
}

func TestComputePresetThenOverrides(t *testing.T) {
	env := setupTestRouter(t)
	body := `{
		"property": {"price": 100000, "sqft": 1500, "year_built": 2025, "beds": 3, "baths": 4.5,
			"location_score": 100, "safety_score": 100, "school_score": 100, "commute_minutes": 0},
		"preset": "budget",
		"weights": {"commute": 0.10, "price": 0.35}
	}`
	w := env.do("POST", "/api/v1/scoring/compute", body, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp ComputeResponse
	decode(t, w, &resp)
	assert.Equal(t, "budget", resp.Preset)
	assert.Equal(t, 0.35, resp.Weights.Price)
	assert.Equal(t, 0.10, resp.Weights.Commute)
	assert.Equal(t, scoring.PresetWeights("budget").Location, resp.Weights.Location)
	assert.Equal(t, 100, resp.Score)
	assert.Empty(t, resp.Warning)
}

func TestComputeUnknownPresetFallsBackToDefault(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do("POST", "/api/v1/scoring/compute", `{"property": {"price": 500000, "beds": 2}, "preset": "penthouse"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp ComputeResponse
	decode(t, w, &resp)
	assert.Equal(t, scoring.PresetDefault, resp.Preset)
	assert.Equal(t, scoring.DefaultWeights(), resp.Weights)
}

func TestComputeValidation(t *testing.T) {
	env := setupTestRouter(t)
	assert.Equal(t, http.StatusBadRequest, env.do("POST", "/api/v1/scoring/compute", `{not json`, nil).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do("POST", "/api/v1/scoring/compute", `{"property": {}, "weights": {"price": -1}}`, nil).Code)
}

func TestPresets(t *testing.T) {
	env := setupTestRouter(t)
	w := env.do("GET", "/api/v1/scoring/presets", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Default string                           `json:"default"`
		Presets map[string]scoring.WeightProfile `json:"presets"`
	}
	decode(t, w, &resp)
	assert.Equal(t, "default", resp.Default)
	assert.Len(t, resp.Presets, 5)
	assert.Equal(t, 0.40, resp.Presets["budget"].Price)
}

func TestFavoritesRequireUser(t *testing.T) {
	env := setupTestRouter(t)
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/v1/favorites", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, env.do("POST", "/api/v1/favorites", `{}`, nil).Code)
}

func TestFavoritesWithSessionToken(t *testing.T) {
	env := setupTestRouterWith(t, config.ServerConfig{JWTSecret: "session-secret"})
	p := env.addProperty(t, "Fav", 400000, 80)
	token, err := NewTokenVerifier("session-secret").Sign(Claims{UserID: "user-jwt"})
	require.NoError(t, err)

	spoofed := map[string]string{"X-User-ID": "user-jwt"}
	assert.Equal(t, http.StatusUnauthorized, env.do("GET", "/api/v1/favorites", "", spoofed).Code)

	auth := map[string]string{"Authorization": "Bearer " + token}
	w := env.do("POST", "/api/v1/favorites", `{"property_id":"`+p.ID.String()+`","action":"add"}`, auth)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, env.hermes.subjects, hermes.SubjectFavoriteAdded("user-jwt"))

	favs, err := env.store.ListFavorites(context.Background(), "user-jwt")
	require.NoError(t, err)
	assert.Len(t, favs, 1)
}

func TestFavoritesLifecycle(t *testing.T) {
	env := setupTestRouter(t)
	user := map[string]string{"X-User-ID": "user-1"}
	p := env.addProperty(t, "Fav", 400000, 80)
	add := `{"property_id":"` + p.ID.String() + `","action":"add"}`
	remove := `{"property_id":"` + p.ID.String() + `","action":"remove"}`

	w := env.do("POST", "/api/v1/favorites", add, user)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Contains(t, env.hermes.subjects, hermes.SubjectFavoriteAdded("user-1"))

	w = env.do("POST", "/api/v1/favorites", add, user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "already in favorites")

	assert.Equal(t, http.StatusOK, env.do("POST", "/api/v1/favorites", remove, user).Code)

	w = env.do("POST", "/api/v1/favorites", remove, user)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "not in favorites")
}

func TestFavoritesUpdateValidation(t *testing.T) {
	env := setupTestRouter(t)
	user := map[string]string{"X-User-ID": "user-1"}

	assert.Equal(t, http.StatusBadRequest,
		env.do("POST", "/api/v1/favorites", `{"property_id":"`+uuid.NewString()+`","action":"star"}`, user).Code)
	assert.Equal(t, http.StatusBadRequest,
		env.do("POST", "/api/v1/favorites", `{"property_id":"nope","action":"add"}`, user).Code)
	assert.Equal(t, http.StatusNotFound,
		env.do("POST", "/api/v1/favorites", `{"property_id":"`+uuid.NewString()+`","action":"add"}`, user).Code)
}

func TestFavoritesRankedWithFrontier(t *testing.T) {
	env := setupTestRouter(t)
	user := map[string]string{"X-User-ID": "user-1"}
	best := env.addProperty(t, "Best", 300000, 90)
	worse := env.addProperty(t, "Worse", 300000, 50)
	for _, p := range []*store.Property{worse, best} {
		require.NoError(t, env.store.AddFavorite(context.Background(), "user-1", p.ID))
	}

	w := env.do("GET", "/api/v1/favorites", "", user)
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Favorites []RankedFavorite `json:"favorites"`
	}
	decode(t, w, &resp)
	require.Len(t, resp.Favorites, 2)
	assert.Equal(t, best.ID, resp.Favorites[0].Property.ID)
	assert.True(t, resp.Favorites[0].OnFrontier)
	assert.False(t, resp.Favorites[1].OnFrontier, "identical except lower location score")
	assert.Greater(t, resp.Favorites[0].IdealityScore, resp.Favorites[1].IdealityScore)
}

func TestAdminRescore(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "Stale", 400000, 80)

	assert.Equal(t, http.StatusUnauthorized, env.do("POST", "/api/v1/admin/rescore", "", nil).Code)

	w := env.do("POST", "/api/v1/admin/rescore", "", map[string]string{"Authorization": "Bearer test-token"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var stats rescore.Stats
	decode(t, w, &stats)
	assert.Equal(t, 1, stats.Updated)
	require.NotNil(t, p.IdealityScore)
	assert.Equal(t, 2025, *p.ScoredYear)
}

func TestAdminRescoreProperty(t *testing.T) {
	env := setupTestRouter(t)
	p := env.addProperty(t, "One", 400000, 80)
	auth := map[string]string{"Authorization": "Bearer test-token"}

	w := env.do("POST", "/api/v1/admin/properties/"+p.ID.String()+"/rescore", "", auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), `"score"`))

	assert.Equal(t, http.StatusNotFound,
		env.do("POST", "/api/v1/admin/properties/"+uuid.NewString()+"/rescore", "", auth).Code)
}
