package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/MikeSquared-Agency/Ideality/internal/config"
	"github.com/MikeSquared-Agency/Ideality/internal/hermes"
	"github.com/MikeSquared-Agency/Ideality/internal/metrics"
	"github.com/MikeSquared-Agency/Ideality/internal/report"
	"github.com/MikeSquared-Agency/Ideality/internal/rescore"
	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
	"github.com/MikeSquared-Agency/Ideality/internal/store"
)

func NewRouter(s store.Store, h hermes.Client, sc *scoring.Scorer, rw *rescore.Worker, m *metrics.Metrics, cfg config.APIConfig, srv config.ServerConfig, logger *slog.Logger) http.Handler {
	var verifier *TokenVerifier
	if srv.JWTSecret != "" {
		verifier = NewTokenVerifier(srv.JWTSecret)
	}

	r := chi.NewRouter()

	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(CORSMiddleware(cfg.AllowedOrigins))
	r.Use(RequestLogger(logger))
	r.Use(RateLimitMiddleware(cfg.RateLimitPerMinute, verifier))

	properties := NewPropertiesHandler(s, sc, m, cfg)
	explain := NewExplainHandler(s, sc)
	reports := NewReportHandler(report.NewBuilder(s, sc), h, m, logger)
	scoringH := NewScoringHandler(sc, m)
	favorites := NewFavoritesHandler(s, h, sc, m, logger)
	admin := NewAdminHandler(rw)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/properties", properties.List)
		r.Get("/properties/{id}", properties.Get)
		r.Get("/properties/{id}/explain", explain.Explain)
		r.Get("/properties/{id}/report", reports.Get)
		r.Get("/facets", properties.Facets)

		r.Post("/scoring/compute", scoringH.Compute)
		r.Get("/scoring/presets", scoringH.Presets)

		r.Group(func(r chi.Router) {
			r.Use(UserAuthMiddleware(verifier))
			r.Get("/favorites", favorites.List)
			r.Post("/favorites", favorites.Update)
		})

		r.Group(func(r chi.Router) {
			r.Use(AdminAuthMiddleware(srv.AdminToken))
			r.Post("/admin/rescore", admin.Rescore)
			r.Post("/admin/properties/{id}/rescore", admin.RescoreProperty)
		})
	})

	return r
}

// NewMetricsRouter serves health and Prometheus metrics from g.
func NewMetricsRouter(g prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	return r
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
