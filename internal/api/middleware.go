package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/cors"
)

// UserAuthMiddleware resolves the calling user. With a verifier it requires
// a valid session token; without one it trusts the X-User-ID header set by
// the auth gateway.
func UserAuthMiddleware(v *TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var userID string
			if v != nil {
				if claims, err := v.Verify(sessionToken(r)); err == nil {
					userID = claims.UserID
				}
			} else {
				userID = r.Header.Get("X-User-ID")
			}
			if userID == "" {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "authentication required"})
				return
			}
			if lu, ok := r.Context().Value(logUserKey{}).(*logUser); ok {
				lu.id = userID
			}
			next.ServeHTTP(w, r.WithContext(withUserID(r.Context(), userID)))
		})
	}
}

// CORSMiddleware allows browser clients from origins. An empty list leaves
// responses untouched.
func CORSMiddleware(origins []string) func(http.Handler) http.Handler {
	if len(origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Authorization", "Content-Type", "X-User-ID"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler
}

func AdminAuthMiddleware(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}
			auth := r.Header.Get("Authorization")
			if auth != "Bearer "+token {
				writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type logUserKey struct{}

// logUser is filled in by UserAuthMiddleware so the request log carries the
// authenticated user rather than whatever header the client sent.
type logUser struct{ id string }

func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chiMiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			lu := &logUser{}
			next.ServeHTTP(ww, r.WithContext(context.WithValue(r.Context(), logUserKey{}, lu)))
			logger.Info("request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"duration_ms", time.Since(start).Milliseconds(),
				"request_id", chiMiddleware.GetReqID(r.Context()),
				"user", lu.id,
			)
		})
	}
}

// RateLimitMiddleware limits each user (or client IP when anonymous) to
// requestsPerMinute. With a verifier only a valid session token identifies
// a user; otherwise the gateway's X-User-ID header does. A non-positive
// limit disables limiting.
func RateLimitMiddleware(requestsPerMinute int, v *TokenVerifier) func(http.Handler) http.Handler {
	if requestsPerMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(keyByUserOrIP(v)),
		httprate.WithLimitHandler(rateLimitExceeded),
	)
}

func keyByUserOrIP(v *TokenVerifier) httprate.KeyFunc {
	return func(r *http.Request) (string, error) {
		if v != nil {
			if claims, err := v.Verify(sessionToken(r)); err == nil {
				return "user:" + claims.UserID, nil
			}
			return httprate.KeyByRealIP(r)
		}
		if id := r.Header.Get("X-User-ID"); id != "" {
			return "user:" + id, nil
		}
		return httprate.KeyByRealIP(r)
	}
}

func rateLimitExceeded(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Retry-After", strconv.Itoa(60))
	writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "rate limit exceeded"})
}
