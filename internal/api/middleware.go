package api

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/lifedash/lifedash/internal/api/respond"
	"github.com/lifedash/lifedash/internal/config"
)

type contextKey string

const userKey contextKey = "user"

// UserFrom returns the authenticated caller set by the identity middleware.
func UserFrom(ctx context.Context) string {
	u, _ := ctx.Value(userKey).(string)
	return u
}

// Identity enforces the X-Backend-Token shared secret and the X-User-Email
// allow-list: missing credentials are 401, unknown users 403.
func Identity(cfg *config.Config) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Backend-Token")
			email := r.Header.Get("X-User-Email")
			if token == "" || token != cfg.BackendSecret || email == "" {
				respond.Detail(w, http.StatusUnauthorized, "missing or invalid credentials")
				return
			}
			if !cfg.IsAllowed(email) {
				respond.Detail(w, http.StatusForbidden, "user not allowed")
				return
			}
			ctx := context.WithValue(r.Context(), userKey, email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Recovery converts panics into a 500 with the standard error body.
func Recovery(log zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					log.Error().Interface("panic", rec).
						Str("path", r.URL.Path).Msg("handler panicked")
					respond.Detail(w, http.StatusInternalServerError, "Internal error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}
