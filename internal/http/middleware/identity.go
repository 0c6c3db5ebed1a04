package middleware

import (
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"

	"mobile-home-delivery/internal/logx"
)

// Header names set by the upstream authenticating proxy.
const (
	HeaderDriverID = "X-Driver-ID"
	HeaderRole     = "X-Role"
	RoleAdmin      = "admin"
)

type ctxKey int

const actorKey ctxKey = iota

// Actor is the caller identity taken from request headers.
type Actor struct {
	ID    int64
	Admin bool
}

// ActorFrom returns the actor stored by RequireDriver.
func ActorFrom(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey).(Actor)
	return a, ok
}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey, a)
}

// RequireDriver rejects requests without a positive X-Driver-ID with 401.
func RequireDriver(logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := strconv.ParseInt(strings.TrimSpace(r.Header.Get(HeaderDriverID)), 10, 64)
			if err != nil || id <= 0 {
				logger.Warn("missing driver identity",
					logx.String("event", "auth_missing_driver"),
					logx.String("path", r.URL.Path),
				)
				deny(w, http.StatusUnauthorized, `{"error":"driver identity required"}`)
				return
			}
			a := Actor{ID: id, Admin: strings.EqualFold(strings.TrimSpace(r.Header.Get(HeaderRole)), RoleAdmin)}
			next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), a)))
		})
	}
}

// RequireAdmin answers 403 unless the actor carries the admin role. It must run after RequireDriver.
func RequireAdmin(logger logx.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			a, ok := ActorFrom(r.Context())
			if !ok || !a.Admin {
				logger.Warn("admin role required",
					logx.String("event", "auth_forbidden"),
					logx.String("path", r.URL.Path),
					logx.Int64("actor_id", a.ID),
				)
				deny(w, http.StatusForbidden, `{"error":"admin role required"}`)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func deny(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
