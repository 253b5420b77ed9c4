// Package middleware provides HTTP middleware for the catalog API.
package middleware

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"

	catalogapp "github.com/williamsiker/practicas/internal/application/catalog"
	"github.com/williamsiker/practicas/internal/config"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// ActorContextKey is the context key for the authenticated actor.
	ActorContextKey contextKey = "actor"
)

// Principal is the caller an API key resolves to.
type Principal struct {
	// Name is the friendly name of the key.
	Name  string
	Actor catalogapp.Actor
}

type apiKey struct {
	secret    []byte
	principal Principal
}

// Auth returns middleware that resolves the X-API-Key header, or a bearer
// token, to an actor. Requests without a known key get 401.
func Auth(keys []config.APIKeyConfig) func(http.Handler) http.Handler {
	known := make([]apiKey, 0, len(keys))
	for _, k := range keys {
		role, err := catalogapp.ParseRole(k.Role)
		if err != nil || k.Key == "" || k.ActorID <= 0 {
			slog.Warn("ignoring invalid api key", "name", k.Name, "actor_id", k.ActorID)
			continue
		}
		known = append(known, apiKey{
			secret: []byte(k.Key),
			principal: Principal{
				Name:  k.Name,
				Actor: catalogapp.Actor{ID: k.ActorID, Role: role},
			},
		})
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := requestAPIKey(r)
			if presented == "" {
				unauthorized(w, "missing API key")
				return
			}
			p, ok := lookup(known, presented)
			if !ok {
				unauthorized(w, "invalid API key")
				return
			}
			ctx := context.WithValue(r.Context(), ActorContextKey, p)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestAPIKey reads X-API-Key first, then an Authorization bearer token.
func requestAPIKey(r *http.Request) string {
	if key := strings.TrimSpace(r.Header.Get("X-API-Key")); key != "" {
		return key
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}

func lookup(keys []apiKey, presented string) (Principal, bool) {
	candidate := []byte(presented)
	for _, k := range keys {
		if subtle.ConstantTimeCompare(k.secret, candidate) == 1 {
			return k.principal, true
		}
	}
	return Principal{}, false
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="catalog"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + message + `","code":"authentication"}`))
}

// PrincipalFromContext returns the authenticated principal, if any.
func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ActorContextKey).(Principal)
	return p, ok
}

// ActorFromContext returns the authenticated actor or the zero Actor.
func ActorFromContext(ctx context.Context) catalogapp.Actor {
	p, _ := PrincipalFromContext(ctx)
	return p.Actor
}

// WithActor returns a context carrying actor. Tests and internal callers use
// it to skip key resolution.
func WithActor(ctx context.Context, actor catalogapp.Actor) context.Context {
	return context.WithValue(ctx, ActorContextKey, Principal{Actor: actor})
}
