package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/parleyhq/parley/internal/shared"
)

// PermissionSource resolves an actor's granted platform permissions.
type PermissionSource interface {
	EffectivePermissions(ctx context.Context, userID int64) ([]string, error)
}

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Source PermissionSource
	Logger *slog.Logger
}

// RequireAny ensures the session actor holds at least one of the permissions.
func (m Middleware) RequireAny(perms ...string) func(http.Handler) http.Handler {
	normalized := normalize(perms)
	return m.require(normalized, hasAny)
}

// RequireAll ensures the session actor holds all of the permissions.
func (m Middleware) RequireAll(perms ...string) func(http.Handler) http.Handler {
	normalized := normalize(perms)
	return m.require(normalized, hasAll)
}

func (m Middleware) require(required []string, match func(granted, required []string) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID := shared.ActorFromContext(r.Context())
			if actorID == 0 {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			granted, err := m.Source.EffectivePermissions(r.Context(), actorID)
			if err != nil {
				if m.Logger != nil {
					m.Logger.Error("authz resolve permissions", slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if match(granted, required) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func normalize(perms []string) []string {
	unique := make(map[string]struct{}, len(perms))
	for _, p := range perms {
		p = strings.TrimSpace(strings.ToLower(p))
		if p == "" {
			continue
		}
		unique[p] = struct{}{}
	}
	normalized := make([]string, 0, len(unique))
	for p := range unique {
		normalized = append(normalized, p)
	}
	return normalized
}

func hasAny(granted, required []string) bool {
	set := grantedSet(granted)
	for _, r := range required {
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func hasAll(granted, required []string) bool {
	set := grantedSet(granted)
	for _, r := range required {
		if _, ok := set[r]; !ok {
			return false
		}
	}
	return true
}

func grantedSet(granted []string) map[string]struct{} {
	set := make(map[string]struct{}, len(granted))
	for _, p := range granted {
		set[strings.ToLower(p)] = struct{}{}
	}
	return set
}
