package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/parleyhq/parley/internal/auth"
	"github.com/parleyhq/parley/internal/capabilities"
	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/roles"
	"github.com/parleyhq/parley/internal/shared"
	"github.com/parleyhq/parley/internal/users"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger         *slog.Logger
	Config         *Config
	SessionManager *shared.SessionManager
	CSRFManager    *shared.CSRFManager

	AuthHandler         *auth.Handler
	UsersHandler        *users.Handler
	RolesHandler        *roles.Handler
	CapabilitiesHandler *capabilities.Handler

	Metrics *observability.Metrics
}

// NewRouter constructs the chi.Router with Parley defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Use(chimw.Logger)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Route("/auth", func(r chi.Router) {
		params.AuthHandler.MountRoutes(r)
	})

	r.Route("/users", func(r chi.Router) {
		params.UsersHandler.MountRoutes(r)
		params.CapabilitiesHandler.MountRoutes(r)
	})

	r.Route("/roles", func(r chi.Router) {
		params.RolesHandler.MountRoutes(r)
	})

	return r
}
