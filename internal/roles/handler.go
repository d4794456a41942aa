package roles

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/platform/httpx"
	"github.com/parleyhq/parley/internal/shared"
)

// Handler manages forum role endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers role routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermRolesView))
		r.Get("/", h.listRoles)
		r.Get("/{role}/capabilities", h.roleCapabilities)
	})
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		h.logger.Error("list roles", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"roles": roles})
}

func (h *Handler) roleCapabilities(w http.ResponseWriter, r *http.Request) {
	role := chi.URLParam(r, "role")
	caps, err := h.service.DefaultCapabilities(r.Context(), role)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("role capabilities", slog.String("role", role), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role": role, "capabilities": caps})
}
