package users

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/platform/httpx"
	"github.com/parleyhq/parley/internal/shared"
)

// Handler manages user management endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermUsersView))
		r.Get("/", h.listUsers)
		r.Get("/{userID}", h.getUser)
	})
}

func (h *Handler) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		h.logger.Error("list users", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"users": users})
}

func (h *Handler) getUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	user, err := h.service.GetUser(r.Context(), id)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("get user", slog.Int64("user_id", id), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, user)
}
