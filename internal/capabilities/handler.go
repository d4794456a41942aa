package capabilities

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

// Handler exposes the capability table and the override form endpoints.
type Handler struct {
	logger  *slog.Logger
	service *Service
	authz   authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, authz authz.Middleware) *Handler {
	return &Handler{logger: logger, service: service, authz: authz}
}

// MountRoutes registers capability routes under the users subtree.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAny(shared.PermCapabilitiesView, shared.PermUsersView))
		r.Get("/{userID}/capabilities", h.showTable)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.authz.RequireAll(shared.PermCapabilitiesEdit))
		r.Post("/{userID}/capabilities", h.apply)
	})
}

type tableResponse struct {
	UserID int64       `json:"user_id"`
	Groups []GroupView `json:"groups"`
}

func (h *Handler) showTable(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	groups, err := h.service.Table(r.Context(), userID)
	if err != nil {
		if !errors.Is(err, shared.ErrNotFound) {
			h.logger.Error("capability table", slog.Int64("user_id", userID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tableResponse{UserID: userID, Groups: groups})
}

// apply consumes the capability form: one field per capability holding
// "yes", "no" or empty, plus the reset_defaults flag.
func (h *Handler) apply(w http.ResponseWriter, r *http.Request) {
	userID, err := userIDParam(r)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid user id")
		return
	}
	if err := r.ParseForm(); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed form payload")
		return
	}

	actorID := shared.ActorFromContext(r.Context())
	sub := ParseSubmission(r.PostForm)

	if err := h.service.Apply(r.Context(), actorID, userID, sub); err != nil {
		switch {
		case errors.Is(err, shared.ErrPermissionDenied), errors.Is(err, shared.ErrNotFound):
			h.logger.Warn("capability apply rejected", slog.Int64("actor_id", actorID), slog.Int64("user_id", userID), slog.Any("error", err))
		default:
			h.logger.Error("capability apply", slog.Int64("actor_id", actorID), slog.Int64("user_id", userID), slog.Any("error", err))
		}
		httpx.RespondError(w, err)
		return
	}

	groups, err := h.service.Table(r.Context(), userID)
	if err != nil {
		h.logger.Error("capability table refresh", slog.Int64("user_id", userID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, tableResponse{UserID: userID, Groups: groups})
}

func userIDParam(r *http.Request) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
}
