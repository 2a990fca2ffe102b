package http

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hatchling/journal/internal/middleware"
	"github.com/hatchling/journal/internal/models"
	"github.com/hatchling/journal/internal/service"
	"go.uber.org/zap"
)

// UserService defines the profile operations required by UserHandler.
type UserService interface {
	Get(ctx context.Context, callerID, id string) (*models.User, error)
	Update(ctx context.Context, callerID, id string, in service.UpdateUserInput) (*models.User, error)
}

// UserHandler serves the caller's own profile.
type UserHandler struct {
	UserService UserService
	Log         *zap.Logger
}

// Get handles GET /api/user/{id}.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	u, err := h.UserService.Get(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateUserRequest struct {
	Name           *string `json:"name" validate:"omitempty,min=1"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Avatar         *string `json:"avatar"`
	DefaultPrivacy *string `json:"default_privacy"`
	NudgeOptIn     *bool   `json:"nudge_opt_in"`
	NudgeFrequency *string `json:"nudge_frequency"`
}

// Update handles PATCH /api/user/{id}.
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	u, err := h.UserService.Update(r.Context(), middleware.GetUserIDFromContext(r.Context()), chi.URLParam(r, "id"),
		service.UpdateUserInput(req))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}
