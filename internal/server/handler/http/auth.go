package http

import (
	"context"
	"net/http"

	"github.com/hatchling/journal/internal/middleware"
	"github.com/hatchling/journal/internal/models"
	"github.com/hatchling/journal/internal/service"
	"go.uber.org/zap"
)

// AuthService defines the login operations required by AuthHandler.
type AuthService interface {
	RequestLogin(ctx context.Context, phone string) error
	Verify(ctx context.Context, token string) (*service.VerifyResult, error)
	CreateAccount(ctx context.Context, token string, in service.CreateAccountInput) (*models.User, string, error)
}

// AuthHandler handles phone magic-link login and account creation.
type AuthHandler struct {
	AuthService AuthService
	Log         *zap.Logger
}

type loginRequest struct {
	PhoneNumber string `json:"phone_number" validate:"required"`
}

// Login handles POST /api/auth/login. It texts a magic link to the phone.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if err := h.AuthService.RequestLogin(r.Context(), req.PhoneNumber); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message":      "Login link sent successfully",
		"phone_number": req.PhoneNumber,
	})
}

// Verify handles GET /api/auth/verify?token=. Known users receive a
// session token; unknown phones are told to create an account.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeMessage(w, http.StatusBadRequest, "token is required")
		return
	}

	res, err := h.AuthService.Verify(r.Context(), token)
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	if res.IsNewUser {
		writeJSON(w, http.StatusOK, map[string]any{
			"message":      "Account creation required",
			"phone_number": res.PhoneNumber,
			"is_new_user":  true,
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":     "Login successful",
		"token":       res.Token,
		"user_id":     res.UserID,
		"is_new_user": false,
	})
}

type createAccountRequest struct {
	Token          string  `json:"token"`
	Name           string  `json:"name" validate:"required"`
	PhoneNumber    string  `json:"phone_number" validate:"required"`
	Email          *string `json:"email" validate:"omitempty,email"`
	Role           string  `json:"role" validate:"omitempty,oneof=parent co_parent caregiver"`
	DefaultPrivacy string  `json:"default_privacy" validate:"omitempty,oneof=private shared public"`
	NudgeOptIn     *bool   `json:"nudge_opt_in"`
	NudgeFrequency string  `json:"nudge_frequency" validate:"omitempty,oneof=daily weekly occasionally"`
}

// CreateAccount handles POST /api/auth/create-account. The magic-link
// token comes from the body or the bearer header.
func (h *AuthHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	token := req.Token
	if token == "" {
		token = middleware.BearerToken(r)
	}
	if token == "" {
		writeMessage(w, http.StatusUnauthorized, "authentication required")
		return
	}

	u, session, err := h.AuthService.CreateAccount(r.Context(), token, service.CreateAccountInput{
		Name:           req.Name,
		PhoneNumber:    req.PhoneNumber,
		Email:          req.Email,
		Role:           req.Role,
		DefaultPrivacy: req.DefaultPrivacy,
		NudgeOptIn:     req.NudgeOptIn,
		NudgeFrequency: req.NudgeFrequency,
	})
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{
		"message": "Account created successfully",
		"token":   session,
		"user_id": u.ID,
	})
}
