// Package middleware provides HTTP middlewares for authentication, request
// logging and metrics.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/hatchling/journal/internal/auth"
	"github.com/hatchling/journal/internal/models"
)

type ctxKey string

const (
	userKey ctxKey = "user"
	roleKey ctxKey = "role"
)

// TokenParser verifies bearer tokens.
type TokenParser interface {
	Parse(token string, want auth.Kind) (*auth.Claims, error)
}

// BearerAuth is a middleware that requires a valid session token.
//
// The token is read from the "Authorization: Bearer <token>" header. On
// success the user ID and role from the token are stored in the request
// context, so they can be used downstream. Any failure answers 401.
func BearerAuth(parser TokenParser) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "authentication required")
				return
			}
			claims, err := parser.Parse(token, auth.KindSession)
			if err != nil {
				unauthorized(w, "invalid or expired token")
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), claims.UserID, claims.Role)))
		})
	}
}

// BearerToken returns the token of an "Authorization: Bearer" header, or an
// empty string.
func BearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// WithUser stores the authenticated user in ctx.
func WithUser(ctx context.Context, userID string, role models.Role) context.Context {
	ctx = context.WithValue(ctx, userKey, userID)
	return context.WithValue(ctx, roleKey, role)
}

// GetUserIDFromContext extracts the authenticated user ID from the request
// context. Returns an empty string if not found.
func GetUserIDFromContext(ctx context.Context) string {
	val := ctx.Value(userKey)
	if s, ok := val.(string); ok {
		return s
	}
	return ""
}

// GetRoleFromContext extracts the authenticated user's role.
func GetRoleFromContext(ctx context.Context) models.Role {
	if r, ok := ctx.Value(roleKey).(models.Role); ok {
		return r
	}
	return ""
}

func unauthorized(w http.ResponseWriter, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
