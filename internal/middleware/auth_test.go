package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hatchling/journal/internal/auth"
	"github.com/hatchling/journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dummyHandler is a placeholder that records if it was called and the context it received.
type dummyHandler struct {
	called bool
	ctx    context.Context
}

func (d *dummyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	d.called = true
	d.ctx = r.Context()
	w.WriteHeader(http.StatusOK)
}

func TestBearerAuth(t *testing.T) {
	issuer := auth.NewIssuer("secret")
	session, err := issuer.IssueSession("alice", models.RoleCaregiver)
	require.NoError(t, err)
	magic, err := issuer.IssueMagicLink("+15551234567")
	require.NoError(t, err)

	tests := []struct {
		name       string
		header     string
		wantCalled bool
		wantCode   int
		wantBody   string
	}{
		{"valid session", "Bearer " + session, true, http.StatusOK, ""},
		{"lowercase scheme", "bearer " + session, true, http.StatusOK, ""},
		{"missing header", "", false, http.StatusUnauthorized, `{"error":"authentication required"}`},
		{"basic scheme", "Basic Zm9vOmJhcg==", false, http.StatusUnauthorized, `{"error":"authentication required"}`},
		{"magic link is not a session", "Bearer " + magic, false, http.StatusUnauthorized, `{"error":"invalid or expired token"}`},
		{"garbage", "Bearer abc.def.ghi", false, http.StatusUnauthorized, `{"error":"invalid or expired token"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dummy := &dummyHandler{}
			h := BearerAuth(issuer)(dummy)
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/entries", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantCalled, dummy.called)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantCalled {
				assert.Equal(t, "alice", GetUserIDFromContext(dummy.ctx))
				assert.Equal(t, models.RoleCaregiver, GetRoleFromContext(dummy.ctx))
			} else {
				assert.JSONEq(t, tt.wantBody, rec.Body.String())
			}
		})
	}
}

func TestGetUserIDFromContext(t *testing.T) {
	// no value
	empty := GetUserIDFromContext(context.Background())
	if empty != "" {
		t.Errorf("expected empty string for missing user, got '%s'", empty)
	}
	assert.Equal(t, models.Role(""), GetRoleFromContext(context.Background()))

	// with value
	ctx := WithUser(context.Background(), "bob", models.RoleParent)
	val := GetUserIDFromContext(ctx)
	if val != "bob" {
		t.Errorf("expected 'bob', got '%s'", val)
	}
	assert.Equal(t, models.RoleParent, GetRoleFromContext(ctx))
}
