package http

import (
	"context"
	"io"
	"net/http"

	"github.com/hatchling/journal/internal/billing"
	"github.com/hatchling/journal/internal/middleware"
	"go.uber.org/zap"
)

// maxWebhookBody bounds Stripe event payloads.
const maxWebhookBody = 64 << 10

// BillingService defines the subscription operations required by BillingHandler.
type BillingService interface {
	HandleWebhook(ctx context.Context, payload []byte, signature string) error
	Checkout(ctx context.Context, userID string, plan billing.Plan) (string, error)
}

// BillingHandler serves the Stripe webhook and checkout endpoints.
type BillingHandler struct {
	BillingService BillingService
	Log            *zap.Logger
}

// Webhook handles POST /api/stripe/webhook.
func (h *BillingHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.BillingService.HandleWebhook(r.Context(), payload, r.Header.Get("Stripe-Signature")); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=monthly annual"`
}

// Checkout handles POST /api/billing/checkout.
func (h *BillingHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	url, err := h.BillingService.Checkout(r.Context(), middleware.GetUserIDFromContext(r.Context()), billing.Plan(req.Plan))
	if err != nil {
		writeError(w, r, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
