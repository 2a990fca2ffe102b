package http

import (
	"context"
	"net/http"
	"net/url"

	"github.com/hatchling/journal/internal/models"
	"github.com/hatchling/journal/internal/service"
	"go.uber.org/zap"
)

const emptyTwiML = `<?xml version="1.0" encoding="UTF-8"?><Response/>`

// SMSService defines the inbound message handling required by SMSHandler.
type SMSService interface {
	Handle(ctx context.Context, msg service.InboundSMS) (*models.Entry, error)
}

// SignatureValidator checks X-Twilio-Signature.
type SignatureValidator interface {
	Valid(fullURL string, form url.Values, signature string) bool
}

// SMSHandler receives the Twilio messaging webhook.
type SMSHandler struct {
	SMSService SMSService
	// Validator is nil when no Twilio auth token is configured.
	Validator SignatureValidator
	// WebhookURL is the public URL Twilio signs. When empty it is rebuilt
	// from the request.
	WebhookURL string
	Log        *zap.Logger
}

// Webhook handles POST /api/sms/webhook. Twilio retries on anything but
// 2xx, so every outcome is answered with 200 and an empty TwiML document.
func (h *SMSHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	defer func() {
		w.Header().Set("Content-Type", "text/xml")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(emptyTwiML))
	}()

	if err := r.ParseForm(); err != nil {
		h.Log.Warn("malformed sms webhook", zap.Error(err))
		return
	}
	if h.Validator != nil && !h.Validator.Valid(h.signedURL(r), r.PostForm, r.Header.Get("X-Twilio-Signature")) {
		h.Log.Warn("rejected sms webhook with invalid signature", zap.String("remote_addr", r.RemoteAddr))
		return
	}

	msg, err := service.ParseInbound(r.PostForm)
	if err != nil {
		h.Log.Warn("malformed sms webhook", zap.Error(err))
		return
	}
	e, err := h.SMSService.Handle(r.Context(), msg)
	if err != nil {
		h.Log.Error("failed to process sms", zap.String("from", msg.From), zap.Error(err))
		return
	}
	if e != nil {
		h.Log.Info("created entry from sms", zap.String("entry_id", e.ID), zap.String("user_id", e.AuthorID))
	}
}

func (h *SMSHandler) signedURL(r *http.Request) string {
	if h.WebhookURL != "" {
		return h.WebhookURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.RequestURI()
}
