// Package sms talks to Twilio: outbound messages, media downloads and
// inbound webhook signature checks.
package sms

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	twilio "github.com/twilio/twilio-go/client"
	"go.uber.org/zap"
)

// Sender delivers a text message.
type Sender interface {
	Send(ctx context.Context, to, body string) error
}

// Client is a minimal Twilio REST client.
type Client struct {
	http       *resty.Client
	accountSID string
	from       string
}

// NewClient creates a Client for the account. apiURL is normally
// https://api.twilio.com.
func NewClient(apiURL, accountSID, authToken, from string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(apiURL, "/")).
		SetBasicAuth(accountSID, authToken).
		SetTimeout(timeout)
	return &Client{http: c, accountSID: accountSID, from: from}
}

type apiError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Send posts a message from the configured number.
func (c *Client) Send(ctx context.Context, to, body string) error {
	var apiErr apiError
	resp, err := c.http.R().
		SetContext(ctx).
		SetFormData(map[string]string{"To": to, "From": c.from, "Body": body}).
		SetError(&apiErr).
		Post("/2010-04-01/Accounts/" + url.PathEscape(c.accountSID) + "/Messages.json")
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("send sms: status %d: %s", resp.StatusCode(), apiErr.Message)
	}
	return nil
}

// DownloadMedia fetches a message attachment. Twilio media URLs require the
// account credentials.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	resp, err := c.http.R().SetContext(ctx).Get(mediaURL)
	if err != nil {
		return nil, fmt.Errorf("download media: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("download media: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}

// LogSender stands in for Twilio when no credentials are configured.
type LogSender struct {
	Log *zap.Logger
}

// Send logs the message instead of delivering it.
func (s LogSender) Send(_ context.Context, to, body string) error {
	s.Log.Info("sms delivery disabled, message not sent", zap.String("to", to), zap.String("body", body))
	return nil
}

// Validator checks the X-Twilio-Signature header of inbound webhooks.
type Validator struct {
	v twilio.RequestValidator
}

// NewValidator creates a Validator for the account auth token.
func NewValidator(authToken string) *Validator {
	return &Validator{v: twilio.NewRequestValidator(authToken)}
}

// Valid reports whether signature matches the full request URL and the
// posted form parameters.
func (v *Validator) Valid(fullURL string, form url.Values, signature string) bool {
	params := make(map[string]string, len(form))
	for k := range form {
		params[k] = form.Get(k)
	}
	return v.v.Validate(fullURL, params, signature)
}
