// Package billing integrates Stripe subscriptions: customer and checkout
// session creation, and webhook event verification.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hatchling/journal/internal/models"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Plan is a subscription price option.
type Plan string

const (
	PlanMonthly Plan = "monthly"
	PlanAnnual  Plan = "annual"
)

// TrialDays is the free trial granted on every new subscription.
const TrialDays = 14

// Webhook event types handled by the service.
const (
	EventCheckoutCompleted   = "checkout.session.completed"
	EventSubscriptionCreated = "customer.subscription.created"
	EventSubscriptionUpdated = "customer.subscription.updated"
	EventSubscriptionDeleted = "customer.subscription.deleted"
)

var (
	// ErrInvalidSignature is returned for webhook payloads that fail verification.
	ErrInvalidSignature = errors.New("invalid stripe signature")
	// ErrUnknownPlan is returned for a plan without a configured price.
	ErrUnknownPlan = errors.New("unknown plan")
)

// Event is a verified webhook event reduced to what the service needs.
type Event struct {
	ID   string
	Type string
	// CustomerID is the Stripe customer the event concerns.
	CustomerID string
	// UserID is the checkout client_reference_id, when present.
	UserID string
	// Status is the mapped subscription status for subscription events.
	Status models.SubscriptionStatus
}

// Config holds the Stripe settings.
type Config struct {
	SecretKey      string
	WebhookSecret  string
	MonthlyPriceID string
	AnnualPriceID  string
	// BaseURL is where checkout redirects back to.
	BaseURL string
	// Backends overrides the API endpoints, used in tests.
	Backends *stripe.Backends
}

// Gateway wraps the Stripe API client.
type Gateway struct {
	api           *client.API
	webhookSecret string
	prices        map[Plan]string
	baseURL       string
}

// NewGateway creates a Gateway.
func NewGateway(cfg Config) *Gateway {
	return &Gateway{
		api:           client.New(cfg.SecretKey, cfg.Backends),
		webhookSecret: cfg.WebhookSecret,
		prices: map[Plan]string{
			PlanMonthly: cfg.MonthlyPriceID,
			PlanAnnual:  cfg.AnnualPriceID,
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
	}
}

// CreateCustomer registers the user with Stripe and returns the customer id.
func (g *Gateway) CreateCustomer(ctx context.Context, u *models.User) (string, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(u.Name),
		Phone: stripe.String(u.PhoneNumber),
	}
	if u.Email != nil {
		params.Email = u.Email
	}
	params.Context = ctx
	params.AddMetadata("user_id", u.ID)

	c, err := g.api.Customers.New(params)
	if err != nil {
		return "", fmt.Errorf("create stripe customer: %w", err)
	}
	return c.ID, nil
}

// CheckoutURL starts a subscription checkout with a free trial and returns
// the hosted checkout page URL.
func (g *Gateway) CheckoutURL(ctx context.Context, customerID, userID string, plan Plan) (string, error) {
	price := g.prices[plan]
	if price == "" {
		return "", fmt.Errorf("%w: %q", ErrUnknownPlan, plan)
	}
	params := &stripe.CheckoutSessionParams{
		Customer:           stripe.String(customerID),
		ClientReferenceID:  stripe.String(userID),
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(price),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(TrialDays),
		},
		SuccessURL: stripe.String(g.baseURL + "/subscription/success"),
		CancelURL:  stripe.String(g.baseURL + "/subscription/cancel"),
	}
	params.Context = ctx

	s, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return s.URL, nil
}

// ParseEvent verifies the Stripe-Signature header and decodes the event.
func (g *Gateway) ParseEvent(payload []byte, signature string) (Event, error) {
	evt, err := webhook.ConstructEventWithOptions(payload, signature, g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return Event{}, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	out := Event{ID: evt.ID, Type: string(evt.Type)}
	switch out.Type {
	case EventCheckoutCompleted:
		var s stripe.CheckoutSession
		if err := json.Unmarshal(evt.Data.Raw, &s); err != nil {
			return Event{}, fmt.Errorf("decode checkout session: %w", err)
		}
		out.UserID = s.ClientReferenceID
		if s.Customer != nil {
			out.CustomerID = s.Customer.ID
		}
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(evt.Data.Raw, &sub); err != nil {
			return Event{}, fmt.Errorf("decode subscription: %w", err)
		}
		if sub.Customer != nil {
			out.CustomerID = sub.Customer.ID
		}
		out.Status = MapStatus(sub.Status)
		if out.Type == EventSubscriptionDeleted {
			out.Status = models.SubscriptionInactive
		}
	}
	return out, nil
}

// MapStatus collapses Stripe subscription states into account states.
func MapStatus(s stripe.SubscriptionStatus) models.SubscriptionStatus {
	switch s {
	case stripe.SubscriptionStatusActive, stripe.SubscriptionStatusTrialing:
		return models.SubscriptionActive
	default:
		return models.SubscriptionInactive
	}
}
