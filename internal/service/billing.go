package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/hatchling/journal/internal/billing"
	"github.com/hatchling/journal/internal/models"
	"go.uber.org/zap"
)

// BillingUserRepository defines the user operations required by billing.
type BillingUserRepository interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
	SetStripeCustomer(ctx context.Context, id, customerID string) error
	SetSubscriptionStatus(ctx context.Context, customerID string, status models.SubscriptionStatus) error
}

// PaymentGateway is the subset of the Stripe gateway billing uses.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, u *models.User) (string, error)
	CheckoutURL(ctx context.Context, customerID, userID string, plan billing.Plan) (string, error)
	ParseEvent(payload []byte, signature string) (billing.Event, error)
}

// BillingService keeps subscription state in sync with Stripe.
type BillingService struct {
	users   BillingUserRepository
	gateway PaymentGateway
	log     *zap.Logger
}

// NewBillingService constructs a BillingService.
func NewBillingService(users BillingUserRepository, gateway PaymentGateway, log *zap.Logger) *BillingService {
	return &BillingService{users: users, gateway: gateway, log: log}
}

// HandleWebhook verifies and applies a Stripe event. Only a bad signature
// or a storage failure is returned as an error; events for unknown
// customers and unhandled types are acknowledged.
func (s *BillingService) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	evt, err := s.gateway.ParseEvent(payload, signature)
	if err != nil {
		return err
	}

	switch evt.Type {
	case billing.EventCheckoutCompleted:
		if evt.UserID == "" || evt.CustomerID == "" {
			s.log.Warn("checkout completed without user or customer", zap.String("event_id", evt.ID))
			return nil
		}
		err = s.users.SetStripeCustomer(ctx, evt.UserID, evt.CustomerID)
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated, billing.EventSubscriptionDeleted:
		err = s.users.SetSubscriptionStatus(ctx, evt.CustomerID, evt.Status)
	default:
		s.log.Debug("ignored stripe event", zap.String("type", evt.Type), zap.String("event_id", evt.ID))
		return nil
	}

	if errors.Is(err, models.ErrNotFound) {
		s.log.Warn("stripe event for unknown account",
			zap.String("type", evt.Type),
			zap.String("customer_id", evt.CustomerID),
			zap.String("user_id", evt.UserID),
		)
		return nil
	}
	if err != nil {
		return fmt.Errorf("apply %s: %w", evt.Type, err)
	}
	s.log.Info("applied stripe event", zap.String("type", evt.Type), zap.String("customer_id", evt.CustomerID))
	return nil
}

// Checkout starts a subscription checkout for the user and returns the
// hosted page URL. A Stripe customer is created on first use.
func (s *BillingService) Checkout(ctx context.Context, userID string, plan billing.Plan) (string, error) {
	if plan != billing.PlanMonthly && plan != billing.PlanAnnual {
		return "", models.Invalid("plan", "must be monthly or annual")
	}
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return "", err
	}

	customerID := deref(u.StripeCustomerID)
	if customerID == "" {
		customerID, err = s.gateway.CreateCustomer(ctx, u)
		if err != nil {
			return "", err
		}
		if err := s.users.SetStripeCustomer(ctx, u.ID, customerID); err != nil {
			return "", fmt.Errorf("save stripe customer: %w", err)
		}
	}

	return s.gateway.CheckoutURL(ctx, customerID, u.ID, plan)
}
