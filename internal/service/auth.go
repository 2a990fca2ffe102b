package service

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hatchling/journal/internal/auth"
	"github.com/hatchling/journal/internal/models"
	"go.uber.org/zap"
)

// AuthUserRepository defines the user lookups required by the auth service.
type AuthUserRepository interface {
	GetByPhone(ctx context.Context, phone string) (*models.User, error)
	Create(ctx context.Context, u *models.User) error
	TouchLastActive(ctx context.Context, id string, at time.Time) error
}

// TokenIssuer signs and verifies magic-link and session tokens.
type TokenIssuer interface {
	IssueMagicLink(phone string) (string, error)
	IssueSession(userID string, role models.Role) (string, error)
	Parse(token string, want auth.Kind) (*auth.Claims, error)
	Remaining(c *auth.Claims) time.Duration
}

// SMSSender delivers text messages.
type SMSSender interface {
	Send(ctx context.Context, to, body string) error
}

// AuthService implements phone magic-link login.
type AuthService struct {
	users    AuthUserRepository
	tokens   TokenIssuer
	redeemed auth.RedemptionStore
	sender   SMSSender
	baseURL  string
	log      *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService. baseURL is the public origin
// magic links point at.
func NewAuthService(
	users AuthUserRepository,
	tokens TokenIssuer,
	redeemed auth.RedemptionStore,
	sender SMSSender,
	baseURL string,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:    users,
		tokens:   tokens,
		redeemed: redeemed,
		sender:   sender,
		baseURL:  strings.TrimRight(baseURL, "/"),
		log:      log,
		now:      time.Now,
	}
}

// MagicLink builds the verification URL for token.
func (s *AuthService) MagicLink(token string) string {
	return s.baseURL + "/auth/verify?token=" + url.QueryEscape(token)
}

// RequestLogin texts a magic link to phone.
func (s *AuthService) RequestLogin(ctx context.Context, phone string) error {
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return models.Invalid("phone_number", "phone number is required")
	}
	token, err := s.tokens.IssueMagicLink(phone)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("Your Hatchling login link is here: %s (valid for 10 minutes)", s.MagicLink(token))
	if err := s.sender.Send(ctx, phone, body); err != nil {
		return fmt.Errorf("send magic link: %w", err)
	}
	return nil
}

// VerifyResult is the outcome of a magic-link verification. Known users
// get a session; unknown phones get IsNewUser and their phone number.
type VerifyResult struct {
	Token       string
	UserID      string
	IsNewUser   bool
	PhoneNumber string
}

// Verify exchanges a magic-link token. The token is single use for
// existing accounts. For a new phone it stays usable so account creation
// can redeem it.
func (s *AuthService) Verify(ctx context.Context, token string) (*VerifyResult, error) {
	if token == "" {
		return nil, models.Invalid("token", "token is required")
	}
	claims, err := s.tokens.Parse(token, auth.KindMagicLink)
	if err != nil {
		return nil, err
	}

	u, err := s.users.GetByPhone(ctx, claims.Phone)
	if errors.Is(err, models.ErrNotFound) {
		return &VerifyResult{IsNewUser: true, PhoneNumber: claims.Phone}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("verify: %w", err)
	}

	if err := s.redeem(ctx, claims); err != nil {
		return nil, err
	}
	if err := s.users.TouchLastActive(ctx, u.ID, s.now().UTC()); err != nil {
		s.log.Warn("failed to update last active", zap.String("user_id", u.ID), zap.Error(err))
	}

	session, err := s.tokens.IssueSession(u.ID, u.Role)
	if err != nil {
		return nil, err
	}
	return &VerifyResult{Token: session, UserID: u.ID}, nil
}

// CreateAccountInput is the profile submitted after verifying a new phone.
type CreateAccountInput struct {
	Name           string
	PhoneNumber    string
	Email          *string
	Role           string
	DefaultPrivacy string
	NudgeOptIn     *bool
	NudgeFrequency string
}

// CreateAccount registers the phone carried by a magic-link token and
// returns the new user with a session token.
func (s *AuthService) CreateAccount(ctx context.Context, token string, in CreateAccountInput) (*models.User, string, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.PhoneNumber = strings.TrimSpace(in.PhoneNumber)
	if in.Name == "" {
		return nil, "", models.Invalid("name", "name is required")
	}
	if in.PhoneNumber == "" {
		return nil, "", models.Invalid("phone_number", "phone number is required")
	}

	claims, err := s.tokens.Parse(token, auth.KindMagicLink)
	if err != nil {
		return nil, "", err
	}
	if claims.Phone != in.PhoneNumber {
		return nil, "", fmt.Errorf("%w: phone number does not match", auth.ErrInvalidToken)
	}

	now := s.now().UTC()
	u := &models.User{
		ID:                 uuid.NewString(),
		Name:               in.Name,
		PhoneNumber:        in.PhoneNumber,
		Email:              in.Email,
		Role:               models.RoleParent,
		Permissions:        []string{"edit"},
		DefaultPrivacy:     models.PrivacyPrivate,
		NudgeOptIn:         true,
		NudgeFrequency:     models.NudgeOccasionally,
		AccountCreated:     now,
		LastActive:         now,
		SubscriptionStatus: models.SubscriptionTrial,
	}
	if in.Role != "" {
		u.Role = models.Role(in.Role)
		if !u.Role.Valid() {
			return nil, "", models.Invalid("role", "must be one of parent, co_parent, caregiver")
		}
	}
	if in.DefaultPrivacy != "" {
		u.DefaultPrivacy = models.Privacy(in.DefaultPrivacy)
		if !u.DefaultPrivacy.Valid() {
			return nil, "", models.Invalid("default_privacy", "must be one of private, shared, public")
		}
	}
	if in.NudgeOptIn != nil {
		u.NudgeOptIn = *in.NudgeOptIn
	}
	if in.NudgeFrequency != "" {
		u.NudgeFrequency = models.NudgeFrequency(in.NudgeFrequency)
		if !u.NudgeFrequency.Valid() {
			return nil, "", models.Invalid("nudge_frequency", "must be one of daily, weekly, occasionally")
		}
	}

	_, err = s.users.GetByPhone(ctx, in.PhoneNumber)
	switch {
	case err == nil:
		return nil, "", fmt.Errorf("phone %s: %w", in.PhoneNumber, models.ErrAlreadyExists)
	case !errors.Is(err, models.ErrNotFound):
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	if err := s.redeem(ctx, claims); err != nil {
		return nil, "", err
	}
	if err := s.users.Create(ctx, u); err != nil {
		return nil, "", fmt.Errorf("create account: %w", err)
	}

	session, err := s.tokens.IssueSession(u.ID, u.Role)
	if err != nil {
		return nil, "", err
	}
	return u, session, nil
}

func (s *AuthService) redeem(ctx context.Context, claims *auth.Claims) error {
	ok, err := s.redeemed.Redeem(ctx, claims.ID, s.tokens.Remaining(claims))
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: link already used", auth.ErrInvalidToken)
	}
	return nil
}
