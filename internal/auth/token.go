// Package auth issues and verifies the signed tokens used for phone
// magic-link login and API sessions, and tracks one-time redemption.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/hatchling/journal/internal/models"
)

// Kind distinguishes what a token may be used for.
type Kind string

const (
	// KindMagicLink tokens are sent by SMS and exchanged for a session.
	KindMagicLink Kind = "magic_link"
	// KindSession tokens authenticate API requests.
	KindSession Kind = "auth"
)

const (
	MagicLinkTTL = 10 * time.Minute
	SessionTTL   = 24 * time.Hour
)

// ErrInvalidToken covers expired, malformed, wrongly signed and wrong-kind tokens.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims are the JWT claims shared by both token kinds.
type Claims struct {
	jwt.RegisteredClaims
	Kind   Kind        `json:"type"`
	Phone  string      `json:"phone_number,omitempty"`
	UserID string      `json:"user_id,omitempty"`
	Role   models.Role `json:"role,omitempty"`
}

// Issuer signs and parses HS256 tokens with a shared secret.
type Issuer struct {
	secret []byte
	now    func() time.Time
}

// NewIssuer creates an Issuer for secret.
func NewIssuer(secret string) *Issuer {
	return &Issuer{secret: []byte(secret), now: time.Now}
}

// IssueMagicLink returns a short-lived login token for phone.
func (i *Issuer) IssueMagicLink(phone string) (string, error) {
	return i.sign(Claims{Kind: KindMagicLink, Phone: phone}, MagicLinkTTL)
}

// IssueSession returns an API session token for the user.
func (i *Issuer) IssueSession(userID string, role models.Role) (string, error) {
	return i.sign(Claims{Kind: KindSession, UserID: userID, Role: role}, SessionTTL)
}

func (i *Issuer) sign(c Claims, ttl time.Duration) (string, error) {
	now := i.now()
	c.RegisteredClaims = jwt.RegisteredClaims{
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", c.Kind, err)
	}
	return token, nil
}

// Parse verifies token and checks that it is of kind want.
func (i *Issuer) Parse(token string, want Kind) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if claims.Kind != want {
		return nil, fmt.Errorf("%w: got %q token", ErrInvalidToken, claims.Kind)
	}

	switch claims.Kind {
	case KindMagicLink:
		if claims.Phone == "" {
			return nil, fmt.Errorf("%w: missing phone number", ErrInvalidToken)
		}
	case KindSession:
		if claims.UserID == "" {
			return nil, fmt.Errorf("%w: missing user id", ErrInvalidToken)
		}
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidToken, claims.Kind)
	}
	return claims, nil
}

// Remaining returns how long the token stays valid.
func (i *Issuer) Remaining(c *Claims) time.Duration {
	if c.ExpiresAt == nil {
		return 0
	}
	return max(c.ExpiresAt.Sub(i.now()), 0)
}
