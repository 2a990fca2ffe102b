package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hatchling/journal/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedIssuer(secret string, now time.Time) *Issuer {
	i := NewIssuer(secret)
	i.now = func() time.Time { return now }
	return i
}

func TestIssuer_RoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	i := fixedIssuer("secret", now)

	magic, err := i.IssueMagicLink("+15551234567")
	require.NoError(t, err)
	c, err := i.Parse(magic, KindMagicLink)
	require.NoError(t, err)
	assert.Equal(t, "+15551234567", c.Phone)
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, MagicLinkTTL, i.Remaining(c).Round(time.Second))

	session, err := i.IssueSession("u1", models.RoleCoParent)
	require.NoError(t, err)
	c, err = i.Parse(session, KindSession)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.UserID)
	assert.Equal(t, models.RoleCoParent, c.Role)
}

func TestIssuer_Rejects(t *testing.T) {
	now := time.Now()
	i := fixedIssuer("secret", now)

	magic, err := i.IssueMagicLink("+1555")
	require.NoError(t, err)
	session, err := i.IssueSession("u1", models.RoleParent)
	require.NoError(t, err)
	otherKey, err := fixedIssuer("other", now).IssueSession("u1", models.RoleParent)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour))},
		Kind:             KindSession, UserID: "u1",
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	noUser, err := i.sign(Claims{Kind: KindSession}, time.Hour)
	require.NoError(t, err)
	unknownKind, err := i.sign(Claims{Kind: "refresh", UserID: "u1"}, time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  Kind
		at    time.Time
	}{
		{"magic link used as session", magic, KindSession, now},
		{"session used as magic link", session, KindMagicLink, now},
		{"expired magic link", magic, KindMagicLink, now.Add(MagicLinkTTL + time.Minute)},
		{"expired session", session, KindSession, now.Add(25 * time.Hour)},
		{"wrong signature", otherKey, KindSession, now},
		{"unsigned", noneAlg, KindSession, now},
		{"garbage", "not.a.jwt", KindSession, now},
		{"empty", "", KindSession, now},
		{"session without user", noUser, KindSession, now},
		{"unknown kind", unknownKind, Kind("refresh"), now},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := fixedIssuer("secret", tt.at)
			_, err := p.Parse(tt.token, tt.want)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestIssuer_RemainingNeverNegative(t *testing.T) {
	now := time.Now()
	c := &Claims{RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(now.Add(-time.Minute))}}
	assert.Equal(t, time.Duration(0), fixedIssuer("s", now).Remaining(c))
	assert.Equal(t, time.Duration(0), fixedIssuer("s", now).Remaining(&Claims{}))
}
