package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/golang-jwt/jwt/v5"
	"github.com/smallbiznis/storefront/internal/auth/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssueAndParse(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", time.Hour, func() time.Time { return now })

	raw, expiresAt, err := issuer.Issue(domain.Identity{AccountID: snowflake.ID(42), Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), expiresAt)

	identity, err := issuer.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, snowflake.ID(42), identity.AccountID)
	assert.Equal(t, "ada@example.com", identity.Email)
}

func TestParseExpired(t *testing.T) {
	now := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	issuer := NewIssuer("secret", time.Minute, func() time.Time { return now })

	raw, _, err := issuer.Issue(domain.Identity{AccountID: snowflake.ID(1)})
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	_, err = issuer.Parse(raw)
	if !errors.Is(err, domain.ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestParseRejectsForeignSignatures(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	other := NewIssuer("other", time.Hour, nil)

	raw, _, err := other.Issue(domain.Identity{AccountID: snowflake.ID(1)})
	require.NoError(t, err)

	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)

	_, err = issuer.Parse("not-a-token")
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}

func TestParseRejectsNoneAlgorithm(t *testing.T) {
	issuer := NewIssuer("secret", time.Hour, nil)
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "1",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	})
	raw, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	require.True(t, strings.HasSuffix(raw, "."))

	_, err = issuer.Parse(raw)
	assert.ErrorIs(t, err, domain.ErrInvalidToken)
}
