package auth

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-key-that-is-long-enough"

func newTestTokens(now time.Time) *Tokens {
	tk := NewTokens(testSecret, "guardrail-test", time.Hour)
	tk.now = func() time.Time { return now }
	return tk
}

func TestTokens_IssueAndValidate(t *testing.T) {
	now := time.Now()
	tk := newTestTokens(now)

	raw, err := tk.Issue("user-123", "sess-1")
	require.NoError(t, err)
	assert.Len(t, strings.Split(raw, "."), 3)

	claims, err := tk.Validate(raw)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.Equal(t, "sess-1", claims.SessionID)
	assert.Equal(t, "user-123", claims.Subject)
	assert.Equal(t, "guardrail-test", claims.Issuer)

	user, err := tk.ResolveUser(context.Background(), raw)
	require.NoError(t, err)
	assert.Equal(t, "user-123", user)
}

func TestTokens_IssueRequiresUser(t *testing.T) {
	_, err := newTestTokens(time.Now()).Issue("", "")
	assert.Error(t, err)
}

func TestTokens_DefaultTTL(t *testing.T) {
	assert.Equal(t, DefaultTokenTTL, NewTokens(testSecret, "", 0).ttl)
}

func TestTokens_Rejections(t *testing.T) {
	now := time.Now()
	tk := newTestTokens(now)
	valid, err := tk.Issue("user-123", "")
	require.NoError(t, err)

	other, err := tk.Issue("user-456", "")
	require.NoError(t, err)
	vp, op := strings.Split(valid, "."), strings.Split(other, ".")
	spliced := vp[0] + "." + op[1] + "." + vp[2]

	otherSecret, err := NewTokens("a-different-secret-entirely", "guardrail-test", time.Hour).Issue("user-123", "")
	require.NoError(t, err)

	otherIssuer, err := NewTokens(testSecret, "someone-else", time.Hour).Issue("user-123", "")
	require.NoError(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{UserID: "user-123"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	noUser, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "guardrail-test",
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
		want  error
	}{
		{"garbage", "not-a-jwt", ErrInvalidToken},
		{"empty", "", ErrInvalidToken},
		{"wrong secret", otherSecret, ErrInvalidToken},
		{"wrong issuer", otherIssuer, ErrInvalidToken},
		{"alg none", unsigned, ErrInvalidToken},
		{"no user id", noUser, ErrInvalidToken},
		{"spliced payload", spliced, ErrInvalidToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tk.Validate(tt.token)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestTokens_Expired(t *testing.T) {
	issued := time.Now().Add(-2 * time.Hour)
	raw, err := newTestTokens(issued).Issue("user-123", "")
	require.NoError(t, err)

	_, err = newTestTokens(time.Now()).Validate(raw)
	assert.ErrorIs(t, err, ErrExpiredToken)

	_, err = newTestTokens(time.Now()).ResolveUser(context.Background(), raw)
	assert.Error(t, err)
}
