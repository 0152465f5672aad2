package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTokenService(ttl time.Duration) *AccessTokenService {
	return NewAccessTokenService(&AccessTokenConfig{
		Secret: []byte("test-signing-secret"),
		TTL:    ttl,
		Issuer: "snipr-test",
	})
}

func TestAccessToken_RoundTrip(t *testing.T) {
	svc := newTokenService(time.Minute)

	token, err := svc.Issue("abc123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	assert.NoError(t, svc.Validate(token, "abc123"))
}

func TestAccessToken_WrongCode(t *testing.T) {
	svc := newTokenService(time.Minute)

	token, err := svc.Issue("abc123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Validate(token, "other-code"), ErrInvalidToken)
}

func TestAccessToken_Expired(t *testing.T) {
	svc := newTokenService(-time.Minute)

	token, err := svc.Issue("abc123")
	require.NoError(t, err)

	assert.ErrorIs(t, svc.Validate(token, "abc123"), ErrExpiredToken)
}

func TestAccessToken_Garbage(t *testing.T) {
	svc := newTokenService(time.Minute)

	assert.ErrorIs(t, svc.Validate("not-a-token", "abc123"), ErrInvalidToken)
}

func TestAccessToken_WrongSecret(t *testing.T) {
	token, err := newTokenService(time.Minute).Issue("abc123")
	require.NoError(t, err)

	other := NewAccessTokenService(&AccessTokenConfig{
		Secret: []byte("a-different-secret"),
		TTL:    time.Minute,
		Issuer: "snipr-test",
	})
	assert.ErrorIs(t, other.Validate(token, "abc123"), ErrInvalidToken)
}
