package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid access token")
	ErrExpiredToken = errors.New("access token expired")
)

// AccessTokenConfig configures short-lived tokens minted after a visitor
// verifies a link password, so follow-up visits to the same link skip the
// password prompt.
type AccessTokenConfig struct {
	Secret []byte
	TTL    time.Duration
	Issuer string
}

// AccessClaims binds a token to one short code.
type AccessClaims struct {
	Code string `json:"code"`
	jwt.RegisteredClaims
}

// AccessTokenService issues and validates link access tokens.
type AccessTokenService struct {
	config *AccessTokenConfig
}

func NewAccessTokenService(config *AccessTokenConfig) *AccessTokenService {
	return &AccessTokenService{config: config}
}

// Issue mints a signed token granting access to the given short code.
func (s *AccessTokenService) Issue(code string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Code: code,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.config.TTL)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.config.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}

	return signed, nil
}

// Validate checks a token's signature, expiry and short-code binding.
func (s *AccessTokenService) Validate(tokenString, code string) error {
	token, err := jwt.ParseWithClaims(tokenString, &AccessClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.config.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return ErrExpiredToken
		}
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(*AccessClaims)
	if !ok || !token.Valid || claims.Code != code {
		return ErrInvalidToken
	}

	return nil
}
