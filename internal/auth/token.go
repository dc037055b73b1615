// Package auth issues and validates session tokens, verifies passwords and
// decides how requests are routed based on their session state.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

// TokenTTL is the lifetime of a session token and of the cookie carrying it.
const TokenTTL = 7 * 24 * time.Hour

var (
	ErrMissingSecret = errors.New("token signing secret is not configured")

	ErrInvalidToken   = fmt.Errorf("invalid token: %w", core.ErrAuth)
	ErrExpiredToken   = fmt.Errorf("expired token: %w", core.ErrAuth)
	ErrMalformedToken = fmt.Errorf("malformed token: %w", core.ErrAuth)

	// ErrInvalidCredentials covers both an unknown email and a wrong password.
	ErrInvalidCredentials = fmt.Errorf("invalid credentials: %w", core.ErrAuth)
)

// Claims is the signed payload of a session token.
type Claims struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

// Session is the identity extracted from a valid token.
type Session struct {
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Tokens signs and verifies HS256 session tokens with a single server secret.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

type Option func(*Tokens)

// WithClock replaces the time source, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tokens) {
		t.now = now
	}
}

// NewTokens fails with ErrMissingSecret when secret is empty. There is no
// fallback secret.
func NewTokens(secret string, opts ...Option) (*Tokens, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	t := &Tokens{
		secret: []byte(secret),
		ttl:    TokenTTL,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

// Issue mints a token for the user, valid for TokenTTL from now.
func (t *Tokens) Issue(userID, email string) (string, time.Time, error) {
	now := t.now()
	expiresAt := now.Add(t.ttl)
	claims := Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Validate verifies the signature and expiry of token and returns the
// session it carries.
func (t *Tokens) Validate(token string) (Session, error) {
	if token == "" {
		return Session{}, ErrMalformedToken
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Session{}, classify(err)
	}
	if claims.UserID == "" {
		return Session{}, ErrMalformedToken
	}

	s := Session{UserID: claims.UserID, Email: claims.Email}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
	}
	return s, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return fmt.Errorf("%w: %v", ErrMalformedToken, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("%w: %v", ErrExpiredToken, err)
	default:
		return fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
}

// TokenErrorKind names the token failure for logs: "invalid", "expired",
// "malformed" or "" when err is not a token error.
func TokenErrorKind(err error) string {
	switch {
	case errors.Is(err, ErrExpiredToken):
		return "expired"
	case errors.Is(err, ErrMalformedToken):
		return "malformed"
	case errors.Is(err, ErrInvalidToken):
		return "invalid"
	default:
		return ""
	}
}
