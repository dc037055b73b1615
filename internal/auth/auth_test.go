package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"fintrack/internal/core"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func newTestTokens(t *testing.T, secret string, clock *fakeClock) *Tokens {
	t.Helper()
	tokens, err := NewTokens(secret, WithClock(clock.Now))
	if err != nil {
		t.Fatalf("NewTokens: %v", err)
	}
	return tokens
}

func TestNewTokensRequiresSecret(t *testing.T) {
	if _, err := NewTokens(""); !errors.Is(err, ErrMissingSecret) {
		t.Fatalf("expected ErrMissingSecret, got %v", err)
	}
}

func TestIssueAndValidate(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(t, testSecret, clock)

	token, expiresAt, err := tokens.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if want := clock.t.Add(7 * 24 * time.Hour); !expiresAt.Equal(want) {
		t.Fatalf("expiresAt = %v, want %v", expiresAt, want)
	}

	clock.t = clock.t.Add(TokenTTL - time.Minute)
	s, err := tokens.Validate(token)
	if err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if s.UserID != "user-1" || s.Email != "alice@example.com" {
		t.Fatalf("unexpected session %+v", s)
	}
}

func TestValidateRejectsForgedToken(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	forger := newTestTokens(t, "another-secret-another-secret-000", clock)
	tokens := newTestTokens(t, testSecret, clock)

	forged, _, err := forger.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	_, err = tokens.Validate(forged)
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if !errors.Is(err, core.ErrAuth) {
		t.Fatalf("token errors must wrap core.ErrAuth")
	}
	if TokenErrorKind(err) != "invalid" {
		t.Fatalf("kind = %q", TokenErrorKind(err))
	}
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	clock := &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	tokens := newTestTokens(t, testSecret, clock)

	token, _, err := tokens.Issue("user-1", "alice@example.com")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	clock.t = clock.t.Add(TokenTTL + time.Second)
	_, err = tokens.Validate(token)
	if !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
	if TokenErrorKind(err) != "expired" {
		t.Fatalf("kind = %q", TokenErrorKind(err))
	}
}

func TestValidateRejectsMalformedToken(t *testing.T) {
	tokens := newTestTokens(t, testSecret, &fakeClock{t: time.Now()})
	for _, raw := range []string{"", "not-a-jwt", "a.b.c"} {
		_, err := tokens.Validate(raw)
		if !errors.Is(err, ErrMalformedToken) {
			t.Fatalf("Validate(%q): expected ErrMalformedToken, got %v", raw, err)
		}
	}
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	tokens := newTestTokens(t, testSecret, clock)

	claims := Claims{
		UserID: "user-1",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(clock.t.Add(time.Hour)),
		},
	}
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatalf("sign none: %v", err)
	}
	if _, err := tokens.Validate(unsigned); !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected auth error for alg=none, got %v", err)
	}
}

func TestValidateRequiresExpiry(t *testing.T) {
	tokens := newTestTokens(t, testSecret, &fakeClock{t: time.Now()})
	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{UserID: "user-1"}).SignedString([]byte(testSecret))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if _, err := tokens.Validate(noExp); !errors.Is(err, core.ErrAuth) {
		t.Fatalf("expected rejection of token without exp, got %v", err)
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("s3cret!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if strings.Contains(hash, "s3cret!") {
		t.Fatalf("hash leaks plaintext")
	}

	ok, err := CheckPassword("s3cret!", hash)
	if err != nil || !ok {
		t.Fatalf("CheckPassword(correct) = %v, %v", ok, err)
	}
	ok, err = CheckPassword("wrong", hash)
	if err != nil || ok {
		t.Fatalf("CheckPassword(wrong) = %v, %v", ok, err)
	}
	if _, err := CheckPassword("s3cret!", "not-a-bcrypt-hash"); err == nil {
		t.Fatalf("expected error for malformed hash")
	}
}

func TestRouteRulesDecide(t *testing.T) {
	rules := DefaultRouteRules()
	cases := []struct {
		path  string
		state SessionState
		want  Action
	}{
		{"/dashboard", Unauthenticated, RedirectToLogin},
		{"/dashboard/stats", InvalidSession, RedirectToLogin},
		{"/dashboard", ValidSession, Allow},
		{"/transactions/abc", ValidSession, Allow},
		{"/transactions", Unauthenticated, RedirectToLogin},
		{"/auth/login", ValidSession, RedirectToLanding},
		{"/auth/login", Unauthenticated, Allow},
		{"/auth/login", InvalidSession, Allow},
		{"/auth/signup", InvalidSession, Allow},
		{"/dashboards", Unauthenticated, Allow},
		{"/", Unauthenticated, Allow},
		{"/healthz", InvalidSession, Allow},
	}
	for _, tc := range cases {
		if got := rules.Decide(tc.path, tc.state); got != tc.want {
			t.Errorf("Decide(%q, %s) = %s, want %s", tc.path, tc.state, got, tc.want)
		}
	}
}
