package services

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

const minPasswordLength = 8

// LoginResult is a freshly issued session.
type LoginResult struct {
	Token     string
	ExpiresAt time.Time
	User      core.User
}

// AuthService verifies credentials and issues session tokens.
type AuthService struct {
	users  storage.UserStore
	tokens *auth.Tokens
	logger *log.Logger
	now    func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

func NewAuthService(users storage.UserStore, tokens *auth.Tokens, logger *log.Logger) *AuthService {
	if logger == nil {
		logger = log.Discard()
	}
	return &AuthService{
		users:  users,
		tokens: tokens,
		logger: logger.WithComponent(log.ComponentAuth),
		now:    time.Now,
	}
}

// Login checks email and password and returns a signed session token.
func (s *AuthService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	email = core.NormalizeEmail(email)
	if email == "" {
		return LoginResult{}, &core.ValidationError{Field: "email", Reason: "is required"}
	}
	if password == "" {
		return LoginResult{}, &core.ValidationError{Field: "password", Reason: "is required"}
	}

	user, err := s.users.GetUserByEmail(ctx, email)
	if errors.Is(err, core.ErrNotFound) {
		// Spend the same bcrypt time as a real comparison.
		_, _ = auth.CheckPassword(password, s.dummy())
		s.logger.InfoContext(ctx, "Login rejected", log.FieldOperation, log.OpLogin, "reason", "unknown_email")
		return LoginResult{}, auth.ErrInvalidCredentials
	}
	if err != nil {
		return LoginResult{}, fmt.Errorf("lookup user: %w", err)
	}

	ok, err := auth.CheckPassword(password, user.PasswordHash)
	if err != nil {
		return LoginResult{}, fmt.Errorf("verify password for user %s: %w", user.ID, err)
	}
	if !ok {
		s.logger.InfoContext(ctx, "Login rejected",
			log.FieldOperation, log.OpLogin,
			log.FieldUserID, user.ID,
			"reason", "wrong_password")
		return LoginResult{}, auth.ErrInvalidCredentials
	}

	token, expiresAt, err := s.tokens.Issue(user.ID, user.Email)
	if err != nil {
		return LoginResult{}, err
	}
	s.logger.InfoContext(ctx, "Login succeeded", log.FieldOperation, log.OpLogin, log.FieldUserID, user.ID)
	return LoginResult{Token: token, ExpiresAt: expiresAt, User: user}, nil
}

// CurrentUser returns the user a session belongs to. A session for a user
// that no longer exists yields core.ErrNotFound.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (core.User, error) {
	u, err := s.users.GetUserByID(ctx, userID)
	if err != nil {
		return core.User{}, fmt.Errorf("get user %s: %w", userID, err)
	}
	return u, nil
}

// CreateUser registers a user with a bcrypt-hashed password. Used by the
// seeding command; there is no HTTP registration.
func (s *AuthService) CreateUser(ctx context.Context, email, name, password string) (core.User, error) {
	email = core.NormalizeEmail(email)
	name = strings.TrimSpace(name)

	if addr, err := mail.ParseAddress(email); err != nil || addr.Address != email {
		return core.User{}, &core.ValidationError{Field: "email", Reason: "must be a valid address"}
	}
	if name == "" {
		return core.User{}, &core.ValidationError{Field: "name", Reason: "is required"}
	}
	if len(password) < minPasswordLength {
		return core.User{}, &core.ValidationError{Field: "password", Reason: fmt.Sprintf("must be at least %d characters", minPasswordLength)}
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return core.User{}, err
	}
	u := core.User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		CreatedAt:    s.now().UTC(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return core.User{}, fmt.Errorf("create user %s: %w", email, err)
	}
	s.logger.InfoContext(ctx, "User created", log.FieldOperation, log.OpCreate, log.FieldUserID, u.ID)
	return u, nil
}

func (s *AuthService) dummy() string {
	s.dummyOnce.Do(func() {
		hash, err := auth.HashPassword("not-a-real-password")
		if err == nil {
			s.dummyHash = hash
		}
	})
	return s.dummyHash
}
