package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/password"
	"evorchestrator/backend/services/orchestrator/internal/repository"
)

const (
	msgAuthRequired = "Authentication required. Please login."
	msgUserGone     = "User not found. Please login again."
)

var (
	// ErrEmailInUse is returned when attempting to register duplicate email.
	ErrEmailInUse = errors.New("auth: email already registered")
	// ErrInvalidCredentials represents login failure.
	ErrInvalidCredentials = errors.New("auth: invalid credentials")
)

// UserRepository defines storage contract used by the service.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	UpsertByEmail(ctx context.Context, email, name string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// OAuthInput is the identity asserted by the web tier after a Google sign-in.
type OAuthInput struct {
	Email        string
	Name         string
	ClientSecret string
}

// AuthSession is an authenticated user with its bearer token.
type AuthSession struct {
	User  *models.User
	Token string
}

// AuthService contains registration, login and request authentication logic.
type AuthService struct {
	repo         UserRepository
	hasher       password.Hasher
	tokenizer    *TokenService
	clientSecret string
	logger       *zap.Logger
}

// NewAuthService builds AuthService. An empty clientSecret disables the OAuth caller check.
func NewAuthService(repo UserRepository, hasher password.Hasher, tokenizer *TokenService, clientSecret string, logger *zap.Logger) *AuthService {
	return &AuthService{
		repo:         repo,
		hasher:       hasher,
		tokenizer:    tokenizer,
		clientSecret: clientSecret,
		logger:       logger,
	}
}

// GoogleSignIn upserts the user asserted by the OAuth provider and issues a token.
func (s *AuthService) GoogleSignIn(ctx context.Context, in OAuthInput) (*AuthSession, error) {
	if s.clientSecret != "" && subtle.ConstantTimeCompare([]byte(in.ClientSecret), []byte(s.clientSecret)) != 1 {
		return nil, Unauthenticated("Invalid client credentials")
	}

	email := strings.ToLower(strings.TrimSpace(in.Email))
	name := strings.TrimSpace(in.Name)
	if email == "" || name == "" {
		return nil, Validation("Email and name are required")
	}

	user, err := s.repo.UpsertByEmail(ctx, email, name)
	if err != nil {
		return nil, Internal("Authentication failed", err)
	}

	token, err := s.tokenizer.Issue(user)
	if err != nil {
		return nil, Internal("Authentication failed", err)
	}

	s.logger.Info("oauth sign-in", zap.Int64("user_id", user.ID))
	return &AuthSession{User: user, Token: token}, nil
}

// Signup registers a new password user.
func (s *AuthService) Signup(ctx context.Context, email, name, plain string) (*AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return nil, Validation("Email and password are required")
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return nil, Duplicate("Email already registered", ErrEmailInUse)
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return nil, Internal("Failed to create user", err)
	}

	hash, err := s.hasher.Hash(plain)
	if err != nil {
		switch {
		case errors.Is(err, password.ErrTooShort):
			return nil, Validation(fmt.Sprintf("Password must be at least %d characters", password.MinLength))
		case errors.Is(err, password.ErrTooLong):
			return nil, Validation(fmt.Sprintf("Password must be at most %d bytes", password.MaxBytes))
		}
		return nil, Internal("Failed to create user", err)
	}

	user := &models.User{
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: hash,
		Role:         models.RoleUser,
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, Internal("Failed to create user", err)
	}

	token, err := s.tokenizer.Issue(user)
	if err != nil {
		return nil, Internal("Failed to create user", err)
	}

	s.logger.Info("user signed up", zap.Int64("user_id", user.ID), zap.String("email", user.Email))
	return &AuthSession{User: user, Token: token}, nil
}

// Login authenticates a password user and produces a JWT.
func (s *AuthService) Login(ctx context.Context, email, plain string) (*AuthSession, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || plain == "" {
		return nil, Validation("Email and password are required")
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, Unauthenticated("Invalid credentials")
		}
		return nil, Internal("Failed to login", err)
	}

	// OAuth-only accounts have no password hash.
	if user.PasswordHash == "" || s.hasher.Compare(user.PasswordHash, plain) != nil {
		return nil, Unauthenticated("Invalid credentials")
	}

	token, err := s.tokenizer.Issue(user)
	if err != nil {
		return nil, Internal("Failed to login", err)
	}
	return &AuthSession{User: user, Token: token}, nil
}

// AuthenticateToken resolves a bearer token to its stored user.
func (s *AuthService) AuthenticateToken(ctx context.Context, token string) (*models.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, Unauthenticated(msgAuthRequired)
	}
	claims, err := s.tokenizer.Verify(token)
	if err != nil {
		return nil, Unauthenticated(msgAuthRequired)
	}
	userID, _ := claims.UserID()
	return s.resolve(s.repo.GetByID(ctx, userID))
}

// AuthenticateEmail resolves a bare e-mail identity. Only used when header identities are enabled.
func (s *AuthService) AuthenticateEmail(ctx context.Context, email string) (*models.User, error) {
	if strings.TrimSpace(email) == "" {
		return nil, Unauthenticated(msgAuthRequired)
	}
	return s.resolve(s.repo.GetByEmail(ctx, email))
}

func (s *AuthService) resolve(user *models.User, err error) (*models.User, error) {
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, Unauthenticated(msgUserGone)
		}
		return nil, Internal("Authentication failed", err)
	}
	return user, nil
}
