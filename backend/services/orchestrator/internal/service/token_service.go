package service

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"evorchestrator/backend/services/orchestrator/internal/models"
)

const tokenIssuer = "ev-orchestrator"

var errNoSigningSecret = errors.New("token: signing secret is empty")

// Claims is the payload of a session token. The subject holds the user id.
type Claims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// UserID decodes the subject.
func (c *Claims) UserID() (int64, error) {
	id, err := strconv.ParseInt(c.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("token: invalid subject %q", c.Subject)
	}
	return id, nil
}

// TokenService signs and verifies HS256 session tokens.
type TokenService struct {
	secret    []byte
	expiresIn time.Duration
	parser    *jwt.Parser
	now       func() time.Time
}

// NewTokenService returns a TokenService. A non-positive lifetime means one day.
func NewTokenService(secret string, expiresIn time.Duration) *TokenService {
	if expiresIn <= 0 {
		expiresIn = 24 * time.Hour
	}
	t := &TokenService{secret: []byte(secret), expiresIn: expiresIn, now: time.Now}
	t.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return t.now() }),
	)
	return t
}

// Issue signs a session token for user.
func (t *TokenService) Issue(user *models.User) (string, error) {
	if len(t.secret) == 0 {
		return "", errNoSigningSecret
	}
	if user == nil || user.ID <= 0 {
		return "", errors.New("token: user id is required")
	}

	now := t.now().UTC()
	claims := Claims{
		Email: user.Email,
		Role:  user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.expiresIn)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify checks signature, issuer and expiry of token and returns its claims.
func (t *TokenService) Verify(token string) (*Claims, error) {
	if len(t.secret) == 0 {
		return nil, errNoSigningSecret
	}
	claims := &Claims{}
	if _, err := t.parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}); err != nil {
		return nil, err
	}
	if _, err := claims.UserID(); err != nil {
		return nil, err
	}
	return claims, nil
}
