package handlers

import (
	"context"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"evorchestrator/backend/services/orchestrator/internal/http/middleware"
	"evorchestrator/backend/services/orchestrator/internal/models"
	"evorchestrator/backend/services/orchestrator/internal/service"
)

// AuthService is the account logic behind the auth endpoints.
type AuthService interface {
	GoogleSignIn(ctx context.Context, in service.OAuthInput) (*service.AuthSession, error)
	Signup(ctx context.Context, email, name, plain string) (*service.AuthSession, error)
	Login(ctx context.Context, email, plain string) (*service.AuthSession, error)
}

// AuthHandlers serves /api/auth.
type AuthHandlers struct {
	auth   AuthService
	logger *zap.Logger
}

// NewAuthHandlers returns handler struct.
func NewAuthHandlers(auth AuthService, logger *zap.Logger) *AuthHandlers {
	return &AuthHandlers{auth: auth, logger: logger}
}

type sessionResponse struct {
	User  *models.User `json:"user"`
	Token string       `json:"token"`
}

// Google handles POST /api/auth/google.
func (h *AuthHandlers) Google(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Image    string `json:"image"`
		GoogleID string `json:"googleId"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	session, err := h.auth.GoogleSignIn(r.Context(), service.OAuthInput{
		Email:        strings.TrimSpace(req.Email),
		Name:         strings.TrimSpace(req.Name),
		ClientSecret: r.Header.Get("X-Client-Secret"),
	})
	if err != nil {
		writeServiceError(w, h.logger, err, "Authentication failed")
		return
	}
	writeSuccess(w, http.StatusOK, sessionResponse{User: session.User, Token: session.Token}, "Google authentication successful")
}

// Signup handles POST /api/auth/signup.
func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Name     string `json:"name"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	session, err := h.auth.Signup(r.Context(), strings.TrimSpace(req.Email), strings.TrimSpace(req.Name), req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to create user")
		return
	}
	writeSuccess(w, http.StatusCreated, sessionResponse{User: session.User, Token: session.Token}, "Account created successfully")
}

// Login handles POST /api/auth/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}

	session, err := h.auth.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		writeServiceError(w, h.logger, err, "Failed to login")
		return
	}
	writeSuccess(w, http.StatusOK, sessionResponse{User: session.User, Token: session.Token}, "Login successful")
}

// Me handles GET /api/auth/me.
func (h *AuthHandlers) Me(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.UserFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Authentication required. Please login.")
		return
	}
	writeSuccess(w, http.StatusOK, user, "")
}
