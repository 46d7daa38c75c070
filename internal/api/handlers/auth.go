package handlers

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/seismolink/siteapi/internal/auth"
)

// AuthServiceInterface defines the admin login methods
type AuthServiceInterface interface {
	Login(ctx context.Context, key, email, password string) (*auth.Token, error)
}

// AuthHandler handles admin login
type AuthHandler struct {
	auth   AuthServiceInterface
	logger *zap.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(a AuthServiceInterface, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{auth: a, logger: logger}
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Success   bool      `json:"success"`
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Login handles POST /api/admin/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !DecodeJSON(w, r, &req) {
		return
	}

	if req.Email == "" || req.Password == "" {
		errs := map[string]string{}
		if req.Email == "" {
			errs["email"] = "is required"
		}
		if req.Password == "" {
			errs["password"] = "is required"
		}
		RenderValidation(w, errs)
		return
	}

	token, err := h.auth.Login(r.Context(), ClientIP(r), req.Email, req.Password)
	if err != nil {
		RenderServiceError(w, h.logger, err, "Login failed")
		return
	}

	RenderJSON(w, http.StatusOK, loginResponse{
		Success:   true,
		Token:     token.Token,
		ExpiresAt: token.ExpiresAt,
	})
}

// Verify handles GET /api/admin/verify. The admin middleware already
// checked the token.
func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	claims, ok := ClaimsFrom(r.Context())
	if !ok {
		RenderError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}

	RenderJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"subject":   claims.Subject,
		"expiresAt": claims.ExpiresAt,
	})
}
