package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/whispernet/warden/core"
	"github.com/whispernet/warden/service"
)

// AuthHandlers contains HTTP handlers for auth endpoints
type AuthHandlers struct {
	authService *service.AuthService
	log         *zap.Logger
}

// NewAuthHandlers creates new auth handlers
func NewAuthHandlers(authService *service.AuthService, log *zap.Logger) *AuthHandlers {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandlers{
		authService: authService,
		log:         log,
	}
}

// UserPayload is the wire representation of a user.
type UserPayload struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Role        string   `json:"role"`
	Permissions []string `json:"permissions,omitempty"`
	IsVIP       bool     `json:"isVIP"`
	IsPremium   bool     `json:"isPremium"`
}

// AuthResponse is the wire representation of a successful login/registration.
type AuthResponse struct {
	AccessToken  string      `json:"access_token"`
	RefreshToken string      `json:"refresh_token,omitempty"`
	TokenType    string      `json:"token_type"`
	ExpiresAt    int64       `json:"expires_at"`
	User         UserPayload `json:"user"`
}

// Register handles account creation
func (h *AuthHandlers) Register(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required,email"`
		Password string `json:"password" binding:"required,min=8"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, pair, err := h.authService.Register(c.Request.Context(), service.Registration{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		if errors.Is(err, core.ErrConflict) {
			c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
			return
		}
		h.log.Error("registration failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Registration failed"})
		return
	}

	c.JSON(http.StatusCreated, authResponse(user, pair))
}

// Login handles the login request
func (h *AuthHandlers) Login(c *gin.Context) {
	var req struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, pair, err := h.authService.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		// One message for unknown email and wrong password alike, so the
		// endpoint cannot be used to enumerate accounts.
		if errors.Is(err, core.ErrInvalidCredentials) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
			return
		}
		h.log.Error("login failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Authentication failed"})
		return
	}

	c.JSON(http.StatusOK, authResponse(user, pair))
}

// Refresh handles token refresh
func (h *AuthHandlers) Refresh(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	user, pair, err := h.authService.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, core.ErrTokenExpired),
			errors.Is(err, core.ErrTokenInvalidated),
			errors.Is(err, core.ErrInvalidToken):
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired refresh token"})
		default:
			h.log.Error("refresh failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to refresh token"})
		}
		return
	}

	c.JSON(http.StatusOK, authResponse(user, pair))
}

// Logout handles session logout
func (h *AuthHandlers) Logout(c *gin.Context) {
	var req struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), req.RefreshToken); err != nil {
		if errors.Is(err, core.ErrInvalidToken) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid refresh token"})
			return
		}
		h.log.Error("logout failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to logout"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the identity of the authenticated caller.
func (h *AuthHandlers) Me(c *gin.Context) {
	identity, ok := identityFrom(c)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "User not found in context"})
		return
	}

	c.JSON(http.StatusOK, userPayload(identity))
}

func authResponse(user *core.User, pair service.TokenPair) AuthResponse {
	return AuthResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		TokenType:    "Bearer",
		ExpiresAt:    pair.AccessExpiresAt.Unix(),
		User:         userPayload(user.Identity),
	}
}

func userPayload(id core.Identity) UserPayload {
	return UserPayload{
		ID:          id.Subject,
		Email:       id.Email,
		Role:        id.Role,
		Permissions: id.Permissions,
		IsVIP:       id.VIP,
		IsPremium:   id.Premium,
	}
}
