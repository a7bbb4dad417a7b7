package auth

import (
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/pkg/response"
)

// LoginRequest is the body for POST /api/admin/auth.
type LoginRequest struct {
	Password string `json:"password"`
}

// TokenResponse is the auth response with JWT.
type TokenResponse struct {
	Token string `json:"token"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	admin  *AdminAuth
	logger *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(admin *AdminAuth, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{admin: admin, logger: logger}
}

// Login handles POST /api/admin/auth.
func (h *Handler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	token, err := h.admin.Login(req.Password)
	if errors.Is(err, ErrInvalidPassword) {
		h.logger.Warn("admin login rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "Invalid password")
		return
	}
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	response.OK(c, TokenResponse{Token: token})
}
