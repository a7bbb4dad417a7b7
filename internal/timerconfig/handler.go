package timerconfig

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/codekids/quiz-backend/pkg/response"
)

const invalidMessage = "Timer duration must be between 1 and 60 minutes"

// UpdateRequest is the body for PUT /api/admin/config.
type UpdateRequest struct {
	TimerDurationMinutes *int `json:"timerDurationMinutes"`
}

// Handler handles timer config HTTP endpoints.
type Handler struct {
	svc *Service
}

// NewHandler creates a timer config handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Public handles GET /api/timer-config.
func (h *Handler) Public(c *gin.Context) {
	response.OK(c, gin.H{"timerDurationMinutes": h.svc.Minutes(c.Request.Context())})
}

// Get handles GET /api/admin/config.
func (h *Handler) Get(c *gin.Context) {
	cfg, err := h.svc.Config(c.Request.Context())
	if err != nil {
		response.Internal(c, "failed to read configuration")
		return
	}
	response.OK(c, cfg)
}

// Update handles PUT /api/admin/config.
func (h *Handler) Update(c *gin.Context) {
	var req UpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if req.TimerDurationMinutes == nil {
		response.Invalid(c, invalidMessage, map[string]string{"timerDurationMinutes": "required"})
		return
	}
	cfg, err := h.svc.Set(c.Request.Context(), *req.TimerDurationMinutes, "admin")
	if errors.Is(err, ErrInvalidDuration) {
		response.Invalid(c, invalidMessage, map[string]string{"timerDurationMinutes": err.Error()})
		return
	}
	if err != nil {
		response.Internal(c, "failed to update configuration")
		return
	}
	response.OK(c, cfg)
}
