package sessions

import (
	"context"
	"errors"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/codekids/quiz-backend/internal/export"
	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/pkg/response"
)

// ParticipantRequest is the body for POST /api/sessions and PUT /api/sessions/:id/participant.
type ParticipantRequest struct {
	Name string `json:"name"`
	Age  int    `json:"age"`
}

// AnswerRequest is the body for PUT /api/sessions/:id/answers/:questionId.
type AnswerRequest struct {
	Option string `json:"option" binding:"required"`
}

// StatusReader reports export delivery for a session.
type StatusReader interface {
	Get(ctx context.Context, sessionID uuid.UUID) (*export.Status, error)
}

// View is a session as returned by the API.
type View struct {
	ID uuid.UUID `json:"id"`
	quiz.State
	Export *export.Status `json:"export,omitempty"`
}

// Handler handles quiz session HTTP endpoints.
type Handler struct {
	manager  *Manager
	statuses StatusReader
	logger   *zap.Logger
}

// NewHandler creates a sessions handler. statuses may be nil.
func NewHandler(manager *Manager, statuses StatusReader, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{manager: manager, statuses: statuses, logger: logger}
}

// Create handles POST /api/sessions.
func (h *Handler) Create(c *gin.Context) {
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	id, st, err := h.manager.Create(c.Request.Context(), req.Name, req.Age)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, View{ID: id, State: st})
}

// Get handles GET /api/sessions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	st, err := h.manager.State(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	view := View{ID: id, State: st}
	if h.statuses != nil && st.Completed {
		status, err := h.statuses.Get(c.Request.Context(), id)
		if err != nil {
			h.logger.Warn("export status lookup failed", zap.Error(err), zap.String("session_id", id.String()))
		}
		view.Export = status
	}
	response.OK(c, view)
}

// SetParticipant handles PUT /api/sessions/:id/participant.
func (h *Handler) SetParticipant(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	var req ParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, id)(h.manager.SetParticipant(c.Request.Context(), id, req.Name, req.Age))
}

// Start handles POST /api/sessions/:id/start.
func (h *Handler) Start(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	h.respond(c, id)(h.manager.Start(c.Request.Context(), id))
}

// StartTimer handles POST /api/sessions/:id/timer.
func (h *Handler) StartTimer(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	h.respond(c, id)(h.manager.StartTimer(c.Request.Context(), id))
}

// Answer handles PUT /api/sessions/:id/answers/:questionId.
func (h *Handler) Answer(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	questionID, err := strconv.Atoi(c.Param("questionId"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	var req AnswerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	h.respond(c, id)(h.manager.Answer(c.Request.Context(), id, questionID, quiz.Option(req.Option)))
}

// Next handles POST /api/sessions/:id/next.
func (h *Handler) Next(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	h.respond(c, id)(h.manager.Next(c.Request.Context(), id))
}

// Prev handles POST /api/sessions/:id/prev.
func (h *Handler) Prev(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	h.respond(c, id)(h.manager.Prev(c.Request.Context(), id))
}

// Submit handles POST /api/sessions/:id/submit.
func (h *Handler) Submit(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	result, err := h.manager.Submit(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, result)
}

// Reset handles DELETE /api/sessions/:id.
func (h *Handler) Reset(c *gin.Context) {
	id, ok := sessionID(c)
	if !ok {
		return
	}
	if err := h.manager.Reset(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.NoContent(c)
}

// StateFor adapts the manager for the WebSocket initial push.
func (h *Handler) StateFor(ctx context.Context, id uuid.UUID) (interface{}, error) {
	st, err := h.manager.State(ctx, id)
	if err != nil {
		return nil, err
	}
	return View{ID: id, State: st}, nil
}

func (h *Handler) respond(c *gin.Context, id uuid.UUID) func(quiz.State, error) {
	return func(st quiz.State, err error) {
		if err != nil {
			h.fail(c, err)
			return
		}
		response.OK(c, View{ID: id, State: st})
	}
}

func (h *Handler) fail(c *gin.Context, err error) {
	var verr *quiz.ValidationError
	switch {
	case errors.As(err, &verr):
		response.Invalid(c, "validation failed", verr.Fields)
	case errors.Is(err, ErrSessionNotFound), errors.Is(err, quiz.ErrQuestionNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, quiz.ErrNoParticipant),
		errors.Is(err, quiz.ErrTimerNotStarted),
		errors.Is(err, quiz.ErrCompleted),
		errors.Is(err, ErrAnswerRequired),
		errors.Is(err, ErrNotOnLastQuestion):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("session request failed", zap.Error(err), zap.String("path", c.FullPath()))
		response.Internal(c, "internal error")
	}
}

func sessionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return uuid.Nil, false
	}
	return id, true
}
