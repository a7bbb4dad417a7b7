package questions

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/codekids/quiz-backend/internal/quiz"
	"github.com/codekids/quiz-backend/pkg/response"
)

// Handler serves the static question bank. Correct answers are never included.
type Handler struct {
	bank *quiz.Bank
}

// NewHandler creates a questions handler.
func NewHandler(bank *quiz.Bank) *Handler {
	return &Handler{bank: bank}
}

// List handles GET /api/questions.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, gin.H{
		"questions": h.bank.Questions(),
		"total":     h.bank.Len(),
	})
}

// GetByID handles GET /api/questions/:id.
func (h *Handler) GetByID(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid question id")
		return
	}
	q, ok := h.bank.Get(id)
	if !ok {
		response.NotFound(c, "question not found")
		return
	}
	response.OK(c, q)
}
