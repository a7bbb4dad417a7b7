package exportlog

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/codekids/quiz-backend/internal/models"
	"github.com/codekids/quiz-backend/pkg/response"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Store is the read side of the export log.
type Store interface {
	List(ctx context.Context, limit int) ([]*models.ExportLog, error)
	Latest(ctx context.Context, sessionID uuid.UUID) (*models.ExportLog, error)
}

// ArchiveLinker produces download links for archived results.
type ArchiveLinker interface {
	DownloadURL(ctx context.Context, sessionID uuid.UUID, completedAt time.Time) (string, error)
}

// Handler handles export log HTTP endpoints.
type Handler struct {
	store   Store
	archive ArchiveLinker
}

// NewHandler creates an export logs handler. archive may be nil.
func NewHandler(store Store, archive ArchiveLinker) *Handler {
	return &Handler{store: store, archive: archive}
}

// List handles GET /api/admin/exports?limit=N.
func (h *Handler) List(c *gin.Context) {
	limit := defaultLimit
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			response.BadRequest(c, "invalid limit")
			return
		}
		limit = min(n, maxLimit)
	}
	logs, err := h.store.List(c.Request.Context(), limit)
	if err != nil {
		response.Internal(c, "failed to load export logs")
		return
	}
	if logs == nil {
		logs = []*models.ExportLog{}
	}
	response.OK(c, gin.H{"exports": logs})
}

// Archive handles GET /api/admin/exports/:sessionId/archive by redirecting to a pre-signed download.
func (h *Handler) Archive(c *gin.Context) {
	if h.archive == nil {
		response.NotFound(c, "result archive not configured")
		return
	}
	sessionID, err := uuid.Parse(c.Param("sessionId"))
	if err != nil {
		response.BadRequest(c, "invalid session id")
		return
	}
	latest, err := h.store.Latest(c.Request.Context(), sessionID)
	if err != nil {
		response.Internal(c, "failed to load export log")
		return
	}
	if latest == nil {
		response.NotFound(c, "no export for session")
		return
	}
	url, err := h.archive.DownloadURL(c.Request.Context(), sessionID, latest.CompletedAt)
	if err != nil {
		response.Internal(c, "failed to sign download url")
		return
	}
	c.Redirect(http.StatusTemporaryRedirect, url)
}
