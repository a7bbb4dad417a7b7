package export

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/codekids/quiz-backend/pkg/response"
)

// Checker verifies connectivity to the spreadsheet.
type Checker interface {
	Check(ctx context.Context) (string, error)
}

// CheckResult is returned by GET /api/admin/exports/check.
type CheckResult struct {
	Environment struct {
		HasSpreadsheetID bool `json:"hasSpreadsheetId"`
		HasClientEmail   bool `json:"hasClientEmail"`
		HasPrivateKey    bool `json:"hasPrivateKey"`
	} `json:"environment"`
	ConnectionValid bool   `json:"connectionValid"`
	Title           string `json:"title,omitempty"`
	Error           string `json:"error,omitempty"`
}

// Handler serves admin diagnostics for the export destination.
type Handler struct {
	cfg     SheetsConfig
	checker Checker
}

// NewHandler creates the diagnostics handler. checker is nil when Sheets is not configured.
func NewHandler(cfg SheetsConfig, checker Checker) *Handler {
	return &Handler{cfg: cfg, checker: checker}
}

// Check handles GET /api/admin/exports/check. It always answers 200 and reports what failed.
func (h *Handler) Check(c *gin.Context) {
	var out CheckResult
	out.Environment.HasSpreadsheetID = h.cfg.SpreadsheetID != ""
	out.Environment.HasClientEmail = h.cfg.ClientEmail != ""
	out.Environment.HasPrivateKey = h.cfg.PrivateKey != ""

	if h.checker == nil {
		out.Error = ErrNotConfigured.Error()
		response.OK(c, out)
		return
	}
	ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
	defer cancel()
	title, err := h.checker.Check(ctx)
	if err != nil {
		out.Error = err.Error()
		response.OK(c, out)
		return
	}
	out.ConnectionValid = true
	out.Title = title
	response.OK(c, out)
}
