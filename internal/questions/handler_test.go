package questions

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/codekids/quiz-backend/internal/quiz"
)

func newRouter(t *testing.T) *gin.Engine {
	t.Helper()
	bank, err := quiz.DefaultBank()
	if err != nil {
		t.Fatalf("DefaultBank: %v", err)
	}
	gin.SetMode(gin.TestMode)
	h := NewHandler(bank)
	r := gin.New()
	r.GET("/api/questions", h.List)
	r.GET("/api/questions/:id", h.GetByID)
	return r
}

func get(r *gin.Engine, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	return w
}

func TestListHidesCorrectAnswers(t *testing.T) {
	w := get(newRouter(t), "/api/questions")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, `"total":10`) {
		t.Fatalf("expected 10 questions: %s", body)
	}
	for _, leak := range []string{"correct", "Correct"} {
		if strings.Contains(body, leak) {
			t.Fatalf("response leaks %q: %s", leak, body)
		}
	}
}

func TestGetByID(t *testing.T) {
	r := newRouter(t)
	tests := []struct {
		path string
		want int
	}{
		{"/api/questions/1", http.StatusOK},
		{"/api/questions/10", http.StatusOK},
		{"/api/questions/11", http.StatusNotFound},
		{"/api/questions/abc", http.StatusBadRequest},
	}
	for _, tt := range tests {
		if w := get(r, tt.path); w.Code != tt.want {
			t.Fatalf("%s: status = %d, want %d", tt.path, w.Code, tt.want)
		}
	}
}
