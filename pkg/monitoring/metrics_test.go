package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddlewareAndHandler(t *testing.T) {
	Init()
	Init()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(MetricsMiddleware())
	r.GET("/api/questions", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", PrometheusHandler())

	before := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/api/questions", "200"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/questions", nil))
	after := testutil.ToFloat64(RequestCounter.WithLabelValues("GET", "/api/questions", "200"))
	if after != before+1 {
		t.Fatalf("counter went from %v to %v", before, after)
	}

	SessionsCompleted.WithLabelValues("timer").Inc()
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), `quiz_sessions_completed_total{trigger="timer"}`) {
		t.Fatal("metrics output missing quiz_sessions_completed_total")
	}
}
