package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2},
		},
		[]string{"method", "endpoint"},
	)

	// SessionsCompleted counts quiz submissions by trigger (manual or timer).
	SessionsCompleted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_sessions_completed_total",
			Help: "Quiz sessions that reached the completed state",
		},
		[]string{"trigger"},
	)

	// ActiveCountdowns is the number of running session timers in this process.
	ActiveCountdowns = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "quiz_active_countdowns",
		Help: "Running quiz countdowns",
	})

	// Exports counts export job outcomes by status.
	Exports = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quiz_exports_total",
			Help: "Result export attempts by outcome",
		},
		[]string{"status"},
	)
)

var initOnce sync.Once

// Init registers the collectors with the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestCounter, RequestDuration, SessionsCompleted, ActiveCountdowns, Exports)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		RequestCounter.WithLabelValues(c.Request.Method, endpoint, strconv.Itoa(c.Writer.Status())).Inc()
		RequestDuration.WithLabelValues(c.Request.Method, endpoint).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
