package monitoring

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	m := NewMetrics()

	r := gin.New()
	r.Use(m.MetricsMiddleware())
	r.GET("/tests/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", m.PrometheusHandler())

	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/tests/42", nil))
	}

	got := testutil.ToFloat64(m.requestCounter.WithLabelValues(http.MethodGet, "/tests/:id", "200"))
	if got != 3 {
		t.Errorf("request counter = %v, want 3", got)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(w.Body.String(), "http_requests_total") {
		t.Error("/metrics output misses http_requests_total")
	}
}

func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.AttemptStarted()
	m.AttemptFinished("submitted")
	m.AttemptFinished("submitted")
	m.AttemptFinished("time_expired")
	m.AnswerSubmitted()
	m.LockConflict()

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"started", testutil.ToFloat64(m.attemptsStarted), 1},
		{"finished submitted", testutil.ToFloat64(m.attemptsFinished.WithLabelValues("submitted")), 2},
		{"finished expired", testutil.ToFloat64(m.attemptsFinished.WithLabelValues("time_expired")), 1},
		{"answers", testutil.ToFloat64(m.answersSubmitted), 1},
		{"lock conflicts", testutil.ToFloat64(m.lockConflicts), 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %v, want %v", tt.got, tt.want)
			}
		})
	}

	var nilMetrics *Metrics
	nilMetrics.AttemptStarted() // must not panic
}
