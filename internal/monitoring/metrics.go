package monitoring

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build as many as they like.
// All recording methods are safe on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	attemptsStarted  prometheus.Counter
	attemptsFinished *prometheus.CounterVec
	answersSubmitted prometheus.Counter
	lockConflicts    prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		attemptsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempts_started_total",
			Help: "Attempts started",
		}),
		attemptsFinished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quiz_attempts_finished_total",
				Help: "Attempts finished, by end reason",
			},
			[]string{"reason"},
		),
		answersSubmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_answers_submitted_total",
			Help: "Answers stored",
		}),
		lockConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "quiz_attempt_lock_conflicts_total",
			Help: "Attempt operations rejected because the attempt lock was busy",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requestCounter,
		m.requestDuration,
		m.attemptsStarted,
		m.attemptsFinished,
		m.answersSubmitted,
		m.lockConflicts,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AttemptStarted() {
	if m != nil {
		m.attemptsStarted.Inc()
	}
}

func (m *Metrics) AttemptFinished(reason string) {
	if m != nil {
		m.attemptsFinished.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) AnswerSubmitted() {
	if m != nil {
		m.answersSubmitted.Inc()
	}
}

func (m *Metrics) LockConflict() {
	if m != nil {
		m.lockConflicts.Inc()
	}
}

// MetricsMiddleware records request counts and latency per route template
func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.requestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.requestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
