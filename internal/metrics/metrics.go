package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the service collectors on a private registry. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	RequestCounter    *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	AttemptsStarted   *prometheus.CounterVec
	AttemptsRejected  *prometheus.CounterVec
	AttemptsSubmitted *prometheus.CounterVec
	ScorePercentage   prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "endpoint", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests",
				Buckets: []float64{0.05, 0.1, 0.5, 1, 2, 5},
			},
			[]string{"method", "endpoint"},
		),
		AttemptsStarted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbt_attempts_started_total",
				Help: "Exam attempts served, split by whether an open attempt was resumed",
			},
			[]string{"resumed"},
		),
		AttemptsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbt_attempts_rejected_total",
				Help: "Attempt starts refused by a precondition",
			},
			[]string{"reason"},
		),
		AttemptsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cbt_attempts_submitted_total",
				Help: "Attempts graded, split by result status",
			},
			[]string{"status"},
		),
		ScorePercentage: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "cbt_result_percentage",
				Help:    "Distribution of graded percentages",
				Buckets: []float64{40, 45, 50, 60, 70, 80, 90, 100},
			},
		),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCounter,
		m.RequestDuration,
		m.AttemptsStarted,
		m.AttemptsRejected,
		m.AttemptsSubmitted,
		m.ScorePercentage,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) AttemptStarted(resumed bool) {
	if m == nil {
		return
	}
	m.AttemptsStarted.WithLabelValues(strconv.FormatBool(resumed)).Inc()
}

func (m *Metrics) AttemptRejected(reason string) {
	if m == nil {
		return
	}
	m.AttemptsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AttemptSubmitted(status string, percentage float64) {
	if m == nil {
		return
	}
	m.AttemptsSubmitted.WithLabelValues(status).Inc()
	m.ScorePercentage.Observe(percentage)
}

func (m *Metrics) MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		m.RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		m.RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) PrometheusHandler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
