package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	httpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Number of HTTP requests currently being processed",
		},
	)

	// Scoring metrics
	scoresComputed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medscore_scores_total",
			Help: "Total number of risk scores computed",
		},
		[]string{"strategy", "outcome"},
	)

	scoreValue = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medscore_score_value",
			Help:    "Distribution of computed risk scores",
			Buckets: []float64{5, 10, 15, 20, 30, 40, 50, 60, 70, 80, 90, 100},
		},
	)

	referenceEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "medscore_reference_entries",
			Help: "Number of entries in the loaded reference table",
		},
	)

	// LLM metrics
	analysisRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "medscore_analysis_requests_total",
			Help: "Total number of LLM analysis requests",
		},
		[]string{"status"},
	)

	analysisRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "medscore_analysis_request_duration_seconds",
			Help:    "LLM analysis request duration in seconds",
			Buckets: []float64{.25, .5, 1, 2.5, 5, 10, 20, 30, 60},
		},
	)
)

// Handler returns the Prometheus exposition handler.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records request counts, latency and in-flight requests. Paths
// are labelled by route template so unmatched URLs do not explode cardinality.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpRequestsInFlight.Inc()
		defer httpRequestsInFlight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		httpRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// RecordScore records a computed score. matched reports whether any
// condition matched the reference table.
func RecordScore(strategy string, matched bool, score float64) {
	outcome := "age_only"
	if matched {
		outcome = "matched"
	}
	scoresComputed.WithLabelValues(strategy, outcome).Inc()
	scoreValue.Observe(score)
}

// RecordScoreRejected records a score request refused because the reference
// table is unavailable.
func RecordScoreRejected(strategy string) {
	scoresComputed.WithLabelValues(strategy, "unavailable").Inc()
}

// SetReferenceEntries publishes the reference table size.
func SetReferenceEntries(n int) {
	referenceEntries.Set(float64(n))
}

// RecordAnalysis records an LLM analysis call.
func RecordAnalysis(status string, duration time.Duration) {
	analysisRequestsTotal.WithLabelValues(status).Inc()
	analysisRequestDuration.Observe(duration.Seconds())
}
