package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	// Sync pipeline metrics
	SyncJobsTotal     *prometheus.CounterVec
	SyncJobDuration   *prometheus.HistogramVec
	SyncJobsActive    prometheus.Gauge
	ReviewsIngested   *prometheus.CounterVec
	SchedulerCycles   prometheus.Counter
	SourcesDispatched prometheus.Counter

	// Platform fetch metrics
	PlatformFetchLatency *prometheus.HistogramVec
	PlatformFetchErrors  *prometheus.CounterVec

	// Classifier metrics
	ClassifierBatches *prometheus.CounterVec
	ClassifierLatency prometheus.Histogram

	// Summary metrics
	SummariesGenerated *prometheus.CounterVec

	// Cache metrics
	CacheHits   *prometheus.CounterVec
	CacheMisses *prometheus.CounterVec

	// Rate limiting metrics
	RateLimitHits prometheus.Counter

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
}

var metrics *Metrics

// Init initializes all Prometheus metrics
func Init() *Metrics {
	if metrics != nil {
		return metrics
	}

	metrics = &Metrics{
		// HTTP metrics
		HTTPRequestsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed",
			},
		),

		// Sync pipeline metrics
		SyncJobsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sync_jobs_total",
				Help: "Total number of sync jobs by platform, trigger type and terminal status",
			},
			[]string{"platform", "type", "status"},
		),
		SyncJobDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "sync_job_duration_seconds",
				Help:    "Sync job duration in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"platform"},
		),
		SyncJobsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "sync_jobs_active",
				Help: "Number of sync jobs currently running",
			},
		),
		ReviewsIngested: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reviews_ingested_total",
				Help: "Total number of reviews ingested by outcome (new, updated, unchanged)",
			},
			[]string{"platform", "outcome"},
		),
		SchedulerCycles: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_cycles_total",
				Help: "Total number of scheduler cycles executed",
			},
		),
		SourcesDispatched: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "scheduler_sources_dispatched_total",
				Help: "Total number of due sources dispatched to the worker pool",
			},
		),

		// Platform fetch metrics
		PlatformFetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "platform_fetch_latency_seconds",
				Help:    "Review platform fetch latency in seconds",
				Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
			},
			[]string{"platform"},
		),
		PlatformFetchErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "platform_fetch_errors_total",
				Help: "Total number of platform fetch errors by kind",
			},
			[]string{"platform", "kind"},
		),

		// Classifier metrics
		ClassifierBatches: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "classifier_batches_total",
				Help: "Total number of sentiment classification batches by status",
			},
			[]string{"status"},
		),
		ClassifierLatency: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "classifier_latency_seconds",
				Help:    "Sentiment classifier batch latency in seconds",
				Buckets: []float64{.5, 1, 2, 5, 10, 20, 30, 60},
			},
		),

		// Summary metrics
		SummariesGenerated: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ai_summaries_generated_total",
				Help: "Total number of AI summaries generated by status",
			},
			[]string{"status"},
		),

		// Cache metrics
		CacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache_type"},
		),
		CacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache_type"},
		),

		// Rate limiting metrics
		RateLimitHits: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "manual_sync_rate_limit_hits_total",
				Help: "Total number of manual sync triggers rejected by the rate limit",
			},
		),

		// Database metrics
		DBQueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "db_query_duration_seconds",
				Help:    "Database query duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_type"},
		),
	}

	return metrics
}

// Get returns the global metrics instance
func Get() *Metrics {
	if metrics == nil {
		return Init()
	}
	return metrics
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// MetricsMiddleware is a Gin middleware for collecting HTTP metrics
func MetricsMiddleware() gin.HandlerFunc {
	m := Get()
	return func(c *gin.Context) {
		start := time.Now()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method

		// Track in-flight requests
		m.HTTPRequestsInFlight.Inc()
		defer m.HTTPRequestsInFlight.Dec()

		// Process request
		c.Next()

		// Record metrics
		status := strconv.Itoa(c.Writer.Status())
		duration := time.Since(start).Seconds()

		m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
		m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
	}
}

// RecordSyncJob records a finished sync job
func RecordSyncJob(platform, jobType, status string, duration time.Duration) {
	m := Get()
	m.SyncJobsTotal.WithLabelValues(platform, jobType, status).Inc()
	m.SyncJobDuration.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordReviewsIngested records per-outcome ingestion counts
func RecordReviewsIngested(platform string, created, updated, unchanged int) {
	m := Get()
	m.ReviewsIngested.WithLabelValues(platform, "new").Add(float64(created))
	m.ReviewsIngested.WithLabelValues(platform, "updated").Add(float64(updated))
	m.ReviewsIngested.WithLabelValues(platform, "unchanged").Add(float64(unchanged))
}

// RecordPlatformFetch records a platform fetch attempt
func RecordPlatformFetch(platform string, duration time.Duration, errKind string) {
	m := Get()
	m.PlatformFetchLatency.WithLabelValues(platform).Observe(duration.Seconds())
	if errKind != "" {
		m.PlatformFetchErrors.WithLabelValues(platform, errKind).Inc()
	}
}

// RecordClassifierBatch records a classification batch
func RecordClassifierBatch(status string, duration time.Duration) {
	m := Get()
	m.ClassifierBatches.WithLabelValues(status).Inc()
	m.ClassifierLatency.Observe(duration.Seconds())
}

// RecordSummaryGenerated records an AI summary generation attempt
func RecordSummaryGenerated(status string) {
	Get().SummariesGenerated.WithLabelValues(status).Inc()
}

// RecordCacheHit records a cache hit
func RecordCacheHit(cacheType string) {
	Get().CacheHits.WithLabelValues(cacheType).Inc()
}

// RecordCacheMiss records a cache miss
func RecordCacheMiss(cacheType string) {
	Get().CacheMisses.WithLabelValues(cacheType).Inc()
}

// RecordRateLimitHit records a rejected manual trigger
func RecordRateLimitHit() {
	Get().RateLimitHits.Inc()
}

// RecordDBQuery records a database query duration
func RecordDBQuery(queryType string, duration time.Duration) {
	Get().DBQueryDuration.WithLabelValues(queryType).Observe(duration.Seconds())
}
