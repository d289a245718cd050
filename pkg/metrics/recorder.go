package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns the Prometheus collectors exported on /metrics.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	registry        *prometheus.Registry
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	samples         *prometheus.CounterVec
	metricFailures  *prometheus.CounterVec
	cacheLookups    *prometheus.CounterVec
	backendFailures *prometheus.CounterVec
	chatTokens      prometheus.Counter
}

// NewRecorder registers the collectors on a private registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_samples_aggregated_total",
			Help: "Health samples fed into the day-window aggregator by metric.",
		}, []string{"metric"}),
		metricFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_metric_fetch_failures_total",
			Help: "Per-metric fetch failures from the health data provider.",
		}, []string{"metric"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "health_snapshot_cache_lookups_total",
			Help: "Snapshot cache lookups by result.",
		}, []string{"result"}),
		backendFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "chat_backend_failures_total",
			Help: "Chat backend calls that failed and produced a degraded reply.",
		}, []string{"backend"}),
		chatTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "chat_tokens_total",
			Help: "Total LLM tokens reported by chat backends.",
		}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.httpRequests,
		r.httpDuration,
		r.samples,
		r.metricFailures,
		r.cacheLookups,
		r.backendFailures,
		r.chatTokens,
	)
	return r
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records a served request.
func (r *Recorder) ObserveHTTP(method, route string, status int, latency time.Duration) {
	if r == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	r.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	r.httpDuration.WithLabelValues(route).Observe(latency.Seconds())
}

// AddSamples counts samples handed to the aggregator for a metric.
func (r *Recorder) AddSamples(metric string, n int) {
	if r == nil || n <= 0 {
		return
	}
	r.samples.WithLabelValues(metric).Add(float64(n))
}

// MetricFailure counts a failed per-metric fetch.
func (r *Recorder) MetricFailure(metric string) {
	if r == nil {
		return
	}
	r.metricFailures.WithLabelValues(metric).Inc()
}

// CacheLookup counts a snapshot cache hit or miss.
func (r *Recorder) CacheLookup(hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(result).Inc()
}

// ChatBackendFailure counts a failed chat backend call.
func (r *Recorder) ChatBackendFailure(backend string) {
	if r == nil {
		return
	}
	r.backendFailures.WithLabelValues(backend).Inc()
}

// ChatUsage adds backend-reported token usage.
func (r *Recorder) ChatUsage(usage TokenUsage) {
	if r == nil || usage.TotalTokens <= 0 {
		return
	}
	r.chatTokens.Add(float64(usage.TotalTokens))
}
