package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"camrelay/internal/core/services"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusCollector records session lifecycle, sweep and transport metrics.
// It implements services.MetricsRecorder.
type PrometheusCollector struct {
	gatherer prometheus.Gatherer

	// Counters
	sessionsCreated    prometheus.Counter
	sessionsSuperseded prometheus.Counter
	statusChanges      *prometheus.CounterVec
	candidatesAdded    *prometheus.CounterVec
	linksCreated       prometheus.Counter

	// Sweeps
	sweepRuns         *prometheus.CounterVec
	sweepMatched      *prometheus.CounterVec
	sweepAffected     *prometheus.CounterVec
	sweepFailedChunks *prometheus.CounterVec
	sweepDuration     *prometheus.HistogramVec

	// Transport
	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec
	activeFeeds  *prometheus.GaugeVec
}

var _ services.MetricsRecorder = (*PrometheusCollector)(nil)

// NewPrometheusCollector registers every collector on reg. Tests pass a
// fresh prometheus.NewRegistry() so collectors never clash.
func NewPrometheusCollector(reg *prometheus.Registry) *PrometheusCollector {
	factory := promauto.With(reg)
	return &PrometheusCollector{
		gatherer: reg,

		sessionsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_sessions_created_total",
			Help: "Total number of sessions offered by monitors",
		}),

		sessionsSuperseded: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_sessions_superseded_total",
			Help: "Sessions disconnected because the same monitor opened a newer one",
		}),

		statusChanges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_session_status_changes_total",
			Help: "Session status transitions by target status",
		}, []string{"status"}),

		candidatesAdded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_ice_candidates_total",
			Help: "ICE candidates appended by sender role",
		}, []string{"sender"}),

		linksCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "camrelay_monitor_links_created_total",
			Help: "Total number of monitor links written",
		}),

		sweepRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_sweep_runs_total",
			Help: "Reconciler sweep runs by outcome",
		}, []string{"sweep", "result"}),

		sweepMatched: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_sweep_matched_total",
			Help: "Documents selected by reconciler sweeps",
		}, []string{"sweep"}),

		sweepAffected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_sweep_affected_total",
			Help: "Documents changed by reconciler sweeps",
		}, []string{"sweep"}),

		sweepFailedChunks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_sweep_failed_chunks_total",
			Help: "Batch chunks that failed to commit during sweeps",
		}, []string{"sweep"}),

		sweepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camrelay_sweep_duration_seconds",
			Help:    "Duration of reconciler sweeps",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}, []string{"sweep"}),

		httpRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "camrelay_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"method", "route", "status"}),

		httpDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "camrelay_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"method", "route"}),

		activeFeeds: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "camrelay_active_feeds",
			Help: "Live feeds currently streamed over WebSocket",
		}, []string{"feed"}),
	}
}

func (p *PrometheusCollector) SessionCreated() {
	p.sessionsCreated.Inc()
}

func (p *PrometheusCollector) SessionsSuperseded(n int) {
	p.sessionsSuperseded.Add(float64(n))
}

func (p *PrometheusCollector) SessionStatusChanged(status string) {
	p.statusChanges.WithLabelValues(status).Inc()
}

func (p *PrometheusCollector) CandidateAdded(sender string) {
	p.candidatesAdded.WithLabelValues(sender).Inc()
}

func (p *PrometheusCollector) LinkCreated() {
	p.linksCreated.Inc()
}

func (p *PrometheusCollector) SweepCompleted(report services.SweepReport, err error) {
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case report.FailedChunks > 0:
		result = "partial"
	}
	p.sweepRuns.WithLabelValues(report.Sweep, result).Inc()
	p.sweepMatched.WithLabelValues(report.Sweep).Add(float64(report.Matched))
	p.sweepAffected.WithLabelValues(report.Sweep).Add(float64(report.Affected))
	p.sweepFailedChunks.WithLabelValues(report.Sweep).Add(float64(report.FailedChunks))
	p.sweepDuration.WithLabelValues(report.Sweep).Observe(report.Duration.Seconds())
}

func (p *PrometheusCollector) RecordHTTPRequest(method, route string, status int, duration time.Duration) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func (p *PrometheusCollector) FeedOpened(feed string) {
	p.activeFeeds.WithLabelValues(feed).Inc()
}

func (p *PrometheusCollector) FeedClosed(feed string) {
	p.activeFeeds.WithLabelValues(feed).Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (p *PrometheusCollector) Handler() http.Handler {
	return promhttp.HandlerFor(p.gatherer, promhttp.HandlerOpts{})
}
