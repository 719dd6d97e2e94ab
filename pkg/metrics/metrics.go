package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// Change feed metrics
	FeedPublished     *prometheus.CounterVec
	FeedDropped       *prometheus.CounterVec
	FeedResyncs       *prometheus.CounterVec
	FeedSubscriptions prometheus.Gauge

	// Queue metrics
	CallsIssued    *prometheus.CounterVec
	CallsFailed    *prometheus.CounterVec
	Notifications  *prometheus.CounterVec
	SessionsActive *prometheus.GaugeVec

	// Announcement metrics
	AnnouncementsStarted   prometheus.Counter
	AnnouncementsPreempted prometheus.Counter
	SegmentsSkipped        *prometheus.CounterVec

	// Outbox related metrics
	OutboxEventsProcessed   prometheus.Counter
	OutboxEventsFailed      prometheus.Counter
	OutboxProcessingLatency prometheus.Histogram

	// Database metrics
	DatabaseOperations *prometheus.CounterVec
	DatabaseLatency    *prometheus.HistogramVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all application metrics on reg.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FeedPublished: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_published_total",
			Help:      "Change events fanned out by the hub",
		}, []string{"collection"}),
		FeedDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "events_dropped_total",
			Help:      "Change events dropped because a subscriber lagged",
		}, []string{"collection"}),
		FeedResyncs: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "resyncs_total",
			Help:      "Snapshot resyncs requested, by reason",
		}, []string{"reason"}),
		FeedSubscriptions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "feed",
			Name:      "subscriptions",
			Help:      "Currently open change feed subscriptions",
		}),

		CallsIssued: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "calls_total",
			Help:      "Call transitions committed, by action",
		}, []string{"action"}),
		CallsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "calls_failed_total",
			Help:      "Call transitions rejected or failed, by action",
		}, []string{"action"}),
		Notifications: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "notifications_total",
			Help:      "Notifications created, by type",
		}, []string{"type"}),
		SessionsActive: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "queue",
			Name:      "sessions_active",
			Help:      "Connected client sessions, by role",
		}, []string{"role"}),

		AnnouncementsStarted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announce",
			Name:      "sequences_started_total",
			Help:      "Announcement sequences started",
		}),
		AnnouncementsPreempted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announce",
			Name:      "sequences_preempted_total",
			Help:      "Announcement sequences cancelled by a newer call",
		}),
		SegmentsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "announce",
			Name:      "segments_skipped_total",
			Help:      "Audio segments skipped after a playback failure",
		}, []string{"kind"}),

		OutboxEventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		OutboxEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		OutboxProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "outbox",
			Name:      "processing_duration_seconds",
			Help:      "Time spent processing outbox events",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),

		DatabaseOperations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Total number of store operations",
		}, []string{"operation", "status"}),
		DatabaseLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operation_duration_seconds",
			Help:      "Duration of store operations",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
	}
}

// Discard returns metrics registered on a private registry. Tests and
// tools that never expose /metrics use it.
func Discard() *Metrics {
	return NewMetrics("discard", prometheus.NewRegistry())
}
