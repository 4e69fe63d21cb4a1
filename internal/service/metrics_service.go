package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/noah-isme/dont-forgetter-api/internal/models"
)

// Send results recorded on notifications_sent_total.
const (
	SendResultSent      = "sent"
	SendResultRejected  = "rejected"
	SendResultTransport = "transport_error"
)

// MetricsService owns the Prometheus registry shared by the API and the heartbeat worker.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheHits       prometheus.Counter
	cacheMisses     prometheus.Counter

	heartbeatRuns        prometheus.Counter
	heartbeatDispatched  prometheus.Counter
	notificationsSent    *prometheus.CounterVec
	notificationsSkipped *prometheus.CounterVec
	eventsRescheduled    *prometheus.CounterVec
	quotaResets          prometheus.Counter
	jobFailures          *prometheus.CounterVec
}

// NewMetricsService registers every collector on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheHits := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Total cache hits",
	})

	cacheMisses := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Total cache misses",
	})

	heartbeatRuns := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heartbeat_runs_total",
		Help: "Number of heartbeat scans performed",
	})

	heartbeatDispatched := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "heartbeat_events_dispatched_total",
		Help: "Expired events handed to the notification workers",
	})

	notificationsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Notification send attempts by channel and result",
	}, []string{"channel", "result"})

	notificationsSkipped := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_suppressed_total",
		Help: "Notifications skipped because the monthly quota was exhausted",
	}, []string{"channel"})

	eventsRescheduled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "events_rescheduled_total",
		Help: "Events advanced or deleted after notification",
	}, []string{"outcome"})

	quotaResets := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "quota_resets_total",
		Help: "Monthly quota resets performed",
	})

	jobFailures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "queue_jobs_failed_total",
		Help: "Jobs dropped after exhausting their retries",
	}, []string{"queue", "type"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheHits, cacheMisses,
		heartbeatRuns, heartbeatDispatched, notificationsSent, notificationsSkipped, eventsRescheduled, quotaResets, jobFailures, goroutines)

	return &MetricsService{
		registry:             registry,
		handler:              promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:      requestDuration,
		requestTotal:         requestTotal,
		cacheLatency:         cacheLatency,
		cacheWrite:           cacheWrite,
		cacheHits:            cacheHits,
		cacheMisses:          cacheMisses,
		heartbeatRuns:        heartbeatRuns,
		heartbeatDispatched:  heartbeatDispatched,
		notificationsSent:    notificationsSent,
		notificationsSkipped: notificationsSkipped,
		eventsRescheduled:    eventsRescheduled,
		quotaResets:          quotaResets,
		jobFailures:          jobFailures,
	}
}

// Registry exposes the underlying registry, mostly for tests.
func (m *MetricsService) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache lookup.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordHeartbeat counts one scan and the number of events it dispatched.
func (m *MetricsService) RecordHeartbeat(dispatched int) {
	if m == nil {
		return
	}
	m.heartbeatRuns.Inc()
	m.heartbeatDispatched.Add(float64(dispatched))
}

// RecordSend counts one send attempt.
func (m *MetricsService) RecordSend(channel models.NotificationType, result string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(string(channel), result).Inc()
}

// RecordSuppressed counts a send skipped for quota.
func (m *MetricsService) RecordSuppressed(channel models.NotificationType) {
	if m == nil {
		return
	}
	m.notificationsSkipped.WithLabelValues(string(channel)).Inc()
}

// RecordReschedule counts a recurrence outcome.
func (m *MetricsService) RecordReschedule(outcome RecurrenceOutcome) {
	if m == nil {
		return
	}
	m.eventsRescheduled.WithLabelValues(string(outcome)).Inc()
}

// RecordQuotaReset counts a monthly reset.
func (m *MetricsService) RecordQuotaReset() {
	if m == nil {
		return
	}
	m.quotaResets.Inc()
}

// RecordJobFailure counts a job the worker queue gave up on.
func (m *MetricsService) RecordJobFailure(queue, jobType string) {
	if m == nil {
		return
	}
	m.jobFailures.WithLabelValues(queue, jobType).Inc()
}

// RegisterQueueDepth exposes the buffered job count of a queue as a gauge.
func (m *MetricsService) RegisterQueueDepth(queue string, depth func() int) error {
	if m == nil {
		return nil
	}
	return m.registry.Register(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "queue_depth",
		Help:        "Jobs waiting in the worker queue",
		ConstLabels: prometheus.Labels{"queue": queue},
	}, func() float64 {
		return float64(depth())
	}))
}
