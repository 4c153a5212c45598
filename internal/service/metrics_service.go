package service

import (
	"net/http"
	"runtime"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the HTTP layer
// and the meeting coordinator. All methods are nil-safe so services can run
// without metrics in tests.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec

	meetingStarts   prometheus.Counter
	meetingStops    prometheus.Counter
	joinTokens      prometheus.Counter
	writeConflicts  prometheus.Counter
	publishFailures prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors.
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

	meetingStarts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_starts_total",
		Help: "Total committed meeting start transitions",
	})

	meetingStops := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_stops_total",
		Help: "Total committed meeting stop transitions",
	})

	joinTokens := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_join_tokens_issued_total",
		Help: "Total join tokens issued",
	})

	writeConflicts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_write_conflicts_total",
		Help: "Conditional meeting writes lost to a concurrent transition",
	})

	publishFailures := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "meeting_publish_failures_total",
		Help: "Meeting events that failed to broadcast after a committed transition",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, meetingStarts, meetingStops, joinTokens, writeConflicts, publishFailures, goroutines)

	handler := promhttp.HandlerFor(registry, promhttp.HandlerOpts{})

	return &MetricsService{
		registry:        registry,
		handler:         handler,
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		meetingStarts:   meetingStarts,
		meetingStops:    meetingStops,
		joinTokens:      joinTokens,
		writeConflicts:  writeConflicts,
		publishFailures: publishFailures,
	}
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
	labels := []string{method, path, strconv.Itoa(status)}
	m.requestDuration.WithLabelValues(labels...).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(labels...).Inc()
}

func (m *MetricsService) IncMeetingStarted() {
	if m != nil {
		m.meetingStarts.Inc()
	}
}

func (m *MetricsService) IncMeetingStopped() {
	if m != nil {
		m.meetingStops.Inc()
	}
}

func (m *MetricsService) IncJoinTokenIssued() {
	if m != nil {
		m.joinTokens.Inc()
	}
}

func (m *MetricsService) IncMeetingWriteConflict() {
	if m != nil {
		m.writeConflicts.Inc()
	}
}

func (m *MetricsService) IncMeetingPublishFailure() {
	if m != nil {
		m.publishFailures.Inc()
	}
}
