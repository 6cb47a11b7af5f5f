package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation. A nil receiver is
// a valid no-op so services can be built without metrics.
type MetricsService struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestDuration   *prometheus.HistogramVec
	requestTotal      *prometheus.CounterVec
	admissions        *prometheus.CounterVec
	concurrencyRetry  *prometheus.CounterVec
	gradePostings     *prometheus.CounterVec
	termEndDuration   prometheus.Histogram
	notificationsSent *prometheus.CounterVec
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

	admissions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_admissions_total",
		Help: "Enrollment admission decisions by outcome",
	}, []string{"outcome"})

	concurrencyRetry := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_concurrency_retries_total",
		Help: "Units of work re-run after a stale version or serialization failure",
	}, []string{"op"})

	gradePostings := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_final_grade_postings_total",
		Help: "Final grade posting attempts by outcome",
	}, []string{"outcome"})

	termEndDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "registrar_term_end_duration_seconds",
		Help:    "Duration of term-end standing runs",
		Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
	})

	notificationsSent := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "registrar_notifications_total",
		Help: "Notifications handed to the publisher by result",
	}, []string{"result"})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, admissions, concurrencyRetry, gradePostings, termEndDuration, notificationsSent, goroutines)

	return &MetricsService{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration:   requestDuration,
		requestTotal:      requestTotal,
		admissions:        admissions,
		concurrencyRetry:  concurrencyRetry,
		gradePostings:     gradePostings,
		termEndDuration:   termEndDuration,
		notificationsSent: notificationsSent,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
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

// RecordAdmission counts an admission decision. outcome is the resulting
// status or the rejection code.
func (m *MetricsService) RecordAdmission(outcome string) {
	if m == nil {
		return
	}
	m.admissions.WithLabelValues(outcome).Inc()
}

// RecordConcurrencyRetry counts a unit of work retried after a conflict.
func (m *MetricsService) RecordConcurrencyRetry(op string) {
	if m == nil {
		return
	}
	m.concurrencyRetry.WithLabelValues(op).Inc()
}

// RecordGradePosting counts a final grade posting attempt.
func (m *MetricsService) RecordGradePosting(outcome string) {
	if m == nil {
		return
	}
	m.gradePostings.WithLabelValues(outcome).Inc()
}

// ObserveTermEnd records how long a term-end run took.
func (m *MetricsService) ObserveTermEnd(duration time.Duration) {
	if m == nil {
		return
	}
	m.termEndDuration.Observe(duration.Seconds())
}

// RecordNotification counts a notification delivery attempt.
func (m *MetricsService) RecordNotification(result string) {
	if m == nil {
		return
	}
	m.notificationsSent.WithLabelValues(result).Inc()
}
