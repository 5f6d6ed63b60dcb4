// Package metrics provides the Prometheus collectors for the catalog:
// species mutations, dialog transitions, live sessions and HTTP traffic.
//
// Every recording method is safe to call on a nil *Metrics, so packages can
// take an optional collector without guarding each call site.
package metrics

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sakif/species-catalog/internal/apperror"
)

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected" // validation, guard or permission failure
	OutcomeError    = "error"    // backend failure
)

// Metrics contains all collectors exported on /metrics.
type Metrics struct {
	SpeciesMutations  *prometheus.CounterVec   // by action, outcome
	DialogTransitions *prometheus.CounterVec   // by trigger, outcome
	SessionsActive    prometheus.Gauge         // open UI sessions
	RateLimited       *prometheus.CounterVec   // rejected requests by route
	HTTPRequests      *prometheus.CounterVec   // by method, route, status
	HTTPDuration      *prometheus.HistogramVec // by method, route

	registry *prometheus.Registry
}

// New creates the collectors and registers them on a fresh registry.
// It returns an error if registration fails.
func New() (*Metrics, error) {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.initMetrics()
	if err := m.registry.Register(m); err != nil {
		return nil, fmt.Errorf("failed to register catalog metrics: %w", err)
	}
	return m, nil
}

func (m *Metrics) initMetrics() {
	m.SpeciesMutations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_mutations_total",
			Help: "Species create, update and delete attempts by outcome",
		},
		[]string{"action", "outcome"},
	)

	m.DialogTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "species_dialog_transitions_total",
			Help: "Record dialog triggers by outcome",
		},
		[]string{"trigger", "outcome"},
	)

	m.SessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_sessions_active",
			Help: "Number of live catalog UI sessions",
		},
	)

	m.RateLimited = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the mutation rate limiter",
		},
		[]string{"route"},
	)

	m.HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route pattern and status code",
		},
		[]string{"method", "route", "status"},
	)

	m.HTTPDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "route"},
	)
}

// Describe implements the prometheus.Collector interface.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.SpeciesMutations.Describe(ch)
	m.DialogTransitions.Describe(ch)
	m.SessionsActive.Describe(ch)
	m.RateLimited.Describe(ch)
	m.HTTPRequests.Describe(ch)
	m.HTTPDuration.Describe(ch)
}

// Collect implements the prometheus.Collector interface.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.SpeciesMutations.Collect(ch)
	m.DialogTransitions.Collect(ch)
	m.SessionsActive.Collect(ch)
	m.RateLimited.Collect(ch)
	m.HTTPRequests.Collect(ch)
	m.HTTPDuration.Collect(ch)
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler(logger *slog.Logger) http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		ErrorLog:      slog.NewLogLogger(logger.Handler(), slog.LevelError),
		ErrorHandling: promhttp.HTTPErrorOnError,
	})
}

// RecordMutation counts one store mutation attempt.
func (m *Metrics) RecordMutation(action string, err error) {
	if m == nil {
		return
	}
	m.SpeciesMutations.WithLabelValues(action, Outcome(err)).Inc()
}

// RecordTransition counts one dialog trigger.
func (m *Metrics) RecordTransition(trigger string, err error) {
	if m == nil {
		return
	}
	m.DialogTransitions.WithLabelValues(trigger, Outcome(err)).Inc()
}

// SetSessions sets the live session gauge.
func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordRateLimited counts one request rejected by the limiter.
func (m *Metrics) RecordRateLimited(route string) {
	if m == nil {
		return
	}
	m.RateLimited.WithLabelValues(route).Inc()
}

// RecordRequest records one served HTTP request. route should be the chi
// route pattern, not the raw path, to keep label cardinality bounded.
func (m *Metrics) RecordRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Outcome classifies err for the outcome label: nil is success, domain
// rejections (validation, permission, dialog guards) are rejected, and
// everything else is an error.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeSuccess
	case errors.Is(err, apperror.ErrValidation),
		errors.Is(err, apperror.ErrForbidden),
		errors.Is(err, apperror.ErrUnauthorized),
		errors.Is(err, apperror.ErrChallengeMismatch),
		errors.Is(err, apperror.ErrInvalidTransition),
		errors.Is(err, apperror.ErrBusy),
		errors.Is(err, apperror.ErrRateLimited):
		return OutcomeRejected
	default:
		return OutcomeError
	}
}
