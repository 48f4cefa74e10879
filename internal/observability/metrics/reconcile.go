package metrics

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	ReconcileOutcomeProcessed = "processed"
	ReconcileOutcomeDuplicate = "duplicate"
	ReconcileOutcomeIgnored   = "ignored"
	ReconcileOutcomeRejected  = "rejected"
	ReconcileOutcomeFailed    = "failed"
)

const (
	ReconcileErrorUniqueViolation      = "unique_violation"
	ReconcileErrorSerializationFailure = "serialization_failure"
	ReconcileErrorLockTimeout          = "lock_timeout"
	ReconcileErrorUnknown              = "unknown"
)

// ReconcileMetrics captures webhook reconciliation latency and storage failures.
type ReconcileMetrics struct {
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

func NewReconcileMetrics(cfg Config) (*ReconcileMetrics, error) {
	return newReconcileMetrics(prometheus.DefaultRegisterer, cfg)
}

func newReconcileMetrics(registerer prometheus.Registerer, cfg Config) (*ReconcileMetrics, error) {
	labels := prometheus.Labels{"service": serviceLabel(cfg)}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "storefront_webhook_reconcile_duration_seconds",
		Help:        "Time spent applying one provider event.",
		ConstLabels: labels,
		Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
	}, []string{"event_type", "outcome"})
	failures := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "storefront_webhook_reconcile_failures_total",
		Help:        "Provider events rolled back by a storage error.",
		ConstLabels: labels,
	}, []string{"event_type", "reason"})

	var err error
	if duration, err = registerHistogramVec(registerer, duration); err != nil {
		return nil, err
	}
	if failures, err = registerCounterVec(registerer, failures); err != nil {
		return nil, err
	}
	return &ReconcileMetrics{duration: duration, failures: failures}, nil
}

// Observe records how long one event took to reconcile.
func (m *ReconcileMetrics) Observe(eventType, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.duration.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Observe(elapsed.Seconds())
}

// Failure counts a rolled back event by storage error class.
func (m *ReconcileMetrics) Failure(eventType string, err error) {
	if m == nil || err == nil {
		return
	}
	m.failures.WithLabelValues(normalizeLabel(eventType), ClassifyStorageError(err)).Inc()
}

// ClassifyStorageError maps postgres SQLSTATE codes to a bounded label set.
func ClassifyStorageError(err error) string {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return ReconcileErrorUnknown
	}
	switch pgErr.Code {
	case "23505":
		return ReconcileErrorUniqueViolation
	case "40001", "40P01":
		return ReconcileErrorSerializationFailure
	case "55P03":
		return ReconcileErrorLockTimeout
	default:
		return ReconcileErrorUnknown
	}
}

func normalizeLabel(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "unknown"
	}
	return value
}
