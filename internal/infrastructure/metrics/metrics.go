package metrics

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iho/gobank/internal/domain"
)

// Metrics holds all Prometheus metrics. It implements the engine's
// MetricsRecorder interface.
type Metrics struct {
	Operations        *prometheus.CounterVec
	OperationErrors   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	AccountsCreated   prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		Operations: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gobank_operations_total",
				Help: "Total engine operations by type and status",
			},
			[]string{"operation", "status"},
		),
		OperationErrors: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gobank_operation_errors_total",
				Help: "Total engine operation errors by type",
			},
			[]string{"operation", "error_kind"},
		),
		OperationDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gobank_operation_duration_seconds",
				Help:    "Duration of engine operations",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		AccountsCreated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "gobank_accounts_created_total",
			Help: "Total number of accounts created",
		}),
	}
}

// Observe records one engine operation outcome.
func (m *Metrics) Observe(operation string, duration time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
		m.OperationErrors.WithLabelValues(operation, errorKind(err)).Inc()
	}

	m.Operations.WithLabelValues(operation, status).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(duration.Seconds())

	if operation == "register" && err == nil {
		m.AccountsCreated.Inc()
	}
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domain.ErrEmptyField):
		return "empty_field"
	case errors.Is(err, domain.ErrDuplicateUsername):
		return "duplicate_username"
	case errors.Is(err, domain.ErrAccountNotFound):
		return "account_not_found"
	case errors.Is(err, domain.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, domain.ErrSameAccount):
		return "same_account"
	case errors.Is(err, domain.ErrAuthFailed):
		return "auth_failed"
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	default:
		return "persistence"
	}
}
