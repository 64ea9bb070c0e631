package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the service and the access
// engine. A nil *Metrics records nothing.
type Metrics struct {
	OperationsTotal   *prometheus.CounterVec
	OperationDuration *prometheus.HistogramVec
	DecisionsTotal    *prometheus.CounterVec
	PolicyCacheTotal  *prometheus.CounterVec
}

// NewMetrics creates and registers all collectors on registry
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		OperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_operations_total",
				Help: "Total number of auth service operations",
			},
			[]string{"operation", "outcome"},
		),
		OperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "auth_operation_duration_seconds",
				Help:    "Auth service operation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		DecisionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_access_decisions_total",
				Help: "Total number of access decisions",
			},
			[]string{"decision", "reason"},
		),
		PolicyCacheTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_policy_cache_total",
				Help: "Route policy cache lookups",
			},
			[]string{"result"},
		),
	}

	if registry == nil {
		return m, nil
	}

	for _, c := range []prometheus.Collector{
		m.OperationsTotal,
		m.OperationDuration,
		m.DecisionsTotal,
		m.PolicyCacheTotal,
	} {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveOperation records the outcome and latency of a service call
func (m *Metrics) ObserveOperation(operation string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.OperationsTotal.WithLabelValues(operation, outcomeLabel(err)).Inc()
	m.OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveDecision records an access decision
func (m *Metrics) ObserveDecision(err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.DecisionsTotal.WithLabelValues("allow", "").Inc()
		return
	}
	m.DecisionsTotal.WithLabelValues("deny", errorTextCode(err)).Inc()
}

func (m *Metrics) observeCache(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.PolicyCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	m.PolicyCacheTotal.WithLabelValues("miss").Inc()
}

func outcomeLabel(err error) string {
	if err == nil {
		return "success"
	}
	return errorTextCode(err)
}
