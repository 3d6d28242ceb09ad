package reconciler

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"offersync/pkg/logging"
)

const metricsNamespace = "offersync"

// Metrics tracks reconciliation counters per resource and exports them as
// Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	mu sync.RWMutex

	resourceMetrics map[string]*resourceMetrics

	totalReconcileAttempts  int64
	totalReconcileSuccesses int64
	totalReconcileFailures  int64
	totalCalls              int64
	totalRetries            int64
	totalLockWait           time.Duration

	registry    *prometheus.Registry
	calls       *prometheus.CounterVec
	retries     *prometheus.CounterVec
	lockWaits   *prometheus.CounterVec
	members     *prometheus.CounterVec
	reconciles  *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
}

type resourceMetrics struct {
	attempts      int64
	failures      int64
	lastSuccessAt time.Time
}

// NewMetrics creates a Metrics with its own Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		resourceMetrics: make(map[string]*resourceMetrics),
		registry:        prometheus.NewRegistry(),
		calls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "remote_calls_total",
			Help:      "Remote mutation calls by operation and classified outcome.",
		}, []string{"operation", "outcome"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "transient_retries_total",
			Help:      "Retries after transient failures.",
		}, []string{"operation"}),
		lockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "lock_wait_seconds_total",
			Help:      "Time spent waiting for resource locks held by other jobs.",
		}, []string{"operation"}),
		members: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "members_total",
			Help:      "Members settled by operation and result.",
		}, []string{"operation", "result"}),
		reconciles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "resource_reconciles_total",
			Help:      "Resource reconciliations by result.",
		}, []string{"result"}),
		lastSuccess: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "resource_last_success_timestamp_seconds",
			Help:      "Unix time of the last fully successful reconcile per resource.",
		}, []string{"resource"}),
	}
	m.registry.MustRegister(m.calls, m.retries, m.lockWaits, m.members, m.reconciles, m.lastSuccess)
	return m
}

// Registry returns the Prometheus registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// WriteTextfile writes the collectors in the text exposition format for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}

func (m *Metrics) getOrCreateResourceMetrics(resourceID string) *resourceMetrics {
	if rm, exists := m.resourceMetrics[resourceID]; exists {
		return rm
	}
	rm := &resourceMetrics{}
	m.resourceMetrics[resourceID] = rm
	return rm
}

// RecordCall records one remote call and its classified outcome.
func (m *Metrics) RecordCall(op Operation, kind OutcomeKind) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.totalCalls++
	m.mu.Unlock()
	m.calls.WithLabelValues(string(op), kind.String()).Inc()
}

// RecordRetry records a retry after a transient failure.
func (m *Metrics) RecordRetry(op Operation) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.totalRetries++
	m.mu.Unlock()
	m.retries.WithLabelValues(string(op)).Inc()
}

// RecordLockWait records time spent waiting for a resource lock.
func (m *Metrics) RecordLockWait(op Operation, wait time.Duration) {
	if m == nil {
		return
	}
	m.mu.Lock()
	m.totalLockWait += wait
	m.mu.Unlock()
	m.lockWaits.WithLabelValues(string(op)).Add(wait.Seconds())
}

// RecordMembers records the settled members of one operation.
func (m *Metrics) RecordMembers(op Operation, applied, skipped, failed int) {
	if m == nil {
		return
	}
	m.members.WithLabelValues(string(op), "applied").Add(float64(applied))
	m.members.WithLabelValues(string(op), "skipped").Add(float64(skipped))
	m.members.WithLabelValues(string(op), "failed").Add(float64(failed))
}

// RecordReconcileAttempt records the start of a resource reconcile.
func (m *Metrics) RecordReconcileAttempt(resourceID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreateResourceMetrics(resourceID)
	rm.attempts++
	m.totalReconcileAttempts++
}

// RecordReconcileSuccess records a fully successful resource reconcile.
func (m *Metrics) RecordReconcileSuccess(resourceID string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreateResourceMetrics(resourceID)
	rm.lastSuccessAt = time.Now()
	m.totalReconcileSuccesses++

	m.reconciles.WithLabelValues("success").Inc()
	m.lastSuccess.WithLabelValues(resourceID).Set(float64(rm.lastSuccessAt.Unix()))
}

// RecordReconcileFailure records a resource reconcile that left failures.
func (m *Metrics) RecordReconcileFailure(resourceID, reason string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rm := m.getOrCreateResourceMetrics(resourceID)
	rm.failures++
	m.totalReconcileFailures++

	m.reconciles.WithLabelValues("failure").Inc()
	logging.Debug("Reconciler", "Reconcile failure for %s: %s (%d of %d attempts)", resourceID, reason, rm.failures, rm.attempts)
}

// MetricsSummary is a point-in-time view of the run totals.
type MetricsSummary struct {
	TotalReconcileAttempts  int64         `json:"total_reconcile_attempts"`
	TotalReconcileSuccesses int64         `json:"total_reconcile_successes"`
	TotalReconcileFailures  int64         `json:"total_reconcile_failures"`
	TotalCalls              int64         `json:"total_calls"`
	TotalRetries            int64         `json:"total_retries"`
	TotalLockWait           time.Duration `json:"total_lock_wait"`
	ReconcileFailureRate    float64       `json:"reconcile_failure_rate"`
}

// GetSummary returns the current totals.
func (m *Metrics) GetSummary() MetricsSummary {
	if m == nil {
		return MetricsSummary{}
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	summary := MetricsSummary{
		TotalReconcileAttempts:  m.totalReconcileAttempts,
		TotalReconcileSuccesses: m.totalReconcileSuccesses,
		TotalReconcileFailures:  m.totalReconcileFailures,
		TotalCalls:              m.totalCalls,
		TotalRetries:            m.totalRetries,
		TotalLockWait:           m.totalLockWait,
	}
	if m.totalReconcileAttempts > 0 {
		summary.ReconcileFailureRate = float64(m.totalReconcileFailures) / float64(m.totalReconcileAttempts)
	}
	return summary
}
