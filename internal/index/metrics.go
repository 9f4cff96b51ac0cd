package index

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "morie"

// Metrics instruments maintenance cycles.
type Metrics struct {
	// MaintenanceTotal counts cycles.
	// Labels: strategy (noop, full, delta), result (success, error)
	MaintenanceTotal *prometheus.CounterVec

	// MaintenanceDuration measures cycle wall time.
	// Labels: strategy
	MaintenanceDuration *prometheus.HistogramVec

	// EntriesWritten counts rows written.
	// Labels: op (upsert, delete)
	EntriesWritten *prometheus.CounterVec

	// CommitsVisited counts commits diffed by the revision walk.
	// Labels: strategy
	CommitsVisited *prometheus.CounterVec
}

// NewMetrics creates the maintenance metrics and registers them on reg.
// A nil reg creates unregistered metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		MaintenanceTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "maintenance_total",
			Help:      "Maintenance cycles by strategy and result.",
		}, []string{"strategy", "result"}),
		MaintenanceDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "maintenance_duration_seconds",
			Help:      "Wall time of maintenance cycles.",
			Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30, 120},
		}, []string{"strategy"}),
		EntriesWritten: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "entries_written_total",
			Help:      "Cache rows written by operation.",
		}, []string{"op"}),
		CommitsVisited: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "commits_visited_total",
			Help:      "Commits diffed during maintenance.",
		}, []string{"strategy"}),
	}
}

func (m *Metrics) record(r Report, err error) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	strategy := string(r.Strategy)
	m.MaintenanceTotal.WithLabelValues(strategy, result).Inc()
	m.MaintenanceDuration.WithLabelValues(strategy).Observe(r.Duration.Seconds())
	if err != nil {
		return
	}
	m.EntriesWritten.WithLabelValues("upsert").Add(float64(r.Upserted))
	m.EntriesWritten.WithLabelValues("delete").Add(float64(r.Deleted))
	m.CommitsVisited.WithLabelValues(strategy).Add(float64(r.CommitsVisited))
}
