package chronicle

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the save pipeline.
type Metrics struct {
	// Save outcomes by result
	Saves *prometheus.CounterVec

	// Audit records written, by change type
	AuditRecords *prometheus.CounterVec

	// End-to-end save latency
	SaveDuration prometheus.Histogram

	// Modified changes whose before/after images were identical
	NoopChanges prometheus.Counter
}

// NewMetrics creates a Metrics instance registered on the default
// registry. Construct it once per process.
func NewMetrics() *Metrics {
	return &Metrics{
		Saves: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_saves_total",
			Help: "Total save calls by outcome",
		}, []string{"outcome"}), // outcome: "committed", "failed"

		AuditRecords: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicle_audit_records_total",
			Help: "Total audit records written by change type",
		}, []string{"change_type"}),

		SaveDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "chronicle_save_duration_seconds",
			Help:    "Duration of full save calls including audit writes",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}),

		NoopChanges: promauto.NewCounter(prometheus.CounterOpts{
			Name: "chronicle_noop_changes_total",
			Help: "Modified changes detected with identical before/after images",
		}),
	}
}

// IncrementSave records a save outcome.
func (m *Metrics) IncrementSave(outcome string) {
	if m != nil {
		m.Saves.WithLabelValues(outcome).Inc()
	}
}

// IncrementAuditRecord records one written audit record.
func (m *Metrics) IncrementAuditRecord(changeType string) {
	if m != nil {
		m.AuditRecords.WithLabelValues(changeType).Inc()
	}
}

// ObserveSaveDuration records a full save duration.
func (m *Metrics) ObserveSaveDuration(d time.Duration) {
	if m != nil {
		m.SaveDuration.Observe(d.Seconds())
	}
}

// IncrementNoopChange records a tracking inconsistency.
func (m *Metrics) IncrementNoopChange() {
	if m != nil {
		m.NoopChanges.Inc()
	}
}
