// Package metrics exposes Prometheus collectors for the target.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hotgluexyz/target-sendgrid/internal/domain"
)

// Failure phases.
const (
	PhaseListResolve = "list_resolve"
	PhaseUpsert      = "upsert"
	PhasePoll        = "poll"
	PhaseUnsubscribe = "unsubscribe"
	PhaseState       = "state"
)

// Metrics holds the target's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	RecordsTotal      *prometheus.CounterVec
	StateEntriesTotal *prometheus.CounterVec
	FailuresTotal     *prometheus.CounterVec
	ImportWait        *prometheus.HistogramVec
	LastBatch         *prometheus.GaugeVec
}

// New registers and returns the collectors.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		RecordsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "target_sendgrid_records_total",
			Help: "Records received per stream.",
		}, []string{"stream"}),
		StateEntriesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "target_sendgrid_state_entries_total",
			Help: "State entries flushed per stream and outcome.",
		}, []string{"stream", "outcome"}),
		FailuresTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "target_sendgrid_failures_total",
			Help: "Failed remote operations per stream and phase.",
		}, []string{"stream", "phase"}),
		ImportWait: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "target_sendgrid_import_wait_seconds",
			Help:    "Time spent waiting for contact import jobs.",
			Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800},
		}, []string{"stream"}),
		LastBatch: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "target_sendgrid_last_batch_timestamp_seconds",
			Help: "Unix time of the last flushed batch.",
		}, []string{"stream"}),
	}
}

// ObserveBatch records a flushed batch.
func (m *Metrics) ObserveBatch(stream string, records int, entries []domain.StateEntry) {
	if m == nil {
		return
	}
	m.RecordsTotal.WithLabelValues(stream).Add(float64(records))
	for _, e := range entries {
		m.StateEntriesTotal.WithLabelValues(stream, e.Outcome()).Inc()
	}
	m.LastBatch.WithLabelValues(stream).SetToCurrentTime()
}

// ObserveFailure counts one failed phase.
func (m *Metrics) ObserveFailure(stream, phase string) {
	if m == nil {
		return
	}
	m.FailuresTotal.WithLabelValues(stream, phase).Inc()
}

// ObserveImportWait records how long an import job took to settle.
func (m *Metrics) ObserveImportWait(stream string, d time.Duration) {
	if m == nil {
		return
	}
	m.ImportWait.WithLabelValues(stream).Observe(d.Seconds())
}
