// Package metrics holds the Prometheus metrics of a batch run. A run is a
// short-lived process, so metrics are written to a node-exporter textfile
// at the end instead of being scraped.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "fx_data"

// Metrics for one run, registered on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	// Source metrics
	SourceRetries *prometheus.CounterVec

	// Pipeline metrics
	SymbolsTotal   *prometheus.CounterVec
	SymbolDuration *prometheus.HistogramVec
	BarsFetched    *prometheus.CounterVec
	BarsAdded      *prometheus.CounterVec
	BarsStored     *prometheus.GaugeVec

	// Audit metrics
	AuditGaps       *prometheus.GaugeVec
	AuditDuplicates *prometheus.GaugeVec

	// Health metrics
	LastSuccess *prometheus.GaugeVec
}

// New creates Metrics with every collector registered.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		reg: reg,
		SourceRetries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "source",
			Name:      "retries_total",
			Help:      "Source calls retried after a transient error",
		}, []string{"op"}),
		SymbolsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "symbols_total",
			Help:      "Symbols processed by command and status",
		}, []string{"command", "status"}),
		SymbolDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "symbol_duration_seconds",
			Help:      "Wall time per symbol",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"command"}),
		BarsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "bars_fetched_total",
			Help:      "Bars received from the source",
		}, []string{"symbol"}),
		BarsAdded: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "bars_added_total",
			Help:      "New timestamps added to stored series",
		}, []string{"symbol"}),
		BarsStored: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "bars",
			Help:      "Rows in the stored series after the run",
		}, []string{"symbol"}),
		AuditGaps: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "gaps",
			Help:      "Unexplained gaps above threshold",
		}, []string{"symbol"}),
		AuditDuplicates: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "duplicates",
			Help:      "Duplicate timestamps found by the last audit",
		}, []string{"symbol"}),
		LastSuccess: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last successful write per symbol",
		}, []string{"symbol"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Retry is a provider.Session OnRetry hook.
func (m *Metrics) Retry(op string, _ error, _ time.Duration) {
	m.SourceRetries.WithLabelValues(op).Inc()
}

// WriteTextfile writes all metrics in text format to path (atomically, via rename).
// An empty path is a no-op.
func (m *Metrics) WriteTextfile(path string) error {
	if path == "" {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.reg)
}
