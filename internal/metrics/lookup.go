// Package metrics provides Prometheus collectors for postcard lookups
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LookupMetrics counts and times lookups served by the API
type LookupMetrics struct {
	lookupsTotal    *prometheus.CounterVec
	lookupDuration  prometheus.Histogram
	candidatesTotal prometheus.Histogram
	storedLookups   prometheus.Gauge
}

// NewLookupMetrics creates and registers lookup metrics
func NewLookupMetrics(registry prometheus.Registerer) (*LookupMetrics, error) {
	m := &LookupMetrics{
		lookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ellie_lookups_total",
				Help: "Total number of postcard lookups",
			},
			[]string{"status", "error_kind"}, // status: found, failed
		),
		lookupDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ellie_lookup_duration_seconds",
				Help:    "Time taken to match a position against the catalog",
				Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		candidatesTotal: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ellie_lookup_candidates",
				Help:    "Number of postcards whose footprint contained the target",
				Buckets: []float64{0, 1, 2, 3, 4, 6, 8},
			},
		),
		storedLookups: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "ellie_stored_lookups",
				Help: "Number of lookups held in memory",
			},
		),
	}
	if err := registry.Register(m); err != nil {
		return nil, err
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *LookupMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.lookupsTotal.Describe(ch)
	m.lookupDuration.Describe(ch)
	m.candidatesTotal.Describe(ch)
	m.storedLookups.Describe(ch)
}

// Collect implements the Collector interface
func (m *LookupMetrics) Collect(ch chan<- prometheus.Metric) {
	m.lookupsTotal.Collect(ch)
	m.lookupDuration.Collect(ch)
	m.candidatesTotal.Collect(ch)
	m.storedLookups.Collect(ch)
}

// RecordLookup records one finished lookup. An empty errorKind means success.
func (m *LookupMetrics) RecordLookup(errorKind string, candidates int, elapsed time.Duration) {
	if m == nil {
		return
	}
	status := "found"
	if errorKind != "" {
		status = "failed"
	}
	m.lookupsTotal.WithLabelValues(status, errorKind).Inc()
	m.lookupDuration.Observe(elapsed.Seconds())
	if errorKind == "" {
		m.candidatesTotal.Observe(float64(candidates))
	}
}

// SetStoredLookups reports the size of the lookup store.
func (m *LookupMetrics) SetStoredLookups(n int) {
	if m == nil {
		return
	}
	m.storedLookups.Set(float64(n))
}
