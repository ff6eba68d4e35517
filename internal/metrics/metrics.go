// Package metrics exposes Prometheus instrumentation for the attribution
// engine and the CSV importer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus collectors for the system. It satisfies
// attribution.Recorder and ingest.Recorder.
type Metrics struct {
	EngineCalls         *prometheus.CounterVec
	EngineDuration      *prometheus.HistogramVec
	FansAttributedTotal *prometheus.CounterVec
	ImportRowsTotal     *prometheus.CounterVec
	DigestsSent         *prometheus.CounterVec
}

// New creates the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EngineCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "funnellens_engine_calls_total",
			Help: "Attribution engine calls by operation and outcome",
		}, []string{"op", "outcome"}),
		EngineDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "funnellens_engine_call_duration_seconds",
			Help:    "Attribution engine call latency",
			Buckets: prometheus.DefBuckets,
		}, []string{"op"}),
		FansAttributedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "funnellens_fans_attributed_total",
			Help: "Fans given a primary content type, by attribution method",
		}, []string{"method"}),
		ImportRowsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "funnellens_import_rows_total",
			Help: "CSV rows processed by import type and outcome",
		}, []string{"import_type", "outcome"}),
		DigestsSent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "funnellens_digests_total",
			Help: "Recommendation digests by outcome",
		}, []string{"outcome"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	m.EngineCalls.WithLabelValues(op, outcome(err)).Inc()
	m.EngineDuration.WithLabelValues(op).Observe(d.Seconds())
}

func (m *Metrics) FansAttributed(method string, n int) {
	if n > 0 {
		m.FansAttributedTotal.WithLabelValues(method).Add(float64(n))
	}
}

func (m *Metrics) ImportRows(importType string, imported, skipped int) {
	m.ImportRowsTotal.WithLabelValues(importType, "imported").Add(float64(imported))
	m.ImportRowsTotal.WithLabelValues(importType, "skipped").Add(float64(skipped))
}

// DigestSent records one digest delivery attempt.
func (m *Metrics) DigestSent(err error) {
	m.DigestsSent.WithLabelValues(outcome(err)).Inc()
}
