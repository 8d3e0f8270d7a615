package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the Prometheus collectors for a batchflow run.
type Metrics struct {
	registry *prometheus.Registry

	jobsStarted  prometheus.Counter
	jobsFinished *prometheus.CounterVec
	jobsRunning  prometheus.Gauge
	jobDuration  prometheus.Histogram
	recordsTotal prometheus.Counter
}

// NewMetrics builds a metrics set on its own registry so tests and
// repeated runs never collide on duplicate registration.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: reg,
		jobsStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchflow",
			Name:      "jobs_started_total",
			Help:      "Number of jobs whose execution started. Counted once per job; retries do not increment.",
		}),
		jobsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "batchflow",
			Name:      "jobs_finished_total",
			Help:      "Number of jobs finished, by final status.",
		}, []string{"status"}),
		jobsRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "batchflow",
			Name:      "jobs_running",
			Help:      "Number of jobs currently executing.",
		}),
		jobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "batchflow",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of finished jobs.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 14),
		}),
		recordsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "batchflow",
			Name:      "records_processed_total",
			Help:      "Records reported by successful jobs.",
		}),
	}

	reg.MustRegister(m.jobsStarted, m.jobsFinished, m.jobsRunning, m.jobDuration, m.recordsTotal)
	return m
}

// Registry exposes the underlying registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
