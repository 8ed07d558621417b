// Package metrics exposes Prometheus metrics for the scheduler and the
// pipeline service. All methods are safe to call on a nil *Metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Run outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeNetwork = "network_error"
	OutcomeRemote  = "remote_error"
)

// Metrics holds Prometheus metrics for simulation scheduling and processing.
type Metrics struct {
	runs             *prometheus.CounterVec
	triggerDuration  prometheus.Histogram
	guardRefusals    prometheus.Counter
	continuousStarts prometheus.Counter
	continuousStops  *prometheus.CounterVec
	schedulerState   *prometheus.GaugeVec
	filesProduced    prometheus.Counter
	recordsProcessed prometheus.Counter
	anomalies        *prometheus.CounterVec
}

// New creates and registers metrics with the given registry.
func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_simulation_runs_total",
			Help: "Total number of simulation runs dispatched by outcome",
		}, []string{"outcome"}),
		triggerDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "energy_simulation_trigger_duration_seconds",
			Help:    "Duration of simulate requests",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}),
		guardRefusals: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_simulation_cooldown_refusals_total",
			Help: "Total number of continuous starts refused by the cooldown guard",
		}),
		continuousStarts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_simulation_continuous_starts_total",
			Help: "Total number of continuous simulation sequences started",
		}),
		continuousStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_simulation_continuous_stops_total",
			Help: "Total number of continuous simulation sequences ended by reason",
		}, []string{"reason"}),
		schedulerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "energy_simulation_scheduler_state",
			Help: "1 for the scheduler's current state, 0 otherwise",
		}, []string{"state"}),
		filesProduced: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_pipeline_files_produced_total",
			Help: "Total number of simulated data files written to storage",
		}),
		recordsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "energy_pipeline_records_processed_total",
			Help: "Total number of readings processed into records",
		}),
		anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "energy_pipeline_anomalies_total",
			Help: "Total number of anomalous readings by site",
		}, []string{"site_id"}),
	}

	registry.MustRegister(
		m.runs,
		m.triggerDuration,
		m.guardRefusals,
		m.continuousStarts,
		m.continuousStops,
		m.schedulerState,
		m.filesProduced,
		m.recordsProcessed,
		m.anomalies,
	)

	return m
}

// RunFinished records a completed run and its trigger latency.
func (m *Metrics) RunFinished(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(outcome).Inc()
	m.triggerDuration.Observe(duration.Seconds())
}

// GuardRefused increments the cooldown refusal counter.
func (m *Metrics) GuardRefused() {
	if m == nil {
		return
	}
	m.guardRefusals.Inc()
}

// ContinuousStarted increments the continuous start counter.
func (m *Metrics) ContinuousStarted() {
	if m == nil {
		return
	}
	m.continuousStarts.Inc()
}

// ContinuousStopped records why a continuous sequence ended.
func (m *Metrics) ContinuousStopped(reason string) {
	if m == nil {
		return
	}
	m.continuousStops.WithLabelValues(reason).Inc()
}

// SetState marks state as current among all known states.
func (m *Metrics) SetState(state string, all []string) {
	if m == nil {
		return
	}
	for _, s := range all {
		v := 0.0
		if s == state {
			v = 1
		}
		m.schedulerState.WithLabelValues(s).Set(v)
	}
}

// FileProduced increments the produced files counter.
func (m *Metrics) FileProduced() {
	if m == nil {
		return
	}
	m.filesProduced.Inc()
}

// RecordsProcessed adds n processed readings.
func (m *Metrics) RecordsProcessed(n int) {
	if m == nil {
		return
	}
	m.recordsProcessed.Add(float64(n))
}

// AnomalyDetected increments the anomaly counter for a site.
func (m *Metrics) AnomalyDetected(siteID string) {
	if m == nil {
		return
	}
	m.anomalies.WithLabelValues(siteID).Inc()
}
