// Package metrics records stepping-loop statistics with Prometheus
// collectors and exports them in the text exposition format.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "overlandflow"

// Recorder collects coupler progress. It satisfies coupling.Observer.
type Recorder struct {
	// registry holds only this recorder's collectors.
	registry *prometheus.Registry

	subSteps   prometheus.Counter
	clamped    prometheus.Counter
	outerSteps prometheus.Counter
	dt         prometheus.Histogram
	perOuter   prometheus.Histogram
	simTime    prometheus.Gauge
}

// NewRecorder builds a Recorder with its own registry.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		subSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "substeps_total",
			Help:      "Completed coupler sub-steps.",
		}),
		clamped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "substeps_clamped_total",
			Help:      "Sub-steps shortened to land on the outer step target.",
		}),
		outerSteps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outer_steps_total",
			Help:      "Completed outer steps.",
		}),
		dt: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "substep_dt_seconds",
			Help:      "Simulated duration of each sub-step.",
			Buckets:   prometheus.ExponentialBuckets(1e-3, 4, 12),
		}),
		perOuter: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "substeps_per_outer_step",
			Help:      "Sub-steps needed to complete an outer step.",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		simTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "simulation_time_seconds",
			Help:      "Simulation time of the last completed sub-step.",
		}),
	}

	r.registry.MustRegister(r.subSteps, r.clamped, r.outerSteps, r.dt, r.perOuter, r.simTime)

	return r
}

// Registry returns the registry holding the recorder's collectors.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// ObserveSubStep records a completed sub-step.
func (r *Recorder) ObserveSubStep(t, dt float64, clamped bool) {
	r.subSteps.Inc()
	r.dt.Observe(dt)
	r.simTime.Set(t)

	if clamped {
		r.clamped.Inc()
	}
}

// ObserveAdvance records a completed outer step.
func (r *Recorder) ObserveAdvance(t float64, subSteps int) {
	r.outerSteps.Inc()
	r.perOuter.Observe(float64(subSteps))
	r.simTime.Set(t)
}

// WriteTextfile writes the current values to path in the text exposition
// format, for the node exporter textfile collector.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}

	return nil
}
