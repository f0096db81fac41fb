package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	simulationsTotal   prometheus.Counter
	simulationDuration prometheus.Histogram
	trialsTotal        *prometheus.CounterVec
	trialDuration      prometheus.Histogram
	monteCarloRuns     *prometheus.CounterVec
	barsAggregated     prometheus.Counter
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		simulationsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fxmc_simulations_total",
				Help: "Total number of strategy simulations on observed data",
			},
		),
		simulationDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fxmc_simulation_duration_seconds",
				Help:    "Simulation duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		trialsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxmc_trials_total",
				Help: "Total number of Monte Carlo trials",
			},
			[]string{"method", "status"},
		),
		trialDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fxmc_trial_duration_seconds",
				Help:    "Monte Carlo trial duration in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		monteCarloRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fxmc_monte_carlo_runs_total",
				Help: "Total number of Monte Carlo runs",
			},
			[]string{"status"},
		),
		barsAggregated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fxmc_bars_aggregated_total",
				Help: "Total number of bars emitted by the aggregator",
			},
		),
	}

	reg.MustRegister(r.simulationsTotal)
	reg.MustRegister(r.simulationDuration)
	reg.MustRegister(r.trialsTotal)
	reg.MustRegister(r.trialDuration)
	reg.MustRegister(r.monteCarloRuns)
	reg.MustRegister(r.barsAggregated)

	return r
}

// RecordSimulation records one simulation on observed data.
func (r *Registry) RecordSimulation(d time.Duration) {
	r.simulationsTotal.Inc()
	r.simulationDuration.Observe(d.Seconds())
}

// RecordBarsAggregated adds n emitted bars.
func (r *Registry) RecordBarsAggregated(n int) {
	r.barsAggregated.Add(float64(n))
}

// ObserveTrial records a finished Monte Carlo trial.
func (r *Registry) ObserveTrial(method, status string, d time.Duration) {
	r.trialsTotal.WithLabelValues(method, status).Inc()
	r.trialDuration.Observe(d.Seconds())
}

// ObserveRun records a finished Monte Carlo run.
func (r *Registry) ObserveRun(status string, _ time.Duration) {
	r.monteCarloRuns.WithLabelValues(status).Inc()
}

// WriteTextfile dumps the registry in the text exposition format for the
// node exporter textfile collector.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
