package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func find(t *testing.T, reg *Registry, name string) *dto.MetricFamily {
	t.Helper()
	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	if reg == nil {
		t.Fatal("expected non-nil registry")
	}

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	// Should have go runtime metrics at minimum
	if len(mfs) == 0 {
		t.Error("expected some metrics to be registered")
	}
}

func TestRegistry_ObserveTrial(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveTrial("block_bootstrap", "completed", 2*time.Millisecond)
	reg.ObserveTrial("block_bootstrap", "completed", 3*time.Millisecond)
	reg.ObserveTrial("block_bootstrap", "skipped", time.Millisecond)

	mf := find(t, reg, "fxmc_trials_total")
	if mf == nil {
		t.Fatal("expected fxmc_trials_total metric")
	}

	counts := map[string]float64{}
	for _, m := range mf.GetMetric() {
		for _, label := range m.GetLabel() {
			if label.GetName() == "status" {
				counts[label.GetValue()] = m.GetCounter().GetValue()
			}
		}
	}
	if counts["completed"] != 2 || counts["skipped"] != 1 {
		t.Errorf("unexpected trial counts %v", counts)
	}

	hist := find(t, reg, "fxmc_trial_duration_seconds")
	if hist == nil {
		t.Fatal("expected fxmc_trial_duration_seconds metric")
	}
	if got := hist.GetMetric()[0].GetHistogram().GetSampleCount(); got != 3 {
		t.Errorf("expected sample count 3, got %d", got)
	}
}

func TestRegistry_RecordSimulation(t *testing.T) {
	reg := NewRegistry()

	reg.RecordSimulation(123 * time.Millisecond)

	mf := find(t, reg, "fxmc_simulation_duration_seconds")
	if mf == nil {
		t.Fatal("expected fxmc_simulation_duration_seconds metric")
	}
	hist := mf.GetMetric()[0].GetHistogram()
	if hist.GetSampleCount() != 1 {
		t.Errorf("expected sample count 1, got %d", hist.GetSampleCount())
	}
	if hist.GetSampleSum() < 0.12 || hist.GetSampleSum() > 0.13 {
		t.Errorf("expected sample sum ~0.123, got %v", hist.GetSampleSum())
	}
}

func TestRegistry_RunsAndBars(t *testing.T) {
	reg := NewRegistry()

	reg.ObserveRun("cancelled", time.Second)
	reg.RecordBarsAggregated(120)
	reg.RecordBarsAggregated(30)

	runs := find(t, reg, "fxmc_monte_carlo_runs_total")
	if runs == nil || runs.GetMetric()[0].GetCounter().GetValue() != 1 {
		t.Error("expected one cancelled run")
	}

	bars := find(t, reg, "fxmc_bars_aggregated_total")
	if bars == nil || bars.GetMetric()[0].GetCounter().GetValue() != 150 {
		t.Error("expected 150 aggregated bars")
	}
}

func TestRegistry_WriteTextfile(t *testing.T) {
	reg := NewRegistry()
	reg.RecordSimulation(time.Millisecond)

	path := filepath.Join(t.TempDir(), "fxmc.prom")
	if err := reg.WriteTextfile(path); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "fxmc_simulations_total 1") {
		t.Errorf("textfile missing simulation counter:\n%s", data)
	}
}

// Ensure the registry implements prometheus.Gatherer interface
func TestRegistry_ImplementsGatherer(t *testing.T) {
	reg := NewRegistry()
	var _ prometheus.Gatherer = reg
}
