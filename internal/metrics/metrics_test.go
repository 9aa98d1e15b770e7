package metrics

import (
	"context"
	"math"
	"testing"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/integrators"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

func sample(h1, h2 float64, m physics.Mode) sim.Sample {
	return sim.Sample{State: dynamo.State{h1, h2}, Mode: m}
}

func TestModeDwell(t *testing.T) {
	m := NewModeDwell(physics.ModeValveStuck)

	if m.Name() != "stuck_fraction" {
		t.Errorf("unexpected name %s", m.Name())
	}
	if m.Value() != 0 {
		t.Errorf("expected 0 before observations, got %f", m.Value())
	}

	m.Observe(sample(1, 1, physics.ModeNormal))
	m.Observe(sample(1, 1, physics.ModeValveStuck))
	m.Observe(sample(1, 1, physics.ModeValveStuck))
	m.Observe(sample(1, 1, physics.ModeValveStuck))

	if m.Value() != 0.75 {
		t.Errorf("expected 0.75, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}

	if NewModeDwell(physics.ModeNormal).Name() != "normal_fraction" {
		t.Error("unexpected name for NORMAL dwell")
	}
}

func TestPeakLevel(t *testing.T) {
	p := NewPeakLevel(1)
	if p.Name() != "peak_h2" {
		t.Errorf("unexpected name %s", p.Name())
	}

	p.Observe(sample(5, -2, physics.ModeNormal))
	p.Observe(sample(5, -1, physics.ModeNormal))
	p.Observe(sample(5, -3, physics.ModeNormal))

	if p.Value() != -1 {
		t.Errorf("expected peak -1, got %f", p.Value())
	}

	p.Reset()
	p.Observe(sample(0, 0.5, physics.ModeNormal))
	if p.Value() != 0.5 {
		t.Errorf("expected peak 0.5 after reset, got %f", p.Value())
	}
}

func TestImbalance(t *testing.T) {
	m := NewImbalance()
	m.Observe(sample(2, 1, physics.ModeNormal))
	m.Observe(sample(1, 4, physics.ModeNormal))

	if m.Value() != 2 {
		t.Errorf("expected 2, got %f", m.Value())
	}

	m.Reset()
	if m.Value() != 0 {
		t.Error("expected zero after reset")
	}
}

func TestCapacity(t *testing.T) {
	c := NewCapacity(10)

	if c.Value() != 1.0 {
		t.Errorf("expected 1.0 with no samples, got %f", c.Value())
	}

	c.Observe(sample(1, 1, physics.ModeNormal))
	c.Observe(sample(11, 1, physics.ModeNormal))
	c.Observe(sample(1, -0.1, physics.ModeNormal))
	c.Observe(sample(2, 2, physics.ModeNormal))

	if c.Value() != 0.5 {
		t.Errorf("expected 0.5, got %f", c.Value())
	}
}

func TestDefaultMetricsOnAnomalousRun(t *testing.T) {
	s := sim.New(physics.NewTwoTank, integrators.NewEuler())
	for _, m := range Default(1000) {
		s.AddMetric(m)
	}

	traj, err := s.Run(context.Background(), dynamo.State{1, 1}, sim.DefaultConfig().WithAnomaly(25))
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if got := traj.Metrics["stuck_fraction"]; math.Abs(got-0.5) > 1e-12 {
		t.Errorf("expected stuck_fraction 0.5, got %f", got)
	}
	if got := traj.Metrics["within_capacity"]; got != 1.0 {
		t.Errorf("expected within_capacity 1.0, got %f", got)
	}
	if traj.Metrics["peak_h1"] <= 1 {
		t.Errorf("expected tank 1 to rise, peak %f", traj.Metrics["peak_h1"])
	}
	for _, name := range []string{"peak_h2", "mean_imbalance"} {
		if _, ok := traj.Metrics[name]; !ok {
			t.Errorf("metric %s missing", name)
		}
	}
}
