package sim

import (
	"context"
	"fmt"
	"math"

	"github.com/go-logr/logr"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/physics"
)

type Simulator struct {
	newSystem  func() *physics.TwoTank
	integrator dynamo.Integrator
	metrics    []Metric
	observers  []Observer
}

// New returns a simulator that builds a fresh automaton from newSystem for
// every run. A Simulator is not safe for concurrent use: metrics and some
// integrators carry per-run state.
func New(newSystem func() *physics.TwoTank, integrator dynamo.Integrator) *Simulator {
	return &Simulator{
		newSystem:  newSystem,
		integrator: integrator,
		metrics:    make([]Metric, 0),
		observers:  make([]Observer, 0),
	}
}

func (s *Simulator) AddMetric(m Metric)     { s.metrics = append(s.metrics, m) }
func (s *Simulator) AddObserver(o Observer) { s.observers = append(s.observers, o) }

// Run simulates one trajectory on the half-open grid [0, Duration). At each
// sample time the anomaly check runs first, then the pre-step state is
// recorded, then the state advances by one integrator step.
func (s *Simulator) Run(ctx context.Context, x0 dynamo.State, cfg Config) (*Trajectory, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	sys := s.newSystem()
	if err := dynamo.CheckDim(sys, x0); err != nil {
		return nil, err
	}

	log := logr.FromContextOrDiscard(ctx)

	n := SampleCount(cfg.Duration, cfg.Dt)
	traj := &Trajectory{
		Samples: make([]Sample, 0, n),
		Metrics: make(map[string]float64),
	}

	for _, m := range s.metrics {
		m.Reset()
	}

	x := x0.Clone()
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		t := float64(i) * cfg.Dt

		if cfg.InjectAnomaly && t >= cfg.AnomalyOnset && sys.Mode() != physics.ModeValveStuck {
			from := sys.Mode()
			if err := sys.SetMode(physics.ModeValveStuck); err != nil {
				return nil, err
			}
			log.V(1).Info("mode transition", "time", t, "step", i, "from", from.String(), "to", sys.Mode().String())
		}

		sample := Sample{Time: t, State: x.Clone(), Mode: sys.Mode()}
		traj.Samples = append(traj.Samples, sample)

		for _, m := range s.metrics {
			m.Observe(sample)
		}
		for _, obs := range s.observers {
			obs.OnStep(sample)
		}

		next := s.integrator.Step(sys, x, nil, t, cfg.Dt)
		if cfg.ValidateState && !next.IsValid() {
			return nil, &dynamo.SimulationError{Step: i, Time: t, State: x.Clone(), Wrapped: dynamo.ErrInvalidState}
		}
		x = next
	}

	for _, m := range s.metrics {
		traj.Metrics[m.Name()] = m.Value()
	}

	return traj, nil
}

func validateConfig(cfg Config) error {
	if !(cfg.Dt > 0) || math.IsInf(cfg.Dt, 0) {
		return fmt.Errorf("dt must be positive and finite, got %f", cfg.Dt)
	}
	if !(cfg.Duration > 0) || math.IsInf(cfg.Duration, 0) {
		return fmt.Errorf("duration must be positive and finite, got %f", cfg.Duration)
	}
	if cfg.InjectAnomaly && math.IsNaN(cfg.AnomalyOnset) {
		return fmt.Errorf("anomaly onset must be a number")
	}
	return nil
}
