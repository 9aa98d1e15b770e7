package analysis

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/integrators"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

func run(t *testing.T, integ dynamo.Integrator, cfg sim.Config) *sim.Trajectory {
	t.Helper()
	traj, err := sim.New(physics.NewTwoTank, integ).Run(context.Background(), dynamo.State{1.4, 0.6}, cfg)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	return traj
}

func TestPhasePortraitASCII(t *testing.T) {
	traj := run(t, integrators.NewEuler(), sim.Config{Dt: 0.1, Duration: 10}.WithAnomaly(5))
	p := NewPhasePortrait(traj)

	if len(p.Points) != traj.Len() {
		t.Fatalf("expected %d points, got %d", traj.Len(), len(p.Points))
	}

	out := p.ASCII(40, 12)
	lines := strings.Split(strings.TrimSuffix(out, "\n"), "\n")
	if len(lines) != 12 {
		t.Errorf("expected 12 lines, got %d", len(lines))
	}
	if !strings.ContainsRune(out, '•') {
		t.Error("expected NORMAL samples in output")
	}
	if !strings.ContainsRune(out, 'x') {
		t.Error("expected VALVE_STUCK samples in output")
	}
	for _, line := range lines {
		if len([]rune(line)) > 40 {
			t.Errorf("line wider than canvas: %q", line)
		}
	}
}

func TestPhasePortraitEmpty(t *testing.T) {
	var p *PhasePortrait
	if p.ASCII(10, 10) != "" {
		t.Error("expected empty output for nil portrait")
	}
	if (&PhasePortrait{}).ASCII(10, 10) != "" {
		t.Error("expected empty output for empty portrait")
	}
}

func TestCompareIdentical(t *testing.T) {
	a := run(t, integrators.NewEuler(), sim.DefaultConfig())
	b := run(t, integrators.NewEuler(), sim.DefaultConfig())

	d, err := Compare(a, b)
	if err != nil {
		t.Fatal(err)
	}
	if d.MaxAbs != 0 || d.RMS != 0 {
		t.Errorf("expected zero deviation, got %+v", d)
	}
}

func TestCompareEulerVsRK4(t *testing.T) {
	cfg := sim.Config{Dt: 0.1, Duration: 20}
	euler := run(t, integrators.NewEuler(), cfg)
	rk4 := run(t, integrators.NewRK4(), cfg)

	d, err := Compare(euler, rk4)
	if err != nil {
		t.Fatal(err)
	}
	if d.MaxAbs <= 0 {
		t.Error("expected Euler and RK4 to differ")
	}
	if d.RMS > d.MaxAbs {
		t.Errorf("rms %f exceeds max %f", d.RMS, d.MaxAbs)
	}
	// The pre-step state at t=0 is identical, so error grows from zero.
	if d.WorstTime == 0 {
		t.Error("worst deviation should not be at t=0")
	}
	if math.IsNaN(d.FinalDiff.Norm()) {
		t.Error("final difference is NaN")
	}
}

func TestCompareLengthMismatch(t *testing.T) {
	a := run(t, integrators.NewEuler(), sim.Config{Dt: 0.1, Duration: 1})
	b := run(t, integrators.NewEuler(), sim.Config{Dt: 0.1, Duration: 2})

	if _, err := Compare(a, b); !errors.Is(err, dynamo.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch, got %v", err)
	}
}
