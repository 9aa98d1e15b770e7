package dataset

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync/atomic"

	"github.com/go-logr/logr"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/sim"
)

// ErrNegativeRuns indicates a negative normal or anomalous run count.
var ErrNegativeRuns = errors.New("dataset: run counts must be non-negative")

const (
	DefaultInitMin = 0.5
	DefaultInitMax = 1.5
)

type Config struct {
	NormalRuns    int
	AnomalousRuns int
	Dt            float64
	Duration      float64
	AnomalyOnset  float64
	InitMin       float64
	InitMax       float64
}

func DefaultConfig() Config {
	return Config{
		Dt:           sim.DefaultDt,
		Duration:     sim.DefaultDuration,
		AnomalyOnset: sim.DefaultAnomalyOnset,
		InitMin:      DefaultInitMin,
		InitMax:      DefaultInitMax,
	}
}

func (c Config) Validate() error {
	if c.NormalRuns < 0 || c.AnomalousRuns < 0 {
		return fmt.Errorf("%w: normal=%d anomalous=%d", ErrNegativeRuns, c.NormalRuns, c.AnomalousRuns)
	}
	if !(c.Dt > 0) || math.IsInf(c.Dt, 0) {
		return fmt.Errorf("dt must be positive and finite, got %f", c.Dt)
	}
	if !(c.Duration > 0) || math.IsInf(c.Duration, 0) {
		return fmt.Errorf("duration must be positive and finite, got %f", c.Duration)
	}
	if math.IsNaN(c.AnomalyOnset) {
		return fmt.Errorf("anomaly onset must be a number")
	}
	if !(c.InitMin <= c.InitMax) {
		return fmt.Errorf("initial height range [%f, %f] is empty", c.InitMin, c.InitMax)
	}
	return nil
}

// RowsPerRun is the trajectory length every run contributes.
func (c Config) RowsPerRun() int {
	return sim.SampleCount(c.Duration, c.Dt)
}

// Label derives a sample's label from its time alone: 1 for samples of an
// anomalous run at or after onset, 0 otherwise. It deliberately does not
// consult the recorded mode.
func Label(t float64, anomalous bool, onset float64) int {
	if anomalous && t >= onset {
		return LabelAnomalous
	}
	return LabelNormal
}

type Generator struct {
	newSim     func() *sim.Simulator
	rng        *rand.Rand
	workers    int
	onProgress func(done, total int)
}

// NewGenerator draws every initial state from rng. newSim is called once
// per worker, so each worker owns its simulator and metrics.
func NewGenerator(newSim func() *sim.Simulator, rng *rand.Rand) *Generator {
	return &Generator{
		newSim:  newSim,
		rng:     rng,
		workers: 1,
	}
}

// SetWorkers bounds run-level parallelism. n <= 0 uses GOMAXPROCS. Output
// is identical for every worker count.
func (g *Generator) SetWorkers(n int) {
	g.workers = n
}

// OnProgress registers a callback invoked after each completed run. With
// more than one worker it is called from several goroutines.
func (g *Generator) OnProgress(fn func(done, total int)) {
	g.onProgress = fn
}

type runPlan struct {
	x0        dynamo.State
	anomalous bool
}

// plan draws initial states in reference order: all normal runs, then all
// anomalous runs, h1 before h2 within a run.
func (g *Generator) plan(cfg Config) []runPlan {
	plans := make([]runPlan, 0, cfg.NormalRuns+cfg.AnomalousRuns)
	span := cfg.InitMax - cfg.InitMin
	draw := func(anomalous bool) runPlan {
		h1 := cfg.InitMin + span*g.rng.Float64()
		h2 := cfg.InitMin + span*g.rng.Float64()
		return runPlan{x0: dynamo.State{h1, h2}, anomalous: anomalous}
	}

	for i := 0; i < cfg.NormalRuns; i++ {
		plans = append(plans, draw(false))
	}
	for i := 0; i < cfg.AnomalousRuns; i++ {
		plans = append(plans, draw(true))
	}
	return plans
}

func (p runPlan) runConfig(cfg Config) sim.Config {
	rc := sim.Config{Dt: cfg.Dt, Duration: cfg.Duration}
	if p.anomalous {
		rc = rc.WithAnomaly(cfg.AnomalyOnset)
	}
	return rc
}

// Generate simulates cfg.NormalRuns runs without a fault and
// cfg.AnomalousRuns runs with a valve fault at cfg.AnomalyOnset, then
// concatenates their rows in that order. Any run error aborts the call.
func (g *Generator) Generate(ctx context.Context, cfg Config) (*Dataset, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log := logr.FromContextOrDiscard(ctx)
	log.Info("generating dataset", "normal", cfg.NormalRuns, "anomalous", cfg.AnomalousRuns,
		"dt", cfg.Dt, "duration", cfg.Duration, "onset", cfg.AnomalyOnset, "workers", g.workers)

	plans := g.plan(cfg)
	runs := make([]*sim.Trajectory, len(plans))
	errs := make([]error, len(plans))

	var done atomic.Int64
	dynamo.ParallelFor(len(plans), g.workers, 1, func(start, end int) {
		s := g.newSim()
		for i := start; i < end; i++ {
			runs[i], errs[i] = s.Run(ctx, plans[i].x0, plans[i].runConfig(cfg))
			if errs[i] != nil {
				return
			}
			n := done.Add(1)
			if g.onProgress != nil {
				g.onProgress(int(n), len(plans))
			}
		}
	})

	for i, err := range errs {
		if err != nil {
			return nil, fmt.Errorf("run %d: %w", i, err)
		}
	}

	ds := assemble(plans, runs, cfg.AnomalyOnset)
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	normal, anomalous := ds.Counts()
	log.Info("dataset ready", "rows", ds.Len(), "normalLabels", normal, "anomalousLabels", anomalous)
	return ds, nil
}

func assemble(plans []runPlan, runs []*sim.Trajectory, onset float64) *Dataset {
	total := 0
	for _, tr := range runs {
		total += tr.Len()
	}

	ds := &Dataset{
		Features: make([]Row, 0, total),
		Labels:   make([]int, 0, total),
		Runs:     make([]RunSpan, 0, len(runs)),
	}

	for i, tr := range runs {
		ds.Runs = append(ds.Runs, RunSpan{
			Offset:    len(ds.Features),
			Len:       tr.Len(),
			Anomalous: plans[i].anomalous,
			Initial:   [2]float64{plans[i].x0[0], plans[i].x0[1]},
			Metrics:   tr.Metrics,
		})
		for _, s := range tr.Samples {
			ds.Features = append(ds.Features, Row{Time: s.Time, H1: s.State[0], H2: s.State[1]})
			ds.Labels = append(ds.Labels, Label(s.Time, plans[i].anomalous, onset))
		}
	}
	return ds
}
