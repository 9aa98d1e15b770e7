package sim

import (
	"math"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/physics"
)

const (
	DefaultDt           = 0.1
	DefaultDuration     = 50.0
	DefaultAnomalyOnset = 25.0
)

// Config describes a single run. When InjectAnomaly is false the run
// stays in ModeNormal and AnomalyOnset is ignored.
type Config struct {
	Dt            float64
	Duration      float64
	InjectAnomaly bool
	AnomalyOnset  float64
	ValidateState bool
}

func DefaultConfig() Config {
	return Config{
		Dt:           DefaultDt,
		Duration:     DefaultDuration,
		AnomalyOnset: DefaultAnomalyOnset,
	}
}

// WithAnomaly returns a copy of c that switches to ModeValveStuck at onset.
func (c Config) WithAnomaly(onset float64) Config {
	c.InjectAnomaly = true
	c.AnomalyOnset = onset
	return c
}

// Sample is one recorded step: the state before that step's integration.
type Sample struct {
	Time  float64
	State dynamo.State
	Mode  physics.Mode
}

type Trajectory struct {
	Samples []Sample
	Metrics map[string]float64
}

func (tr *Trajectory) Len() int {
	return len(tr.Samples)
}

func (tr *Trajectory) States() []dynamo.State {
	states := make([]dynamo.State, len(tr.Samples))
	for i, s := range tr.Samples {
		states[i] = s.State
	}
	return states
}

func (tr *Trajectory) Modes() []physics.Mode {
	modes := make([]physics.Mode, len(tr.Samples))
	for i, s := range tr.Samples {
		modes[i] = s.Mode
	}
	return modes
}

// FirstIndexOf returns the index of the first sample recorded in mode m,
// or -1 if the run never entered it.
func (tr *Trajectory) FirstIndexOf(m physics.Mode) int {
	for i, s := range tr.Samples {
		if s.Mode == m {
			return i
		}
	}
	return -1
}

type Metric interface {
	Name() string
	Observe(s Sample)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(s Sample)
}

// SampleCount returns the number of times i*dt that fall in [0, duration).
func SampleCount(duration, dt float64) int {
	if !(dt > 0) || !(duration > 0) || math.IsInf(duration, 0) {
		return 0
	}

	n := int(math.Ceil(duration / dt))
	for n > 0 && float64(n-1)*dt >= duration {
		n--
	}
	for float64(n)*dt < duration {
		n++
	}
	return n
}
