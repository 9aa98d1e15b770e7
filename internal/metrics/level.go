package metrics

import (
	"fmt"
	"math"

	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

type PeakLevel struct {
	name  string
	index int
	peak  float64
	seen  bool
}

// NewPeakLevel tracks the highest level of tank index (0 for h1, 1 for h2).
func NewPeakLevel(index int) *PeakLevel {
	return &PeakLevel{
		name:  fmt.Sprintf("peak_h%d", index+1),
		index: index,
	}
}

func (p *PeakLevel) Name() string {
	return p.name
}

func (p *PeakLevel) Observe(s sim.Sample) {
	if p.index >= len(s.State) {
		return
	}
	v := s.State[p.index]
	if !p.seen || v > p.peak {
		p.peak = v
		p.seen = true
	}
}

func (p *PeakLevel) Value() float64 {
	return p.peak
}

func (p *PeakLevel) Reset() {
	p.peak = 0
	p.seen = false
}

// Imbalance is the mean absolute height difference |h1 - h2|.
type Imbalance struct {
	name    string
	sum     float64
	samples int
}

func NewImbalance() *Imbalance {
	return &Imbalance{name: "mean_imbalance"}
}

func (m *Imbalance) Name() string {
	return m.name
}

func (m *Imbalance) Observe(s sim.Sample) {
	if len(s.State) < 2 {
		return
	}
	m.sum += math.Abs(s.State[0] - s.State[1])
	m.samples++
}

func (m *Imbalance) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *Imbalance) Reset() {
	m.sum = 0
	m.samples = 0
}

// Capacity is the fraction of samples where every tank level stays within
// [0, limit]. Heights are not clamped by the model, so this is how a run
// reports overflow or a drained tank.
type Capacity struct {
	name       string
	limit      float64
	violations int
	samples    int
}

func NewCapacity(limit float64) *Capacity {
	return &Capacity{
		name:  "within_capacity",
		limit: limit,
	}
}

func (c *Capacity) Name() string {
	return c.name
}

func (c *Capacity) Observe(s sim.Sample) {
	c.samples++
	for _, h := range s.State {
		if h < 0 || h > c.limit {
			c.violations++
			break
		}
	}
}

func (c *Capacity) Value() float64 {
	if c.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(c.violations)/float64(c.samples)
}

func (c *Capacity) Reset() {
	c.violations = 0
	c.samples = 0
}

// Default returns the metrics attached to every run by the CLI.
func Default(capacity float64) []sim.Metric {
	return []sim.Metric{
		NewModeDwell(physics.ModeValveStuck),
		NewPeakLevel(0),
		NewPeakLevel(1),
		NewImbalance(),
		NewCapacity(capacity),
	}
}
