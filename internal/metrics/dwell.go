package metrics

import (
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

// ModeDwell is the fraction of samples recorded in a given mode.
type ModeDwell struct {
	name    string
	mode    physics.Mode
	hits    int
	samples int
}

func NewModeDwell(mode physics.Mode) *ModeDwell {
	name := "normal_fraction"
	if mode == physics.ModeValveStuck {
		name = "stuck_fraction"
	}
	return &ModeDwell{name: name, mode: mode}
}

func (d *ModeDwell) Name() string {
	return d.name
}

func (d *ModeDwell) Observe(s sim.Sample) {
	d.samples++
	if s.Mode == d.mode {
		d.hits++
	}
}

func (d *ModeDwell) Value() float64 {
	if d.samples == 0 {
		return 0
	}
	return float64(d.hits) / float64(d.samples)
}

func (d *ModeDwell) Reset() {
	d.hits = 0
	d.samples = 0
}
