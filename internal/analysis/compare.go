package analysis

import (
	"fmt"
	"math"

	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/sim"
)

type Deviation struct {
	MaxAbs    float64
	RMS       float64
	FinalDiff dynamo.State
	// WorstTime is the sample time of MaxAbs.
	WorstTime float64
}

// Compare returns the state-wise deviation between two trajectories that
// share a time grid.
func Compare(a, b *sim.Trajectory) (Deviation, error) {
	if a.Len() != b.Len() {
		return Deviation{}, fmt.Errorf("%w: %d vs %d samples", dynamo.ErrDimensionMismatch, a.Len(), b.Len())
	}
	if a.Len() == 0 {
		return Deviation{}, nil
	}

	var d Deviation
	sumSq := 0.0
	for i := range a.Samples {
		diff := a.Samples[i].State.Sub(b.Samples[i].State)
		n := diff.Norm()
		sumSq += n * n
		if n > d.MaxAbs {
			d.MaxAbs = n
			d.WorstTime = a.Samples[i].Time
		}
	}

	last := a.Len() - 1
	d.FinalDiff = a.Samples[last].State.Sub(b.Samples[last].State)
	d.RMS = math.Sqrt(sumSq / float64(a.Len()))
	return d, nil
}
