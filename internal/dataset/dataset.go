package dataset

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

var (
	// ErrLengthMismatch indicates feature and label sequences of different length.
	ErrLengthMismatch = errors.New("dataset: feature and label counts differ")

	// ErrBadLabel indicates a label outside {0, 1}.
	ErrBadLabel = errors.New("dataset: label must be 0 or 1")
)

const (
	LabelNormal    = 0
	LabelAnomalous = 1
)

// Row is one feature row: sample time and both tank heights.
type Row struct {
	Time float64 `json:"time"`
	H1   float64 `json:"h1"`
	H2   float64 `json:"h2"`
}

// RunSpan locates one run's rows inside a Dataset.
type RunSpan struct {
	Offset    int                `json:"offset"`
	Len       int                `json:"len"`
	Anomalous bool               `json:"anomalous"`
	Initial   [2]float64         `json:"initial"`
	Metrics   map[string]float64 `json:"metrics,omitempty"`
}

// Dataset holds parallel feature and label sequences: Labels[i] belongs to
// Features[i]. Runs is optional bookkeeping and may be empty for datasets
// loaded from plain CSV.
type Dataset struct {
	Features []Row
	Labels   []int
	Runs     []RunSpan
}

func (d *Dataset) Len() int {
	return len(d.Features)
}

func (d *Dataset) Validate() error {
	if len(d.Features) != len(d.Labels) {
		return fmt.Errorf("%w: %d features, %d labels", ErrLengthMismatch, len(d.Features), len(d.Labels))
	}
	for i, l := range d.Labels {
		if l != LabelNormal && l != LabelAnomalous {
			return fmt.Errorf("%w: row %d has %d", ErrBadLabel, i, l)
		}
	}
	return nil
}

// Append concatenates other onto d. Both must be valid.
func (d *Dataset) Append(other *Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := other.Validate(); err != nil {
		return err
	}

	base := len(d.Features)
	d.Features = append(d.Features, other.Features...)
	d.Labels = append(d.Labels, other.Labels...)
	for _, r := range other.Runs {
		r.Offset += base
		d.Runs = append(d.Runs, r)
	}
	return nil
}

// Counts returns the number of normal and anomalous labels.
func (d *Dataset) Counts() (normal, anomalous int) {
	for _, l := range d.Labels {
		if l == LabelAnomalous {
			anomalous++
		} else {
			normal++
		}
	}
	return normal, anomalous
}

// Matrix returns the features as an n×3 matrix with columns time, h1, h2.
// It returns nil for an empty dataset.
func (d *Dataset) Matrix() *mat.Dense {
	if len(d.Features) == 0 {
		return nil
	}
	data := make([]float64, 0, len(d.Features)*3)
	for _, r := range d.Features {
		data = append(data, r.Time, r.H1, r.H2)
	}
	return mat.NewDense(len(d.Features), 3, data)
}

// LabelVector returns the labels as a float vector, nil when empty.
func (d *Dataset) LabelVector() *mat.VecDense {
	if len(d.Labels) == 0 {
		return nil
	}
	data := make([]float64, len(d.Labels))
	for i, l := range d.Labels {
		data[i] = float64(l)
	}
	return mat.NewVecDense(len(data), data)
}

type ClassSummary struct {
	Count  int
	MeanH1 float64
	StdH1  float64
	MeanH2 float64
	StdH2  float64
}

type Summary struct {
	Normal    ClassSummary
	Anomalous ClassSummary
}

func (d *Dataset) Summary() Summary {
	var h1 [2][]float64
	var h2 [2][]float64
	for i, r := range d.Features {
		if i >= len(d.Labels) {
			break
		}
		l := d.Labels[i]
		if l != LabelAnomalous {
			l = LabelNormal
		}
		h1[l] = append(h1[l], r.H1)
		h2[l] = append(h2[l], r.H2)
	}

	return Summary{
		Normal:    summarize(h1[LabelNormal], h2[LabelNormal]),
		Anomalous: summarize(h1[LabelAnomalous], h2[LabelAnomalous]),
	}
}

func summarize(h1, h2 []float64) ClassSummary {
	cs := ClassSummary{Count: len(h1)}
	switch {
	case len(h1) == 0:
	case len(h1) == 1:
		cs.MeanH1, cs.MeanH2 = h1[0], h2[0]
	default:
		cs.MeanH1, cs.StdH1 = stat.MeanStdDev(h1, nil)
		cs.MeanH2, cs.StdH2 = stat.MeanStdDev(h2, nil)
	}
	return cs
}
