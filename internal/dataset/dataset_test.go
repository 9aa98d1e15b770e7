package dataset

import (
	"errors"
	"math"
	"testing"
)

func TestLabel(t *testing.T) {
	tests := []struct {
		name      string
		t         float64
		anomalous bool
		want      int
	}{
		{"normal run before onset", 10, false, 0},
		{"normal run after onset", 40, false, 0},
		{"anomalous before onset", 24.9, true, 0},
		{"anomalous at onset", 25, true, 1},
		{"anomalous after onset", 49.9, true, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Label(tt.t, tt.anomalous, 25); got != tt.want {
				t.Errorf("Label(%v, %v) = %d, want %d", tt.t, tt.anomalous, got, tt.want)
			}
		})
	}
}

func sampleDataset() *Dataset {
	return &Dataset{
		Features: []Row{
			{Time: 0, H1: 1, H2: 2},
			{Time: 0.1, H1: 3, H2: 4},
			{Time: 0.2, H1: 5, H2: 6},
			{Time: 0.3, H1: 7, H2: 8},
		},
		Labels: []int{0, 0, 1, 1},
		Runs:   []RunSpan{{Offset: 0, Len: 4, Anomalous: true}},
	}
}

func TestDatasetValidate(t *testing.T) {
	if err := sampleDataset().Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	short := sampleDataset()
	short.Labels = short.Labels[:3]
	if err := short.Validate(); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}

	bad := sampleDataset()
	bad.Labels[1] = 2
	if err := bad.Validate(); !errors.Is(err, ErrBadLabel) {
		t.Errorf("expected ErrBadLabel, got %v", err)
	}
}

func TestDatasetAppend(t *testing.T) {
	a := sampleDataset()
	b := sampleDataset()

	if err := a.Append(b); err != nil {
		t.Fatalf("append failed: %v", err)
	}
	if a.Len() != 8 || len(a.Labels) != 8 {
		t.Errorf("expected 8 rows, got %d/%d", a.Len(), len(a.Labels))
	}
	if len(a.Runs) != 2 || a.Runs[1].Offset != 4 {
		t.Errorf("unexpected runs after append: %+v", a.Runs)
	}

	broken := sampleDataset()
	broken.Features = broken.Features[:1]
	before := a.Len()
	if err := a.Append(broken); !errors.Is(err, ErrLengthMismatch) {
		t.Errorf("expected ErrLengthMismatch, got %v", err)
	}
	if a.Len() != before {
		t.Error("failed append modified the dataset")
	}
}

func TestDatasetMatrix(t *testing.T) {
	ds := sampleDataset()

	m := ds.Matrix()
	r, c := m.Dims()
	if r != 4 || c != 3 {
		t.Fatalf("expected 4x3 matrix, got %dx%d", r, c)
	}
	if m.At(2, 0) != 0.2 || m.At(2, 1) != 5 || m.At(2, 2) != 6 {
		t.Errorf("unexpected row 2: %v %v %v", m.At(2, 0), m.At(2, 1), m.At(2, 2))
	}

	v := ds.LabelVector()
	if v.Len() != 4 || v.AtVec(3) != 1 || v.AtVec(0) != 0 {
		t.Errorf("unexpected label vector")
	}

	empty := &Dataset{}
	if empty.Matrix() != nil || empty.LabelVector() != nil {
		t.Error("expected nil views for empty dataset")
	}
}

func TestDatasetSummary(t *testing.T) {
	s := sampleDataset().Summary()

	if s.Normal.Count != 2 || s.Anomalous.Count != 2 {
		t.Fatalf("unexpected counts: %+v", s)
	}
	if s.Normal.MeanH1 != 2 || s.Normal.MeanH2 != 3 {
		t.Errorf("unexpected normal means: %+v", s.Normal)
	}
	if s.Anomalous.MeanH1 != 6 || s.Anomalous.MeanH2 != 7 {
		t.Errorf("unexpected anomalous means: %+v", s.Anomalous)
	}
	// Sample standard deviation of {1, 3}.
	if math.Abs(s.Normal.StdH1-math.Sqrt2) > 1e-12 {
		t.Errorf("expected std sqrt(2), got %f", s.Normal.StdH1)
	}

	one := &Dataset{Features: []Row{{H1: 4, H2: 5}}, Labels: []int{1}}
	s = one.Summary()
	if s.Anomalous.Count != 1 || s.Anomalous.MeanH1 != 4 || s.Anomalous.StdH1 != 0 {
		t.Errorf("unexpected single-row summary: %+v", s.Anomalous)
	}
	if s.Normal.Count != 0 {
		t.Errorf("expected no normal rows, got %d", s.Normal.Count)
	}
}

func TestConfigRowsPerRun(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.RowsPerRun() != 500 {
		t.Errorf("expected 500 rows per run, got %d", cfg.RowsPerRun())
	}
	if cfg.InitMin != 0.5 || cfg.InitMax != 1.5 {
		t.Errorf("unexpected init range [%f, %f]", cfg.InitMin, cfg.InitMax)
	}
}
