package storage

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/tanksim/internal/dataset"
	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

const (
	KindRun     = "run"
	KindDataset = "dataset"

	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	datasetFile  = "dataset.csv"
)

var ErrWrongKind = errors.New("storage: entry has a different kind")

type Store struct {
	baseDir string
	now     func() time.Time
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir, now: time.Now}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type Metadata struct {
	ID            string             `json:"id"`
	Kind          string             `json:"kind"`
	Timestamp     time.Time          `json:"timestamp"`
	Seed          int64              `json:"seed,omitempty"`
	Dt            float64            `json:"dt"`
	Duration      float64            `json:"duration"`
	Anomalous     bool               `json:"anomalous,omitempty"`
	AnomalyOnset  float64            `json:"anomaly_onset"`
	Integrator    string             `json:"integrator,omitempty"`
	Params        map[string]float64 `json:"params,omitempty"`
	NormalRuns    int                `json:"normal_runs,omitempty"`
	AnomalousRuns int                `json:"anomalous_runs,omitempty"`
	Rows          int                `json:"rows"`
	Runs          []dataset.RunSpan  `json:"runs,omitempty"`
	Metrics       map[string]float64 `json:"metrics,omitempty"`
}

// newEntry allocates a fresh directory named kind_<unix-nanos>, adding a
// suffix if that name is already taken.
func (s *Store) newEntry(kind string) (string, string, error) {
	base := fmt.Sprintf("%s_%d", kind, s.now().UnixNano())
	id := base
	for i := 1; ; i++ {
		dir := filepath.Join(s.baseDir, id)
		err := os.Mkdir(dir, 0755)
		if err == nil {
			return id, dir, nil
		}
		if !os.IsExist(err) {
			return "", "", err
		}
		id = fmt.Sprintf("%s_%d", base, i)
	}
}

func writeMetadata(dir string, meta *Metadata) error {
	f, err := os.Create(filepath.Join(dir, metadataFile))
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// SaveRun stores one trajectory as metadata.json plus states.csv with
// columns time,h1,h2,mode. meta.ID, Kind, Timestamp and Rows are filled in.
func (s *Store) SaveRun(meta Metadata, traj *sim.Trajectory) (string, error) {
	id, dir, err := s.newEntry(KindRun)
	if err != nil {
		return "", err
	}

	meta.ID = id
	meta.Kind = KindRun
	meta.Timestamp = s.now()
	meta.Rows = traj.Len()
	if meta.Metrics == nil {
		meta.Metrics = traj.Metrics
	}
	if err := writeMetadata(dir, &meta); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	rows := make([][]string, 0, traj.Len()+1)
	rows = append(rows, []string{"time", "h1", "h2", "mode"})
	for _, sample := range traj.Samples {
		rows = append(rows, []string{
			formatFloat(sample.Time),
			formatFloat(sample.State[0]),
			formatFloat(sample.State[1]),
			sample.Mode.String(),
		})
	}
	if err := writeCSV(filepath.Join(dir, statesFile), rows); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return id, nil
}

// SaveDataset stores a dataset as metadata.json plus dataset.csv with
// columns time,h1,h2,label.
func (s *Store) SaveDataset(meta Metadata, ds *dataset.Dataset) (string, error) {
	if err := ds.Validate(); err != nil {
		return "", err
	}

	id, dir, err := s.newEntry(KindDataset)
	if err != nil {
		return "", err
	}

	meta.ID = id
	meta.Kind = KindDataset
	meta.Timestamp = s.now()
	meta.Rows = ds.Len()
	meta.Runs = ds.Runs
	if err := writeMetadata(dir, &meta); err != nil {
		os.RemoveAll(dir)
		return "", err
	}

	rows := make([][]string, 0, ds.Len()+1)
	rows = append(rows, []string{"time", "h1", "h2", "label"})
	for i, r := range ds.Features {
		rows = append(rows, []string{
			formatFloat(r.Time),
			formatFloat(r.H1),
			formatFloat(r.H2),
			strconv.Itoa(ds.Labels[i]),
		})
	}
	if err := writeCSV(filepath.Join(dir, datasetFile), rows); err != nil {
		os.RemoveAll(dir)
		return "", err
	}
	return id, nil
}

func writeCSV(path string, rows [][]string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		return err
	}
	return f.Sync()
}

// List returns all readable entries sorted by timestamp.
func (s *Store) List() ([]Metadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Metadata{}, nil
		}
		return nil, err
	}

	out := make([]Metadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		out = append(out, *meta)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *Store) Load(id string) (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, id, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("%s: %w", id, err)
	}
	return &meta, nil
}

func readCSV(path string, columns int) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = columns

	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%s: missing header", path)
	}
	return records[1:], nil
}

func parseFloats(record []string, n int) ([]float64, error) {
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		v, err := strconv.ParseFloat(record[i], 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// LoadRun reads back a trajectory saved with SaveRun.
func (s *Store) LoadRun(id string) (*sim.Trajectory, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindRun {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, meta.Kind)
	}

	records, err := readCSV(filepath.Join(s.baseDir, id, statesFile), 4)
	if err != nil {
		return nil, err
	}

	traj := &sim.Trajectory{
		Samples: make([]sim.Sample, 0, len(records)),
		Metrics: meta.Metrics,
	}
	for i, rec := range records {
		vals, err := parseFloats(rec, 3)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", id, i+1, err)
		}
		mode, err := physics.ParseMode(rec[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", id, i+1, err)
		}
		traj.Samples = append(traj.Samples, sim.Sample{
			Time:  vals[0],
			State: dynamo.State{vals[1], vals[2]},
			Mode:  mode,
		})
	}
	return traj, nil
}

// LoadDataset reads back a dataset saved with SaveDataset.
func (s *Store) LoadDataset(id string) (*dataset.Dataset, error) {
	meta, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if meta.Kind != KindDataset {
		return nil, fmt.Errorf("%w: %s is a %s", ErrWrongKind, id, meta.Kind)
	}

	records, err := readCSV(filepath.Join(s.baseDir, id, datasetFile), 4)
	if err != nil {
		return nil, err
	}

	ds := &dataset.Dataset{
		Features: make([]dataset.Row, 0, len(records)),
		Labels:   make([]int, 0, len(records)),
		Runs:     meta.Runs,
	}
	for i, rec := range records {
		vals, err := parseFloats(rec, 3)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", id, i+1, err)
		}
		label, err := strconv.Atoi(rec[3])
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", id, i+1, err)
		}
		ds.Features = append(ds.Features, dataset.Row{Time: vals[0], H1: vals[1], H2: vals[2]})
		ds.Labels = append(ds.Labels, label)
	}

	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
