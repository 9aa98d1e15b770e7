package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math/rand"
	"slices"
	"text/tabwriter"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/tanksim/internal/analysis"
	"github.com/san-kum/tanksim/internal/config"
	"github.com/san-kum/tanksim/internal/dataset"
	"github.com/san-kum/tanksim/internal/dynamo"
	"github.com/san-kum/tanksim/internal/integrators"
	"github.com/san-kum/tanksim/internal/metrics"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
	"github.com/san-kum/tanksim/internal/storage"
	"github.com/san-kum/tanksim/internal/tui"
	"github.com/san-kum/tanksim/internal/viz"
)

func newSimulator(cfg *config.Config, integ dynamo.Integrator) (*sim.Simulator, error) {
	factory, err := cfg.Params().Factory()
	if err != nil {
		return nil, err
	}
	s := sim.New(factory, integ)
	for _, m := range metrics.Default(cfg.System.Capacity) {
		s.AddMetric(m)
	}
	return s, nil
}

func openStore() (*storage.Store, error) {
	st := storage.New(dataDir)
	if err := st.Init(); err != nil {
		return nil, err
	}
	return st, nil
}

func printMetrics(w io.Writer, m map[string]float64) {
	for _, name := range slices.Sorted(maps.Keys(m)) {
		fmt.Fprintf(w, "  %s\n", viz.KeyValue(name, fmt.Sprintf("%.6f", m[name]), 16))
	}
}

func runSimulation(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	integ, err := integrators.ByName(integrator)
	if err != nil {
		return err
	}
	s, err := newSimulator(cfg, integ)
	if err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "running two-tank simulation...")
	start := time.Now()

	traj, err := s.Run(cmd.Context(), dynamo.State{h1, h2}, cfg.SimConfig(anomaly))
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.Metadata{
		Dt:           cfg.Run.Dt,
		Duration:     cfg.Run.Duration,
		Anomalous:    anomaly,
		AnomalyOnset: cfg.Run.AnomalyOnset,
		Integrator:   integrator,
		Params:       systemParams(cfg),
	}
	id, err := st.SaveRun(meta, traj)
	if err != nil {
		return err
	}

	last := traj.Samples[traj.Len()-1]
	fmt.Fprintf(out, "completed in %v\n", elapsed)
	fmt.Fprintf(out, "run id: %s\n", id)
	fmt.Fprintf(out, "samples: %d\n", traj.Len())
	fmt.Fprintf(out, "final: h1=%.4f h2=%.4f %s\n", last.State[0], last.State[1], viz.ModeBadge(last.Mode))
	if i := traj.FirstIndexOf(physics.ModeValveStuck); i >= 0 {
		fmt.Fprintf(out, "fault at t=%.4f (sample %d)\n", traj.Samples[i].Time, i)
	}
	fmt.Fprintf(out, "h1 %s\n", viz.Sparkline(column(traj, 0), 60))
	fmt.Fprintln(out, "\nmetrics:")
	printMetrics(out, traj.Metrics)
	return nil
}

func systemParams(cfg *config.Config) map[string]float64 {
	factory, err := cfg.Params().Factory()
	if err != nil {
		return nil
	}
	return factory().GetParams()
}

func generateDataset(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// Validate the system once; newSim below cannot report errors.
	if _, err := newSimulator(cfg, integrators.NewEuler()); err != nil {
		return err
	}
	st, err := openStore()
	if err != nil {
		return err
	}

	gen := dataset.NewGenerator(func() *sim.Simulator {
		s, _ := newSimulator(cfg, integrators.NewEuler())
		return s
	}, rand.New(rand.NewSource(cfg.Dataset.Seed)))
	gen.SetWorkers(cfg.Dataset.Workers)

	dcfg := cfg.DatasetConfig()
	out := cmd.OutOrStdout()
	start := time.Now()

	var ds *dataset.Dataset
	if showTUI {
		total := dcfg.NormalRuns + dcfg.AnomalousRuns
		err = tui.Run(cmd.Context(), "generating dataset", total, func(ctx context.Context, report func(done, total int)) error {
			gen.OnProgress(report)
			var genErr error
			ds, genErr = gen.Generate(ctx, dcfg)
			return genErr
		})
	} else {
		fmt.Fprintf(out, "generating %d normal + %d anomalous runs...\n", dcfg.NormalRuns, dcfg.AnomalousRuns)
		ds, err = gen.Generate(cmd.Context(), dcfg)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	meta := storage.Metadata{
		Seed:          cfg.Dataset.Seed,
		Dt:            dcfg.Dt,
		Duration:      dcfg.Duration,
		AnomalyOnset:  dcfg.AnomalyOnset,
		Integrator:    "euler",
		Params:        systemParams(cfg),
		NormalRuns:    dcfg.NormalRuns,
		AnomalousRuns: dcfg.AnomalousRuns,
	}
	if appendTo != "" {
		if ds, err = appendDataset(st, appendTo, &meta, ds); err != nil {
			return err
		}
	}
	id, err := st.SaveDataset(meta, ds)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "completed in %v\n", elapsed)
	fmt.Fprintf(out, "dataset id: %s\n", id)
	fmt.Fprintf(out, "rows: %d (%d per run)\n\n", ds.Len(), dcfg.RowsPerRun())
	if appendTo != "" {
		fmt.Fprintf(out, "appended to: %s\n\n", appendTo)
	}
	printSummary(out, ds.Summary())
	return nil
}

// appendDataset places ds after the runs of a stored dataset. The stored
// entry is left untouched; the combined dataset is saved as a new entry.
func appendDataset(st *storage.Store, baseID string, meta *storage.Metadata, ds *dataset.Dataset) (*dataset.Dataset, error) {
	baseMeta, err := st.Load(baseID)
	if err != nil {
		return nil, err
	}
	if baseMeta.Dt != meta.Dt || baseMeta.Duration != meta.Duration || baseMeta.AnomalyOnset != meta.AnomalyOnset {
		return nil, fmt.Errorf("cannot append to %s: time grid dt=%g duration=%g onset=%g differs from dt=%g duration=%g onset=%g",
			baseID, baseMeta.Dt, baseMeta.Duration, baseMeta.AnomalyOnset, meta.Dt, meta.Duration, meta.AnomalyOnset)
	}

	base, err := st.LoadDataset(baseID)
	if err != nil {
		return nil, err
	}
	if err := base.Append(ds); err != nil {
		return nil, err
	}

	meta.NormalRuns += baseMeta.NormalRuns
	meta.AnomalousRuns += baseMeta.AnomalousRuns
	return base, nil
}

func printSummary(w io.Writer, s dataset.Summary) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tROWS\tMEAN_H1\tSTD_H1\tMEAN_H2\tSTD_H2")
	for _, row := range []struct {
		name string
		cs   dataset.ClassSummary
	}{
		{"normal", s.Normal},
		{"anomalous", s.Anomalous},
	} {
		fmt.Fprintf(tw, "%s\t%d\t%.4f\t%.4f\t%.4f\t%.4f\n",
			row.name, row.cs.Count, row.cs.MeanH1, row.cs.StdH1, row.cs.MeanH2, row.cs.StdH2)
	}
	tw.Flush()
}

func listEntries(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	entries, err := st.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(entries) == 0 {
		fmt.Fprintln(out, "no runs found")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tKIND\tTIME\tDURATION\tDT\tONSET\tROWS\tDETAIL")
	for _, e := range entries {
		detail := e.Integrator
		switch e.Kind {
		case storage.KindDataset:
			detail = fmt.Sprintf("%d normal / %d anomalous, seed %d", e.NormalRuns, e.AnomalousRuns, e.Seed)
		case storage.KindRun:
			if e.Anomalous {
				detail += ", fault"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2fs\t%.4fs\t%.2fs\t%d\t%s\n",
			e.ID,
			e.Kind,
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Duration,
			e.Dt,
			e.AnomalyOnset,
			e.Rows,
			detail,
		)
	}
	return w.Flush()
}

// loadTrajectory returns a stored run, or run --run of a stored dataset
// rebuilt from its rows. Dataset rows carry labels rather than modes, so
// the label stands in for the mode.
func loadTrajectory(st *storage.Store, id string) (*storage.Metadata, *sim.Trajectory, error) {
	meta, err := st.Load(id)
	if err != nil {
		return nil, nil, err
	}
	if meta.Kind == storage.KindRun {
		traj, err := st.LoadRun(id)
		return meta, traj, err
	}

	ds, err := st.LoadDataset(id)
	if err != nil {
		return nil, nil, err
	}
	if runIndex < 0 || runIndex >= len(ds.Runs) {
		return nil, nil, fmt.Errorf("run index %d out of range [0, %d)", runIndex, len(ds.Runs))
	}
	span := ds.Runs[runIndex]
	traj := &sim.Trajectory{Metrics: span.Metrics}
	for i := span.Offset; i < span.Offset+span.Len; i++ {
		mode := physics.ModeNormal
		if ds.Labels[i] == dataset.LabelAnomalous {
			mode = physics.ModeValveStuck
		}
		row := ds.Features[i]
		traj.Samples = append(traj.Samples, sim.Sample{
			Time:  row.Time,
			State: dynamo.State{row.H1, row.H2},
			Mode:  mode,
		})
	}
	return meta, traj, nil
}

func column(traj *sim.Trajectory, idx int) []float64 {
	out := make([]float64, traj.Len())
	for i, x := range traj.States() {
		out[i] = x[idx]
	}
	return out
}

func plotEntry(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadTrajectory(storage.New(dataDir), args[0])
	if err != nil {
		return err
	}
	if traj.Len() == 0 {
		return fmt.Errorf("no data to plot")
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, viz.Header.Render(meta.ID))
	fmt.Fprintf(out, "samples: %d\n", traj.Len())
	if i := traj.FirstIndexOf(physics.ModeValveStuck); i >= 0 {
		fmt.Fprintf(out, "fault from t=%.4f\n", traj.Samples[i].Time)
	}
	fmt.Fprintln(out)

	graph := asciigraph.PlotMany([][]float64{column(traj, 0), column(traj, 1)},
		asciigraph.Height(plotHeight),
		asciigraph.Width(plotWidth),
		asciigraph.SeriesColors(asciigraph.Blue, asciigraph.Red),
		asciigraph.SeriesLegends("h1", "h2"),
		asciigraph.Caption("tank levels vs time"),
	)
	fmt.Fprintln(out, graph)
	return nil
}

func phasePlot(cmd *cobra.Command, args []string) error {
	meta, traj, err := loadTrajectory(storage.New(dataDir), args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "phase portrait: %s\n", meta.ID)
	fmt.Fprintln(out, viz.Subtle.Render("x-axis: h1, y-axis: h2, • normal, x valve stuck"))
	fmt.Fprintln(out)
	fmt.Fprint(out, analysis.NewPhasePortrait(traj).ASCII(phaseWidth, phaseHeight))
	return nil
}

func datasetStats(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}
	ds, err := st.LoadDataset(args[0])
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	normal, anomalous := ds.Counts()
	fmt.Fprintln(out, viz.Header.Render(meta.ID))
	fmt.Fprintln(out, viz.KeyValue("rows", fmt.Sprint(ds.Len()), 10))
	fmt.Fprintln(out, viz.KeyValue("runs", fmt.Sprint(len(ds.Runs)), 10))
	fmt.Fprintln(out, viz.KeyValue("labels", fmt.Sprintf("%d normal, %d anomalous", normal, anomalous), 10))
	fmt.Fprintln(out, viz.KeyValue("seed", fmt.Sprint(meta.Seed), 10))
	fmt.Fprintln(out)
	printSummary(out, ds.Summary())
	return nil
}

func compareIntegrators(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	rc := cfg.SimConfig(anomaly)
	fmt.Fprintf(out, "comparing integrators (dt=%.4f, duration=%.1fs)\n\n", rc.Dt, rc.Duration)
	fmt.Fprintf(out, "%-12s  %-12s  %-12s  %-12s\n", "integrator", "final_h1", "final_h2", "time_ms")

	names := []string{"euler", "rk4"}
	trajs := make([]*sim.Trajectory, len(names))
	for i, name := range names {
		integ, err := integrators.ByName(name)
		if err != nil {
			return err
		}
		s, err := newSimulator(cfg, integ)
		if err != nil {
			return err
		}

		start := time.Now()
		traj, err := s.Run(cmd.Context(), dynamo.State{h1, h2}, rc)
		if err != nil {
			fmt.Fprintf(out, "%-12s  error: %v\n", name, err)
			return err
		}
		elapsed := time.Since(start)
		trajs[i] = traj

		last := traj.Samples[traj.Len()-1].State
		fmt.Fprintf(out, "%-12s  %12.6f  %12.6f  %12.2f\n", name, last[0], last[1], float64(elapsed.Microseconds())/1000)
	}

	d, err := analysis.Compare(trajs[0], trajs[1])
	if err != nil {
		return err
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, viz.KeyValue("max deviation", fmt.Sprintf("%.3e at t=%.2f", d.MaxAbs, d.WorstTime), 16))
	fmt.Fprintln(out, viz.KeyValue("rms deviation", fmt.Sprintf("%.3e", d.RMS), 16))
	return nil
}

func exportJSON(cmd *cobra.Command, args []string) error {
	st := storage.New(dataDir)
	meta, err := st.Load(args[0])
	if err != nil {
		return err
	}

	var payload any
	switch meta.Kind {
	case storage.KindDataset:
		ds, err := st.LoadDataset(args[0])
		if err != nil {
			return err
		}
		payload = struct {
			Metadata *storage.Metadata `json:"metadata"`
			Features []dataset.Row     `json:"features"`
			Labels   []int             `json:"labels"`
		}{meta, ds.Features, ds.Labels}
	default:
		traj, err := st.LoadRun(args[0])
		if err != nil {
			return err
		}
		type sample struct {
			Time float64      `json:"time"`
			H1   float64      `json:"h1"`
			H2   float64      `json:"h2"`
			Mode physics.Mode `json:"mode"`
		}
		samples := make([]sample, 0, traj.Len())
		for _, s := range traj.Samples {
			samples = append(samples, sample{s.Time, s.State[0], s.State[1], s.Mode})
		}
		payload = struct {
			Metadata *storage.Metadata `json:"metadata"`
			Samples  []sample          `json:"samples"`
		}{meta, samples}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
