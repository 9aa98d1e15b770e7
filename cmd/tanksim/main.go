package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/spf13/cobra"

	"github.com/san-kum/tanksim/internal/config"
	"github.com/san-kum/tanksim/internal/integrators"
)

var (
	dataDir    string
	configFile string
	preset     string
	verbosity  int

	dt          float64
	duration    float64
	onset       float64
	anomaly     bool
	h1, h2      float64
	integrator  string
	normalRuns  int
	anomalyRuns int
	seed        int64
	workers     int
	showTUI     bool
	appendTo    string
	runIndex    int
	plotHeight  int
	plotWidth   int
	phaseHeight int
	phaseWidth  int
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "tanksim",
		Short:         "two-tank valve fault simulator and dataset generator",
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			cmd.SetContext(logr.NewContext(cmd.Context(), newLogger(verbosity)))
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&dataDir, "data", ".tanksim", "data directory")
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "named preset applied before the config file")
	pf.IntVarP(&verbosity, "verbosity", "v", 0, "log verbosity on stderr")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "simulate a single trajectory",
		Args:  cobra.NoArgs,
		RunE:  runSimulation,
	}
	addRunFlags(runCmd)
	runCmd.Flags().BoolVar(&anomaly, "anomaly", false, "inject the valve fault at --onset")
	runCmd.Flags().Float64Var(&h1, "h1", 1.0, "initial level of tank 1")
	runCmd.Flags().Float64Var(&h2, "h2", 1.0, "initial level of tank 2")
	runCmd.Flags().StringVar(&integrator, "integrator", "euler", fmt.Sprintf("integrator %v", integrators.Names()))

	generateCmd := &cobra.Command{
		Use:   "generate",
		Short: "generate a labelled dataset of normal and faulty runs",
		Args:  cobra.NoArgs,
		RunE:  generateDataset,
	}
	addRunFlags(generateCmd)
	generateCmd.Flags().IntVar(&normalRuns, "normal", 10, "number of normal runs")
	generateCmd.Flags().IntVar(&anomalyRuns, "anomalous", 10, "number of anomalous runs")
	generateCmd.Flags().Int64Var(&seed, "seed", config.DefaultSeed, "random seed for initial levels")
	generateCmd.Flags().IntVar(&workers, "workers", 1, "parallel runs (0 = GOMAXPROCS)")
	generateCmd.Flags().BoolVar(&showTUI, "tui", false, "show a progress view")
	generateCmd.Flags().StringVar(&appendTo, "append", "", "stored dataset id to extend with the new runs")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs and datasets",
		Args:  cobra.NoArgs,
		RunE:  listEntries,
	}

	plotCmd := &cobra.Command{
		Use:   "plot [id]",
		Short: "plot tank levels of a run or of one run inside a dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  plotEntry,
	}
	plotCmd.Flags().IntVar(&runIndex, "run", 0, "run index inside a dataset")
	plotCmd.Flags().IntVar(&plotHeight, "height", 10, "plot height")
	plotCmd.Flags().IntVar(&plotWidth, "width", 80, "plot width")

	phaseCmd := &cobra.Command{
		Use:   "phase [run_id]",
		Short: "h1 vs h2 phase portrait of a stored run",
		Args:  cobra.ExactArgs(1),
		RunE:  phasePlot,
	}
	phaseCmd.Flags().IntVar(&phaseHeight, "height", 20, "plot height")
	phaseCmd.Flags().IntVar(&phaseWidth, "width", 60, "plot width")

	statsCmd := &cobra.Command{
		Use:   "stats [dataset_id]",
		Short: "per-class statistics of a stored dataset",
		Args:  cobra.ExactArgs(1),
		RunE:  datasetStats,
	}

	compareCmd := &cobra.Command{
		Use:   "compare",
		Short: "compare Euler against RK4 on the same run",
		Args:  cobra.NoArgs,
		RunE:  compareIntegrators,
	}
	addRunFlags(compareCmd)
	compareCmd.Flags().BoolVar(&anomaly, "anomaly", false, "inject the valve fault at --onset")
	compareCmd.Flags().Float64Var(&h1, "h1", 1.0, "initial level of tank 1")
	compareCmd.Flags().Float64Var(&h2, "h2", 1.0, "initial level of tank 2")

	presetsCmd := &cobra.Command{
		Use:   "presets",
		Short: "list available presets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, name := range config.ListPresets() {
				cfg := config.GetPreset(name)
				fmt.Fprintf(cmd.OutOrStdout(), "  %-12s dt=%g duration=%g onset=%g runs=%d/%d\n",
					name, cfg.Run.Dt, cfg.Run.Duration, cfg.Run.AnomalyOnset,
					cfg.Dataset.NormalRuns, cfg.Dataset.AnomalousRuns)
			}
			return nil
		},
	}

	exportJSONCmd := &cobra.Command{
		Use:   "export-json [id]",
		Short: "export a stored run or dataset as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  exportJSON,
	}

	rootCmd.AddCommand(runCmd, generateCmd, listCmd, plotCmd, phaseCmd, statsCmd, compareCmd, presetsCmd, exportJSONCmd)
	return rootCmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().Float64Var(&dt, "dt", 0.1, "timestep")
	cmd.Flags().Float64Var(&duration, "time", 50.0, "duration")
	cmd.Flags().Float64Var(&onset, "onset", 25.0, "valve fault onset time")
}

func newLogger(v int) logr.Logger {
	return funcr.New(func(prefix, args string) {
		if prefix != "" {
			fmt.Fprintln(os.Stderr, prefix, args)
			return
		}
		fmt.Fprintln(os.Stderr, args)
	}, funcr.Options{Verbosity: v})
}

// resolveConfig layers DefaultConfig, --preset, --config and explicitly set
// flags, in that order.
func resolveConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if preset != "" {
		cfg = config.GetPreset(preset)
		if cfg == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets())
		}
	}

	if configFile != "" {
		var err error
		cfg, err = config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dt") {
		cfg.Run.Dt = dt
	}
	if flags.Changed("time") {
		cfg.Run.Duration = duration
	}
	if flags.Changed("onset") {
		cfg.Run.AnomalyOnset = onset
	}
	if flags.Changed("normal") {
		cfg.Dataset.NormalRuns = normalRuns
	}
	if flags.Changed("anomalous") {
		cfg.Dataset.AnomalousRuns = anomalyRuns
	}
	if flags.Changed("seed") {
		cfg.Dataset.Seed = seed
	}
	if flags.Changed("workers") {
		cfg.Dataset.Workers = workers
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
