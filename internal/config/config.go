package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/tanksim/internal/dataset"
	"github.com/san-kum/tanksim/internal/physics"
	"github.com/san-kum/tanksim/internal/sim"
)

const (
	DefaultCapacity = 1000.0
	DefaultSeed     = 1
)

type Config struct {
	System  SystemConfig  `yaml:"system"`
	Run     RunConfig     `yaml:"run"`
	Dataset DatasetConfig `yaml:"dataset"`
}

type SystemConfig struct {
	A1           float64 `yaml:"a1"`
	A2           float64 `yaml:"a2"`
	ValveSetting float64 `yaml:"valve_setting"`
	Inflow       float64 `yaml:"inflow"`
	Capacity     float64 `yaml:"capacity"`
}

type RunConfig struct {
	Dt           float64 `yaml:"dt"`
	Duration     float64 `yaml:"duration"`
	AnomalyOnset float64 `yaml:"anomaly_onset"`
}

type DatasetConfig struct {
	NormalRuns    int     `yaml:"normal_runs"`
	AnomalousRuns int     `yaml:"anomalous_runs"`
	Seed          int64   `yaml:"seed"`
	Workers       int     `yaml:"workers"`
	InitMin       float64 `yaml:"init_min"`
	InitMax       float64 `yaml:"init_max"`
}

func DefaultConfig() *Config {
	p := physics.DefaultParams()
	return &Config{
		System: SystemConfig{
			A1:           p.A1,
			A2:           p.A2,
			ValveSetting: p.ValveSetting,
			Inflow:       p.Inflow,
			Capacity:     DefaultCapacity,
		},
		Run: RunConfig{
			Dt:           sim.DefaultDt,
			Duration:     sim.DefaultDuration,
			AnomalyOnset: sim.DefaultAnomalyOnset,
		},
		Dataset: DatasetConfig{
			NormalRuns:    10,
			AnomalousRuns: 10,
			Seed:          DefaultSeed,
			Workers:       1,
			InitMin:       dataset.DefaultInitMin,
			InitMax:       dataset.DefaultInitMax,
		},
	}
}

// Load reads a YAML file on top of DefaultConfig, so omitted keys keep
// their defaults, and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := LoadOver(path, DefaultConfig())
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOver reads a YAML file on top of base, which is modified in place.
// The result is not validated: callers layering flags on top validate once
// all overrides are applied.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, base); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return base, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := c.Params().Factory(); err != nil {
		return fmt.Errorf("system: %w", err)
	}
	if c.System.Capacity <= 0 {
		return fmt.Errorf("system: capacity must be positive, got %f", c.System.Capacity)
	}
	if err := c.DatasetConfig().Validate(); err != nil {
		return err
	}
	if c.Dataset.Workers < 0 {
		return fmt.Errorf("dataset: workers must be non-negative, got %d", c.Dataset.Workers)
	}
	return nil
}

func (c *Config) Params() physics.Params {
	return physics.Params{
		A1:           c.System.A1,
		A2:           c.System.A2,
		ValveSetting: c.System.ValveSetting,
		Inflow:       c.System.Inflow,
	}
}

// SimConfig returns the single-run configuration. anomalous selects
// whether the valve fault is injected at Run.AnomalyOnset.
func (c *Config) SimConfig(anomalous bool) sim.Config {
	rc := sim.Config{Dt: c.Run.Dt, Duration: c.Run.Duration}
	if anomalous {
		rc = rc.WithAnomaly(c.Run.AnomalyOnset)
	}
	return rc
}

func (c *Config) DatasetConfig() dataset.Config {
	return dataset.Config{
		NormalRuns:    c.Dataset.NormalRuns,
		AnomalousRuns: c.Dataset.AnomalousRuns,
		Dt:            c.Run.Dt,
		Duration:      c.Run.Duration,
		AnomalyOnset:  c.Run.AnomalyOnset,
		InitMin:       c.Dataset.InitMin,
		InitMax:       c.Dataset.InitMax,
	}
}
