package config

import "sort"

// Presets are partial overrides applied on top of DefaultConfig.
var Presets = map[string]func(*Config){
	"default": func(c *Config) {},
	"quick": func(c *Config) {
		c.Run.Duration = 10
		c.Run.AnomalyOnset = 5
		c.Dataset.NormalRuns = 3
		c.Dataset.AnomalousRuns = 2
	},
	"fine": func(c *Config) {
		c.Run.Dt = 0.01
	},
	"early-fault": func(c *Config) {
		c.Run.AnomalyOnset = 5
	},
	"large": func(c *Config) {
		c.Dataset.NormalRuns = 500
		c.Dataset.AnomalousRuns = 500
		c.Dataset.Workers = 0
	},
}

// GetPreset returns DefaultConfig with the named preset applied, or nil.
func GetPreset(name string) *Config {
	apply, ok := Presets[name]
	if !ok {
		return nil
	}
	cfg := DefaultConfig()
	apply(cfg)
	return cfg
}

func ListPresets() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
