// Package config loads the optional YAML run configuration. Everything in
// it can also be given as a command-line flag; explicit flags win over the
// file, and the zero config is fully usable.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hthread/mtinstr/internal/codegen"
)

// Config is the on-disk run configuration.
type Config struct {
	// TotalTimeThreshold is the hot-function threshold against total
	// program time, in percent.
	TotalTimeThreshold float64 `yaml:"total_time_threshold"`
	// ParentTimeThreshold is the hot-function threshold against the mean
	// parent time, in percent.
	ParentTimeThreshold float64 `yaml:"parent_time_threshold"`
	// TargetFunctions restricts memory instrumentation; empty means all.
	TargetFunctions []string `yaml:"target_functions"`
	// CallGraphDOT, when set, is the path the call graph is exported to in
	// Graphviz form.
	CallGraphDOT string `yaml:"callgraph_dot"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		TotalTimeThreshold:  codegen.DefaultTotalTimeThreshold,
		ParentTimeThreshold: codegen.DefaultParentTimeThreshold,
	}
}

// Load reads a YAML configuration file. Unset fields keep their defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if cfg.TotalTimeThreshold <= 0 {
		cfg.TotalTimeThreshold = codegen.DefaultTotalTimeThreshold
	}
	if cfg.ParentTimeThreshold <= 0 {
		cfg.ParentTimeThreshold = codegen.DefaultParentTimeThreshold
	}
	return cfg, nil
}
