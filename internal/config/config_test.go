package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.TotalTimeThreshold != 20.0 {
		t.Errorf("TotalTimeThreshold = %v, want 20", cfg.TotalTimeThreshold)
	}
	if cfg.ParentTimeThreshold != 40.0 {
		t.Errorf("ParentTimeThreshold = %v, want 40", cfg.ParentTimeThreshold)
	}
	if len(cfg.TargetFunctions) != 0 {
		t.Errorf("TargetFunctions = %v, want empty", cfg.TargetFunctions)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mtinstr.yaml")
	data := `
total_time_threshold: 30.5
target_functions:
  - hot
  - main
callgraph_dot: graph.dot
`
	if err := os.WriteFile(path, []byte(data), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TotalTimeThreshold != 30.5 {
		t.Errorf("TotalTimeThreshold = %v, want 30.5", cfg.TotalTimeThreshold)
	}
	// Unset fields keep their defaults.
	if cfg.ParentTimeThreshold != 40.0 {
		t.Errorf("ParentTimeThreshold = %v, want default 40", cfg.ParentTimeThreshold)
	}
	if len(cfg.TargetFunctions) != 2 || cfg.TargetFunctions[0] != "hot" {
		t.Errorf("TargetFunctions = %v", cfg.TargetFunctions)
	}
	if cfg.CallGraphDOT != "graph.dot" {
		t.Errorf("CallGraphDOT = %q", cfg.CallGraphDOT)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Errorf("Load of a missing file must fail")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("{\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Errorf("Load of malformed YAML must fail")
	}
}

func TestLoad_NonPositiveThresholdsFallBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zero.yaml")
	if err := os.WriteFile(path, []byte("total_time_threshold: -3\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.TotalTimeThreshold != 20.0 {
		t.Errorf("negative threshold not reset: %v", cfg.TotalTimeThreshold)
	}
}
