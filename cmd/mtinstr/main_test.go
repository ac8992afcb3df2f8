package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseArgs_ModeExclusivity(t *testing.T) {
	cases := []struct {
		name string
		args []string
	}{
		{"neither mode", []string{"input.c"}},
		{"both modes", []string{"-time-inst", "-memory-inst", "input.c"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseArgs(tc.args); err == nil {
				t.Errorf("parseArgs(%v) succeeded, want mode error", tc.args)
			}
		})
	}
}

func TestParseArgs_NoInputFiles(t *testing.T) {
	if _, err := parseArgs([]string{"-time-inst"}); err == nil {
		t.Errorf("parseArgs without inputs succeeded")
	}
}

func TestParseArgs_OutputWithMultipleInputs(t *testing.T) {
	if _, err := parseArgs([]string{"-time-inst", "-o", "out.c", "a.c", "b.c"}); err == nil {
		t.Errorf("-o with multiple inputs must fail")
	}
}

func TestParseArgs_Defaults(t *testing.T) {
	opts, err := parseArgs([]string{"-time-inst", "input.c"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if !opts.timeInst || opts.memoryInst {
		t.Errorf("mode flags wrong: %+v", opts)
	}
	if opts.totalTimeThreshold != 20.0 || opts.parentTimeThreshold != 40.0 {
		t.Errorf("default thresholds wrong: %+v", opts)
	}
	if len(opts.files) != 1 || opts.files[0] != "input.c" {
		t.Errorf("files = %v", opts.files)
	}
}

func TestParseArgs_TargetFuncs(t *testing.T) {
	opts, err := parseArgs([]string{"-memory-inst", "-target-funcs=hot, main,", "input.c"})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if len(opts.targetFuncs) != 2 || opts.targetFuncs[0] != "hot" || opts.targetFuncs[1] != "main" {
		t.Errorf("targetFuncs = %v", opts.targetFuncs)
	}
}

func TestParseArgs_FlagsOverrideConfig(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "cfg.yaml")
	cfg := "total_time_threshold: 33\nparent_time_threshold: 44\ntarget_functions: [cfgfn]\n"
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}

	opts, err := parseArgs([]string{
		"-memory-inst", "-config", cfgPath, "-total-time-threshold=55", "input.c",
	})
	if err != nil {
		t.Fatalf("parseArgs: %v", err)
	}
	if opts.totalTimeThreshold != 55 {
		t.Errorf("explicit flag did not override config: %v", opts.totalTimeThreshold)
	}
	if opts.parentTimeThreshold != 44 {
		t.Errorf("config value not applied: %v", opts.parentTimeThreshold)
	}
	if len(opts.targetFuncs) != 1 || opts.targetFuncs[0] != "cfgfn" {
		t.Errorf("config target functions not applied: %v", opts.targetFuncs)
	}
}

func TestDefaultOutputPath(t *testing.T) {
	cases := []struct {
		input    string
		timeMode bool
		want     string
	}{
		{filepath.Join("src", "kernel.c"), true, filepath.Join("src", "instrumented_kernel.c")},
		{filepath.Join("src", "kernel.c"), false, filepath.Join("src", "mem_prof_kernel.c")},
		{"kernel.c", true, "instrumented_kernel.c"},
	}
	for _, tc := range cases {
		if got := defaultOutputPath(tc.input, tc.timeMode); got != tc.want {
			t.Errorf("defaultOutputPath(%q, %v) = %q, want %q", tc.input, tc.timeMode, got, tc.want)
		}
	}
}

func TestSplitFuncs(t *testing.T) {
	got := splitFuncs(" a, b ,,c ")
	if len(got) != 3 || got[0] != "a" || got[1] != "b" || got[2] != "c" {
		t.Errorf("splitFuncs = %v", got)
	}
	if splitFuncs("") != nil {
		t.Errorf("splitFuncs(\"\") = %v, want nil", splitFuncs(""))
	}
}

// TestProcessFile_TimeMode runs the whole pipeline against a real file on
// disk and checks the written artifact.
func TestProcessFile_TimeMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "chain.c")
	src := `void c(){}
void b(){c();}
void a(){b();}
int main(){a();return 0;}
`
	if err := os.WriteFile(input, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := &options{timeInst: true, totalTimeThreshold: 20, parentTimeThreshold: 40, files: []string{input}}
	if err := processFile(newLogger(os.Stderr), opts, input); err != nil {
		t.Fatalf("processFile: %v", err)
	}

	outPath := filepath.Join(dir, "instrumented_chain.c")
	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written: %v", err)
	}
	out := string(data)
	for _, want := range []string{
		"static unsigned long __time_main[24] = {0};",
		"void __print_timing_results()",
		"int main(){",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

// TestProcessFile_MemoryMode: -o controls the artifact location, and the
// DOT export is written to the -callgraph-dot path.
func TestProcessFile_MemoryMode(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "buf.c")
	src := `void f(){ int a[4]; a[0]=1; }
`
	if err := os.WriteFile(input, []byte(src), 0o644); err != nil {
		t.Fatal(err)
	}
	outPath := filepath.Join(dir, "custom.c")
	dotPath := filepath.Join(dir, "graph.dot")
	opts := &options{
		memoryInst:   true,
		output:       outPath,
		callGraphDOT: dotPath,
		files:        []string{input},
	}
	if err := processFile(newLogger(os.Stderr), opts, input); err != nil {
		t.Fatalf("processFile: %v", err)
	}

	data, err := os.ReadFile(outPath)
	if err != nil {
		t.Fatalf("output not written to -o path: %v", err)
	}
	if !strings.Contains(string(data), "__mem_record(&__a_prof") {
		t.Errorf("memory instrumentation missing from output")
	}
	dot, err := os.ReadFile(dotPath)
	if err != nil {
		t.Fatalf("DOT export missing: %v", err)
	}
	if !strings.HasPrefix(string(dot), "digraph CallGraph {") {
		t.Errorf("DOT content wrong: %q", dot)
	}
}

// TestProcessFile_UnreadableInput: the error is reported and no output
// file appears.
func TestProcessFile_UnreadableInput(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "absent.c")
	opts := &options{timeInst: true, files: []string{input}}
	if err := processFile(newLogger(os.Stderr), opts, input); err == nil {
		t.Fatalf("processFile succeeded on a missing input")
	}
	if _, err := os.Stat(filepath.Join(dir, "instrumented_absent.c")); err == nil {
		t.Errorf("partial output written for a failed run")
	}
}

func TestRun_ExitCodes(t *testing.T) {
	if code := run([]string{}); code != 1 {
		t.Errorf("run with no args = %d, want 1", code)
	}
	if code := run([]string{"-time-inst", "-memory-inst", "x.c"}); code != 1 {
		t.Errorf("run with both modes = %d, want 1", code)
	}

	dir := t.TempDir()
	input := filepath.Join(dir, "ok.c")
	if err := os.WriteFile(input, []byte("void g(){}\nvoid f(){ g(); }\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if code := run([]string{"-time-inst", input}); code != 0 {
		t.Errorf("run on a valid input = %d, want 0", code)
	}
}
