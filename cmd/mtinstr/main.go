// Package main implements the mtinstr CLI, the source-to-source
// instrumentation tool for C programs targeting the MT-3000 many-core
// accelerator.
//
// Given one or more C translation units, the tool rewrites each source to
// interleave either cycle-counter timing probes (per function and per call
// site) or per-variable memory-access recorders, and appends the runtime
// report emitter. The rewritten file stays standalone C compilable by the
// device toolchain; at run time the probes populate per-thread tables and
// thread 0 prints the report.
//
// Usage:
//
//	mtinstr -time-inst file.c            # timing mode
//	mtinstr -memory-inst file.c          # memory mode
//	mtinstr -memory-inst -target-funcs=hot,main file.c
//	mtinstr -time-inst -o out.c file.c
//
// Exactly one of -time-inst and -memory-inst must be selected.
package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"

	"github.com/hthread/mtinstr/internal/config"
)

const version = "0.1.0"

// options is the fully resolved run configuration: defaults, then the
// config file, then explicitly set flags, in increasing precedence.
type options struct {
	timeInst   bool
	memoryInst bool

	totalTimeThreshold  float64
	parentTimeThreshold float64
	targetFuncs         []string

	output        string
	dumpCallGraph bool
	callGraphDOT  string
	verbose       bool

	files []string
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	log := newLogger(os.Stderr)

	opts, err := parseArgs(args)
	if err != nil {
		if err == flag.ErrHelp {
			return 0
		}
		log.Error().Err(err).Msg("argument parsing failed")
		return 1
	}
	if opts.verbose {
		log = log.Level(zerolog.DebugLevel)
	}

	banner(log, opts)

	failed := 0
	for _, file := range opts.files {
		if err := processFile(log, opts, file); err != nil {
			log.Error().Str("file", file).Err(err).Msg("instrumentation failed")
			failed++
		}
	}
	if failed > 0 {
		return 1
	}
	return 0
}

func newLogger(w *os.File) zerolog.Logger {
	out := zerolog.ConsoleWriter{Out: w, NoColor: true}
	out.PartsExclude = []string{zerolog.TimestampFieldName}
	return zerolog.New(out).Level(zerolog.InfoLevel)
}

func parseArgs(args []string) (*options, error) {
	fs := flag.NewFlagSet("mtinstr", flag.ContinueOnError)
	fs.Usage = func() { usage(fs) }

	timeInst := fs.Bool("time-inst", false, "enable timing instrumentation")
	memoryInst := fs.Bool("memory-inst", false, "enable memory-access instrumentation")
	totalThreshold := fs.Float64("total-time-threshold", 0, "hot-function threshold vs total program time, percent")
	parentThreshold := fs.Float64("parent-time-threshold", 0, "hot-function threshold vs parent time, percent")
	targetFuncs := fs.String("target-funcs", "", "comma-separated functions to restrict memory instrumentation to")
	output := fs.String("o", "", "output file (single input only)")
	configPath := fs.String("config", "", "YAML configuration file")
	dumpGraph := fs.Bool("dump-callgraph", false, "print the call graph")
	dotPath := fs.String("callgraph-dot", "", "export the call graph in Graphviz form to this path")
	verbose := fs.Bool("v", false, "verbose output with instrumentation statistics")
	showVersion := fs.Bool("version", false, "print version and exit")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if *showVersion {
		fmt.Printf("mtinstr version %s\n", version)
		return nil, flag.ErrHelp
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	opts := &options{
		timeInst:            *timeInst,
		memoryInst:          *memoryInst,
		totalTimeThreshold:  cfg.TotalTimeThreshold,
		parentTimeThreshold: cfg.ParentTimeThreshold,
		targetFuncs:         cfg.TargetFunctions,
		output:              *output,
		dumpCallGraph:       *dumpGraph,
		callGraphDOT:        cfg.CallGraphDOT,
		verbose:             *verbose,
		files:               fs.Args(),
	}

	// Explicit flags override the configuration file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "total-time-threshold":
			opts.totalTimeThreshold = *totalThreshold
		case "parent-time-threshold":
			opts.parentTimeThreshold = *parentThreshold
		case "target-funcs":
			opts.targetFuncs = splitFuncs(*targetFuncs)
		case "callgraph-dot":
			opts.callGraphDOT = *dotPath
		}
	})

	if opts.timeInst == opts.memoryInst {
		return nil, fmt.Errorf("exactly one of -time-inst and -memory-inst must be selected")
	}
	if len(opts.files) == 0 {
		return nil, fmt.Errorf("no input files")
	}
	if opts.output != "" && len(opts.files) > 1 {
		return nil, fmt.Errorf("-o cannot be combined with multiple input files")
	}
	return opts, nil
}

func splitFuncs(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func banner(log zerolog.Logger, opts *options) {
	log.Info().Msg("MT-3000 Source Code Instrumentation Tool")
	if opts.timeInst {
		log.Info().Msg("Mode: Timing Instrumentation")
	} else {
		log.Info().Msg("Mode: Memory Access Instrumentation")
	}
	if opts.memoryInst {
		if len(opts.targetFuncs) > 0 {
			log.Info().Strs("functions", opts.targetFuncs).Msg("Target: restricted")
		} else {
			log.Info().Msg("Target: All Functions")
		}
	}
}

func usage(fs *flag.FlagSet) {
	fmt.Fprint(fs.Output(), `mtinstr - MT-3000 source instrumentation tool

USAGE:
    mtinstr -time-inst [flags] <file.c>...
    mtinstr -memory-inst [flags] <file.c>...

MODES (exactly one required):
    -time-inst      interleave cycle-counter timing probes and append the
                    hierarchical timing report
    -memory-inst    interleave per-variable access recorders and append the
                    access-pattern analysis

FLAGS:
`)
	fs.PrintDefaults()
	fmt.Fprint(fs.Output(), `
OUTPUT:
    With -o the rewritten unit is written to the given path. Otherwise it
    is written next to the input as instrumented_<name> (timing) or
    mem_prof_<name> (memory).
`)
}
