package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"github.com/hthread/mtinstr/internal/callgraph"
	"github.com/hthread/mtinstr/internal/cc"
	"github.com/hthread/mtinstr/internal/instrument"
	"github.com/hthread/mtinstr/internal/rewrite"
)

// processFile instruments one translation unit: parse, build the call
// graph, plan rewrites in the selected mode, then flush the rewrite buffer
// to the output path. The buffer is materialized only after planning
// succeeded, so a failure never leaves a partial output file.
func processFile(log zerolog.Logger, opts *options, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}

	file := cc.NewFile(path, src)
	tu, warns := cc.Parse(file)
	for _, w := range warns {
		log.Debug().Msg(w.Error())
	}
	if len(warns) > 0 {
		log.Warn().Int("count", len(warns)).Str("file", path).
			Msg("some constructs were skipped during parsing; their sites are not probed")
	}
	if len(tu.Decls) == 0 {
		return fmt.Errorf("no declarations parsed from %s", path)
	}

	graph := callgraph.Build(tu)
	if opts.dumpCallGraph {
		graph.Dump(os.Stdout)
	}
	if opts.callGraphDOT != "" {
		if err := writeDOT(graph, opts.callGraphDOT); err != nil {
			return err
		}
		log.Info().Str("path", opts.callGraphDOT).Msg("call graph exported")
	}

	buf := rewrite.NewBuffer(src)
	if opts.timeInst {
		stats := instrument.PlanTime(tu, graph, buf, instrument.TimeOptions{
			TotalTimeThreshold:  opts.totalTimeThreshold,
			ParentTimeThreshold: opts.parentTimeThreshold,
		})
		log.Debug().
			Int("functions", stats.FunctionsInstrumented).
			Int("call_sites", stats.CallSitesInstrumented).
			Int("call_sites_skipped", stats.CallSitesSkipped).
			Int("exit_blocks", stats.ExitBlocksInserted).
			Int("leaves_skipped", stats.LeavesSkipped).
			Msg("timing pass complete")
	} else {
		stats := instrument.PlanMemory(tu, buf, instrument.MemoryOptions{
			TargetFuncs: opts.targetFuncs,
		})
		log.Debug().
			Int("params", stats.ParamsInstrumented).
			Int("locals", stats.LocalsInstrumented).
			Int("records", stats.RecordsInserted).
			Int("analysis_blocks", stats.AnalysisBlocks).
			Int("vars_skipped", stats.VarsSkipped).
			Msg("memory pass complete")
	}

	outPath := opts.output
	if outPath == "" {
		outPath = defaultOutputPath(path, opts.timeInst)
	}
	if err := os.WriteFile(outPath, buf.Apply(), 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	log.Info().Str("path", outPath).Msg("Successfully generated instrumented file")
	return nil
}

// defaultOutputPath places the output next to the input, prefixed by mode:
// instrumented_<name> for timing, mem_prof_<name> for memory.
func defaultOutputPath(input string, timeMode bool) string {
	prefix := "mem_prof_"
	if timeMode {
		prefix = "instrumented_"
	}
	return filepath.Join(filepath.Dir(input), prefix+filepath.Base(input))
}

func writeDOT(g *callgraph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create DOT file: %w", err)
	}
	defer f.Close()
	if err := g.WriteDOT(f); err != nil {
		return fmt.Errorf("write DOT file: %w", err)
	}
	return nil
}
