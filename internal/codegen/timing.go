package codegen

import (
	"fmt"
	"strings"
)

// Timing snippet naming, shared with the time planner:
//
//	__time_<F>[N]        per-function exclusive cycle accumulator
//	__time_<F>_<G>[N]    per-call-site accumulator (caller F, callee G)
//	__time_<G>_tmp       per-invocation child-time accumulator, local to F
//	__start_time, __end_time, __call_start_<G>, __call_end_<G>, __tid
//	total_<F>, total_<F>_<G>, total_program_time  report locals
//
// All array symbols are file-static, sized NumThreads, indexed by thread
// id; each device thread touches only its own slot.

// TimingPreamble emits the declarations probes rely on: the device header,
// <limits.h>, the clock frequency, and the cycle conversion macros. It is
// inserted once per translation unit after the last preprocessor line,
// with includes the source already has suppressed.
func TimingPreamble(includes HeaderList) string {
	var b strings.Builder
	if !includes.Has("limits.h") {
		b.WriteString("#include <limits.h>\n")
	}
	if !includes.Has("hthread_device.h") {
		b.WriteString("#include \"hthread_device.h\"\n")
	}
	b.WriteString(`#ifndef TIME_PROFILER_DEFS
#define TIME_PROFILER_DEFS
#define CLK_FREQ ` + ClkFreq + `
#define CYCLES_TO_NS(cycles) ((cycles) * 1000000000UL / CLK_FREQ)
#define CYCLES_TO_US(cycles) ((cycles) * 1000000UL / CLK_FREQ)
#define CYCLES_TO_MS(cycles) ((cycles) * 1000UL / CLK_FREQ)
#endif /* TIME_PROFILER_DEFS */

`)
	return b.String()
}

// TimeArrayDecls emits the accumulator arrays for function fn: its own
// array plus one per distinct callee, in first-call order.
func TimeArrayDecls(fn string, callees []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "static unsigned long __time_%s[%d] = {0};\n", fn, NumThreads)
	for _, g := range callees {
		fmt.Fprintf(&b, "static unsigned long __time_%s_%s[%d] = {0};\n", fn, g, NumThreads)
	}
	return b.String()
}

// EntryBlock emits the function-entry probe, placed immediately after the
// opening brace. The __call_start/__call_end locals for every callee are
// declared here once, so multiple call sites to the same callee share them
// (each site overwrites, then accumulates into the callee's tmp).
func EntryBlock(callees []string, indent string) string {
	var b strings.Builder
	b.WriteString("\n")
	fmt.Fprintf(&b, "%sint __tid = get_thread_id();\n", indent)
	for _, g := range callees {
		fmt.Fprintf(&b, "%sunsigned long __time_%s_tmp = 0;\n", indent, g)
		fmt.Fprintf(&b, "%sunsigned long __call_start_%s = 0, __call_end_%s = 0;\n", indent, g, g)
	}
	fmt.Fprintf(&b, "%sunsigned long __start_time = get_clk();\n", indent)
	return b.String()
}

// ExitBlock emits the function-exit probe for fn. The elapsed time is
// added to fn's accumulator, each callee's tmp is latched into the
// per-call-site array (assignment: the latched value is the child time of
// the path that reached this exit), and the summed child time is
// subtracted so __time_<fn> holds exclusive self time. indent is the
// indentation of the line the block precedes.
func ExitBlock(fn string, callees []string, indent string) string {
	inner := indent + "    "
	var b strings.Builder
	b.WriteString("{\n")
	fmt.Fprintf(&b, "%sunsigned long __end_time = get_clk();\n", inner)
	fmt.Fprintf(&b, "%s__time_%s[__tid] += __end_time - __start_time;\n", inner, fn)
	if len(callees) > 0 {
		fmt.Fprintf(&b, "%sunsigned long __children_time = 0;\n", inner)
		for _, g := range callees {
			fmt.Fprintf(&b, "%s__time_%s_%s[__tid] = __time_%s_tmp;\n", inner, fn, g, g)
			fmt.Fprintf(&b, "%s__children_time += __time_%s_tmp;\n", inner, g)
		}
		fmt.Fprintf(&b, "%s__time_%s[__tid] -= __children_time;\n", inner, fn)
	}
	fmt.Fprintf(&b, "%s}", indent)
	return b.String()
}

// CallPre emits the pre-call timestamp, placed at the start of the
// statement enclosing the call site.
func CallPre(callee string) string {
	return fmt.Sprintf("__call_start_%s = get_clk();", callee)
}

// CallPost emits the post-call capture, placed immediately after the call
// expression's closing parenthesis. The leading semicolon terminates the
// call statement and the original statement terminator closes the
// sequence, which is why the planner only emits this for calls in tail
// position of their own statement.
func CallPost(callee string) string {
	return fmt.Sprintf("; __call_end_%s = get_clk(); __time_%s_tmp += __call_end_%s - __call_start_%s",
		callee, callee, callee, callee)
}

// combineFunc folds per-thread cycle counts with max, skipping idle
// threads: under SPMD execution the slowest worker is the wall time.
var combineFunc = fmt.Sprintf(`static inline void __combine_thread_times(unsigned long time_array[%d], unsigned long* total_time) {
    *total_time = 0;
    for (int i = 0; i < %d; i++) {
        if (time_array[i] == 0) continue;
        if (time_array[i] > *total_time) *total_time = time_array[i];
    }
}

`, NumThreads, NumThreads)

// waitFunc busy-waits three seconds on thread 0; the device exposes no
// barrier primitive at this layer, and three seconds exceeds any probed
// region.
var waitFunc = `static inline void __wait_for_threads() {
    if (get_thread_id() == 0) {
        const unsigned long start_wait = get_clk();
        while ((get_clk() - start_wait) < (3UL * CLK_FREQ)) {}
        hthread_printf("\nProcessing timing results...\n");
    }
}

`

// edge is one caller->callee pair for report generation.
type edge struct{ caller, callee string }

// ReportGraph is the view of the call graph the report generator needs.
type ReportGraph interface {
	Callees(fn string) []string
	Callers(fn string) []string
	IsRoot(fn string) bool
}

// ReportFunction emits __combine_thread_times, __wait_for_threads, and
// __print_timing_results for the set of instrumented functions, appended
// at the end of the translation unit.
//
// The report runs on thread 0 only: it aggregates every accumulator array,
// sums the root functions into total_program_time, prints the hierarchical
// call tree, then the hot-function list against the two thresholds.
func ReportFunction(g ReportGraph, instrumented []string, totalThreshold, parentThreshold float64) string {
	inst := make(map[string]bool, len(instrumented))
	for _, fn := range instrumented {
		inst[fn] = true
	}
	var edges []edge
	for _, fn := range instrumented {
		for _, callee := range g.Callees(fn) {
			edges = append(edges, edge{caller: fn, callee: callee})
		}
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(combineFunc)
	b.WriteString(waitFunc)
	b.WriteString("void __print_timing_results() {\n")
	b.WriteString("    __wait_for_threads();\n")
	b.WriteString("    if (get_thread_id() != 0) return;\n\n")
	b.WriteString("    unsigned long total_program_time = 0;\n")

	for _, fn := range instrumented {
		fmt.Fprintf(&b, "    unsigned long total_%s;\n", fn)
		fmt.Fprintf(&b, "    __combine_thread_times(__time_%s, &total_%s);\n", fn, fn)
	}
	for _, e := range edges {
		fmt.Fprintf(&b, "    unsigned long total_%s_%s;\n", e.caller, e.callee)
		fmt.Fprintf(&b, "    __combine_thread_times(__time_%s_%s, &total_%s_%s);\n",
			e.caller, e.callee, e.caller, e.callee)
	}
	b.WriteString("\n")
	for _, fn := range instrumented {
		if g.IsRoot(fn) {
			fmt.Fprintf(&b, "    total_program_time += total_%s;\n", fn)
		}
	}

	b.WriteString(`
    hthread_printf("\n===============================================\n");
    hthread_printf("            Timing Analysis Report             \n");
    hthread_printf("===============================================\n\n");
    hthread_printf("Total Program Time: %.2f ms\n\n", (double)CYCLES_TO_MS((double)total_program_time));
`)

	for _, fn := range instrumented {
		if g.IsRoot(fn) {
			writeTree(&b, g, inst, fn, nil, nil)
		}
	}

	b.WriteString(`
    hthread_printf("\n===============================================\n");
    hthread_printf("                 Hot Functions                 \n");
    hthread_printf("===============================================\n\n");
`)

	for _, fn := range instrumented {
		if g.IsRoot(fn) {
			continue
		}
		var parents []string
		for _, c := range g.Callers(fn) {
			if inst[c] {
				parents = append(parents, c)
			}
		}
		if len(parents) == 0 {
			continue
		}
		b.WriteString("    {\n")
		fmt.Fprintf(&b, "        double percent_total = total_program_time > 0 ? ((double)total_%s / total_program_time) * 100.0 : 0.0;\n", fn)
		b.WriteString("        double percent_parent = 0.0;\n")
		for _, c := range parents {
			fmt.Fprintf(&b, "        percent_parent += total_%s > 0 ? ((double)total_%s / total_%s) * 100.0 : 0.0;\n", c, fn, c)
		}
		fmt.Fprintf(&b, "        percent_parent /= %d.0;\n", len(parents))
		fmt.Fprintf(&b, "        if (percent_total >= %.1f && percent_parent >= %.1f) {\n", totalThreshold, parentThreshold)
		fmt.Fprintf(&b, "            hthread_printf(\"%s: %%.1f%%%% of total, %%.1f%%%% of parent\\n\", percent_total, percent_parent);\n", fn)
		b.WriteString("        }\n    }\n")
	}

	b.WriteString("}\n")
	return b.String()
}

// writeTree prints one root's subtree. path guards against cycles: a
// callee already on the current path gets its edge line but no recursion,
// so recursion (including self-edges) terminates.
func writeTree(b *strings.Builder, g ReportGraph, inst map[string]bool, fn string, prefix []string, path []string) {
	if len(path) == 0 {
		fmt.Fprintf(b, "    hthread_printf(\"%s: %%.2f ms\\n\", (double)CYCLES_TO_MS((double)total_%s));\n", fn, fn)
	}
	onPath := make(map[string]bool, len(path)+1)
	for _, p := range path {
		onPath[p] = true
	}
	onPath[fn] = true

	callees := g.Callees(fn)
	for i, callee := range callees {
		last := i == len(callees)-1
		branch := "├── "
		if last {
			branch = "└── "
		}
		line := strings.Join(prefix, "") + branch
		fmt.Fprintf(b, "    hthread_printf(\"%s%s: %%.2f ms (%%.1f%%%% of %s)\\n\", (double)CYCLES_TO_MS((double)total_%s_%s), total_%s > 0 ? ((double)total_%s_%s / total_%s) * 100.0 : 0.0);\n",
			line, callee, fn, fn, callee, fn, fn, callee, fn)
		if inst[callee] && !onPath[callee] {
			cont := "│   "
			if last {
				cont = "    "
			}
			writeTree(b, g, inst, callee, append(prefix, cont), append(path, fn))
		}
	}
}
