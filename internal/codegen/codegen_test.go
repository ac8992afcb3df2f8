package codegen

import (
	"strings"
	"testing"

	"github.com/hthread/mtinstr/internal/callgraph"
)

type headerList []string

func (h headerList) Has(name string) bool {
	for _, n := range h {
		if n == name {
			return true
		}
	}
	return false
}

func TestMemoryRuntime_CompleteAndGuarded(t *testing.T) {
	out := MemoryRuntime(headerList{})
	for _, want := range []string{
		"#include <stdio.h>",
		"#include <string.h>",
		`#include "hthread_device.h"`,
		"#define MEM_MAX_PATTERNS 16",
		"#define MEM_NAME_SIZE 64",
		"#define MEM_NUM_THREADS 24",
		"typedef struct {",
		"} mem_profile_t;",
		"static inline void __mem_init(mem_profile_t* prof,",
		"static inline void __mem_record(mem_profile_t* prof, void* addr)",
		"static inline void __mem_analyze(mem_profile_t* prof)",
		"static inline void __mem_print_analysis(mem_profile_t* prof)",
		"if (step >= 65536) return;",
		"memset(prof->patterns, -1, sizeof(prof->patterns));",
		"prof->var_size = (prof->end_addr - prof->base_addr + prof->type_size);",
		`hthread_printf("%s", buffer);`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("runtime missing %q", want)
		}
	}
}

func TestMemoryRuntime_SuppressesPresentIncludes(t *testing.T) {
	out := MemoryRuntime(headerList{"stdio.h", "hthread_device.h"})
	if strings.Contains(out, "#include <stdio.h>") {
		t.Errorf("stdio.h re-included")
	}
	if strings.Contains(out, `#include "hthread_device.h"`) {
		t.Errorf("hthread_device.h re-included")
	}
	if !strings.Contains(out, "#include <string.h>") {
		t.Errorf("string.h should still be emitted")
	}
}

func TestMemorySnippets(t *testing.T) {
	if got := MemProfileDecl("buf"); got != "mem_profile_t __buf_prof;" {
		t.Errorf("MemProfileDecl = %q", got)
	}
	got := MemInitCall("buf", "f", "buf")
	want := `__mem_init(&__buf_prof, "buf", "f", (void*)buf, sizeof(buf[0]));`
	if got != want {
		t.Errorf("MemInitCall = %q, want %q", got, want)
	}
	if got := MemRecordLValue("a", "a[i]"); got != "__mem_record(&__a_prof, (void*)&(a[i]));" {
		t.Errorf("MemRecordLValue = %q", got)
	}
	if got := MemRecordPointer("p", "(p + 1)"); got != "__mem_record(&__p_prof, (void*)((p + 1)));" {
		t.Errorf("MemRecordPointer = %q", got)
	}
	if got := MemAnalyzeCall("a"); got != "__mem_analyze(&__a_prof);" {
		t.Errorf("MemAnalyzeCall = %q", got)
	}
	if got := MemPrintCall("a"); got != "__mem_print_analysis(&__a_prof);" {
		t.Errorf("MemPrintCall = %q", got)
	}
}

func TestTimingPreamble(t *testing.T) {
	out := TimingPreamble(headerList{})
	for _, want := range []string{
		"#include <limits.h>",
		`#include "hthread_device.h"`,
		"#define CLK_FREQ 4150000000UL",
		"#define CYCLES_TO_NS(cycles) ((cycles) * 1000000000UL / CLK_FREQ)",
		"#define CYCLES_TO_US(cycles) ((cycles) * 1000000UL / CLK_FREQ)",
		"#define CYCLES_TO_MS(cycles) ((cycles) * 1000UL / CLK_FREQ)",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("preamble missing %q", want)
		}
	}
	guarded := TimingPreamble(headerList{"limits.h"})
	if strings.Contains(guarded, "#include <limits.h>") {
		t.Errorf("limits.h re-included")
	}
}

func TestTimeArrayDecls(t *testing.T) {
	out := TimeArrayDecls("f", []string{"x", "y"})
	for _, want := range []string{
		"static unsigned long __time_f[24] = {0};",
		"static unsigned long __time_f_x[24] = {0};",
		"static unsigned long __time_f_y[24] = {0};",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("array decls missing %q", want)
		}
	}
	if strings.Count(out, "\n") != 3 {
		t.Errorf("unexpected layout:\n%s", out)
	}
}

func TestEntryBlock(t *testing.T) {
	out := EntryBlock([]string{"g"}, "    ")
	for _, want := range []string{
		"int __tid = get_thread_id();",
		"unsigned long __time_g_tmp = 0;",
		"unsigned long __call_start_g = 0, __call_end_g = 0;",
		"unsigned long __start_time = get_clk();",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("entry block missing %q", want)
		}
	}
	// The start timestamp must come last so setup does not count as time.
	if strings.Index(out, "__start_time") < strings.Index(out, "__time_g_tmp") {
		t.Errorf("start timestamp not last:\n%s", out)
	}
}

func TestExitBlock_LatchesAndSubtracts(t *testing.T) {
	out := ExitBlock("f", []string{"g", "h"}, "    ")
	for _, want := range []string{
		"unsigned long __end_time = get_clk();",
		"__time_f[__tid] += __end_time - __start_time;",
		"unsigned long __children_time = 0;",
		"__time_f_g[__tid] = __time_g_tmp;",
		"__time_f_h[__tid] = __time_h_tmp;",
		"__children_time += __time_g_tmp;",
		"__time_f[__tid] -= __children_time;",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("exit block missing %q", want)
		}
	}
	// Latch is an assignment, not an accumulation.
	if strings.Contains(out, "__time_f_g[__tid] +=") {
		t.Errorf("per-call-site array must be latched with =, not +=")
	}
}

func TestExitBlock_NoCalleesOmitsChildren(t *testing.T) {
	out := ExitBlock("f", nil, "")
	if strings.Contains(out, "__children_time") {
		t.Errorf("childless exit block mentions __children_time:\n%s", out)
	}
}

func TestCallSnippets(t *testing.T) {
	if got := CallPre("g"); got != "__call_start_g = get_clk();" {
		t.Errorf("CallPre = %q", got)
	}
	post := CallPost("g")
	if !strings.HasPrefix(post, "; ") {
		t.Errorf("CallPost must start with a statement terminator: %q", post)
	}
	if !strings.Contains(post, "__time_g_tmp += __call_end_g - __call_start_g") {
		t.Errorf("CallPost = %q", post)
	}
}

func reportFor(t *testing.T, totalThresh, parentThresh float64) string {
	t.Helper()
	g := callgraph.New()
	g.AddEdge("main", "a")
	g.AddEdge("a", "b")
	g.AddEdge("b", "c")
	return ReportFunction(g, []string{"b", "a", "main"}, totalThresh, parentThresh)
}

func TestReportFunction_Structure(t *testing.T) {
	out := reportFor(t, 20, 40)
	for _, want := range []string{
		"static inline void __combine_thread_times(unsigned long time_array[24], unsigned long* total_time)",
		"static inline void __wait_for_threads()",
		"while ((get_clk() - start_wait) < (3UL * CLK_FREQ)) {}",
		"void __print_timing_results() {",
		"if (get_thread_id() != 0) return;",
		"unsigned long total_main;",
		"__combine_thread_times(__time_main, &total_main);",
		"unsigned long total_main_a;",
		"__combine_thread_times(__time_b_c, &total_b_c);",
		"total_program_time += total_main;",
		"Total Program Time: %.2f ms",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
	// Max fold: zero slots skipped, larger values win.
	if !strings.Contains(out, "if (time_array[i] == 0) continue;") ||
		!strings.Contains(out, "if (time_array[i] > *total_time) *total_time = time_array[i];") {
		t.Errorf("combine is not the max-with-zero-skip variant:\n%s", out)
	}
	// Only the root contributes to program time.
	if strings.Contains(out, "total_program_time += total_a;") {
		t.Errorf("non-root added to total_program_time")
	}
}

func TestReportFunction_Tree(t *testing.T) {
	out := reportFor(t, 20, 40)
	if !strings.Contains(out, `main: %.2f ms`) {
		t.Errorf("root line missing")
	}
	if !strings.Contains(out, `└── a: %.2f ms (%.1f%% of main)`) {
		t.Errorf("first-level tree line missing:\n%s", out)
	}
	if !strings.Contains(out, `    └── b: %.2f ms (%.1f%% of a)`) {
		t.Errorf("second-level tree line missing")
	}
	if !strings.Contains(out, `        └── c: %.2f ms (%.1f%% of b)`) {
		t.Errorf("leaf tree line missing")
	}
}

func TestReportFunction_HotThresholdsSubstituted(t *testing.T) {
	out := reportFor(t, 25, 55)
	if !strings.Contains(out, "percent_total >= 25.0 && percent_parent >= 55.0") {
		t.Errorf("thresholds not substituted:\n%s", out)
	}
	// Roots are excluded from the hot list.
	if strings.Contains(out, `"main: %.1f%% of total`) {
		t.Errorf("root appeared in hot list")
	}
	// Non-roots with instrumented callers get guarded blocks.
	if !strings.Contains(out, `"a: %.1f%% of total, %.1f%% of parent\n"`) {
		t.Errorf("hot block for a missing:\n%s", out)
	}
}

func TestReportFunction_SelfRecursionTerminates(t *testing.T) {
	g := callgraph.New()
	g.AddEdge("f", "f")
	out := ReportFunction(g, []string{"f"}, 20, 40)
	// f is its own caller, so it is not a root; the tree section is empty
	// but the totals must exist and generation must terminate.
	if !strings.Contains(out, "__combine_thread_times(__time_f_f, &total_f_f);") {
		t.Errorf("self-edge total missing:\n%s", out)
	}
}
