// Package codegen synthesizes the C text the planners inject: the memory
// profiler runtime, the timing helpers, the per-site probe snippets, and
// the end-of-unit report function.
//
// Every emitted name, format, and numeric constant here is external
// contract: the output must compile and link against the MT-3000 device
// runtime (get_thread_id, get_clk, hthread_printf). Each snippet has its
// own function with explicit arguments so the naming discipline between
// the planners and the generated report stays checkable at compile time
// of the host.
package codegen

// Device and report constants. NumThreads is the MT-3000 hardware thread
// count; the timing arrays are sized by it and indexed by thread id.
const (
	NumThreads       = 24
	MaxPatterns      = 16
	NameSize         = 64
	PatternThreshold = 5 // percent

	ClkFreq = "4150000000UL" // 4150 MHz device clock

	DefaultTotalTimeThreshold  = 20.0
	DefaultParentTimeThreshold = 40.0
)

// HeaderList is the view of the include collector codegen needs: enough to
// suppress #include lines the source already has.
type HeaderList interface {
	Has(name string) bool
}
