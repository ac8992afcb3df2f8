package codegen

import (
	"fmt"
	"strings"
)

// MemoryRuntime emits the complete memory profiler: guarded includes, the
// mem_profile_t descriptor, and the __mem_init/__mem_record/__mem_analyze/
// __mem_print_analysis helpers. It is inserted once per translation unit,
// after the last top-level preprocessor line.
func MemoryRuntime(includes HeaderList) string {
	var b strings.Builder
	if !includes.Has("stdio.h") {
		b.WriteString("#include <stdio.h>\n")
	}
	if !includes.Has("string.h") {
		b.WriteString("#include <string.h>\n")
	}
	if !includes.Has("hthread_device.h") {
		b.WriteString("#include \"hthread_device.h\"\n")
	}
	b.WriteString(memProfileDefs)
	b.WriteString(memInitFunc)
	b.WriteString(memRecordFunc)
	b.WriteString(memAnalyzeFunc)
	b.WriteString(memPrintFunc)
	return b.String()
}

var memProfileDefs = fmt.Sprintf(`#ifndef MEM_PROFILER_DEFS
#define MEM_PROFILER_DEFS
#define MEM_MAX_PATTERNS %d
#define MEM_NAME_SIZE %d
#define MEM_NUM_THREADS %d
#define MEM_TOP_PATTERNS 3

typedef struct {
    char var_name[MEM_NAME_SIZE];            /* variable name */
    char func_name[MEM_NAME_SIZE];           /* enclosing function */
    size_t base_addr;                 /* lowest accessed address */
    size_t end_addr;                  /* highest accessed address */
    size_t total_accesses;
    size_t patterns[MEM_MAX_PATTERNS];       /* stride patterns */
    size_t pattern_counts[MEM_MAX_PATTERNS]; /* occurrences per pattern */
    size_t last_addr;                 /* previous access */
    size_t var_size;                  /* derived at analysis time */
    size_t type_size;                 /* element size */
} mem_profile_t;

#endif /* MEM_PROFILER_DEFS */

`, MaxPatterns, NameSize, NumThreads)

const memInitFunc = `static inline void __mem_init(mem_profile_t* prof,
                             const char* var_name,
                             const char* func_name,
                             void* addr,
                             size_t type_size) {
    strncpy(prof->var_name, var_name, MEM_NAME_SIZE-1);
    strncpy(prof->func_name, func_name, MEM_NAME_SIZE-1);
    prof->base_addr = (size_t)addr;
    prof->end_addr = prof->base_addr;
    prof->total_accesses = 0;
    prof->last_addr = prof->base_addr;
    prof->var_size = 0;
    prof->type_size = type_size;
    memset(prof->patterns, -1, sizeof(prof->patterns));
    memset(prof->pattern_counts, 0, sizeof(prof->pattern_counts));
}

`

const memRecordFunc = `static inline void __mem_record(mem_profile_t* prof, void* addr) {
    size_t step;
    size_t curr_addr = (size_t)addr;

    if (prof->total_accesses == 0) {
        prof->last_addr = curr_addr;
        prof->base_addr = curr_addr;
        prof->end_addr = curr_addr;
    }
    prof->total_accesses++;

    /* element-normalized stride against the previous access */
    step = curr_addr < prof->last_addr ? (prof->last_addr - curr_addr) : (curr_addr - prof->last_addr);
    step /= prof->type_size;
    prof->last_addr = curr_addr;
    prof->end_addr = curr_addr > prof->end_addr ? curr_addr : prof->end_addr;
    prof->base_addr = curr_addr < prof->base_addr ? curr_addr : prof->base_addr;

    /* strides this large are noise, not a pattern */
    if (step >= 65536) return;

    for(int i = 0; i < MEM_MAX_PATTERNS; i++) {
        if(prof->patterns[i] == step) {
            prof->pattern_counts[i]++;
            return;
        }else if(prof->patterns[i] == 0xFFFFFFFFFFFFFFFF) {
            prof->patterns[i] = step;
            prof->pattern_counts[i] = 1;
            return;
        }
    }
}

`

const memAnalyzeFunc = `static inline void __mem_analyze(mem_profile_t* prof) {
    int i, j;
    if(prof->total_accesses == 0) return;

    /* accessed region in bytes, learned from the probes */
    prof->var_size = (prof->end_addr - prof->base_addr + prof->type_size);

    /* selection sort of the top MEM_TOP_PATTERNS entries by count */
    for(i = 0; i < MEM_TOP_PATTERNS && i < MEM_MAX_PATTERNS - 1; i++) {
        int max_idx = i;
        for(j = i + 1; j < MEM_MAX_PATTERNS; j++) {
            if(prof->pattern_counts[j] > prof->pattern_counts[max_idx]) {
                max_idx = j;
            }
        }
        if(max_idx != i) {
            size_t temp_count = prof->pattern_counts[i];
            prof->pattern_counts[i] = prof->pattern_counts[max_idx];
            prof->pattern_counts[max_idx] = temp_count;

            size_t temp_pattern = prof->patterns[i];
            prof->patterns[i] = prof->patterns[max_idx];
            prof->patterns[max_idx] = temp_pattern;
        }
    }
}

`

var memPrintFunc = fmt.Sprintf(`static inline void __mem_print_analysis(mem_profile_t* prof) {
    if(prof->total_accesses == 0) return;

    char buffer[512];
    int offset = 0;

    offset += snprintf(buffer + offset, sizeof(buffer) - offset,
        "[Memory Analysis] thread %%d: %%s in %%s: elements=%%zu, accesses=%%zu\n",
        get_thread_id(), prof->var_name, prof->func_name, prof->var_size / prof->type_size, prof->total_accesses);

    for(int i = 0; i < MEM_TOP_PATTERNS && i < MEM_MAX_PATTERNS; i++) {
        if(prof->pattern_counts[i] > prof->total_accesses * %d / 100) {
            offset += snprintf(buffer + offset, sizeof(buffer) - offset,
                "  Pattern %%d: step=%%zu (%%.1f%%%%)\n",
                i + 1,
                prof->patterns[i],
                (float)prof->pattern_counts[i] * 100 / prof->total_accesses);
        }
    }

    /* one bounded printf keeps the line atomic across threads */
    hthread_printf("%%s", buffer);
}

`, PatternThreshold)

// MemProfileDecl emits the descriptor declaration for one variable.
func MemProfileDecl(varName string) string {
	return fmt.Sprintf("mem_profile_t __%s_prof;", varName)
}

// MemInitCall emits the descriptor initialization. addrExpr is the
// variable name for array/pointer declarators and &name otherwise; the
// element size is recovered uniformly with sizeof(name[0]).
func MemInitCall(varName, funcName, addrExpr string) string {
	return fmt.Sprintf("__mem_init(&__%s_prof, %q, %q, (void*)%s, sizeof(%s[0]));",
		varName, varName, funcName, addrExpr, varName)
}

// MemRecordLValue emits the recorder for subscript and member accesses,
// which take the address of the accessed lvalue.
func MemRecordLValue(varName, accessExpr string) string {
	return fmt.Sprintf("__mem_record(&__%s_prof, (void*)&(%s));", varName, accessExpr)
}

// MemRecordPointer emits the recorder for pointer dereferences, where the
// dereferenced operand already is the address.
func MemRecordPointer(varName, pointerExpr string) string {
	return fmt.Sprintf("__mem_record(&__%s_prof, (void*)(%s));", varName, pointerExpr)
}

// MemAnalyzeCall emits the analysis call for one descriptor.
func MemAnalyzeCall(varName string) string {
	return fmt.Sprintf("__mem_analyze(&__%s_prof);", varName)
}

// MemPrintCall emits the report call for one descriptor.
func MemPrintCall(varName string) string {
	return fmt.Sprintf("__mem_print_analysis(&__%s_prof);", varName)
}
