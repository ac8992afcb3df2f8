package instrument

import (
	"github.com/hthread/mtinstr/internal/callgraph"
	"github.com/hthread/mtinstr/internal/cc"
	"github.com/hthread/mtinstr/internal/codegen"
	"github.com/hthread/mtinstr/internal/rewrite"
)

// TimeStats collects what the time planner did, in the spirit of the
// verbose-mode summaries of similar tools: enough to see at a glance what
// was probed and what was skipped.
type TimeStats struct {
	FunctionsInstrumented int // functions that received arrays + entry/exit
	CallSitesInstrumented int // call sites wrapped with start/end captures
	CallSitesSkipped      int // calls not in tail position of a braced-block statement
	ExitBlocksInserted    int // before-return plus end-of-body exit blocks
	LeavesSkipped         int // call-graph leaves, timed only by callers
}

// TimeOptions parameterizes the generated report.
type TimeOptions struct {
	TotalTimeThreshold  float64 // hot-function threshold vs program time
	ParentTimeThreshold float64 // hot-function threshold vs parent time
}

// PlanTime runs the timing pass over one translation unit.
//
// A function is instrumented iff it has a body, appears in the call graph,
// and is not a leaf — a leaf has no children to attribute time to and is
// still timed at its call sites by every caller. For each instrumented
// function the planner emits its accumulator arrays before the definition,
// the entry block after the opening brace, an exit block before every
// return (and before the closing brace when the body does not end in a
// return), and a start/end capture around every probeable call to a
// function defined in this unit. The report function is appended at the
// end of the file.
//
// A call site is probeable only when the call sits in tail position of its
// own statement: it is the whole expression of an expression statement, or
// the entire right-hand side of an assignment that is, and that statement
// is a direct child of a braced block. The post capture is spliced between
// the call's closing parenthesis and the statement terminator, which is
// only valid C there; a call buried in a composite expression or argument
// list is skipped (and counted) rather than cut apart.
func PlanTime(tu *cc.TranslationUnit, g *callgraph.Graph, buf *rewrite.Buffer, opts TimeOptions) *TimeStats {
	if opts.TotalTimeThreshold == 0 {
		opts.TotalTimeThreshold = codegen.DefaultTotalTimeThreshold
	}
	if opts.ParentTimeThreshold == 0 {
		opts.ParentTimeThreshold = codegen.DefaultParentTimeThreshold
	}

	stats := &TimeStats{}
	preamble := codegen.TimingPreamble(tu.Directives)
	if tu.Directives.LastEnd > 0 {
		buf.InsertBefore(tu.Directives.LastEnd, "\n"+preamble)
	} else {
		buf.InsertBefore(0, preamble)
	}

	declared := make(map[string]bool)
	var instrumented []string

	for _, fd := range tu.FuncDefs() {
		name := fd.Name.Name
		if g.Node(name) == nil {
			continue
		}
		if g.IsLeaf(name) {
			stats.LeavesSkipped++
			continue
		}
		if declared[name] {
			continue
		}
		declared[name] = true

		callees := g.Callees(name)
		buf.InsertBefore(fd.Pos(), codegen.TimeArrayDecls(name, callees))

		p := &timeFunc{
			tu:      tu,
			g:       g,
			buf:     buf,
			stats:   stats,
			name:    name,
			callees: callees,
		}
		p.instrument(fd)

		instrumented = append(instrumented, name)
		stats.FunctionsInstrumented++
	}

	buf.Append(codegen.ReportFunction(g, instrumented, opts.TotalTimeThreshold, opts.ParentTimeThreshold))
	return stats
}

// timeFunc carries the per-function planning state while one definition is
// rewritten.
type timeFunc struct {
	tu      *cc.TranslationUnit
	g       *callgraph.Graph
	buf     *rewrite.Buffer
	stats   *TimeStats
	name    string
	callees []string
	pm      cc.ParentMap
}

func (p *timeFunc) instrument(fd *cc.FuncDecl) {
	body := fd.Body
	file := p.tu.File
	p.pm = cc.NewParentMap(body)

	indent := "    "
	if len(body.List) > 0 {
		if ind := file.Indent(body.List[0].Pos()); ind != "" {
			indent = ind
		}
	}

	buf := p.buf
	buf.InsertBefore(body.Lbrace+1, codegen.EntryBlock(p.callees, indent))

	p.visitCalls(body)

	// Exit blocks before every return. A return that is the unbraced body
	// of a control statement gets synthesized braces: prefixing a sibling
	// there would otherwise steal the branch and let the return execute
	// unconditionally.
	cc.Inspect(body, func(n cc.Node) bool {
		ret, ok := n.(*cc.ReturnStmt)
		if !ok {
			return true
		}
		ind := file.Indent(ret.Pos())
		block := codegen.ExitBlock(p.name, p.callees, ind)
		if unbracedControlBody(p.pm, ret) {
			buf.InsertBefore(ret.Pos(), "{ "+block+"\n"+ind)
			buf.InsertBefore(ret.End(), " }")
		} else {
			buf.InsertBefore(ret.Pos(), block+"\n"+ind)
		}
		p.stats.ExitBlocksInserted++
		return true
	})

	// Fall-through exit: a body whose last statement is not a return never
	// reaches a before-return block, so the exit block also goes before
	// the closing brace.
	if n := len(body.List); n > 0 {
		if _, isReturn := body.List[n-1].(*cc.ReturnStmt); !isReturn {
			last := body.List[n-1]
			buf.InsertBefore(last.End(), "\n"+indent+codegen.ExitBlock(p.name, p.callees, indent))
			p.stats.ExitBlocksInserted++
		}
	}
}

// visitCalls walks n post-order and wraps each probeable call to an
// instrumentable callee: the pre-call timestamp goes at the start of the
// enclosing statement, the post-call capture immediately after the call's
// closing parenthesis. Calls that are not in tail position of their own
// statement are counted as skipped.
func (p *timeFunc) visitCalls(n cc.Node) {
	for _, c := range cc.Children(n) {
		p.visitCalls(c)
	}
	call, ok := n.(*cc.CallExpr)
	if !ok {
		return
	}
	callee := call.Callee()
	if callee == nil {
		return // indirect call, not instrumentable
	}
	if def, ok := p.tu.Funcs[callee.Name]; !ok || def.Body == nil {
		return // no body in this unit (extern or header function)
	}
	if p.g.Node(callee.Name) == nil {
		return
	}
	if !p.callInTailPosition(call) {
		p.stats.CallSitesSkipped++
		return
	}

	file := p.tu.File
	start := statementStart(file, call.Pos())
	ind := file.Indent(start)
	p.buf.InsertBefore(start, codegen.CallPre(callee.Name)+"\n"+ind)
	p.buf.InsertBefore(call.End(), codegen.CallPost(callee.Name))
	p.stats.CallSitesInstrumented++
}

// callInTailPosition reports whether the splice point after the call's
// closing parenthesis is immediately followed by the statement terminator:
// the call is the whole expression of an expression statement, or the
// entire right-hand side of an assignment that is, and the statement
// itself is a direct child of a braced block. Anywhere else — an argument
// list, a composite expression, an unbraced control body — the spliced
// `;` would change what the surrounding code means.
func (p *timeFunc) callInTailPosition(call *cc.CallExpr) bool {
	var n cc.Node = call
	par := p.pm.Parent(n)
	if ae, ok := par.(*cc.AssignExpr); ok && ae.Rhs == cc.Expr(call) {
		n = par
		par = p.pm.Parent(n)
	}
	es, ok := par.(*cc.ExprStmt)
	if !ok || es.X != n {
		return false
	}
	_, inBlock := p.pm.Parent(es).(*cc.CompoundStmt)
	return inBlock
}
