package instrument

import (
	"strings"

	"github.com/hthread/mtinstr/internal/cc"
	"github.com/hthread/mtinstr/internal/codegen"
	"github.com/hthread/mtinstr/internal/rewrite"
)

// MemoryStats collects what the memory planner did.
type MemoryStats struct {
	ParamsInstrumented int // parameters that received descriptors
	LocalsInstrumented int // locals that received descriptors
	RecordsInserted    int // __mem_record calls inserted
	AnalysisBlocks     int // analysis/print blocks (per return + fall-through)
	VarsSkipped        int // declarations rejected by the type filter
}

// MemoryOptions parameterizes the memory pass.
type MemoryOptions struct {
	// TargetFuncs restricts instrumentation to the named functions; empty
	// means all. Non-targeted functions are left byte-identical.
	TargetFuncs []string
}

// PlanMemory runs the memory-access pass over one translation unit.
//
// The profiler runtime is inserted after the last top-level preprocessor
// line. Then, per targeted function definition: every parameter and local
// of memory-interesting type gets a descriptor and an __mem_init at its
// scope entry (parameters at the top of the body, locals right after their
// declarator's semicolon); every array subscript, pointer dereference and
// member access rooted at an instrumented identifier gets an __mem_record
// before its enclosing statement; and every exit path gets the
// __mem_analyze/__mem_print_analysis pair. Statements that are the
// unbraced body of a control statement receive synthesized braces around
// probe and statement, keeping the pair inside the branch.
func PlanMemory(tu *cc.TranslationUnit, buf *rewrite.Buffer, opts MemoryOptions) *MemoryStats {
	stats := &MemoryStats{}

	runtime := codegen.MemoryRuntime(tu.Directives)
	if tu.Directives.LastEnd > 0 {
		buf.InsertBefore(tu.Directives.LastEnd, "\n"+runtime+"\n")
	} else {
		buf.InsertBefore(0, runtime)
	}

	targets := make(map[string]bool)
	for _, fn := range opts.TargetFuncs {
		if fn != "" {
			targets[fn] = true
		}
	}

	for _, fd := range tu.FuncDefs() {
		if len(targets) > 0 && !targets[fd.Name.Name] {
			continue
		}
		p := &memFunc{tu: tu, buf: buf, stats: stats, fd: fd, vars: make(map[string]bool)}
		p.instrument()
	}
	return stats
}

// memFunc is the per-function planning state of the memory pass. vars is
// the function's instrumented-variable set: only identifiers present in it
// are eligible recorder targets, and exactly its members are finalized at
// every exit.
type memFunc struct {
	tu    *cc.TranslationUnit
	buf   *rewrite.Buffer
	stats *MemoryStats
	fd    *cc.FuncDecl
	vars  map[string]bool
	order []string // insertion order, for deterministic analysis blocks

	pm      cc.ParentMap
	claimed map[cc.Node]bool
	// braced tracks statements that already received synthesized braces,
	// so several insertions at one unbraced control body share one pair.
	braced map[cc.Node]bool
}

func (p *memFunc) instrument() {
	body := p.fd.Body
	p.pm = cc.NewParentMap(body)
	p.claimed = make(map[cc.Node]bool)
	p.braced = make(map[cc.Node]bool)

	p.instrumentParams()

	// One source-order walk handles both declarations and accesses, so a
	// local is in the instrumented set before any of its uses is seen.
	cc.Inspect(body, func(n cc.Node) bool {
		switch v := n.(type) {
		case *cc.VarDecl:
			p.declareLocal(v)
		case *cc.IndexExpr:
			p.recordIndex(v)
		case *cc.UnaryExpr:
			if v.Op == "*" {
				p.recordDeref(v)
			}
		case *cc.MemberExpr:
			p.recordMember(v)
		}
		return true
	})

	p.insertAnalysis()
}

func (p *memFunc) instrumentParams() {
	var block strings.Builder
	fn := p.fd.Name.Name
	for _, param := range p.fd.Params {
		if param.Name == nil {
			continue
		}
		if !p.tu.TypeEligible(param.Type) {
			p.stats.VarsSkipped++
			continue
		}
		name := param.Name.Name
		if p.vars[name] {
			continue
		}
		addr := p.addrExpr(name, param.Type)
		block.WriteString("\n\t" + codegen.MemProfileDecl(name))
		block.WriteString("\n\t" + codegen.MemInitCall(name, fn, addr))
		p.vars[name] = true
		p.order = append(p.order, name)
		p.stats.ParamsInstrumented++
	}
	if block.Len() > 0 {
		p.buf.InsertBefore(p.fd.Body.Lbrace+1, block.String()+"\n")
	}
}

func (p *memFunc) declareLocal(vd *cc.VarDecl) {
	if vd.Name == nil {
		return
	}
	name := vd.Name.Name
	if p.vars[name] {
		return // shadowing within one function: first declaration wins
	}
	if !p.tu.TypeEligible(vd.Type) {
		p.stats.VarsSkipped++
		return
	}
	file := p.tu.File
	ind := file.Indent(vd.Name.NamePos)
	text := "\n" + ind + codegen.MemProfileDecl(name) +
		"\n" + ind + codegen.MemInitCall(name, p.fd.Name.Name, p.addrExpr(name, vd.Type))
	p.buf.InsertBefore(vd.SemiOff+1, text)
	p.vars[name] = true
	p.order = append(p.order, name)
	p.stats.LocalsInstrumented++
}

// addrExpr is the base-address expression handed to __mem_init: the bare
// name for arrays and pointers (both decay to the address), &name for
// structs.
func (p *memFunc) addrExpr(name string, t cc.Type) string {
	rt := p.tu.ResolveType(t)
	if rt.IsArray() || rt.IsPointer() {
		return name
	}
	return "&" + name
}

// rootIdent resolves the base of an access chain to its root identifier,
// walking through member selections, nested subscripts, parentheses and
// casts. Every chain node traversed is claimed so it is not recorded a
// second time when the walk reaches it.
func (p *memFunc) rootIdent(e cc.Expr) *cc.Ident {
	for {
		e = stripParens(e)
		switch v := e.(type) {
		case *cc.Ident:
			return v
		case *cc.MemberExpr:
			p.claimed[v] = true
			e = v.X
		case *cc.IndexExpr:
			p.claimed[v] = true
			e = v.X
		default:
			return nil
		}
	}
}

func (p *memFunc) recordIndex(ix *cc.IndexExpr) {
	if p.claimed[ix] {
		return
	}
	root := p.rootIdent(ix.X)
	if root == nil || !p.vars[root.Name] {
		return
	}
	text := p.tu.File.Text(ix.Pos(), ix.End())
	p.insertRecord(ix, codegen.MemRecordLValue(root.Name, text))
}

// recordDeref handles pointer dereferences. The dereferenced operand is
// resolved through parentheses and the left side of pointer arithmetic
// (`*(p + i)` probes p); when it bottoms out at a subscript the subscript
// handler owns the access instead.
func (p *memFunc) recordDeref(u *cc.UnaryExpr) {
	sub := u.X
	e := stripParens(sub)
	for {
		switch v := e.(type) {
		case *cc.BinaryExpr:
			e = stripParens(v.X)
			continue
		case *cc.MemberExpr:
			p.claimed[v] = true
			e = stripParens(v.X)
			continue
		}
		break
	}
	root, ok := e.(*cc.Ident)
	if !ok || !p.vars[root.Name] {
		return
	}
	text := p.tu.File.Text(sub.Pos(), sub.End())
	p.insertRecord(u, codegen.MemRecordPointer(root.Name, text))
}

func (p *memFunc) recordMember(me *cc.MemberExpr) {
	if p.claimed[me] {
		return
	}
	base, ok := stripParens(me.X).(*cc.Ident)
	if !ok || !p.vars[base.Name] {
		return
	}
	text := p.tu.File.Text(me.Pos(), me.End())
	p.insertRecord(me, codegen.MemRecordLValue(base.Name, text))
}

// insertRecord places a recorder before the statement enclosing the
// access: the parent chain is walked upward to the nearest ancestor that
// is a statement in a braced-insertable position. When that statement is
// the unbraced body of a control statement, braces are synthesized around
// the probe and the statement so the probe stays inside the branch (and
// runs on every loop iteration). Indentation is mirrored from the
// insertion line.
func (p *memFunc) insertRecord(access cc.Node, code string) {
	stmt := p.anchorStmt(access)
	if stmt == nil {
		return
	}
	ind := p.tu.File.Indent(stmt.Pos())
	switch {
	case !unbracedControlBody(p.pm, stmt):
		p.buf.InsertBefore(stmt.Pos(), code+"\n"+ind)
	case p.braced[stmt]:
		p.buf.InsertBefore(stmt.Pos(), code+"\n"+ind)
	default:
		p.braced[stmt] = true
		p.buf.InsertBefore(stmt.Pos(), "{ "+code+"\n"+ind)
		p.buf.InsertBefore(stmt.End(), " }")
	}
	p.stats.RecordsInserted++
}

// anchorStmt walks upward from an access expression to the nearest
// ancestor that is a statement in statement position: a child of a
// compound block, a labeled statement, or the body slot of a control
// statement. Accesses in control-statement headers (an if condition, a
// for clause) keep climbing and anchor at the control statement itself,
// which is the closest point where a prefixed sibling is still valid C.
func (p *memFunc) anchorStmt(access cc.Node) cc.Stmt {
	n := access
	for {
		par := p.pm.Parent(n)
		if par == nil {
			return nil
		}
		// A for-init declaration or expression lives inside the header
		// parentheses; nothing can be inserted before it, so climb to the
		// loop itself.
		if fs, ok := par.(*cc.ForStmt); ok && fs.Init != nil && n == cc.Node(fs.Init) {
			n = par
			continue
		}
		if s, ok := n.(cc.Stmt); ok {
			switch par.(type) {
			case *cc.CompoundStmt, *cc.LabeledStmt, *cc.IfStmt, *cc.ForStmt,
				*cc.WhileStmt, *cc.DoStmt, *cc.SwitchStmt:
				return s
			}
		}
		n = par
	}
}

// insertAnalysis emits the __mem_analyze/__mem_print_analysis pair for
// every instrumented variable before each return, and after the last
// statement when the body does not end in a return (void functions and
// fall-through exits).
func (p *memFunc) insertAnalysis() {
	if len(p.order) == 0 {
		return
	}
	file := p.tu.File
	body := p.fd.Body

	cc.Inspect(body, func(n cc.Node) bool {
		ret, ok := n.(*cc.ReturnStmt)
		if !ok {
			return true
		}
		ind := file.Indent(ret.Pos())
		var b strings.Builder
		for _, v := range p.order {
			b.WriteString(codegen.MemAnalyzeCall(v) + "\n" + ind)
			b.WriteString(codegen.MemPrintCall(v) + "\n" + ind)
		}
		// A return that is the unbraced body of a control statement gets
		// synthesized braces, shared with any recorder that already
		// wrapped it: prefixing a sibling there would otherwise evict the
		// return from its branch.
		switch {
		case !unbracedControlBody(p.pm, ret):
			p.buf.InsertBefore(ret.Pos(), b.String())
		case p.braced[ret]:
			p.buf.InsertBefore(ret.Pos(), b.String())
		default:
			p.braced[ret] = true
			p.buf.InsertBefore(ret.Pos(), "{ "+b.String())
			p.buf.InsertBefore(ret.End(), " }")
		}
		p.stats.AnalysisBlocks++
		return true
	})

	if n := len(body.List); n > 0 {
		last := body.List[n-1]
		if _, isReturn := last.(*cc.ReturnStmt); !isReturn {
			ind := file.Indent(last.Pos())
			var b strings.Builder
			for _, v := range p.order {
				b.WriteString("\n" + ind + codegen.MemAnalyzeCall(v))
				b.WriteString("\n" + ind + codegen.MemPrintCall(v))
			}
			p.buf.InsertBefore(last.End(), b.String())
			p.stats.AnalysisBlocks++
		}
	}
}
