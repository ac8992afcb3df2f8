// Package instrument implements the rewrite planners: the passes that
// decide where in the original source to inject probes and which snippet
// to inject at each point.
//
// Two planners exist, one per mode. PlanTime interleaves cycle-counter
// probes keyed to the call graph; PlanMemory interleaves per-variable
// access recorders and analysis calls. Exactly one runs per invocation.
// Both are best-effort by design: sites they cannot resolve are skipped,
// counted in the statistics, and never fail the run.
package instrument

import "github.com/hthread/mtinstr/internal/cc"

// statementStart locates the beginning of the statement enclosing the
// byte offset off: it scans the source backward until a ';', '{', '}' or
// newline, then skips forward over whitespace. The time planner uses it
// to place pre-call timestamps before the whole statement, e.g. ahead of
// the `x =` of `x = g();`.
func statementStart(f *cc.File, off int) int {
	i := off - 1
	for i >= 0 {
		switch f.Src[i] {
		case ';', '{', '}', '\n':
			goto found
		}
		i--
	}
found:
	i++
	for i < len(f.Src) {
		switch f.Src[i] {
		case ' ', '\t', '\n', '\r':
			i++
			continue
		}
		break
	}
	return i
}

// unbracedControlBody reports whether s is the direct, unbraced body (or
// then/else branch) of a control statement. Inserting a sibling statement
// before such an s would be captured by the control statement in its
// place, pushing s out of the branch entirely; callers synthesize braces
// around the pair instead.
func unbracedControlBody(pm cc.ParentMap, s cc.Node) bool {
	switch pm.Parent(s).(type) {
	case *cc.IfStmt, *cc.ForStmt, *cc.WhileStmt, *cc.DoStmt, *cc.SwitchStmt:
		return true
	}
	return false
}

// stripParens unwraps parentheses and casts around an expression so base
// resolution sees the underlying access chain.
func stripParens(e cc.Expr) cc.Expr {
	for {
		switch v := e.(type) {
		case *cc.ParenExpr:
			e = v.X
		case *cc.CastExpr:
			e = v.X
		default:
			return e
		}
	}
}
