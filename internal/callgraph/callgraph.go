// Package callgraph builds and represents the per-translation-unit call
// graph the planners consult: functions defined in the main file, with a
// directed edge for every direct call between two of them.
//
// The graph is constructed in one pass and read-only afterwards. Nodes are
// arena records keyed by function name; adjacency stores names, not node
// handles, so recursion and mutual recursion introduce no ownership cycles.
package callgraph

import (
	"fmt"
	"io"
	"sort"

	"github.com/hthread/mtinstr/internal/cc"
)

// Node is one function of the graph. Callees preserves first-call order
// and contains each callee at most once, even when the caller has several
// call sites for it.
type Node struct {
	Name    string
	Callees []string

	callees map[string]bool
}

// HasCallee reports whether name is among the node's callees.
func (n *Node) HasCallee(name string) bool { return n.callees[name] }

// Graph is the call graph of one translation unit.
type Graph struct {
	nodes   map[string]*Node
	order   []string
	callers map[string]map[string]bool
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*Node),
		callers: make(map[string]map[string]bool),
	}
}

// AddNode registers a function definition. Adding an existing node is a
// no-op.
func (g *Graph) AddNode(name string) {
	if name == "" {
		return
	}
	if _, ok := g.nodes[name]; ok {
		return
	}
	g.nodes[name] = &Node{Name: name, callees: make(map[string]bool)}
	g.order = append(g.order, name)
}

// AddEdge records caller -> callee. Both endpoints are created if missing;
// a repeated edge is recorded once.
func (g *Graph) AddEdge(caller, callee string) {
	if caller == "" || callee == "" {
		return
	}
	g.AddNode(caller)
	g.AddNode(callee)
	n := g.nodes[caller]
	if !n.callees[callee] {
		n.callees[callee] = true
		n.Callees = append(n.Callees, callee)
	}
	set := g.callers[callee]
	if set == nil {
		set = make(map[string]bool)
		g.callers[callee] = set
	}
	set[caller] = true
}

// Node returns the named node, or nil.
func (g *Graph) Node(name string) *Node { return g.nodes[name] }

// Callees returns the distinct callees of name in first-call order, or nil
// for an unknown node.
func (g *Graph) Callees(name string) []string {
	n := g.nodes[name]
	if n == nil {
		return nil
	}
	return n.Callees
}

// Names returns all node names in insertion order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.order))
	copy(out, g.order)
	return out
}

// Callers returns the distinct callers of name, sorted for deterministic
// report generation.
func (g *Graph) Callers(name string) []string {
	set := g.callers[name]
	out := make([]string, 0, len(set))
	for c := range set {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// Roots returns the functions with no callers, in insertion order. A node
// can be both a root and a leaf.
func (g *Graph) Roots() []string {
	var out []string
	for _, name := range g.order {
		if len(g.callers[name]) == 0 {
			out = append(out, name)
		}
	}
	return out
}

// IsRoot reports whether name has no callers.
func (g *Graph) IsRoot(name string) bool {
	_, known := g.nodes[name]
	return known && len(g.callers[name]) == 0
}

// IsLeaf reports whether name has no callees.
func (g *Graph) IsLeaf(name string) bool {
	n := g.nodes[name]
	return n != nil && len(n.Callees) == 0
}

// Dump writes a readable graph listing: per function, its callees and
// callers.
func (g *Graph) Dump(w io.Writer) {
	fmt.Fprintf(w, "Call Graph Structure:\n==================\n")
	for _, name := range g.order {
		n := g.nodes[name]
		fmt.Fprintf(w, "\nFunction: %s\n  Calls:", name)
		for _, callee := range n.Callees {
			fmt.Fprintf(w, " %s", callee)
		}
		fmt.Fprintf(w, "\n  Called by:")
		for _, caller := range g.Callers(name) {
			fmt.Fprintf(w, " %s", caller)
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "==================\n")
}

// WriteDOT writes the graph in Graphviz digraph form.
func (g *Graph) WriteDOT(w io.Writer) error {
	if _, err := fmt.Fprintln(w, "digraph CallGraph {"); err != nil {
		return err
	}
	for _, name := range g.order {
		for _, callee := range g.nodes[name].Callees {
			if _, err := fmt.Fprintf(w, "  %q -> %q;\n", name, callee); err != nil {
				return err
			}
		}
	}
	_, err := fmt.Fprintln(w, "}")
	return err
}

// Build constructs the call graph of tu.
//
// A node is added for every function definition (a declaration with a
// body) in the main file; an edge is added for every direct call whose
// callee is itself defined in the main file. Unresolvable callees —
// indirect calls, externs, functions known only from headers — are
// silently skipped, as are definitions with empty names. The pass never
// fails.
func Build(tu *cc.TranslationUnit) *Graph {
	g := New()
	for _, fd := range tu.FuncDefs() {
		if fd.Name == nil || fd.Name.Name == "" {
			continue
		}
		caller := fd.Name.Name
		g.AddNode(caller)
		cc.Inspect(fd.Body, func(n cc.Node) bool {
			call, ok := n.(*cc.CallExpr)
			if !ok {
				return true
			}
			callee := call.Callee()
			if callee == nil {
				return true
			}
			if def, ok := tu.Funcs[callee.Name]; !ok || def.Body == nil {
				return true
			}
			g.AddEdge(caller, callee.Name)
			return true
		})
	}
	return g
}
