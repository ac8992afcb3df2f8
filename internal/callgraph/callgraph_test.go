package callgraph

import (
	"strings"
	"testing"

	"github.com/hthread/mtinstr/internal/cc"
)

func buildFrom(t *testing.T, src string) *Graph {
	t.Helper()
	tu, _ := cc.Parse(cc.NewFile("test.c", []byte(src)))
	return Build(tu)
}

func TestBuild_LinearChain(t *testing.T) {
	g := buildFrom(t, `
void c(){}
void b(){c();}
void a(){b();}
int main(){a();return 0;}
`)
	for _, name := range []string{"a", "b", "c", "main"} {
		if g.Node(name) == nil {
			t.Errorf("missing node %q", name)
		}
	}
	cases := []struct {
		fn      string
		callees []string
	}{
		{"main", []string{"a"}},
		{"a", []string{"b"}},
		{"b", []string{"c"}},
		{"c", nil},
	}
	for _, tc := range cases {
		got := g.Callees(tc.fn)
		if len(got) != len(tc.callees) {
			t.Errorf("callees(%s) = %v, want %v", tc.fn, got, tc.callees)
			continue
		}
		for i := range got {
			if got[i] != tc.callees[i] {
				t.Errorf("callees(%s)[%d] = %q, want %q", tc.fn, i, got[i], tc.callees[i])
			}
		}
	}
	if roots := g.Roots(); len(roots) != 1 || roots[0] != "main" {
		t.Errorf("roots = %v, want [main]", roots)
	}
	if !g.IsLeaf("c") || g.IsLeaf("b") {
		t.Errorf("leaf classification wrong")
	}
}

func TestBuild_RepeatedCallRecordedOnce(t *testing.T) {
	g := buildFrom(t, `
void x(){}
void y(){}
void f(){x();y();x();}
`)
	got := g.Callees("f")
	if len(got) != 2 || got[0] != "x" || got[1] != "y" {
		t.Errorf("callees(f) = %v, want [x y] with the repeated edge deduplicated", got)
	}
	if callers := g.Callers("x"); len(callers) != 1 || callers[0] != "f" {
		t.Errorf("callers(x) = %v, want [f]", callers)
	}
}

func TestBuild_SelfRecursion(t *testing.T) {
	g := buildFrom(t, "int f(int n){ if(n<=1) return n; return f(n-1)+f(n-2); }")
	if got := g.Callees("f"); len(got) != 1 || got[0] != "f" {
		t.Errorf("callees(f) = %v, want a single self-edge", got)
	}
	if g.IsLeaf("f") {
		t.Errorf("recursive f misclassified as leaf")
	}
	if g.IsRoot("f") {
		t.Errorf("f calls itself, so it has a caller and is not a root")
	}
}

func TestBuild_ExternCalleeSkipped(t *testing.T) {
	g := buildFrom(t, `
int external(int x);
void f(){ external(1); }
`)
	if g.Node("external") != nil {
		t.Errorf("prototype-only callee became a node")
	}
	if got := g.Callees("f"); len(got) != 0 {
		t.Errorf("callees(f) = %v, want none (extern is not instrumentable)", got)
	}
	if !g.IsLeaf("f") {
		t.Errorf("f calls only externs and should be a leaf")
	}
}

func TestBuild_IndirectCallIgnored(t *testing.T) {
	g := buildFrom(t, `
void target(){}
void f(){
    void (*fp)();
    (*fp)();
}
`)
	if got := g.Callees("f"); len(got) != 0 {
		t.Errorf("indirect call produced edges: %v", got)
	}
}

func TestGraph_CallersSorted(t *testing.T) {
	g := New()
	g.AddEdge("zeta", "hot")
	g.AddEdge("alpha", "hot")
	got := g.Callers("hot")
	if len(got) != 2 || got[0] != "alpha" || got[1] != "zeta" {
		t.Errorf("callers = %v, want sorted [alpha zeta]", got)
	}
}

func TestGraph_RootAndLeafMayCoincide(t *testing.T) {
	g := New()
	g.AddNode("isolated")
	if !g.IsRoot("isolated") || !g.IsLeaf("isolated") {
		t.Errorf("isolated node must be both root and leaf")
	}
}

func TestGraph_WriteDOT(t *testing.T) {
	g := New()
	g.AddEdge("main", "a")
	g.AddEdge("a", "b")
	var sb strings.Builder
	if err := g.WriteDOT(&sb); err != nil {
		t.Fatalf("WriteDOT: %v", err)
	}
	out := sb.String()
	if !strings.HasPrefix(out, "digraph CallGraph {") {
		t.Errorf("DOT header missing: %q", out)
	}
	for _, edge := range []string{`"main" -> "a";`, `"a" -> "b";`} {
		if !strings.Contains(out, edge) {
			t.Errorf("DOT missing %q:\n%s", edge, out)
		}
	}
}

func TestGraph_Dump(t *testing.T) {
	g := New()
	g.AddEdge("main", "a")
	var sb strings.Builder
	g.Dump(&sb)
	out := sb.String()
	if !strings.Contains(out, "Function: main") || !strings.Contains(out, "Calls: a") {
		t.Errorf("dump output incomplete:\n%s", out)
	}
}
