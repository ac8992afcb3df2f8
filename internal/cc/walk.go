package cc

// Traversal helpers. Inspect performs a pre-order walk; ParentMap inverts
// the child relation so the planners can walk upward from an access
// expression to its enclosing statement. The AST keeps child pointers
// only, so the parent relation is precomputed in one pass.

// Children returns the direct child nodes of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(c Node) {
		switch v := c.(type) {
		case nil:
		case Expr:
			if v != nil {
				out = append(out, v)
			}
		case Stmt:
			if v != nil {
				out = append(out, v)
			}
		default:
			out = append(out, c)
		}
	}

	switch n := n.(type) {
	case *ParenExpr:
		add(n.X)
	case *UnaryExpr:
		add(n.X)
	case *PostfixExpr:
		add(n.X)
	case *BinaryExpr:
		add(n.X)
		add(n.Y)
	case *AssignExpr:
		add(n.Lhs)
		add(n.Rhs)
	case *CondExpr:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *CallExpr:
		add(n.Fun)
		for _, a := range n.Args {
			add(a)
		}
	case *IndexExpr:
		add(n.X)
		add(n.Index)
	case *MemberExpr:
		add(n.X)
		add(n.Sel)
	case *SizeofExpr:
		add(n.X)
	case *CastExpr:
		add(n.X)
	case *InitListExpr:
		for _, e := range n.Elems {
			add(e)
		}
	case *CompoundStmt:
		for _, s := range n.List {
			add(s)
		}
	case *DeclStmt:
		for _, d := range n.Decls {
			out = append(out, d)
		}
	case *ExprStmt:
		add(n.X)
	case *IfStmt:
		add(n.Cond)
		add(n.Then)
		add(n.Else)
	case *ForStmt:
		add(n.Init)
		add(n.Cond)
		add(n.Post)
		add(n.Body)
	case *WhileStmt:
		add(n.Cond)
		add(n.Body)
	case *DoStmt:
		add(n.Body)
		add(n.Cond)
	case *SwitchStmt:
		add(n.Tag)
		add(n.Body)
	case *LabeledStmt:
		add(n.Value)
		add(n.Stmt)
	case *ReturnStmt:
		add(n.Result)
	case *VarDecl:
		add(n.Init)
	case *FuncDecl:
		for _, p := range n.Params {
			out = append(out, p)
		}
		if n.Body != nil {
			out = append(out, n.Body)
		}
	}
	return out
}

// Inspect walks the tree rooted at n in pre-order, calling f for each node.
// If f returns false, the node's children are not visited.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// ParentMap maps each node to its parent within one walk root.
type ParentMap map[Node]Node

// NewParentMap precomputes the parent relation for the tree rooted at root.
func NewParentMap(root Node) ParentMap {
	pm := make(ParentMap)
	var walk func(n Node)
	walk = func(n Node) {
		for _, c := range Children(n) {
			pm[c] = n
			walk(c)
		}
	}
	walk(root)
	return pm
}

// Parent returns the parent of n, or nil at the walk root.
func (pm ParentMap) Parent(n Node) Node { return pm[n] }
