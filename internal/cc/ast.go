package cc

// AST node definitions. Every node carries byte offsets into the original
// buffer: Pos is the offset of the node's first token, End the offset just
// past its last token (for statements, past the terminating semicolon or
// closing brace). The rewrite planner keys its insertions on these offsets,
// so they must be exact.
//
// The node set mirrors the subset of C the planners care about; constructs
// outside it are skipped by the parser's recovery path rather than modeled.

// Node is the interface implemented by all AST nodes.
type Node interface {
	Pos() int
	End() int
}

// Expr is implemented by all expression nodes.
type Expr interface {
	Node
	exprNode()
}

// Stmt is implemented by all statement nodes.
type Stmt interface {
	Node
	stmtNode()
}

// Decl is implemented by all top-level declaration nodes.
type Decl interface {
	Node
	declNode()
}

// ---------------------------------------------------------------- types --

// Type is the simplified declared type of a variable, parameter, or field.
// It captures exactly what eligibility checks need: the spelled base name,
// const qualification, pointer depth, and array dimensions.
type Type struct {
	Name      string // "int", "unsigned long", "struct S", typedef name
	Const     bool
	PtrDepth  int
	ArrayDims int
}

// IsPointer reports whether the declarator has pointer form.
func (t Type) IsPointer() bool { return t.PtrDepth > 0 }

// IsArray reports whether the declarator has array form.
func (t Type) IsArray() bool { return t.ArrayDims > 0 }

// IsStruct reports whether the base type is a struct or union.
func (t Type) IsStruct() bool {
	return len(t.Name) > 6 && (t.Name[:7] == "struct " || t.Name[:6] == "union ")
}

// StructTag returns the tag of a struct/union base type, or "".
func (t Type) StructTag() string {
	switch {
	case len(t.Name) > 7 && t.Name[:7] == "struct ":
		return t.Name[7:]
	case len(t.Name) > 6 && t.Name[:6] == "union ":
		return t.Name[6:]
	}
	return ""
}

// ---------------------------------------------------------- expressions --

// Ident is a name reference.
type Ident struct {
	NamePos int
	Name    string
}

func (x *Ident) Pos() int { return x.NamePos }
func (x *Ident) End() int { return x.NamePos + len(x.Name) }

// BasicLit is a number, string, or character literal.
type BasicLit struct {
	ValuePos int
	Kind     Kind
	Value    string
}

func (x *BasicLit) Pos() int { return x.ValuePos }
func (x *BasicLit) End() int { return x.ValuePos + len(x.Value) }

// ParenExpr is a parenthesized expression.
type ParenExpr struct {
	Lparen int
	X      Expr
	Rparen int
}

func (x *ParenExpr) Pos() int { return x.Lparen }
func (x *ParenExpr) End() int { return x.Rparen + 1 }

// UnaryExpr is a prefix operator application: * & + - ! ~ ++ --.
type UnaryExpr struct {
	OpPos int
	Op    string
	X     Expr
}

func (x *UnaryExpr) Pos() int { return x.OpPos }
func (x *UnaryExpr) End() int { return x.X.End() }

// PostfixExpr is a postfix ++ or --.
type PostfixExpr struct {
	X     Expr
	Op    string
	OpPos int
}

func (x *PostfixExpr) Pos() int { return x.X.Pos() }
func (x *PostfixExpr) End() int { return x.OpPos + len(x.Op) }

// BinaryExpr is a non-assignment binary operation, including the comma
// operator.
type BinaryExpr struct {
	X     Expr
	OpPos int
	Op    string
	Y     Expr
}

func (x *BinaryExpr) Pos() int { return x.X.Pos() }
func (x *BinaryExpr) End() int { return x.Y.End() }

// AssignExpr is an assignment, simple or compound. The memory planner does
// not stop at it: recorders for accesses on either side are inserted before
// the statement that encloses the whole assignment.
type AssignExpr struct {
	Lhs   Expr
	OpPos int
	Op    string // "=", "+=", ...
	Rhs   Expr
}

func (x *AssignExpr) Pos() int { return x.Lhs.Pos() }
func (x *AssignExpr) End() int { return x.Rhs.End() }

// CondExpr is the ternary conditional.
type CondExpr struct {
	Cond Expr
	Then Expr
	Else Expr
}

func (x *CondExpr) Pos() int { return x.Cond.Pos() }
func (x *CondExpr) End() int { return x.Else.End() }

// CallExpr is a function call.
type CallExpr struct {
	Fun    Expr
	Lparen int
	Args   []Expr
	Rparen int
}

func (x *CallExpr) Pos() int { return x.Fun.Pos() }
func (x *CallExpr) End() int { return x.Rparen + 1 }

// Callee returns the called identifier for a direct call, or nil when the
// callee is not directly resolvable (function pointers, member calls).
func (x *CallExpr) Callee() *Ident {
	fn := x.Fun
	for {
		if p, ok := fn.(*ParenExpr); ok {
			fn = p.X
			continue
		}
		break
	}
	id, _ := fn.(*Ident)
	return id
}

// IndexExpr is an array subscript.
type IndexExpr struct {
	X      Expr
	Lbrack int
	Index  Expr
	Rbrack int
}

func (x *IndexExpr) Pos() int { return x.X.Pos() }
func (x *IndexExpr) End() int { return x.Rbrack + 1 }

// MemberExpr is a struct member access, via '.' or '->'.
type MemberExpr struct {
	X     Expr
	OpPos int
	Arrow bool
	Sel   *Ident
}

func (x *MemberExpr) Pos() int { return x.X.Pos() }
func (x *MemberExpr) End() int { return x.Sel.End() }

// SizeofExpr is sizeof applied to an expression or a parenthesized type.
type SizeofExpr struct {
	KwPos  int
	X      Expr   // nil when applied to a type
	Type   string // spelled type when applied to a type
	EndOff int
}

func (x *SizeofExpr) Pos() int { return x.KwPos }
func (x *SizeofExpr) End() int { return x.EndOff }

// CastExpr is a C cast.
type CastExpr struct {
	Lparen int
	Type   string
	X      Expr
}

func (x *CastExpr) Pos() int { return x.Lparen }
func (x *CastExpr) End() int { return x.X.End() }

// InitListExpr is a braced initializer list.
type InitListExpr struct {
	Lbrace int
	Elems  []Expr
	Rbrace int
}

func (x *InitListExpr) Pos() int { return x.Lbrace }
func (x *InitListExpr) End() int { return x.Rbrace + 1 }

func (*Ident) exprNode()        {}
func (*BasicLit) exprNode()     {}
func (*ParenExpr) exprNode()    {}
func (*UnaryExpr) exprNode()    {}
func (*PostfixExpr) exprNode()  {}
func (*BinaryExpr) exprNode()   {}
func (*AssignExpr) exprNode()   {}
func (*CondExpr) exprNode()     {}
func (*CallExpr) exprNode()     {}
func (*IndexExpr) exprNode()    {}
func (*MemberExpr) exprNode()   {}
func (*SizeofExpr) exprNode()   {}
func (*CastExpr) exprNode()     {}
func (*InitListExpr) exprNode() {}

// ----------------------------------------------------------- statements --

// CompoundStmt is a braced block.
type CompoundStmt struct {
	Lbrace int
	List   []Stmt
	Rbrace int
}

func (s *CompoundStmt) Pos() int { return s.Lbrace }
func (s *CompoundStmt) End() int { return s.Rbrace + 1 }

// DeclStmt is a declaration appearing in a block (or, at top level, a
// global variable declaration). One DeclStmt covers one init-declarator
// list: `int a, *b, c[4];` yields one DeclStmt with three VarDecls.
type DeclStmt struct {
	Decls []*VarDecl
	Semi  int
}

func (s *DeclStmt) Pos() int {
	if len(s.Decls) > 0 {
		return s.Decls[0].DeclPos
	}
	return s.Semi
}
func (s *DeclStmt) End() int { return s.Semi + 1 }

// ExprStmt is an expression statement.
type ExprStmt struct {
	X    Expr
	Semi int
}

func (s *ExprStmt) Pos() int { return s.X.Pos() }
func (s *ExprStmt) End() int { return s.Semi + 1 }

// IfStmt is an if, with optional else.
type IfStmt struct {
	IfPos int
	Cond  Expr
	Then  Stmt
	Else  Stmt // may be nil
}

func (s *IfStmt) Pos() int { return s.IfPos }
func (s *IfStmt) End() int {
	if s.Else != nil {
		return s.Else.End()
	}
	return s.Then.End()
}

// ForStmt is a for loop. Init may be a DeclStmt or ExprStmt; any of the
// three header slots may be nil.
type ForStmt struct {
	ForPos int
	Init   Stmt
	Cond   Expr
	Post   Expr
	Body   Stmt
}

func (s *ForStmt) Pos() int { return s.ForPos }
func (s *ForStmt) End() int { return s.Body.End() }

// WhileStmt is a while loop.
type WhileStmt struct {
	WhilePos int
	Cond     Expr
	Body     Stmt
}

func (s *WhileStmt) Pos() int { return s.WhilePos }
func (s *WhileStmt) End() int { return s.Body.End() }

// DoStmt is a do/while loop.
type DoStmt struct {
	DoPos int
	Body  Stmt
	Cond  Expr
	Semi  int
}

func (s *DoStmt) Pos() int { return s.DoPos }
func (s *DoStmt) End() int { return s.Semi + 1 }

// SwitchStmt is a switch.
type SwitchStmt struct {
	SwitchPos int
	Tag       Expr
	Body      Stmt
}

func (s *SwitchStmt) Pos() int { return s.SwitchPos }
func (s *SwitchStmt) End() int { return s.Body.End() }

// LabeledStmt covers `name:`, `case expr:` and `default:` prefixes.
type LabeledStmt struct {
	LabelPos int
	Name     string // label name, or "case"/"default"
	Value    Expr   // case value, nil otherwise
	Stmt     Stmt
}

func (s *LabeledStmt) Pos() int { return s.LabelPos }
func (s *LabeledStmt) End() int { return s.Stmt.End() }

// ReturnStmt is a return, with optional result.
type ReturnStmt struct {
	ReturnPos int
	Result    Expr // may be nil
	Semi      int
}

func (s *ReturnStmt) Pos() int { return s.ReturnPos }
func (s *ReturnStmt) End() int { return s.Semi + 1 }

// BranchStmt is break, continue, or goto.
type BranchStmt struct {
	TokPos int
	Tok    string // "break", "continue", "goto"
	Label  string // goto target, "" otherwise
	Semi   int
}

func (s *BranchStmt) Pos() int { return s.TokPos }
func (s *BranchStmt) End() int { return s.Semi + 1 }

// EmptyStmt is a lone semicolon.
type EmptyStmt struct {
	Semi int
}

func (s *EmptyStmt) Pos() int { return s.Semi }
func (s *EmptyStmt) End() int { return s.Semi + 1 }

func (*CompoundStmt) stmtNode() {}
func (*DeclStmt) stmtNode()     {}
func (*ExprStmt) stmtNode()     {}
func (*IfStmt) stmtNode()       {}
func (*ForStmt) stmtNode()      {}
func (*WhileStmt) stmtNode()    {}
func (*DoStmt) stmtNode()       {}
func (*SwitchStmt) stmtNode()   {}
func (*LabeledStmt) stmtNode()  {}
func (*ReturnStmt) stmtNode()   {}
func (*BranchStmt) stmtNode()   {}
func (*EmptyStmt) stmtNode()    {}

// --------------------------------------------------------- declarations --

// VarDecl is one declarator of a variable declaration. SemiOff is the
// offset of the ';' terminating its declaration; the memory planner places
// descriptor inits immediately after it.
type VarDecl struct {
	Type    Type
	Name    *Ident
	Init    Expr // may be nil
	DeclPos int  // start of the whole declaration (type specifier)
	SemiOff int
}

func (d *VarDecl) Pos() int { return d.DeclPos }
func (d *VarDecl) End() int { return d.SemiOff + 1 }

// ParamDecl is one function parameter.
type ParamDecl struct {
	Type   Type
	Name   *Ident // nil for unnamed parameters
	BegOff int
	EndOff int
}

func (d *ParamDecl) Pos() int { return d.BegOff }
func (d *ParamDecl) End() int { return d.EndOff }

// FuncDecl is a function definition or prototype. Body is nil for
// prototypes; the planners only instrument definitions. DeclPos is the
// offset of the first token of the declaration (return type or storage
// class), which is where per-function timing arrays are placed.
type FuncDecl struct {
	RetType Type
	Name    *Ident
	Params  []*ParamDecl
	Body    *CompoundStmt // nil for prototypes
	DeclPos int
	EndOff  int
}

func (d *FuncDecl) Pos() int { return d.DeclPos }
func (d *FuncDecl) End() int { return d.EndOff }

// FieldDecl is one struct/union field.
type FieldDecl struct {
	Type Type
	Name string
}

// RecordDecl is a struct or union definition (with a body). References
// without a body are not recorded; eligibility lookups on them simply miss.
type RecordDecl struct {
	KwPos  int
	Union  bool
	Tag    string // may be "" for anonymous records behind a typedef
	Fields []*FieldDecl
	EndOff int
}

func (d *RecordDecl) Pos() int { return d.KwPos }
func (d *RecordDecl) End() int { return d.EndOff }

// TypedefDecl records a typedef so the parser can classify later uses of
// the name as a type.
type TypedefDecl struct {
	TypedefPos int
	Name       string
	Underlying Type
	EndOff     int
}

func (d *TypedefDecl) Pos() int { return d.TypedefPos }
func (d *TypedefDecl) End() int { return d.EndOff }

func (*VarDecl) declNode()     {}
func (*FuncDecl) declNode()    {}
func (*RecordDecl) declNode()  {}
func (*TypedefDecl) declNode() {}
func (*DeclStmt) declNode()    {}

// ----------------------------------------------------- translation unit --

// TranslationUnit is the parsed main file plus the side tables the
// planners consult.
type TranslationUnit struct {
	File       *File
	Decls      []Decl
	Directives *Directives

	// Records maps struct/union tag -> definition, for the
	// struct-with-array-or-pointer-field eligibility rule.
	Records map[string]*RecordDecl
	// Typedefs maps typedef name -> underlying type.
	Typedefs map[string]Type
	// Funcs maps function name -> its definition (body present). A name
	// declared only as a prototype or used without declaration is absent.
	Funcs map[string]*FuncDecl
}

// FuncDefs returns the function definitions in source order.
func (tu *TranslationUnit) FuncDefs() []*FuncDecl {
	var out []*FuncDecl
	for _, d := range tu.Decls {
		if fd, ok := d.(*FuncDecl); ok && fd.Body != nil {
			out = append(out, fd)
		}
	}
	return out
}

// ResolveType follows typedefs until it reaches a non-typedef type,
// accumulating pointer/array structure. Cycles cannot occur because the
// parser only records a typedef after its underlying type parsed.
func (tu *TranslationUnit) ResolveType(t Type) Type {
	for i := 0; i < 16; i++ {
		under, ok := tu.Typedefs[t.Name]
		if !ok {
			return t
		}
		under.PtrDepth += t.PtrDepth
		under.ArrayDims += t.ArrayDims
		under.Const = under.Const || t.Const
		t = under
	}
	return t
}

// TypeEligible reports whether a declared type is memory-interesting:
// array, pointer, or a struct containing at least one array or pointer
// field. Const-qualified declarations are rejected.
func (tu *TranslationUnit) TypeEligible(t Type) bool {
	t = tu.ResolveType(t)
	if t.Const {
		return false
	}
	if t.IsArray() || t.IsPointer() {
		return true
	}
	if !t.IsStruct() {
		return false
	}
	rec, ok := tu.Records[t.StructTag()]
	if !ok {
		return false
	}
	for _, fld := range rec.Fields {
		ft := tu.ResolveType(fld.Type)
		if ft.IsArray() || ft.IsPointer() {
			return true
		}
	}
	return false
}
