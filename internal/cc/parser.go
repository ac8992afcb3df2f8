package cc

// Recursive-descent parser for the C subset the planners operate on:
// function definitions, declarations, the statement forms that matter for
// insertion-point resolution, and full expression precedence. It is
// deliberately permissive: constructs it cannot model (function pointers,
// K&R definitions, GNU extensions) are skipped with local resynchronization
// and reported as warnings, never as run failures. Probing is best-effort;
// a skipped declaration only means its sites go unprobed.

import (
	"fmt"
	"strings"
)

// ParseError is a positional syntax diagnostic. The parser collects these
// as warnings and Parse returns them alongside the TranslationUnit; Parse
// itself never fails. Deciding that a file with no declarations is an
// error is left to the caller.
type ParseError struct {
	File    string
	Pos     Position
	Message string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s:%s: %s", e.File, e.Pos, e.Message)
}

// Parse lexes and parses the main file. The returned TranslationUnit is
// usable even when warnings are present.
func Parse(f *File) (*TranslationUnit, []error) {
	toks, dirs := Lex(f)
	p := &parser{
		file: f,
		toks: toks,
		tu: &TranslationUnit{
			File:       f,
			Directives: dirs,
			Records:    make(map[string]*RecordDecl),
			Typedefs:   make(map[string]Type),
			Funcs:      make(map[string]*FuncDecl),
		},
	}
	p.parseFile()
	return p.tu, p.errs
}

type parser struct {
	file *File
	toks []Token
	i    int
	tu   *TranslationUnit
	errs []error
}

// bailout is the panic payload used for local error recovery.
type bailout struct{}

func (p *parser) cur() Token { return p.toks[p.i] }

func (p *parser) peek() Token {
	if p.i+1 < len(p.toks) {
		return p.toks[p.i+1]
	}
	return p.toks[len(p.toks)-1]
}

func (p *parser) next() Token {
	t := p.toks[p.i]
	if p.i < len(p.toks)-1 {
		p.i++
	}
	return t
}

func (p *parser) at(kind Kind, text string) bool {
	t := p.cur()
	return t.Kind == kind && t.Text == text
}

func (p *parser) atPunct(text string) bool { return p.at(PUNCT, text) }

func (p *parser) accept(kind Kind, text string) bool {
	if p.at(kind, text) {
		p.next()
		return true
	}
	return false
}

func (p *parser) errorf(off int, format string, args ...interface{}) {
	p.errs = append(p.errs, &ParseError{
		File:    p.file.Name,
		Pos:     p.file.Position(off),
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) expectPunct(text string) Token {
	if p.atPunct(text) {
		return p.next()
	}
	p.errorf(p.cur().Off, "expected %q, found %q", text, p.cur().Text)
	panic(bailout{})
}

// ------------------------------------------------------------ top level --

func (p *parser) parseFile() {
	for p.cur().Kind != EOF {
		mark := p.i
		func() {
			defer func() {
				if r := recover(); r != nil {
					if _, ok := r.(bailout); !ok {
						panic(r)
					}
					if p.i == mark {
						p.next()
					}
					p.resyncTopLevel()
				}
			}()
			p.parseExternalDecl()
		}()
	}
}

// resyncTopLevel skips to just past the next ';' at depth zero, or past a
// balanced top-level brace pair, whichever comes first.
func (p *parser) resyncTopLevel() {
	depth := 0
	for {
		t := p.cur()
		switch {
		case t.Kind == EOF:
			return
		case t.Kind == PUNCT && (t.Text == "(" || t.Text == "["):
			depth++
		case t.Kind == PUNCT && (t.Text == ")" || t.Text == "]"):
			depth--
		case t.Kind == PUNCT && t.Text == "{":
			depth++
		case t.Kind == PUNCT && t.Text == "}":
			depth--
			if depth <= 0 {
				p.next()
				p.accept(PUNCT, ";")
				return
			}
		case t.Kind == PUNCT && t.Text == ";" && depth == 0:
			p.next()
			return
		}
		p.next()
	}
}

func (p *parser) parseExternalDecl() {
	if p.accept(PUNCT, ";") {
		return
	}

	start := p.cur().Off
	spec := p.parseDeclSpecifiers()

	if spec.isTypedef {
		p.parseTypedefTail(start, spec)
		return
	}

	// `struct S { ... };` with no declarators.
	if p.atPunct(";") {
		semi := p.next()
		if spec.record != nil {
			spec.record.EndOff = semi.End()
			p.tu.Decls = append(p.tu.Decls, spec.record)
		}
		return
	}

	ptr, name := p.parsePointerAndName(spec)
	if name == nil {
		p.errorf(p.cur().Off, "expected declarator name, found %q", p.cur().Text)
		panic(bailout{})
	}

	if p.atPunct("(") {
		p.parseFunctionTail(start, spec, ptr, name)
		return
	}
	p.parseVarTail(start, spec, ptr, name, true)
}

type declSpec struct {
	base      Type
	record    *RecordDecl
	isTypedef bool
}

var typeWords = map[string]bool{
	"void": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true,
	"_Bool": true,
}

var skipWords = map[string]bool{
	"static": true, "extern": true, "inline": true, "auto": true,
	"register": true, "volatile": true, "restrict": true,
}

// isTypeStart reports whether the current token can begin a declaration.
func (p *parser) isTypeStart() bool {
	t := p.cur()
	if t.Kind == KEYWORD {
		if typeWords[t.Text] || skipWords[t.Text] || t.Text == "const" ||
			t.Text == "struct" || t.Text == "union" || t.Text == "enum" ||
			t.Text == "typedef" {
			return true
		}
		return false
	}
	if t.Kind == IDENT {
		if _, ok := p.tu.Typedefs[t.Text]; ok {
			// `foo_t x`, `foo_t *x`: a typedef name followed by something
			// that can continue a declarator.
			n := p.peek()
			return n.Kind == IDENT || (n.Kind == PUNCT && n.Text == "*")
		}
	}
	return false
}

func (p *parser) parseDeclSpecifiers() declSpec {
	var spec declSpec
	var words []string

	for {
		t := p.cur()
		switch {
		case t.Kind == KEYWORD && t.Text == "typedef":
			spec.isTypedef = true
			p.next()
		case t.Kind == KEYWORD && skipWords[t.Text]:
			p.next()
		case t.Kind == KEYWORD && t.Text == "const":
			spec.base.Const = true
			p.next()
		case t.Kind == KEYWORD && typeWords[t.Text]:
			words = append(words, t.Text)
			p.next()
		case t.Kind == KEYWORD && (t.Text == "struct" || t.Text == "union"):
			spec.record = p.parseRecordSpec(t.Text == "union")
			if spec.record.Tag != "" {
				spec.base.Name = recordTypeName(spec.record)
			}
		case t.Kind == KEYWORD && t.Text == "enum":
			p.next()
			tag := ""
			if p.cur().Kind == IDENT {
				tag = p.next().Text
			}
			if p.atPunct("{") {
				p.skipBalanced("{", "}")
			}
			spec.base.Name = strings.TrimSpace("enum " + tag)
		case t.Kind == IDENT && len(words) == 0 && spec.record == nil && spec.base.Name == "":
			if _, ok := p.tu.Typedefs[t.Text]; ok {
				spec.base.Name = t.Text
				p.next()
			} else {
				goto done
			}
		default:
			goto done
		}
	}
done:
	if len(words) > 0 {
		spec.base.Name = strings.Join(words, " ")
	}
	if spec.base.Name == "" && spec.record == nil && !spec.isTypedef {
		p.errorf(p.cur().Off, "expected type specifier, found %q", p.cur().Text)
		panic(bailout{})
	}
	return spec
}

func recordTypeName(r *RecordDecl) string {
	kw := "struct"
	if r.Union {
		kw = "union"
	}
	return kw + " " + r.Tag
}

// parseRecordSpec parses `struct tag`, `struct tag {...}` or `struct {...}`.
// Definitions are registered in the Records table keyed by tag.
func (p *parser) parseRecordSpec(union bool) *RecordDecl {
	kw := p.next() // struct / union
	rec := &RecordDecl{KwPos: kw.Off, Union: union}
	if p.cur().Kind == IDENT {
		rec.Tag = p.next().Text
	}
	if !p.atPunct("{") {
		rec.EndOff = p.toks[p.i-1].End()
		return rec
	}
	p.next() // {
	for !p.atPunct("}") && p.cur().Kind != EOF {
		p.parseFieldDecl(rec)
	}
	rbrace := p.expectPunct("}")
	rec.EndOff = rbrace.End()
	if rec.Tag != "" {
		p.tu.Records[rec.Tag] = rec
	}
	return rec
}

func (p *parser) parseFieldDecl(rec *RecordDecl) {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			p.skipToFieldEnd()
		}
	}()

	spec := p.parseDeclSpecifiers()
	for {
		ptr := 0
		for p.accept(PUNCT, "*") {
			p.accept(KEYWORD, "const")
			ptr++
		}
		var name string
		if p.cur().Kind == IDENT {
			name = p.next().Text
		}
		dims := 0
		for p.atPunct("[") {
			p.skipBalanced("[", "]")
			dims++
		}
		if p.accept(PUNCT, ":") { // bitfield width
			p.parseCondExpr()
		}
		if name != "" {
			t := spec.base
			t.PtrDepth += ptr
			t.ArrayDims += dims
			rec.Fields = append(rec.Fields, &FieldDecl{Type: t, Name: name})
		}
		if !p.accept(PUNCT, ",") {
			break
		}
	}
	p.expectPunct(";")
}

func (p *parser) skipToFieldEnd() {
	depth := 0
	for {
		t := p.cur()
		if t.Kind == EOF {
			return
		}
		if t.Kind == PUNCT {
			switch t.Text {
			case "{", "(", "[":
				depth++
			case ")", "]":
				depth--
			case "}":
				if depth == 0 {
					return
				}
				depth--
			case ";":
				if depth == 0 {
					p.next()
					return
				}
			}
		}
		p.next()
	}
}

// parseTypedefTail handles everything after `typedef <specifiers>`.
func (p *parser) parseTypedefTail(start int, spec declSpec) {
	ptr := 0
	for p.accept(PUNCT, "*") {
		ptr++
	}
	if p.cur().Kind != IDENT {
		p.errorf(p.cur().Off, "expected typedef name, found %q", p.cur().Text)
		panic(bailout{})
	}
	nameTok := p.next()
	dims := 0
	for p.atPunct("[") {
		p.skipBalanced("[", "]")
		dims++
	}
	semi := p.expectPunct(";")

	under := spec.base
	if spec.record != nil && spec.record.Tag == "" {
		// Anonymous record behind a typedef: key it by the typedef name so
		// field lookups resolve.
		spec.record.Tag = nameTok.Text
		p.tu.Records[nameTok.Text] = spec.record
		under.Name = recordTypeName(spec.record)
	}
	under.PtrDepth += ptr
	under.ArrayDims += dims
	p.tu.Typedefs[nameTok.Text] = under
	p.tu.Decls = append(p.tu.Decls, &TypedefDecl{
		TypedefPos: start,
		Name:       nameTok.Text,
		Underlying: under,
		EndOff:     semi.End(),
	})
}

// parsePointerAndName consumes `* const`-style pointer prefixes and the
// declarator name.
func (p *parser) parsePointerAndName(spec declSpec) (int, *Ident) {
	ptr := 0
	for p.accept(PUNCT, "*") {
		for p.accept(KEYWORD, "const") || p.accept(KEYWORD, "volatile") || p.accept(KEYWORD, "restrict") {
		}
		ptr++
	}
	if p.cur().Kind != IDENT {
		return ptr, nil
	}
	t := p.next()
	return ptr, &Ident{NamePos: t.Off, Name: t.Text}
}

// parseFunctionTail parses the parameter list and optional body of a
// function declarator whose name has been consumed.
func (p *parser) parseFunctionTail(start int, spec declSpec, ptr int, name *Ident) {
	params := p.parseParamList()

	ret := spec.base
	ret.PtrDepth += ptr
	fd := &FuncDecl{RetType: ret, Name: name, Params: params, DeclPos: start}

	switch {
	case p.atPunct(";"):
		semi := p.next()
		fd.EndOff = semi.End()
	case p.atPunct("{"):
		fd.Body = p.parseCompoundStmt()
		fd.EndOff = fd.Body.End()
		p.tu.Funcs[name.Name] = fd
	default:
		p.errorf(p.cur().Off, "expected function body or %q, found %q", ";", p.cur().Text)
		panic(bailout{})
	}
	p.tu.Decls = append(p.tu.Decls, fd)
}

func (p *parser) parseParamList() []*ParamDecl {
	p.expectPunct("(")
	var params []*ParamDecl
	if p.atPunct(")") {
		p.next()
		return params
	}
	// `(void)` is an empty parameter list.
	if p.at(KEYWORD, "void") && p.peek().Kind == PUNCT && p.peek().Text == ")" {
		p.next()
		p.next()
		return params
	}
	for {
		if p.atPunct("...") {
			p.next()
			break
		}
		params = append(params, p.parseParam())
		if !p.accept(PUNCT, ",") {
			break
		}
	}
	p.expectPunct(")")
	return params
}

// parseParam parses one parameter declaration. Declarator shapes beyond
// `type *name[dims]` (function pointers and friends) are tolerated by
// skipping to the next ',' or ')'; the parameter is kept nameless so it is
// simply not instrumentable.
func (p *parser) parseParam() *ParamDecl {
	beg := p.cur().Off
	spec := p.parseDeclSpecifiers()
	ptr := 0
	for p.accept(PUNCT, "*") {
		for p.accept(KEYWORD, "const") || p.accept(KEYWORD, "volatile") || p.accept(KEYWORD, "restrict") {
		}
		ptr++
	}
	var name *Ident
	if p.cur().Kind == IDENT {
		t := p.next()
		name = &Ident{NamePos: t.Off, Name: t.Text}
	}
	dims := 0
	for p.atPunct("[") {
		p.skipBalanced("[", "]")
		dims++
	}
	// Anything left before ',' or ')' is a declarator shape we do not
	// model; drop the name so the parameter is skipped by the planners.
	if !p.atPunct(",") && !p.atPunct(")") {
		name = nil
		depth := 0
		for {
			t := p.cur()
			if t.Kind == EOF {
				break
			}
			if t.Kind == PUNCT {
				if t.Text == "(" || t.Text == "[" {
					depth++
				} else if t.Text == ")" || t.Text == "]" {
					if depth == 0 {
						break
					}
					depth--
				} else if t.Text == "," && depth == 0 {
					break
				}
			}
			p.next()
		}
	}
	ty := spec.base
	ty.PtrDepth += ptr
	ty.ArrayDims += dims
	return &ParamDecl{Type: ty, Name: name, BegOff: beg, EndOff: p.toks[p.i-1].End()}
}

// parseVarTail parses the remainder of a variable declaration whose first
// declarator's pointer prefix and name are consumed. At top level the
// resulting DeclStmt is appended to the TU; in blocks it is returned via
// the statement path.
func (p *parser) parseVarTail(start int, spec declSpec, ptr int, name *Ident, topLevel bool) *DeclStmt {
	ds := &DeclStmt{}
	first := true
	for {
		if !first {
			ptr = 0
			for p.accept(PUNCT, "*") {
				p.accept(KEYWORD, "const")
				ptr++
			}
			if p.cur().Kind != IDENT {
				p.errorf(p.cur().Off, "expected declarator name, found %q", p.cur().Text)
				panic(bailout{})
			}
			t := p.next()
			name = &Ident{NamePos: t.Off, Name: t.Text}
		}
		first = false

		dims := 0
		for p.atPunct("[") {
			p.skipBalanced("[", "]")
			dims++
		}
		var init Expr
		if p.accept(PUNCT, "=") {
			init = p.parseInitializer()
		}
		ty := spec.base
		ty.PtrDepth += ptr
		ty.ArrayDims += dims
		ds.Decls = append(ds.Decls, &VarDecl{
			Type:    ty,
			Name:    name,
			Init:    init,
			DeclPos: start,
		})
		if !p.accept(PUNCT, ",") {
			break
		}
	}
	semi := p.expectPunct(";")
	ds.Semi = semi.Off
	for _, d := range ds.Decls {
		d.SemiOff = semi.Off
	}
	if topLevel {
		p.tu.Decls = append(p.tu.Decls, ds)
	}
	return ds
}

func (p *parser) parseInitializer() Expr {
	if p.atPunct("{") {
		lb := p.next()
		il := &InitListExpr{Lbrace: lb.Off}
		for !p.atPunct("}") && p.cur().Kind != EOF {
			il.Elems = append(il.Elems, p.parseInitializer())
			if !p.accept(PUNCT, ",") {
				break
			}
		}
		rb := p.expectPunct("}")
		il.Rbrace = rb.Off
		return il
	}
	return p.parseAssignExpr()
}

// skipBalanced consumes from the current opening token through its match.
func (p *parser) skipBalanced(open, close string) {
	p.expectPunct(open)
	depth := 1
	for depth > 0 && p.cur().Kind != EOF {
		t := p.next()
		if t.Kind != PUNCT {
			continue
		}
		switch t.Text {
		case open:
			depth++
		case close:
			depth--
		}
	}
}

// ------------------------------------------------------------ statements --

func (p *parser) parseCompoundStmt() *CompoundStmt {
	lb := p.expectPunct("{")
	cs := &CompoundStmt{Lbrace: lb.Off}
	for !p.atPunct("}") && p.cur().Kind != EOF {
		cs.List = append(cs.List, p.parseStmtRecover())
	}
	rb := p.expectPunct("}")
	cs.Rbrace = rb.Off
	return cs
}

// parseStmtRecover wraps parseStmt with local resynchronization so one bad
// statement does not abandon the surrounding function.
func (p *parser) parseStmtRecover() (s Stmt) {
	mark := p.i
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			if p.i == mark {
				p.next()
			}
			p.resyncStmt()
			s = &EmptyStmt{Semi: p.toks[p.i-1].Off}
		}
	}()
	return p.parseStmt()
}

func (p *parser) resyncStmt() {
	depth := 0
	for {
		t := p.cur()
		if t.Kind == EOF {
			return
		}
		if t.Kind == PUNCT {
			switch t.Text {
			case "{", "(", "[":
				depth++
			case ")", "]":
				depth--
			case "}":
				if depth == 0 {
					return // let the enclosing block consume it
				}
				depth--
			case ";":
				if depth == 0 {
					p.next()
					return
				}
			}
		}
		p.next()
	}
}

func (p *parser) parseStmt() Stmt {
	t := p.cur()

	if t.Kind == PUNCT {
		switch t.Text {
		case "{":
			return p.parseCompoundStmt()
		case ";":
			return &EmptyStmt{Semi: p.next().Off}
		}
	}

	if t.Kind == KEYWORD {
		switch t.Text {
		case "if":
			return p.parseIfStmt()
		case "for":
			return p.parseForStmt()
		case "while":
			return p.parseWhileStmt()
		case "do":
			return p.parseDoStmt()
		case "switch":
			return p.parseSwitchStmt()
		case "return":
			kw := p.next()
			var res Expr
			if !p.atPunct(";") {
				res = p.parseExpr()
			}
			semi := p.expectPunct(";")
			return &ReturnStmt{ReturnPos: kw.Off, Result: res, Semi: semi.Off}
		case "break", "continue":
			kw := p.next()
			semi := p.expectPunct(";")
			return &BranchStmt{TokPos: kw.Off, Tok: kw.Text, Semi: semi.Off}
		case "goto":
			kw := p.next()
			label := ""
			if p.cur().Kind == IDENT {
				label = p.next().Text
			}
			semi := p.expectPunct(";")
			return &BranchStmt{TokPos: kw.Off, Tok: "goto", Label: label, Semi: semi.Off}
		case "case":
			kw := p.next()
			val := p.parseCondExpr()
			p.expectPunct(":")
			return &LabeledStmt{LabelPos: kw.Off, Name: "case", Value: val, Stmt: p.parseStmtRecover()}
		case "default":
			kw := p.next()
			p.expectPunct(":")
			return &LabeledStmt{LabelPos: kw.Off, Name: "default", Stmt: p.parseStmtRecover()}
		}
	}

	// Plain label: `name: stmt`.
	if t.Kind == IDENT && p.peek().Kind == PUNCT && p.peek().Text == ":" {
		name := p.next()
		p.next() // :
		return &LabeledStmt{LabelPos: name.Off, Name: name.Text, Stmt: p.parseStmtRecover()}
	}

	if p.isTypeStart() {
		return p.parseLocalDecl()
	}

	x := p.parseExpr()
	semi := p.expectPunct(";")
	return &ExprStmt{X: x, Semi: semi.Off}
}

func (p *parser) parseLocalDecl() Stmt {
	start := p.cur().Off
	spec := p.parseDeclSpecifiers()
	if spec.isTypedef {
		p.parseTypedefTail(start, spec)
		return &EmptyStmt{Semi: p.toks[p.i-1].Off}
	}
	if p.atPunct(";") {
		// Local struct definition with no declarators.
		semi := p.next()
		return &DeclStmt{Semi: semi.Off}
	}
	ptr, name := p.parsePointerAndName(spec)
	if name == nil {
		p.errorf(p.cur().Off, "expected declarator name, found %q", p.cur().Text)
		panic(bailout{})
	}
	return p.parseVarTail(start, spec, ptr, name, false)
}

func (p *parser) parseIfStmt() Stmt {
	kw := p.next()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	then := p.parseStmtRecover()
	st := &IfStmt{IfPos: kw.Off, Cond: cond, Then: then}
	if p.accept(KEYWORD, "else") {
		st.Else = p.parseStmtRecover()
	}
	return st
}

func (p *parser) parseForStmt() Stmt {
	kw := p.next()
	p.expectPunct("(")
	st := &ForStmt{ForPos: kw.Off}
	if !p.atPunct(";") {
		if p.isTypeStart() {
			st.Init = p.parseLocalDecl() // consumes its ';'
		} else {
			x := p.parseExpr()
			semi := p.expectPunct(";")
			st.Init = &ExprStmt{X: x, Semi: semi.Off}
		}
	} else {
		p.next()
	}
	if !p.atPunct(";") {
		st.Cond = p.parseExpr()
	}
	p.expectPunct(";")
	if !p.atPunct(")") {
		st.Post = p.parseExpr()
	}
	p.expectPunct(")")
	st.Body = p.parseStmtRecover()
	return st
}

func (p *parser) parseWhileStmt() Stmt {
	kw := p.next()
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	return &WhileStmt{WhilePos: kw.Off, Cond: cond, Body: p.parseStmtRecover()}
}

func (p *parser) parseDoStmt() Stmt {
	kw := p.next()
	body := p.parseStmtRecover()
	if !p.accept(KEYWORD, "while") {
		p.errorf(p.cur().Off, "expected %q after do body, found %q", "while", p.cur().Text)
		panic(bailout{})
	}
	p.expectPunct("(")
	cond := p.parseExpr()
	p.expectPunct(")")
	semi := p.expectPunct(";")
	return &DoStmt{DoPos: kw.Off, Body: body, Cond: cond, Semi: semi.Off}
}

func (p *parser) parseSwitchStmt() Stmt {
	kw := p.next()
	p.expectPunct("(")
	tag := p.parseExpr()
	p.expectPunct(")")
	return &SwitchStmt{SwitchPos: kw.Off, Tag: tag, Body: p.parseStmtRecover()}
}

// ----------------------------------------------------------- expressions --

// parseExpr parses a full expression including the comma operator.
func (p *parser) parseExpr() Expr {
	x := p.parseAssignExpr()
	for p.atPunct(",") {
		op := p.next()
		y := p.parseAssignExpr()
		x = &BinaryExpr{X: x, OpPos: op.Off, Op: ",", Y: y}
	}
	return x
}

var assignOps = map[string]bool{
	"=": true, "+=": true, "-=": true, "*=": true, "/=": true, "%=": true,
	"<<=": true, ">>=": true, "&=": true, "|=": true, "^=": true,
}

func (p *parser) parseAssignExpr() Expr {
	x := p.parseCondExpr()
	t := p.cur()
	if t.Kind == PUNCT && assignOps[t.Text] {
		p.next()
		rhs := p.parseAssignExpr()
		return &AssignExpr{Lhs: x, OpPos: t.Off, Op: t.Text, Rhs: rhs}
	}
	return x
}

func (p *parser) parseCondExpr() Expr {
	cond := p.parseBinaryExpr(1)
	if !p.atPunct("?") {
		return cond
	}
	p.next()
	then := p.parseExpr()
	p.expectPunct(":")
	els := p.parseAssignExpr()
	return &CondExpr{Cond: cond, Then: then, Else: els}
}

var binaryPrec = map[string]int{
	"||": 1, "&&": 2, "|": 3, "^": 4, "&": 5,
	"==": 6, "!=": 6,
	"<": 7, ">": 7, "<=": 7, ">=": 7,
	"<<": 8, ">>": 8,
	"+": 9, "-": 9,
	"*": 10, "/": 10, "%": 10,
}

func (p *parser) parseBinaryExpr(minPrec int) Expr {
	x := p.parseUnaryExpr()
	for {
		t := p.cur()
		prec, ok := 0, false
		if t.Kind == PUNCT {
			prec, ok = binaryPrec[t.Text], binaryPrec[t.Text] > 0
		}
		if !ok || prec < minPrec {
			return x
		}
		p.next()
		y := p.parseBinaryExpr(prec + 1)
		x = &BinaryExpr{X: x, OpPos: t.Off, Op: t.Text, Y: y}
	}
}

func (p *parser) parseUnaryExpr() Expr {
	t := p.cur()

	if t.Kind == PUNCT {
		switch t.Text {
		case "++", "--", "+", "-", "!", "~", "*", "&":
			p.next()
			x := p.parseUnaryExpr()
			return &UnaryExpr{OpPos: t.Off, Op: t.Text, X: x}
		case "(":
			if p.isCastAhead() {
				lp := p.next()
				typeText := p.spellBalancedType()
				x := p.parseUnaryExpr()
				return &CastExpr{Lparen: lp.Off, Type: typeText, X: x}
			}
		}
	}

	if t.Kind == KEYWORD && t.Text == "sizeof" {
		kw := p.next()
		if p.atPunct("(") && p.isTypeAfterParen() {
			p.next()
			typeText := p.spellBalancedType()
			return &SizeofExpr{KwPos: kw.Off, Type: typeText, EndOff: p.toks[p.i-1].End()}
		}
		x := p.parseUnaryExpr()
		return &SizeofExpr{KwPos: kw.Off, X: x, EndOff: x.End()}
	}

	return p.parsePostfixExpr()
}

// isCastAhead reports whether '(' begins a cast rather than a
// parenthesized expression.
func (p *parser) isCastAhead() bool {
	if !p.atPunct("(") {
		return false
	}
	return p.isTypeAfterParen()
}

func (p *parser) isTypeAfterParen() bool {
	n := p.peek()
	if n.Kind == KEYWORD {
		return typeWords[n.Text] || n.Text == "struct" || n.Text == "union" ||
			n.Text == "enum" || n.Text == "const" || n.Text == "volatile"
	}
	if n.Kind == IDENT {
		_, ok := p.tu.Typedefs[n.Text]
		return ok
	}
	return false
}

// spellBalancedType consumes tokens through the matching ')' (the opening
// '(' is already consumed) and returns their spelled text. Cast and sizeof
// type operands only need their spelling, not structure.
func (p *parser) spellBalancedType() string {
	var parts []string
	depth := 1
	for depth > 0 && p.cur().Kind != EOF {
		t := p.next()
		if t.Kind == PUNCT {
			switch t.Text {
			case "(":
				depth++
			case ")":
				depth--
				if depth == 0 {
					continue
				}
			}
		}
		parts = append(parts, t.Text)
	}
	return strings.Join(parts, " ")
}

func (p *parser) parsePostfixExpr() Expr {
	x := p.parsePrimaryExpr()
	for {
		t := p.cur()
		if t.Kind != PUNCT {
			return x
		}
		switch t.Text {
		case "(":
			lp := p.next()
			call := &CallExpr{Fun: x, Lparen: lp.Off}
			for !p.atPunct(")") && p.cur().Kind != EOF {
				call.Args = append(call.Args, p.parseAssignExpr())
				if !p.accept(PUNCT, ",") {
					break
				}
			}
			rp := p.expectPunct(")")
			call.Rparen = rp.Off
			x = call
		case "[":
			lb := p.next()
			idx := p.parseExpr()
			rb := p.expectPunct("]")
			x = &IndexExpr{X: x, Lbrack: lb.Off, Index: idx, Rbrack: rb.Off}
		case ".", "->":
			op := p.next()
			if p.cur().Kind != IDENT {
				p.errorf(p.cur().Off, "expected member name after %q", op.Text)
				panic(bailout{})
			}
			sel := p.next()
			x = &MemberExpr{
				X:     x,
				OpPos: op.Off,
				Arrow: op.Text == "->",
				Sel:   &Ident{NamePos: sel.Off, Name: sel.Text},
			}
		case "++", "--":
			op := p.next()
			x = &PostfixExpr{X: x, Op: op.Text, OpPos: op.Off}
		default:
			return x
		}
	}
}

func (p *parser) parsePrimaryExpr() Expr {
	t := p.cur()
	switch t.Kind {
	case IDENT:
		p.next()
		return &Ident{NamePos: t.Off, Name: t.Text}
	case NUMBER, CHAR:
		p.next()
		return &BasicLit{ValuePos: t.Off, Kind: t.Kind, Value: t.Text}
	case STRING:
		// Adjacent string literals concatenate; keep the first token's
		// offset and extend through the last.
		first := p.next()
		last := first
		for p.cur().Kind == STRING {
			last = p.next()
		}
		return &BasicLit{
			ValuePos: first.Off,
			Kind:     STRING,
			Value:    p.file.Text(first.Off, last.End()),
		}
	case PUNCT:
		if t.Text == "(" {
			lp := p.next()
			x := p.parseExpr()
			rp := p.expectPunct(")")
			return &ParenExpr{Lparen: lp.Off, X: x, Rparen: rp.Off}
		}
	}
	p.errorf(t.Off, "unexpected token %q in expression", t.Text)
	panic(bailout{})
}
