package cc

// The lexer scans the whole buffer up front and hands the parser a token
// slice. Preprocessor lines are consumed as units (honoring backslash
// continuations) and reported through the Directives collector; comments
// and whitespace are dropped. The lexer never fails: bytes it cannot
// classify are skipped, matching the engine's best-effort posture.

import "strings"

// Include is one top-level #include directive of the main file.
type Include struct {
	Name   string // header name without quotes or angle brackets
	System bool   // true for <...> form
	Off    int    // offset of the '#' character
}

// Directives is what the scan of preprocessor lines produces: the ordered
// include list (consulted by codegen to suppress duplicate #includes) and
// the offset just past the last top-level #include/#define line, which is
// where the emitted runtime is placed.
type Directives struct {
	Includes []string
	Detail   []Include
	// LastEnd is the byte offset immediately after the newline of the last
	// #include or #define line, or 0 when the file has none.
	LastEnd int
}

// Has reports whether name was #included at top level.
func (d *Directives) Has(name string) bool {
	for _, inc := range d.Includes {
		if inc == name {
			return true
		}
	}
	return false
}

// Lex tokenizes f and collects its preprocessor directives.
func Lex(f *File) ([]Token, *Directives) {
	src := f.Src
	toks := make([]Token, 0, len(src)/6)
	dirs := &Directives{}

	i := 0
	atLineStart := true
	for i < len(src) {
		c := src[i]

		switch {
		case c == ' ' || c == '\t' || c == '\r':
			i++ // whitespace keeps the line-start state for '#' detection
			continue
		case c == '\n':
			i++
			atLineStart = true
			continue

		case c == '/' && i+1 < len(src) && src[i+1] == '/':
			for i < len(src) && src[i] != '\n' {
				i++
			}

		case c == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i+1 < len(src) && !(src[i] == '*' && src[i+1] == '/') {
				i++
			}
			i += 2
			if i > len(src) {
				i = len(src)
			}

		case c == '#' && atLineStart:
			start := i
			end := directiveEnd(src, i)
			recordDirective(dirs, string(src[start:end]), start, end)
			i = end
			atLineStart = true
			continue

		case isIdentStart(c):
			start := i
			for i < len(src) && isIdentPart(src[i]) {
				i++
			}
			text := string(src[start:i])
			k := IDENT
			if keywords[text] {
				k = KEYWORD
			}
			toks = append(toks, Token{Kind: k, Text: text, Off: start})

		case c >= '0' && c <= '9', c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			start := i
			i = scanNumber(src, i)
			toks = append(toks, Token{Kind: NUMBER, Text: string(src[start:i]), Off: start})

		case c == '"':
			start := i
			i = scanQuoted(src, i, '"')
			toks = append(toks, Token{Kind: STRING, Text: string(src[start:i]), Off: start})

		case c == '\'':
			start := i
			i = scanQuoted(src, i, '\'')
			toks = append(toks, Token{Kind: CHAR, Text: string(src[start:i]), Off: start})

		default:
			if p := scanPunct(src, i); p != "" {
				toks = append(toks, Token{Kind: PUNCT, Text: p, Off: i})
				i += len(p)
			} else {
				i++ // unclassifiable byte: skip
			}
		}
		atLineStart = false
	}

	toks = append(toks, Token{Kind: EOF, Off: len(src)})
	return toks, dirs
}

// directiveEnd returns the offset just past a preprocessor line starting at
// off, folding backslash-continued lines into one directive.
func directiveEnd(src []byte, off int) int {
	i := off
	for i < len(src) {
		if src[i] == '\n' {
			// A backslash (optionally followed by \r) continues the line.
			j := i - 1
			for j > off && src[j] == '\r' {
				j--
			}
			if j >= off && src[j] == '\\' {
				i++
				continue
			}
			return i + 1
		}
		i++
	}
	return len(src)
}

func recordDirective(dirs *Directives, line string, start, end int) {
	trimmed := strings.TrimSpace(line)
	isInclude := strings.HasPrefix(trimmed, "#include")
	isDefine := strings.HasPrefix(trimmed, "#define")
	if !isInclude && !isDefine {
		return
	}
	dirs.LastEnd = end
	if !isInclude {
		return
	}
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "#include"))
	var name string
	var system bool
	switch {
	case strings.HasPrefix(rest, "<"):
		if k := strings.IndexByte(rest, '>'); k > 0 {
			name = rest[1:k]
			system = true
		}
	case strings.HasPrefix(rest, `"`):
		if k := strings.IndexByte(rest[1:], '"'); k >= 0 {
			name = rest[1 : 1+k]
		}
	}
	if name == "" {
		return
	}
	dirs.Includes = append(dirs.Includes, name)
	dirs.Detail = append(dirs.Detail, Include{Name: name, System: system, Off: start})
}

func isIdentStart(c byte) bool {
	return c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isIdentPart(c byte) bool {
	return isIdentStart(c) || (c >= '0' && c <= '9')
}

// scanNumber accepts integer and floating constants, including hex and the
// usual suffixes. Exponent signs are folded in so 1e-5 lexes as one token.
func scanNumber(src []byte, i int) int {
	for i < len(src) {
		c := src[i]
		switch {
		case c >= '0' && c <= '9', c >= 'a' && c <= 'f', c >= 'A' && c <= 'F',
			c == 'x', c == 'X', c == 'u', c == 'U', c == 'l', c == 'L':
			i++
		case c == '.' && i+1 < len(src) && src[i+1] >= '0' && src[i+1] <= '9':
			// A dot joins the constant only ahead of a digit; `a[1].y` must
			// lex the dot as a member-access punctuator.
			i++
		case (c == '+' || c == '-') && (src[i-1] == 'e' || src[i-1] == 'E' || src[i-1] == 'p' || src[i-1] == 'P'):
			i++
		default:
			return i
		}
	}
	return i
}

// scanQuoted scans a string or character literal starting at the opening
// quote, handling escapes. Unterminated literals run to end of line.
func scanQuoted(src []byte, i int, quote byte) int {
	i++ // opening quote
	for i < len(src) {
		switch src[i] {
		case '\\':
			i += 2
		case quote:
			return i + 1
		case '\n':
			return i // unterminated; do not swallow the rest of the file
		default:
			i++
		}
	}
	return len(src)
}

// puncts is ordered longest-first so maximal munch works by first match.
var puncts = []string{
	"<<=", ">>=", "...",
	"->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=",
	"{", "}", "(", ")", "[", "]", ";", ",", ".", "?", ":",
	"+", "-", "*", "/", "%", "&", "|", "^", "~", "!", "<", ">", "=",
}

func scanPunct(src []byte, i int) string {
	for _, p := range puncts {
		if i+len(p) <= len(src) && string(src[i:i+len(p)]) == p {
			return p
		}
	}
	return ""
}
