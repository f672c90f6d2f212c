package token

import (
	"github.com/flatlang/flatc/internal/diag"
)

// Lexer classifies bytes of a single source buffer into Tokens. It is
// stateless beyond the current byte offset: Match/Expect save and restore
// that offset, giving the parser single-token lookahead without a
// pre-tokenized stream.
type Lexer struct {
	src []byte
	pos int

	// lastInteger/lastIdentifier/lastString hold the lexeme most recently
	// matched against Integer/Identifier/String, for Integer()/Identifier()/
	// StringLiteral() to read back.
	lastInteger    string
	lastIdentifier string
	lastString     string
}

// New creates a Lexer over src.
func New(src []byte) *Lexer {
	return &Lexer{src: src}
}

// Pos returns the current byte offset, for callers that need to capture an
// AST node's [begin, end) range.
func (l *Lexer) Pos() int { return l.pos }

func (l *Lexer) atEnd(pos int) bool { return pos >= len(l.src) }

func (l *Lexer) at(pos int) byte {
	if l.atEnd(pos) {
		return 0
	}
	return l.src[pos]
}

func isSpace(b byte) bool { return b == ' ' || b == '\t' || b == '\r' || b == '\n' }
func isDigit(b byte) bool { return b >= '0' && b <= '9' }
func isAlpha(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || b == '_'
}
func isAlnum(b byte) bool { return isAlpha(b) || isDigit(b) }

func (l *Lexer) skipWhitespace(pos int) int {
	for !l.atEnd(pos) && isSpace(l.src[pos]) {
		pos++
	}
	return pos
}

// LineCol computes the 1-based line and column of a byte offset by
// rescanning the input from the start, per the source language's
// diagnostic contract: positions are never tracked incrementally, only
// recovered on demand for error reporting.
func (l *Lexer) LineCol(pos int) (line, col int) { return LineCol(l.src, pos) }

// LineCol computes the 1-based line and column of a byte offset within src
// by rescanning from the start. Exported so every later pass (semantic,
// code emission) that reports diagnostics against the original source
// buffer can compute positions the same way the lexer does, without each
// holding its own copy of this scan.
func LineCol(src []byte, pos int) (line, col int) {
	line, col = 1, 1
	limit := pos
	if limit > len(src) {
		limit = len(src)
	}
	for i := 0; i < limit; i++ {
		if src[i] == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return line, col
}

// classify attempts to scan exactly one token starting at pos (which must
// already be past whitespace). It returns the token and the position just
// past it.
func (l *Lexer) classify(pos int) (Token, int) {
	if l.atEnd(pos) {
		return Token{Kind: EOF, Pos: pos}, pos
	}

	start := pos
	ch := l.src[pos]

	// (1) longest-match over the fixed operator/punctuation table.
	if op, opEnd, ok := l.matchOperator(pos); ok {
		return Token{Kind: op, Text: Name(op), Pos: start}, opEnd
	}

	// (2) double-quoted strings — only reachable from the extern-import
	// declaration prefix; escapes recognized: \" and \\.
	if ch == '"' {
		end := pos + 1
		var text []byte
		for !l.atEnd(end) && l.src[end] != '"' {
			if l.src[end] == '\\' && !l.atEnd(end+1) && (l.src[end+1] == '"' || l.src[end+1] == '\\') {
				text = append(text, l.src[end+1])
				end += 2
				continue
			}
			text = append(text, l.src[end])
			end++
		}
		if l.atEnd(end) {
			line, col := l.LineCol(start)
			diag.Fatal(diag.New(diag.Lexical, line, col, "", "Unterminated string literal"))
		}
		end++ // closing quote
		return Token{Kind: String, Text: string(text), Pos: start}, end
	}

	// (3) digit runs.
	if isDigit(ch) {
		end := pos
		for !l.atEnd(end) && isDigit(l.src[end]) {
			end++
		}
		return Token{Kind: Integer, Text: string(l.src[start:end]), Pos: start}, end
	}

	// (4) identifier runs, keyword or plain identifier.
	if isAlpha(ch) {
		end := pos
		for !l.atEnd(end) && isAlnum(l.src[end]) {
			end++
		}
		text := string(l.src[start:end])
		if kw, ok := Lookup(text); ok {
			return Token{Kind: kw, Text: text, Pos: start}, end
		}
		return Token{Kind: Identifier, Text: text, Pos: start}, end
	}

	return Token{}, start // classification failure; caller reports Invalid Token
}

// matchOperator performs the longest-match scan over the operator table.
func (l *Lexer) matchOperator(pos int) (Kind, int, bool) {
	best := -1
	bestLen := 0
	for _, op := range Operators() {
		n := len(op.Text)
		if pos+n > len(l.src) {
			continue
		}
		if string(l.src[pos:pos+n]) == op.Text && n > bestLen {
			best = int(op.Kind)
			bestLen = n
		}
	}
	if best < 0 {
		return 0, pos, false
	}
	return Kind(best), pos + bestLen, true
}

// peekToken skips whitespace and classifies the next token without
// consuming it from the Lexer's own state.
func (l *Lexer) peekToken() (Token, int, bool) {
	skipped := l.skipWhitespace(l.pos)
	if l.atEnd(skipped) {
		return Token{Kind: EOF, Pos: skipped}, skipped, true
	}
	tok, end := l.classify(skipped)
	if end == skipped && tok.Kind != EOF {
		// classify returned nothing consumed on a non-space, non-EOF byte.
		return Token{}, skipped, false
	}
	return tok, end, true
}

// Match attempts to consume a token of the given kind. On success it
// advances the lexer's position past the token and returns true; on
// failure it leaves the position untouched (restored) and returns false.
// Seeing EOF while matching anything but EOF is a fatal lexical error.
func (l *Lexer) Match(expected Kind) bool {
	saved := l.pos
	tok, end, ok := l.peekToken()
	if !ok {
		line, col := l.LineCol(saved)
		diag.Fatal(diag.New(diag.Lexical, line, col, "", "Invalid Token %q", string(l.at(l.skipWhitespace(saved)))))
	}
	if tok.Kind == EOF && expected != EOF {
		line, col := l.LineCol(tok.Pos)
		diag.Fatal(diag.New(diag.Lexical, line, col, "", "Unexpected end of file"))
	}
	if tok.Kind != expected {
		l.pos = saved
		return false
	}
	l.pos = end
	if tok.Kind == Integer {
		l.lastInteger = tok.Text
	}
	if tok.Kind == Identifier {
		l.lastIdentifier = tok.Text
	}
	if tok.Kind == String {
		l.lastString = tok.Text
	}
	return true
}

// Expect behaves like Match but raises a fatal diagnostic on mismatch
// instead of returning false.
func (l *Lexer) Expect(expected Kind) {
	saved := l.pos
	tok, end, ok := l.peekToken()
	if !ok {
		line, col := l.LineCol(saved)
		diag.Fatal(diag.New(diag.Lexical, line, col, "", "Invalid Token %q", string(l.at(l.skipWhitespace(saved)))))
	}
	if tok.Kind == EOF && expected != EOF {
		line, col := l.LineCol(tok.Pos)
		diag.Fatal(diag.New(diag.Syntactic, line, col, "", "Unexpected Token EOF, expected %s", Name(expected)))
	}
	if tok.Kind != expected {
		line, col := l.LineCol(tok.Pos)
		diag.Fatal(diag.New(diag.Syntactic, line, col, "", "Unexpected Token %s, expected %s", tok.String(), Name(expected)))
	}
	l.pos = end
	if tok.Kind == Integer {
		l.lastInteger = tok.Text
	}
	if tok.Kind == Identifier {
		l.lastIdentifier = tok.Text
	}
	if tok.Kind == String {
		l.lastString = tok.Text
	}
}

// Peek reports the kind of the next token without consuming it.
func (l *Lexer) Peek() Kind {
	tok, _, ok := l.peekToken()
	if !ok {
		line, col := l.LineCol(l.pos)
		diag.Fatal(diag.New(diag.Lexical, line, col, "", "Invalid Token %q", string(l.at(l.skipWhitespace(l.pos)))))
	}
	return tok.Kind
}

// PeekToken reports the full next token (kind, text, position) without
// consuming it — used by the parser to capture source ranges and literal
// text ahead of a Match/Expect.
func (l *Lexer) PeekToken() Token {
	tok, _, ok := l.peekToken()
	if !ok {
		line, col := l.LineCol(l.pos)
		diag.Fatal(diag.New(diag.Lexical, line, col, "", "Invalid Token %q", string(l.at(l.skipWhitespace(l.pos)))))
	}
	return tok
}

// Integer returns the lexeme of the most recently matched Integer token.
func (l *Lexer) Integer() string { return l.lastInteger }

// Identifier returns the lexeme of the most recently matched Identifier
// token.
func (l *Lexer) Identifier() string { return l.lastIdentifier }

// StringLiteral returns the unescaped text of the most recently matched
// String token.
func (l *Lexer) StringLiteral() string { return l.lastString }
