// Package parser implements the recursive-descent precedence-climbing
// parser described in spec §4.2. It owns no state beyond the lexer.
package parser

import (
	"github.com/flatlang/flatc/internal/ast"
	"github.com/flatlang/flatc/internal/diag"
	"github.com/flatlang/flatc/internal/token"
	"github.com/flatlang/flatc/internal/types"
)

// Parser turns a token stream into a Module. It carries the type registry
// so type annotations can be interned (as Named/Pointer/Array) while
// parsing, without a second pass over parameter/result type syntax.
type Parser struct {
	lx  *token.Lexer
	reg *types.Registry
}

// New creates a Parser over src, using reg to intern type names it
// encounters in parameter and result type positions.
func New(src []byte, reg *types.Registry) *Parser {
	return &Parser{lx: token.New(src), reg: reg}
}

// ParseModule parses a sequence of top-level struct and function
// declarations until EOF. Struct declarations may appear in any order
// relative to functions; the semantic pass collects them all before
// analyzing any body (SPEC_FULL §12).
func (p *Parser) ParseModule() (mod *ast.Module, err error) {
	defer diag.Recover(&err)
	mod = &ast.Module{}
	for p.lx.Peek() != token.EOF {
		if p.lx.Peek() == token.Struct {
			mod.Structs = append(mod.Structs, p.parseStructDecl())
			continue
		}
		if p.lx.Peek() == token.Extern {
			mod.Decls = append(mod.Decls, p.parseExternDecl())
			continue
		}
		mod.Decls = append(mod.Decls, p.parseFunctionDecl())
	}
	return mod, nil
}

func (p *Parser) parseStructDecl() *ast.StructDecl {
	begin := p.pos()
	p.lx.Expect(token.Struct)
	p.lx.Expect(token.Identifier)
	name := p.lx.Identifier()

	p.lx.Expect(token.LBrace)
	var members []ast.Param
	if p.lx.Peek() != token.RBrace {
		members = append(members, p.parseParam())
		for p.lx.Match(token.Comma) {
			members = append(members, p.parseParam())
		}
	}
	p.lx.Expect(token.RBrace)

	return &ast.StructDecl{Range: rng(begin, p.lx.Pos()), Name: name, Members: members}
}

func (p *Parser) pos() int { return p.lx.PeekToken().Pos }

func rng(begin, end int) ast.Range { return ast.Range{Begin: begin, End: end} }

// --- Top level ---

func (p *Parser) parseFunctionDecl() *ast.FunctionDecl {
	begin := p.pos()
	name, params, resultType := p.parseSignature()
	body := p.parseBlock()

	return &ast.FunctionDecl{
		Range:      rng(begin, body.Span().End),
		Name:       name,
		ResultType: resultType,
		Params:     params,
		Body:       body,
	}
}

// parseExternDecl parses `extern "C" from "path.h" fn name(params): type;` —
// the C-interop extension (SPEC_FULL §11) that declares a function whose
// body lives in an externally imported DLL rather than in source. The
// linkage string ("C") is consumed but not otherwise checked; this
// compiler only ever targets C linkage imports.
func (p *Parser) parseExternDecl() *ast.FunctionDecl {
	begin := p.pos()
	p.lx.Expect(token.Extern)
	p.lx.Expect(token.String)
	p.lx.Expect(token.From)
	p.lx.Expect(token.String)
	headerPath := p.lx.StringLiteral()

	name, params, resultType := p.parseSignature()
	p.lx.Expect(token.Semi)

	return &ast.FunctionDecl{
		Range:      rng(begin, p.lx.Pos()),
		Name:       name,
		ResultType: resultType,
		Params:     params,
		HeaderPath: headerPath,
	}
}

// parseSignature parses the `name "(" params ")" [":" type]` shared by a
// regular and an extern function declaration, stopping just before the
// body (a Block) or terminating ";".
func (p *Parser) parseSignature() (string, []ast.Param, types.Type) {
	p.lx.Expect(token.Fn)
	p.lx.Expect(token.Identifier)
	name := p.lx.Identifier()

	p.lx.Expect(token.LParen)
	var params []ast.Param
	if p.lx.Peek() != token.RParen {
		params = append(params, p.parseParam())
		for p.lx.Match(token.Comma) {
			params = append(params, p.parseParam())
		}
	}
	p.lx.Expect(token.RParen)

	resultType := types.Type(p.reg.NamedType("void"))
	if p.lx.Match(token.Colon) {
		resultType = p.parseTypeName()
	}
	return name, params, resultType
}

func (p *Parser) parseParam() ast.Param {
	p.lx.Expect(token.Identifier)
	name := p.lx.Identifier()
	p.lx.Expect(token.Colon)
	typ := p.parseTypeName()
	return ast.Param{Name: name, Type: typ}
}

// parseTypeName parses an identifier optionally followed by a postfix
// chain of `*` (pointer) and `[]` (array), left-associative: `T*[]` is an
// array of pointers to T.
func (p *Parser) parseTypeName() types.Type {
	p.lx.Expect(token.Identifier)
	t := types.Type(p.reg.NamedType(p.lx.Identifier()))
	for {
		if p.lx.Match(token.Star) {
			t = p.reg.PointerOf(t)
			continue
		}
		if p.lx.Match(token.LBracket) {
			p.lx.Expect(token.RBracket)
			t = p.reg.ArrayOf(t)
			continue
		}
		break
	}
	return t
}

// --- Statements ---

func (p *Parser) parseBlock() *ast.Block {
	begin := p.pos()
	p.lx.Expect(token.LBrace)
	var stmts []ast.Stmt
	for p.lx.Peek() != token.RBrace {
		stmts = append(stmts, p.parseStmt())
	}
	p.lx.Expect(token.RBrace)
	return &ast.Block{Range: rng(begin, p.lx.Pos()), Stmts: stmts}
}

func (p *Parser) parseStmt() ast.Stmt {
	switch p.lx.Peek() {
	case token.LBrace:
		return p.parseBlock()
	case token.Let:
		return p.parseVarDecl()
	case token.Return:
		return p.parseReturn()
	case token.While:
		return p.parseWhile()
	case token.If:
		return p.parseIf()
	default:
		return p.parseExprStmt()
	}
}

func (p *Parser) parseVarDecl() *ast.Var {
	begin := p.pos()
	p.lx.Expect(token.Let)
	v := &ast.Var{}
	name, init := p.parseVarBinding()
	v.Names = append(v.Names, name)
	v.Inits = append(v.Inits, init)
	for p.lx.Match(token.Comma) {
		name, init := p.parseVarBinding()
		v.Names = append(v.Names, name)
		v.Inits = append(v.Inits, init)
	}
	v.Range = rng(begin, p.lx.Pos())
	return v
}

func (p *Parser) parseVarBinding() (string, ast.Expr) {
	p.lx.Expect(token.Identifier)
	name := p.lx.Identifier()
	p.lx.Expect(token.Assign)
	init := p.parseExpr()
	return name, init
}

func (p *Parser) parseReturn() *ast.Return {
	begin := p.pos()
	p.lx.Expect(token.Return)
	expr := p.parseExpr()
	return &ast.Return{Range: rng(begin, p.lx.Pos()), Expr: expr}
}

func (p *Parser) parseWhile() *ast.While {
	begin := p.pos()
	p.lx.Expect(token.While)
	p.lx.Expect(token.LParen)
	cond := p.parseExpr()
	p.lx.Expect(token.RParen)
	body := p.parseStmt()
	return &ast.While{Range: rng(begin, body.Span().End), Cond: cond, Body: body}
}

func (p *Parser) parseIf() *ast.If {
	begin := p.pos()
	p.lx.Expect(token.If)
	p.lx.Expect(token.LParen)
	cond := p.parseExpr()
	p.lx.Expect(token.RParen)
	then := p.parseStmt()
	end := then.Span().End
	var elseStmt ast.Stmt
	if p.lx.Match(token.Else) {
		elseStmt = p.parseStmt()
		end = elseStmt.Span().End
	}
	return &ast.If{Range: rng(begin, end), Cond: cond, Then: then, Else: elseStmt}
}

func (p *Parser) parseExprStmt() *ast.ExprStmt {
	begin := p.pos()
	e := p.parseExpr()
	return &ast.ExprStmt{Range: rng(begin, e.Span().End), Expr: e}
}

// --- Expressions: precedence ladder l10 (loosest) down to l0 (tightest) ---

func (p *Parser) parseExpr() ast.Expr { return p.parseL10() }

// l10: assignment, right-associative.
func (p *Parser) parseL10() ast.Expr {
	lhs := p.parseL9()
	if p.lx.Match(token.Assign) {
		rhs := p.parseL10()
		return &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: "=", LHS: lhs, RHS: rhs}
	}
	return lhs
}

// l9: ||, left-associative.
func (p *Parser) parseL9() ast.Expr {
	lhs := p.parseL8()
	for p.lx.Match(token.OrOr) {
		rhs := p.parseL8()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: "||", LHS: lhs, RHS: rhs}
	}
	return lhs
}

// l8: &&, left-associative.
func (p *Parser) parseL8() ast.Expr {
	lhs := p.parseL7()
	for p.lx.Match(token.AndAnd) {
		rhs := p.parseL7()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: "&&", LHS: lhs, RHS: rhs}
	}
	return lhs
}

// l7: == != < > <= >=, left-associative.
func (p *Parser) parseL7() ast.Expr {
	lhs := p.parseL6()
	for {
		op, ok := p.matchOneOf(token.EqEq, token.NotEq, token.Lt, token.Gt, token.LtEq, token.GtEq)
		if !ok {
			return lhs
		}
		rhs := p.parseL6()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: op, LHS: lhs, RHS: rhs}
	}
}

// l6: & | ^, left-associative.
func (p *Parser) parseL6() ast.Expr {
	lhs := p.parseL5()
	for {
		op, ok := p.matchOneOf(token.Amp, token.Pipe, token.Caret)
		if !ok {
			return lhs
		}
		rhs := p.parseL5()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: op, LHS: lhs, RHS: rhs}
	}
}

// l5: << >>, left-associative.
func (p *Parser) parseL5() ast.Expr {
	lhs := p.parseL4()
	for {
		op, ok := p.matchOneOf(token.Shl, token.Shr)
		if !ok {
			return lhs
		}
		rhs := p.parseL4()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: op, LHS: lhs, RHS: rhs}
	}
}

// l4: + -, left-associative.
func (p *Parser) parseL4() ast.Expr {
	lhs := p.parseL3()
	for {
		op, ok := p.matchOneOf(token.Plus, token.Minus)
		if !ok {
			return lhs
		}
		rhs := p.parseL3()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: op, LHS: lhs, RHS: rhs}
	}
}

// l3: * / %, left-associative.
func (p *Parser) parseL3() ast.Expr {
	lhs := p.parseL2()
	for {
		op, ok := p.matchOneOf(token.Star, token.Slash, token.Percent)
		if !ok {
			return lhs
		}
		rhs := p.parseL2()
		lhs = &ast.Binary{Range: rng(lhs.Span().Begin, rhs.Span().End), Op: op, LHS: lhs, RHS: rhs}
	}
}

// l2: unary + - ! ~, right-associative (prefix).
func (p *Parser) parseL2() ast.Expr {
	begin := p.pos()
	op, ok := p.matchOneOf(token.Plus, token.Minus, token.Not, token.BNot)
	if !ok {
		return p.parseL1()
	}
	operand := p.parseL2()
	return &ast.Unary{Range: rng(begin, operand.Span().End), Op: op, Operand: operand}
}

// l1: postfix call f(...) and index e[...], left-associative.
func (p *Parser) parseL1() ast.Expr {
	e := p.parseL0()
	for {
		if p.lx.Match(token.LParen) {
			var args []ast.Expr
			if p.lx.Peek() != token.RParen {
				args = append(args, p.parseExpr())
				for p.lx.Match(token.Comma) {
					args = append(args, p.parseExpr())
				}
			}
			p.lx.Expect(token.RParen)
			e = &ast.Call{Range: rng(e.Span().Begin, p.lx.Pos()), Callee: e, Args: args}
			continue
		}
		if p.lx.Match(token.LBracket) {
			var args []ast.Expr
			if p.lx.Peek() != token.RBracket {
				args = append(args, p.parseExpr())
				for p.lx.Match(token.Comma) {
					args = append(args, p.parseExpr())
				}
			}
			p.lx.Expect(token.RBracket)
			e = &ast.Index{Range: rng(e.Span().Begin, p.lx.Pos()), Value: e, Args: args}
			continue
		}
		return e
	}
}

// l0: parenthesized expression, integer literal, identifier.
func (p *Parser) parseL0() ast.Expr {
	begin := p.pos()
	switch p.lx.Peek() {
	case token.LParen:
		p.lx.Expect(token.LParen)
		e := p.parseExpr()
		p.lx.Expect(token.RParen)
		return e
	case token.Integer:
		p.lx.Expect(token.Integer)
		text := p.lx.Integer()
		return &ast.Integer{Range: rng(begin, p.lx.Pos()), Text: text}
	case token.Identifier:
		p.lx.Expect(token.Identifier)
		text := p.lx.Identifier()
		return &ast.Identifier{Range: rng(begin, p.lx.Pos()), Text: text}
	default:
		tok := p.lx.PeekToken()
		line, col := p.lx.LineCol(tok.Pos)
		diag.Fatal(diag.New(diag.Syntactic, line, col, tok.String(), "Unexpected Token %s, expected expression", tok.String()))
		return nil
	}
}

func (p *Parser) matchOneOf(kinds ...token.Kind) (string, bool) {
	for _, k := range kinds {
		if p.lx.Match(k) {
			return token.Name(k), true
		}
	}
	return "", false
}
