package parser_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatlang/flatc/internal/ast"
	"github.com/flatlang/flatc/internal/parser"
	"github.com/flatlang/flatc/internal/types"
)

func parseModule(t *testing.T, src string) *ast.Module {
	t.Helper()
	reg := types.NewRegistry(64)
	reg.RegisterBuiltin("i64", 64)
	mod, err := parser.New([]byte(src), reg).ParseModule()
	require.NoError(t, err)
	return mod
}

// parseReturnExpr parses `fn f() { return <exprSrc> }` and returns the
// Return statement's expression, the shortest path to an expression parse
// tree without involving any other grammar production.
func parseReturnExpr(t *testing.T, exprSrc string) ast.Expr {
	t.Helper()
	mod := parseModule(t, "fn f() { return "+exprSrc+" }")
	require.Len(t, mod.Decls, 1)
	body := mod.Decls[0].Body
	require.Len(t, body.Stmts, 1)
	ret, ok := body.Stmts[0].(*ast.Return)
	require.True(t, ok, "expected *ast.Return, got %T", body.Stmts[0])
	return ret.Expr
}

func asBinary(t *testing.T, e ast.Expr) *ast.Binary {
	t.Helper()
	b, ok := e.(*ast.Binary)
	require.True(t, ok, "expected *ast.Binary, got %T", e)
	return b
}

func asUnary(t *testing.T, e ast.Expr) *ast.Unary {
	t.Helper()
	u, ok := e.(*ast.Unary)
	require.True(t, ok, "expected *ast.Unary, got %T", e)
	return u
}

func requireIdent(t *testing.T, e ast.Expr, name string) {
	t.Helper()
	id, ok := e.(*ast.Identifier)
	require.True(t, ok, "expected *ast.Identifier, got %T", e)
	require.Equal(t, name, id.Text)
}

// precedenceLevel pairs one representative operator from each distinct
// precedence tier of the l3..l9 ladder (parser.go) with its tier number —
// lower rank binds tighter. Assignment (l10) is excluded: it is right-
// associative but not a commutative member of this ladder, and is covered
// by its own test below.
var precedenceLevels = []struct {
	op   string
	rank int
}{
	{"*", 3},
	{"+", 4},
	{"<<", 5},
	{"|", 6},
	{"==", 7},
	{"&&", 8},
	{"||", 9},
}

// TestParsePrecedenceClimbing is spec §8 property 2, table-driven over
// every (a,b) operator pair with precedence(a) > precedence(b): `x b y a z`
// must parse as `x b (y a z)`, i.e. the tighter operator a binds its
// operands before the looser operator b does.
func TestParsePrecedenceClimbing(t *testing.T) {
	for _, a := range precedenceLevels {
		for _, b := range precedenceLevels {
			if a.rank >= b.rank {
				continue
			}
			a, b := a, b
			t.Run(fmt.Sprintf("%s_tighter_than_%s", a.op, b.op), func(t *testing.T) {
				expr := parseReturnExpr(t, fmt.Sprintf("x %s y %s z", b.op, a.op))

				outer := asBinary(t, expr)
				require.Equal(t, b.op, outer.Op)
				requireIdent(t, outer.LHS, "x")

				inner := asBinary(t, outer.RHS)
				require.Equal(t, a.op, inner.Op)
				requireIdent(t, inner.LHS, "y")
				requireIdent(t, inner.RHS, "z")
			})
		}
	}
}

func TestParseAssignmentIsRightAssociative(t *testing.T) {
	expr := parseReturnExpr(t, "x = y = z")
	outer := asBinary(t, expr)
	require.Equal(t, "=", outer.Op)
	requireIdent(t, outer.LHS, "x")

	inner := asBinary(t, outer.RHS)
	require.Equal(t, "=", inner.Op)
	requireIdent(t, inner.LHS, "y")
	requireIdent(t, inner.RHS, "z")
}

func TestParseUnaryBindsTighterThanMultiplicative(t *testing.T) {
	expr := parseReturnExpr(t, "-x * y")
	outer := asBinary(t, expr)
	require.Equal(t, "*", outer.Op)
	requireIdent(t, outer.RHS, "y")

	neg := asUnary(t, outer.LHS)
	require.Equal(t, "-", neg.Op)
	requireIdent(t, neg.Operand, "x")
}

func TestParseCallAndIndexPostfixChain(t *testing.T) {
	expr := parseReturnExpr(t, "f(x)[y]")
	idx, ok := expr.(*ast.Index)
	require.True(t, ok, "expected *ast.Index, got %T", expr)
	require.Len(t, idx.Args, 1)
	requireIdent(t, idx.Args[0], "y")

	call, ok := idx.Value.(*ast.Call)
	require.True(t, ok, "expected *ast.Call, got %T", idx.Value)
	requireIdent(t, call.Callee, "f")
	require.Len(t, call.Args, 1)
	requireIdent(t, call.Args[0], "x")
}

func TestParseStructDeclAndFunctionCanAppearInAnyOrder(t *testing.T) {
	mod := parseModule(t, `
fn area(p: Point): i64 {
    return p
}

struct Point {
    x: i64,
    y: i64
}
`)
	require.Len(t, mod.Structs, 1)
	require.Equal(t, "Point", mod.Structs[0].Name)
	require.Len(t, mod.Structs[0].Members, 2)
	require.Equal(t, "x", mod.Structs[0].Members[0].Name)
	require.Equal(t, "y", mod.Structs[0].Members[1].Name)

	require.Len(t, mod.Decls, 1)
	require.Equal(t, "area", mod.Decls[0].Name)
}

func TestParseExternDecl(t *testing.T) {
	mod := parseModule(t, `extern "C" from "kernel32.h" fn ExitProcess(code: i64): i64;`)
	require.Len(t, mod.Decls, 1)
	decl := mod.Decls[0]
	require.True(t, decl.IsExtern())
	require.Equal(t, "ExitProcess", decl.Name)
	require.Equal(t, "kernel32.h", decl.HeaderPath)
	require.Len(t, decl.Params, 1)
	require.Equal(t, "code", decl.Params[0].Name)
	require.Nil(t, decl.Body)
}

func TestParseIfElseAndWhile(t *testing.T) {
	mod := parseModule(t, `
fn f(): i64 {
    let x = 1
    while (x) {
        x = x
    }
    if (x) {
        return x
    } else {
        return x
    }
}
`)
	body := mod.Decls[0].Body
	require.Len(t, body.Stmts, 3)

	_, ok := body.Stmts[1].(*ast.While)
	require.True(t, ok, "expected *ast.While, got %T", body.Stmts[1])

	ifStmt, ok := body.Stmts[2].(*ast.If)
	require.True(t, ok, "expected *ast.If, got %T", body.Stmts[2])
	require.NotNil(t, ifStmt.Else)
}
