// Package ast defines the closed family of AST node variants produced by
// the parser. Every node carries the [Begin, End) byte range of the source
// it was parsed from, for diagnostics and source-slice quoting.
package ast

import "github.com/flatlang/flatc/internal/types"

// Range is the [begin, end) byte span of a node within the source buffer.
// It is embedded (by value, exported) into every node so callers outside
// this package can construct nodes with a keyed composite literal.
type Range struct {
	Begin, End int
}

// Span satisfies both Expr and Stmt's position accessor.
func (r Range) Span() Range { return r }

// typedExpr carries the type slot every expression node shares. It is
// unexported deliberately: only the semantic pass (via the exported
// ResolvedType/SetResolvedType methods) ever touches it, never the parser.
type typedExpr struct {
	typ types.Type
}

func (t typedExpr) ResolvedType() types.Type       { return t.typ }
func (t *typedExpr) SetResolvedType(ty types.Type) { t.typ = ty }
func (typedExpr) exprNode()                        {}

type stmtTag struct{}

func (stmtTag) stmtNode() {}

// Expr is the interface satisfied by every expression node kind.
type Expr interface {
	exprNode()
	Span() Range
	// ResolvedType is filled in by the semantic pass; nil before that.
	ResolvedType() types.Type
	SetResolvedType(types.Type)
}

// Stmt is the interface satisfied by every statement node kind, including
// expression-statements.
type Stmt interface {
	stmtNode()
	Span() Range
}

// --- Expressions ---

// Integer is an integer literal, `Integer(text)`.
type Integer struct {
	Range
	typedExpr
	Text string
}

// Identifier is a name reference, `Identifier(text)`.
type Identifier struct {
	Range
	typedExpr
	Text string
}

// Unary is a prefix unary operator applied to one operand.
type Unary struct {
	Range
	typedExpr
	Op      string // canonical operator spelling, e.g. "-", "!", "~", "+"
	Operand Expr
}

// Binary is an infix binary operator applied to two operands.
type Binary struct {
	Range
	typedExpr
	Op  string
	LHS Expr
	RHS Expr
}

// Call is a function-call expression. MangledName is filled in by the
// semantic pass once argument types are known.
type Call struct {
	Range
	typedExpr
	Callee      Expr
	Args        []Expr
	MangledName string
}

// Index is a postfix index expression, `value[args...]`.
type Index struct {
	Range
	typedExpr
	Value Expr
	Args  []Expr
}

// --- Statements ---

// Block is a `{ ... }` sequence of statements.
type Block struct {
	Range
	stmtTag
	Stmts []Stmt
}

// Var is a `let` declaration: one or more name = expr pairs, each of which
// requires an initializer.
type Var struct {
	Range
	stmtTag
	Names []string
	Inits []Expr
}

// Return is a `return expr` statement.
type Return struct {
	Range
	stmtTag
	Expr Expr
}

// While is a `while (cond) body` loop.
type While struct {
	Range
	stmtTag
	Cond Expr
	Body Stmt
}

// If is an `if (cond) then [else else_]` conditional.
type If struct {
	Range
	stmtTag
	Cond Expr
	Then Stmt
	Else Stmt // nil if absent
}

// ExprStmt is an expression used in statement position.
type ExprStmt struct {
	Range
	stmtTag
	Expr Expr
}

// --- Top level ---

// Param is a single (name, type) function parameter.
type Param struct {
	Name string
	Type types.Type
}

// Local is a single (name, type) local variable slot, populated by the
// semantic pass from the bodies' Var statements so the code emitter can
// assign stack offsets without re-walking the body.
type Local struct {
	Name string
	Type types.Type
}

// FunctionDecl is a top-level function declaration. An extern declaration
// (preceded by `extern "C" from "path.h"`, SPEC_FULL §11) carries a nil
// Body — there is nothing to emit code for — and a non-empty HeaderPath
// naming the C header its prototype must be found in.
type FunctionDecl struct {
	Range
	Name       string
	ResultType types.Type
	Params     []Param
	Body       *Block
	Locals     []Local

	// HeaderPath is non-empty only for an extern "C" from "..." decl.
	HeaderPath string

	// MangledName is Name + "(" + joined param type strings + ")",
	// computed once during the semantic pass's collect phase.
	MangledName string
}

// IsExtern reports whether decl is an imported declaration rather than one
// with a source body to compile.
func (decl *FunctionDecl) IsExtern() bool { return decl.HeaderPath != "" }

// StructDecl is a top-level `struct Name { field: type, ... }` declaration
// (the surface syntax §4.2 omits for the `Struct` type variant §3 defines;
// see SPEC_FULL §12). It carries no resolved type of its own — it exists
// only to be registered into the type registry's struct table before any
// function body is analyzed.
type StructDecl struct {
	Range
	Name    string
	Members []Param // reuses Param's (name, type) shape for fields
}

// Module is the root of the AST: an ordered sequence of struct and
// function declarations, exclusively owning the whole tree. Struct
// declarations are collected (into the type registry) before any function
// declaration is semantically analyzed, regardless of their relative
// order in Decls.
type Module struct {
	Structs []*StructDecl
	Decls   []*FunctionDecl
}
