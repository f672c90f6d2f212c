// Package sema implements the two-phase semantic pass described in spec
// §4.4: collect every function declaration into an overload table, then
// validate each body, assigning a resolved type to every expression and a
// mangled target name to every call.
package sema

import (
	"github.com/samber/lo"

	"github.com/flatlang/flatc/internal/ast"
	"github.com/flatlang/flatc/internal/diag"
	"github.com/flatlang/flatc/internal/token"
	"github.com/flatlang/flatc/internal/types"
)

// Function is one overload candidate: a declaration plus its parameter
// types, unpacked once so overload resolution never re-walks Params.
type Function struct {
	Decl   *ast.FunctionDecl
	Params []types.Type
}

// Table is the function table: unqualified name -> every overload sharing
// that name. order preserves declaration order so validation (and any
// diagnostics it raises) proceeds deterministically, independent of map
// iteration.
type Table struct {
	reg      *types.Registry
	clusters map[string][]*Function
	order    []*Function
}

// NewTable creates an empty function table bound to reg for overload
// comparisons (areSame).
func NewTable(reg *types.Registry) *Table {
	return &Table{reg: reg, clusters: make(map[string][]*Function)}
}

// has reports whether an overload of name exists whose parameter types are
// pairwise areSame with args.
func (t *Table) has(name string, args []types.Type) bool {
	_, ok := t.get(name, args)
	return ok
}

// get finds the overload of name whose parameter types are pairwise
// areSame with args, mirroring the source's exact-match, no-implicit-
// conversion overload resolution.
func (t *Table) get(name string, args []types.Type) (*Function, bool) {
	for _, fn := range t.clusters[name] {
		if len(fn.Params) != len(args) {
			continue
		}
		match := true
		for i := range fn.Params {
			if !t.reg.AreSame(fn.Params[i], args[i]) {
				match = false
				break
			}
		}
		if match {
			return fn, true
		}
	}
	return nil, false
}

func (t *Table) add(name string, fn *Function) {
	t.clusters[name] = append(t.clusters[name], fn)
	t.order = append(t.order, fn)
}

// reservedBinaryNames maps each binary operator spelling to the reserved
// function name overload resolution looks it up by. BitwiseNot does not
// appear here (it is unary-only); unlike the source this table gives
// bitwise-not its own dedicated unary name rather than colliding with
// bitwise-or (see SPEC_FULL §13).
var reservedBinaryNames = map[string]string{
	"+":  "__add__",
	"-":  "__subtract__",
	"*":  "__multiply__",
	"/":  "__divide__",
	"%":  "__modulo__",
	"&":  "__bitand__",
	"|":  "__bitor__",
	"^":  "__bitxor__",
	"<<": "__lshift__",
	">>": "__rshift__",
	"&&": "__and__",
	"||": "__or__",
	"==": "__equal__",
	"!=": "__notequal__",
	"<":  "__less__",
	">":  "__greater__",
	"<=": "__lessorequal__",
	">=": "__greaterorequal__",
}

var reservedUnaryNames = map[string]string{
	"+": "__positive__",
	"-": "__negative__",
	"!": "__not__",
	"~": "__bitnot__",
}

// Pass carries the state of one validate walk: the source buffer (for
// diagnostic line/col and quoted slices), the type registry, the shared
// function table, and the current function's local-variable map and
// expected result type.
type Pass struct {
	src    []byte
	reg    *types.Registry
	table  *Table
	locals map[string]types.Type
	result types.Type

	// localOrder accumulates the Var-declared locals of the function
	// currently being validated, in declaration order, so they can be
	// copied onto FunctionDecl.Locals for the code emitter.
	localOrder []ast.Local
}

// Analyze runs both phases over mod: collect every declaration into a
// function table, then validate every body. src is the original source
// buffer, used only to compute diagnostic positions and quoted slices.
func Analyze(src []byte, reg *types.Registry, mod *ast.Module) (table *Table, err error) {
	defer diag.Recover(&err)
	p := &Pass{src: src, reg: reg, table: NewTable(reg)}
	p.collectStructs(mod)
	p.collect(mod)
	p.validate()
	return p.table, nil
}

// collectStructs registers every top-level struct declaration into the
// type registry before any function is collected or validated, so a
// function whose signature names a struct declared later in the file (or
// a struct whose member names one declared later) still resolves: Named
// member types are looked up lazily, so declaration order among structs
// never matters, only that this pass runs before validate.
func (p *Pass) collectStructs(mod *ast.Module) {
	for _, sd := range mod.Structs {
		members := lo.Map(sd.Members, func(m ast.Param, _ int) types.Member {
			return types.Member{Name: m.Name, Type: m.Type}
		})
		if _, ok := p.reg.RegisterStruct(sd.Name, members); !ok {
			p.errorAt(sd.Range, diag.Semantic, "Struct is already defined")
		}
	}
}

func (p *Pass) errorAt(rng ast.Range, kind diag.Kind, format string, args ...interface{}) {
	line, col := token.LineCol(p.src, rng.Begin)
	text := ""
	if rng.Begin >= 0 && rng.End <= len(p.src) && rng.Begin <= rng.End {
		text = string(p.src[rng.Begin:rng.End])
	}
	diag.Fatal(diag.New(kind, line, col, text, format, args...))
}

// --- Phase 1: collect ---

func (p *Pass) collect(mod *ast.Module) {
	for _, decl := range mod.Decls {
		paramTypes := lo.Map(decl.Params, func(prm ast.Param, _ int) types.Type { return prm.Type })
		if p.table.has(decl.Name, paramTypes) {
			p.errorAt(decl.Range, diag.Semantic, "Function is already defined")
		}
		decl.MangledName = types.MangledCallName(decl.Name, paramTypes)
		p.table.add(decl.Name, &Function{Decl: decl, Params: paramTypes})
	}
}

// --- Phase 2: validate ---

func (p *Pass) validate() {
	for _, fn := range p.table.order {
		if fn.Decl.IsExtern() {
			continue
		}
		p.locals = make(map[string]types.Type, len(fn.Decl.Params))
		for i, prm := range fn.Decl.Params {
			p.locals[prm.Name] = prm.Type
		}
		p.localOrder = nil
		p.result = fn.Decl.ResultType

		p.stmt(fn.Decl.Body)

		fn.Decl.Locals = p.localOrder
	}
}

func (p *Pass) boolType() types.Type  { return p.reg.NamedType("bool") }
func (p *Pass) int64Type() types.Type { return p.reg.NamedType("i64") }

// stmt validates one statement, recursing into nested blocks/branches.
func (p *Pass) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		for _, inner := range n.Stmts {
			p.stmt(inner)
		}
	case *ast.Var:
		for i, name := range n.Names {
			if _, exists := p.locals[name]; exists {
				p.errorAt(n.Range, diag.Semantic, "Variable is already defined")
			}
			t := p.expr(n.Inits[i])
			p.locals[name] = t
			p.localOrder = append(p.localOrder, ast.Local{Name: name, Type: t})
		}
	case *ast.Return:
		t := p.expr(n.Expr)
		if !p.reg.AreSame(t, p.result) {
			p.errorAt(n.Expr.Span(), diag.Semantic, "Return expression has to be of function result type")
		}
	case *ast.While:
		ct := p.expr(n.Cond)
		if !p.reg.AreSame(ct, p.boolType()) {
			p.errorAt(n.Cond.Span(), diag.Semantic, "While condition has to be of boolean type")
		}
		p.stmt(n.Body)
	case *ast.If:
		ct := p.expr(n.Cond)
		if !p.reg.AreSame(ct, p.boolType()) {
			p.errorAt(n.Cond.Span(), diag.Semantic, "If condition has to be of boolean type")
		}
		p.stmt(n.Then)
		if n.Else != nil {
			p.stmt(n.Else)
		}
	case *ast.ExprStmt:
		p.expr(n.Expr)
	default:
		p.errorAt(s.Span(), diag.Semantic, "Unknown statement kind")
	}
}

// expr infers and records the type of e, returning it — the "last
// expression result" channel of spec §4.4, made explicit as a return value
// instead of a shared mutable field.
func (p *Pass) expr(e ast.Expr) types.Type {
	var t types.Type
	switch n := e.(type) {
	case *ast.Integer:
		t = p.int64Type()

	case *ast.Identifier:
		lt, ok := p.locals[n.Text]
		if !ok {
			p.errorAt(n.Range, diag.Semantic, "Undefined Identifier")
		}
		t = lt

	case *ast.Unary:
		operand := p.expr(n.Operand)
		name, ok := reservedUnaryNames[n.Op]
		if !ok {
			p.errorAt(n.Range, diag.Semantic, "Unknown unary operator")
		}
		fn, ok := p.table.get(name, []types.Type{operand})
		if !ok {
			p.errorAt(n.Range, diag.Semantic, "No matching operator function found")
		}
		t = fn.Decl.ResultType

	case *ast.Binary:
		if n.Op == "=" {
			lt := p.expr(n.LHS)
			rt := p.expr(n.RHS)
			if !p.reg.AreSame(lt, rt) {
				p.errorAt(n.Range, diag.Semantic, "Assignment type mismatch")
			}
			t = lt
		} else {
			lt := p.expr(n.LHS)
			rt := p.expr(n.RHS)
			name, ok := reservedBinaryNames[n.Op]
			if !ok {
				p.errorAt(n.Range, diag.Semantic, "Unknown binary operator")
			}
			fn, ok := p.table.get(name, []types.Type{lt, rt})
			if !ok {
				p.errorAt(n.Range, diag.Semantic, "No matching operator function found")
			}
			t = fn.Decl.ResultType
		}

	case *ast.Call:
		argTypes := make([]types.Type, len(n.Args))
		for i, a := range n.Args {
			argTypes[i] = p.expr(a)
		}
		ident, ok := n.Callee.(*ast.Identifier)
		if !ok {
			p.errorAt(n.Range, diag.Unsupported, "__call__ not implemented")
		}
		n.MangledName = types.MangledCallName(ident.Text, argTypes)
		fn, ok := p.table.get(ident.Text, argTypes)
		if !ok {
			p.errorAt(n.Range, diag.Semantic, "No matching function was found")
		}
		t = fn.Decl.ResultType

	case *ast.Index:
		valueType := p.expr(n.Value)
		switch vt := valueType.(type) {
		case *types.Array:
			if len(n.Args) != 1 {
				p.errorAt(n.Range, diag.Semantic, "Invalid parameter count for basic index expression")
			}
			idxType := p.expr(n.Args[0])
			if !p.reg.AreSame(idxType, p.int64Type()) {
				p.errorAt(n.Args[0].Span(), diag.Semantic, "Invalid index type")
			}
			t = vt.Base
		case *types.Named:
			p.errorAt(n.Range, diag.Unsupported, "__index__ not implemented")
		default:
			p.errorAt(n.Range, diag.Semantic, "Invalid value type for index expression")
		}

	default:
		p.errorAt(e.Span(), diag.Semantic, "Unknown expression kind")
	}

	e.SetResolvedType(t)
	return t
}
