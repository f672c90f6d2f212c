package codegen

import (
	"fmt"
	"strconv"

	"github.com/flatlang/flatc/internal/ast"
	"github.com/flatlang/flatc/internal/diag"
	"github.com/flatlang/flatc/internal/linker"
	"github.com/flatlang/flatc/internal/token"
	"github.com/flatlang/flatc/internal/types"
)

// localSlot is one RBP-relative stack slot assigned to a parameter or a
// `let`-declared local.
type localSlot struct {
	Offset int
	Type   types.Type
}

// Emitter walks a validated Module and emits x86-64 machine code into buf,
// one function at a time. The per-function emission state (locals, label
// counter, function name, epilogue symbol) lives in Emitter fields that
// emitFunction resets at the start of every function; only the asm log
// persists from one function to the next.
type Emitter struct {
	buf     *linker.Buffer
	reg     *types.Registry
	src     []byte
	externs map[string]bool // mangled call name -> true if resolved via __imp_ indirection

	locals        map[string]localSlot
	labelCounter  int
	funcName      string
	epilogueLabel string

	asmLog bool
	log    []string
}

// New creates an Emitter writing into buf. src is the original source
// buffer, used only to compute line/col for the rare diagnostic code
// emission itself can raise (Unsupported constructs). externs names every
// mangled call target that must be resolved indirectly through the import
// address table (populated by the driver from extern "C" declarations,
// SPEC_FULL §11) rather than called directly by a symbolic rel32 call.
func New(buf *linker.Buffer, reg *types.Registry, src []byte, externs map[string]bool) *Emitter {
	if externs == nil {
		externs = map[string]bool{}
	}
	return &Emitter{buf: buf, reg: reg, src: src, externs: externs}
}

func (e *Emitter) errorAt(rng ast.Range, format string, args ...interface{}) {
	line, col := token.LineCol(e.src, rng.Begin)
	text := ""
	if rng.Begin >= 0 && rng.End <= len(e.src) && rng.Begin <= rng.End {
		text = string(e.src[rng.Begin:rng.End])
	}
	diag.Fatal(diag.New(diag.Unsupported, line, col, text, format, args...))
}

// EmitModule emits every function declaration in source order. Struct
// declarations carry no code of their own — they only shaped the type
// registry during the semantic pass.
func (e *Emitter) EmitModule(mod *ast.Module) {
	for _, decl := range mod.Decls {
		if decl.IsExtern() {
			continue
		}
		e.emitFunction(decl)
	}
}

func roundUp(bytes, align int) int {
	if bytes <= 0 {
		return align
	}
	if bytes%align == 0 {
		return bytes
	}
	return (bytes/align + 1) * align
}

// --- Function layout (spec §4.5 "Function layout") ---

func (e *Emitter) emitFunction(decl *ast.FunctionDecl) {
	e.buf.Symbol(decl.MangledName)
	e.funcName = decl.MangledName
	e.labelCounter = 0
	e.epilogueLabel = e.newLabel("epilogue")

	ptrBytes := e.reg.PointerBits() / 8
	e.locals = make(map[string]localSlot)
	offset := 0
	assign := func(name string, t types.Type) {
		slotBytes := roundUp((t.BitSize()+7)/8, ptrBytes)
		offset += slotBytes
		e.locals[name] = localSlot{Offset: offset, Type: t}
	}
	for _, p := range decl.Params {
		assign(p.Name, p.Type)
	}
	for _, l := range decl.Locals {
		assign(l.Name, l.Type)
	}
	stackSpace := offset
	// Return address (8) + callee-saved pushes (64) + locals must be a
	// multiple of 16 so rsp is 16-byte aligned after the prologue.
	if (8+64+stackSpace)%16 != 0 {
		stackSpace += 8
	}

	argRegs := [4]int{rcx, rdx, r8, r9}
	calleeSaved := [8]int{rdi, rsi, rbx, rbp, r12, r13, r14, r15}

	// Prologue.
	for i := 0; i < len(decl.Params) && i < 4; i++ {
		e.memOp(0x89, argRegs[i], rsp, 8+8*i)
	}
	for _, reg := range calleeSaved {
		e.pushReg(reg)
	}
	e.movRR(rbp, rsp)
	if stackSpace > 0 {
		e.subRImm(rsp, int32(stackSpace))
	}
	for i, p := range decl.Params {
		if i >= 4 {
			break
		}
		e.storeRbpRel(e.locals[p.Name].Offset, argRegs[i])
	}

	e.stmt(decl.Body)

	// Epilogue.
	e.buf.Symbol(e.epilogueLabel)
	if stackSpace > 0 {
		e.addRImm(rsp, int32(stackSpace))
	}
	for i := len(calleeSaved) - 1; i >= 0; i-- {
		e.popReg(calleeSaved[i])
	}
	e.ret()
}

func (e *Emitter) newLabel(suffix string) string {
	e.labelCounter++
	return fmt.Sprintf("%s$%s%d", e.funcName, suffix, e.labelCounter)
}

// --- Statements ---

func (e *Emitter) stmt(s ast.Stmt) {
	switch n := s.(type) {
	case *ast.Block:
		for _, inner := range n.Stmts {
			e.stmt(inner)
		}
	case *ast.Var:
		for i, name := range n.Names {
			e.expr(n.Inits[i])
			e.popReg(rax)
			e.storeRbpRel(e.locals[name].Offset, rax)
		}
	case *ast.Return:
		e.expr(n.Expr)
		e.popReg(rax)
		e.jmpSymbol(e.epilogueLabel)
	case *ast.While:
		top := e.newLabel("top")
		end := e.newLabel("end")
		e.buf.Symbol(top)
		e.expr(n.Cond)
		e.popReg(rax)
		e.cmpRImmZero(rax)
		e.jccSymbol(ccE, end)
		e.stmt(n.Body)
		e.jmpSymbol(top)
		e.buf.Symbol(end)
	case *ast.If:
		elseLabel := e.newLabel("else")
		endLabel := e.newLabel("end")
		e.expr(n.Cond)
		e.popReg(rax)
		e.cmpRImmZero(rax)
		e.jccSymbol(ccE, elseLabel)
		e.stmt(n.Then)
		e.jmpSymbol(endLabel)
		e.buf.Symbol(elseLabel)
		if n.Else != nil {
			e.stmt(n.Else)
		}
		e.buf.Symbol(endLabel)
	case *ast.ExprStmt:
		e.expr(n.Expr)
		e.popReg(rax) // discard; expression statements don't contribute to the stack
	default:
		e.errorAt(s.Span(), "unknown statement kind in code emission")
	}
}

// cmpRImmZero emits `test reg, reg` (cheaper than `cmp reg, 0`, equivalent
// zero flag behavior for the branch-if-zero tests If/While need).
func (e *Emitter) cmpRImmZero(reg int) {
	e.note("test %s, %s", regName(reg), regName(reg))
	e.buf.PushByte(rex(true, reg, 0, reg))
	e.buf.PushByte(0x85)
	e.buf.PushByte(modrmReg(3, reg, reg))
}

// --- Expressions (spec §4.5 "Expression emission") ---

func (e *Emitter) expr(ex ast.Expr) {
	switch n := ex.(type) {
	case *ast.Integer:
		v, err := strconv.ParseInt(n.Text, 10, 64)
		if err != nil {
			e.errorAt(n.Range, "invalid integer literal %q", n.Text)
		}
		e.movRegImm64(rax, uint64(v))
		e.pushReg(rax)

	case *ast.Identifier:
		slot := e.locals[n.Text]
		if slot.Type.BitSize() > e.reg.PointerBits() {
			e.errorAt(n.Range, "not implemented")
		}
		e.loadRbpRel(rax, slot.Offset)
		e.pushReg(rax)

	case *ast.Unary:
		e.expr(n.Operand)
		e.popReg(rax)
		switch n.Op {
		case "+":
			// no-op
		case "-":
			e.negR(rax)
		case "!":
			e.xorRImm8(rax, 0x01)
		case "~":
			e.notR(rax)
		}
		e.pushReg(rax)

	case *ast.Binary:
		if n.Op == "=" {
			e.assign(n)
			return
		}
		e.expr(n.LHS)
		e.expr(n.RHS)
		e.popReg(rcx)
		e.popReg(rax)
		switch n.Op {
		case "+":
			e.addRR(rax, rcx)
		case "-":
			e.subRR(rax, rcx)
		case "*":
			e.imulR(rcx)
		case "/":
			e.cqo()
			e.idivR(rcx)
		case "%":
			e.cqo()
			e.idivR(rcx)
			e.movRR(rax, rdx)
		case "&", "&&":
			e.andRR(rax, rcx)
		case "|", "||":
			e.orRR(rax, rcx)
		case "^":
			e.xorRR(rax, rcx)
		case "<<":
			e.shlCL(rax)
		case ">>":
			e.sarCL(rax)
		case "==":
			e.compareSet(ccE)
		case "!=":
			e.compareSet(ccNE)
		case "<":
			e.compareSet(ccL)
		case ">":
			e.compareSet(ccG)
		case "<=":
			e.compareSet(ccLE)
		case ">=":
			e.compareSet(ccGE)
		}
		e.pushReg(rax)

	case *ast.Call:
		e.subRImm(rsp, 32)
		for i := len(n.Args) - 1; i >= 0; i-- {
			e.expr(n.Args[i])
		}
		argRegs := [4]int{rcx, rdx, r8, r9}
		for i := 0; i < len(n.Args) && i < 4; i++ {
			e.popReg(argRegs[i])
		}
		if e.externs[n.MangledName] {
			e.callIndirectRip(n.MangledName)
		} else {
			e.callSymbol(n.MangledName)
		}
		e.addRImm(rsp, 32)
		e.pushReg(rax)

	case *ast.Index:
		e.errorAt(n.Range, "index expression code generation not implemented")

	default:
		e.errorAt(ex.Span(), "unknown expression kind in code emission")
	}
}

// compareSet copies RAX into RBX, zeroes RAX, compares RBX against RCX and
// sets AL per cc — matching the source's sequence of copy-then-xor-then-
// cmp-then-setcc exactly (RBX is otherwise unused mid-expression, since
// the push-down stack discipline never keeps a live value there).
func (e *Emitter) compareSet(cc byte) {
	e.movRR(rbx, rax)
	e.xorRR(rax, rax)
	e.cmpRR(rbx, rcx)
	e.setcc(cc, rax)
}

// assign handles `lhs = rhs`. Only an Identifier is a valid assignment
// target in this AST (see SPEC_FULL §13) — Index/Call are not lvalues.
func (e *Emitter) assign(n *ast.Binary) {
	ident, ok := n.LHS.(*ast.Identifier)
	if !ok {
		e.errorAt(n.Range, "assignment target not implemented")
	}
	e.expr(n.RHS)
	e.popReg(rax)
	e.storeRbpRel(e.locals[ident.Text].Offset, rax)
	e.pushReg(rax)
}

// callIndirectRip emits `call qword [rip+disp32]` to the __imp_ slot
// holding an extern function's address once bound at load time.
func (e *Emitter) callIndirectRip(name string) {
	e.note("call qword ptr [rip+__imp_%s]", name)
	e.buf.PushByte(0xff)
	e.buf.PushByte(modrmReg(0, 2, 5))
	e.emitRel32To("__imp_" + name)
}
