// Package codegen is the tree-walking x86-64 emitter described in spec
// §4.5: a second pass over the AST that pushes its output — a single
// 8-byte value per expression, strict push-down discipline — onto the CPU
// stack, driven entirely by a linker.Buffer so the same walk produces
// identical bytes in both the layout and emit passes.
package codegen

// Register encodings, matching the Microsoft x64 GPR numbering used by
// ModRM/SIB and REX.B/REX.R extension bits.
const (
	rax = 0
	rcx = 1
	rdx = 2
	rbx = 3
	rsp = 4
	rbp = 5
	rsi = 6
	rdi = 7
	r8  = 8
	r9  = 9
	r10 = 10
	r11 = 11
	r12 = 12
	r13 = 13
	r14 = 14
	r15 = 15
)

// Condition codes, used directly as the second opcode byte of a near Jcc
// (0F 80+cc) and, via their low nibble, of a SETcc (0F 90+cc&0xF).
const (
	ccE  = 0x84
	ccNE = 0x85
	ccL  = 0x8C
	ccGE = 0x8D
	ccLE = 0x8E
	ccG  = 0x8F
)

func rex(w bool, r, x, b int) byte {
	v := byte(0x40)
	if w {
		v |= 0x08
	}
	if r >= 8 {
		v |= 0x04
	}
	if x >= 8 {
		v |= 0x02
	}
	if b >= 8 {
		v |= 0x01
	}
	return v
}

func modrmReg(mod, reg, rm int) byte {
	return byte((mod&3)<<6 | (reg&7)<<3 | (rm & 7))
}

// --- register-immediate ---

// movRegImm64 emits `movabs reg, imm64`.
func (e *Emitter) movRegImm64(reg int, val uint64) {
	e.note("movabs %s, %d", regName(reg), val)
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(byte(0xb8 + (reg & 7)))
	e.buf.PushU64(val)
}

// --- rbp-relative locals ---

func (e *Emitter) loadRbpRel(reg, offset int) {
	e.note("mov %s, [rbp-%d]", regName(reg), offset)
	e.memOp(0x8b, reg, rbp, -offset)
}

func (e *Emitter) storeRbpRel(offset, reg int) {
	e.note("mov [rbp-%d], %s", offset, regName(reg))
	e.memOp(0x89, reg, rbp, -offset)
}

// memOp emits `op reg, [base+disp]` / `op [base+disp], reg` (opcode
// selects direction) for 64-bit operands, auto-selecting disp8 vs disp32,
// and routing RSP-based addressing through the required SIB byte.
func (e *Emitter) memOp(opcode byte, reg, base, disp int) {
	e.buf.PushByte(rex(true, reg, 0, base))
	e.buf.PushByte(opcode)
	needsSIB := base&7 == rsp
	switch {
	case disp == 0 && base&7 != rbp:
		e.buf.PushByte(modrmReg(0, reg, base))
		if needsSIB {
			e.buf.PushByte(0x24)
		}
	case disp >= -128 && disp <= 127:
		e.buf.PushByte(modrmReg(1, reg, base))
		if needsSIB {
			e.buf.PushByte(0x24)
		}
		e.buf.PushByte(byte(int8(disp)))
	default:
		e.buf.PushByte(modrmReg(2, reg, base))
		if needsSIB {
			e.buf.PushByte(0x24)
		}
		e.buf.PushI32(int32(disp))
	}
}

// --- stack push/pop ---

func (e *Emitter) pushReg(reg int) {
	e.note("push %s", regName(reg))
	if reg >= 8 {
		e.buf.PushByte(0x41)
	}
	e.buf.PushByte(byte(0x50 + (reg & 7)))
}

func (e *Emitter) popReg(reg int) {
	e.note("pop %s", regName(reg))
	if reg >= 8 {
		e.buf.PushByte(0x41)
	}
	e.buf.PushByte(byte(0x58 + (reg & 7)))
}

// --- register-register ALU ---

func (e *Emitter) rr(opcode byte, dst, src int) {
	e.buf.PushByte(rex(true, src, 0, dst))
	e.buf.PushByte(opcode)
	e.buf.PushByte(modrmReg(3, src, dst))
}

func (e *Emitter) movRR(dst, src int) { e.note("mov %s, %s", regName(dst), regName(src)); e.rr(0x89, dst, src) }
func (e *Emitter) addRR(dst, src int) { e.note("add %s, %s", regName(dst), regName(src)); e.rr(0x01, dst, src) }
func (e *Emitter) subRR(dst, src int) { e.note("sub %s, %s", regName(dst), regName(src)); e.rr(0x29, dst, src) }
func (e *Emitter) andRR(dst, src int) { e.note("and %s, %s", regName(dst), regName(src)); e.rr(0x21, dst, src) }
func (e *Emitter) orRR(dst, src int)  { e.note("or %s, %s", regName(dst), regName(src)); e.rr(0x09, dst, src) }
func (e *Emitter) xorRR(dst, src int) { e.note("xor %s, %s", regName(dst), regName(src)); e.rr(0x31, dst, src) }
func (e *Emitter) cmpRR(a, b int)     { e.note("cmp %s, %s", regName(a), regName(b)); e.rr(0x39, a, b) }

func (e *Emitter) imulR(src int) {
	e.note("imul %s", regName(src))
	e.buf.PushByte(rex(true, 0, 0, src))
	e.buf.PushByte(0xf7)
	e.buf.PushByte(modrmReg(3, 5, src))
}

// --- single-register ---

func (e *Emitter) negR(reg int) {
	e.note("neg %s", regName(reg))
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0xf7)
	e.buf.PushByte(modrmReg(3, 3, reg))
}

func (e *Emitter) notR(reg int) {
	e.note("not %s", regName(reg))
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0xf7)
	e.buf.PushByte(modrmReg(3, 2, reg))
}

func (e *Emitter) cqo() { e.note("cqo"); e.buf.PushByte(0x48); e.buf.PushByte(0x99) }

func (e *Emitter) idivR(reg int) {
	e.note("idiv %s", regName(reg))
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0xf7)
	e.buf.PushByte(modrmReg(3, 7, reg))
}

func (e *Emitter) shlCL(reg int) {
	e.note("shl %s, cl", regName(reg))
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0xd3)
	e.buf.PushByte(modrmReg(3, 4, reg))
}

func (e *Emitter) sarCL(reg int) {
	e.note("sar %s, cl", regName(reg))
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0xd3)
	e.buf.PushByte(modrmReg(3, 7, reg))
}

func (e *Emitter) xorRImm8(reg int, imm byte) {
	e.note("xor %s, %d", regName(reg), imm)
	e.buf.PushByte(rex(true, 0, 0, reg))
	e.buf.PushByte(0x83)
	e.buf.PushByte(modrmReg(3, 6, reg))
	e.buf.PushByte(imm)
}

func (e *Emitter) addRImm(reg int, val int32) {
	e.note("add %s, %d", regName(reg), val)
	e.buf.PushByte(rex(true, 0, 0, reg))
	if val >= -128 && val <= 127 {
		e.buf.PushByte(0x83)
		e.buf.PushByte(modrmReg(3, 0, reg))
		e.buf.PushByte(byte(int8(val)))
	} else {
		e.buf.PushByte(0x81)
		e.buf.PushByte(modrmReg(3, 0, reg))
		e.buf.PushI32(val)
	}
}

func (e *Emitter) subRImm(reg int, val int32) {
	e.note("sub %s, %d", regName(reg), val)
	e.buf.PushByte(rex(true, 0, 0, reg))
	if val >= -128 && val <= 127 {
		e.buf.PushByte(0x83)
		e.buf.PushByte(modrmReg(3, 5, reg))
		e.buf.PushByte(byte(int8(val)))
	} else {
		e.buf.PushByte(0x81)
		e.buf.PushByte(modrmReg(3, 5, reg))
		e.buf.PushI32(val)
	}
}

func (e *Emitter) setcc(cc byte, reg int) {
	e.note("set%s %s", ccSuffix(cc), regName(reg))
	if reg >= 8 {
		e.buf.PushByte(0x41)
	}
	e.buf.PushByte(0x0f)
	e.buf.PushByte(byte(0x90 | (cc & 0x0f)))
	e.buf.PushByte(modrmReg(3, 0, reg))
}

func ccSuffix(cc byte) string {
	switch cc {
	case ccE:
		return "e"
	case ccNE:
		return "ne"
	case ccL:
		return "l"
	case ccGE:
		return "ge"
	case ccLE:
		return "le"
	case ccG:
		return "g"
	default:
		return "?"
	}
}

func (e *Emitter) ret() { e.note("ret"); e.buf.PushByte(0xc3) }

// --- RIP-relative control transfer, resolved through the linker ---

// callSymbol emits `call rel32` targeting a symbolic name, using the
// linker's recorded (layout-pass) address to compute the displacement:
// target - (address of next instruction). During the layout pass the
// symbol table isn't populated yet, so Address returns the zero Symbol
// and the displacement written is a placeholder — only the emit pass's
// bytes are used, and both passes push exactly the same instruction
// length, which is all the layout pass needs to get right.
func (e *Emitter) callSymbol(name string) {
	e.note("call %s", name)
	e.buf.PushByte(0xe8)
	e.emitRel32To(name)
}

func (e *Emitter) jmpSymbol(name string) {
	e.note("jmp %s", name)
	e.buf.PushByte(0xe9)
	e.emitRel32To(name)
}

// jccSymbol emits a near Jcc (0F 80+cc rel32) to name.
func (e *Emitter) jccSymbol(cc byte, name string) {
	e.note("j%s %s", ccSuffix(cc), name)
	e.buf.PushByte(0x0f)
	e.buf.PushByte(cc)
	e.emitRel32To(name)
}

func (e *Emitter) emitRel32To(name string) {
	target := e.buf.Address(name)
	next := e.buf.VirtOffset() + 4
	e.buf.PushI32(int32(target.Virt - next))
}
