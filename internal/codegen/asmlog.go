package codegen

import "fmt"

// regNames gives each GPR encoding its 64-bit Intel mnemonic, used only by
// the asm log — the emitted machine code itself never refers to registers
// by name.
var regNames = [16]string{
	"rax", "rcx", "rdx", "rbx", "rsp", "rbp", "rsi", "rdi",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
}

func regName(r int) string { return regNames[r&0xf] }

// EnableAsmLog turns on mnemonic logging for this Emitter's remaining
// output, consumed by cmd/flatc's --emit-asm flag. Logging only the emit
// pass (not the layout pass) matters: a Buffer is walked twice and the log
// would otherwise hold every instruction twice.
func (e *Emitter) EnableAsmLog() { e.asmLog = true }

// AsmListing returns the mnemonic lines recorded so far, one per emitted
// instruction in program order.
func (e *Emitter) AsmListing() []string { return e.log }

func (e *Emitter) note(format string, args ...interface{}) {
	if !e.asmLog || e.buf.IsLayout() {
		return
	}
	e.log = append(e.log, fmt.Sprintf(format, args...))
}
