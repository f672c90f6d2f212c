package codegen

// EmitEntryThunk emits the __entry symbol spec §4.7 names as
// AddressOfEntryPoint: a small process-entry stub, not part of the source
// AST, that calls the mangled name of the program's "main()" declaration
// with no arguments and passes its return value to ExitProcess through the
// same __imp_ indirection ordinary extern calls use. It runs on the same
// Emitter as every function body so a --emit-asm listing and the externs
// table stay shared across the whole image.
func (e *Emitter) EmitEntryThunk(mainSymbol string) {
	e.buf.Symbol("__entry")
	e.subRImm(rsp, 40) // shadow space for two calls, keeping rsp 16-aligned
	e.callSymbol(mainSymbol)
	e.movRR(rcx, rax)
	e.callIndirectRip("ExitProcess")
	e.note("hlt")
	e.buf.PushByte(0xf4) // ExitProcess does not return
}
