// Package linker implements the two-pass symbolic byte assembler described
// in spec §4.6. A single Buffer is driven twice by the caller — once with
// BeginPass(true) (layout) to record every symbol's (raw, virtual) offset,
// once with BeginPass(false) (emit) to produce the real bytes — walking
// the module in the exact same order both times, so every symbolic
// reference resolves to the same offset it will actually end up at.
package linker

import "encoding/binary"

// Symbol is the recorded position of a named location: its file (raw)
// offset and its image-relative (virtual) offset. Both are populated only
// once the layout pass has run.
type Symbol struct {
	Raw  int
	Virt int
}

// Buffer is the sequential byte assembler with a symbol table. It is not
// safe for concurrent use — the pipeline is single-threaded by design
// (spec §5).
type Buffer struct {
	layout bool

	raw        []byte
	rawCursor  int
	virtCursor int

	symbols map[string]Symbol
}

// New creates an empty Buffer. Call BeginPass before using it.
func New() *Buffer {
	return &Buffer{symbols: make(map[string]Symbol)}
}

// BeginPass resets the buffer's cursors and raw bytes, switching to layout
// or emit mode. Entering layout mode also clears the recorded symbol
// table, since layout is where it gets (re)populated from scratch;
// entering emit mode preserves whatever the most recent layout pass
// recorded, since emit only reads it.
func (b *Buffer) BeginPass(layout bool) {
	if layout {
		b.symbols = make(map[string]Symbol)
	}
	b.layout = layout
	b.raw = nil
	b.rawCursor = 0
	b.virtCursor = 0
}

// IsLayout reports whether the buffer is currently in its layout pass.
func (b *Buffer) IsLayout() bool { return b.layout }

// RawOffset returns the current raw (file) cursor.
func (b *Buffer) RawOffset() int { return b.rawCursor }

// VirtOffset returns the current virtual (image-relative) cursor.
func (b *Buffer) VirtOffset() int { return b.virtCursor }

// Symbol records name at the current (raw, virtual) offset during the
// layout pass. During the emit pass it is a no-op: the offset recorded
// during layout is authoritative, and the emit pass must reproduce the
// identical call/push sequence to land on it again.
func (b *Buffer) Symbol(name string) {
	if !b.layout {
		return
	}
	b.symbols[name] = Symbol{Raw: b.rawCursor, Virt: b.virtCursor}
}

// Address resolves a previously recorded symbol. During the layout pass
// every query returns the zero Symbol (offsets aren't known yet, and
// nothing emitted from them during layout is meant to be read back);
// during the emit pass it returns the offsets captured in layout.
func (b *Buffer) Address(name string) Symbol {
	if b.layout {
		return Symbol{}
	}
	return b.symbols[name]
}

// PushBytes appends p verbatim and advances both cursors by len(p).
func (b *Buffer) PushBytes(p []byte) {
	b.raw = append(b.raw, p...)
	b.rawCursor += len(p)
	b.virtCursor += len(p)
}

// PushByte appends a single byte.
func (b *Buffer) PushByte(v byte) { b.PushBytes([]byte{v}) }

// PushU16 appends a little-endian uint16.
func (b *Buffer) PushU16(v uint16) {
	var buf [2]byte
	binary.LittleEndian.PutUint16(buf[:], v)
	b.PushBytes(buf[:])
}

// PushU32 appends a little-endian uint32.
func (b *Buffer) PushU32(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	b.PushBytes(buf[:])
}

// PushI32 appends a little-endian int32, used for signed rel32
// displacements.
func (b *Buffer) PushI32(v int32) { b.PushU32(uint32(v)) }

// PushU64 appends a little-endian uint64.
func (b *Buffer) PushU64(v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	b.PushBytes(buf[:])
}

// PushString appends s's bytes with no terminator; callers that need a
// NUL-terminated name append PushByte(0) themselves.
func (b *Buffer) PushString(s string) { b.PushBytes([]byte(s)) }

// PushZeros appends n zero bytes.
func (b *Buffer) PushZeros(n int) {
	if n <= 0 {
		return
	}
	b.PushBytes(make([]byte, n))
}

// Align pads the raw cursor up to the next multiple of rawAlign with zero
// bytes, and independently bumps the virtual cursor up to the next
// multiple of virtAlign with no backing bytes — the gap between a
// section's raw size and its (larger) virtual size is implicitly
// zero-filled by the loader, exactly as spec §4.7 assumes. A zero or
// negative alignment is a no-op on that cursor.
func (b *Buffer) Align(rawAlign, virtAlign int) {
	if rawAlign > 0 {
		if rem := b.rawCursor % rawAlign; rem != 0 {
			n := rawAlign - rem
			b.raw = append(b.raw, make([]byte, n)...)
			b.rawCursor += n
		}
	}
	if virtAlign > 0 {
		if rem := b.virtCursor % virtAlign; rem != 0 {
			b.virtCursor += virtAlign - rem
		}
	}
}

// Bytes returns the raw bytes assembled so far. Meaningful only after an
// emit pass: a layout pass's bytes are real but thrown away by the next
// BeginPass call.
func (b *Buffer) Bytes() []byte { return b.raw }
