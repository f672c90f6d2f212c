package linker_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatlang/flatc/internal/linker"
)

// walk emits a small symbolic program: a forward jump over a function body,
// then a push of its own address, exercising both a forward and a backward
// symbol reference across the two passes.
func walk(buf *linker.Buffer) {
	buf.Symbol("begin")
	buf.PushByte(0xe9) // jmp rel32, to "after"
	target := buf.Address("after")
	next := buf.VirtOffset() + 4
	buf.PushI32(int32(target.Virt - next))

	buf.Symbol("fn")
	buf.PushByte(0xc3) // ret

	buf.Symbol("after")
	back := buf.Address("fn")
	buf.PushU32(uint32(back.Virt))
	buf.Align(16, 16)
	buf.Symbol("end")
}

func TestTwoPassSymbolResolution(t *testing.T) {
	buf := linker.New()

	buf.BeginPass(true)
	walk(buf)
	require.True(t, buf.IsLayout())

	buf.BeginPass(false)
	walk(buf)
	require.False(t, buf.IsLayout())

	out := buf.Bytes()
	require.Equal(t, byte(0xe9), out[0])

	// jmp displacement at out[1:5] must point from after the jmp (offset 5)
	// to "after" (offset 6), i.e. displacement 1.
	disp := int32(out[1]) | int32(out[2])<<8 | int32(out[3])<<16 | int32(out[4])<<24
	require.Equal(t, int32(1), disp)

	// the pushed "fn" address (little-endian u32 at out[6:10]) must equal 5.
	fnAddr := uint32(out[6]) | uint32(out[7])<<8 | uint32(out[8])<<16 | uint32(out[9])<<24
	require.Equal(t, uint32(5), fnAddr)
}

func TestAlignPadsRawAndVirtIndependently(t *testing.T) {
	buf := linker.New()
	buf.BeginPass(true)
	buf.PushByte(1)
	buf.Align(8, 16)
	require.Equal(t, 8, buf.RawOffset())
	require.Equal(t, 16, buf.VirtOffset())
}

func TestSymbolDuringEmitIsNoOp(t *testing.T) {
	buf := linker.New()
	buf.BeginPass(true)
	buf.Symbol("x")
	buf.PushByte(1)

	buf.BeginPass(false)
	// Symbol("x") at offset 1 this pass must not overwrite the offset 0
	// recorded during layout.
	buf.PushByte(1)
	buf.Symbol("x")
	require.Equal(t, 0, buf.Address("x").Raw)
}
