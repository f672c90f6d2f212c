package types_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/flatlang/flatc/internal/types"
)

func newRegistry() *types.Registry {
	reg := types.NewRegistry(64)
	reg.RegisterBuiltin("i64", 64)
	reg.RegisterBuiltin("i8", 8)
	reg.RegisterBuiltin("bool", 1)
	return reg
}

func TestBuiltinInterning(t *testing.T) {
	reg := newRegistry()
	a, aok := reg.Resolve("i64")
	b, bok := reg.Resolve("i64")
	require.True(t, aok)
	require.True(t, bok)
	require.Same(t, a, b)
}

func TestNamedResolvesThroughRegistry(t *testing.T) {
	reg := newRegistry()
	n := reg.NamedType("i64")
	require.True(t, reg.AreSame(n, reg.NamedType("i64")))
	require.Equal(t, 64, n.BitSize())
}

func TestPointerAndArrayInterning(t *testing.T) {
	reg := newRegistry()
	i64, _ := reg.Resolve("i64")
	p1 := reg.PointerOf(i64)
	p2 := reg.PointerOf(i64)
	require.Same(t, p1, p2)
	require.Equal(t, 64, p1.BitSize())
	require.Equal(t, "i64*", p1.String())

	arr := reg.ArrayOf(i64)
	require.Equal(t, "i64[]", arr.String())
	require.Equal(t, 64, arr.BitSize())
}

func TestAreSameStructural(t *testing.T) {
	reg := newRegistry()
	i64, _ := reg.Resolve("i64")
	i8, _ := reg.Resolve("i8")

	require.True(t, reg.AreSame(reg.PointerOf(i64), reg.PointerOf(i64)))
	require.False(t, reg.AreSame(reg.PointerOf(i64), reg.PointerOf(i8)))
	require.False(t, reg.AreSame(i64, i8))
}

func TestStructBitSizeRoundsUpToPointerWidth(t *testing.T) {
	reg := newRegistry()
	i8, _ := reg.Resolve("i8")
	i64, _ := reg.Resolve("i64")
	s, ok := reg.RegisterStruct("Pair", []types.Member{
		{Name: "a", Type: i8},
		{Name: "b", Type: i64},
	})
	require.True(t, ok)
	require.Equal(t, 128, s.BitSize()) // two pointer-width slots, no packing

	_, ok = reg.RegisterStruct("Pair", nil)
	require.False(t, ok, "re-registering the same struct name must fail")
}

func TestMangledCallName(t *testing.T) {
	reg := newRegistry()
	i64, _ := reg.Resolve("i64")
	i8, _ := reg.Resolve("i8")
	require.Equal(t, "add(i64,i8)", types.MangledCallName("add", []types.Type{i64, i8}))
	require.Equal(t, "nop()", types.MangledCallName("nop", nil))
}
