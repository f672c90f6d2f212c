// Package types implements the compiler's interned type system: a closed
// sum type (Builtin, Struct, Pointer, Array, Named) plus the registry that
// interns Named/Pointer/Array types and hosts built-in scalars and structs.
package types

import "strings"

// Type is satisfied by every type variant. All Type values obtained from a
// Registry for the same structural type are interned: comparing the
// concrete Go pointers is valid identity comparison for everything except
// Named, which only resolves through the registry (see Registry.AreSame).
type Type interface {
	// String returns the canonical mangling spelling of the type.
	String() string
	// BitSize returns the type's size in bits. Named resolves through its
	// registry first and panics if the name is not registered.
	BitSize() int
	typeNode()
}

// Builtin is a built-in scalar: i8..i64, u8..u64, bool, char, pointer.
type Builtin struct {
	Name string
	Bits int
}

func (b *Builtin) String() string  { return b.Name }
func (b *Builtin) BitSize() int    { return b.Bits }
func (*Builtin) typeNode()         {}

// Member is one named, typed field of a Struct.
type Member struct {
	Name string
	Type Type
}

// Struct is a named aggregate. Its bit-size is the sum of its members' bit
// sizes, each rounded up to pointer size, matching the spec's §3 data
// model (no sub-pointer packing).
type Struct struct {
	Name      string
	Members   []Member
	ptrBits   int
}

func (s *Struct) String() string { return s.Name }

func (s *Struct) BitSize() int {
	total := 0
	for _, m := range s.Members {
		total += roundUpBits(m.Type.BitSize(), s.ptrBits)
	}
	return total
}

func (*Struct) typeNode() {}

func roundUpBits(bits, ptrBits int) int {
	if bits <= 0 {
		return ptrBits
	}
	if bits%ptrBits == 0 {
		return bits
	}
	return (bits/ptrBits + 1) * ptrBits
}

// Pointer is `base*`; its bit-size is always the registry's pointer size.
type Pointer struct {
	Base    Type
	ptrBits int
}

func (p *Pointer) String() string { return p.Base.String() + "*" }
func (p *Pointer) BitSize() int   { return p.ptrBits }
func (*Pointer) typeNode()        {}

// Array is `base[]`, a handle type (not inline storage); its bit-size is
// always the registry's pointer size.
type Array struct {
	Base    Type
	ptrBits int
}

func (a *Array) String() string { return a.Base.String() + "[]" }
func (a *Array) BitSize() int   { return a.ptrBits }
func (*Array) typeNode()        {}

// Named is an unresolved reference to a type by name. It holds no more
// than the name and a pointer back to the registry that can resolve it —
// resolution is always lazy, never canonicalized eagerly, since the
// registry may still be extended (struct declarations collected) after a
// Named value is created.
type Named struct {
	Name string
	reg  *Registry
}

func (n *Named) String() string { return n.Name }

func (n *Named) BitSize() int {
	resolved, ok := n.reg.Resolve(n.Name)
	if !ok {
		panic("types: BitSize of unresolved Named(" + n.Name + ")")
	}
	return resolved.BitSize()
}

func (*Named) typeNode() {}

// Registry interns Named, Pointer and Array types and hosts the Builtin
// and Struct types registered by the driver / struct declarations.
type Registry struct {
	ptrBits int

	namedTypes   map[string]*Named
	builtinTypes map[string]*Builtin
	structTypes  map[string]*Struct
	pointerTypes map[Type]*Pointer
	arrayTypes   map[Type]*Array
}

// NewRegistry creates a registry for a given pointer size in bits
// (default 64, per the spec's Windows x64 target).
func NewRegistry(ptrBits int) *Registry {
	return &Registry{
		ptrBits:      ptrBits,
		namedTypes:   make(map[string]*Named),
		builtinTypes: make(map[string]*Builtin),
		structTypes:  make(map[string]*Struct),
		pointerTypes: make(map[Type]*Pointer),
		arrayTypes:   make(map[Type]*Array),
	}
}

// PointerBits returns the registry's pointer size in bits.
func (r *Registry) PointerBits() int { return r.ptrBits }

// NamedType interns a Named reference by name.
func (r *Registry) NamedType(name string) *Named {
	if n, ok := r.namedTypes[name]; ok {
		return n
	}
	n := &Named{Name: name, reg: r}
	r.namedTypes[name] = n
	return n
}

// PointerOf interns the pointer-to-base type. Calling it twice with the
// same (identical) base Type value returns the identical *Pointer.
func (r *Registry) PointerOf(base Type) *Pointer {
	if p, ok := r.pointerTypes[base]; ok {
		return p
	}
	p := &Pointer{Base: base, ptrBits: r.ptrBits}
	r.pointerTypes[base] = p
	return p
}

// ArrayOf interns the array-of-base type.
func (r *Registry) ArrayOf(base Type) *Array {
	if a, ok := r.arrayTypes[base]; ok {
		return a
	}
	a := &Array{Base: base, ptrBits: r.ptrBits}
	r.arrayTypes[base] = a
	return a
}

// RegisterBuiltin registers (and interns) a built-in scalar type. Called
// by the driver to seed i8..i64, u8..u64, bool, char, pointer.
func (r *Registry) RegisterBuiltin(name string, bits int) *Builtin {
	if b, ok := r.builtinTypes[name]; ok {
		return b
	}
	b := &Builtin{Name: name, Bits: bits}
	r.builtinTypes[name] = b
	return b
}

// RegisterStruct registers (and interns) a struct type definition. Called
// while collecting top-level struct declarations, before any function
// body is semantically analyzed, so forward references resolve.
func (r *Registry) RegisterStruct(name string, members []Member) (*Struct, bool) {
	if _, exists := r.structTypes[name]; exists {
		return nil, false
	}
	s := &Struct{Name: name, Members: members, ptrBits: r.ptrBits}
	r.structTypes[name] = s
	return s, true
}

// Resolve returns the Builtin or Struct registered under name, or false if
// none exists. Used both by Named.BitSize and directly by the semantic
// pass when it needs the concrete type behind a type name.
func (r *Registry) Resolve(name string) (Type, bool) {
	if b, ok := r.builtinTypes[name]; ok {
		return b, true
	}
	if s, ok := r.structTypes[name]; ok {
		return s, true
	}
	return nil, false
}

// resolveOne fully resolves a Type: Named resolves through the registry
// (recursively, in case of chained aliases — the language has none today,
// but the resolution is written to be safe if that changes), everything
// else is already concrete.
func (r *Registry) resolveOne(t Type) (Type, bool) {
	for {
		n, ok := t.(*Named)
		if !ok {
			return t, true
		}
		resolved, ok := r.Resolve(n.Name)
		if !ok {
			return nil, false
		}
		t = resolved
	}
}

// AreSame resolves both sides through the registry and compares them
// structurally: Pointer/Array recurse on their base, Builtin/Struct
// compare by identity (interned), Named is never compared directly since
// resolveOne always strips it first.
func (r *Registry) AreSame(a, b Type) bool {
	ra, aok := r.resolveOne(a)
	rb, bok := r.resolveOne(b)
	if !aok || !bok {
		return false
	}
	switch x := ra.(type) {
	case *Builtin:
		y, ok := rb.(*Builtin)
		return ok && x == y
	case *Struct:
		y, ok := rb.(*Struct)
		return ok && x == y
	case *Pointer:
		y, ok := rb.(*Pointer)
		return ok && r.AreSame(x.Base, y.Base)
	case *Array:
		y, ok := rb.(*Array)
		return ok && r.AreSame(x.Base, y.Base)
	default:
		return false
	}
}

// ToString renders the canonical mangling spelling of a type. Builtin and
// Struct spell their own name; Pointer appends "*"; Array appends "[]".
// Named values render as their bare name, the same spelling as the Builtin
// or Struct they resolve to; the semantic pass mangles parameter and
// argument types without resolving them first.
func ToString(t Type) string {
	return t.String()
}

// MangledCallName builds the "name(t1,t2,...)" mangled form, with no
// trailing comma, used for both function symbol names and overload keys.
func MangledCallName(name string, argTypes []Type) string {
	var sb strings.Builder
	sb.WriteString(name)
	sb.WriteByte('(')
	for i, t := range argTypes {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(t.String())
	}
	sb.WriteByte(')')
	return sb.String()
}
