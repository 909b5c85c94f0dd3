package dwarfgraph

import (
	"debug/dwarf"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newResolver() *TypeResolver {
	return NewTypeResolver(nil, nil)
}

func dwarfInt(offset dwarf.Offset, name string, size int64) *dwarf.IntType {
	it := &dwarf.IntType{}
	it.Offset = offset
	it.Name = name
	it.ByteSize = size
	return it
}

func TestResolvePrimitive(t *testing.T) {
	r := newResolver()

	id, err := r.resolveDwarfType(dwarfInt(1, "int", 4))
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, KindPrimitive, ty.Kind)
	assert.Equal(t, "int", ty.Primitive.Name)
	assert.Equal(t, 4, ty.Primitive.Size)
	assert.Equal(t, 0, ty.PointerDepth)
}

func TestResolvePointerAccumulatesDepth(t *testing.T) {
	r := newResolver()

	inner := dwarfInt(1, "int", 4)
	p1 := &dwarf.PtrType{Type: inner}
	p1.Offset = 2
	p2 := &dwarf.PtrType{Type: p1}
	p2.Offset = 3

	id, err := r.resolveDwarfType(p2)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, 2, ty.PointerDepth)
	assert.Equal(t, KindPrimitive, ty.Kind)
	assert.Equal(t, "int", ty.Primitive.Name)
}

func TestResolveConstVolatileQualifiers(t *testing.T) {
	r := newResolver()

	base := dwarfInt(1, "char", 1)
	constQual := &dwarf.QualType{Qual: "const", Type: base}
	constQual.Offset = 2
	ptr := &dwarf.PtrType{Type: constQual}
	ptr.Offset = 3

	id, err := r.resolveDwarfType(ptr)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.True(t, ty.IsConst)
	assert.False(t, ty.IsVolatile)
	assert.Equal(t, 1, ty.PointerDepth)
	assert.Equal(t, "char", ty.Primitive.Name)
}

func TestResolveStructWithFields(t *testing.T) {
	r := newResolver()

	xField := &dwarf.StructField{Name: "x", Type: dwarfInt(1, "int", 4), ByteOffset: 0, ByteSize: 4}
	yField := &dwarf.StructField{Name: "y", Type: dwarfInt(2, "int", 4), ByteOffset: 4, ByteSize: 4}

	s := &dwarf.StructType{StructName: "Point", Kind: "struct", Field: []*dwarf.StructField{xField, yField}}
	s.Offset = 10
	s.ByteSize = 8

	id, err := r.resolveDwarfType(s)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	require.Equal(t, KindStruct, ty.Kind)
	assert.Equal(t, "Point", ty.Struct.Name)
	assert.False(t, ty.Struct.IsOpaque)
	require.Len(t, ty.Struct.Fields, 2)
	assert.Equal(t, "x", ty.Struct.Fields[0].Name)
	assert.Equal(t, "y", ty.Struct.Fields[1].Name)
	assert.Equal(t, 8, ty.Struct.Size)
}

// A self-referential struct ("struct S { S *next; }") must resolve
// without infinite recursion: the pointer-to-S record is hashed shallow
// (name/size only) so its identity never depends on S's own field list.
func TestResolveSelfReferentialStructBreaksCycle(t *testing.T) {
	r := newResolver()

	s := &dwarf.StructType{StructName: "S", Kind: "struct"}
	s.Offset = 10
	s.ByteSize = 8

	ptrToS := &dwarf.PtrType{Type: s}
	ptrToS.Offset = 11

	nextField := &dwarf.StructField{Name: "next", Type: ptrToS, ByteOffset: 0, ByteSize: 8}
	s.Field = []*dwarf.StructField{nextField}

	id, err := r.resolveDwarfType(s)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	require.Len(t, ty.Struct.Fields, 1)

	nextId := ty.Struct.Fields[0].TypeId
	nextTy, ok := r.Registry().Get(nextId)
	require.True(t, ok)
	assert.Equal(t, 1, nextTy.PointerDepth)
	assert.Equal(t, KindStruct, nextTy.Kind)
	assert.Equal(t, "S", nextTy.Struct.Name)
	// S carries a known size and is not a bare declaration, so the
	// pointer-reached shallow record is not opaque; only the field list
	// is omitted, which is what actually breaks the cycle.
	assert.False(t, nextTy.Struct.IsOpaque)
	assert.Empty(t, nextTy.Struct.Fields)
	assert.NotEqual(t, id, nextId, "S and S* must be distinct records")
}

// A struct reached only through a forward declaration (no byte size, no
// definition seen) is genuinely opaque even through a pointer, matching
// the same declaration+size rule the non-pointer branch uses.
func TestResolveOpaqueForwardDeclarationThroughPointer(t *testing.T) {
	r := newResolver()

	decl := &dwarf.StructType{StructName: "Opaque", Kind: "struct", Incomplete: true}
	decl.Offset = 20
	decl.ByteSize = 0

	ptr := &dwarf.PtrType{Type: decl}
	ptr.Offset = 21

	id, err := r.resolveDwarfType(ptr)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, 1, ty.PointerDepth)
	assert.True(t, ty.Struct.IsOpaque)
}

// An ordinary, fully-defined struct referenced via a pointer with no
// cycle at all must not be mislabeled opaque either.
func TestResolveNonOpaqueStructThroughPointer(t *testing.T) {
	r := newResolver()

	point := &dwarf.StructType{StructName: "Point", Kind: "struct", Field: []*dwarf.StructField{
		{Name: "x", Type: dwarfInt(1, "int", 4), ByteOffset: 0, ByteSize: 4},
	}}
	point.Offset = 30
	point.ByteSize = 4

	ptr := &dwarf.PtrType{Type: point}
	ptr.Offset = 31

	id, err := r.resolveDwarfType(ptr)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, 1, ty.PointerDepth)
	assert.False(t, ty.Struct.IsOpaque)
}

func TestResolveTypedef(t *testing.T) {
	r := newResolver()

	td := &dwarf.TypedefType{Type: dwarfInt(1, "int", 4)}
	td.Offset = 5
	td.Name = "my_int"

	id, err := r.resolveDwarfType(td)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	require.Equal(t, KindTypedef, ty.Kind)
	assert.Equal(t, "my_int", ty.Typedef.Name)

	aliased, ok := r.Registry().Get(ty.Typedef.AliasedTypeId)
	require.True(t, ok)
	assert.Equal(t, "int", aliased.Primitive.Name)
	assert.NotEqual(t, id, ty.Typedef.AliasedTypeId)
}

func TestResolveArrayUnknownBoundIsZero(t *testing.T) {
	r := newResolver()

	at := &dwarf.ArrayType{Type: dwarfInt(1, "int", 4), Count: -1}
	at.Offset = 5

	id, err := r.resolveDwarfType(at)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, 0, ty.Array.Count)
	assert.Equal(t, 0, ty.Array.Size)
}

func TestResolveArrayKnownBound(t *testing.T) {
	r := newResolver()

	at := &dwarf.ArrayType{Type: dwarfInt(1, "int", 4), Count: 4}
	at.Offset = 6

	id, err := r.resolveDwarfType(at)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Equal(t, 4, ty.Array.Count)
	assert.Equal(t, 16, ty.Array.Size)
}

func TestResolveFunctionVariadic(t *testing.T) {
	r := newResolver()

	ft := &dwarf.FuncType{
		ReturnType: dwarfInt(1, "int", 4),
		ParamType:  []dwarf.Type{dwarfPtrToChar(2, 3), &dwarf.DotDotDotType{}},
	}
	ft.Offset = 7

	id, err := r.resolveDwarfType(ft)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	require.Equal(t, KindFunction, ty.Kind)
	assert.True(t, ty.Function.IsVariadic)
	require.Len(t, ty.Function.ParameterTypeIds, 1)
	require.NotNil(t, ty.Function.ReturnTypeId)
}

func TestResolveVoidReturnIsNilReturnTypeId(t *testing.T) {
	r := newResolver()

	voidRet := &dwarf.VoidType{}
	voidRet.Offset = 1

	ft := &dwarf.FuncType{ReturnType: voidRet}
	ft.Offset = 2

	id, err := r.resolveDwarfType(ft)
	require.NoError(t, err)

	ty, ok := r.Registry().Get(id)
	require.True(t, ok)
	assert.Nil(t, ty.Function.ReturnTypeId)
}

func TestResolveIsMemoizedByOffset(t *testing.T) {
	r := newResolver()

	it := dwarfInt(42, "int", 4)
	id1, err := r.resolveDwarfType(it)
	require.NoError(t, err)

	before := r.Registry().Len()
	id2, err := r.resolveDwarfType(it)
	require.NoError(t, err)

	assert.Equal(t, id1, id2)
	assert.Equal(t, before, r.Registry().Len())
}

func dwarfPtrToChar(ptrOffset, charOffset dwarf.Offset) *dwarf.PtrType {
	c := dwarfInt(charOffset, "char", 1)
	p := &dwarf.PtrType{Type: c}
	p.Offset = ptrOffset
	return p
}
