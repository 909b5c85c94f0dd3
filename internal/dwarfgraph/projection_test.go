package dwarfgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// Scenario 1 (spec §8): a parameterless, void-returning function.
func TestSignatureToC_VoidNoParams(t *testing.T) {
	r := NewTypeRegistry()
	voidId := mustRegister(t, r, Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: "void"}})

	sig := FunctionSignature{Name: "simple_void_function", ReturnType: voidId}

	require.Equal(t, "void simple_void_function(void);", SignatureToC(sig, r))
}

// Scenario 2: two named int parameters.
func TestSignatureToC_TwoIntParams(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())

	sig := FunctionSignature{
		Name:       "add_two_ints",
		ReturnType: intId,
		Parameters: []Parameter{{Name: "a", TypeId: intId}, {Name: "b", TypeId: intId}},
	}

	require.Equal(t, "int add_two_ints(int a, int b);", SignatureToC(sig, r))
}

// Scenario 3: a const char* parameter plus a variadic tail, matching the
// exact "const char*" star-adjacency spec calls out.
func TestSignatureToC_ConstCharPointerVariadic(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	constCharPtrId := mustRegister(t, r, Type{
		Kind: KindPrimitive, PointerDepth: 1, IsConst: true,
		Primitive: &PrimitiveType{Name: "char", Size: 1, Alignment: 1},
	})

	require.Equal(t, "const char*", TypeToC(constCharPtrId, r))

	sig := FunctionSignature{
		Name:       "printf",
		ReturnType: intId,
		Parameters: []Parameter{{Name: "fmt", TypeId: constCharPtrId}},
		IsVariadic: true,
	}

	require.Equal(t, "int printf(const char* fmt, ...);", SignatureToC(sig, r))
}

// Scenario 4: a function returning a struct by value.
func TestSignatureToC_StructReturn(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	pointId := mustRegister(t, r, Type{Kind: KindStruct, Struct: &StructType{
		Name: "Point",
		Fields: []StructField{
			{Name: "x", TypeId: intId, Size: 4},
			{Name: "y", TypeId: intId, Offset: 4, Size: 4},
		},
		Size: 8, Alignment: 4,
	}})

	require.Equal(t, "struct Point", TypeToC(pointId, r))

	sig := FunctionSignature{
		Name:       "create_point",
		ReturnType: pointId,
		Parameters: []Parameter{{Name: "x", TypeId: intId}, {Name: "y", TypeId: intId}},
	}

	require.Equal(t, "struct Point create_point(int x, int y);", SignatureToC(sig, r))
}

// Scenario 5: a typedef'd function-pointer parameter renders by its alias
// name, not by reconstructing the pointee's signature.
func TestSignatureToC_TypedefFunctionPointerParam(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	voidPtrId := mustRegister(t, r, Type{
		Kind: KindPrimitive, PointerDepth: 1,
		Primitive: &PrimitiveType{Name: "void"},
	})

	fnId := mustRegister(t, r, Type{
		Kind: KindFunction, PointerDepth: 1,
		Function: &FunctionType{ReturnTypeId: &intId, ParameterTypeIds: []TypeId{voidPtrId, voidPtrId}},
	})
	comparatorId := mustRegister(t, r, Type{Kind: KindTypedef, Typedef: &TypedefType{
		Name: "Comparator", AliasedTypeId: fnId,
	}})

	require.Equal(t, "Comparator", TypeToC(comparatorId, r))

	sig := FunctionSignature{
		Name:       "sort_array",
		ReturnType: voidPtrId,
		Parameters: []Parameter{{Name: "cmp", TypeId: comparatorId}},
	}

	require.Equal(t, "void* sort_array(Comparator cmp);", SignatureToC(sig, r))
}

// A bare function base kind (no typedef wrapping it) always renders the
// generic placeholder; faithful reconstruction is explicitly not a goal.
func TestTypeToC_BareFunctionPointerIsGenericPlaceholder(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	fnId := mustRegister(t, r, Type{
		Kind: KindFunction, PointerDepth: 1,
		Function: &FunctionType{ReturnTypeId: &intId, ParameterTypeIds: []TypeId{intId}},
	})

	require.Contains(t, TypeToC(fnId, r), "void (*)(...)")
}

// Scenario 6: an array parameter renders as ELEM[COUNT].
func TestTypeToC_Array(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	arrId := mustRegister(t, r, Type{Kind: KindArray, Array: &ArrayType{ElementTypeId: intId, Count: 4, Size: 16}})

	require.Equal(t, "int[4]", TypeToC(arrId, r))
}

// Enum, like Primitive and Typedef, renders as its bare name: no
// "enum " keyword prefix (that prefix is reserved for struct/union).
func TestTypeToC_EnumIsBareName(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())
	statusId := mustRegister(t, r, Type{Kind: KindEnum, Enum: &EnumType{
		Name: "Status", BackingId: intId,
		Variants: []EnumVariant{{Name: "Ok", Value: 0}, {Name: "Err", Value: 1}},
		Size:     4,
	}})

	require.Equal(t, "Status", TypeToC(statusId, r))

	sig := FunctionSignature{
		Name:       "get_status",
		ReturnType: statusId,
	}
	require.Equal(t, "Status get_status(void);", SignatureToC(sig, r))
}

func TestTypeToC_UnresolvedId(t *testing.T) {
	r := NewTypeRegistry()
	require.Equal(t, "<unresolved>", TypeToC(TypeId(12345), r))
}

func TestSignatureToC_UnnamedParameterRendersTypeAlone(t *testing.T) {
	r := NewTypeRegistry()
	intId := mustRegister(t, r, intType())

	sig := FunctionSignature{
		Name:       "anon_param",
		ReturnType: intId,
		Parameters: []Parameter{{TypeId: intId}},
	}

	require.Equal(t, "int anon_param(int);", SignatureToC(sig, r))
}
