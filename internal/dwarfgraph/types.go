// Package dwarfgraph resolves DWARF debugging information into a
// content-addressed graph of C types and function signatures.
//
// The shape of the walk (convert the stdlib debug/dwarf type union into a
// project-local representation, wire struct fields and array elements by
// reference) follows golang-debug/internal/gocore/dwarf.go's
// readDWARFTypes. What is new here is the identity layer: every Type's
// TypeId is a hash of its own structural content, so two Types built from
// different compilation units (or different processes entirely) compare
// equal by ID iff they are structurally identical.
package dwarfgraph

// TypeId is a content-addressed, opaque identity. Two Types with
// identical canonical form always hash to the same TypeId.
type TypeId uint64

// Kind identifies which payload a Type carries. Go has no sum types, so
// BaseTypeKind is a tagged union: exactly one of the payload pointers in
// Type matching Kind is non-nil.
type Kind uint8

const (
	KindPrimitive Kind = iota
	KindStruct
	KindUnion
	KindEnum
	KindArray
	KindTypedef
	KindFunction
)

func (k Kind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindStruct:
		return "struct"
	case KindUnion:
		return "union"
	case KindEnum:
		return "enum"
	case KindArray:
		return "array"
	case KindTypedef:
		return "typedef"
	case KindFunction:
		return "function"
	default:
		return "unknown"
	}
}

// Type is one C type use-site: a base kind plus the qualifier/pointer
// layer DWARF wraps around it. Identity (Id) is computed, never assigned
// by a caller — see TypeRegistry.Register.
type Type struct {
	Id           TypeId
	Kind         Kind
	PointerDepth int
	IsConst      bool
	IsVolatile   bool
	DwarfOffset  *uint64 // provenance only, not part of identity

	Primitive *PrimitiveType `json:",omitempty"`
	Struct    *StructType    `json:",omitempty"`
	Union     *UnionType     `json:",omitempty"`
	Enum      *EnumType      `json:",omitempty"`
	Array     *ArrayType     `json:",omitempty"`
	Typedef   *TypedefType   `json:",omitempty"`
	Function  *FunctionType  `json:",omitempty"`
}

// Name returns the declared name of the type's base kind, or "" for kinds
// without one (array, function, anonymous struct/union already carry the
// synthetic "<anonymous>" name and so are covered by the Struct/Union
// case).
func (t *Type) Name() string {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.Name
	case KindStruct:
		return t.Struct.Name
	case KindUnion:
		return t.Union.Name
	case KindEnum:
		return t.Enum.Name
	case KindTypedef:
		return t.Typedef.Name
	default:
		return ""
	}
}

// PrimitiveType is a leaf type: int, float, uint8_t, size_t, the
// canonical void, and so on.
type PrimitiveType struct {
	Name      string
	Size      int
	Alignment int
}

// StructField is one member of a Struct. Order matters: it is memory
// layout.
type StructField struct {
	Name   string
	TypeId TypeId
	Offset int
	Size   int
}

// StructType is a C struct or class. Field order is preserved in both the
// value and the canonical form used for hashing.
type StructType struct {
	Name      string
	Fields    []StructField
	Size      int
	Alignment int
	IsOpaque  bool // forward declaration only: no size, no fields
}

// UnionField is one variant of a Union.
type UnionField struct {
	Name   string
	TypeId TypeId
}

// UnionType is a C union. Variant order is not part of identity: a union
// with the same named variants in a different order hashes identically.
type UnionType struct {
	Name      string
	Variants  []UnionField
	Size      int
	Alignment int
}

// EnumVariant is one named, signed constant of an Enum.
type EnumVariant struct {
	Name  string
	Value int64
}

// EnumType is a C enum. Variant order is not part of identity, matching
// Union.
type EnumType struct {
	Name      string
	BackingId TypeId
	Variants  []EnumVariant
	Size      int
}

// ArrayType is a fixed-length array. DWARF arrays of unknown bound
// resolve to Count == 0.
type ArrayType struct {
	ElementTypeId TypeId
	Count         int
	Size          int
}

// TypedefType is a named alias. It is a distinct Type from its target:
// "typedef int my_int;" produces a Typedef record whose AliasedTypeId
// refers to the plain int record, not the int record itself.
type TypedefType struct {
	Name         string
	AliasedTypeId TypeId
}

// FunctionType is the base kind used for function-pointer targets (a
// Type with PointerDepth >= 1 and Kind == KindFunction). ReturnTypeId is
// nil for a void-returning function.
type FunctionType struct {
	ReturnTypeId    *TypeId
	ParameterTypeIds []TypeId
	IsVariadic      bool
}

// Parameter is one formal parameter of a FunctionSignature. Name is
// empty when DWARF carries no DW_AT_name for the formal_parameter DIE.
type Parameter struct {
	Name   string
	TypeId TypeId
}

// FunctionSignature is one subprogram definition extracted from a
// compilation unit.
type FunctionSignature struct {
	Name       string
	ReturnType TypeId
	Parameters []Parameter
	IsVariadic bool
	IsExported bool
}
