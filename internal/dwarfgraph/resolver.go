package dwarfgraph

import (
	"debug/dwarf"
	"fmt"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// TypeResolver walks DWARF type DIEs for a single compilation unit,
// populating a local TypeRegistry as it goes.
//
// The qualifier-unwinding loop is hand-rolled (pointer/const/volatile
// chains collapse into flat attributes on one Type record), but the
// underlying DIE-to-Go-value conversion reuses debug/dwarf's own
// (*dwarf.Data).Type, exactly as golang-debug/internal/gocore/dwarf.go's
// readDWARFTypes does: stdlib already resolves a DW_TAG_pointer_type /
// DW_TAG_const_type / ... chain into a typed Go value
// (*dwarf.PtrType, *dwarf.QualType, *dwarf.StructType, ...); this
// resolver's job is turning that into dwarfsig's content-addressed
// graph, not re-implementing DIE traversal stdlib already does well.
type TypeResolver struct {
	dwarfData *dwarf.Data
	registry  *TypeRegistry
	logger    *zap.Logger
}

// NewTypeResolver returns a resolver with an empty registry, reading
// types from d.
func NewTypeResolver(d *dwarf.Data, logger *zap.Logger) *TypeResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TypeResolver{dwarfData: d, registry: NewTypeRegistry(), logger: logger}
}

// Registry returns the per-compilation-unit registry this resolver has
// been populating.
func (r *TypeResolver) Registry() *TypeRegistry { return r.registry }

// Resolve resolves the type at a compilation-unit-local DWARF offset,
// returning its content-addressed TypeId. Idempotent: resolving the same
// offset twice returns the same TypeId without re-walking DWARF, via the
// registry's DWARF-offset index.
func (r *TypeResolver) Resolve(offset dwarf.Offset) (TypeId, error) {
	if t, ok := r.registry.GetByDwarfOffset(uint64(offset)); ok {
		return t.Id, nil
	}

	dt, err := r.dwarfData.Type(offset)
	if err != nil {
		// MissingReference: the DIE reference yields no entry.
		// Substitute the canonical void type and continue.
		r.logger.Debug("missing type reference, substituting void",
			zap.Uint64("offset", uint64(offset)), zap.Error(err))
		return r.registerVoid()
	}

	return r.resolveDwarfType(dt)
}

// resolveDwarfType converts an already-resolved stdlib dwarf.Type value
// into dwarfsig's content-addressed Type, registering it. Every
// dwarf.Type value's Common().Offset is populated by the stdlib reader
// regardless of how it was reached (top-level Resolve or a nested field
// reference), so this doubles as the same offset-indexed memoization
// Resolve uses.
func (r *TypeResolver) resolveDwarfType(dt dwarf.Type) (TypeId, error) {
	offset := uint64(dt.Common().Offset)
	if t, ok := r.registry.GetByDwarfOffset(offset); ok {
		return t.Id, nil
	}

	pointerDepth := 0
	isConst := false
	isVolatile := false
	cur := dt

unwind:
	for {
		switch x := cur.(type) {
		case *dwarf.PtrType:
			pointerDepth++
			cur = x.Type
		case *dwarf.QualType:
			switch x.Qual {
			case "const":
				isConst = true
			case "volatile":
				isVolatile = true
				// "restrict" carries no flag in the data model; the
				// chain is still followed through it.
			}
			cur = x.Type
		default:
			break unwind
		}
	}

	partial, err := r.extractBaseKind(cur, pointerDepth)
	if err != nil {
		return 0, err
	}

	partial.PointerDepth = pointerDepth
	partial.IsConst = isConst
	partial.IsVolatile = isVolatile
	partial.DwarfOffset = &offset

	return r.registry.Register(partial)
}

// extractBaseKind builds the kind-specific payload for cur, the DIE at
// the end of the qualifier/pointer chain. pointerDepth is needed here
// (not just by the caller) because a composite reached through a
// pointer is deliberately resolved shallow: see the cycle-breaking note
// on extractComposite.
func (r *TypeResolver) extractBaseKind(cur dwarf.Type, pointerDepth int) (Type, error) {
	switch bt := cur.(type) {
	case *dwarf.VoidType:
		return Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: "void", Size: 0, Alignment: 1}}, nil

	case *dwarf.CharType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.UcharType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.IntType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.UintType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.FloatType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.ComplexType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.BoolType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.AddrType:
		return primitiveFrom(bt.Common()), nil
	case *dwarf.UnspecifiedType:
		return primitiveFrom(bt.Common()), nil

	case *dwarf.StructType:
		return r.extractComposite(bt, pointerDepth)

	case *dwarf.EnumType:
		return r.extractEnum(bt)

	case *dwarf.ArrayType:
		return r.extractArray(bt)

	case *dwarf.TypedefType:
		return r.extractTypedef(bt)

	case *dwarf.FuncType:
		return r.extractFunction(bt)

	default:
		// UnknownTag: a DIE shape the resolver does not model.
		name := fmt.Sprintf("<unknown:%T>", cur)
		r.logger.Debug("unknown DWARF type shape", zap.String("type", name))
		return Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: name, Size: 0, Alignment: 1}}, nil
	}
}

func primitiveFrom(common *dwarf.CommonType) Type {
	size := int(common.ByteSize)
	if size < 0 {
		size = 0
	}
	alignment := size
	if alignment <= 0 {
		alignment = 1
	}
	return Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: common.Name, Size: size, Alignment: alignment}}
}

// extractComposite builds a Struct or Union payload from a DW_TAG_structure_type
// / DW_TAG_union_type / DW_TAG_class_type DIE (stdlib folds all three into
// dwarf.StructType, distinguished by the Kind field).
//
// Cycle-breaking: a composite reached through at least one pointer
// indirection (pointerDepth > 0) is resolved shallow — name and size
// only, no field list. This is what actually breaks a self-referential
// "struct S { S* next; }": the TypeId for "S*" never depends on S's
// field list, so it can be computed before S's own record (whose field
// list references "S*"'s TypeId) is built. This mirrors the existing
// is_opaque semantics for forward declarations: a pointer never needs
// its pointee's layout to be usable.
func (r *TypeResolver) extractComposite(bt *dwarf.StructType, pointerDepth int) (Type, error) {
	name := bt.StructName
	if name == "" {
		name = "<anonymous>"
	}
	isUnion := bt.Kind == "union"

	if pointerDepth > 0 {
		isOpaque := bt.ByteSize == 0 && bt.Incomplete
		if isUnion {
			return Type{Kind: KindUnion, Union: &UnionType{Name: name, Size: int(bt.ByteSize), Alignment: 1}}, nil
		}
		return Type{Kind: KindStruct, Struct: &StructType{Name: name, Size: int(bt.ByteSize), IsOpaque: isOpaque}}, nil
	}

	if isUnion {
		variants := make([]UnionField, 0, len(bt.Field))
		alignment := 1
		for _, f := range bt.Field {
			fieldId, err := r.resolveDwarfType(f.Type)
			if err != nil {
				return Type{}, errors.Wrapf(err, "union field %q", f.Name)
			}
			variants = append(variants, UnionField{Name: f.Name, TypeId: fieldId})
			if ft, ok := r.registry.Get(fieldId); ok {
				if a := alignmentOf(ft); a > alignment {
					alignment = a
				}
			}
		}
		return Type{Kind: KindUnion, Union: &UnionType{
			Name: name, Variants: variants, Size: int(bt.ByteSize), Alignment: alignment,
		}}, nil
	}

	isOpaque := bt.ByteSize == 0 && bt.Incomplete
	fields := make([]StructField, 0, len(bt.Field))
	maxFieldSize := 1
	for _, f := range bt.Field {
		fieldId, err := r.resolveDwarfType(f.Type)
		if err != nil {
			return Type{}, errors.Wrapf(err, "struct field %q", f.Name)
		}
		size := int(f.ByteSize)
		if size == 0 {
			if ft, ok := r.registry.Get(fieldId); ok {
				size = sizeOf(ft)
			}
		}
		if size > maxFieldSize {
			maxFieldSize = size
		}
		fields = append(fields, StructField{Name: f.Name, TypeId: fieldId, Offset: int(f.ByteOffset), Size: size})
	}
	alignment := 1
	if len(fields) > 0 {
		alignment = maxFieldSize
	}

	return Type{Kind: KindStruct, Struct: &StructType{
		Name: name, Fields: fields, Size: int(bt.ByteSize), Alignment: alignment, IsOpaque: isOpaque,
	}}, nil
}

// extractEnum builds an Enum payload. debug/dwarf's EnumType does not
// surface the enum DIE's own DW_AT_type (backing type), only its
// enumerators and byte size, so the backing type is read directly off
// the raw DIE via a second, offset-anchored reader pass.
func (r *TypeResolver) extractEnum(bt *dwarf.EnumType) (Type, error) {
	name := bt.EnumName
	if name == "" {
		name = "<anonymous>"
	}

	size := int(bt.ByteSize)
	if size <= 0 {
		size = 4
	}

	backingId, err := r.enumBackingType(bt.Common().Offset)
	if err != nil {
		return Type{}, err
	}

	variants := make([]EnumVariant, 0, len(bt.Val))
	for _, v := range bt.Val {
		variants = append(variants, EnumVariant{Name: v.Name, Value: v.Val})
	}

	return Type{Kind: KindEnum, Enum: &EnumType{
		Name: name, BackingId: backingId, Variants: variants, Size: size,
	}}, nil
}

func (r *TypeResolver) enumBackingType(offset dwarf.Offset) (TypeId, error) {
	reader := r.dwarfData.Reader()
	reader.Seek(offset)
	entry, err := reader.Next()
	if err != nil || entry == nil {
		return r.registerInt()
	}

	switch v := entry.Val(dwarf.AttrType).(type) {
	case dwarf.Offset:
		return r.Resolve(v)
	default:
		return r.registerInt()
	}
}

// extractArray builds an Array payload. debug/dwarf has already folded
// subrange children into Count (-1 for an unbounded array, per DWARF's
// x[] convention), so only the unknown-bound normalization (-1 -> 0,
// matching spec's "total size is 0 if unknown") is this layer's job.
func (r *TypeResolver) extractArray(bt *dwarf.ArrayType) (Type, error) {
	elemId, err := r.resolveDwarfType(bt.Type)
	if err != nil {
		return Type{}, errors.Wrap(err, "array element type")
	}

	count := int(bt.Count)
	if count < 0 {
		count = 0
	}

	size := 0
	if et, ok := r.registry.Get(elemId); ok {
		size = sizeOf(et) * count
	}

	return Type{Kind: KindArray, Array: &ArrayType{ElementTypeId: elemId, Count: count, Size: size}}, nil
}

func (r *TypeResolver) extractTypedef(bt *dwarf.TypedefType) (Type, error) {
	aliasedId, err := r.resolveDwarfType(bt.Type)
	if err != nil {
		return Type{}, errors.Wrapf(err, "typedef %q aliased type", bt.Name)
	}
	return Type{Kind: KindTypedef, Typedef: &TypedefType{Name: bt.Name, AliasedTypeId: aliasedId}}, nil
}

func (r *TypeResolver) extractFunction(bt *dwarf.FuncType) (Type, error) {
	var returnTypeId *TypeId
	if bt.ReturnType != nil {
		id, err := r.resolveDwarfType(bt.ReturnType)
		if err != nil {
			return Type{}, errors.Wrap(err, "function return type")
		}
		if voidId, err := r.registerVoid(); err == nil && id != voidId {
			returnTypeId = &id
		}
	}

	isVariadic := false
	params := make([]TypeId, 0, len(bt.ParamType))
	for _, pt := range bt.ParamType {
		if _, ok := pt.(*dwarf.DotDotDotType); ok {
			isVariadic = true
			continue
		}
		id, err := r.resolveDwarfType(pt)
		if err != nil {
			return Type{}, errors.Wrap(err, "function parameter type")
		}
		params = append(params, id)
	}

	return Type{Kind: KindFunction, Function: &FunctionType{
		ReturnTypeId: returnTypeId, ParameterTypeIds: params, IsVariadic: isVariadic,
	}}, nil
}

func (r *TypeResolver) registerVoid() (TypeId, error) {
	return r.registry.Register(Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: "void", Size: 0, Alignment: 1}})
}

func (r *TypeResolver) registerInt() (TypeId, error) {
	return r.registry.Register(Type{Kind: KindPrimitive, Primitive: &PrimitiveType{Name: "int", Size: 4, Alignment: 4}})
}

func sizeOf(t *Type) int {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.Size
	case KindStruct:
		return t.Struct.Size
	case KindUnion:
		return t.Union.Size
	case KindArray:
		return t.Array.Size
	case KindEnum:
		return t.Enum.Size
	default:
		return 0
	}
}

func alignmentOf(t *Type) int {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.Alignment
	case KindStruct:
		return t.Struct.Alignment
	case KindUnion:
		return t.Union.Alignment
	default:
		return 1
	}
}
