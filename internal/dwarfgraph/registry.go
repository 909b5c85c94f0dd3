package dwarfgraph

import (
	"bytes"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
	"github.com/vmihailenco/msgpack/v5"
)

// TypeRegistry is content-addressed storage for Type records: it
// de-duplicates on Register, and indexes by DWARF offset and by declared
// name for the lookups the resolver and projection layer need.
//
// The registry itself never mutates a stored Type after insertion
// (spec invariant: immutable value semantics). Rewriting a record means
// constructing a new one and re-registering it, accepting a new TypeId.
type TypeRegistry struct {
	byId      map[TypeId]*Type
	byOffset  map[uint64]TypeId
	byName    map[string][]TypeId
}

// NewTypeRegistry returns an empty registry.
func NewTypeRegistry() *TypeRegistry {
	return &TypeRegistry{
		byId:     make(map[TypeId]*Type),
		byOffset: make(map[uint64]TypeId),
		byName:   make(map[string][]TypeId),
	}
}

// Register computes t's content-addressed TypeId and inserts it if no
// record with that ID exists yet. Registering a structurally identical
// Type twice is a no-op besides indexing: the length of the registry
// increments exactly once, and both calls return the same TypeId.
func (r *TypeRegistry) Register(t Type) (TypeId, error) {
	id, err := computeTypeId(&t)
	if err != nil {
		return 0, errors.Wrap(err, "compute type id")
	}

	if _, ok := r.byId[id]; ok {
		// Same structure already registered; still index this
		// DWARF offset against the existing id so future lookups
		// by offset short-circuit without re-resolving.
		if t.DwarfOffset != nil {
			r.byOffset[*t.DwarfOffset] = id
		}
		return id, nil
	}

	t.Id = id
	r.byId[id] = &t

	if t.DwarfOffset != nil {
		r.byOffset[*t.DwarfOffset] = id
	}

	if name := t.Name(); name != "" {
		r.byName[name] = append(r.byName[name], id)
	}

	return id, nil
}

// Get returns the record for id, if any.
func (r *TypeRegistry) Get(id TypeId) (*Type, bool) {
	t, ok := r.byId[id]
	return t, ok
}

// GetByDwarfOffset returns the record originally resolved from the given
// per-compilation-unit DWARF offset, if the resolver has seen it.
func (r *TypeRegistry) GetByDwarfOffset(offset uint64) (*Type, bool) {
	id, ok := r.byOffset[offset]
	if !ok {
		return nil, false
	}
	return r.Get(id)
}

// GetByName returns every record sharing a declared name. Distinct
// anonymous types, or types with the same name but different qualifiers
// (int vs int* vs const int), can all appear here; callers must not
// assume a single hit.
func (r *TypeRegistry) GetByName(name string) []*Type {
	ids := r.byName[name]
	out := make([]*Type, 0, len(ids))
	for _, id := range ids {
		if t, ok := r.byId[id]; ok {
			out = append(out, t)
		}
	}
	return out
}

// Len returns the number of distinct TypeIds stored.
func (r *TypeRegistry) Len() int { return len(r.byId) }

// All returns every record in the registry, in no particular order.
func (r *TypeRegistry) All() []*Type {
	out := make([]*Type, 0, len(r.byId))
	for _, t := range r.byId {
		out = append(out, t)
	}
	return out
}

// Merge unions other into r. Because identity is content-addressed,
// merge is commutative and idempotent: a colliding TypeId means a
// structurally-equal record, so the existing entry is kept unchanged.
func (r *TypeRegistry) Merge(other *TypeRegistry) {
	for id, t := range other.byId {
		if _, ok := r.byId[id]; !ok {
			r.byId[id] = t
		}
	}
	for offset, id := range other.byOffset {
		if _, ok := r.byOffset[offset]; !ok {
			r.byOffset[offset] = id
		}
	}
	for name, ids := range other.byName {
		r.byName[name] = dedupeIds(append(append([]TypeId{}, r.byName[name]...), ids...))
	}
}

func dedupeIds(ids []TypeId) []TypeId {
	seen := make(map[TypeId]bool, len(ids))
	out := ids[:0:0]
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// ClosureComplete reports whether every TypeId referenced by any field,
// variant, element, alias, return, or parameter slot in the registry
// resolves to a record also in the registry. It is used by tests and by
// the Analyzer as a final sanity check before handing out an
// AnalysisResult.
func (r *TypeRegistry) ClosureComplete() (missing []TypeId) {
	seenMissing := make(map[TypeId]bool)
	require := func(id TypeId) {
		if _, ok := r.byId[id]; !ok && !seenMissing[id] {
			seenMissing[id] = true
			missing = append(missing, id)
		}
	}
	for _, t := range r.byId {
		switch t.Kind {
		case KindStruct:
			for _, f := range t.Struct.Fields {
				require(f.TypeId)
			}
		case KindUnion:
			for _, v := range t.Union.Variants {
				require(v.TypeId)
			}
		case KindEnum:
			require(t.Enum.BackingId)
		case KindArray:
			require(t.Array.ElementTypeId)
		case KindTypedef:
			require(t.Typedef.AliasedTypeId)
		case KindFunction:
			if t.Function.ReturnTypeId != nil {
				require(*t.Function.ReturnTypeId)
			}
			for _, p := range t.Function.ParameterTypeIds {
				require(p)
			}
		}
	}
	return missing
}

// computeTypeId hashes the canonical serialization of t's structural
// content. Qualifier flags and pointer depth participate; dwarf_offset
// (provenance, not identity) never does.
func computeTypeId(t *Type) (TypeId, error) {
	payload, err := canonicalPayload(t)
	if err != nil {
		return 0, err
	}

	envelope := canonicalEnvelope{
		Kind:         t.Kind,
		PointerDepth: t.PointerDepth,
		IsConst:      t.IsConst,
		IsVolatile:   t.IsVolatile,
		Payload:      payload,
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	if err := enc.Encode(&envelope); err != nil {
		return 0, errors.Wrap(err, "encode canonical envelope")
	}

	return TypeId(xxhash.Sum64(buf.Bytes())), nil
}

// canonicalEnvelope is the outer, kind-independent shell of a type's
// canonical form. Payload is itself a fixint-order-preserving msgpack
// encoding of the kind-specific canonical struct below, so the overall
// hash input is a pure function of declared field order, never of field
// names or map iteration order.
type canonicalEnvelope struct {
	Kind         Kind
	PointerDepth int
	IsConst      bool
	IsVolatile   bool
	Payload      []byte
}

type canonicalPrimitive struct {
	Name      string
	Size      int
	Alignment int
}

type canonicalField struct {
	Name   string
	TypeId TypeId
	Offset int
	Size   int
}

type canonicalStruct struct {
	Name      string
	Fields    []canonicalField
	Size      int
	Alignment int
	IsOpaque  bool
}

type canonicalUnionVariant struct {
	Name   string
	TypeId TypeId
}

type canonicalUnion struct {
	Name      string
	Variants  []canonicalUnionVariant
	Size      int
	Alignment int
}

type canonicalEnumVariant struct {
	Name  string
	Value int64
}

type canonicalEnum struct {
	Name      string
	BackingId TypeId
	Variants  []canonicalEnumVariant
	Size      int
}

type canonicalArray struct {
	ElementTypeId TypeId
	Count         int
	Size          int
}

type canonicalTypedef struct {
	Name          string
	AliasedTypeId TypeId
}

type canonicalFunction struct {
	ReturnTypeId     *TypeId
	ParameterTypeIds []TypeId
	IsVariadic       bool
}

// canonicalPayload renders the kind-specific payload for t, sorting
// union and enum variants by name (set-like identity) and preserving
// struct field and function parameter order (sequence-like identity).
func canonicalPayload(t *Type) ([]byte, error) {
	var v interface{}

	switch t.Kind {
	case KindPrimitive:
		v = canonicalPrimitive{
			Name:      t.Primitive.Name,
			Size:      t.Primitive.Size,
			Alignment: t.Primitive.Alignment,
		}

	case KindStruct:
		fields := make([]canonicalField, len(t.Struct.Fields))
		for i, f := range t.Struct.Fields {
			fields[i] = canonicalField{Name: f.Name, TypeId: f.TypeId, Offset: f.Offset, Size: f.Size}
		}
		v = canonicalStruct{
			Name:      t.Struct.Name,
			Fields:    fields,
			Size:      t.Struct.Size,
			Alignment: t.Struct.Alignment,
			IsOpaque:  t.Struct.IsOpaque,
		}

	case KindUnion:
		variants := make([]canonicalUnionVariant, len(t.Union.Variants))
		for i, f := range t.Union.Variants {
			variants[i] = canonicalUnionVariant{Name: f.Name, TypeId: f.TypeId}
		}
		sort.Slice(variants, func(i, j int) bool { return variants[i].Name < variants[j].Name })
		v = canonicalUnion{
			Name:      t.Union.Name,
			Variants:  variants,
			Size:      t.Union.Size,
			Alignment: t.Union.Alignment,
		}

	case KindEnum:
		variants := make([]canonicalEnumVariant, len(t.Enum.Variants))
		for i, ev := range t.Enum.Variants {
			variants[i] = canonicalEnumVariant{Name: ev.Name, Value: ev.Value}
		}
		sort.Slice(variants, func(i, j int) bool { return variants[i].Name < variants[j].Name })
		v = canonicalEnum{
			Name:      t.Enum.Name,
			BackingId: t.Enum.BackingId,
			Variants:  variants,
			Size:      t.Enum.Size,
		}

	case KindArray:
		v = canonicalArray{
			ElementTypeId: t.Array.ElementTypeId,
			Count:         t.Array.Count,
			Size:          t.Array.Size,
		}

	case KindTypedef:
		v = canonicalTypedef{
			Name:          t.Typedef.Name,
			AliasedTypeId: t.Typedef.AliasedTypeId,
		}

	case KindFunction:
		params := append([]TypeId{}, t.Function.ParameterTypeIds...)
		v = canonicalFunction{
			ReturnTypeId:     t.Function.ReturnTypeId,
			ParameterTypeIds: params,
			IsVariadic:       t.Function.IsVariadic,
		}

	default:
		return nil, errors.Errorf("unknown type kind %v", t.Kind)
	}

	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	enc.UseArrayEncodedStructs(true)
	if err := enc.Encode(v); err != nil {
		return nil, errors.Wrap(err, "encode canonical payload")
	}
	return buf.Bytes(), nil
}
