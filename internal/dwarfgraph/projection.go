package dwarfgraph

import (
	"fmt"
	"strings"
)

// TypeToC renders id as a C type-name string: qualifiers, base name,
// and pointer stars, in declaration order, with no space before the
// stars ("const int*", "struct foo**"). Used standalone for --types output and as a building block for
// SignatureToC.
func TypeToC(id TypeId, registry *TypeRegistry) string {
	t, ok := registry.Get(id)
	if !ok {
		return "<unresolved>"
	}

	var b strings.Builder

	if t.IsConst {
		b.WriteString("const ")
	}
	if t.IsVolatile {
		b.WriteString("volatile ")
	}
	b.WriteString(baseNameToC(t, registry))
	b.WriteString(strings.Repeat("*", t.PointerDepth))

	return b.String()
}

func baseNameToC(t *Type, registry *TypeRegistry) string {
	switch t.Kind {
	case KindPrimitive:
		return t.Primitive.Name

	case KindStruct:
		return "struct " + t.Struct.Name

	case KindUnion:
		return "union " + t.Union.Name

	case KindEnum:
		return t.Enum.Name

	case KindTypedef:
		return t.Typedef.Name

	case KindArray:
		return fmt.Sprintf("%s[%d]", TypeToC(t.Array.ElementTypeId, registry), t.Array.Count)

	case KindFunction:
		// Faithful reconstruction of the inner signature is explicitly
		// not a goal; a Function base kind always renders as this
		// placeholder regardless of its actual return/parameter types.
		return "void (*)(...)"

	default:
		return "<unknown>"
	}
}

// SignatureToC renders sig as a one-line C function declaration:
// "RET NAME(PARAMS);". An empty parameter list renders the literal
// void; a variadic signature appends ", ..."; a parameter with an
// empty name (DWARF carried no DW_AT_name) renders its type alone.
func SignatureToC(sig FunctionSignature, registry *TypeRegistry) string {
	ret := TypeToC(sig.ReturnType, registry)

	if len(sig.Parameters) == 0 && !sig.IsVariadic {
		return fmt.Sprintf("%s %s(void);", ret, sig.Name)
	}

	parts := make([]string, 0, len(sig.Parameters)+1)
	for _, p := range sig.Parameters {
		typeStr := TypeToC(p.TypeId, registry)
		if p.Name != "" {
			parts = append(parts, fmt.Sprintf("%s %s", typeStr, p.Name))
		} else {
			parts = append(parts, typeStr)
		}
	}
	if sig.IsVariadic {
		parts = append(parts, "...")
	}

	return fmt.Sprintf("%s %s(%s);", ret, sig.Name, strings.Join(parts, ", "))
}
