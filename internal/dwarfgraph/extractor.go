package dwarfgraph

import (
	"debug/dwarf"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/binaryinspect/dwarfsig/internal/symbols"
)

// FunctionExtractor walks subprogram DIEs in a compilation unit and
// produces FunctionSignatures, resolving parameter and return types
// through a TypeResolver.
//
// debug/dwarf models pointer/struct/array/typedef chains through its own
// Type() recursion (see TypeResolver), but has no equivalent convenience
// for subprograms: there is no (*dwarf.Data).Function(offset). This
// extractor does the direct-children-only DIE walk by hand, in the
// style of UNIVERSAL-IT-SYSTEMS-debug/dwarf/type.go's next() closure
// (read TagSubprogram's own children, formal_parameter and
// unspecified_parameters only, skipping each child's grandchildren with
// SkipChildren).
type FunctionExtractor struct {
	dwarfData *dwarf.Data
	resolver  *TypeResolver
	exported  symbols.Set
	logger    *zap.Logger
}

// NewFunctionExtractor returns an extractor sharing resolver's registry.
// exported is the set produced by the Symbol Reader; a nil set just
// means every signature reports IsExported == false, it never panics.
func NewFunctionExtractor(d *dwarf.Data, resolver *TypeResolver, exported symbols.Set, logger *zap.Logger) *FunctionExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FunctionExtractor{dwarfData: d, resolver: resolver, exported: exported, logger: logger}
}

// ExtractUnit walks every subprogram DIE in cu's subtree, including ones
// nested inside other DIEs such as namespaces (cu must be
// the entry returned by a compilation unit's Reader.Next, with
// Tag == dwarf.TagCompileUnit) and returns one FunctionSignature per
// concrete (non-declaration) definition.
func (x *FunctionExtractor) ExtractUnit(reader *dwarf.Reader, cu *dwarf.Entry) ([]FunctionSignature, error) {
	var sigs []FunctionSignature

	// depth tracks how many open child lists we are nested inside,
	// below cu itself. subprogram subtrees are consumed whole by
	// extractSubprogram, so they never contribute to this count; every
	// other DIE with children is descended into, so a subprogram
	// nested inside a namespace or lexical_block is still found.
	depth := 0

	for {
		entry, err := reader.Next()
		if err != nil {
			return sigs, errors.Wrap(err, "read DIE")
		}
		if entry == nil {
			break
		}
		if entry.Tag == 0 {
			depth--
			if depth < 0 {
				break
			}
			continue
		}

		if entry.Tag == dwarf.TagSubprogram {
			sig, ok, err := x.extractSubprogram(reader, entry)
			if err != nil {
				x.logger.Warn("skipping subprogram", zap.Error(err))
				continue
			}
			if ok {
				sigs = append(sigs, sig)
			}
			continue
		}

		if entry.Children {
			depth++
		}
	}

	return sigs, nil
}

// extractSubprogram converts one DW_TAG_subprogram DIE, plus its direct
// formal_parameter / unspecified_parameters children, into a
// FunctionSignature. Declarations (prototypes with no body, identified
// by DW_AT_declaration) are skipped: ok is false and the entry's
// children (if any) are consumed here with SkipChildren, as they are for
// artificial and nameless subprograms.
func (x *FunctionExtractor) extractSubprogram(reader *dwarf.Reader, entry *dwarf.Entry) (FunctionSignature, bool, error) {
	isDeclaration, _ := entry.Val(dwarf.AttrDeclaration).(bool)
	if isDeclaration {
		if entry.Children {
			reader.SkipChildren()
		}
		return FunctionSignature{}, false, nil
	}

	if artificial, _ := entry.Val(dwarf.AttrArtificial).(bool); artificial {
		if entry.Children {
			reader.SkipChildren()
		}
		return FunctionSignature{}, false, nil
	}

	name := x.resolveFunctionName(entry)
	if name == "" {
		if entry.Children {
			reader.SkipChildren()
		}
		return FunctionSignature{}, false, nil
	}

	returnType, err := x.resolveEntryType(entry)
	if err != nil {
		return FunctionSignature{}, false, err
	}

	var params []Parameter
	isVariadic := false

	if entry.Children {
		for {
			child, err := reader.Next()
			if err != nil {
				return FunctionSignature{}, false, errors.Wrap(err, "read formal parameter")
			}
			if child == nil || child.Tag == 0 {
				break
			}

			switch child.Tag {
			case dwarf.TagFormalParameter:
				if artificial, _ := child.Val(dwarf.AttrArtificial).(bool); artificial {
					if child.Children {
						reader.SkipChildren()
					}
					continue
				}
				paramName, _ := child.Val(dwarf.AttrName).(string)
				paramTypeId, err := x.resolveEntryType(child)
				if err != nil {
					return FunctionSignature{}, false, err
				}
				params = append(params, Parameter{Name: paramName, TypeId: paramTypeId})
			case dwarf.TagUnspecifiedParameters:
				isVariadic = true
			}

			if child.Children {
				reader.SkipChildren()
			}
		}
	}

	return FunctionSignature{
		Name:       name,
		ReturnType: returnType,
		Parameters: params,
		IsVariadic: isVariadic,
		IsExported: x.exported.Exported(name),
	}, true, nil
}

// resolveEntryType resolves a DIE's DW_AT_type attribute, defaulting to
// the canonical void type when absent (a subprogram or parameter with
// no type attribute is void, not missing).
func (x *FunctionExtractor) resolveEntryType(entry *dwarf.Entry) (TypeId, error) {
	off, ok := entry.Val(dwarf.AttrType).(dwarf.Offset)
	if !ok {
		return x.resolver.registerVoid()
	}
	return x.resolver.Resolve(off)
}

// resolveFunctionName applies the name-resolution order a DWARF
// producer may split across: prefer the linkage name (mangled or not,
// but stable), then the plain name, then follow DW_AT_specification or
// DW_AT_abstract_origin to an entry carrying one of the above.
//
// debug/dwarf does not auto-follow specification/abstract_origin for
// subprograms the way Type() auto-follows type references, so this
// does the hop itself with a throwaway Reader positioned by Seek. A
// deeper chain of specifications is not modeled: real producers emit
// at most one hop in practice.
func (x *FunctionExtractor) resolveFunctionName(entry *dwarf.Entry) string {
	if name, ok := entry.Val(dwarf.AttrLinkageName).(string); ok && name != "" {
		return name
	}
	if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
		return name
	}

	if off, ok := entry.Val(dwarf.AttrSpecification).(dwarf.Offset); ok {
		if name := x.nameAtOffset(off); name != "" {
			return name
		}
	}
	if off, ok := entry.Val(dwarf.AttrAbstractOrigin).(dwarf.Offset); ok {
		if name := x.nameAtOffset(off); name != "" {
			return name
		}
	}

	return ""
}

func (x *FunctionExtractor) nameAtOffset(off dwarf.Offset) string {
	reader := x.dwarfData.Reader()
	reader.Seek(off)
	entry, err := reader.Next()
	if err != nil || entry == nil {
		return ""
	}
	if name, ok := entry.Val(dwarf.AttrLinkageName).(string); ok && name != "" {
		return name
	}
	if name, ok := entry.Val(dwarf.AttrName).(string); ok && name != "" {
		return name
	}
	return ""
}
