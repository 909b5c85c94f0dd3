package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/binaryinspect/dwarfsig/internal/analyzer"
	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
)

// KoffiBackend emits CommonJS bindings for koffi (https://koffi.dev), a
// native Node.js FFI library. Koffi's function and struct declarations
// accept C syntax directly, so this backend is mostly a thin wrapper
// around the core's own C projection: TypeToC output is valid koffi
// input verbatim and SignatureToC output is once its trailing semicolon
// is trimmed; there is no separate type-name dialect to maintain.
type KoffiBackend struct{}

func (KoffiBackend) Name() string { return "koffi" }

func (KoffiBackend) Generate(result *analyzer.Result, opts Options) (string, error) {
	switch opts.Emit {
	case EmitTypes:
		return generateKoffiTypes(result, opts)
	default:
		return generateKoffiFunctions(result, opts)
	}
}

func generateKoffiFunctions(result *analyzer.Result, opts Options) (string, error) {
	var b strings.Builder

	fmt.Fprintln(&b, "'use strict';")
	fmt.Fprintln(&b, "const koffi = require('koffi');")
	fmt.Fprintf(&b, "const lib = koffi.load(%q);\n\n", opts.LibraryPath)

	for _, sig := range result.Sorted() {
		proto := dwarfgraph.SignatureToC(sig, result.Registry)
		// koffi.func wants the prototype without the trailing
		// semicolon SignatureToC appends for C source readability.
		proto = strings.TrimSuffix(proto, ";")
		fmt.Fprintf(&b, "const %s = lib.func(%q);\n", sig.Name, proto)
	}

	fmt.Fprintln(&b)
	fmt.Fprintln(&b, "module.exports = {")
	for _, sig := range result.Sorted() {
		fmt.Fprintf(&b, "  %s,\n", sig.Name)
	}
	fmt.Fprintln(&b, "};")

	return b.String(), nil
}

func generateKoffiTypes(result *analyzer.Result, opts Options) (string, error) {
	var b strings.Builder

	fmt.Fprintln(&b, "'use strict';")
	fmt.Fprintln(&b, "const koffi = require('koffi');")
	fmt.Fprintln(&b)

	composites := make([]*dwarfgraph.Type, 0)
	for _, t := range result.Registry.All() {
		if t.PointerDepth != 0 {
			continue
		}
		if t.Kind == dwarfgraph.KindStruct && !t.Struct.IsOpaque && t.Struct.Name != "<anonymous>" {
			composites = append(composites, t)
		}
		if t.Kind == dwarfgraph.KindUnion && t.Union.Name != "<anonymous>" {
			composites = append(composites, t)
		}
	}
	sort.Slice(composites, func(i, j int) bool { return composites[i].Name() < composites[j].Name() })

	for _, t := range composites {
		switch t.Kind {
		case dwarfgraph.KindStruct:
			fmt.Fprintf(&b, "const %s = koffi.struct('%s', {\n", t.Struct.Name, t.Struct.Name)
			for _, f := range t.Struct.Fields {
				fmt.Fprintf(&b, "  %s: %q,\n", f.Name, dwarfgraph.TypeToC(f.TypeId, result.Registry))
			}
			fmt.Fprintln(&b, "});")
		case dwarfgraph.KindUnion:
			fmt.Fprintf(&b, "const %s = koffi.union('%s', {\n", t.Union.Name, t.Union.Name)
			for _, v := range t.Union.Variants {
				fmt.Fprintf(&b, "  %s: %q,\n", v.Name, dwarfgraph.TypeToC(v.TypeId, result.Registry))
			}
			fmt.Fprintln(&b, "});")
		}
		fmt.Fprintln(&b)
	}

	fmt.Fprintln(&b, "module.exports = {")
	for _, t := range composites {
		fmt.Fprintf(&b, "  %s,\n", t.Name())
	}
	fmt.Fprintln(&b, "};")

	return b.String(), nil
}
