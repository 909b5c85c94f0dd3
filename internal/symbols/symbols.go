// Package symbols enumerates exported function names from a parsed
// container and answers the underscore-probing question the function
// extractor needs for export filtering.
package symbols

// Source enumerates exported function symbol names; container.Container
// satisfies it. Declaring it here keeps this package from importing
// internal/container, which imports internal/dwarfgraph, which in turn
// imports this package.
type Source interface {
	ExportedFunctionSymbols() ([]string, error)
}

// Set is the result of enumerating a container's exported function
// symbols: a lookup table, not an ordered list, since callers only
// ever ask "is this name exported".
type Set map[string]bool

// Read enumerates c's exported function symbols.
func Read(c Source) (Set, error) {
	names, err := c.ExportedFunctionSymbols()
	if err != nil {
		return nil, err
	}
	set := make(Set, len(names))
	for _, n := range names {
		set[n] = true
	}
	return set, nil
}

// Exported reports whether name is visible in the set, probing both
// the bare name and the underscore-prefixed form. Some platforms
// prefix every C symbol with an underscore at the linker level; the
// symbol table stores that prefix, but DWARF names never carry it, so
// a DWARF-derived name must be checked both ways.
func (s Set) Exported(name string) bool {
	if s == nil {
		return false
	}
	if s[name] {
		return true
	}
	return s["_"+name]
}
