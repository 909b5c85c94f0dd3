package container

import (
	"debug/dwarf"
	"debug/macho"
	"encoding/binary"
)

type machoContainer struct {
	f *macho.File
}

func (c *machoContainer) ByteOrder() binary.ByteOrder { return c.f.ByteOrder }

func (c *machoContainer) Section(name string) []byte {
	sec := c.f.Section(name)
	if sec == nil {
		return nil
	}
	data, err := sec.Data()
	if err != nil {
		return nil
	}
	return data
}

func (c *machoContainer) DWARFData() (*dwarf.Data, error) {
	return c.f.DWARF()
}

// Mach-O nlist type/attribute bits, per <mach-o/nlist.h>. debug/macho
// exposes the raw Symbol.Type byte but no named constants for these,
// so the masks are spelled out here rather than invented as API that
// does not exist.
const (
	machoNStab = 0xe0 // N_STAB: any bit set means a debugger symbol
	machoNType = 0x0e // N_TYPE: mask for the defined/undefined bits
	machoNSect = 0x0e // N_SECT: symbol is defined in a section
	machoNExt  = 0x01 // N_EXT: externally visible

	machoAttrPureInstructions = 0x80000000
	machoAttrSomeInstructions = 0x00000400
)

// ExportedFunctionSymbols returns externally-visible symbols defined in
// a code section. Mach-O has no separate "dynamic symbol table" the
// way ELF does: the whole symbol table's N_EXT bit plays that role, so
// there is no dynamic-then-static fallback tier here, just one pass.
func (c *machoContainer) ExportedFunctionSymbols() ([]string, error) {
	if c.f.Symtab == nil {
		return nil, nil
	}

	codeSections := make(map[uint8]bool)
	for i, sec := range c.f.Sections {
		if sec.Flags&machoAttrPureInstructions != 0 || sec.Flags&machoAttrSomeInstructions != 0 {
			codeSections[uint8(i+1)] = true
		}
	}

	var names []string
	for _, s := range c.f.Symtab.Syms {
		if s.Name == "" {
			continue
		}
		if s.Type&machoNStab != 0 {
			continue
		}
		if s.Type&machoNExt == 0 {
			continue
		}
		if s.Type&machoNType != machoNSect {
			continue
		}
		if !codeSections[s.Sect] {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}
