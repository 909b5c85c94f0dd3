package container

import (
	"debug/dwarf"
	"debug/elf"
	"encoding/binary"
)

type elfContainer struct {
	f *elf.File
}

func (c *elfContainer) ByteOrder() binary.ByteOrder { return c.f.ByteOrder }

func (c *elfContainer) Section(name string) []byte {
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

func (c *elfContainer) DWARFData() (*dwarf.Data, error) {
	return c.f.DWARF()
}

func (c *elfContainer) ExportedFunctionSymbols() ([]string, error) {
	if dynSyms, err := c.f.DynamicSymbols(); err == nil && len(dynSyms) > 0 {
		return filterELFFunctionSymbols(dynSyms, false), nil
	}

	syms, err := c.f.Symbols()
	if err != nil {
		return nil, err
	}
	return filterELFFunctionSymbols(syms, true), nil
}

// filterELFFunctionSymbols keeps function-kind symbols with a defined
// section index. requireGlobal restricts to global-or-weak bindings,
// the condition that distinguishes an exported definition from an
// ordinary local helper in a static symbol table; the dynamic symbol
// table needs no such filter because every entry in it is already
// externally visible by construction.
func filterELFFunctionSymbols(syms []elf.Symbol, requireGlobal bool) []string {
	var names []string
	for _, s := range syms {
		if s.Name == "" {
			continue
		}
		if elf.ST_TYPE(s.Info) != elf.STT_FUNC {
			continue
		}
		if s.Section == elf.SHN_UNDEF {
			continue
		}
		if requireGlobal {
			bind := elf.ST_BIND(s.Info)
			if bind != elf.STB_GLOBAL && bind != elf.STB_WEAK {
				continue
			}
		}
		names = append(names, s.Name)
	}
	return names
}
