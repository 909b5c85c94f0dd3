package container

import (
	"debug/dwarf"
	"debug/pe"
	"encoding/binary"
)

type peContainer struct {
	f *pe.File
}

// PE is little-endian on every architecture it targets; the format
// carries no endianness field of its own.
func (c *peContainer) ByteOrder() binary.ByteOrder { return binary.LittleEndian }

func (c *peContainer) Section(name string) []byte {
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

func (c *peContainer) DWARFData() (*dwarf.Data, error) {
	return c.f.DWARF()
}

// COFF storage class / derived-type values, per the PE/COFF spec.
// debug/pe surfaces the raw Symbol fields but no named constants.
const (
	peClassExternal  = 2
	peDerivedTypeShift = 4
	peDerivedTypeMask  = 0xf
	peDTypeFunction    = 2
)

// ExportedFunctionSymbols returns externally-visible, function-typed,
// defined symbols from the COFF symbol table. debug/pe does not parse
// the PE Export Directory Table, so DLL export names beyond what the
// COFF table itself records are not reachable from this layer; callers
// needing the full export list must go through a separate mechanism.
func (c *peContainer) ExportedFunctionSymbols() ([]string, error) {
	var names []string
	for _, s := range c.f.Symbols {
		if s.Name == "" {
			continue
		}
		if s.StorageClass != peClassExternal {
			continue
		}
		if s.SectionNumber <= 0 {
			continue
		}
		derived := (int(s.Type) >> peDerivedTypeShift) & peDerivedTypeMask
		if derived != peDTypeFunction {
			continue
		}
		names = append(names, s.Name)
	}
	return names, nil
}
