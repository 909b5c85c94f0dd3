// Package container identifies the object-file format of a mapped
// binary and exposes its DWARF sections and symbol tables uniformly
// across ELF, Mach-O, and PE.
package container

import (
	"bytes"
	"debug/dwarf"
	"debug/elf"
	"debug/macho"
	"debug/pe"
	"encoding/binary"

	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
)

// Container is a parsed object file: enough to hand a DWARF Reader its
// sections and a Symbol Reader its exported function names.
//
// Implementations wrap the stdlib debug/elf, debug/macho, and debug/pe
// readers directly, the same way golang-debug/internal/core/process.go
// uses debug/elf.NewFile and (*elf.File).DWARF for a core dump's main
// executable.
type Container interface {
	// ByteOrder reports the container's declared endianness.
	ByteOrder() binary.ByteOrder

	// Section returns the named section's uncompressed bytes, or nil
	// if the section is absent or failed to decompress. Never an
	// error: per the contract, a missing or broken section degrades
	// to empty bytes with a caller-logged warning.
	Section(name string) []byte

	// DWARFData returns the parsed DWARF sections as a *dwarf.Data.
	DWARFData() (*dwarf.Data, error)

	// ExportedFunctionSymbols returns function-kind symbol names
	// visible outside the object: dynamic symbols if the table is
	// non-empty, else globally-visible definitions from the regular
	// symbol table.
	ExportedFunctionSymbols() ([]string, error)
}

// Open sniffs path's magic number and returns the matching Container.
// Fails with *dwarfgraph.FormatError if no supported format matches.
func Open(path string, data []byte) (Container, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x7fELF")):
		f, err := elf.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, &dwarfgraph.FormatError{Path: path, Err: err}
		}
		return &elfContainer{f: f}, nil

	case bytes.HasPrefix(data, []byte("\xfe\xed\xfa\xce")),
		bytes.HasPrefix(data, []byte("\xfe\xed\xfa\xcf")),
		bytes.HasPrefix(data, []byte("\xce\xfa\xed\xfe")),
		bytes.HasPrefix(data, []byte("\xcf\xfa\xed\xfe")):
		f, err := macho.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, &dwarfgraph.FormatError{Path: path, Err: err}
		}
		return &machoContainer{f: f}, nil

	case bytes.HasPrefix(data, []byte("MZ")):
		f, err := pe.NewFile(bytes.NewReader(data))
		if err != nil {
			return nil, &dwarfgraph.FormatError{Path: path, Err: err}
		}
		return &peContainer{f: f}, nil

	default:
		return nil, &dwarfgraph.FormatError{Path: path, Err: errUnrecognizedFormat}
	}
}

var errUnrecognizedFormat = unrecognizedFormatError{}

type unrecognizedFormatError struct{}

func (unrecognizedFormatError) Error() string { return "unrecognized object file magic" }
