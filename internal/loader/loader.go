// Package loader maps an input binary into memory for zero-copy parsing
// by the container and DWARF layers.
package loader

import (
	"os"

	"github.com/edsrzf/mmap-go"
	"github.com/pkg/errors"

	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
)

// File is a memory-mapped binary. Bytes() stays valid until Close is
// called; readers that slice into it (container sections, DWARF data)
// must not outlive it.
type File struct {
	path string
	f    *os.File
	m    mmap.MMap
}

// Open maps path read-only. The returned File's Bytes slice is backed
// by the mapping, not a copy.
func Open(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, &dwarfgraph.IoError{Path: path, Err: err}
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, &dwarfgraph.IoError{Path: path, Err: err}
	}
	if info.Size() == 0 {
		f.Close()
		return nil, &dwarfgraph.IoError{Path: path, Err: errors.New("empty file")}
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		f.Close()
		return nil, &dwarfgraph.IoError{Path: path, Err: err}
	}

	return &File{path: path, f: f, m: m}, nil
}

// Bytes returns the mapped contents.
func (file *File) Bytes() []byte { return file.m }

// Path returns the path File was opened from.
func (file *File) Path() string { return file.path }

// Close unmaps the file and releases the underlying descriptor.
func (file *File) Close() error {
	mErr := file.m.Unmap()
	fErr := file.f.Close()
	if mErr != nil {
		return errors.Wrapf(mErr, "unmap %s", file.path)
	}
	if fErr != nil {
		return errors.Wrapf(fErr, "close %s", file.path)
	}
	return nil
}
