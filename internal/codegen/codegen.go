// Package codegen turns a finished analyzer.Result into FFI binding
// source for a scripting-runtime backend. The core hands it a closed
// AnalysisResult and never depends on the chosen backend; only this
// package and the CLI know backend names exist.
package codegen

import (
	"github.com/binaryinspect/dwarfsig/internal/analyzer"
	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
)

// Emit selects what a backend renders.
type Emit uint8

const (
	EmitFunctions Emit = iota
	EmitTypes
)

// Options configures a Generate call.
type Options struct {
	// LibraryPath is embedded into generated bindings as the runtime
	// path to the dynamic library the bindings load.
	LibraryPath string
	Emit        Emit
}

// Backend renders an analyzer.Result as binding source text.
type Backend interface {
	Name() string
	Generate(result *analyzer.Result, opts Options) (string, error)
}

var backends = map[string]func() Backend{
	"koffi": func() Backend { return &KoffiBackend{} },
}

// Resolve returns the named backend. Unknown names are a *dwarfgraph.ConfigError,
// matching --ffi-backend's "unknown values are a hard error" contract.
func Resolve(name string) (Backend, error) {
	ctor, ok := backends[name]
	if !ok {
		return nil, &dwarfgraph.ConfigError{Flag: "ffi-backend", Value: name, Reason: "unknown backend"}
	}
	return ctor(), nil
}
