// Command dwarfsig extracts C function signatures and their type
// closure from a binary's DWARF debug information, printing either a
// default C-declaration listing, JSON, or FFI binding source.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/binaryinspect/dwarfsig/internal/analyzer"
	"github.com/binaryinspect/dwarfsig/internal/codegen"
	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
	"github.com/binaryinspect/dwarfsig/internal/logging"
)

type cliOptions struct {
	all         bool
	quiet       bool
	verbose     int
	json        bool
	js          bool
	emitTypes   bool
	libraryPath string
	ffiBackend  string
}

func main() {
	opts := cliOptions{ffiBackend: "koffi"}

	root := &cobra.Command{
		Use:   "dwarfsig <binary>",
		Short: "Extract C function signatures and types from DWARF debug info",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(args[0], opts)
		},
		SilenceUsage: true,
	}

	flags := root.Flags()
	flags.BoolVar(&opts.all, "all", false, "include non-exported functions")
	flags.BoolVarP(&opts.quiet, "quiet", "q", false, "suppress info-level diagnostics")
	flags.CountVarP(&opts.verbose, "verbose", "v", "raise verbosity (repeatable)")
	flags.BoolVarP(&opts.json, "json", "j", false, "emit JSON")
	flags.BoolVar(&opts.js, "js", false, "emit FFI bindings source")
	flags.Bool("types", false, "codegen emits type definitions")
	flags.Bool("functions", false, "codegen emits function bindings (default)")
	flags.StringVar(&opts.libraryPath, "library-path", "", "dynamic library path embedded in generated bindings")
	flags.StringVar(&opts.ffiBackend, "ffi-backend", "koffi", "FFI codegen backend")

	root.PreRunE = func(cmd *cobra.Command, args []string) error {
		opts.emitTypes, _ = flags.GetBool("types")
		// An unknown --ffi-backend is a ConfigError, reported before
		// any analysis work begins.
		if _, err := codegen.Resolve(opts.ffiBackend); err != nil {
			return err
		}
		return nil
	}

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "dwarfsig:", err)
		os.Exit(1)
	}
}

func run(path string, opts cliOptions) error {
	logger, err := logging.New(opts.verbose, opts.quiet)
	if err != nil {
		return err
	}
	defer logger.Sync()

	result, err := analyzer.Analyze(path, analyzer.Options{IncludeAll: opts.all, Logger: logger})
	if err != nil {
		return err
	}

	for _, w := range result.Warnings {
		logger.Warn(w)
	}

	if opts.js {
		return emitBindings(result, opts)
	}
	if opts.json {
		return emitJSON(result)
	}
	return emitDefault(result)
}

func emitBindings(result *analyzer.Result, opts cliOptions) error {
	backend, err := codegen.Resolve(opts.ffiBackend)
	if err != nil {
		return err
	}

	emit := codegen.EmitFunctions
	if opts.emitTypes {
		emit = codegen.EmitTypes
	}

	out, err := backend.Generate(result, codegen.Options{LibraryPath: opts.libraryPath, Emit: emit})
	if err != nil {
		return err
	}
	fmt.Println(out)
	return nil
}

type jsonType struct {
	Id           dwarfgraph.TypeId `json:"id"`
	Kind         string            `json:"kind"`
	PointerDepth int               `json:"pointer_depth"`
	IsConst      bool              `json:"is_const"`
	IsVolatile   bool              `json:"is_volatile"`
	Name         string            `json:"name,omitempty"`
}

type jsonParameter struct {
	Name   string            `json:"name"`
	TypeId dwarfgraph.TypeId `json:"type_id"`
}

type jsonSignature struct {
	Name       string            `json:"name"`
	ReturnType dwarfgraph.TypeId `json:"return_type"`
	Parameters []jsonParameter   `json:"parameters"`
	IsVariadic bool              `json:"is_variadic"`
	IsExported bool              `json:"is_exported"`
}

type jsonOutput struct {
	Types     []jsonType      `json:"types"`
	Functions []jsonSignature `json:"functions"`
}

func emitJSON(result *analyzer.Result) error {
	out := jsonOutput{}

	types := result.Registry.All()
	sort.Slice(types, func(i, j int) bool { return types[i].Id < types[j].Id })
	for _, t := range types {
		out.Types = append(out.Types, jsonType{
			Id: t.Id, Kind: t.Kind.String(), PointerDepth: t.PointerDepth,
			IsConst: t.IsConst, IsVolatile: t.IsVolatile, Name: t.Name(),
		})
	}

	for _, sig := range result.Sorted() {
		params := make([]jsonParameter, len(sig.Parameters))
		for i, p := range sig.Parameters {
			params[i] = jsonParameter{Name: p.Name, TypeId: p.TypeId}
		}
		out.Functions = append(out.Functions, jsonSignature{
			Name: sig.Name, ReturnType: sig.ReturnType, Parameters: params,
			IsVariadic: sig.IsVariadic, IsExported: sig.IsExported,
		})
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func emitDefault(result *analyzer.Result) error {
	for _, sig := range result.Sorted() {
		fmt.Println(dwarfgraph.SignatureToC(sig, result.Registry))
	}
	return nil
}
