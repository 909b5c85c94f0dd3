// Package analyzer wires the Loader, Container Parser, Symbol Reader,
// DWARF Reader, Type Resolver, Function Extractor, and Registry Merger
// into the single-file pipeline described by the core: open a binary,
// hand back a finished AnalysisResult.
package analyzer

import (
	"debug/dwarf"
	"sort"

	"go.uber.org/zap"

	"github.com/binaryinspect/dwarfsig/internal/container"
	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
	"github.com/binaryinspect/dwarfsig/internal/loader"
	"github.com/binaryinspect/dwarfsig/internal/symbols"
)

// Options configures one run of Analyze.
type Options struct {
	// IncludeAll keeps non-exported functions in the result. The
	// default behavior filters to exported-only, mirroring --all.
	IncludeAll bool
	Logger     *zap.Logger
}

// Result is the finished product handed to projection and codegen: a
// global, closure-complete Type Registry and every extracted
// FunctionSignature, plus any non-fatal diagnostics collected along
// the way.
type Result struct {
	Signatures []dwarfgraph.FunctionSignature
	Registry   *dwarfgraph.TypeRegistry
	Warnings   []string
}

// Sorted returns a copy of r.Signatures ordered by name ascending, the
// order the default CLI output and the projection fixture tests use.
func (r *Result) Sorted() []dwarfgraph.FunctionSignature {
	out := append([]dwarfgraph.FunctionSignature{}, r.Signatures...)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Analyze runs the full pipeline over the binary at path.
func Analyze(path string, opts Options) (*Result, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	f, err := loader.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := container.Open(path, f.Bytes())
	if err != nil {
		return nil, err
	}

	exportedSet, err := symbols.Read(c)
	if err != nil {
		logger.Warn("symbol table read failed, export filtering disabled", zap.Error(err))
		exportedSet = nil
	}

	dwarfData, err := c.DWARFData()
	if err != nil {
		return nil, &dwarfgraph.FormatError{Path: path, Err: err}
	}

	result := &Result{Registry: dwarfgraph.NewTypeRegistry()}

	// A nil set means the symbol table could not be read; export
	// filtering is then skipped instead of dropping every function.
	filterExported := !opts.IncludeAll && exportedSet != nil

	reader := dwarfData.Reader()
	unitIndex := 0

	for {
		cuEntry, err := reader.Next()
		if err != nil {
			result.Warnings = append(result.Warnings, (&dwarfgraph.DwarfError{Unit: unitIndex, Err: err}).Error())
			break
		}
		if cuEntry == nil {
			break
		}
		if cuEntry.Tag != dwarf.TagCompileUnit {
			if cuEntry.Children {
				reader.SkipChildren()
			}
			continue
		}

		resolver := dwarfgraph.NewTypeResolver(dwarfData, logger)
		extractor := dwarfgraph.NewFunctionExtractor(dwarfData, resolver, exportedSet, logger)

		sigs, err := extractor.ExtractUnit(reader, cuEntry)
		if err != nil {
			result.Warnings = append(result.Warnings, (&dwarfgraph.DwarfError{Unit: unitIndex, Err: err}).Error())
		}

		for _, sig := range sigs {
			if filterExported && !sig.IsExported {
				continue
			}
			result.Signatures = append(result.Signatures, sig)
		}

		result.Registry.Merge(resolver.Registry())
		logger.Debug("compilation unit processed", zap.Int("unit", unitIndex),
			zap.Int("functions", len(sigs)), zap.Int("types", resolver.Registry().Len()))
		unitIndex++
	}

	logger.Info("analysis complete", zap.Int("units", unitIndex),
		zap.Int("functions", len(result.Signatures)), zap.Int("types", result.Registry.Len()))

	if len(result.Signatures) == 0 {
		result.Warnings = append(result.Warnings, "no functions found")
	}

	if missing := result.Registry.ClosureComplete(); len(missing) > 0 {
		logger.Warn("type registry closure incomplete", zap.Int("missing", len(missing)))
	}

	return result, nil
}
