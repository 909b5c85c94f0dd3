package codegen

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/binaryinspect/dwarfsig/internal/analyzer"
	"github.com/binaryinspect/dwarfsig/internal/dwarfgraph"
)

func newFixtureResult(t *testing.T) *analyzer.Result {
	t.Helper()
	r := dwarfgraph.NewTypeRegistry()

	intId, err := r.Register(dwarfgraph.Type{Kind: dwarfgraph.KindPrimitive, Primitive: &dwarfgraph.PrimitiveType{Name: "int", Size: 4, Alignment: 4}})
	require.NoError(t, err)
	voidId, err := r.Register(dwarfgraph.Type{Kind: dwarfgraph.KindPrimitive, Primitive: &dwarfgraph.PrimitiveType{Name: "void"}})
	require.NoError(t, err)

	pointId, err := r.Register(dwarfgraph.Type{Kind: dwarfgraph.KindStruct, Struct: &dwarfgraph.StructType{
		Name: "Point",
		Fields: []dwarfgraph.StructField{
			{Name: "x", TypeId: intId, Size: 4},
			{Name: "y", TypeId: intId, Offset: 4, Size: 4},
		},
		Size: 8, Alignment: 4,
	}})
	require.NoError(t, err)

	return &analyzer.Result{
		Registry: r,
		Signatures: []dwarfgraph.FunctionSignature{
			{Name: "add_two_ints", ReturnType: intId, Parameters: []dwarfgraph.Parameter{
				{Name: "a", TypeId: intId}, {Name: "b", TypeId: intId},
			}},
			{Name: "make_point", ReturnType: pointId, Parameters: []dwarfgraph.Parameter{
				{Name: "x", TypeId: intId}, {Name: "y", TypeId: intId},
			}},
			{Name: "simple_void_function", ReturnType: voidId},
		},
	}
}

func TestKoffiBackendName(t *testing.T) {
	assert.Equal(t, "koffi", KoffiBackend{}.Name())
}

func TestKoffiGenerateFunctions(t *testing.T) {
	result := newFixtureResult(t)

	out, err := KoffiBackend{}.Generate(result, Options{LibraryPath: "./libtest.so", Emit: EmitFunctions})
	require.NoError(t, err)

	assert.Contains(t, out, "koffi.load(\"./libtest.so\")")
	assert.Contains(t, out, "lib.func(\"int add_two_ints(int a, int b)\")")
	assert.Contains(t, out, "lib.func(\"void simple_void_function(void)\")")
	assert.Contains(t, out, "module.exports = {")
	assert.Contains(t, out, "add_two_ints,")
}

func TestKoffiGenerateTypes(t *testing.T) {
	result := newFixtureResult(t)

	out, err := KoffiBackend{}.Generate(result, Options{Emit: EmitTypes})
	require.NoError(t, err)

	assert.Contains(t, out, "koffi.struct('Point'")
	assert.Contains(t, out, "x: \"int\"")
	assert.Contains(t, out, "y: \"int\"")
}

func TestResolveUnknownBackend(t *testing.T) {
	_, err := Resolve("does-not-exist")
	require.Error(t, err)
	var cfgErr *dwarfgraph.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestResolveKnownBackend(t *testing.T) {
	b, err := Resolve("koffi")
	require.NoError(t, err)
	assert.Equal(t, "koffi", b.Name())
}
