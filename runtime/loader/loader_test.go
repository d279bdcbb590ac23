package loader

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/runtime/planner"
	"github.com/qgl2/qgl2c/runtime/symtab"
)

func loadString(t *testing.T, doc string) (*Program, error) {
	t.Helper()
	return Load(strings.NewReader(doc))
}

// ========== Loading ==========

func TestLoadFile_Program(t *testing.T) {
	prog, err := LoadFile(filepath.Join("testdata", "flip.json"))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", prog.Version)
	assert.Equal(t, []string{"main", "qgl2.qgl1"}, prog.Table.Modules())

	var names []string
	for _, fn := range prog.Functions() {
		names = append(names, fn.Name)
	}
	assert.Equal(t, []string{"flip", "main"}, names)

	mod, ok := prog.Module("main.py")
	require.True(t, ok)
	assert.Equal(t, "main", mod)

	flip := prog.Functions()[0]
	assert.True(t, flip.Decl)
	assert.Equal(t, ast.Position{File: "main.py", Line: 3, Column: 1}, flip.Pos)
	assert.Equal(t, "X90(q)\nYh(q)\n", ast.Format(flip.Body))
}

func TestLoad_CompilesEndToEnd(t *testing.T) {
	prog, err := LoadFile(filepath.Join("testdata", "flip.json"))
	require.NoError(t, err)

	fn, err := planner.FindFunction(prog.Functions(), "main")
	require.NoError(t, err)

	result, err := planner.Compile(fn, prog, planner.Config{ChannelPattern: `^q[0-9]+$`})
	require.NoError(t, err)

	seq := result.Unit.Sequence()
	var ops []string
	for _, in := range seq.Instructions {
		ops = append(ops, in.String())
	}
	want := []string{
		"X90(QBIT_1)",
		"Yh(QBIT_1)",
		"X90(QBIT_2)",
		"Yh(QBIT_2)",
		"Barrier()",
		"Id(QBIT_1, length=2.5e-07)",
	}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Errorf("instructions mismatch (-want +got):\n%s", diff)
	}

	assert.Contains(t, seq.Imports, seqfmt.Import{Module: "QGL.PulsePrimitives", Symbol: "Y90", Alias: "Yh"})
	assert.Contains(t, seq.Imports, seqfmt.Import{Module: "QGL.ControlFlow", Symbol: "Barrier"})
}

func TestProgram_Resolve(t *testing.T) {
	prog, err := LoadFile(filepath.Join("testdata", "flip.json"))
	require.NoError(t, err)

	tests := []struct {
		name    string
		context string
		symbol  string
		want    string
	}{
		{"by file", "main.py", "Yh", "Y90"},
		{"by module", "main", "X90", "X90"},
		{"local function", "main.py", "flip", "flip"},
		{"stub module", "qgl2/qgl1.py", "Barrier", "Barrier"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := prog.Resolve(tt.context, tt.symbol)
			require.NoError(t, err)
			require.NotNil(t, def)
			assert.Equal(t, tt.want, def.Name)
		})
	}

	def, err := prog.Resolve("main.py", "Z90")
	assert.NoError(t, err)
	assert.Nil(t, def)

	_, err = prog.Resolve("nowhere.py", "X90")
	var unknown *symtab.UnknownModuleError
	assert.True(t, errors.As(err, &unknown))
}

func TestLoad_Literals(t *testing.T) {
	tests := []struct {
		raw  string
		want any
	}{
		{`3`, int64(3)},
		{`-7`, int64(-7)},
		{`0.5`, 0.5},
		{`1e3`, 1000.0},
		{`"q1"`, "q1"},
		{`true`, true},
		{`null`, nil},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := literalValue([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoad_ImportModuleAlias(t *testing.T) {
	prog, err := loadString(t, `{
		"version": "v1.0.0",
		"modules": [
			{"name": "QGL.PulsePrimitives", "stubs": [{"name": "X90", "returns": "pulse"}]},
			{"name": "main", "imports": [{"module": "QGL.PulsePrimitives", "as": "PP"}, {"module": "QGL.PulsePrimitives"}],
			 "functions": [{"name": "main", "body": []}]}
		]
	}`)
	require.NoError(t, err)

	for _, name := range []string{"PP.X90", "QGL.PulsePrimitives.X90"} {
		def, err := prog.Resolve("main", name)
		require.NoError(t, err, name)
		require.NotNil(t, def, name)
		assert.True(t, def.Stub)
	}
	// No file given: the module name stands in for it.
	assert.Equal(t, "main", prog.Functions()[0].Pos.File)
}

// ========== Rejection ==========

func TestLoad_SchemaErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"missing modules",
			`{"version": "1.0.0"}`,
			"modules",
		},
		{
			"bad version format",
			`{"version": "one", "modules": [{"name": "m"}]}`,
			"/version",
		},
		{
			"unknown statement kind",
			`{"version": "1.0.0", "modules": [{"name": "m", "functions": [{"name": "f", "body": [{"kind": "while"}]}]}]}`,
			"/modules/0/functions/0/body/0/kind",
		},
		{
			"assign without value",
			`{"version": "1.0.0", "modules": [{"name": "m", "functions": [{"name": "f", "body": [
				{"kind": "assign", "targets": [{"kind": "name", "id": "a"}]}]}]}]}`,
			"/modules/0/functions/0/body/0",
		},
		{
			"bad identifier",
			`{"version": "1.0.0", "modules": [{"name": "m", "stubs": [{"name": "1X"}]}]}`,
			"/modules/0/stubs/0/name",
		},
		{
			"unknown field",
			`{"version": "1.0.0", "modules": [{"name": "m", "extra": 1}]}`,
			"/modules/0",
		},
		{
			"not json",
			`{"version": `,
			"unexpected EOF",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.doc)
			var se *SchemaError
			require.True(t, errors.As(err, &se), "got %v", err)
			assert.Contains(t, se.Error(), tt.want)
			assert.True(t, strings.HasPrefix(se.Error(), "invalid program document"))
		})
	}
}

func TestLoad_SemanticErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{
			"unsupported major",
			`{"version": "2.0.0", "modules": [{"name": "m"}]}`,
			"unsupported document version 2.0.0 (loader reads v1.x)",
		},
		{
			"unknown import module",
			`{"version": "1.0.0", "modules": [{"name": "m", "imports": [{"module": "missing", "symbol": "X90"}]}]}`,
			"module m: no module found for [missing]",
		},
		{
			"duplicate module",
			`{"version": "1.0.0", "modules": [{"name": "m"}, {"name": "m"}]}`,
			"module m defined twice",
		},
		{
			"duplicate symbol",
			`{"version": "1.0.0", "modules": [{"name": "m", "stubs": [{"name": "X90"}],
				"functions": [{"name": "X90", "body": []}]}]}`,
			"symbol [X90] multiply defined",
		},
		{
			"duplicate parameter",
			`{"version": "1.0.0", "modules": [{"name": "m",
				"functions": [{"name": "f", "params": [{"name": "q"}, {"name": "q"}], "body": []}]}]}`,
			"module m: function f: duplicate parameter q",
		},
		{
			"subscript without index",
			`{"version": "1.0.0", "modules": [{"name": "m", "functions": [{"name": "f", "body": [
				{"kind": "expr", "value": {"kind": "subscript", "base": {"kind": "name", "id": "r"}}}]}]}]}`,
			"subscript index: missing expression",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadString(t, tt.doc)
			require.Error(t, err)
			var se *SchemaError
			assert.False(t, errors.As(err, &se), "expected a semantic error, got schema error %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_TooLarge(t *testing.T) {
	doc := strings.Repeat(" ", maxDocumentSize+1)
	_, err := loadString(t, doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds maximum size")
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join("testdata", "absent.json"))
	require.Error(t, err)
}
