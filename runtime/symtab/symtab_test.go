package symtab

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgl2/qgl2c/core/ast"
)

func procedure(name string, params ...string) *ast.FuncDef {
	fn := &ast.FuncDef{Name: name, Decl: true}
	for _, p := range params {
		fn.Params = append(fn.Params, ast.Param{Name: p})
	}
	fn.Body = []ast.Stmt{ast.CallStmt("X90", ast.Ident(params[0]))}
	return fn
}

// ========== Definition Tests ==========

func TestDefinition_IsProcedure(t *testing.T) {
	tests := []struct {
		name string
		fn   *ast.FuncDef
		want bool
	}{
		{"declared without return", procedure("flip", "q"), true},
		{"not declared", &ast.FuncDef{Name: "helper"}, false},
		{
			"declared with nested return",
			&ast.FuncDef{Name: "value", Decl: true, Body: []ast.Stmt{
				&ast.If{Test: ast.Ident("c"), Body: []ast.Stmt{&ast.Return{Value: ast.Int(1)}}},
			}},
			false,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def := NewFunction("main", tt.fn)
			if got := def.IsProcedure(); got != tt.want {
				t.Errorf("IsProcedure() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewStub_DefaultImport(t *testing.T) {
	stub := NewStub("qgl2.basic_sequences", "X90", nil, ast.ReturnPulse, Import{})
	assert.True(t, stub.Stub)
	assert.False(t, stub.IsProcedure())
	assert.Equal(t, Import{Module: "qgl2.basic_sequences", Symbol: "X90"}, stub.Import)

	explicit := NewStub("qgl2.qgl1", "Barrier", nil, ast.ReturnControl, Import{Module: "QGL.PulsePrimitives"})
	assert.Equal(t, Import{Module: "QGL.PulsePrimitives", Symbol: "Barrier"}, explicit.Import)
}

// ========== Resolution Tests ==========

func newTestTable(t *testing.T) *Table {
	t.Helper()
	tbl := NewTable()

	lib := tbl.Namespace("qgl2.qgl1")
	require.NoError(t, lib.AddLocal(NewStub("qgl2.qgl1", "X90", nil, ast.ReturnPulse, Import{Module: "QGL.PulsePrimitives"})))
	require.NoError(t, lib.AddLocal(NewStub("qgl2.qgl1", "Y90", nil, ast.ReturnPulse, Import{Module: "QGL.PulsePrimitives"})))

	main := tbl.Namespace("main")
	require.NoError(t, main.AddLocal(NewFunction("main", procedure("flip", "q"))))
	require.NoError(t, main.AddFromAs("qgl2.qgl1", "X90", ""))
	require.NoError(t, main.AddFromAs("qgl2.qgl1", "Y90", "Yhalf"))
	require.NoError(t, main.AddImportAs("qgl2.qgl1", "q1lib"))
	require.NoError(t, tbl.Validate())
	return tbl
}

func TestResolve(t *testing.T) {
	tbl := newTestTable(t)

	tests := []struct {
		name       string
		symbol     string
		wantName   string
		wantModule string
	}{
		{"local", "flip", "flip", "main"},
		{"from import", "X90", "X90", "qgl2.qgl1"},
		{"from import alias", "Yhalf", "Y90", "qgl2.qgl1"},
		{"dotted import alias", "q1lib.Y90", "Y90", "qgl2.qgl1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, err := tbl.Resolve("main", tt.symbol)
			require.NoError(t, err)
			require.NotNil(t, def)
			assert.Equal(t, tt.wantName, def.Name)
			assert.Equal(t, tt.wantModule, def.Module)
		})
	}
}

func TestResolve_Unbound(t *testing.T) {
	tbl := newTestTable(t)
	def, err := tbl.Resolve("main", "Z90")
	assert.NoError(t, err)
	assert.Nil(t, def)
}

func TestResolve_UnknownModule(t *testing.T) {
	tbl := newTestTable(t)
	_, err := tbl.Resolve("nowhere", "X90")

	var unknown *UnknownModuleError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "cannot find namespace for [nowhere]", err.Error())
}

func TestResolve_ImportCycle(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Namespace("a").AddFromAs("b", "op", ""))
	require.NoError(t, tbl.Namespace("b").AddFromAs("c", "op", ""))
	require.NoError(t, tbl.Namespace("c").AddFromAs("a", "op", ""))

	_, err := tbl.Resolve("a", "op")

	var cycle *CycleError
	require.True(t, errors.As(err, &cycle), "want *CycleError, got %v", err)
	want := []string{"a.op", "b.op", "c.op", "a.op"}
	if diff := cmp.Diff(want, cycle.Cycle); diff != "" {
		t.Errorf("cycle mismatch (-want +got):\n%s", diff)
	}
	assert.Contains(t, err.Error(), "a.op -> b.op -> c.op -> a.op")
}

func TestNamespace_Duplicate(t *testing.T) {
	ns := NewTable().Namespace("main")
	require.NoError(t, ns.AddLocal(NewFunction("main", procedure("flip", "q"))))

	err := ns.AddFromAs("lib", "other", "flip")
	var dup *DuplicateError
	require.True(t, errors.As(err, &dup))
	assert.Equal(t, "symbol [flip] multiply defined (from-as) in namespace [main]", err.Error())
}

func TestTable_Validate_MissingModule(t *testing.T) {
	tbl := NewTable()
	require.NoError(t, tbl.Namespace("main").AddImportAs("missing.mod", ""))

	err := tbl.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no module found for [missing.mod]")
}

func TestNamespace_Names(t *testing.T) {
	tbl := newTestTable(t)
	ns, ok := tbl.Lookup("qgl2.qgl1")
	require.True(t, ok)
	assert.Equal(t, []string{"X90", "Y90"}, ns.Names())
	assert.Equal(t, []string{"main", "qgl2.qgl1"}, tbl.Modules())
}
