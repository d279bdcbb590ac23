package planner_test

import (
	"testing"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/planner"
	"github.com/qgl2/qgl2c/runtime/symtab"
)

const testModule = "main"

const pulses = "QGL.PulsePrimitives"

// testTable returns a table with the usual pulse stubs in testModule plus
// the given functions.
func testTable(t testing.TB, funcs ...*ast.FuncDef) *symtab.Table {
	t.Helper()
	tbl := symtab.NewTable()
	ns := tbl.Namespace(testModule)

	qbit := []ast.Param{{Name: "q", Annotation: "qbit"}}
	stubs := []*symtab.Definition{
		symtab.NewStub(testModule, "X90", qbit, ast.ReturnPulse, symtab.Import{Module: pulses}),
		symtab.NewStub(testModule, "Y90", qbit, ast.ReturnPulse, symtab.Import{Module: pulses}),
		symtab.NewStub(testModule, "Id", append(qbit, ast.Param{Name: "length"}), ast.ReturnPulse, symtab.Import{Module: pulses}),
		symtab.NewStub(testModule, "CNOT", []ast.Param{{Name: "c"}, {Name: "t"}}, ast.ReturnPulse, symtab.Import{Module: pulses}),
		symtab.NewStub(testModule, "Barrier", nil, ast.ReturnControl, symtab.Import{Module: pulses}),
		symtab.NewStub(testModule, "MEAS", qbit, ast.ReturnPulse, symtab.Import{Module: pulses}),
	}
	for _, s := range stubs {
		if err := ns.AddLocal(s); err != nil {
			t.Fatalf("AddLocal(%s): %v", s.Name, err)
		}
	}
	for _, fn := range funcs {
		if err := ns.AddLocal(symtab.NewFunction(testModule, fn)); err != nil {
			t.Fatalf("AddLocal(%s): %v", fn.Name, err)
		}
	}
	return tbl
}

func mainFunc(body ...ast.Stmt) *ast.FuncDef {
	return &ast.FuncDef{
		Pos:  ast.Position{File: testModule, Line: 1, Column: 1},
		Name: "main",
		Body: body,
	}
}

func proc(name string, params []ast.Param, body ...ast.Stmt) *ast.FuncDef {
	return &ast.FuncDef{
		Pos:    ast.Position{File: testModule, Line: 1, Column: 1},
		Name:   name,
		Params: params,
		Body:   body,
		Decl:   true,
	}
}

func params(names ...string) []ast.Param {
	out := make([]ast.Param, len(names))
	for i, n := range names {
		out[i] = ast.Param{Name: n}
	}
	return out
}

func concur(body ...ast.Stmt) *ast.Concur { return &ast.Concur{Body: body} }

func forIn(target, iter ast.Expr, body ...ast.Stmt) *ast.For {
	return &ast.For{Target: target, Iter: iter, Body: body}
}

func at(line int) ast.Position { return ast.Position{File: testModule, Line: line, Column: 1} }

func newRun(t *testing.T, fn *ast.FuncDef, res planner.Resolver, cfg planner.Config) *planner.Run {
	t.Helper()
	r, err := planner.NewRun(fn, res, cfg)
	if err != nil {
		t.Fatalf("NewRun: %v", err)
	}
	return r
}

// qCfg recognizes q1, q2, ... as channels.
var qCfg = planner.Config{ChannelPattern: `^q[0-9]+$`}

func messages(diags []diag.Diagnostic, sev diag.Severity) []string {
	var out []string
	for _, d := range diags {
		if d.Severity == sev {
			out = append(out, d.Message)
		}
	}
	return out
}
