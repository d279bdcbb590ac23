package planner_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/planner"
)

func unroll(t *testing.T, body ...ast.Stmt) (*planner.Run, []ast.Stmt) {
	t.Helper()
	fn := mainFunc(body...)
	r := newRun(t, fn, testTable(t), planner.Config{})
	require.NoError(t, r.Unroll(fn.Body))
	return r, fn.Body
}

// ========== Unroll Tests ==========

func TestUnroll_Expansions(t *testing.T) {
	tests := []struct {
		name string
		loop *ast.For
		want string
	}{
		{
			name: "single name target",
			loop: forIn(ast.Ident("x"), ast.ListOf(ast.Int(1), ast.Int(2), ast.Int(3)),
				ast.CallStmt("foo", ast.Ident("x"))),
			want: "with concur:\n    foo(1)\n    foo(2)\n    foo(3)\n",
		},
		{
			name: "tuple target",
			loop: forIn(ast.TupleOf(ast.Ident("x"), ast.Ident("y")),
				ast.ListOf(ast.TupleOf(ast.Int(1), ast.Int(2)), ast.TupleOf(ast.Int(3), ast.Int(4))),
				ast.CallStmt("foo", ast.Ident("x"), ast.Ident("y"))),
			want: "with concur:\n    foo(1, 2)\n    foo(3, 4)\n",
		},
		{
			name: "tuple iterable",
			loop: forIn(ast.Ident("q"), ast.TupleOf(ast.Ident("QBIT_1"), ast.Ident("QBIT_2")),
				ast.CallStmt("X90", ast.Ident("q"))),
			want: "with concur:\n    X90(QBIT_1)\n    X90(QBIT_2)\n",
		},
		{
			name: "nested target shape",
			loop: forIn(ast.TupleOf(ast.Ident("a"), ast.ListOf(ast.Ident("b"), ast.Ident("c"))),
				ast.ListOf(ast.TupleOf(ast.Int(1), ast.ListOf(ast.Int(2), ast.Int(3)))),
				ast.CallStmt("foo", ast.Ident("a"), ast.Ident("b"), ast.Ident("c"))),
			want: "with concur:\n    foo(1, 2, 3)\n",
		},
		{
			name: "empty iterable",
			loop: forIn(ast.Ident("x"), ast.ListOf(), ast.CallStmt("foo", ast.Ident("x"))),
			want: "with concur:\n    pass\n",
		},
		{
			name: "assignment target kept",
			loop: forIn(ast.Ident("x"), ast.ListOf(ast.Int(7)),
				ast.AssignName("x", ast.CallExpr("f", ast.Ident("x")))),
			want: "with concur:\n    x = f(7)\n",
		},
		{
			name: "expression elements",
			loop: forIn(ast.Ident("x"), ast.ListOf(&ast.BinOp{Op: "*", Left: ast.Int(2), Right: ast.Float(0.5)}),
				ast.CallStmt("foo", ast.Ident("x"))),
			want: "with concur:\n    foo((2 * 0.5))\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, body := unroll(t, concur(tt.loop))
			if diff := cmp.Diff(tt.want, ast.Format(body)); diff != "" {
				t.Errorf("unrolled body mismatch (-want +got):\n%s", diff)
			}
			assert.Empty(t, messages(r.Diagnostics(), diag.SeverityError))
		})
	}
}

func TestUnroll_NestedLoops(t *testing.T) {
	inner := forIn(ast.Ident("y"), ast.ListOf(ast.Ident("x"), ast.Int(3)),
		ast.CallStmt("foo", ast.Ident("x"), ast.Ident("y")))
	outer := forIn(ast.Ident("x"), ast.ListOf(ast.Int(1), ast.Int(2)), inner)

	_, body := unroll(t, concur(outer))

	want := "with concur:\n    foo(1, 1)\n    foo(1, 3)\n    foo(2, 2)\n    foo(2, 3)\n"
	if diff := cmp.Diff(want, ast.Format(body)); diff != "" {
		t.Errorf("nested unroll mismatch (-want +got):\n%s", diff)
	}
}

func TestUnroll_InnerTargetShadows(t *testing.T) {
	inner := forIn(ast.Ident("x"), ast.ListOf(ast.Int(9)), ast.CallStmt("foo", ast.Ident("x")))
	outer := forIn(ast.Ident("x"), ast.ListOf(ast.Int(1)), ast.CallStmt("bar", ast.Ident("x")), inner)

	_, body := unroll(t, concur(outer))

	want := "with concur:\n    bar(1)\n    foo(9)\n"
	if diff := cmp.Diff(want, ast.Format(body)); diff != "" {
		t.Errorf("shadowing mismatch (-want +got):\n%s", diff)
	}
}

func TestUnroll_Idempotent(t *testing.T) {
	fn := mainFunc(concur(
		forIn(ast.Ident("x"), ast.ListOf(ast.Int(1), ast.Int(2)), ast.CallStmt("foo", ast.Ident("x"))),
		forIn(ast.Ident("x"), ast.Ident("xs"), ast.CallStmt("bar", ast.Ident("x"))),
	))
	r := newRun(t, fn, testTable(t), planner.Config{})

	require.NoError(t, r.Unroll(fn.Body))
	first := ast.Format(fn.Body)
	require.NoError(t, r.Unroll(fn.Body))

	if diff := cmp.Diff(first, ast.Format(fn.Body)); diff != "" {
		t.Errorf("second unroll changed the body (-first +second):\n%s", diff)
	}
	assert.Len(t, messages(r.Diagnostics(), diag.SeverityDiag), 1, "non-literal loop noted once")
}

func TestUnroll_ShapeMismatchSkipsElement(t *testing.T) {
	loop := forIn(ast.TupleOf(ast.Ident("x"), ast.Ident("y")),
		ast.ListOf(
			ast.TupleOf(ast.Int(1), ast.Int(2)),
			ast.TupleOf(ast.Int(3)),
			ast.TupleOf(ast.Int(4), ast.Int(5)),
		),
		ast.CallStmt("foo", ast.Ident("x"), ast.Ident("y")))
	sibling := forIn(ast.Ident("z"), ast.ListOf(ast.Int(6)), ast.CallStmt("bar", ast.Ident("z")))

	r, body := unroll(t, concur(loop, sibling))

	want := "with concur:\n    foo(1, 2)\n    foo(4, 5)\n    bar(6)\n"
	if diff := cmp.Diff(want, ast.Format(body)); diff != "" {
		t.Errorf("unrolled body mismatch (-want +got):\n%s", diff)
	}
	errs := messages(r.Diagnostics(), diag.SeverityError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "expected 2 values to unpack, got 1")
}

func TestUnroll_ScalarIntoTupleTarget(t *testing.T) {
	loop := forIn(ast.TupleOf(ast.Ident("x"), ast.Ident("y")), ast.ListOf(ast.Int(1)),
		ast.CallStmt("foo", ast.Ident("x")))

	r, body := unroll(t, concur(loop))

	assert.Equal(t, "with concur:\n    pass\n", ast.Format(body))
	errs := messages(r.Diagnostics(), diag.SeverityError)
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "cannot unpack 1 into 2 targets")
}

func TestUnroll_LeftInPlace(t *testing.T) {
	tests := []struct {
		name string
		loop *ast.For
		sev  diag.Severity
		msg  string
	}{
		{
			name: "else clause",
			loop: &ast.For{
				Target: ast.Ident("x"),
				Iter:   ast.ListOf(ast.Int(1)),
				Body:   []ast.Stmt{ast.CallStmt("foo", ast.Ident("x"))},
				Else:   []ast.Stmt{ast.CallStmt("bar")},
			},
			sev: diag.SeverityWarning,
			msg: "for-loop with an else clause is not unrolled",
		},
		{
			name: "computed iterable",
			loop: forIn(ast.Ident("x"), ast.CallExpr("range", ast.Int(3)), ast.CallStmt("foo", ast.Ident("x"))),
			sev:  diag.SeverityDiag,
			msg:  "for-loop over range(3) is not unrolled: iterable is not a literal list",
		},
		{
			name: "call element",
			loop: forIn(ast.Ident("x"), ast.ListOf(ast.CallExpr("f")), ast.CallStmt("foo", ast.Ident("x"))),
			sev:  diag.SeverityDiag,
			msg:  "for-loop over [f()] is not unrolled: iterable is not a literal list",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := concur(tt.loop)
			r, _ := unroll(t, c)

			require.Len(t, c.Body, 1)
			assert.Same(t, tt.loop, c.Body[0])
			assert.Equal(t, []string{tt.msg}, messages(r.Diagnostics(), tt.sev))
		})
	}
}

func TestUnroll_OnlyInsideConcur(t *testing.T) {
	loop := forIn(ast.Ident("x"), ast.ListOf(ast.Int(1)), ast.CallStmt("foo", ast.Ident("x")))
	_, body := unroll(t, loop)

	require.Len(t, body, 1)
	assert.Same(t, loop, body[0])
}

func TestUnroll_ConcurInsideLoop(t *testing.T) {
	c := concur(forIn(ast.Ident("x"), ast.ListOf(ast.Int(1), ast.Int(2)), ast.CallStmt("foo", ast.Ident("x"))))
	outer := forIn(ast.Ident("i"), ast.Ident("n"), c)

	_, _ = unroll(t, outer)

	assert.Equal(t, "foo(1)\nfoo(2)\n", ast.Format(c.Body))
}

func TestUnroll_NestedConcurFatal(t *testing.T) {
	inner := &ast.Concur{Pos: at(3), Body: []ast.Stmt{ast.CallStmt("foo")}}
	fn := mainFunc(concur(&ast.If{Test: ast.Ident("c"), Body: []ast.Stmt{inner}}))
	r := newRun(t, fn, testTable(t), planner.Config{})

	err := r.Unroll(fn.Body)

	var fatal *diag.FatalError
	require.True(t, errors.As(err, &fatal), "want *diag.FatalError, got %v", err)
	assert.Equal(t, "nested concur blocks are not supported", fatal.Message)
	assert.Equal(t, 3, fatal.Pos.Line)
}

func TestUnroll_DoesNotAliasBodies(t *testing.T) {
	arg := ast.ListOf(ast.Ident("x"))
	loop := forIn(ast.Ident("x"), ast.ListOf(ast.Int(1), ast.Int(2)), ast.CallStmt("foo", arg))

	_, body := unroll(t, concur(loop))

	c := body[0].(*ast.Concur)
	first := c.Body[0].(*ast.ExprStmt).X.(*ast.Call).Args[0]
	second := c.Body[1].(*ast.ExprStmt).X.(*ast.Call).Args[0]
	assert.NotSame(t, first, second)
	assert.Equal(t, "[x]", arg.String(), "template body modified")
}
