package planner

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/seqfmt"
)

// ========== Register Tests ==========

func TestRegister_Indexing(t *testing.T) {
	g := &Register{Name: "QREG_1", Channels: []int{3, 5, 8}}

	tests := []struct {
		name   string
		lo, hi int
		want   []int
	}{
		{"full", 0, 3, []int{3, 5, 8}},
		{"tail", 1, 3, []int{5, 8}},
		{"negative", -2, 3, []int{5, 8}},
		{"clamped", -10, 10, []int{3, 5, 8}},
		{"inverted", 2, 1, []int{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, g.Slice(tt.lo, tt.hi).Channels)
		})
	}

	c, err := g.At(-1)
	require.NoError(t, err)
	assert.Equal(t, 8, c)
	_, err = g.At(3)
	assert.ErrorContains(t, err, "out of range")

	assert.Equal(t, ChannelRef("QBIT_5"), g.Var(1))
	assert.Equal(t, "QRegister('q3', 'q5', 'q8')", g.String())
}

// ========== Registry Tests ==========

func TestRegistry_Allocate(t *testing.T) {
	reg := NewRegistry()

	a, err := reg.Allocate("a", ast.CallExpr(ast.QRegisterFunc, ast.Str("q2"), ast.Str("q4")))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4}, a.Channels)
	assert.Equal(t, "QREG_1", a.Name)

	b, err := reg.Allocate("b", ast.CallExpr(ast.QRegisterFunc, ast.Int(3)))
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3, 5}, b.Channels, "lowest unused indices")

	c, err := reg.Allocate("c", ast.CallExpr(ast.QRegisterFunc,
		ast.Ident("a"),
		&ast.Subscript{Value: ast.Ident("b"), Index: ast.Int(0)},
		ast.Int(2),
		ast.ListOf(ast.Ident("QBIT_9"), ast.Str("q4")),
	))
	require.NoError(t, err)
	assert.Equal(t, []int{2, 4, 1, 9}, c.Channels, "duplicates kept once")

	d, err := reg.Allocate("d", ast.CallExpr(ast.QubitFactoryFunc, ast.Str("q12")))
	require.NoError(t, err)
	assert.Equal(t, []int{12}, d.Channels)

	assert.Equal(t, []int{1, 2, 3, 4, 5, 9, 12}, reg.Known())
	got, ok := reg.Lookup("c")
	require.True(t, ok)
	assert.Same(t, c, got)
}

func TestRegistry_AllocateErrors(t *testing.T) {
	tests := []struct {
		name string
		call *ast.Call
		want string
	}{
		{"no arguments", ast.CallExpr(ast.QRegisterFunc), "must provide at least one argument to QRegister()"},
		{"negative size", ast.CallExpr(ast.QRegisterFunc, ast.Int(-1)), "QRegister size must not be negative"},
		{"oversized", ast.CallExpr(ast.QRegisterFunc, ast.Int(1<<40)), "QRegister size 1099511627776 exceeds the limit of 4096 channels"},
		{"bad label", ast.CallExpr(ast.QRegisterFunc, ast.Str("x1"), ast.Str("q2")), "channel names must be of the form q<int>"},
		{"unknown register", ast.CallExpr(ast.QRegisterFunc, ast.Ident("nope"), ast.Int(1)), "unknown register nope"},
		{"factory label", ast.CallExpr(ast.QubitFactoryFunc, ast.Int(1)), "channel names must be of the form q<int>"},
		{"factory expression", ast.CallExpr(ast.QubitFactoryFunc, ast.Ident("label")), "channel label must be a string literal"},
		{"factory arity", ast.CallExpr(ast.QubitFactoryFunc, ast.Str("q1"), ast.Str("q2")), "takes exactly one channel label"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry().Allocate("r", tt.call)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestRegistry_AllocateAtLimit(t *testing.T) {
	g, err := NewRegistry().Allocate("r", ast.CallExpr(ast.QRegisterFunc, ast.Int(MaxRegisterSize)))
	require.NoError(t, err)
	assert.Equal(t, MaxRegisterSize, g.Len())
}

// ========== Value Folding Tests ==========

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		expr ast.Expr
		want seqfmt.Value
	}{
		{"int", ast.Int(7), seqfmt.Value{Kind: seqfmt.ValueInt, Int: 7}},
		{"int arithmetic", &ast.BinOp{Op: "-", Left: ast.Int(7), Right: ast.Int(9)}, seqfmt.Value{Kind: seqfmt.ValueInt, Int: -2}},
		{"mixed arithmetic", &ast.BinOp{Op: "+", Left: ast.Int(1), Right: ast.Float(0.5)}, seqfmt.Value{Kind: seqfmt.ValueFloat, Float: 1.5}},
		{"int division", &ast.BinOp{Op: "/", Left: ast.Int(1), Right: ast.Int(4)}, seqfmt.Value{Kind: seqfmt.ValueFloat, Float: 0.25}},
		{"unsupported op", &ast.BinOp{Op: "%", Left: ast.Int(5), Right: ast.Int(2)}, seqfmt.Value{Kind: seqfmt.ValueExpr, Str: "(5 % 2)"}},
		{"name", ast.Ident("amp"), seqfmt.Value{Kind: seqfmt.ValueExpr, Str: "amp"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, valueOf(tt.expr))
		})
	}
}
