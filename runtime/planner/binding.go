package planner

import (
	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
)

// BindingEnv is a stack of substitution scopes. Each scope maps names to the
// expression they stand for; lookup is innermost-first. A scope is pushed per
// loop iteration or inline expansion and popped when that expansion is done.
type BindingEnv struct {
	scopes []map[string]ast.Expr // nil value = name shadowed in this scope
}

// NewBindingEnv creates an environment with an empty root scope.
func NewBindingEnv() *BindingEnv {
	return &BindingEnv{scopes: []map[string]ast.Expr{make(map[string]ast.Expr)}}
}

// Push creates a new innermost scope.
func (e *BindingEnv) Push() {
	e.scopes = append(e.scopes, make(map[string]ast.Expr))
}

// Pop removes the innermost scope. The root scope is never popped.
func (e *BindingEnv) Pop() {
	invariant.Invariant(len(e.scopes) > 1, "BindingEnv.Pop on root scope")
	e.scopes = e.scopes[:len(e.scopes)-1]
}

// Depth returns the number of scopes, root included.
func (e *BindingEnv) Depth() int {
	return len(e.scopes)
}

// Define binds name in the innermost scope.
func (e *BindingEnv) Define(name string, value ast.Expr) {
	invariant.NotNil(value, "value")
	e.scopes[len(e.scopes)-1][name] = value
}

// Shadow hides outer bindings of names in the innermost scope.
func (e *BindingEnv) Shadow(names ...string) {
	for _, name := range names {
		e.scopes[len(e.scopes)-1][name] = nil
	}
}

// Lookup finds name, innermost scope first.
func (e *BindingEnv) Lookup(name string) (ast.Expr, bool) {
	for i := len(e.scopes) - 1; i >= 0; i-- {
		if value, ok := e.scopes[i][name]; ok {
			return value, value != nil
		}
	}
	return nil, false
}

// SubstituteExpr replaces every bound name in expr with a fresh copy of its
// value. expr is modified in place; the (possibly replaced) root is returned.
func (e *BindingEnv) SubstituteExpr(expr ast.Expr) ast.Expr {
	return ast.RewriteExpr(expr, func(x ast.Expr) (ast.Expr, bool) {
		name, ok := x.(*ast.Name)
		if !ok {
			return nil, false
		}
		value, ok := e.Lookup(name.ID)
		if !ok {
			return nil, false
		}
		return ast.CloneExpr(value), true
	})
}

// SubstituteStmts applies SubstituteExpr throughout stmts in place.
// Assignment targets are never substituted, and a nested loop target shadows
// outer bindings inside that loop's body.
func (e *BindingEnv) SubstituteStmts(stmts []ast.Stmt) {
	for _, stmt := range stmts {
		e.substituteStmt(stmt)
	}
}

func (e *BindingEnv) substituteStmt(stmt ast.Stmt) {
	switch s := stmt.(type) {
	case *ast.Assign:
		for _, t := range s.Targets {
			// Subscript targets read their container and index
			if sub, ok := t.(*ast.Subscript); ok {
				sub.Index = e.SubstituteExpr(sub.Index)
				sub.Lower = e.SubstituteExpr(sub.Lower)
				sub.Upper = e.SubstituteExpr(sub.Upper)
			}
		}
		s.Value = e.SubstituteExpr(s.Value)
	case *ast.For:
		s.Iter = e.SubstituteExpr(s.Iter)
		e.Push()
		e.Shadow(ast.Names(s.Target)...)
		e.SubstituteStmts(s.Body)
		e.Pop()
		e.SubstituteStmts(s.Else)
	case *ast.If:
		s.Test = e.SubstituteExpr(s.Test)
		e.SubstituteStmts(s.Body)
		e.SubstituteStmts(s.Else)
	case *ast.Concur:
		e.SubstituteStmts(s.Body)
	case *ast.Seq:
		e.SubstituteStmts(s.Body)
	case *ast.ExprStmt:
		s.X = e.SubstituteExpr(s.X)
	case *ast.Return:
		s.Value = e.SubstituteExpr(s.Value)
	case *ast.FuncDef:
		// Nested definitions have their own scope
	}
}
