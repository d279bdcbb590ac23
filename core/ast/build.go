package ast

// Shorthand constructors for building trees by hand (loader, tests).
// Positions are left zero; callers set Pos where it matters.

// Ident returns a name reference.
func Ident(id string) *Name { return &Name{ID: id} }

// Int returns an integer literal.
func Int(v int64) *Literal { return &Literal{Value: v} }

// Float returns a float literal.
func Float(v float64) *Literal { return &Literal{Value: v} }

// Str returns a string literal.
func Str(s string) *Literal { return &Literal{Value: s} }

// CallExpr returns a call of a named function with positional arguments.
func CallExpr(fn string, args ...Expr) *Call {
	return &Call{Func: Ident(fn), Args: args}
}

// CallStmt wraps CallExpr in an expression statement.
func CallStmt(fn string, args ...Expr) *ExprStmt {
	return &ExprStmt{X: CallExpr(fn, args...)}
}

// AssignName returns `name = value`.
func AssignName(name string, value Expr) *Assign {
	return &Assign{Targets: []Expr{Ident(name)}, Value: value}
}

// TupleOf returns a tuple expression.
func TupleOf(elts ...Expr) *Tuple { return &Tuple{Elts: elts} }

// ListOf returns a list expression.
func ListOf(elts ...Expr) *List { return &List{Elts: elts} }
