package ast

// Inspect traverses the tree rooted at node in depth-first order. It calls
// f(n) for each node; if f returns true, Inspect descends into n's children.
func Inspect(node Node, f func(Node) bool) {
	if node == nil || isNilNode(node) || !f(node) {
		return
	}
	for _, child := range children(node) {
		Inspect(child, f)
	}
}

func children(node Node) []Node {
	var out []Node
	addExpr := func(e Expr) {
		if e != nil {
			out = append(out, e)
		}
	}
	addStmts := func(stmts []Stmt) {
		for _, s := range stmts {
			out = append(out, s)
		}
	}
	switch n := node.(type) {
	case *Assign:
		for _, t := range n.Targets {
			addExpr(t)
		}
		addExpr(n.Value)
	case *For:
		addExpr(n.Target)
		addExpr(n.Iter)
		addStmts(n.Body)
		addStmts(n.Else)
	case *If:
		addExpr(n.Test)
		addStmts(n.Body)
		addStmts(n.Else)
	case *Concur:
		addStmts(n.Body)
	case *Seq:
		addStmts(n.Body)
	case *ExprStmt:
		addExpr(n.X)
	case *FuncDef:
		for _, p := range n.Params {
			addExpr(p.Default)
		}
		addStmts(n.Body)
	case *Return:
		addExpr(n.Value)
	case *Call:
		addExpr(n.Func)
		for _, a := range n.Args {
			addExpr(a)
		}
		for _, kw := range n.Keywords {
			addExpr(kw.Value)
		}
	case *Tuple:
		for _, e := range n.Elts {
			addExpr(e)
		}
	case *List:
		for _, e := range n.Elts {
			addExpr(e)
		}
	case *BinOp:
		addExpr(n.Left)
		addExpr(n.Right)
	case *Subscript:
		addExpr(n.Value)
		addExpr(n.Index)
		addExpr(n.Lower)
		addExpr(n.Upper)
	}
	return out
}

// RewriteFunc is called for each expression visited by Rewrite. Returning
// (replacement, true) substitutes the expression and stops descent into it.
type RewriteFunc func(Expr) (Expr, bool)

// RewriteExpr rewrites expr in place, consulting f before descending into
// each node. The (possibly replaced) root is returned.
func RewriteExpr(expr Expr, f RewriteFunc) Expr {
	if expr == nil {
		return nil
	}
	if repl, ok := f(expr); ok {
		return repl
	}
	switch e := expr.(type) {
	case *Call:
		e.Func = RewriteExpr(e.Func, f)
		for i := range e.Args {
			e.Args[i] = RewriteExpr(e.Args[i], f)
		}
		for i := range e.Keywords {
			e.Keywords[i].Value = RewriteExpr(e.Keywords[i].Value, f)
		}
	case *Tuple:
		for i := range e.Elts {
			e.Elts[i] = RewriteExpr(e.Elts[i], f)
		}
	case *List:
		for i := range e.Elts {
			e.Elts[i] = RewriteExpr(e.Elts[i], f)
		}
	case *BinOp:
		e.Left = RewriteExpr(e.Left, f)
		e.Right = RewriteExpr(e.Right, f)
	case *Subscript:
		e.Value = RewriteExpr(e.Value, f)
		e.Index = RewriteExpr(e.Index, f)
		e.Lower = RewriteExpr(e.Lower, f)
		e.Upper = RewriteExpr(e.Upper, f)
	}
	return expr
}

// isNilNode catches typed nil pointers stored in an interface.
func isNilNode(n Node) bool {
	switch v := n.(type) {
	case *Assign:
		return v == nil
	case *For:
		return v == nil
	case *If:
		return v == nil
	case *Concur:
		return v == nil
	case *Seq:
		return v == nil
	case *ExprStmt:
		return v == nil
	case *FuncDef:
		return v == nil
	case *Return:
		return v == nil
	case *Name:
		return v == nil
	case *Literal:
		return v == nil
	case *Call:
		return v == nil
	case *Tuple:
		return v == nil
	case *List:
		return v == nil
	case *BinOp:
		return v == nil
	case *Subscript:
		return v == nil
	}
	return false
}
