package ast

// CloneStmts creates a deep copy of a statement slice.
// Used by the unroller and the inliner to give every expansion its own tree.
func CloneStmts(stmts []Stmt) []Stmt {
	if stmts == nil {
		return nil
	}
	result := make([]Stmt, len(stmts))
	for i, stmt := range stmts {
		result[i] = CloneStmt(stmt)
	}
	return result
}

// CloneStmt creates a deep copy of a single statement.
func CloneStmt(stmt Stmt) Stmt {
	switch s := stmt.(type) {
	case nil:
		return nil
	case *Assign:
		return &Assign{Pos: s.Pos, Targets: CloneExprs(s.Targets), Value: CloneExpr(s.Value)}
	case *For:
		return &For{
			Pos:    s.Pos,
			Target: CloneExpr(s.Target),
			Iter:   CloneExpr(s.Iter),
			Body:   CloneStmts(s.Body),
			Else:   CloneStmts(s.Else),
		}
	case *If:
		return &If{Pos: s.Pos, Test: CloneExpr(s.Test), Body: CloneStmts(s.Body), Else: CloneStmts(s.Else)}
	case *Concur:
		return &Concur{Pos: s.Pos, Body: CloneStmts(s.Body)}
	case *Seq:
		return &Seq{Pos: s.Pos, Channels: cloneStrings(s.Channels), Body: CloneStmts(s.Body)}
	case *ExprStmt:
		return &ExprStmt{Pos: s.Pos, X: CloneExpr(s.X)}
	case *FuncDef:
		params := make([]Param, len(s.Params))
		for i, p := range s.Params {
			params[i] = Param{Name: p.Name, Annotation: p.Annotation, Default: CloneExpr(p.Default)}
		}
		return &FuncDef{
			Pos:     s.Pos,
			Name:    s.Name,
			Params:  params,
			Body:    CloneStmts(s.Body),
			Decl:    s.Decl,
			Returns: s.Returns,
		}
	case *Return:
		return &Return{Pos: s.Pos, Value: CloneExpr(s.Value)}
	default:
		panic("ast: CloneStmt: unknown statement type")
	}
}

// CloneExprs creates a deep copy of an expression slice.
func CloneExprs(exprs []Expr) []Expr {
	if exprs == nil {
		return nil
	}
	result := make([]Expr, len(exprs))
	for i, e := range exprs {
		result[i] = CloneExpr(e)
	}
	return result
}

// CloneExpr creates a deep copy of an expression.
func CloneExpr(expr Expr) Expr {
	switch e := expr.(type) {
	case nil:
		return nil
	case *Name:
		return &Name{Pos: e.Pos, ID: e.ID}
	case *Literal:
		// Literal values are immutable scalars
		return &Literal{Pos: e.Pos, Value: e.Value}
	case *Call:
		var kws []Keyword
		if e.Keywords != nil {
			kws = make([]Keyword, len(e.Keywords))
			for i, kw := range e.Keywords {
				kws[i] = Keyword{Name: kw.Name, Value: CloneExpr(kw.Value)}
			}
		}
		return &Call{
			Pos:      e.Pos,
			Func:     CloneExpr(e.Func),
			Args:     CloneExprs(e.Args),
			Keywords: kws,
			Return:   e.Return,
		}
	case *Tuple:
		return &Tuple{Pos: e.Pos, Elts: CloneExprs(e.Elts)}
	case *List:
		return &List{Pos: e.Pos, Elts: CloneExprs(e.Elts)}
	case *BinOp:
		return &BinOp{Pos: e.Pos, Op: e.Op, Left: CloneExpr(e.Left), Right: CloneExpr(e.Right)}
	case *Subscript:
		return &Subscript{
			Pos:   e.Pos,
			Value: CloneExpr(e.Value),
			Index: CloneExpr(e.Index),
			Slice: e.Slice,
			Lower: CloneExpr(e.Lower),
			Upper: CloneExpr(e.Upper),
		}
	default:
		panic("ast: CloneExpr: unknown expression type")
	}
}

func cloneStrings(s []string) []string {
	if s == nil {
		return nil
	}
	out := make([]string, len(s))
	copy(out, s)
	return out
}
