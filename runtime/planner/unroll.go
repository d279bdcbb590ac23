package planner

import (
	"fmt"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
	"github.com/qgl2/qgl2c/runtime/diag"
)

// maxUnrollPasses bounds the fixed-point loop. Every pass that reports a
// change removes at least one literal loop, so this is never reached on
// finite input.
const maxUnrollPasses = 1 << 16

// Unroll expands, inside every concurrent block of body, each for-loop whose
// iterable is a literal list or tuple of static elements into one copy of
// its body per element. It runs to a fixed point: loops exposed by an outer
// expansion are expanded by a later pass over the same block.
//
// A concurrent block nested inside another is fatal. Every other problem is
// reported and processing continues with the remaining loops.
func (r *Run) Unroll(body []ast.Stmt) error {
	r.debug("enter_unroll", "")

	var worklist []*ast.Concur
	var fatal error
	r.forEachConcur(body, func(c *ast.Concur) {
		if fatal != nil {
			return
		}
		if inner := findNestedConcur(c.Body); inner != nil {
			fatal = r.sink.Fatal(diag.StageUnroll, inner.Pos, "nested concur blocks are not supported")
			return
		}
		worklist = append(worklist, c)
	})
	if fatal != nil {
		return fatal
	}

	passes := 0
	for len(worklist) > 0 {
		c := worklist[0]
		worklist = worklist[1:]

		expanded, changed := r.unrollBlock(c.Body)
		passes++
		invariant.Invariant(passes <= maxUnrollPasses, "unroll did not reach a fixed point after %d passes", passes)
		if changed {
			c.Body = expanded
			worklist = append(worklist, c)
		}
	}

	if r.telemetry != nil {
		r.telemetry.UnrollPasses += passes
	}
	return nil
}

// findNestedConcur returns the first concurrent block anywhere in stmts.
func findNestedConcur(stmts []ast.Stmt) *ast.Concur {
	var found *ast.Concur
	for _, stmt := range stmts {
		ast.Inspect(stmt, func(n ast.Node) bool {
			if found != nil {
				return false
			}
			if c, ok := n.(*ast.Concur); ok {
				found = c
				return false
			}
			_, isDef := n.(*ast.FuncDef)
			return !isDef
		})
		if found != nil {
			return found
		}
	}
	return nil
}

// unrollBlock performs one pass over stmts. Expansions are not rescanned in
// the same pass.
func (r *Run) unrollBlock(stmts []ast.Stmt) ([]ast.Stmt, bool) {
	out := make([]ast.Stmt, 0, len(stmts))
	changed := false

	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.For:
			if expansion, ok := r.unrollLoop(s); ok {
				out = append(out, expansion...)
				changed = true
				continue
			}
			body, c1 := r.unrollBlock(s.Body)
			s.Body = body
			changed = changed || c1
			out = append(out, s)

		case *ast.If:
			body, c1 := r.unrollBlock(s.Body)
			orelse, c2 := r.unrollBlock(s.Else)
			s.Body, s.Else = body, orelse
			changed = changed || c1 || c2
			out = append(out, s)

		case *ast.Seq:
			body, c1 := r.unrollBlock(s.Body)
			s.Body = body
			changed = changed || c1
			out = append(out, s)

		default:
			out = append(out, stmt)
		}
	}

	if !changed {
		return stmts, false
	}
	return out, true
}

// unrollLoop expands one loop. It returns false when the loop must be left
// in place.
func (r *Run) unrollLoop(loop *ast.For) ([]ast.Stmt, bool) {
	if len(loop.Else) > 0 {
		r.reportOnce(loop, diag.SeverityWarning, "for-loop with an else clause is not unrolled")
		return nil, false
	}

	elts, ok := literalElements(loop.Iter)
	if !ok {
		r.reportOnce(loop, diag.SeverityDiag, "for-loop over %s is not unrolled: iterable is not a literal list", loop.Iter)
		return nil, false
	}

	var out []ast.Stmt
	for _, elt := range elts {
		r.bindings.Push()
		if err := r.bindTarget(loop.Target, elt); err != nil {
			r.sink.Error(diag.StageUnroll, positionOf(elt, loop.Pos), "for-loop over %s: %v", loop.Iter, err)
			r.bindings.Pop()
			continue
		}
		body := ast.CloneStmts(loop.Body)
		r.bindings.SubstituteStmts(body)
		r.bindings.Pop()
		out = append(out, body...)
	}

	if r.telemetry != nil {
		r.telemetry.LoopsUnrolled++
	}
	r.debug("loop_unrolled", fmt.Sprintf("%s elements=%d", loop.Pos, len(elts)))
	return out, true
}

// literalElements returns the elements of a literal list/tuple iterable whose
// elements are all static.
func literalElements(iter ast.Expr) ([]ast.Expr, bool) {
	var elts []ast.Expr
	switch it := iter.(type) {
	case *ast.List:
		elts = it.Elts
	case *ast.Tuple:
		elts = it.Elts
	default:
		return nil, false
	}
	for _, e := range elts {
		if !isStatic(e) {
			return nil, false
		}
	}
	return elts, true
}

// isStatic reports whether e is a literal, a name, or a tuple, list or
// binary operation built from those.
func isStatic(e ast.Expr) bool {
	switch x := e.(type) {
	case *ast.Literal, *ast.Name:
		return true
	case *ast.Tuple:
		for _, elt := range x.Elts {
			if !isStatic(elt) {
				return false
			}
		}
		return true
	case *ast.List:
		for _, elt := range x.Elts {
			if !isStatic(elt) {
				return false
			}
		}
		return true
	case *ast.BinOp:
		return isStatic(x.Left) && isStatic(x.Right)
	default:
		return false
	}
}

// bindTarget binds a loop target to one element in the innermost scope.
func (r *Run) bindTarget(target, value ast.Expr) error {
	switch t := target.(type) {
	case *ast.Name:
		r.bindings.Define(t.ID, value)
		return nil
	case *ast.Tuple:
		return r.bindSequence(t.Elts, value)
	case *ast.List:
		return r.bindSequence(t.Elts, value)
	default:
		return fmt.Errorf("unsupported loop target %s", target)
	}
}

func (r *Run) bindSequence(targets []ast.Expr, value ast.Expr) error {
	var values []ast.Expr
	switch v := value.(type) {
	case *ast.Tuple:
		values = v.Elts
	case *ast.List:
		values = v.Elts
	default:
		return fmt.Errorf("cannot unpack %s into %d targets", value, len(targets))
	}
	if len(values) != len(targets) {
		return fmt.Errorf("element %s: expected %d values to unpack, got %d", value, len(targets), len(values))
	}
	for i := range targets {
		if err := r.bindTarget(targets[i], values[i]); err != nil {
			return err
		}
	}
	return nil
}

// reportOnce reports a diagnostic for a loop the first time it is seen, so
// repeated passes over the same block stay quiet.
func (r *Run) reportOnce(loop *ast.For, sev diag.Severity, format string, args ...any) {
	if r.reported[loop] {
		return
	}
	r.reported[loop] = true
	_ = r.sink.Report(diag.StageUnroll, sev, loop.Pos, format, args...)
}

func positionOf(n ast.Node, fallback ast.Position) ast.Position {
	if p := n.Position(); p.Line > 0 {
		return p
	}
	return fallback
}
