package planner

import (
	"errors"
	"fmt"
	"strings"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/symtab"
)

// Inline replaces calls to procedures with their parameter-substituted
// bodies, revisiting each expansion for further inlinable calls.
//
// A call is inlined only when its callee is a direct name that resolves to a
// procedure. Anything else is left as an ordinary call. Argument mismatches
// are errors that leave the call unexpanded. Recursion, direct or through
// other procedures, and expansions deeper than Config.MaxInlineDepth are
// fatal.
func (r *Run) Inline(body []ast.Stmt) ([]ast.Stmt, error) {
	r.debug("enter_inline", "")
	return r.inlineStmts(body, nil)
}

// inlineFrame is one active expansion on the inline stack.
type inlineFrame struct {
	key  string // module.name of the callee
	name string
}

func (r *Run) inlineStmts(stmts []ast.Stmt, stack []inlineFrame) ([]ast.Stmt, error) {
	out := make([]ast.Stmt, 0, len(stmts))
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.ExprStmt:
			expansion, err := r.inlineCall(s, stack)
			if err != nil {
				return nil, err
			}
			if expansion != nil {
				out = append(out, expansion...)
				continue
			}

		case *ast.For:
			body, err := r.inlineStmts(s.Body, stack)
			if err != nil {
				return nil, err
			}
			orelse, err := r.inlineStmts(s.Else, stack)
			if err != nil {
				return nil, err
			}
			s.Body, s.Else = body, orelse

		case *ast.If:
			body, err := r.inlineStmts(s.Body, stack)
			if err != nil {
				return nil, err
			}
			orelse, err := r.inlineStmts(s.Else, stack)
			if err != nil {
				return nil, err
			}
			s.Body, s.Else = body, orelse

		case *ast.Concur:
			body, err := r.inlineStmts(s.Body, stack)
			if err != nil {
				return nil, err
			}
			s.Body = body

		case *ast.Seq:
			body, err := r.inlineStmts(s.Body, stack)
			if err != nil {
				return nil, err
			}
			s.Body = body
		}
		out = append(out, stmt)
	}
	return out, nil
}

// inlineCall returns the expansion of a call statement, or nil when the call
// stays as it is.
func (r *Run) inlineCall(stmt *ast.ExprStmt, stack []inlineFrame) ([]ast.Stmt, error) {
	call, ok := stmt.X.(*ast.Call)
	if !ok {
		return nil, nil
	}
	name, ok := call.CalleeName()
	if !ok {
		return nil, nil
	}

	def, err := r.resolve(call.Pos, name)
	if err != nil {
		return nil, err
	}
	if def == nil || !def.IsProcedure() {
		return nil, nil
	}

	key := def.Module + "." + def.Name
	for i, frame := range stack {
		if frame.key == key {
			cycle := make([]string, 0, len(stack)-i+1)
			for _, f := range stack[i:] {
				cycle = append(cycle, f.name)
			}
			cycle = append(cycle, name)
			return nil, r.sink.Fatal(diag.StageInline, call.Pos,
				"recursive procedure cannot be inlined: %s", strings.Join(cycle, " -> "))
		}
	}
	if len(stack) >= r.cfg.MaxInlineDepth {
		return nil, r.sink.Fatal(diag.StageInline, call.Pos,
			"inline depth exceeds %d while expanding %s()", r.cfg.MaxInlineDepth, name)
	}

	bindings, err := bindArguments(name, def, call)
	if err != nil {
		r.sink.Error(diag.StageInline, call.Pos, "%v", err)
		return nil, nil
	}

	// One temporary per bound formal, assigned in evaluation order.
	renames := make(map[string]string, len(bindings))
	expansion := make([]ast.Stmt, 0, len(bindings)+len(def.Func.Body))
	for _, b := range bindings {
		tmp := r.temps.Fresh(b.formal)
		renames[b.formal] = tmp
		expansion = append(expansion, &ast.Assign{
			Pos:     call.Pos,
			Targets: []ast.Expr{&ast.Name{Pos: call.Pos, ID: tmp}},
			Value:   ast.CloneExpr(b.actual),
		})
	}

	body := ast.CloneStmts(def.Func.Body)
	renameFormals(body, renames)
	expansion = append(expansion, body...)

	if r.telemetry != nil {
		r.telemetry.CallsInlined++
	}
	r.debug("call_inlined", fmt.Sprintf("%s %s()", call.Pos, name))

	frame := inlineFrame{key: key, name: name}
	return r.inlineStmts(expansion, append(stack[:len(stack):len(stack)], frame))
}

// argBinding is one formal bound to the expression passed for it.
type argBinding struct {
	formal string
	actual ast.Expr
}

// bindArguments binds positional actuals, then keyword actuals, then
// defaults, returning the bindings in that evaluation order.
func bindArguments(name string, def *symtab.Definition, call *ast.Call) ([]argBinding, error) {
	params := def.Params
	if len(call.Args) > len(params) {
		return nil, fmt.Errorf("%s() takes %d positional arguments but %d were given",
			name, len(params), len(call.Args))
	}

	bound := make(map[string]bool, len(params))
	bindings := make([]argBinding, 0, len(params))
	for i, arg := range call.Args {
		bound[params[i].Name] = true
		bindings = append(bindings, argBinding{formal: params[i].Name, actual: arg})
	}

	for _, kw := range call.Keywords {
		if !hasParam(params, kw.Name) {
			return nil, fmt.Errorf("%s() got an unexpected keyword argument '%s'", name, kw.Name)
		}
		if bound[kw.Name] {
			return nil, fmt.Errorf("%s() got multiple values for argument '%s'", name, kw.Name)
		}
		bound[kw.Name] = true
		bindings = append(bindings, argBinding{formal: kw.Name, actual: kw.Value})
	}

	for _, p := range params {
		if bound[p.Name] {
			continue
		}
		if p.Default == nil {
			return nil, fmt.Errorf("%s() missing required positional argument: '%s'", name, p.Name)
		}
		bound[p.Name] = true
		bindings = append(bindings, argBinding{formal: p.Name, actual: p.Default})
	}
	return bindings, nil
}

func hasParam(params []ast.Param, name string) bool {
	for _, p := range params {
		if p.Name == name {
			return true
		}
	}
	return false
}

// renameFormals rewrites every reference to a formal, targets included, to
// its temporary. Nested definitions are not entered.
func renameFormals(body []ast.Stmt, renames map[string]string) {
	for _, stmt := range body {
		ast.Inspect(stmt, func(n ast.Node) bool {
			switch x := n.(type) {
			case *ast.Name:
				if tmp, ok := renames[x.ID]; ok {
					x.ID = tmp
				}
			case *ast.FuncDef:
				return false
			}
			return true
		})
	}
}

// resolve looks name up in the context of the file the call came from. An
// import cycle is fatal; any other resolver failure is an error and the
// call is treated as unresolved.
func (r *Run) resolve(pos ast.Position, name string) (*symtab.Definition, error) {
	file := pos.File
	if file == "" {
		file = r.file
	}
	def, err := r.resolver.Resolve(file, name)
	if err == nil {
		return def, nil
	}
	var cycle *symtab.CycleError
	if errors.As(err, &cycle) {
		return nil, r.sink.Fatal(diag.StageResolve, pos, "%v", err)
	}
	r.sink.Error(diag.StageResolve, pos, "cannot resolve [%s]: %v", name, err)
	return nil, nil
}
