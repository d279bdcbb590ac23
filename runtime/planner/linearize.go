package planner

import (
	"fmt"
	"strings"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/runtime/diag"
)

// Linearize flattens a grouped, inlined body into one instruction sequence.
//
// Concurrent blocks contribute their Seq groups in order. Channel
// acquisitions allocate registers and produce no instruction. Assignments of
// call-free values are folded into later statements. Calls are expanded
// against the registers they take. Anything else is an orphan statement.
func (r *Run) Linearize(body []ast.Stmt) (*seqfmt.Sequence, error) {
	r.debug("enter_linearize", "")

	l := &linearizer{
		r:    r,
		seq:  &seqfmt.Sequence{Target: r.cfg.Target},
		env:   NewBindingEnv(),
		used:  make(map[int]bool),
		names: make(map[int]string),
	}
	if err := l.block(body); err != nil {
		return nil, err
	}

	for _, idx := range r.registry.Known() {
		l.used[idx] = true
	}
	for idx := range l.used {
		if err := l.seq.Acquire(seqfmt.Acquisition{
			Channel: string(ChannelVar(idx)),
			Label:   fmt.Sprintf("q%d", idx),
			Index:   idx,
		}); err != nil {
			return nil, err
		}
	}
	if err := l.seq.AddImport(seqfmt.RuntimeImport); err != nil {
		return nil, err
	}

	if len(l.seq.Instructions) == 0 {
		r.sink.Warn(diag.StageLinearize, r.pos, "No qubit operations discovered")
	}

	l.seq.Freeze()
	invariant.ExpectNoError(l.seq.Validate(), "linearized sequence")

	if r.telemetry != nil {
		r.telemetry.Instructions = len(l.seq.Instructions)
		r.telemetry.Channels = len(l.seq.Acquisitions)
	}
	return l.seq, nil
}

type linearizer struct {
	r     *Run
	seq   *seqfmt.Sequence
	env   *BindingEnv
	used  map[int]bool
	names map[int]string // physical index -> channel name seen in the source
}

func (l *linearizer) block(stmts []ast.Stmt) error {
	for _, stmt := range stmts {
		if err := l.stmt(stmt); err != nil {
			return err
		}
	}
	return nil
}

func (l *linearizer) stmt(stmt ast.Stmt) error {
	switch s := stmt.(type) {
	case *ast.Concur:
		return l.block(s.Body)
	case *ast.Seq:
		return l.block(s.Body)
	case *ast.Assign:
		l.assign(s)
		return nil
	case *ast.ExprStmt:
		switch x := s.X.(type) {
		case *ast.Call:
			return l.call(x)
		case *ast.Literal:
			if _, doc := x.Value.(string); doc {
				return nil
			}
		}
	}
	l.orphan(stmt)
	return nil
}

func (l *linearizer) orphan(stmt ast.Stmt) {
	l.r.sink.Error(diag.StageLinearize, stmt.Position(), "orphan statement: %s", firstLine(stmt.String()))
}

// assign handles register allocation, register aliasing and value folding.
func (l *linearizer) assign(s *ast.Assign) {
	if _, call, ok := ast.IsChannelAlloc(s); ok {
		name := s.Targets[0].(*ast.Name).ID
		alloc := ast.CloneExpr(call).(*ast.Call)
		l.env.SubstituteExpr(alloc)
		if _, err := l.r.registry.Allocate(name, alloc); err != nil {
			l.r.sink.Error(diag.StageLinearize, s.Pos, "%v", err)
			return
		}
		l.env.Shadow(name)
		return
	}

	if len(s.Targets) != 1 {
		l.orphan(s)
		return
	}
	target, ok := s.Targets[0].(*ast.Name)
	if !ok {
		l.orphan(s)
		return
	}

	value := l.env.SubstituteExpr(ast.CloneExpr(s.Value))
	if reg, ok, err := l.register(value); ok {
		if err != nil {
			l.r.sink.Error(diag.StageLinearize, s.Pos, "%v", err)
			return
		}
		l.r.registry.Bind(target.ID, reg)
		l.env.Shadow(target.ID)
		return
	}
	if !callFree(value) {
		l.orphan(s)
		return
	}
	l.env.Define(target.ID, value)
}

// register evaluates e as a register reference. ok is false when e does not
// refer to a register at all.
func (l *linearizer) register(e ast.Expr) (reg *Register, ok bool, err error) {
	switch x := e.(type) {
	case *ast.Name:
		if g, found := l.r.registry.Lookup(x.ID); found {
			return g, true, nil
		}
		if l.r.channels.IsChannel(x.ID) {
			idx := seqfmt.ChannelIndex(x.ID)
			if idx < 0 {
				return nil, true, fmt.Errorf("channel %s has no physical index", x.ID)
			}
			if prev, seen := l.names[idx]; seen && prev != x.ID {
				return nil, true, fmt.Errorf("channels %s and %s both name physical channel %d", prev, x.ID, idx)
			}
			l.names[idx] = x.ID
			return &Register{Name: x.ID, Channels: []int{idx}}, true, nil
		}
	case *ast.Subscript:
		base, isName := x.Value.(*ast.Name)
		if !isName {
			return nil, false, nil
		}
		if _, found := l.r.registry.Lookup(base.ID); !found {
			return nil, false, nil
		}
		g, err := l.r.registry.Subscript(x)
		return g, true, err
	}
	return nil, false, nil
}

// argument is one evaluated call argument: a register or a plain value.
type argument struct {
	reg   *Register
	value seqfmt.Value
}

func (l *linearizer) call(call *ast.Call) error {
	name, ok := call.CalleeName()
	if !ok {
		l.r.sink.Error(diag.StageLinearize, call.Pos, "cannot find import info for [%s]", call.Func)
		return nil
	}

	call = ast.CloneExpr(call).(*ast.Call)
	for i, arg := range call.Args {
		call.Args[i] = l.env.SubstituteExpr(arg)
	}
	for i := range call.Keywords {
		call.Keywords[i].Value = l.env.SubstituteExpr(call.Keywords[i].Value)
	}

	def, err := l.r.resolve(call.Pos, name)
	if err != nil {
		return err
	}
	if def == nil {
		l.r.sink.Error(diag.StageLinearize, call.Pos, "cannot find import info for [%s]", name)
		return nil
	}
	if !def.Stub {
		l.r.sink.Error(diag.StageLinearize, call.Pos, "not a stub: [%s]", name)
		return nil
	}

	args := make([]argument, len(call.Args))
	for i, e := range call.Args {
		a, err := l.argument(e)
		if err != nil {
			l.r.sink.Error(diag.StageLinearize, call.Pos, "%s(): %v", name, err)
			return nil
		}
		args[i] = a
	}
	kwargs := make([]argument, len(call.Keywords))
	for i, kw := range call.Keywords {
		a, err := l.argument(kw.Value)
		if err != nil {
			l.r.sink.Error(diag.StageLinearize, call.Pos, "%s(): %v", name, err)
			return nil
		}
		if a.reg != nil && a.reg.Len() != 1 {
			l.r.sink.Error(diag.StageLinearize, call.Pos,
				"keyword argument '%s' of %s() must be a single channel", kw.Name, name)
			return nil
		}
		kwargs[i] = a
	}

	op, imp := opAndImport(name, def.Import.Module, def.Import.Symbol)
	control := call.Return == ast.ReturnControl || def.ReturnKind == ast.ReturnControl

	var instrs []seqfmt.Instruction
	if control {
		in := seqfmt.Instruction{Op: op}
		for _, a := range args {
			in.Args = append(in.Args, l.expand(a)...)
		}
		in.Keywords = l.keywords(call.Keywords, kwargs)
		instrs = append(instrs, in)
	} else {
		width := -1
		for _, a := range args {
			if a.reg == nil {
				continue
			}
			if width >= 0 && a.reg.Len() != width {
				l.r.sink.Error(diag.StageLinearize, call.Pos, "mismatched register lengths in %s", call)
				return nil
			}
			width = a.reg.Len()
		}
		if width < 0 {
			width = 1
		}
		for i := 0; i < width; i++ {
			in := seqfmt.Instruction{Op: op}
			for _, a := range args {
				in.Args = append(in.Args, l.at(a, i))
			}
			in.Keywords = l.keywords(call.Keywords, kwargs)
			instrs = append(instrs, in)
		}
	}

	for _, in := range instrs {
		if err := l.seq.Append(in); err != nil {
			return err
		}
	}
	if len(instrs) > 0 {
		if err := l.seq.AddImport(imp); err != nil {
			return err
		}
	}
	return nil
}

func (l *linearizer) argument(e ast.Expr) (argument, error) {
	reg, ok, err := l.register(e)
	if err != nil {
		return argument{}, err
	}
	if ok {
		return argument{reg: reg}, nil
	}
	return argument{value: valueOf(e)}, nil
}

// at returns the i-th element of a register argument, or the value itself.
func (l *linearizer) at(a argument, i int) seqfmt.Value {
	if a.reg == nil {
		return a.value
	}
	l.used[a.reg.Channels[i]] = true
	return seqfmt.Channel(string(a.reg.Var(i)))
}

// expand returns every channel of a register argument, or the value itself.
func (l *linearizer) expand(a argument) []seqfmt.Value {
	if a.reg == nil {
		return []seqfmt.Value{a.value}
	}
	out := make([]seqfmt.Value, a.reg.Len())
	for i := range out {
		out[i] = l.at(a, i)
	}
	return out
}

// keywords converts keyword arguments. Register keywords are single channels.
func (l *linearizer) keywords(kws []ast.Keyword, args []argument) []seqfmt.Keyword {
	if len(kws) == 0 {
		return nil
	}
	out := make([]seqfmt.Keyword, len(kws))
	for j, kw := range kws {
		out[j] = seqfmt.Keyword{Name: kw.Name, Val: l.at(args[j], 0)}
	}
	return out
}

// opAndImport picks the instruction name and its manifest entry. A dotted
// name reached through a module alias is emitted by its symbol.
func opAndImport(name, module, symbol string) (string, seqfmt.Import) {
	if strings.Contains(name, ".") {
		return symbol, seqfmt.Import{Module: module, Symbol: symbol}
	}
	imp := seqfmt.Import{Module: module, Symbol: symbol}
	if name != symbol {
		imp.Alias = name
	}
	return name, imp
}

// valueOf converts a literal (or constant arithmetic over literals) into a
// typed value. Anything else is carried as rendered source.
func valueOf(e ast.Expr) seqfmt.Value {
	switch x := e.(type) {
	case *ast.Literal:
		switch v := x.Value.(type) {
		case int64:
			return seqfmt.Value{Kind: seqfmt.ValueInt, Int: v}
		case float64:
			return seqfmt.Value{Kind: seqfmt.ValueFloat, Float: v}
		case string:
			return seqfmt.Value{Kind: seqfmt.ValueString, Str: v}
		case bool:
			return seqfmt.Value{Kind: seqfmt.ValueBool, Bool: v}
		case nil:
			return seqfmt.Value{Kind: seqfmt.ValueNone}
		}
	case *ast.BinOp:
		if v, ok := fold(x.Op, valueOf(x.Left), valueOf(x.Right)); ok {
			return v
		}
	}
	return seqfmt.Value{Kind: seqfmt.ValueExpr, Str: e.String()}
}

// fold evaluates + - * / over numeric values. Integer division and division
// by zero are not folded.
func fold(op string, a, b seqfmt.Value) (seqfmt.Value, bool) {
	if a.Kind == seqfmt.ValueInt && b.Kind == seqfmt.ValueInt {
		switch op {
		case "+":
			return seqfmt.Value{Kind: seqfmt.ValueInt, Int: a.Int + b.Int}, true
		case "-":
			return seqfmt.Value{Kind: seqfmt.ValueInt, Int: a.Int - b.Int}, true
		case "*":
			return seqfmt.Value{Kind: seqfmt.ValueInt, Int: a.Int * b.Int}, true
		}
	}
	x, okA := asFloat(a)
	y, okB := asFloat(b)
	if !okA || !okB {
		return seqfmt.Value{}, false
	}
	var z float64
	switch op {
	case "+":
		z = x + y
	case "-":
		z = x - y
	case "*":
		z = x * y
	case "/":
		if y == 0 {
			return seqfmt.Value{}, false
		}
		z = x / y
	default:
		return seqfmt.Value{}, false
	}
	return seqfmt.Value{Kind: seqfmt.ValueFloat, Float: z}, true
}

func asFloat(v seqfmt.Value) (float64, bool) {
	switch v.Kind {
	case seqfmt.ValueInt:
		return float64(v.Int), true
	case seqfmt.ValueFloat:
		return v.Float, true
	}
	return 0, false
}

func callFree(e ast.Expr) bool {
	free := true
	ast.Inspect(e, func(n ast.Node) bool {
		if _, ok := n.(*ast.Call); ok {
			free = false
		}
		return free
	})
	return free
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
