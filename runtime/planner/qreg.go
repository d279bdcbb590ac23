package planner

import (
	"fmt"
	"sort"
	"strings"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/seqfmt"
)

// MaxRegisterSize bounds the channel count of QRegister(N).
const MaxRegisterSize = 4096

// Register is an ordered handle over one or more physical channels.
type Register struct {
	Name     string // Register name (QREG_n) or the variable it was bound to
	Channels []int  // Physical channel indices, in register order
}

// Len returns the number of channels in the register.
func (g *Register) Len() int { return len(g.Channels) }

// Var returns the channel variable at position i.
func (g *Register) Var(i int) ChannelRef { return ChannelVar(g.Channels[i]) }

// Slice returns the sub-register [lo:hi] with Python index semantics
// (negative indices count from the end, bounds are clamped).
func (g *Register) Slice(lo, hi int) *Register {
	n := len(g.Channels)
	lo, hi = clampIndex(lo, n), clampIndex(hi, n)
	if hi < lo {
		hi = lo
	}
	chans := make([]int, hi-lo)
	copy(chans, g.Channels[lo:hi])
	return &Register{Name: g.Name, Channels: chans}
}

// At returns the single channel at index i (negative from the end).
func (g *Register) At(i int) (int, error) {
	n := len(g.Channels)
	if i < 0 {
		i += n
	}
	if i < 0 || i >= n {
		return 0, fmt.Errorf("register index %d out of range for %s of length %d", i, g.Name, n)
	}
	return g.Channels[i], nil
}

func (g *Register) String() string {
	labels := make([]string, len(g.Channels))
	for i, c := range g.Channels {
		labels[i] = fmt.Sprintf("'q%d'", c)
	}
	return "QRegister(" + strings.Join(labels, ", ") + ")"
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

// Registry tracks the channels allocated during one run and the registers
// bound to variables. Never shared across runs.
type Registry struct {
	known map[int]bool
	vars  map[string]*Register
	count int
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{known: make(map[int]bool), vars: make(map[string]*Register)}
}

// Known returns the allocated channel indices in ascending order.
func (reg *Registry) Known() []int {
	out := make([]int, 0, len(reg.known))
	for i := range reg.known {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}

// Lookup returns the register bound to a variable.
func (reg *Registry) Lookup(name string) (*Register, bool) {
	g, ok := reg.vars[name]
	return g, ok
}

// Bind binds a variable to an existing register (aliasing).
func (reg *Registry) Bind(name string, g *Register) {
	reg.vars[name] = g
}

// Allocate evaluates a QRegister(...) or QubitFactory('qN') call and binds
// the result to name.
//
// QRegister accepts either a single integer N (the N lowest unused channels)
// or any mix of 'qN' labels, integer indices, registers and register
// subscripts. Repeated channels are kept once.
func (reg *Registry) Allocate(name string, call *ast.Call) (*Register, error) {
	fn, _ := call.CalleeName()
	if len(call.Args) == 0 {
		return nil, fmt.Errorf("must provide at least one argument to %s()", fn)
	}
	if len(call.Keywords) > 0 {
		return nil, fmt.Errorf("%s() does not take keyword arguments", fn)
	}

	var chans []int
	if fn == ast.QubitFactoryFunc {
		if len(call.Args) != 1 {
			return nil, fmt.Errorf("QubitFactory() takes exactly one channel label")
		}
		idx, err := labelIndex(call.Args[0])
		if err != nil {
			return nil, err
		}
		chans = []int{idx}
	} else if n, ok := intLiteral(call.Args[0]); ok && len(call.Args) == 1 {
		if n < 0 {
			return nil, fmt.Errorf("QRegister size must not be negative, got %d", n)
		}
		if n > MaxRegisterSize {
			return nil, fmt.Errorf("QRegister size %d exceeds the limit of %d channels", n, MaxRegisterSize)
		}
		for ct := 1; len(chans) < int(n); ct++ {
			if !reg.known[ct] {
				chans = append(chans, ct)
			}
		}
	} else {
		seen := make(map[int]bool)
		for _, arg := range call.Args {
			got, err := reg.argChannels(arg)
			if err != nil {
				return nil, fmt.Errorf("invalid QRegister constructor %s: %w", call, err)
			}
			for _, c := range got {
				if !seen[c] {
					seen[c] = true
					chans = append(chans, c)
				}
			}
		}
	}

	for _, c := range chans {
		reg.known[c] = true
	}
	reg.count++
	g := &Register{Name: fmt.Sprintf("QREG_%d", reg.count), Channels: chans}
	reg.vars[name] = g
	return g, nil
}

// argChannels evaluates one QRegister argument.
func (reg *Registry) argChannels(arg ast.Expr) ([]int, error) {
	switch a := arg.(type) {
	case *ast.Literal:
		switch v := a.Value.(type) {
		case int64:
			return []int{int(v)}, nil
		case string:
			idx, err := labelIndex(a)
			if err != nil {
				return nil, err
			}
			return []int{idx}, nil
		}
	case *ast.Name:
		if g, ok := reg.vars[a.ID]; ok {
			return g.Channels, nil
		}
		if idx := seqfmt.ChannelIndex(a.ID); strings.HasPrefix(a.ID, "QBIT_") && idx >= 0 {
			return []int{idx}, nil
		}
		return nil, fmt.Errorf("unknown register %s", a.ID)
	case *ast.Subscript:
		sub, err := reg.Subscript(a)
		if err != nil {
			return nil, err
		}
		return sub.Channels, nil
	case *ast.Tuple:
		return reg.argList(a.Elts)
	case *ast.List:
		return reg.argList(a.Elts)
	}
	return nil, fmt.Errorf("arg %s unknown", arg)
}

func (reg *Registry) argList(elts []ast.Expr) ([]int, error) {
	var out []int
	for _, e := range elts {
		got, err := reg.argChannels(e)
		if err != nil {
			return nil, err
		}
		out = append(out, got...)
	}
	return out, nil
}

// Subscript evaluates reg[i] or reg[i:j] over a bound register.
func (reg *Registry) Subscript(s *ast.Subscript) (*Register, error) {
	base, ok := s.Value.(*ast.Name)
	if !ok {
		return nil, fmt.Errorf("unhandled register subscript %s", s)
	}
	g, ok := reg.vars[base.ID]
	if !ok {
		return nil, fmt.Errorf("unknown register %s", base.ID)
	}
	if s.Slice {
		lo, hi := 0, g.Len()
		if s.Lower != nil {
			v, ok := intLiteral(s.Lower)
			if !ok {
				return nil, fmt.Errorf("unhandled register subscript %s", s)
			}
			lo = int(v)
		}
		if s.Upper != nil {
			v, ok := intLiteral(s.Upper)
			if !ok {
				return nil, fmt.Errorf("unhandled register subscript %s", s)
			}
			hi = int(v)
		}
		return g.Slice(lo, hi), nil
	}
	i, ok := intLiteral(s.Index)
	if !ok {
		return nil, fmt.Errorf("unhandled register subscript %s", s)
	}
	c, err := g.At(int(i))
	if err != nil {
		return nil, err
	}
	return &Register{Name: g.Name, Channels: []int{c}}, nil
}

// labelIndex parses a 'qN' channel label.
func labelIndex(e ast.Expr) (int, error) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, fmt.Errorf("channel label must be a string literal, got %s", e)
	}
	s, ok := lit.Value.(string)
	if !ok || len(s) < 2 {
		return 0, fmt.Errorf("channel names must be of the form q<int>: %s", lit)
	}
	idx := seqfmt.ChannelIndex(s)
	if s[0] != 'q' || idx < 0 || len(fmt.Sprint(idx)) != len(s)-1 {
		return 0, fmt.Errorf("channel names must be of the form q<int>: %s", lit)
	}
	return idx, nil
}

func intLiteral(e ast.Expr) (int64, bool) {
	lit, ok := e.(*ast.Literal)
	if !ok {
		return 0, false
	}
	switch v := lit.Value.(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	}
	return 0, false
}
