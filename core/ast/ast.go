// Package ast defines the program tree consumed by the lowering pipeline.
//
// The tree is a restricted, statically analyzable subset of an imperative
// language extended with concurrent blocks. Every node carries the Position
// of the source it came from so diagnostics can point back at it.
//
// Nodes are plain mutable structs. Passes that expand a subtree more than once
// (loop unrolling, inlining) must Clone before mutating; see clone.go.
package ast

import (
	"fmt"
	"strings"
)

// Node represents any node in the tree
type Node interface {
	String() string
	Position() Position
}

// Stmt is a statement node.
type Stmt interface {
	Node
	stmtNode()
}

// Expr is an expression node.
type Expr interface {
	Node
	exprNode()
}

// Position represents source location information
type Position struct {
	File   string // Originating file (used for diagnostics and symbol lookup)
	Line   int
	Column int
}

// String formats the position as file:line:col.
func (p Position) String() string {
	file := p.File
	if file == "" {
		file = "<unknown>"
	}
	return fmt.Sprintf("%s:%d:%d", file, p.Line, p.Column)
}

// ReturnKind classifies what a callee produces.
// Attached by the type checker where available.
type ReturnKind int

const (
	ReturnUnknown ReturnKind = iota // Not classified
	ReturnPulse                     // Produces a pulse on its channel arguments
	ReturnControl                   // Control/broadcast operation over all channels (Barrier, Sync, ...)
	ReturnPlain                     // Ordinary value
)

func (k ReturnKind) String() string {
	switch k {
	case ReturnPulse:
		return "pulse"
	case ReturnControl:
		return "control"
	case ReturnPlain:
		return "plain"
	default:
		return "unknown"
	}
}

// ParseReturnKind maps a textual return kind to a ReturnKind.
func ParseReturnKind(s string) ReturnKind {
	switch s {
	case "pulse":
		return ReturnPulse
	case "control":
		return ReturnControl
	case "plain", "classical":
		return ReturnPlain
	default:
		return ReturnUnknown
	}
}

// ========== Statements ==========

// Assign represents `t1 = t2 = value`.
type Assign struct {
	Pos     Position
	Targets []Expr
	Value   Expr
}

// For represents `for target in iter: body else: orelse`.
type For struct {
	Pos    Position
	Target Expr
	Iter   Expr
	Body   []Stmt
	Else   []Stmt
}

// If represents a conditional.
type If struct {
	Pos  Position
	Test Expr
	Body []Stmt
	Else []Stmt
}

// Concur is a concurrent block: its direct statements start simultaneously
// on independent channels.
type Concur struct {
	Pos  Position
	Body []Stmt
}

// Seq is a sequential group of statements inside a Concur.
// Produced by the grouper; Channels lists the channels the group touches.
type Seq struct {
	Pos      Position
	Channels []string
	Body     []Stmt
}

// ExprStmt is an expression evaluated for its effect (usually a call).
type ExprStmt struct {
	Pos Position
	X   Expr
}

// Param is a formal parameter of a FuncDef.
type Param struct {
	Name       string
	Annotation string // "qbit", "classical", ... (informational)
	Default    Expr   // nil if required
}

// FuncDef is a function definition.
type FuncDef struct {
	Pos     Position
	Name    string
	Params  []Param
	Body    []Stmt
	Decl    bool       // Declared inlinable (qgl2decl)
	Returns ReturnKind // Declared return kind
}

// Return is a return statement; Value may be nil.
type Return struct {
	Pos   Position
	Value Expr
}

// ========== Expressions ==========

// Name is a reference to an identifier.
type Name struct {
	Pos Position
	ID  string
}

// Literal holds a constant: int64, float64, string, bool or nil.
type Literal struct {
	Pos   Position
	Value any
}

// Keyword is a keyword argument of a call.
type Keyword struct {
	Name  string
	Value Expr
}

// Call is a call expression.
type Call struct {
	Pos      Position
	Func     Expr
	Args     []Expr
	Keywords []Keyword
	Return   ReturnKind // Classification attached by the checker (optional)
}

// Tuple is a parenthesized fixed-length sequence.
type Tuple struct {
	Pos  Position
	Elts []Expr
}

// List is a bracketed fixed-length sequence.
type List struct {
	Pos  Position
	Elts []Expr
}

// BinOp is a binary operation.
type BinOp struct {
	Pos   Position
	Op    string // "+", "-", "*", "/", "%", "**", "==", ...
	Left  Expr
	Right Expr
}

// Subscript is `value[index]` or, when Slice is set, `value[lower:upper]`.
type Subscript struct {
	Pos   Position
	Value Expr
	Index Expr
	Slice bool
	Lower Expr // optional, slices only
	Upper Expr // optional, slices only
}

// ========== Node plumbing ==========

func (s *Assign) Position() Position   { return s.Pos }
func (s *For) Position() Position      { return s.Pos }
func (s *If) Position() Position       { return s.Pos }
func (s *Concur) Position() Position   { return s.Pos }
func (s *Seq) Position() Position      { return s.Pos }
func (s *ExprStmt) Position() Position { return s.Pos }
func (s *FuncDef) Position() Position  { return s.Pos }
func (s *Return) Position() Position   { return s.Pos }

func (*Assign) stmtNode()   {}
func (*For) stmtNode()      {}
func (*If) stmtNode()       {}
func (*Concur) stmtNode()   {}
func (*Seq) stmtNode()      {}
func (*ExprStmt) stmtNode() {}
func (*FuncDef) stmtNode()  {}
func (*Return) stmtNode()   {}

func (e *Name) Position() Position      { return e.Pos }
func (e *Literal) Position() Position   { return e.Pos }
func (e *Call) Position() Position      { return e.Pos }
func (e *Tuple) Position() Position     { return e.Pos }
func (e *List) Position() Position      { return e.Pos }
func (e *BinOp) Position() Position     { return e.Pos }
func (e *Subscript) Position() Position { return e.Pos }

func (*Name) exprNode()      {}
func (*Literal) exprNode()   {}
func (*Call) exprNode()      {}
func (*Tuple) exprNode()     {}
func (*List) exprNode()      {}
func (*BinOp) exprNode()     {}
func (*Subscript) exprNode() {}

// CalleeName returns the callee identifier when the call is through a direct
// name, and false otherwise (attribute access, computed callee, ...).
func (c *Call) CalleeName() (string, bool) {
	n, ok := c.Func.(*Name)
	if !ok {
		return "", false
	}
	return n.ID, true
}

// IsChannelAlloc reports whether stmt is a `name = QRegister(...)` or
// `name = QubitFactory(...)` channel acquisition.
func IsChannelAlloc(stmt Stmt) (*Assign, *Call, bool) {
	assign, ok := stmt.(*Assign)
	if !ok || len(assign.Targets) != 1 {
		return nil, nil, false
	}
	if _, ok := assign.Targets[0].(*Name); !ok {
		return nil, nil, false
	}
	call, ok := assign.Value.(*Call)
	if !ok {
		return nil, nil, false
	}
	name, ok := call.CalleeName()
	if !ok || (name != QRegisterFunc && name != QubitFactoryFunc) {
		return nil, nil, false
	}
	return assign, call, true
}

// Well-known callee names.
const (
	QRegisterFunc    = "QRegister"
	QubitFactoryFunc = "QubitFactory"
)

// ContainsReturn reports whether any Return appears in stmts, at any depth.
// Nested function definitions are not descended into.
func ContainsReturn(stmts []Stmt) bool {
	found := false
	for _, stmt := range stmts {
		Inspect(stmt, func(n Node) bool {
			if found {
				return false
			}
			switch n.(type) {
			case *Return:
				found = true
				return false
			case *FuncDef:
				return false
			}
			return true
		})
		if found {
			return true
		}
	}
	return false
}

// Names collects the identifiers bound by an assignment or loop target.
func Names(target Expr) []string {
	var names []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch t := e.(type) {
		case *Name:
			names = append(names, t.ID)
		case *Tuple:
			for _, elt := range t.Elts {
				walk(elt)
			}
		case *List:
			for _, elt := range t.Elts {
				walk(elt)
			}
		}
	}
	walk(target)
	return names
}

// joinExprs renders a list of expressions separated by ", ".
func joinExprs(exprs []Expr) string {
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = e.String()
	}
	return strings.Join(parts, ", ")
}
