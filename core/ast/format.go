package ast

import (
	"fmt"
	"strconv"
	"strings"
)

// Expressions render in the surface syntax of the source language so that
// generated programs and diagnostics read like the user's code.

func (e *Name) String() string { return e.ID }

func (e *Literal) String() string { return FormatValue(e.Value) }

func (e *Call) String() string {
	var b strings.Builder
	b.WriteString(e.Func.String())
	b.WriteByte('(')
	parts := make([]string, 0, len(e.Args)+len(e.Keywords))
	for _, a := range e.Args {
		parts = append(parts, a.String())
	}
	for _, kw := range e.Keywords {
		parts = append(parts, kw.Name+"="+kw.Value.String())
	}
	b.WriteString(strings.Join(parts, ", "))
	b.WriteByte(')')
	return b.String()
}

func (e *Tuple) String() string {
	if len(e.Elts) == 1 {
		return "(" + e.Elts[0].String() + ",)"
	}
	return "(" + joinExprs(e.Elts) + ")"
}

func (e *List) String() string { return "[" + joinExprs(e.Elts) + "]" }

func (e *BinOp) String() string {
	return fmt.Sprintf("(%s %s %s)", e.Left, e.Op, e.Right)
}

func (e *Subscript) String() string {
	if !e.Slice {
		return fmt.Sprintf("%s[%s]", e.Value, e.Index)
	}
	lower, upper := "", ""
	if e.Lower != nil {
		lower = e.Lower.String()
	}
	if e.Upper != nil {
		upper = e.Upper.String()
	}
	return fmt.Sprintf("%s[%s:%s]", e.Value, lower, upper)
}

// Statements render as a single header line; use Format for whole blocks.

func (s *Assign) String() string {
	parts := make([]string, 0, len(s.Targets)+1)
	for _, t := range s.Targets {
		parts = append(parts, t.String())
	}
	parts = append(parts, s.Value.String())
	return strings.Join(parts, " = ")
}

func (s *For) String() string { return fmt.Sprintf("for %s in %s:", s.Target, s.Iter) }

func (s *If) String() string { return fmt.Sprintf("if %s:", s.Test) }

func (s *Concur) String() string { return "with concur:" }

func (s *Seq) String() string {
	if len(s.Channels) == 0 {
		return "with seq:"
	}
	return "with seq: # " + strings.Join(s.Channels, ", ")
}

func (s *ExprStmt) String() string { return s.X.String() }

func (s *FuncDef) String() string {
	params := make([]string, len(s.Params))
	for i, p := range s.Params {
		params[i] = p.Name
		if p.Annotation != "" {
			params[i] += ": " + p.Annotation
		}
		if p.Default != nil {
			params[i] += "=" + p.Default.String()
		}
	}
	return fmt.Sprintf("def %s(%s):", s.Name, strings.Join(params, ", "))
}

func (s *Return) String() string {
	if s.Value == nil {
		return "return"
	}
	return "return " + s.Value.String()
}

// FormatValue renders a literal value.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "None"
	case bool:
		if val {
			return "True"
		}
		return "False"
	case string:
		return quote(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		s := strconv.FormatFloat(val, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	default:
		return fmt.Sprintf("%v", val)
	}
}

// quote renders a single-quoted string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\'':
			b.WriteString(`\'`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

// Format renders a statement list as indented source text.
func Format(stmts []Stmt) string {
	var b strings.Builder
	formatBlock(&b, stmts, 0)
	return b.String()
}

func formatBlock(b *strings.Builder, stmts []Stmt, depth int) {
	indent := strings.Repeat("    ", depth)
	if len(stmts) == 0 {
		b.WriteString(indent + "pass\n")
		return
	}
	for _, stmt := range stmts {
		b.WriteString(indent + stmt.String() + "\n")
		switch s := stmt.(type) {
		case *For:
			formatBlock(b, s.Body, depth+1)
			if len(s.Else) > 0 {
				b.WriteString(indent + "else:\n")
				formatBlock(b, s.Else, depth+1)
			}
		case *If:
			formatBlock(b, s.Body, depth+1)
			if len(s.Else) > 0 {
				b.WriteString(indent + "else:\n")
				formatBlock(b, s.Else, depth+1)
			}
		case *Concur:
			formatBlock(b, s.Body, depth+1)
		case *Seq:
			formatBlock(b, s.Body, depth+1)
		case *FuncDef:
			formatBlock(b, s.Body, depth+1)
		}
	}
}
