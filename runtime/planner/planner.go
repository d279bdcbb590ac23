// Package planner lowers one target function into a flat instruction
// sequence.
//
// The pipeline runs over a private copy of the function body:
//
//	Unroll -> Group -> Inline -> Unroll -> Group -> Linearize
//
// Unroll expands literal for-loops inside concurrent blocks, Group splits
// each concurrent block into channel-independent Seq groups, Inline expands
// procedure calls, and Linearize emits the sequence with its channel
// acquisitions and import manifest. The second Unroll and Group handle
// concurrent blocks that only appear once procedures are inlined.
//
// All mutable state (temporary names, register allocation, diagnostics,
// telemetry) lives on a Run, so independent compilations may proceed
// concurrently. The Resolver is only read.
package planner

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/symtab"
)

// DefaultMaxInlineDepth bounds nested procedure expansion.
const DefaultMaxInlineDepth = 64

// Resolver looks up the definition a name refers to in the context of a
// source module. It returns (nil, nil) when the name is unbound and a
// *symtab.CycleError when resolution runs into an import cycle.
type Resolver interface {
	Resolve(module, name string) (*symtab.Definition, error)
}

// Config configures the compiler.
//
// ChannelPattern only decides which names are channels. Every channel name
// must end in its physical index, and the sequence refers to physical
// channel n as ChannelVar(n) whatever the source called it, so two
// different names for one index are an error.
type Config struct {
	Target         string         // Name of the function being compiled (defaults to its own name)
	ChannelPattern string         // Regexp for channel names (DefaultChannelPattern if empty)
	TempPrefix     string         // Prefix of inliner temporaries (DefaultTempPrefix if empty)
	MaxInlineDepth int            // Nested expansion limit (DefaultMaxInlineDepth if zero)
	Telemetry      TelemetryLevel // Telemetry level (production-safe)
	Debug          DebugLevel     // Debug level (development only)
	Logger         *slog.Logger   // Diagnostic and trace logger (discarded if nil)
}

// TelemetryLevel controls telemetry collection (production-safe)
type TelemetryLevel int

const (
	TelemetryOff    TelemetryLevel = iota // Zero overhead (default)
	TelemetryBasic                        // Counters only
	TelemetryTiming                       // Counters + timing per phase
)

// DebugLevel controls debug tracing (development only)
type DebugLevel int

const (
	DebugOff      DebugLevel = iota // No debug info (default)
	DebugPaths                      // Phase entry tracing
	DebugDetailed                   // Every loop expansion and inlined call
)

// CompileResult holds the compiled unit and observability data
type CompileResult struct {
	Unit        *Unit             // The compiled sequence
	Body        []ast.Stmt        // Transformed body, before linearization
	Diagnostics []diag.Diagnostic // Every diagnostic reported, in order
	CompileTime time.Duration     // Compile time (always collected)
	Telemetry   *CompileTelemetry // Additional metrics (nil if TelemetryOff)
	DebugEvents []DebugEvent      // Debug events (nil if DebugOff)
}

// CompileTelemetry holds additional compiler metrics (optional, production-safe)
type CompileTelemetry struct {
	LoopsUnrolled int // Loops expanded
	UnrollPasses  int // Worklist passes over concurrent blocks
	Groups        int // Seq groups produced
	CallsInlined  int // Procedure calls expanded
	Instructions  int // Instructions emitted
	Channels      int // Channels acquired

	// Phase timings, set with TelemetryTiming
	UnrollTime    time.Duration
	GroupTime     time.Duration
	InlineTime    time.Duration
	LinearizeTime time.Duration
}

// DebugEvent holds debug tracing information (development only)
type DebugEvent struct {
	Timestamp time.Time
	Event     string // "enter_unroll", "loop_unrolled", "call_inlined", etc.
	Context   string // Additional context
}

// CompileError represents a compilation failure with rich context
type CompileError struct {
	Message     string            // Clear, specific error message
	Context     string            // What we were compiling
	Suggestion  string            // How to fix it
	Example     string            // Valid example
	Diagnostics []diag.Diagnostic // Diagnostics collected before the failure
	Err         error             // Underlying cause, if any
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	for _, d := range e.Diagnostics {
		if d.Severity >= diag.SeverityError {
			b.WriteString("\n  ")
			b.WriteString(d.String())
		}
	}
	if e.Suggestion != "" {
		b.WriteString("\n")
		b.WriteString(e.Suggestion)
	}
	if e.Example != "" {
		b.WriteString("\n")
		b.WriteString(e.Example)
	}
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Err }

// Compile lowers fn into a Unit. fn itself is never modified.
//
// Diagnostics below error severity are returned in the result. When any
// error or fatal diagnostic is reported, no Unit is produced and the
// returned *CompileError carries every diagnostic.
func Compile(fn *ast.FuncDef, resolver Resolver, cfg Config) (*CompileResult, error) {
	invariant.NotNil(fn, "fn")
	invariant.NotNil(resolver, "resolver")

	startTime := time.Now()

	r, err := NewRun(fn, resolver, cfg)
	if err != nil {
		return nil, &CompileError{
			Message: err.Error(),
			Context: "configuring compiler",
			Err:     err,
		}
	}

	body := ast.CloneStmts(fn.Body)
	seq, body, err := r.pipeline(body)
	diags := r.sink.Diagnostics()

	if err != nil {
		return nil, &CompileError{
			Message:     fmt.Sprintf("compilation of %s aborted", r.cfg.Target),
			Context:     "compiling " + r.cfg.Target,
			Diagnostics: diags,
			Err:         err,
		}
	}
	if r.sink.HasErrors() {
		n := r.sink.Count(diag.SeverityError)
		return nil, &CompileError{
			Message:     fmt.Sprintf("compilation of %s failed with %d error(s)", r.cfg.Target, n),
			Context:     "compiling " + r.cfg.Target,
			Diagnostics: diags,
		}
	}

	result := &CompileResult{
		Unit:        &Unit{target: r.cfg.Target, seq: seq},
		Body:        body,
		Diagnostics: diags,
		CompileTime: time.Since(startTime),
		Telemetry:   r.telemetry,
		DebugEvents: r.debugEvents,
	}
	r.logger.Debug("compiled", "target", r.cfg.Target,
		"instructions", len(seq.Instructions), "elapsed", result.CompileTime)
	return result, nil
}

func (r *Run) pipeline(body []ast.Stmt) (*seqfmt.Sequence, []ast.Stmt, error) {
	if err := r.timed(&r.phaseTimes.unroll, func() error { return r.Unroll(body) }); err != nil {
		return nil, nil, err
	}
	_ = r.timed(&r.phaseTimes.group, func() error { r.Group(body); return nil })

	err := r.timed(&r.phaseTimes.inline, func() error {
		inlined, err := r.Inline(body)
		if err != nil {
			return err
		}
		body = inlined
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	if err := r.timed(&r.phaseTimes.unroll, func() error { return r.Unroll(body) }); err != nil {
		return nil, nil, err
	}
	// Concurrent blocks brought in by inlining are grouped here.
	_ = r.timed(&r.phaseTimes.group, func() error { r.Group(body); return nil })

	var seq *seqfmt.Sequence
	err = r.timed(&r.phaseTimes.linearize, func() error {
		var err error
		seq, err = r.Linearize(body)
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if r.telemetry != nil && r.cfg.Telemetry >= TelemetryTiming {
		r.telemetry.UnrollTime = r.phaseTimes.unroll
		r.telemetry.GroupTime = r.phaseTimes.group
		r.telemetry.InlineTime = r.phaseTimes.inline
		r.telemetry.LinearizeTime = r.phaseTimes.linearize
	}
	return seq, body, nil
}

// FindFunction returns the function named target. An unknown target yields
// a *CompileError suggesting the closest name.
func FindFunction(funcs []*ast.FuncDef, target string) (*ast.FuncDef, error) {
	names := make([]string, 0, len(funcs))
	for _, fn := range funcs {
		if fn.Name == target {
			return fn, nil
		}
		names = append(names, fn.Name)
	}

	var suggestion, example string
	if len(names) > 0 {
		if closest := findClosestMatch(target, names); closest != "" {
			suggestion = fmt.Sprintf("Did you mean '%s'?", closest)
		}
		example = fmt.Sprintf("Available functions: %s", strings.Join(names, ", "))
	}
	return nil, &CompileError{
		Message:    fmt.Sprintf("function not found: %s", target),
		Context:    "searching for target function",
		Suggestion: suggestion,
		Example:    example,
	}
}

// findClosestMatch finds the closest string match using fuzzy matching
func findClosestMatch(target string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	ranks := fuzzy.RankFindFold(target, candidates)
	if len(ranks) == 0 {
		return ""
	}
	best := ranks[0]
	for _, rank := range ranks[1:] {
		if rank.Distance < best.Distance {
			best = rank
		}
	}
	return best.Target
}

// Unit is a compiled, self-contained sequence.
type Unit struct {
	target string
	seq    *seqfmt.Sequence
}

// Target returns the name of the compiled function.
func (u *Unit) Target() string { return u.target }

// Sequence returns the frozen sequence. Callers must not modify it.
func (u *Unit) Sequence() *seqfmt.Sequence { return u.seq }

// Func returns a zero-argument function producing the instruction sequence.
// Each call returns an independent copy.
func (u *Unit) Func() func() (*seqfmt.Sequence, error) {
	seq := u.seq
	return func() (*seqfmt.Sequence, error) {
		return seq.Clone(), nil
	}
}

// Imports returns the import manifest the sequence needs, runtime import
// first.
func (u *Unit) Imports() []seqfmt.Import {
	return seqfmt.SourceImports(u.seq)
}

// Source renders the unit as a generated function definition.
func (u *Unit) Source(w io.Writer) error {
	return seqfmt.WriteSource(w, u.seq, "")
}
