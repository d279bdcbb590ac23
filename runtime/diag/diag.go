// Package diag collects the diagnostics produced during one compilation run.
//
// Passes never stop at the first problem. They report into a Sink and keep
// going; the sink remembers the highest severity seen (the watermark) so the
// driver can refuse to emit output once an error has been reported. Only a
// fatal diagnostic halts a pass, by returning a *FatalError.
package diag

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/qgl2/qgl2c/core/ast"
)

// Severity captures how impactful the diagnostic is. Ordered.
type Severity int

const (
	SeverityNone    Severity = iota // Watermark before anything is reported
	SeverityDiag                    // Informational note
	SeverityWarning                 // Suspicious but compilable
	SeverityError                   // Output must not be emitted
	SeverityFatal                   // The run stops immediately
)

func (s Severity) String() string {
	switch s {
	case SeverityDiag:
		return "diag"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "none"
	}
}

// Stage identifies which compiler phase produced the diagnostic.
type Stage string

const (
	StageLoad      Stage = "load"
	StageResolve   Stage = "resolve"
	StageUnroll    Stage = "unroll"
	StageGroup     Stage = "group"
	StageInline    Stage = "inline"
	StageLinearize Stage = "linearize"
)

// Diagnostic is a single message tied to a source location.
type Diagnostic struct {
	Stage    Stage
	Severity Severity
	Pos      ast.Position
	Message  string
}

// String formats the diagnostic as file:line:col: severity: message.
func (d Diagnostic) String() string {
	return fmt.Sprintf("%s: %s: %s", d.Pos, d.Severity, d.Message)
}

// FatalError aborts the current run.
type FatalError struct {
	Diagnostic
}

func (e *FatalError) Error() string {
	return e.Diagnostic.String()
}

// Sink accumulates diagnostics for one run. Not safe for concurrent use;
// each run owns its own sink.
type Sink struct {
	diags  []Diagnostic
	max    Severity
	logger *slog.Logger
}

// NewSink creates a sink. A nil logger discards log output.
func NewSink(logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Sink{logger: logger}
}

// Report records a diagnostic. It returns a *FatalError when sev is fatal
// and nil otherwise.
func (s *Sink) Report(stage Stage, sev Severity, pos ast.Position, format string, args ...any) error {
	d := Diagnostic{
		Stage:    stage,
		Severity: sev,
		Pos:      pos,
		Message:  fmt.Sprintf(format, args...),
	}
	s.diags = append(s.diags, d)
	if sev > s.max {
		s.max = sev
	}

	s.logger.Log(context.Background(), logLevel(sev), d.Message,
		"stage", string(stage),
		"severity", sev.String(),
		"file", pos.File,
		"line", pos.Line,
		"col", pos.Column)

	if sev == SeverityFatal {
		return &FatalError{Diagnostic: d}
	}
	return nil
}

// Note reports a diagnostic-level message.
func (s *Sink) Note(stage Stage, pos ast.Position, format string, args ...any) {
	_ = s.Report(stage, SeverityDiag, pos, format, args...)
}

// Warn reports a warning.
func (s *Sink) Warn(stage Stage, pos ast.Position, format string, args ...any) {
	_ = s.Report(stage, SeverityWarning, pos, format, args...)
}

// Error reports an error. Processing continues.
func (s *Sink) Error(stage Stage, pos ast.Position, format string, args ...any) {
	_ = s.Report(stage, SeverityError, pos, format, args...)
}

// Fatal reports a fatal diagnostic and returns the error that must be
// propagated to abort the run.
func (s *Sink) Fatal(stage Stage, pos ast.Position, format string, args ...any) *FatalError {
	return s.Report(stage, SeverityFatal, pos, format, args...).(*FatalError)
}

// Max returns the watermark: the highest severity reported so far.
func (s *Sink) Max() Severity {
	return s.max
}

// HasErrors reports whether the watermark reached error severity or worse.
func (s *Sink) HasErrors() bool {
	return s.max >= SeverityError
}

// Diagnostics returns a copy of every diagnostic in report order.
func (s *Sink) Diagnostics() []Diagnostic {
	out := make([]Diagnostic, len(s.diags))
	copy(out, s.diags)
	return out
}

// Count returns how many diagnostics have exactly the given severity.
func (s *Sink) Count(sev Severity) int {
	n := 0
	for _, d := range s.diags {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// AtLeast returns the diagnostics at or above sev.
func (s *Sink) AtLeast(sev Severity) []Diagnostic {
	var out []Diagnostic
	for _, d := range s.diags {
		if d.Severity >= sev {
			out = append(out, d)
		}
	}
	return out
}

// Format renders diagnostics one per line.
func Format(diags []Diagnostic) string {
	var b strings.Builder
	for _, d := range diags {
		b.WriteString(d.String())
		b.WriteByte('\n')
	}
	return b.String()
}

func logLevel(sev Severity) slog.Level {
	switch sev {
	case SeverityDiag:
		return slog.LevelDebug
	case SeverityWarning:
		return slog.LevelWarn
	case SeverityError, SeverityFatal:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger builds the CLI-friendly logger used across the compiler: text on
// w, no timestamp or level attributes, debug output only when debug is set.
func NewLogger(w io.Writer, debug bool) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			// Remove timestamp for cleaner output
			if a.Key == slog.TimeKey {
				return slog.Attr{}
			}
			if a.Key == slog.LevelKey {
				return slog.Attr{}
			}
			return a
		},
	}))
}
