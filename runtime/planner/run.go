package planner

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/invariant"
	"github.com/qgl2/qgl2c/runtime/diag"
)

// Run holds the state of one compilation. A Run is used by a single
// goroutine and discarded afterwards.
type Run struct {
	cfg      Config
	file     string       // Source file of the target function
	pos      ast.Position // Position of the target function
	resolver Resolver

	sink     *diag.Sink
	temps    *TempNames
	registry *Registry
	channels *ChannelFinder
	bindings *BindingEnv
	reported map[*ast.For]bool

	telemetry   *CompileTelemetry
	debugEvents []DebugEvent
	phaseTimes  struct {
		unroll, group, inline, linearize time.Duration
	}
	logger *slog.Logger
}

// NewRun prepares a run for fn. Zero Config fields take their defaults.
// The only error is an invalid channel pattern.
func NewRun(fn *ast.FuncDef, resolver Resolver, cfg Config) (*Run, error) {
	invariant.NotNil(fn, "fn")
	invariant.NotNil(resolver, "resolver")

	if cfg.Target == "" {
		cfg.Target = fn.Name
	}
	if cfg.MaxInlineDepth == 0 {
		cfg.MaxInlineDepth = DefaultMaxInlineDepth
	}
	invariant.Positive(cfg.MaxInlineDepth, "MaxInlineDepth")
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	channels, err := NewChannelFinder(cfg.ChannelPattern)
	if err != nil {
		return nil, err
	}

	r := &Run{
		cfg:      cfg,
		file:     fn.Pos.File,
		pos:      fn.Pos,
		resolver: resolver,
		sink:     diag.NewSink(cfg.Logger),
		temps:    NewTempNames(cfg.TempPrefix),
		registry: NewRegistry(),
		channels: channels,
		bindings: NewBindingEnv(),
		reported: make(map[*ast.For]bool),
		logger:   cfg.Logger.With("target", cfg.Target),
	}
	if cfg.Telemetry >= TelemetryBasic {
		r.telemetry = &CompileTelemetry{}
	}
	if cfg.Debug >= DebugPaths {
		r.debugEvents = make([]DebugEvent, 0, 32)
	}
	return r, nil
}

// Diagnostics returns every diagnostic reported so far.
func (r *Run) Diagnostics() []diag.Diagnostic {
	return r.sink.Diagnostics()
}

// debug records a trace event when debug tracing is enabled.
func (r *Run) debug(event, context string) {
	if r.cfg.Debug == DebugOff || r.debugEvents == nil {
		return
	}
	if r.cfg.Debug < DebugDetailed && !strings.HasPrefix(event, "enter_") {
		return
	}
	r.debugEvents = append(r.debugEvents, DebugEvent{
		Timestamp: time.Now(),
		Event:     event,
		Context:   context,
	})
}

// timed runs fn and adds its duration to *d when phase timing is enabled.
func (r *Run) timed(d *time.Duration, fn func() error) error {
	if r.cfg.Telemetry < TelemetryTiming {
		return fn()
	}
	start := time.Now()
	err := fn()
	*d += time.Since(start)
	return err
}
