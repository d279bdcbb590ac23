package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/core/seqfmt/formatter"
	"github.com/qgl2/qgl2c/runtime/planner"
)

// DisplaySequence renders a sequence as a tree structure
func DisplaySequence(w io.Writer, seq *seqfmt.Sequence, useColor bool) {
	formatter.FormatTree(w, seq, useColor)
}

// DisplayTelemetry prints compile counters, and phase timings when collected.
func DisplayTelemetry(w io.Writer, result *planner.CompileResult) {
	tel := result.Telemetry
	_, _ = fmt.Fprintf(w, "compiled in %v\n", result.CompileTime)
	_, _ = fmt.Fprintf(w, "  loops unrolled: %d (%d passes)\n", tel.LoopsUnrolled, tel.UnrollPasses)
	_, _ = fmt.Fprintf(w, "  groups:         %d\n", tel.Groups)
	_, _ = fmt.Fprintf(w, "  calls inlined:  %d\n", tel.CallsInlined)
	_, _ = fmt.Fprintf(w, "  instructions:   %d\n", tel.Instructions)
	_, _ = fmt.Fprintf(w, "  channels:       %d\n", tel.Channels)
	if tel.UnrollTime+tel.GroupTime+tel.InlineTime+tel.LinearizeTime > 0 {
		_, _ = fmt.Fprintf(w, "  phases:         unroll %v, group %v, inline %v, linearize %v\n",
			tel.UnrollTime, tel.GroupTime, tel.InlineTime, tel.LinearizeTime)
	}
}

// DisplayDebugEvents prints the trace recorded with --debug.
func DisplayDebugEvents(w io.Writer, events []planner.DebugEvent) {
	for _, ev := range events {
		line := ev.Event
		if ev.Context != "" {
			line += " " + strings.TrimSpace(ev.Context)
		}
		_, _ = fmt.Fprintf(w, "debug: %s\n", line)
	}
}
