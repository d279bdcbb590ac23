// Package formatter renders compiled sequences for humans: a tree view for
// inspection and a structured diff for verifying artifacts.
package formatter

import (
	"fmt"
	"io"

	"github.com/qgl2/qgl2c/core/seqfmt"
)

// ANSI color codes
const (
	ColorReset  = "\033[0m"
	ColorRed    = "\033[31m"
	ColorGreen  = "\033[32m"
	ColorYellow = "\033[33m"
	ColorBlue   = "\033[34m"
	ColorCyan   = "\033[36m"
	ColorGray   = "\033[90m"
)

// Colorize wraps text in ANSI color codes if color is enabled
func Colorize(text, color string, useColor bool) string {
	if !useColor {
		return text
	}
	return color + text + ColorReset
}

// FormatTree renders a sequence as a tree: imports, channel acquisitions and
// the instruction list, each as a branch.
func FormatTree(w io.Writer, seq *seqfmt.Sequence, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s:\n", seq.Target)

	imports := seqfmt.SourceImports(seq)
	importLines := make([]string, len(imports))
	for i, imp := range imports {
		importLines[i] = Colorize(imp.String(), ColorGray, useColor)
	}

	channelLines := make([]string, len(seq.Acquisitions))
	for i, a := range seq.Acquisitions {
		channelLines[i] = fmt.Sprintf("%s = QubitFactory('%s')", Colorize(a.Channel, ColorCyan, useColor), a.Label)
	}

	instrLines := make([]string, len(seq.Instructions))
	for i, in := range seq.Instructions {
		instrLines[i] = formatInstruction(in, useColor)
	}

	renderBranch(w, "imports", importLines, false)
	renderBranch(w, "channels", channelLines, false)
	renderBranch(w, fmt.Sprintf("sequence (%d instructions)", len(instrLines)), instrLines, true)
}

// renderBranch renders a labelled branch with its children indented under it
func renderBranch(w io.Writer, label string, children []string, isLast bool) {
	prefix, indent := "├─ ", "│  "
	if isLast {
		prefix, indent = "└─ ", "   "
	}
	_, _ = fmt.Fprintf(w, "%s%s\n", prefix, label)

	if len(children) == 0 {
		_, _ = fmt.Fprintf(w, "%s└─ (none)\n", indent)
		return
	}
	for i, child := range children {
		childPrefix := "├─ "
		if i == len(children)-1 {
			childPrefix = "└─ "
		}
		_, _ = fmt.Fprintf(w, "%s%s%s\n", indent, childPrefix, child)
	}
}

// formatInstruction highlights the op name and channel arguments
func formatInstruction(in seqfmt.Instruction, useColor bool) string {
	if !useColor {
		return in.String()
	}
	args := make([]seqfmt.Value, len(in.Args))
	for i, a := range in.Args {
		if a.Kind == seqfmt.ValueChannel {
			a = seqfmt.Value{Kind: seqfmt.ValueExpr, Str: Colorize(a.Str, ColorCyan, true)}
		}
		args[i] = a
	}
	colored := seqfmt.Instruction{Op: Colorize(in.Op, ColorBlue, true), Args: args, Keywords: in.Keywords}
	return colored.String()
}
