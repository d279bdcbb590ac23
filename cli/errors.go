package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/core/seqfmt/formatter"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/loader"
	"github.com/qgl2/qgl2c/runtime/planner"
)

// CLIError represents a formatted CLI error with context
type CLIError struct {
	Type    string // "usage", "artifact", "verify"
	Message string
	Details string // Additional context
	Hint    string // How to fix it
}

// Error implements the error interface
func (e *CLIError) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Details != "" {
		b.WriteString("\n")
		b.WriteString(e.Details)
	}
	if e.Hint != "" {
		b.WriteString("\n")
		b.WriteString(e.Hint)
	}
	return b.String()
}

// FormatError formats an error for CLI output with colors
func FormatError(w io.Writer, err error, useColor bool) {
	if err == nil {
		return
	}

	var (
		compileErr *planner.CompileError
		schemaErr  *loader.SchemaError
		cliErr     *CLIError
	)
	switch {
	case errors.As(err, &compileErr):
		formatCompileError(w, compileErr, useColor)
	case errors.As(err, &schemaErr):
		formatSchemaError(w, schemaErr, useColor)
	case errors.As(err, &cliErr):
		formatCLIError(w, cliErr, useColor)
	default:
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Error())
	}
}

// formatCompileError formats compiler errors with their diagnostics and suggestions
func formatCompileError(w io.Writer, err *planner.CompileError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message)

	if err.Context != "" {
		_, _ = fmt.Fprintf(w, "%s\n", Colorize("  Context: "+err.Context, ColorGray, useColor))
	}

	for _, d := range err.Diagnostics {
		if d.Severity < diag.SeverityWarning {
			continue
		}
		color := ColorYellow
		if d.Severity >= diag.SeverityError {
			color = ColorRed
		}
		_, _ = fmt.Fprintf(w, "  %s\n", Colorize(d.String(), color, useColor))
	}

	if err.Suggestion != "" {
		_, _ = fmt.Fprintf(w, "%s\n", Colorize("  "+err.Suggestion, ColorYellow, useColor))
	}

	if err.Example != "" {
		_, _ = fmt.Fprintf(w, "%s\n", Colorize("  "+err.Example, ColorGray, useColor))
	}
}

// formatSchemaError lists every schema violation of a program document
func formatSchemaError(w io.Writer, err *loader.SchemaError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%sinvalid program document\n", Colorize("Error: ", ColorRed, useColor))
	for _, p := range err.Problems {
		_, _ = fmt.Fprintf(w, "  %s\n", p)
	}
}

// formatCLIError formats CLI errors
func formatCLIError(w io.Writer, err *CLIError, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Error: ", ColorRed, useColor), err.Message)

	if err.Details != "" {
		_, _ = fmt.Fprintf(w, "\n%s\n", err.Details)
	}

	if err.Hint != "" {
		_, _ = fmt.Fprintf(w, "%s%s\n", Colorize("Hint: ", ColorYellow, useColor), err.Hint)
	}
}

// FormatVerificationError formats artifact verification failures with diff
func FormatVerificationError(w io.Writer, artifact, fresh *seqfmt.Sequence, useColor bool) {
	_, _ = fmt.Fprintf(w, "%s\n\n", Colorize("ARTIFACT VERIFICATION FAILED", ColorRed, useColor))

	diff := formatter.Diff(artifact, fresh)
	_, _ = fmt.Fprint(w, formatter.FormatDiff(diff, useColor))
}
