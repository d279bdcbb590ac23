package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/core/seqfmt/formatter"
	"github.com/qgl2/qgl2c/runtime/diag"
	"github.com/qgl2/qgl2c/runtime/loader"
	"github.com/qgl2/qgl2c/runtime/planner"
)

// Output formats accepted by --format.
const (
	formatSource = "source"
	formatTree   = "tree"
	formatBinary = "binary"
)

func (opts *options) logger() *slog.Logger {
	return diag.NewLogger(opts.stderr, opts.debug)
}

func (opts *options) config(target string) planner.Config {
	cfg := planner.Config{
		Target:         target,
		ChannelPattern: opts.channelPattern,
	}
	if opts.telemetry {
		cfg.Telemetry = planner.TelemetryTiming
	}
	if opts.debug {
		cfg.Debug = planner.DebugDetailed
		cfg.Logger = opts.logger()
	}
	return cfg
}

// loadProgram reads the program document named by --file.
func loadProgram(opts *options) (*loader.Program, error) {
	reader, closeFunc, err := getInputReader(opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = closeFunc() }()

	prog, err := loader.Load(reader)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", opts.file, err)
	}
	return prog, nil
}

// compileTarget loads the document and compiles one function of it.
func compileTarget(opts *options, target string) (*planner.CompileResult, error) {
	prog, err := loadProgram(opts)
	if err != nil {
		return nil, err
	}
	fn, err := planner.FindFunction(prog.Functions(), target)
	if err != nil {
		return nil, err
	}
	return planner.Compile(fn, prog, opts.config(target))
}

func runCompile(opts *options, target string) error {
	switch opts.format {
	case formatSource, formatTree, formatBinary:
	default:
		return &CLIError{
			Type:    "usage",
			Message: fmt.Sprintf("unknown output format %q", opts.format),
			Hint:    "Use --format source, --format tree or --format binary",
		}
	}

	result, err := compileTarget(opts, target)
	if err != nil {
		return err
	}

	useColor := ShouldUseColor(opts.noColor)
	for _, d := range result.Diagnostics {
		if d.Severity >= diag.SeverityWarning {
			_, _ = fmt.Fprintf(opts.stderr, "%s\n", Colorize(d.String(), ColorYellow, useColor))
		}
	}

	w, closeFunc, err := getOutputWriter(opts)
	if err != nil {
		return err
	}
	if err := writeResult(w, opts, result); err != nil {
		_ = closeFunc()
		return err
	}
	if err := closeFunc(); err != nil {
		return err
	}

	if opts.telemetry && result.Telemetry != nil {
		DisplayTelemetry(opts.stderr, result)
	}
	if opts.debug {
		DisplayDebugEvents(opts.stderr, result.DebugEvents)
	}
	return nil
}

func writeResult(w io.Writer, opts *options, result *planner.CompileResult) error {
	switch opts.format {
	case formatTree:
		DisplaySequence(w, result.Unit.Sequence(), ShouldUseColor(opts.noColor) && opts.out == "-")
		return nil
	case formatBinary:
		digest, err := seqfmt.Write(w, result.Unit.Sequence())
		if err != nil {
			return err
		}
		opts.logger().Debug("artifact written", "hash", fmt.Sprintf("%x", digest))
		return nil
	default:
		return result.Unit.Source(w)
	}
}

func readArtifact(path string) (*seqfmt.Sequence, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening artifact %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	seq, _, err := seqfmt.Read(f)
	if err != nil {
		return nil, &CLIError{
			Type:    "artifact",
			Message: fmt.Sprintf("cannot read artifact %s", path),
			Details: err.Error(),
			Hint:    "Produce artifacts with: qgl2c compile <function> --format binary -o <path>",
		}
	}
	return seq, nil
}

func runInspect(opts *options, path string) error {
	seq, err := readArtifact(path)
	if err != nil {
		return err
	}
	useColor := ShouldUseColor(opts.noColor)
	DisplaySequence(opts.stdout, seq, useColor)
	_, _ = fmt.Fprintf(opts.stdout, "%s\n", Colorize("hash: "+seq.Hash, ColorGray, useColor))
	return nil
}

func runVerify(opts *options, path string) error {
	artifact, err := readArtifact(path)
	if err != nil {
		return err
	}
	result, err := compileTarget(opts, artifact.Target)
	if err != nil {
		return err
	}

	fresh := result.Unit.Sequence()
	if diff := formatter.Diff(artifact, fresh); !diff.Empty() {
		FormatVerificationError(opts.stderr, artifact, fresh, ShouldUseColor(opts.noColor))
		return &CLIError{
			Type:    "verify",
			Message: fmt.Sprintf("artifact %s does not match a fresh compilation of %s", path, artifact.Target),
			Hint:    "Recompile the artifact or check the program document for changes",
		}
	}
	_, _ = fmt.Fprintf(opts.stdout, "%s: %s matches (%d instructions)\n",
		path, artifact.Target, len(fresh.Instructions))
	return nil
}
