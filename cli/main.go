package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

// defaultFile is read when --file is not given.
const defaultFile = "program.json"

// options holds the persistent flags shared by every command.
type options struct {
	file           string
	out            string
	format         string
	channelPattern string
	debug          bool
	noColor        bool
	watch          bool
	telemetry      bool

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	opts := &options{stdin: os.Stdin, stdout: os.Stdout, stderr: os.Stderr}
	rootCmd := newRootCmd(opts)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		FormatError(os.Stderr, err, ShouldUseColor(opts.noColor))
		os.Exit(1)
	}
}

func newRootCmd(opts *options) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "qgl2c [command]",
		Short:         "Compile concurrent qubit programs into flat instruction sequences",
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	rootCmd.SetIn(opts.stdin)
	rootCmd.SetOut(opts.stdout)
	rootCmd.SetErr(opts.stderr)

	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&opts.file, "file", "f", defaultFile, "Path to the program document (- for stdin)")
	flags.StringVarP(&opts.out, "out", "o", "-", "Output path (- for stdout)")
	flags.StringVar(&opts.format, "format", "source", "Output format: source, tree or binary")
	flags.StringVar(&opts.channelPattern, "channel-pattern", "", "Regexp matching channel variable names")
	flags.BoolVar(&opts.debug, "debug", false, "Enable debug output")
	flags.BoolVar(&opts.noColor, "no-color", false, "Disable colored output")
	flags.BoolVar(&opts.telemetry, "telemetry", false, "Print compile counters and phase timings")

	rootCmd.AddCommand(newCompileCmd(opts), newInspectCmd(opts), newVerifyCmd(opts))
	return rootCmd
}

func newCompileCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <function>",
		Short: "Compile a function of the program document",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.watch {
				return runWatch(cmd.Context(), opts, args[0])
			}
			return runCompile(opts, args[0])
		},
	}
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Recompile whenever the program document changes")
	return cmd
}

func newInspectCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <artifact>",
		Short: "Display a binary sequence artifact as a tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(opts, args[0])
		},
	}
}

func newVerifyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "verify <artifact>",
		Short: "Recompile the artifact's function and compare the result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0])
		},
	}
}

// getInputReader handles the 3 modes of input:
// 1. Explicit stdin with -f -
// 2. Piped input (auto-detected when using default file)
// 3. File input (specific file or default program.json)
func getInputReader(opts *options) (io.Reader, func() error, error) {
	// Mode 1: Explicit stdin
	if opts.file == "-" {
		return opts.stdin, func() error { return nil }, nil
	}

	// Mode 2: Check for piped input when using default file
	if opts.file == defaultFile && opts.stdin == os.Stdin && hasPipedInput() {
		return os.Stdin, func() error { return nil }, nil
	}

	// Mode 3: File input
	f, err := os.Open(opts.file)
	if err != nil {
		return nil, nil, fmt.Errorf("error opening file %s: %w", opts.file, err)
	}
	return f, f.Close, nil
}

// hasPipedInput detects if there's data piped to stdin
func hasPipedInput() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}

	// Check if stdin is not a character device (i.e., it's piped)
	// Note: We don't check Size() > 0 because pipes may not report size correctly
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// getOutputWriter opens the --out destination.
func getOutputWriter(opts *options) (io.Writer, func() error, error) {
	if opts.out == "" || opts.out == "-" {
		return opts.stdout, func() error { return nil }, nil
	}
	f, err := os.Create(opts.out)
	if err != nil {
		return nil, nil, fmt.Errorf("error creating file %s: %w", opts.out, err)
	}
	return f, f.Close, nil
}
