package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settleDelay collapses the burst of events an editor save produces.
const settleDelay = 100 * time.Millisecond

// runWatch compiles once, then again after every change to the program
// document, until ctx is cancelled. Compile failures are printed and the
// watch continues.
func runWatch(ctx context.Context, opts *options, target string) error {
	if opts.file == "-" {
		return &CLIError{
			Type:    "usage",
			Message: "--watch needs a program file",
			Hint:    "Pass the document with --file <path>",
		}
	}
	if opts.out == "-" && opts.format == formatBinary {
		return &CLIError{
			Type:    "usage",
			Message: "--watch with --format binary needs an output file",
			Hint:    "Pass --out <path>",
		}
	}

	useColor := ShouldUseColor(opts.noColor)
	build := func() {
		if err := runCompile(opts, target); err != nil {
			FormatError(opts.stderr, err, useColor)
			return
		}
		_, _ = fmt.Fprintf(opts.stderr, "%s\n", Colorize("compiled "+target, ColorGreen, useColor))
	}
	build()

	return watchFile(ctx, opts.file, build)
}

// watchFile calls onChange after each settled change to path. The parent
// directory is watched so that editors replacing the file are noticed.
func watchFile(ctx context.Context, path string, onChange func()) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(abs), err)
	}

	timer := time.NewTimer(settleDelay)
	if !timer.Stop() {
		<-timer.C
	}

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()

		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			timer.Reset(settleDelay)

		case <-timer.C:
			onChange()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("watch %s: %w", path, err)
		}
	}
}
