package formatter

import (
	"fmt"
	"strings"

	"github.com/qgl2/qgl2c/core/seqfmt"
)

// DiffResult represents the differences between two sequences.
type DiffResult struct {
	TargetChanged   string // Non-empty if target changed (format: "old -> new")
	ImportsAdded    []string
	ImportsRemoved  []string
	ChannelsAdded   []string
	ChannelsRemoved []string
	Added           []InstructionDiff // Instructions appended in actual
	Removed         []InstructionDiff // Instructions missing from actual
	Modified        []InstructionDiff // Instructions that changed in place
}

// InstructionDiff represents a difference at one position of the instruction list.
type InstructionDiff struct {
	Index    int    // Position (1-indexed)
	Expected string // Empty for added instructions
	Actual   string // Empty for removed instructions
}

// Empty reports whether the two sequences were equivalent.
func (r *DiffResult) Empty() bool {
	return r.TargetChanged == "" &&
		len(r.ImportsAdded) == 0 && len(r.ImportsRemoved) == 0 &&
		len(r.ChannelsAdded) == 0 && len(r.ChannelsRemoved) == 0 &&
		len(r.Added) == 0 && len(r.Removed) == 0 && len(r.Modified) == 0
}

// Diff compares two sequences. Imports and acquisitions are compared as
// sets; instructions position by position.
func Diff(expected, actual *seqfmt.Sequence) *DiffResult {
	result := &DiffResult{}

	if expected.Target != actual.Target {
		result.TargetChanged = fmt.Sprintf("%s -> %s", expected.Target, actual.Target)
	}

	result.ImportsAdded, result.ImportsRemoved = setDiff(importStrings(expected), importStrings(actual))
	result.ChannelsAdded, result.ChannelsRemoved = setDiff(channelStrings(expected), channelStrings(actual))

	n := max(len(expected.Instructions), len(actual.Instructions))
	for i := 0; i < n; i++ {
		switch {
		case i >= len(actual.Instructions):
			result.Removed = append(result.Removed, InstructionDiff{Index: i + 1, Expected: expected.Instructions[i].String()})
		case i >= len(expected.Instructions):
			result.Added = append(result.Added, InstructionDiff{Index: i + 1, Actual: actual.Instructions[i].String()})
		default:
			e, a := expected.Instructions[i].String(), actual.Instructions[i].String()
			if e != a {
				result.Modified = append(result.Modified, InstructionDiff{Index: i + 1, Expected: e, Actual: a})
			}
		}
	}

	return result
}

func importStrings(s *seqfmt.Sequence) []string {
	out := make([]string, len(s.Imports))
	for i, imp := range s.Imports {
		out[i] = imp.String()
	}
	return out
}

func channelStrings(s *seqfmt.Sequence) []string {
	out := make([]string, len(s.Acquisitions))
	for i, a := range s.Acquisitions {
		out[i] = a.String()
	}
	return out
}

// setDiff returns the entries only in actual (added) and only in expected
// (removed), each in input order.
func setDiff(expected, actual []string) (added, removed []string) {
	inExpected := make(map[string]bool, len(expected))
	for _, e := range expected {
		inExpected[e] = true
	}
	inActual := make(map[string]bool, len(actual))
	for _, a := range actual {
		inActual[a] = true
		if !inExpected[a] {
			added = append(added, a)
		}
	}
	for _, e := range expected {
		if !inActual[e] {
			removed = append(removed, e)
		}
	}
	return added, removed
}

// FormatDiff returns a human-readable diff display.
func FormatDiff(result *DiffResult, useColor bool) string {
	var b strings.Builder

	red, green, yellow, reset := "", "", "", ""
	if useColor {
		red, green, yellow, reset = ColorRed, ColorGreen, ColorYellow, ColorReset
	}

	if result.TargetChanged != "" {
		fmt.Fprintf(&b, "%sTarget changed: %s%s\n\n", yellow, result.TargetChanged, reset)
	}

	writeSet := func(title string, added, removed []string) {
		if len(added) == 0 && len(removed) == 0 {
			return
		}
		fmt.Fprintf(&b, "%s%s:%s\n", yellow, title, reset)
		for _, r := range removed {
			fmt.Fprintf(&b, "  %s- %s%s\n", red, r, reset)
		}
		for _, a := range added {
			fmt.Fprintf(&b, "  %s+ %s%s\n", green, a, reset)
		}
		fmt.Fprintln(&b)
	}
	writeSet("Imports", result.ImportsAdded, result.ImportsRemoved)
	writeSet("Channels", result.ChannelsAdded, result.ChannelsRemoved)

	if len(result.Modified) > 0 {
		fmt.Fprintf(&b, "%sModified instructions:%s\n", yellow, reset)
		for _, d := range result.Modified {
			fmt.Fprintf(&b, "  #%d:\n", d.Index)
			fmt.Fprintf(&b, "    %s- %s%s\n", red, d.Expected, reset)
			fmt.Fprintf(&b, "    %s+ %s%s\n", green, d.Actual, reset)
		}
		fmt.Fprintln(&b)
	}

	if len(result.Added) > 0 {
		fmt.Fprintf(&b, "%sAdded instructions:%s\n", green, reset)
		for _, d := range result.Added {
			fmt.Fprintf(&b, "  %s+ #%d: %s%s\n", green, d.Index, d.Actual, reset)
		}
		fmt.Fprintln(&b)
	}

	if len(result.Removed) > 0 {
		fmt.Fprintf(&b, "%sRemoved instructions:%s\n", red, reset)
		for _, d := range result.Removed {
			fmt.Fprintf(&b, "  %s- #%d: %s%s\n", red, d.Index, d.Expected, reset)
		}
		fmt.Fprintln(&b)
	}

	if result.Empty() {
		fmt.Fprintln(&b, "No differences found.")
	}

	return b.String()
}
