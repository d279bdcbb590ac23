package formatter_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/qgl2/qgl2c/core/seqfmt"
	"github.com/qgl2/qgl2c/core/seqfmt/formatter"
)

func seq(target string, ops ...string) *seqfmt.Sequence {
	s := &seqfmt.Sequence{
		Target:       target,
		Imports:      []seqfmt.Import{{Module: "QGL.PulsePrimitives", Symbol: "X90"}},
		Acquisitions: []seqfmt.Acquisition{{Channel: "QBIT_1", Label: "q1", Index: 1}},
	}
	for _, op := range ops {
		s.Instructions = append(s.Instructions, seqfmt.Instruction{Op: op, Args: []seqfmt.Value{seqfmt.Channel("QBIT_1")}})
	}
	return s
}

// ========== Tree Tests ==========

func TestFormatTree(t *testing.T) {
	var buf bytes.Buffer
	formatter.FormatTree(&buf, seq("main", "X90", "Y90"), false)

	want := `main:
├─ imports
│  ├─ from QGL import QubitFactory
│  └─ from QGL.PulsePrimitives import X90
├─ channels
│  └─ QBIT_1 = QubitFactory('q1')
└─ sequence (2 instructions)
   ├─ X90(QBIT_1)
   └─ Y90(QBIT_1)
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("FormatTree mismatch (-want +got):\n%s", diff)
	}
}

func TestFormatTree_EmptyAndColor(t *testing.T) {
	var buf bytes.Buffer
	formatter.FormatTree(&buf, &seqfmt.Sequence{Target: "idle"}, true)
	out := buf.String()

	if !strings.Contains(out, "└─ (none)") {
		t.Errorf("expected (none) marker for empty branches, got:\n%s", out)
	}
	if !strings.Contains(out, formatter.ColorGray) {
		t.Errorf("expected colored import line, got:\n%s", out)
	}
}

func TestColorize(t *testing.T) {
	if got := formatter.Colorize("x", formatter.ColorRed, false); got != "x" {
		t.Errorf("Colorize(no color) = %q, want %q", got, "x")
	}
	if got := formatter.Colorize("x", formatter.ColorRed, true); got != formatter.ColorRed+"x"+formatter.ColorReset {
		t.Errorf("Colorize(color) = %q", got)
	}
}

// ========== Diff Tests ==========

func TestDiff(t *testing.T) {
	tests := []struct {
		name         string
		expected     *seqfmt.Sequence
		actual       *seqfmt.Sequence
		wantAdded    int
		wantRemoved  int
		wantModified int
		wantTarget   bool
		wantEmpty    bool
	}{
		{"identical", seq("main", "X90"), seq("main", "X90"), 0, 0, 0, false, true},
		{"modified", seq("main", "X90"), seq("main", "Y90"), 0, 0, 1, false, false},
		{"added", seq("main", "X90"), seq("main", "X90", "Y90"), 1, 0, 0, false, false},
		{"removed", seq("main", "X90", "Y90"), seq("main", "X90"), 0, 1, 0, false, false},
		{"target", seq("main", "X90"), seq("other", "X90"), 0, 0, 0, true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := formatter.Diff(tt.expected, tt.actual)
			if len(r.Added) != tt.wantAdded {
				t.Errorf("Added = %d, want %d", len(r.Added), tt.wantAdded)
			}
			if len(r.Removed) != tt.wantRemoved {
				t.Errorf("Removed = %d, want %d", len(r.Removed), tt.wantRemoved)
			}
			if len(r.Modified) != tt.wantModified {
				t.Errorf("Modified = %d, want %d", len(r.Modified), tt.wantModified)
			}
			if (r.TargetChanged != "") != tt.wantTarget {
				t.Errorf("TargetChanged = %q, want changed=%v", r.TargetChanged, tt.wantTarget)
			}
			if r.Empty() != tt.wantEmpty {
				t.Errorf("Empty() = %v, want %v", r.Empty(), tt.wantEmpty)
			}
		})
	}
}

func TestDiff_ManifestSets(t *testing.T) {
	expected := seq("main", "X90")
	actual := seq("main", "X90")
	actual.Imports = []seqfmt.Import{{Module: "QGL.PulsePrimitives", Symbol: "Y90"}}
	actual.Acquisitions = append(actual.Acquisitions, seqfmt.Acquisition{Channel: "QBIT_2", Label: "q2", Index: 2})

	r := formatter.Diff(expected, actual)
	if diff := cmp.Diff([]string{"from QGL.PulsePrimitives import Y90"}, r.ImportsAdded); diff != "" {
		t.Errorf("ImportsAdded (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"from QGL.PulsePrimitives import X90"}, r.ImportsRemoved); diff != "" {
		t.Errorf("ImportsRemoved (-want +got):\n%s", diff)
	}
	if len(r.ChannelsAdded) != 1 || len(r.ChannelsRemoved) != 0 {
		t.Errorf("channels added=%v removed=%v", r.ChannelsAdded, r.ChannelsRemoved)
	}
}

func TestFormatDiff(t *testing.T) {
	out := formatter.FormatDiff(formatter.Diff(seq("main", "X90"), seq("main", "X90")), false)
	if out != "No differences found.\n" {
		t.Errorf("FormatDiff(identical) = %q", out)
	}

	out = formatter.FormatDiff(formatter.Diff(seq("main", "X90"), seq("main", "Y90", "Z90")), false)
	for _, want := range []string{"Modified instructions:", "- X90(QBIT_1)", "+ Y90(QBIT_1)", "Added instructions:", "+ #2: Z90(QBIT_1)"} {
		if !strings.Contains(out, want) {
			t.Errorf("FormatDiff output missing %q:\n%s", want, out)
		}
	}
}
