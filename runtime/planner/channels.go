package planner

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/qgl2/qgl2c/core/ast"
	"github.com/qgl2/qgl2c/core/seqfmt"
)

// DefaultChannelPattern matches the names the runtime gives physical channels.
const DefaultChannelPattern = `^QBIT_[0-9]+$`

// ChannelRef identifies a hardware channel by its variable name (QBIT_3).
type ChannelRef string

// ChannelVar returns the channel variable for physical index n.
func ChannelVar(n int) ChannelRef {
	return ChannelRef(fmt.Sprintf("QBIT_%d", n))
}

// Index returns the numeric suffix of the channel, or -1.
func (c ChannelRef) Index() int {
	return seqfmt.ChannelIndex(string(c))
}

// ChannelFinder recognizes channel references syntactically: a name is a
// channel iff it matches the naming convention. Aliases and computed
// channel expressions are not tracked.
type ChannelFinder struct {
	pattern *regexp.Regexp
}

// NewChannelFinder compiles pattern. An empty pattern selects
// DefaultChannelPattern.
func NewChannelFinder(pattern string) (*ChannelFinder, error) {
	if pattern == "" {
		pattern = DefaultChannelPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid channel pattern %q: %w", pattern, err)
	}
	return &ChannelFinder{pattern: re}, nil
}

// IsChannel reports whether name follows the channel naming convention.
func (f *ChannelFinder) IsChannel(name string) bool {
	return f.pattern.MatchString(name)
}

// Find returns the sorted, de-duplicated channels referenced anywhere in node.
func (f *ChannelFinder) Find(node ast.Node) []ChannelRef {
	seen := make(map[ChannelRef]bool)
	ast.Inspect(node, func(n ast.Node) bool {
		if name, ok := n.(*ast.Name); ok && f.IsChannel(name.ID) {
			seen[ChannelRef(name.ID)] = true
		}
		return true
	})

	refs := make([]ChannelRef, 0, len(seen))
	for ref := range seen {
		refs = append(refs, ref)
	}
	SortChannels(refs)
	return refs
}

// SortChannels orders channels naturally: QBIT_2 before QBIT_10.
func SortChannels(refs []ChannelRef) {
	sort.Slice(refs, func(i, j int) bool { return lessChannel(refs[i], refs[j]) })
}

func lessChannel(a, b ChannelRef) bool {
	ai, bi := a.Index(), b.Index()
	ap, bp := channelStem(a), channelStem(b)
	if ap != bp {
		return ap < bp
	}
	if ai != bi {
		return ai < bi
	}
	return a < b
}

// channelStem strips the numeric suffix.
func channelStem(c ChannelRef) string {
	s := string(c)
	end := len(s)
	for end > 0 && s[end-1] >= '0' && s[end-1] <= '9' {
		end--
	}
	return s[:end]
}

// lessChannelList orders channel lists element-wise; a prefix sorts first,
// so the empty (unchannelled) list precedes every other.
func lessChannelList(a, b []ChannelRef) bool {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return lessChannel(a[i], b[i])
		}
	}
	return len(a) < len(b)
}
