package planner

import (
	"fmt"

	"github.com/qgl2/qgl2c/core/invariant"
)

// DefaultTempPrefix prefixes every temporary introduced by inlining.
const DefaultTempPrefix = "__qgl2__tmp"

// TempNames hands out run-unique temporary identifiers:
// <prefix>_<NNN>_<base>, with NNN a monotonic counter starting at 001.
// One generator per run; never shared between runs.
type TempNames struct {
	prefix string
	index  int
}

// NewTempNames creates a generator. An empty prefix selects DefaultTempPrefix.
func NewTempNames(prefix string) *TempNames {
	if prefix == "" {
		prefix = DefaultTempPrefix
	}
	return &TempNames{prefix: prefix}
}

// Fresh returns a new name derived from base. An empty base yields the bare
// <prefix>_<NNN> form.
func (g *TempNames) Fresh(base string) string {
	g.index++
	name := fmt.Sprintf("%s_%03d", g.prefix, g.index)
	if base != "" {
		name += "_" + base
	}
	return name
}

// Count returns how many names have been issued.
func (g *TempNames) Count() int {
	invariant.Invariant(g.index >= 0, "temp counter went negative")
	return g.index
}
