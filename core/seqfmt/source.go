package seqfmt

import (
	"fmt"
	"io"
	"strings"
)

// DefaultFuncName is the name given to the generated sequence function.
const DefaultFuncName = "qgl1_main"

// RuntimeImport is always required by generated source: acquisitions call it.
var RuntimeImport = Import{Module: "QGL", Symbol: "QubitFactory"}

// WriteSource renders the sequence as a self-contained function definition:
// imports, channel acquisitions, then the literal instruction list.
//
//	def qgl1_main():
//	    from QGL import QubitFactory
//	    from QGL.PulsePrimitives import X90
//
//	    QBIT_1 = QubitFactory('q1')
//	    seq = [
//	        X90(QBIT_1)
//	    ]
//	    return seq
func WriteSource(w io.Writer, s *Sequence, funcName string) error {
	if funcName == "" {
		funcName = DefaultFuncName
	}
	const indent = "    "

	var b strings.Builder
	fmt.Fprintf(&b, "def %s():\n", funcName)
	for _, imp := range SourceImports(s) {
		b.WriteString(indent + imp.String() + "\n")
	}
	b.WriteString("\n")

	for _, a := range s.Acquisitions {
		b.WriteString(indent + a.String() + "\n")
	}

	lines := make([]string, len(s.Instructions))
	for i, in := range s.Instructions {
		lines[i] = in.String()
	}
	b.WriteString(indent + "seq = [\n")
	if len(lines) > 0 {
		b.WriteString(indent + indent + strings.Join(lines, ",\n"+indent+indent) + "\n")
	}
	b.WriteString(indent + "]\n")
	b.WriteString(indent + "return seq\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// SourceImports returns the runtime import first, then the manifest in
// order, without repeating the runtime import.
func SourceImports(s *Sequence) []Import {
	out := []Import{RuntimeImport}
	for _, imp := range s.Imports {
		if imp == RuntimeImport {
			continue
		}
		out = append(out, imp)
	}
	return out
}
