// Package seqfmt defines the compiled sequence artifact: the in-memory
// Sequence, its canonical CBOR form and digest, the binary file format and
// the generated-source rendering.
package seqfmt

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/qgl2/qgl2c/core/invariant"
)

// Sequence is the in-memory form of a linearized program: the imports it
// needs, the channels it acquires and its ordered instruction list.
// This is the stable contract between the compiler, the artifact writers and
// the formatters.
//
// Invariants:
//   - Imports and Acquisitions are sorted and free of duplicates after Freeze
//   - Every channel named by an instruction has an acquisition
//   - A frozen sequence is never mutated
type Sequence struct {
	Target       string // Function the sequence was compiled from
	Imports      []Import
	Acquisitions []Acquisition
	Instructions []Instruction
	Hash         string // BLAKE2b-256 of the binary form, set by Freeze
	frozen       bool
}

// Import is one entry of the import manifest:
// `from Module import Symbol [as Alias]`.
type Import struct {
	Module string
	Symbol string
	Alias  string // Empty when the symbol is used under its own name
}

func (i Import) String() string {
	if i.Alias != "" && i.Alias != i.Symbol {
		return fmt.Sprintf("from %s import %s as %s", i.Module, i.Symbol, i.Alias)
	}
	return fmt.Sprintf("from %s import %s", i.Module, i.Symbol)
}

func (i Import) less(o Import) bool {
	if i.Module != o.Module {
		return i.Module < o.Module
	}
	if i.Symbol != o.Symbol {
		return i.Symbol < o.Symbol
	}
	return i.Alias < o.Alias
}

// Acquisition binds a physical channel before the instruction list runs:
// `QBIT_3 = QubitFactory('q3')`.
type Acquisition struct {
	Channel string // Variable the instructions refer to (QBIT_3)
	Label   string // Physical channel label (q3)
	Index   int
}

func (a Acquisition) String() string {
	return fmt.Sprintf("%s = QubitFactory(%s)", a.Channel, quote(a.Label))
}

// Instruction is one operation applied to resolved arguments.
type Instruction struct {
	Op       string
	Args     []Value
	Keywords []Keyword
}

// Keyword is a named instruction argument.
type Keyword struct {
	Name string
	Val  Value
}

// ValueKind identifies which field in Value is valid
type ValueKind uint8

const (
	ValueChannel ValueKind = iota // Str holds the channel variable
	ValueInt                      // Int field valid
	ValueFloat                    // Float field valid
	ValueString                   // Str holds the string
	ValueBool                     // Bool field valid
	ValueNone                     // No field valid
	ValueExpr                     // Str holds rendered source of a non-literal expression
)

// Value is a union type for instruction arguments.
// Only one field should be set based on Kind.
type Value struct {
	Kind  ValueKind
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Channel returns a channel-reference value.
func Channel(name string) Value { return Value{Kind: ValueChannel, Str: name} }

func (v Value) String() string {
	switch v.Kind {
	case ValueChannel, ValueExpr:
		return v.Str
	case ValueInt:
		return strconv.FormatInt(v.Int, 10)
	case ValueFloat:
		s := strconv.FormatFloat(v.Float, 'g', -1, 64)
		if !strings.ContainsAny(s, ".eEIN") {
			s += ".0"
		}
		return s
	case ValueString:
		return quote(v.Str)
	case ValueBool:
		if v.Bool {
			return "True"
		}
		return "False"
	default:
		return "None"
	}
}

// quote renders s as a single-quoted Python string literal.
func quote(s string) string {
	var b strings.Builder
	b.WriteByte('\'')
	for _, r := range s {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '\'':
			b.WriteString(`\'`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			if r < 0x20 || r == 0x7f {
				fmt.Fprintf(&b, `\x%02x`, r)
				continue
			}
			b.WriteRune(r)
		}
	}
	b.WriteByte('\'')
	return b.String()
}

func (in Instruction) String() string {
	parts := make([]string, 0, len(in.Args)+len(in.Keywords))
	for _, a := range in.Args {
		parts = append(parts, a.String())
	}
	for _, kw := range in.Keywords {
		parts = append(parts, kw.Name+"="+kw.Val.String())
	}
	return in.Op + "(" + strings.Join(parts, ", ") + ")"
}

// Channels returns the channel variables the instruction touches, in
// argument order.
func (in Instruction) Channels() []string {
	var out []string
	for _, a := range in.Args {
		if a.Kind == ValueChannel {
			out = append(out, a.Str)
		}
	}
	for _, kw := range in.Keywords {
		if kw.Val.Kind == ValueChannel {
			out = append(out, kw.Val.Str)
		}
	}
	return out
}

// Append adds an instruction. Returns error if the sequence is frozen.
func (s *Sequence) Append(in Instruction) error {
	if s.frozen {
		return fmt.Errorf("cannot modify frozen sequence")
	}
	s.Instructions = append(s.Instructions, in)
	return nil
}

// AddImport adds a manifest entry, ignoring exact duplicates.
func (s *Sequence) AddImport(imp Import) error {
	if s.frozen {
		return fmt.Errorf("cannot modify frozen sequence")
	}
	for _, existing := range s.Imports {
		if existing == imp {
			return nil
		}
	}
	s.Imports = append(s.Imports, imp)
	return nil
}

// Acquire records an acquisition, ignoring channels already acquired.
func (s *Sequence) Acquire(acq Acquisition) error {
	if s.frozen {
		return fmt.Errorf("cannot modify frozen sequence")
	}
	for _, existing := range s.Acquisitions {
		if existing.Channel == acq.Channel {
			return nil
		}
	}
	s.Acquisitions = append(s.Acquisitions, acq)
	return nil
}

// Clone returns a deep copy. The copy keeps the frozen state and hash.
func (s *Sequence) Clone() *Sequence {
	cp := *s
	cp.Imports = slices.Clone(s.Imports)
	cp.Acquisitions = slices.Clone(s.Acquisitions)
	cp.Instructions = make([]Instruction, len(s.Instructions))
	for i, in := range s.Instructions {
		cp.Instructions[i] = Instruction{
			Op:       in.Op,
			Args:     slices.Clone(in.Args),
			Keywords: slices.Clone(in.Keywords),
		}
	}
	return &cp
}

// Frozen reports whether Freeze has been called.
func (s *Sequence) Frozen() bool {
	return s.frozen
}

// Freeze sorts the manifest and acquisitions, computes the hash and marks
// the sequence immutable.
func (s *Sequence) Freeze() {
	s.sort()
	s.Hash = s.ComputeHash()
	s.frozen = true
}

func (s *Sequence) sort() {
	sort.SliceStable(s.Imports, func(i, j int) bool { return s.Imports[i].less(s.Imports[j]) })
	sort.SliceStable(s.Acquisitions, func(i, j int) bool {
		return s.Acquisitions[i].Index < s.Acquisitions[j].Index
	})
}

// Validate checks sequence invariants.
func (s *Sequence) Validate() error {
	acquired := make(map[string]bool, len(s.Acquisitions))
	for _, a := range s.Acquisitions {
		if acquired[a.Channel] {
			return fmt.Errorf("channel %s acquired twice", a.Channel)
		}
		acquired[a.Channel] = true
	}
	for i, in := range s.Instructions {
		if in.Op == "" {
			return fmt.Errorf("instruction %d: empty op", i)
		}
		for _, ch := range in.Channels() {
			if !acquired[ch] {
				return fmt.Errorf("instruction %d (%s): channel %s not acquired", i, in.Op, ch)
			}
		}
	}
	seen := make(map[Import]bool, len(s.Imports))
	for _, imp := range s.Imports {
		if seen[imp] {
			return fmt.Errorf("duplicate import: %s", imp)
		}
		seen[imp] = true
	}
	return nil
}

// Digest computes BLAKE2b-256 of the serialized sequence.
// Returns hex-encoded hash: "blake2b:a3f8b2c1d4e5f6a7..."
func (s *Sequence) Digest() (string, error) {
	var buf bytes.Buffer
	hash, err := Write(&buf, s)
	if err != nil {
		return "", fmt.Errorf("failed to serialize sequence for digest: %w", err)
	}
	return fmt.Sprintf("blake2b:%x", hash), nil
}

// ComputeHash computes the hex BLAKE2b-256 hash of the binary form.
func (s *Sequence) ComputeHash() string {
	var buf bytes.Buffer
	hash, err := Write(&buf, s)
	invariant.ExpectNoError(err, "sequence serialization (bytes.Buffer never fails)")
	return hex.EncodeToString(hash[:])
}

// ChannelIndex extracts N from a channel variable or label ending in digits
// (QBIT_12, q12). Returns -1 if there is no numeric suffix.
func ChannelIndex(name string) int {
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return -1
	}
	n, err := strconv.Atoi(name[start:end])
	if err != nil {
		return -1
	}
	return n
}
