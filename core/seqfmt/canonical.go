package seqfmt

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// FormatVersion is the semantic version of the canonical body layout.
// Readers accept any body with the same major version.
const FormatVersion = "v1.0.0"

// CanonicalSequence is the deterministic form of a Sequence used for
// hashing and as the body of the binary artifact. Field order is fixed
// by the struct; map-free so CBOR canonical mode yields stable bytes.
type CanonicalSequence struct {
	Format       string
	Target       string
	Imports      []CanonicalImport
	Acquisitions []CanonicalAcquisition
	Instructions []CanonicalInstruction
}

// CanonicalImport represents a manifest entry in canonical form
type CanonicalImport struct {
	Module string
	Symbol string
	Alias  string
}

// CanonicalAcquisition represents an acquisition in canonical form
type CanonicalAcquisition struct {
	Channel string
	Label   string
	Index   int64
}

// CanonicalInstruction represents an instruction in canonical form
type CanonicalInstruction struct {
	Op       string
	Args     []CanonicalValue
	Keywords []CanonicalKeyword
}

// CanonicalKeyword represents a keyword argument in canonical form
type CanonicalKeyword struct {
	Name string
	Val  CanonicalValue
}

// CanonicalValue represents an argument value in canonical form
type CanonicalValue struct {
	Kind  uint8
	Str   string
	Int   int64
	Float float64
	Bool  bool
}

// Canonicalize converts a Sequence into canonical form. Imports and
// acquisitions are sorted first; instruction order is preserved since it
// carries the program's timing.
func (s *Sequence) Canonicalize() *CanonicalSequence {
	if !s.frozen {
		s.sort()
	}

	cs := &CanonicalSequence{
		Format:       FormatVersion,
		Target:       s.Target,
		Imports:      make([]CanonicalImport, len(s.Imports)),
		Acquisitions: make([]CanonicalAcquisition, len(s.Acquisitions)),
		Instructions: make([]CanonicalInstruction, len(s.Instructions)),
	}
	for i, imp := range s.Imports {
		cs.Imports[i] = CanonicalImport(imp)
	}
	for i, a := range s.Acquisitions {
		cs.Acquisitions[i] = CanonicalAcquisition{Channel: a.Channel, Label: a.Label, Index: int64(a.Index)}
	}
	for i, in := range s.Instructions {
		ci := CanonicalInstruction{
			Op:       in.Op,
			Args:     make([]CanonicalValue, len(in.Args)),
			Keywords: make([]CanonicalKeyword, len(in.Keywords)),
		}
		for j, a := range in.Args {
			ci.Args[j] = canonicalValue(a)
		}
		for j, kw := range in.Keywords {
			ci.Keywords[j] = CanonicalKeyword{Name: kw.Name, Val: canonicalValue(kw.Val)}
		}
		cs.Instructions[i] = ci
	}
	return cs
}

func canonicalValue(v Value) CanonicalValue {
	return CanonicalValue{Kind: uint8(v.Kind), Str: v.Str, Int: v.Int, Float: v.Float, Bool: v.Bool}
}

// Sequence converts the canonical form back into an unfrozen Sequence.
func (cs *CanonicalSequence) Sequence() *Sequence {
	s := &Sequence{
		Target:       cs.Target,
		Imports:      make([]Import, len(cs.Imports)),
		Acquisitions: make([]Acquisition, len(cs.Acquisitions)),
		Instructions: make([]Instruction, len(cs.Instructions)),
	}
	for i, imp := range cs.Imports {
		s.Imports[i] = Import(imp)
	}
	for i, a := range cs.Acquisitions {
		s.Acquisitions[i] = Acquisition{Channel: a.Channel, Label: a.Label, Index: int(a.Index)}
	}
	for i, ci := range cs.Instructions {
		in := Instruction{Op: ci.Op}
		if len(ci.Args) > 0 {
			in.Args = make([]Value, len(ci.Args))
			for j, a := range ci.Args {
				in.Args[j] = Value{Kind: ValueKind(a.Kind), Str: a.Str, Int: a.Int, Float: a.Float, Bool: a.Bool}
			}
		}
		if len(ci.Keywords) > 0 {
			in.Keywords = make([]Keyword, len(ci.Keywords))
			for j, kw := range ci.Keywords {
				in.Keywords[j] = Keyword{
					Name: kw.Name,
					Val:  Value{Kind: ValueKind(kw.Val.Kind), Str: kw.Val.Str, Int: kw.Val.Int, Float: kw.Val.Float, Bool: kw.Val.Bool},
				}
			}
		}
		s.Instructions[i] = in
	}
	return s
}

// MarshalBinary produces deterministic CBOR encoding of the canonical form.
func (cs *CanonicalSequence) MarshalBinary() ([]byte, error) {
	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return nil, fmt.Errorf("failed to create CBOR encoder: %w", err)
	}

	// Alias avoids CBOR calling MarshalBinary recursively
	type canonicalSequenceAlias CanonicalSequence
	data, err := encMode.Marshal((*canonicalSequenceAlias)(cs))
	if err != nil {
		return nil, fmt.Errorf("CBOR encoding failed: %w", err)
	}
	return data, nil
}

// UnmarshalCanonical decodes a CBOR body produced by MarshalBinary.
func UnmarshalCanonical(data []byte) (*CanonicalSequence, error) {
	type canonicalSequenceAlias CanonicalSequence
	var alias canonicalSequenceAlias
	if err := cbor.Unmarshal(data, &alias); err != nil {
		return nil, fmt.Errorf("CBOR decoding failed: %w", err)
	}
	cs := CanonicalSequence(alias)
	return &cs, nil
}

// Hash computes the SHA-256 hash of the canonical form. It identifies the
// program structure independently of the artifact framing.
func (cs *CanonicalSequence) Hash() ([32]byte, error) {
	data, err := cs.MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(data), nil
}
