package seqfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/blake2b"
)

const (
	// Magic is the file magic number "QGLS" (4 bytes)
	Magic = "QGLS"

	// Version is the framing version (uint16, little-endian).
	// The body carries its own semantic FormatVersion.
	Version uint16 = 0x0002
)

// preambleLen is MAGIC(4) | VERSION(2) | FLAGS(2) | BODY_LEN(8)
const preambleLen = 16

// hashLen is the size of the trailing file hash.
const hashLen = 32

// Flags is a bitmask for optional features. No flags are defined yet;
// readers reject any set bit.
type Flags uint16

// Write writes a sequence to w and returns the 32-byte file hash (BLAKE2b-256).
//
// Format: MAGIC(4) | VERSION(2) | FLAGS(2) | BODY_LEN(8) | BODY | HASH(32)
//
// BODY is the canonical CBOR form. HASH covers target + body so framing
// changes do not invalidate recorded digests; Read recomputes and compares it.
func Write(w io.Writer, s *Sequence) ([32]byte, error) {
	body, err := s.Canonicalize().MarshalBinary()
	if err != nil {
		return [32]byte{}, err
	}

	digest, err := fileHash(s.Target, body)
	if err != nil {
		return [32]byte{}, err
	}

	var buf bytes.Buffer
	buf.Grow(preambleLen + len(body) + hashLen)
	buf.WriteString(Magic)
	if err := binary.Write(&buf, binary.LittleEndian, Version); err != nil {
		return [32]byte{}, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint16(0)); err != nil {
		return [32]byte{}, err
	}
	if err := binary.Write(&buf, binary.LittleEndian, uint64(len(body))); err != nil {
		return [32]byte{}, err
	}
	buf.Write(body)
	buf.Write(digest[:])

	if _, err := w.Write(buf.Bytes()); err != nil {
		return [32]byte{}, fmt.Errorf("write sequence: %w", err)
	}
	return digest, nil
}

func fileHash(target string, body []byte) ([32]byte, error) {
	hasher, err := blake2b.New256(nil)
	if err != nil {
		return [32]byte{}, err
	}
	if _, err := hasher.Write([]byte(target)); err != nil {
		return [32]byte{}, err
	}
	if _, err := hasher.Write(body); err != nil {
		return [32]byte{}, err
	}
	var digest [32]byte
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}
