package seqfmt

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/mod/semver"
)

// maxBodyLen bounds the body allocation for untrusted input.
const maxBodyLen = 32 * 1024 * 1024

// Read reads a sequence from r and returns it (frozen) with its verified
// file hash.
func Read(r io.Reader) (*Sequence, [32]byte, error) {
	var preamble [preambleLen]byte
	if _, err := io.ReadFull(r, preamble[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read preamble: %w", err)
	}

	if magic := string(preamble[0:4]); magic != Magic {
		return nil, [32]byte{}, fmt.Errorf("invalid magic: got %q, expected %q", magic, Magic)
	}
	if version := binary.LittleEndian.Uint16(preamble[4:6]); version != Version {
		return nil, [32]byte{}, fmt.Errorf("unsupported version: got 0x%04x, expected 0x%04x", version, Version)
	}
	if flags := Flags(binary.LittleEndian.Uint16(preamble[6:8])); flags != 0 {
		return nil, [32]byte{}, fmt.Errorf("unsupported flags: 0x%04x", uint16(flags))
	}

	bodyLen := binary.LittleEndian.Uint64(preamble[8:16])
	if bodyLen > maxBodyLen {
		return nil, [32]byte{}, fmt.Errorf("body length %d exceeds maximum %d", bodyLen, maxBodyLen)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read body: %w", err)
	}
	var recorded [hashLen]byte
	if _, err := io.ReadFull(r, recorded[:]); err != nil {
		return nil, [32]byte{}, fmt.Errorf("read file hash: %w", err)
	}

	cs, err := UnmarshalCanonical(body)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("parse body: %w", err)
	}
	if err := CheckCompatible(cs.Format); err != nil {
		return nil, [32]byte{}, err
	}

	digest, err := fileHash(cs.Target, body)
	if err != nil {
		return nil, [32]byte{}, fmt.Errorf("hash body: %w", err)
	}
	if !bytes.Equal(digest[:], recorded[:]) {
		return nil, [32]byte{}, fmt.Errorf("file hash mismatch: recorded %x, computed %x", recorded, digest)
	}

	seq := cs.Sequence()
	if err := seq.Validate(); err != nil {
		return nil, [32]byte{}, fmt.Errorf("invalid sequence: %w", err)
	}
	seq.Hash = fmt.Sprintf("%x", digest)
	seq.frozen = true
	return seq, digest, nil
}

// CheckCompatible reports whether a body written with format version v can be
// read by this package: same major version, any minor or patch.
func CheckCompatible(v string) error {
	if !semver.IsValid(v) {
		return fmt.Errorf("invalid format version %q", v)
	}
	if semver.Major(v) != semver.Major(FormatVersion) {
		return fmt.Errorf("incompatible format version %s (reader supports %s)", v, semver.Major(FormatVersion))
	}
	return nil
}
