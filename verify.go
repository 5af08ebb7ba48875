package main

import (
	"errors"
	"fmt"
	"hash/crc32"
)

// ErrChecksumMismatch is per-entry and recoverable: the listing keeps
// going and the entry is reported as failed.
var ErrChecksumMismatch = errors.New("checksum mismatch")

// Status is the per-row verification outcome.
type Status int

const (
	StatusUnverified Status = iota
	StatusVerified
	StatusMismatch
	StatusSkipped
)

func (s Status) String() string {
	switch s {
	case StatusVerified:
		return "verified"
	case StatusMismatch:
		return "mismatch"
	case StatusSkipped:
		return "skipped"
	default:
		return "unverified"
	}
}

// VerifyEntry recomputes CRC-32 (IEEE reflected polynomial) over the
// decompressed payload and compares it to the central directory value.
func VerifyEntry(e *Entry, data []byte) error {
	if got := crc32.ChecksumIEEE(data); got != e.CRC32 {
		return fmt.Errorf("%w: entry %q: want %08x got %08x",
			ErrChecksumMismatch, e.Name, e.CRC32, got)
	}
	return nil
}
