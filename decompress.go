package main

import (
	"bytes"
	"compress/bzip2"
	"errors"
	"fmt"
	"io"

	"github.com/klauspost/compress/flate"
)

// ErrUnsupportedMethod is per-entry and recoverable: the caller may
// skip the entry and keep processing the rest of the archive.
var ErrUnsupportedMethod = errors.New("unsupported compression method")

// Method is the compression method code from the entry descriptor.
type Method uint16

const (
	Store   Method = 0
	Deflate Method = 8
	Bzip2   Method = 12
	Zstd    Method = 93
)

func (m Method) String() string {
	switch m {
	case Store:
		return "Stored"
	case Deflate:
		return "Deflate"
	case Bzip2:
		return "Bzip2"
	case Zstd:
		return "Zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint16(m))
	}
}

// Decompress expands raw payload bytes according to the method code.
// The output must be exactly expected bytes long, anything else is
// treated as payload corruption.
func Decompress(m Method, raw []byte, expected uint64) ([]byte, error) {
	switch m {
	case Store:
		if uint64(len(raw)) != expected {
			return nil, fmt.Errorf("%w: stored entry is %d bytes, expected %d",
				ErrCorruptArchive, len(raw), expected)
		}
		return raw, nil
	case Deflate:
		rd := flate.NewReader(bytes.NewReader(raw))
		defer rd.Close()
		data, err := io.ReadAll(rd)
		if err != nil {
			return nil, fmt.Errorf("%w: inflate: %v", ErrCorruptArchive, err)
		}
		if uint64(len(data)) != expected {
			return nil, fmt.Errorf("%w: inflate produced %d bytes, expected %d",
				ErrCorruptArchive, len(data), expected)
		}
		return data, nil
	case Bzip2:
		data, err := io.ReadAll(bzip2.NewReader(bytes.NewReader(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: bzip2: %v", ErrCorruptArchive, err)
		}
		if uint64(len(data)) != expected {
			return nil, fmt.Errorf("%w: bzip2 produced %d bytes, expected %d",
				ErrCorruptArchive, len(data), expected)
		}
		return data, nil
	case Zstd:
		return decompressZstd(raw, expected)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, m)
	}
}
