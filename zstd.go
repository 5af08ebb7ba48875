//go:build cgo

package main

import (
	"fmt"

	"github.com/DataDog/zstd"
)

func decompressZstd(raw []byte, expected uint64) ([]byte, error) {
	data, err := zstd.Decompress(make([]byte, 0, expected), raw)
	if err != nil {
		return nil, fmt.Errorf("%w: zstd: %v", ErrCorruptArchive, err)
	}
	if uint64(len(data)) != expected {
		return nil, fmt.Errorf("%w: zstd produced %d bytes, expected %d",
			ErrCorruptArchive, len(data), expected)
	}
	return data, nil
}
