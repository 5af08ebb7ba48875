//go:build !cgo

package main

import (
	"fmt"
	"log/slog"
)

func decompressZstd(raw []byte, expected uint64) ([]byte, error) {
	slog.Info("zstd not supported in this build")
	return nil, fmt.Errorf("%w: zstd (built without cgo)", ErrUnsupportedMethod)
}
