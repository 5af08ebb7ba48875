//go:build !otel

package main

import (
	"context"
	"errors"
	"log/slog"
)

func init_otel(name string) (func(), error) {
	slog.Debug("this binary does not supports opentelemetry")
	return nil, errors.ErrUnsupported
}

func traceOp(ctx context.Context, name string, fn func(context.Context) error) error {
	return fn(ctx)
}
