//go:build otel

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
)

func init_otel(name string) (func(), error) {
	slog.Info("initialize opentelemetry")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		slog.Error("initialize opentelemetry failed", "error", err)
		stop()
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(name),
		)),
		sdktrace.WithSyncer(exporter),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))
	return func() {
		stop()
		if err := tp.Shutdown(ctx); err != nil {
			slog.Error("trace provider shutdown error", "error", err)
		}
	}, nil
}

func traceOp(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, span := otel.Tracer("zipinspect").Start(ctx, name)
	defer span.End()
	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
	}
	return err
}
