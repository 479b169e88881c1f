package cli

import (
	"context"
	"fmt"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/sdk/resource"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/macropower/dtrl/pkg/version"
)

// setupTracing installs an OTLP trace exporter when an OTLP endpoint is
// configured via the standard OTEL_EXPORTER_OTLP_* environment variables.
// Otherwise the global no-op tracer provider is left in place.
func setupTracing(ctx context.Context) (func(context.Context) error, error) {
	_, tracesSet := os.LookupEnv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT")
	_, endpointSet := os.LookupEnv("OTEL_EXPORTER_OTLP_ENDPOINT")

	if !tracesSet && !endpointSet {
		return func(context.Context) error { return nil }, nil
	}

	exporter, err := otlptracegrpc.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			attribute.String("service.name", cmdName),
			attribute.String("service.version", version.GetVersion()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)
	otel.SetTracerProvider(tp)

	return tp.Shutdown, nil
}
