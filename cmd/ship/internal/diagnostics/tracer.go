// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

/*
Package diagnostics traces builds and captures failure bundles.

Every build gets a root span and every stage a child span, so a failed
run can be read as a timeline. When a fatal stage kills the build, the
collector snapshots the host: tool versions, the build's test
containers and their logs, and workspace disk usage. Bundles land in
~/.aleutianship/diagnostics/ as JSON, named by a UUID that also appears
in the build log, and are pruned after a retention window.

# Tracer Selection

Without OTEL_EXPORTER_OTLP_ENDPOINT set, the no-op tracer generates
valid W3C trace/span IDs for log correlation but exports nothing and
needs no network. With the endpoint set, spans export over OTLP gRPC to
Jaeger or any compatible collector.

# Trace ID Format

Both tracers produce W3C-compatible 32-character hex trace IDs and
16-character hex span IDs.
*/
package diagnostics

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// defaultServiceName identifies ship in exported trace metadata.
const defaultServiceName = "ship"

// -----------------------------------------------------------------------------
// Tracer Interface
// -----------------------------------------------------------------------------

// Tracer creates build and stage spans.
//
// # Description
//
// Abstracts span creation so builds trace identically whether spans
// export to a collector or only feed log correlation. The pipeline
// opens one root span per build and one child span per stage; child
// spans started from a span-carrying context share its trace ID.
//
// # Thread Safety
//
// All implementations are safe for concurrent use.
type Tracer interface {
	// StartSpan opens a span and returns the span-carrying context
	// plus a finish function. Pass the stage error (or nil) to finish.
	//
	// # Examples
	//
	//	ctx, finish := tracer.StartSpan(ctx, "stage.unit_tests",
	//	    map[string]string{"build.number": "7"})
	//	err := runStage(ctx)
	//	finish(err)
	StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error))

	// TraceID returns the 32-character hex trace ID from the context,
	// or empty when the context carries no span.
	TraceID(ctx context.Context) string

	// SpanID returns the 16-character hex span ID from the context,
	// or empty when the context carries no span.
	SpanID(ctx context.Context) string

	// Shutdown flushes pending spans. Call once before exit.
	Shutdown(ctx context.Context) error
}

// -----------------------------------------------------------------------------
// NoOpTracer Implementation
// -----------------------------------------------------------------------------

// NoOpTracer generates correlation IDs without exporting anything.
//
// # Description
//
// The offline tracer. Every StartSpan yields a fresh span ID; the
// trace ID is inherited from the parent context when one exists, so a
// build's stage spans all correlate under the root trace ID in the
// logs even though nothing leaves the process.
//
// # Thread Safety
//
// NoOpTracer is safe for concurrent use.
type NoOpTracer struct{}

// NewNoOpTracer creates the offline tracer.
func NewNoOpTracer() *NoOpTracer {
	return &NoOpTracer{}
}

// StartSpan implements Tracer. Attributes are accepted and dropped.
func (t *NoOpTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	// Keep the build's trace ID across stage spans.
	traceID := t.TraceID(ctx)
	if traceID == "" {
		traceID = newHexID(16)
	}
	ctx = context.WithValue(ctx, noOpTraceIDKey{}, traceID)
	ctx = context.WithValue(ctx, noOpSpanIDKey{}, newHexID(8))

	return ctx, func(err error) {}
}

// TraceID implements Tracer.
func (t *NoOpTracer) TraceID(ctx context.Context) string {
	if id, ok := ctx.Value(noOpTraceIDKey{}).(string); ok {
		return id
	}
	return ""
}

// SpanID implements Tracer.
func (t *NoOpTracer) SpanID(ctx context.Context) string {
	if id, ok := ctx.Value(noOpSpanIDKey{}).(string); ok {
		return id
	}
	return ""
}

// Shutdown implements Tracer. Nothing to flush.
func (t *NoOpTracer) Shutdown(ctx context.Context) error {
	return nil
}

// Context keys for the no-op tracer.
type noOpTraceIDKey struct{}
type noOpSpanIDKey struct{}

// newHexID returns n random bytes hex-encoded, with a timestamp
// fallback should the entropy source fail.
func newHexID(n int) string {
	bytes := make([]byte, n)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("%0*x", n*2, time.Now().UnixNano())
	}
	return hex.EncodeToString(bytes)
}

// -----------------------------------------------------------------------------
// OTelTracer Implementation
// -----------------------------------------------------------------------------

// OTelTracer exports spans to an OTLP collector.
//
// # Description
//
// Full OpenTelemetry tracing over gRPC. Stage spans nest under the
// build's root span, so a build renders as one trace in Jaeger with
// per-stage timing and the failing stage marked in red.
//
// # Thread Safety
//
// OTelTracer is safe for concurrent use.
type OTelTracer struct {
	tracer   trace.Tracer
	provider *sdktrace.TracerProvider
}

// OTelConfig configures the exporting tracer.
type OTelConfig struct {
	// ServiceName identifies this service in traces.
	// Default: "ship"
	ServiceName string

	// Endpoint is the OTLP gRPC collector endpoint.
	// Default: "localhost:4317"
	Endpoint string

	// Insecure disables TLS for the collector connection.
	// Default true, matching local collectors.
	Insecure bool
}

// NewOTelTracer creates a tracer that exports to an OTLP collector.
//
// # Description
//
// Establishes the gRPC connection, the OTLP exporter, and a batching
// trace provider sampling every span. The provider is also installed
// as the global OpenTelemetry provider so instrumented libraries (the
// status server's gin middleware) join the same traces.
//
// # Inputs
//
//   - ctx: Context for exporter initialization
//   - config: Endpoint and service identity
//
// # Outputs
//
//   - *OTelTracer: Ready-to-use tracer
//   - error: Non-nil if the exporter cannot be constructed
//
// # Limitations
//
//   - Requires network access to the collector; spans buffer and drop
//     if it never becomes reachable
func NewOTelTracer(ctx context.Context, config OTelConfig) (*OTelTracer, error) {
	if config.ServiceName == "" {
		config.ServiceName = defaultServiceName
	}
	if config.Endpoint == "" {
		config.Endpoint = "localhost:4317"
	}

	var dialOpts []grpc.DialOption
	if config.Insecure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(config.Endpoint, dialOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}

	exporter, err := otlptracegrpc.New(ctx, otlptracegrpc.WithGRPCConn(conn))
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceNameKey.String(config.ServiceName),
			attribute.String("deployment.environment", deploymentEnvironment()),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithResource(res),
		sdktrace.WithBatcher(exporter),
	)

	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &OTelTracer{
		tracer:   provider.Tracer(config.ServiceName),
		provider: provider,
	}, nil
}

// StartSpan implements Tracer.
func (t *OTelTracer) StartSpan(ctx context.Context, name string, attrs map[string]string) (context.Context, func(error)) {
	otelAttrs := make([]attribute.KeyValue, 0, len(attrs))
	for k, v := range attrs {
		otelAttrs = append(otelAttrs, attribute.String(k, v))
	}

	ctx, span := t.tracer.Start(ctx, name,
		trace.WithAttributes(otelAttrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	finish := func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}

	return ctx, finish
}

// TraceID implements Tracer.
func (t *OTelTracer) TraceID(ctx context.Context) string {
	traceID := trace.SpanFromContext(ctx).SpanContext().TraceID()
	if !traceID.IsValid() {
		return ""
	}
	return traceID.String()
}

// SpanID implements Tracer.
func (t *OTelTracer) SpanID(ctx context.Context) string {
	spanID := trace.SpanFromContext(ctx).SpanContext().SpanID()
	if !spanID.IsValid() {
		return ""
	}
	return spanID.String()
}

// Shutdown implements Tracer. Flushes buffered spans to the collector.
func (t *OTelTracer) Shutdown(ctx context.Context) error {
	if t.provider != nil {
		return t.provider.Shutdown(ctx)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Factory
// -----------------------------------------------------------------------------

// deploymentEnvironment resolves the environment tag for exported
// traces, defaulting to development.
func deploymentEnvironment() string {
	if env := os.Getenv("SHIP_ENV"); env != "" {
		return env
	}
	if env := os.Getenv("ENVIRONMENT"); env != "" {
		return env
	}
	return "development"
}

// NewDefaultTracer picks the tracer from the environment.
//
// # Description
//
// Returns the exporting tracer when OTEL_EXPORTER_OTLP_ENDPOINT is
// set, the no-op tracer otherwise. TLS is on only when OTEL_INSECURE
// is explicitly "false".
//
// # Examples
//
//	tracer, err := diagnostics.NewDefaultTracer(ctx, "ship")
//	if err != nil {
//	    tracer = diagnostics.NewNoOpTracer()
//	}
//	defer tracer.Shutdown(context.Background())
func NewDefaultTracer(ctx context.Context, serviceName string) (Tracer, error) {
	endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if endpoint == "" {
		return NewNoOpTracer(), nil
	}

	return NewOTelTracer(ctx, OTelConfig{
		ServiceName: serviceName,
		Endpoint:    endpoint,
		Insecure:    os.Getenv("OTEL_INSECURE") != "false",
	})
}

// Compile-time interface compliance checks.
var _ Tracer = (*NoOpTracer)(nil)
var _ Tracer = (*OTelTracer)(nil)
