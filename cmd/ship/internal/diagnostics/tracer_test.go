// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package diagnostics

/*
Tracer tests.

# Testing Strategy

 1. NoOpTracer: ID well-formedness (W3C hex lengths) and trace ID
    inheritance from build span to stage spans.
 2. Factory selection: without a collector endpoint the no-op tracer is
    returned; the exporting tracer needs a live collector and is not
    constructed here.
*/

import (
	"context"
	"testing"
)

// isHex reports whether s is entirely lowercase hex.
func isHex(s string) bool {
	for _, r := range s {
		if (r < '0' || r > '9') && (r < 'a' || r > 'f') {
			return false
		}
	}
	return len(s) > 0
}

func TestNoOpTracerGeneratesWellFormedIDs(t *testing.T) {
	tracer := NewNoOpTracer()
	ctx, finish := tracer.StartSpan(context.Background(), "build", nil)
	defer finish(nil)

	traceID := tracer.TraceID(ctx)
	if len(traceID) != 32 || !isHex(traceID) {
		t.Errorf("trace ID %q is not 32 hex characters", traceID)
	}
	spanID := tracer.SpanID(ctx)
	if len(spanID) != 16 || !isHex(spanID) {
		t.Errorf("span ID %q is not 16 hex characters", spanID)
	}
}

func TestNoOpTracerStageSpansShareBuildTraceID(t *testing.T) {
	tracer := NewNoOpTracer()

	buildCtx, finishBuild := tracer.StartSpan(context.Background(), "build", nil)
	defer finishBuild(nil)
	buildTrace := tracer.TraceID(buildCtx)
	buildSpan := tracer.SpanID(buildCtx)

	stageCtx, finishStage := tracer.StartSpan(buildCtx, "stage.checkout", nil)
	defer finishStage(nil)

	if got := tracer.TraceID(stageCtx); got != buildTrace {
		t.Errorf("stage trace ID %q, want the build's %q", got, buildTrace)
	}
	if got := tracer.SpanID(stageCtx); got == buildSpan {
		t.Error("stage span ID should differ from the build span ID")
	}
}

func TestNoOpTracerDistinctBuildsGetDistinctTraces(t *testing.T) {
	tracer := NewNoOpTracer()
	ctx1, finish1 := tracer.StartSpan(context.Background(), "build", nil)
	finish1(nil)
	ctx2, finish2 := tracer.StartSpan(context.Background(), "build", nil)
	finish2(nil)

	if tracer.TraceID(ctx1) == tracer.TraceID(ctx2) {
		t.Error("independent builds should not share a trace ID")
	}
}

func TestNoOpTracerEmptyWithoutSpan(t *testing.T) {
	tracer := NewNoOpTracer()
	if got := tracer.TraceID(context.Background()); got != "" {
		t.Errorf("TraceID on a bare context = %q, want empty", got)
	}
	if got := tracer.SpanID(context.Background()); got != "" {
		t.Errorf("SpanID on a bare context = %q, want empty", got)
	}
}

func TestNoOpTracerShutdown(t *testing.T) {
	tracer := NewNoOpTracer()
	if err := tracer.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown failed: %v", err)
	}
}

func TestNewDefaultTracerWithoutEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")

	tracer, err := NewDefaultTracer(context.Background(), "ship")
	if err != nil {
		t.Fatalf("NewDefaultTracer failed: %v", err)
	}
	if _, ok := tracer.(*NoOpTracer); !ok {
		t.Errorf("expected the no-op tracer without an endpoint, got %T", tracer)
	}
}
