package telemetry_test

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/codes"

	"github.com/DaniyalFaraz2003/OSC-Agent/telemetry"
)

// These are smoke tests only: no-op implementations have no observable
// state, so the assertion is that every interface method is callable
// without panicking and that the constructors satisfy their interfaces.
func TestNoopLogger_NeverPanics(t *testing.T) {
	var logger telemetry.Logger = telemetry.NewNoopLogger()
	ctx := context.Background()
	logger.Debug(ctx, "debug", "k", "v")
	logger.Info(ctx, "info")
	logger.Warn(ctx, "warn", "attempt", 2)
	logger.Error(ctx, "error", "err", "boom")
}

func TestNoopMetrics_NeverPanics(t *testing.T) {
	var metrics telemetry.Metrics = telemetry.NewNoopMetrics()
	metrics.IncCounter("runs.completed", 1, "state", "DONE")
	metrics.RecordTimer("stage.duration", 5*time.Millisecond, "stage", "GENERATING")
	metrics.RecordGauge("runs.active", 3)
}

func TestNoopTracer_StartAndSpanAreUsable(t *testing.T) {
	var tracer telemetry.Tracer = telemetry.NewNoopTracer()
	ctx, span := tracer.Start(context.Background(), "orchestrator.step")
	span.AddEvent("handler invoked")
	span.SetStatus(codes.Ok, "")
	span.RecordError(nil)
	span.End()

	same := tracer.Span(ctx)
	same.End()
}
