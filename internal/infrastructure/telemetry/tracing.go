package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName is the instrumentation scope of application spans and meters
const TracerName = "github.com/scanstock/backend"

// Span attribute keys. Metric labels live in instruments.go.
var (
	SpanEndpoint        = attribute.Key("scan.endpoint")
	SpanBarcode         = attribute.Key("scan.barcode")
	SpanFormat          = attribute.Key("scan.format")
	SpanOutcome         = attribute.Key("scan.outcome")
	SpanRequiredReads   = attribute.Key("scan.required_reads")
	SpanFramesRead      = attribute.Key("scan.frames_read")
	SpanReadFailures    = attribute.Key("scan.read_failures")
	SpanConnectAttempts = attribute.Key("scan.connect_attempts")
	SpanConsensusCount  = attribute.Key("scan.consensus_count")

	SpanProductBarcode = attribute.Key("product.barcode")
	SpanStockDelta     = attribute.Key("product.stock_delta")
)

// StartSpan opens an internal span such as "scan.acquire" on the global
// provider. Close it with Finish.
func StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attrs...))
}

// Finish ends span, marking it failed with an exception event when err is set
// and Ok otherwise.
func Finish(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
