package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	assert.NotNil(t, FromContext(context.Background()))

	l := zap.NewExample()
	assert.Same(t, l, FromContext(WithContext(context.Background(), l)))
}

func TestEnrich_ScanSessionFields(t *testing.T) {
	core, recorded := observer.New(zapcore.InfoLevel)

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))
	ctx = context.WithValue(ctx, RequestIDKey, "req-42")

	ctx, log := WithEndpoint(ctx, Enrich(ctx, zap.New(core)), "http://cam/video")
	log.Info("scan started")
	FromContext(ctx).Info("scan finished")

	require.Equal(t, 2, recorded.Len())
	for _, entry := range recorded.All() {
		fields := entry.ContextMap()
		assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
		assert.Equal(t, "00f067aa0ba902b7", fields["span_id"])
		assert.Equal(t, "req-42", fields["request_id"])
		assert.Equal(t, "http://cam/video", fields["endpoint"])
	}
}

func TestEnrich_NothingToAdd(t *testing.T) {
	l := zap.NewExample()
	assert.Same(t, l, Enrich(context.Background(), l))
	assert.NotNil(t, Enrich(context.Background(), nil))
}
