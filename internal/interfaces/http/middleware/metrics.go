package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/scanstock/backend/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

var responseSizeBuckets = []float64{128, 512, 1024, 4096, 16384, 65536, 262144, 1048576}

type httpInstruments struct {
	total    *telemetry.Counter
	latency  *telemetry.Histogram
	size     *telemetry.Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPInstruments(meter metric.Meter) (*httpInstruments, error) {
	var (
		in  httpInstruments
		err error
	)
	if in.total, err = telemetry.NewCounter(meter, "http_server_request_total",
		"HTTP requests served", "{request}"); err != nil {
		return nil, err
	}
	if in.latency, err = telemetry.NewHistogram(meter, "http_server_request_duration_seconds",
		"HTTP request latency; scan requests block for a whole acquisition", "s", telemetry.HTTPDurationBuckets); err != nil {
		return nil, err
	}
	if in.size, err = telemetry.NewHistogram(meter, "http_server_response_size_bytes",
		"HTTP response body size", "By", responseSizeBuckets); err != nil {
		return nil, err
	}
	if in.inFlight, err = meter.Int64UpDownCounter("http_server_active_requests",
		metric.WithDescription("HTTP requests in flight"), metric.WithUnit("{request}")); err != nil {
		return nil, err
	}
	return &in, nil
}

// HTTPMetrics records per-route request count, latency, in-flight requests and
// response size. Routes are labelled by pattern, so barcodes in the path never
// become label values. A nil meter disables the middleware.
func HTTPMetrics(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	in, err := newHTTPInstruments(meter)
	if err != nil {
		log.Warn("HTTP metrics disabled", zap.Error(err))
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()
		in.inFlight.Add(ctx, 1)
		defer in.inFlight.Add(ctx, -1)

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		attrs := []attribute.KeyValue{
			telemetry.AttrHTTPMethod.String(c.Request.Method),
			telemetry.AttrHTTPRoute.String(route),
		}
		in.total.Inc(ctx, append(attrs, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status()))...)
		in.latency.RecordDuration(ctx, time.Since(start), attrs...)
		if n := c.Writer.Size(); n > 0 {
			in.size.Record(ctx, float64(n), attrs...)
		}
	}
}
