package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(t.Context())
	})
	return sr
}

func newTracedStation(enabled bool) *gin.Engine {
	router := gin.New()
	router.Use(RequestID())
	router.Use(Tracing("scanstock-test", enabled, "/health")...)
	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.POST("/api/v1/scanner/scan", func(c *gin.Context) {
		switch c.Query("camera") {
		case "busy":
			c.JSON(http.StatusConflict, gin.H{"code": "ERR_ENDPOINT_BUSY"})
		case "down":
			c.JSON(http.StatusServiceUnavailable, gin.H{"code": "ERR_DEVICE_UNREACHABLE"})
		default:
			c.JSON(http.StatusOK, gin.H{"barcode": "4006381333931"})
		}
	})
	return router
}

func serveScan(router *gin.Engine, query, requestID string) {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/scanner/scan"+query, nil)
	if requestID != "" {
		req.Header.Set(RequestIDHeader, requestID)
	}
	router.ServeHTTP(httptest.NewRecorder(), req)
}

func TestTracing_ScanSpans(t *testing.T) {
	tests := []struct {
		name   string
		query  string
		status codes.Code
	}{
		{"acquired", "", codes.Unset},
		{"camera busy", "?camera=busy", codes.Error},
		{"camera down", "?camera=down", codes.Error},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sr := setupTestTracer(t)
			serveScan(newTracedStation(true), tt.query, "req-42")

			spans := sr.Ended()
			require.Len(t, spans, 1)
			span := spans[0]
			assert.Equal(t, "POST /api/v1/scanner/scan", span.Name())
			assert.Equal(t, tt.status, span.Status().Code)

			var requestID string
			for _, kv := range span.Attributes() {
				if kv.Key == "request_id" {
					requestID = kv.Value.AsString()
				}
			}
			assert.Equal(t, "req-42", requestID)
		})
	}
}

func TestTracing_SkipsHealthAndDisabled(t *testing.T) {
	sr := setupTestTracer(t)

	router := newTracedStation(true)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, sr.Ended())

	assert.Empty(t, Tracing("scanstock-test", false))
	serveScan(newTracedStation(false), "?camera=busy", "")
	assert.Empty(t, sr.Ended())
}
