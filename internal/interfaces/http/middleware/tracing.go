// Package middleware provides HTTP middleware for the scan station API.
package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Tracing returns the server span chain: otelgin followed by a handler that tags
// the span with the request ID and fails it on 4xx and 5xx responses, so a busy
// camera (409) or an unreachable one (503) shows up as an error trace.
// Requests for skipPaths are not traced. Disabled tracing returns an empty chain.
func Tracing(serviceName string, enabled bool, skipPaths ...string) []gin.HandlerFunc {
	if !enabled {
		return nil
	}
	skip := make(map[string]bool, len(skipPaths))
	for _, p := range skipPaths {
		skip[p] = true
	}
	server := otelgin.Middleware(serviceName, otelgin.WithFilter(func(r *http.Request) bool {
		return !skip[r.URL.Path]
	}))
	return []gin.HandlerFunc{server, annotateSpan}
}

func annotateSpan(c *gin.Context) {
	span := trace.SpanFromContext(c.Request.Context())
	if !span.IsRecording() {
		c.Next()
		return
	}
	if id := GetRequestID(c); id != "" {
		span.SetAttributes(attribute.String("request_id", id))
	}

	c.Next()

	if status := c.Writer.Status(); status >= http.StatusBadRequest {
		span.SetStatus(codes.Error, http.StatusText(status))
	}
}
