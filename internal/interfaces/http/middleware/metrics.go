package middleware

import (
	"time"

	"github.com/erp/stockledger/internal/infrastructure/telemetry"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// HTTPMeterName is the instrumentation scope of the HTTP server instruments
const HTTPMeterName = "github.com/erp/stockledger/http"

type httpMetrics struct {
	requests metric.Int64Counter
	latency  metric.Float64Histogram
	inFlight metric.Int64UpDownCounter
}

func newHTTPMetrics(meter metric.Meter) (*httpMetrics, error) {
	in := telemetry.NewInstruments(meter)
	m := &httpMetrics{
		requests: in.Counter("http.server.requests", "Total number of HTTP requests", "{request}"),
		latency:  in.Histogram("http.server.request.duration", "HTTP request latency distribution in seconds", "s", telemetry.HTTPDurationBuckets...),
		inFlight: in.UpDownCounter("http.server.active_requests", "Number of currently active HTTP requests", "{request}"),
	}
	if err := in.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// HTTPMetrics returns a middleware that counts requests and records latency by
// method and route pattern. A nil meter, or one that fails to create the
// instruments, yields a pass-through middleware.
func HTTPMetrics(meter metric.Meter, log *zap.Logger) gin.HandlerFunc {
	if meter == nil {
		return func(c *gin.Context) { c.Next() }
	}
	metrics, err := newHTTPMetrics(meter)
	if err != nil {
		if log != nil {
			log.Warn("HTTP metrics disabled", zap.Error(err))
		}
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		ctx := c.Request.Context()
		start := time.Now()

		metrics.inFlight.Add(ctx, 1)
		c.Next()
		metrics.inFlight.Add(ctx, -1)

		method := telemetry.AttrHTTPMethod.String(c.Request.Method)
		route := telemetry.AttrHTTPRoute.String(routePattern(c))
		metrics.requests.Add(ctx, 1, metric.WithAttributes(method, route, telemetry.AttrHTTPStatusCode.Int(c.Writer.Status())))
		telemetry.RecordSeconds(ctx, metrics.latency, time.Since(start), method, route)
	}
}

// routePattern returns the matched route ("/api/v1/batches/:id") rather than
// the raw path to keep label cardinality bounded.
func routePattern(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unknown"
}
