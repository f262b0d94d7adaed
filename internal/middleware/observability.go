package middleware

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/syllabus-dashboard/internal/observability"
)

var latencyBuckets = []struct {
	limit time.Duration
	label string
}{
	{25 * time.Millisecond, "<=25ms"},
	{100 * time.Millisecond, "<=100ms"},
	{500 * time.Millisecond, "<=500ms"},
	{2 * time.Second, "<=2s"},
}

// Observability records Prometheus metrics and a structured log line for every API request.
// Websocket streams are skipped since their latency is the connection lifetime.
func Observability(logger zerolog.Logger) fiber.Handler {
	observability.RegisterMetrics()

	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		path := c.Path()
		if strings.HasPrefix(path, "/api/") && !strings.HasSuffix(path, "/ws") {
			recordRequest(logger, c, responseStatus(c, err), time.Since(start))
		}
		return err
	}
}

func recordRequest(logger zerolog.Logger, c *fiber.Ctx, status int, duration time.Duration) {
	route := routeTemplate(c)
	method := c.Method()
	statusLabel := strconv.Itoa(status)

	observability.HTTPRequests().WithLabelValues(method, route, statusLabel).Inc()
	observability.HTTPLatency().WithLabelValues(method, route).Observe(duration.Seconds())
	if status >= fiber.StatusBadRequest {
		observability.HTTPErrors().WithLabelValues(method, route, statusLabel).Inc()
	}

	event := logger.Debug()
	switch {
	case status >= fiber.StatusInternalServerError:
		event = logger.Error()
	case status >= fiber.StatusBadRequest:
		event = logger.Warn()
	}

	event.
		Str("correlation_id", GetCorrelationID(c)).
		Str("session_id", SessionID(c)).
		Str("route", route).
		Str("method", method).
		Int("status", status).
		Float64("latency_ms", float64(duration)/float64(time.Millisecond)).
		Str("latency_bucket", latencyBucket(duration)).
		Msg("request completed")
}

// responseStatus resolves the final status, including errors the app error handler renders later.
func responseStatus(c *fiber.Ctx, err error) int {
	if err != nil {
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return fiberErr.Code
		}
		return fiber.StatusInternalServerError
	}
	return c.Response().StatusCode()
}

// routeTemplate keeps the label set bounded: unmatched paths share one label.
func routeTemplate(c *fiber.Ctx) string {
	if route := c.Route(); route != nil && route.Path != "" && route.Path != "/" {
		return route.Path
	}
	return "unmatched"
}

func latencyBucket(duration time.Duration) string {
	for _, bucket := range latencyBuckets {
		if duration <= bucket.limit {
			return bucket.label
		}
	}
	return ">2s"
}
