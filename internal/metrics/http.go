package metrics

import (
	"strconv"
	"time"

	"github.com/courtcopilot/courtcopilot/internal/observability"
)

// HTTP metric names.
const (
	HTTPRequestsTotal     = "http_requests_total"
	HTTPRequestDurationMs = "http_request_duration_ms"
	HTTPResponseSizeBytes = "http_response_size_bytes"
	HTTPErrorsTotal       = "http_errors_total"
	ErrorsTotal           = "errors_total"
	ErrorsByEndpoint      = "errors_by_endpoint"
	PanicsTotal           = "panics_total"
)

// RecordHTTPRequest observes one served request. endpoint must be a route
// pattern, never a raw path.
func RecordHTTPRequest(method, endpoint string, statusCode int, duration time.Duration, responseBytes int64) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	tags := map[string]string{
		"method":   method,
		"endpoint": endpoint,
		"status":   strconv.Itoa(statusCode),
	}
	_ = sys.Counter(HTTPRequestsTotal, 1, tags)
	_ = sys.Histogram(HTTPRequestDurationMs, duration, tags)
	_ = sys.Gauge(HTTPResponseSizeBytes, float64(responseBytes), map[string]string{"method": method, "endpoint": endpoint})

	if statusCode >= 400 {
		errorType := "client_error"
		if statusCode >= 500 {
			errorType = "server_error"
		}
		_ = sys.Counter(HTTPErrorsTotal, 1, map[string]string{
			"method":     method,
			"endpoint":   endpoint,
			"error_type": errorType,
		})
	}
}

// RecordError counts an error envelope written to a client.
func RecordError(errorCode string, httpStatus int, endpoint string) {
	sys := observability.TelemetrySystem
	if sys == nil {
		return
	}
	_ = sys.Counter(ErrorsTotal, 1, map[string]string{
		"error_code":  errorCode,
		"http_status": strconv.Itoa(httpStatus),
	})
	if endpoint != "" {
		_ = sys.Counter(ErrorsByEndpoint, 1, map[string]string{
			"endpoint":   endpoint,
			"error_code": errorCode,
		})
	}
}

// RecordPanic counts a recovered handler panic.
func RecordPanic() {
	if observability.TelemetrySystem != nil {
		_ = observability.TelemetrySystem.Counter(PanicsTotal, 1, nil)
	}
}
