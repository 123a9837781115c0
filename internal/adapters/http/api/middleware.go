// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/loopwise/pkg/metrics"
)

// HTTP status code constants.
const (
	statusBadRequest       = 400
	statusNotFound         = 404
	statusMethodNotAllowed = 405
	statusTooLarge         = 413
	statusTooManyRequests  = 429
	statusInternalError    = 500
)

// Error codes written in error bodies and used as metric labels.
const (
	codeBadRequest       = "bad_request"
	codePayloadTooLarge  = "payload_too_large"
	codeBackpressure     = "backpressure"
	codeNotFound         = "not_found"
	codeMethodNotAllowed = "method_not_allowed"
	codeInternal         = "internal_error"
)

// MetricsMiddleware wraps HTTP handlers to record Prometheus metrics. Failed
// requests are labelled with the error code the handler wrote, so a rejected
// submission and a failed lookup are told apart.
func MetricsMiddleware(next http.HandlerFunc, endpoint string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		durationMs := float64(time.Since(start).Microseconds()) / 1000
		statusCodeStr := strconv.Itoa(wrapped.statusCode)

		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, durationMs)

		if wrapped.statusCode >= statusBadRequest {
			errorType := wrapped.errorCode
			if errorType == "" {
				errorType = getErrorType(wrapped.statusCode)
			}
			metrics.RecordErrorByEndpoint(endpoint, r.Method, errorType)
			metrics.RecordErrorByType(errorType, getErrorSeverity(errorType))
			metrics.RecordErrorByComponent("api", errorType)
		}
	}
}

// getErrorType maps a status code to an error type when the handler did not
// write an error body.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return codeInternal
	case statusCode == statusTooManyRequests:
		return codeBackpressure
	case statusCode == statusNotFound:
		return codeNotFound
	case statusCode == statusTooLarge:
		return codePayloadTooLarge
	case statusCode == statusMethodNotAllowed:
		return codeMethodNotAllowed
	default:
		return codeBadRequest
	}
}

// getErrorSeverity rates an error type. Server faults are high, a full
// analysis queue is medium and malformed client input is low.
func getErrorSeverity(errorType string) string {
	switch errorType {
	case codeInternal:
		return "high"
	case codeBackpressure:
		return "medium"
	default:
		return "low"
	}
}

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
	errorCode  string
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("failed to write response: %w", err)
	}
	return n, nil
}
