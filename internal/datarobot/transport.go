package datarobot

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/okian/drtune/pkg/logger"
	"github.com/okian/drtune/pkg/metrics"
)

// HTTP status code boundaries used to classify failures.
const (
	statusBadRequest      = 400
	statusNotFound        = 404
	statusTooManyRequests = 429
	statusInternalError   = 500
)

// Collections whose next path segment is a resource id.
var idCollections = map[string]bool{
	"projects":   true,
	"models":     true,
	"modelJobs":  true,
	"blueprints": true,
	"features":   true,
	"status":     true,
}

// instrumentedTransport authenticates requests and records Prometheus
// metrics for every round trip.
type instrumentedTransport struct {
	base      http.RoundTripper
	basePath  string
	token     string
	userAgent string
	requestID string
	logger    logger.Logger
}

func (t *instrumentedTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.Header.Set("Authorization", "Bearer "+t.token)
	r.Header.Set("User-Agent", t.userAgent)
	if t.requestID != "" {
		r.Header.Set("X-Request-Id", t.requestID)
	}

	endpoint := endpointLabel(t.basePath, r.URL.Path)
	start := time.Now()
	resp, err := t.base.RoundTrip(r)
	durationMs := float64(time.Since(start).Milliseconds())

	if err != nil {
		metrics.RecordAPIRequest(endpoint, r.Method, "error", durationMs)
		metrics.RecordAPIError(endpoint, "transport")
		t.logger.Debug(r.Context(), "api request failed",
			logger.String("method", r.Method),
			logger.String("endpoint", endpoint),
			logger.Error(err))
		return nil, err
	}

	metrics.RecordAPIRequest(endpoint, r.Method, strconv.Itoa(resp.StatusCode), durationMs)
	if resp.StatusCode >= statusBadRequest {
		metrics.RecordAPIError(endpoint, getErrorType(resp.StatusCode))
	}
	t.logDebug(r.Context(), r.Method, endpoint, resp.StatusCode, durationMs)
	return resp, nil
}

func (t *instrumentedTransport) logDebug(ctx context.Context, method, endpoint string, status int, durationMs float64) {
	t.logger.Debug(ctx, "api request",
		logger.String("method", method),
		logger.String("endpoint", endpoint),
		logger.Int("status", status),
		logger.Float64("duration_ms", durationMs))
}

// endpointLabel strips the API root and replaces resource ids with ":id" so
// that metric label cardinality stays bounded.
func endpointLabel(basePath, p string) string {
	p = strings.TrimPrefix(p, basePath)
	p = strings.Trim(p, "/")
	if p == "" {
		return "/"
	}
	segments := strings.Split(p, "/")
	for i := 1; i < len(segments); i++ {
		if idCollections[segments[i-1]] {
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}

// getErrorType returns a standardized error type based on HTTP status code.
func getErrorType(statusCode int) string {
	switch {
	case statusCode >= statusInternalError:
		return "server_error"
	case statusCode == statusTooManyRequests:
		return "rate_limit"
	case statusCode == statusNotFound:
		return "not_found"
	case statusCode >= statusBadRequest:
		return "client_error"
	default:
		return "unknown"
	}
}
