package datarobot

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel error kinds. APIError values match the status-based ones through errors.Is.
var (
	ErrNotFound     = errors.New("resource not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrClient       = errors.New("client error")
	ErrServer       = errors.New("server error")

	ErrAsyncFailed        = errors.New("async process unsuccessful")
	ErrAsyncTimeout       = errors.New("async process timed out")
	ErrModelJobFailed     = errors.New("model job failed")
	ErrMissingLocation    = errors.New("response has no Location header")
	ErrParameterNotFound  = errors.New("no tuning parameter matches")
	ErrParameterAmbiguous = errors.New("tuning parameter selection is not unique")
	ErrNoParametersSet    = errors.New("no tuning parameters set")
	ErrInvalidSource      = errors.New("invalid dataset source")
)

// APIError is returned for any response the platform answers with 4xx or 5xx.
type APIError struct {
	StatusCode int
	Method     string
	Path       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Message)
}

// Is maps the status code onto the package sentinels.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrClient:
		return e.StatusCode >= http.StatusBadRequest && e.StatusCode < http.StatusInternalServerError
	case ErrServer:
		return e.StatusCode >= http.StatusInternalServerError
	}
	return false
}
