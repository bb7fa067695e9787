package fetch

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Sentinel errors for the failure kinds a fetcher can surface. Handlers map
// these to user-visible behavior; the cache layer decides retryability.
var (
	// ErrNetwork covers connectivity failures: DNS, refused connections, resets.
	ErrNetwork = errors.New("network error")

	// ErrTimeout is returned when a request exceeds its fixed timeout.
	ErrTimeout = errors.New("request timeout")

	// ErrDecode is returned when a payload does not match the expected shape.
	ErrDecode = errors.New("decode error")

	// ErrConfiguration is returned for missing required credentials. Never
	// retried; the caller should fail fast with a descriptive message.
	ErrConfiguration = errors.New("configuration error")
)

// StatusError is a non-2xx upstream response, carrying the original status code.
type StatusError struct {
	Code     int
	Endpoint string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: unexpected status %d", e.Endpoint, e.Code)
}

// ErrorCategory is a stable label for error classification in metrics.
type ErrorCategory string

const (
	ErrorCategoryTimeout       ErrorCategory = "timeout"
	ErrorCategoryNetwork       ErrorCategory = "network"
	ErrorCategoryStatus        ErrorCategory = "http_status"
	ErrorCategoryDecode        ErrorCategory = "decode"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// CategorizeError maps an error to a stable ErrorCategory for metric labels.
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ""
	}

	if errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded) {
		return ErrorCategoryTimeout
	}

	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return ErrorCategoryStatus
	}

	if errors.Is(err, ErrDecode) {
		return ErrorCategoryDecode
	}

	if errors.Is(err, ErrConfiguration) {
		return ErrorCategoryConfiguration
	}

	if errors.Is(err, ErrNetwork) {
		return ErrorCategoryNetwork
	}

	errStr := err.Error()
	if strings.Contains(errStr, "timeout") || strings.Contains(errStr, "deadline exceeded") {
		return ErrorCategoryTimeout
	}
	if strings.Contains(errStr, "connection") || strings.Contains(errStr, "no such host") {
		return ErrorCategoryNetwork
	}

	return ErrorCategoryUnknown
}

// classifyTransport wraps an http.Client.Do failure as ErrTimeout or ErrNetwork.
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %v", ErrTimeout, err)
	}
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}
