package fetch

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorCategory
	}{
		{"nil", nil, ""},
		{"timeout sentinel", fmt.Errorf("%w: dial tcp", ErrTimeout), ErrorCategoryTimeout},
		{"deadline exceeded", context.DeadlineExceeded, ErrorCategoryTimeout},
		{"status error", &StatusError{Code: 502, Endpoint: "/weather"}, ErrorCategoryStatus},
		{"wrapped status error", fmt.Errorf("get: %w", &StatusError{Code: 404, Endpoint: "/weather"}), ErrorCategoryStatus},
		{"decode", fmt.Errorf("%w: bad json", ErrDecode), ErrorCategoryDecode},
		{"configuration", fmt.Errorf("%w: no key", ErrConfiguration), ErrorCategoryConfiguration},
		{"network", fmt.Errorf("%w: connection refused", ErrNetwork), ErrorCategoryNetwork},
		{"bare timeout string", errors.New("request timeout while reading"), ErrorCategoryTimeout},
		{"bare connection string", errors.New("connection reset by peer"), ErrorCategoryNetwork},
		{"unknown", errors.New("something else"), ErrorCategoryUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CategorizeError(tt.err); got != tt.want {
				t.Errorf("CategorizeError(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestStatusError_Error(t *testing.T) {
	err := &StatusError{Code: 404, Endpoint: "/weather"}
	want := "/weather: unexpected status 404"
	if got := err.Error(); got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
}
