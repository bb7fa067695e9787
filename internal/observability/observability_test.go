package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// TestParseLogLevel verifies log level parsing from the environment value,
// including case-insensitivity, surrounding whitespace, and the INFO default.
func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		env    string
		expect zapcore.Level
	}{
		{"", zap.InfoLevel},
		{"INFO", zap.InfoLevel},
		{"DEBUG", zap.DebugLevel},
		{"WARN", zap.WarnLevel},
		{"ERROR", zap.ErrorLevel},
		{"debug", zap.DebugLevel},
		{"  warn  ", zap.WarnLevel},
		{"invalid", zap.InfoLevel},
	}
	for _, tt := range tests {
		level := parseLogLevel(tt.env)
		if got := level.Level(); got != tt.expect {
			t.Errorf("parseLogLevel(%q) = %v, want %v", tt.env, got, tt.expect)
		}
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger()
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}
	if logger == nil {
		t.Fatal("NewLogger() returned nil logger")
	}

	logger.Info("test message")
	_ = logger.Sync() // best-effort; can fail on /dev/stderr in test env
}

// TestMetrics_Usable exercises every metric once so a label-count mismatch
// with the recording sites panics here instead of in production.
func TestMetrics_Usable(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/weather/{location}", "2xx").Inc()
	HTTPRequestDuration.WithLabelValues("GET", "/weather/{location}").Observe(0.01)
	HTTPRequestsInFlight.Inc()
	HTTPRequestsInFlight.Dec()
	RateLimitDeniedTotal.Inc()
	CacheHitsTotal.WithLabelValues("weather").Inc()
	CacheMissesTotal.WithLabelValues("weather").Inc()
	CacheStaleServesTotal.WithLabelValues("forecast").Inc()
	CacheDedupJoinsTotal.WithLabelValues("weather").Inc()
	CacheRefreshTotal.WithLabelValues("analysis").Inc()
	CacheEvictionsTotal.Inc()
	FetchCallsTotal.WithLabelValues("/weather", "success").Inc()
	FetchCallsTotal.WithLabelValues("/weather", "error").Inc()
	FetchDuration.WithLabelValues("/weather").Observe(0.1)
	FetchRetriesTotal.WithLabelValues("weather").Inc()
	StoreMutationsTotal.WithLabelValues("add_favorite").Inc()
	StorePersistErrorsTotal.Inc()
}

func TestMetricsHandler_ServesPrometheusFormat(t *testing.T) {
	HTTPRequestsTotal.WithLabelValues("GET", "/health", "2xx").Inc()

	handler := MetricsHandler()
	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()

	handler.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("MetricsHandler status = %d, want 200", w.Code)
	}
	body := w.Body.String()
	if !strings.Contains(body, "http_requests_total") {
		t.Error("MetricsHandler response should contain metric output")
	}
}

func TestFlushTelemetry(t *testing.T) {
	if err := FlushTelemetry(context.Background(), nil); err != nil {
		t.Errorf("FlushTelemetry(nil logger) error = %v", err)
	}
	// A no-op logger syncs cleanly regardless of the test environment's stderr.
	if err := FlushTelemetry(context.Background(), zap.NewNop()); err != nil {
		t.Errorf("FlushTelemetry(nop logger) error = %v", err)
	}
}
