package fetch

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestBackendClient(t *testing.T, handler http.HandlerFunc) *BackendClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewBackendClient(srv.URL, 2*time.Second, nil)
}

func TestBackendClient_RawAnalysis(t *testing.T) {
	raw := `{"summary": "Giá ổn định.", "priceData": {"freshRice": "8.000 đồng/kg"}}`
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ai-analysis/rice-market" {
			t.Errorf("path = %q, want /ai-analysis/rice-market", r.URL.Path)
		}
		w.Write([]byte(raw))
	})

	got, err := c.RawAnalysis(context.Background())
	if err != nil {
		t.Fatalf("RawAnalysis() error = %v", err)
	}
	if got != raw {
		t.Errorf("RawAnalysis() = %q, want the body verbatim", got)
	}
}

func TestBackendClient_RawAnalysis_UpstreamError(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := c.RawAnalysis(context.Background())
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.Code != http.StatusBadGateway {
		t.Errorf("RawAnalysis() error = %v, want StatusError 502", err)
	}
}

func TestBackendClient_RiceVideos(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("query") != "giá lúa" || q.Get("limit") != "5" {
			t.Errorf("query = %v, want query=giá lúa limit=5", q)
		}
		// Bare array; one entry needs ID extraction, one is unusable.
		w.Write([]byte(`[
			{"id": "aaaaaaaaaaa", "title": "Bản tin 1"},
			{"url": "https://youtu.be/bbbbbbbbbbb", "title": "Bản tin 2"},
			{"title": "no id"},
			{"id": "aaaaaaaaaaa", "title": "dup"}
		]`))
	})

	videos, err := c.RiceVideos(context.Background(), "giá lúa", 5)
	if err != nil {
		t.Fatalf("RiceVideos() error = %v", err)
	}
	if len(videos) != 2 {
		t.Fatalf("RiceVideos() len = %d, want 2 after normalization", len(videos))
	}
	if videos[1].ID != "bbbbbbbbbbb" {
		t.Errorf("videos[1].ID = %q, want bbbbbbbbbbb extracted from URL", videos[1].ID)
	}
}

func TestBackendClient_Videos_MalformedBody(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"videos": []}`)) // object, not the bare array
	})
	if _, err := c.ClimateVideos(context.Background()); !errors.Is(err, ErrDecode) {
		t.Errorf("ClimateVideos() error = %v, want ErrDecode for non-array body", err)
	}
}

func TestBackendClient_ClimateForecast(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/weather-forecast/climate-forecasting" {
			t.Errorf("path = %q", r.URL.Path)
		}
		w.Write([]byte(`{
			"id": 7,
			"summary": "Mùa mưa đến sớm.",
			"hydrologyInfo": "Mực nước sông Cửu Long lên nhanh.",
			"dataSources": ["NCHMF"],
			"dataQuality": {"score": 0.9, "reliability": "high", "sourcesUsed": 3}
		}`))
	})

	got, err := c.ClimateForecast(context.Background())
	if err != nil {
		t.Fatalf("ClimateForecast() error = %v", err)
	}
	if got.ID != 7 || got.Summary != "Mùa mưa đến sớm." {
		t.Errorf("ClimateForecast() = %+v", got)
	}
	if got.Quality.SourcesUsed != 3 {
		t.Errorf("Quality.SourcesUsed = %d, want 3", got.Quality.SourcesUsed)
	}
}

func TestBackendClient_ClimateForecast_MissingSummary(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"id": 7}`))
	})
	if _, err := c.ClimateForecast(context.Background()); !errors.Is(err, ErrDecode) {
		t.Errorf("ClimateForecast() error = %v, want ErrDecode for missing summary", err)
	}
}

func TestBackendClient_CircuitOpensAfterRepeatedFailures(t *testing.T) {
	c := newTestBackendClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	// The breaker trips after more than five consecutive failures.
	for i := 0; i < 6; i++ {
		if _, err := c.ClimateVideos(context.Background()); err == nil {
			t.Fatalf("request %d error = nil, want failure", i)
		}
	}

	_, err := c.ClimateVideos(context.Background())
	if !errors.Is(err, ErrCircuitOpen) {
		t.Errorf("ClimateVideos() error = %v, want ErrCircuitOpen", err)
	}
}
