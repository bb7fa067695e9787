//go:build integration
// +build integration

package testhelpers

import (
	"os"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/analysis"
	"github.com/tuanvm/weather-companion/internal/fetch"
	"github.com/tuanvm/weather-companion/internal/querycache"
	"github.com/tuanvm/weather-companion/internal/service"
	"github.com/tuanvm/weather-companion/internal/store"
)

// IntegrationTestConfig holds configuration for integration tests that run
// against the live OpenWeather API and AI backend.
type IntegrationTestConfig struct {
	APIKey     string
	APIURL     string
	BackendURL string
}

// GetIntegrationConfig loads integration test configuration from the
// environment. Skips the test if WEATHER_API_KEY is not set.
func GetIntegrationConfig(t *testing.T) IntegrationTestConfig {
	apiKey := os.Getenv("WEATHER_API_KEY")
	if apiKey == "" {
		t.Skip("WEATHER_API_KEY not set, skipping integration test")
	}

	apiURL := os.Getenv("WEATHER_API_URL")
	if apiURL == "" {
		apiURL = "https://api.openweathermap.org/data/2.5"
	}

	backendURL := os.Getenv("BACKEND_URL")
	if backendURL == "" {
		backendURL = "http://localhost:3003"
	}

	return IntegrationTestConfig{
		APIKey:     apiKey,
		APIURL:     apiURL,
		BackendURL: backendURL,
	}
}

// SetupIntegrationService creates a fully wired service backed by the live
// weather API, an in-memory persisted store, and a fresh query cache.
func SetupIntegrationService(t *testing.T, cfg IntegrationTestConfig) *service.Service {
	logger := zap.NewNop()

	weatherClient, err := fetch.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	backendClient := fetch.NewBackendClient(cfg.BackendURL, 10*time.Second, logger)

	st := store.New(store.NewMemoryKV(), logger)
	st.Load()

	cache := querycache.New(logger)
	analyzer := analysis.NewBackendAnalyzer(backendClient, logger)
	return service.New(cache, weatherClient, backendClient, analyzer, st, logger)
}

// SetupIntegrationClient creates a weather client for integration tests.
func SetupIntegrationClient(t *testing.T, cfg IntegrationTestConfig) fetch.WeatherClient {
	client, err := fetch.NewOpenWeatherClient(cfg.APIKey, cfg.APIURL, 10*time.Second)
	if err != nil {
		t.Fatalf("NewOpenWeatherClient() error = %v", err)
	}
	return client
}
