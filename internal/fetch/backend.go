package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/models"
	"github.com/tuanvm/weather-companion/internal/observability"
	"github.com/tuanvm/weather-companion/internal/video"
)

// ErrCircuitOpen is returned while the backend circuit breaker is open.
var ErrCircuitOpen = errors.New("ai backend circuit open")

// BackendClient talks to the AI analysis backend: rice-market summaries,
// climate forecasts, and curated video lists. The backend aggregates slow
// scrapers and model calls, so every request goes through a circuit breaker.
type BackendClient struct {
	baseURL string
	client  *http.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

// NewBackendClient returns a client for the backend at baseURL.
func NewBackendClient(baseURL string, timeout time.Duration, logger *zap.Logger) *BackendClient {
	if baseURL == "" {
		baseURL = "http://localhost:3003"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ai-backend",
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     2 * time.Minute,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return &BackendClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		breaker: cb,
		logger:  logger,
	}
}

// RawAnalysis fetches the rice-market analysis body as unparsed text. The
// backend's payload is not schema-guaranteed (it may relay raw model text),
// so decoding is left to the analysis package.
func (b *BackendClient) RawAnalysis(ctx context.Context) (string, error) {
	body, err := b.get(ctx, "/ai-analysis/rice-market", nil)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// RiceVideos fetches the rice-market video list. The wire shape is a bare
// JSON array of descriptors.
func (b *BackendClient) RiceVideos(ctx context.Context, query string, limit int) ([]models.Video, error) {
	params := url.Values{}
	if query != "" {
		params.Set("query", query)
	}
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}
	return b.videos(ctx, "/ai-analysis/youtube-videos", params)
}

// ClimateForecast fetches the climate-forecasting payload. Unlike the
// market analysis, this endpoint is schema-bound: malformed payloads are a
// decode error, never silently partial.
func (b *BackendClient) ClimateForecast(ctx context.Context) (models.ClimateForecast, error) {
	body, err := b.get(ctx, "/weather-forecast/climate-forecasting", nil)
	if err != nil {
		return models.ClimateForecast{}, err
	}
	var forecast models.ClimateForecast
	if err := json.Unmarshal(body, &forecast); err != nil {
		return models.ClimateForecast{}, fmt.Errorf("%w: parse climate forecast: %v", ErrDecode, err)
	}
	if forecast.Summary == "" {
		return models.ClimateForecast{}, fmt.Errorf("%w: climate forecast missing summary", ErrDecode)
	}
	return forecast, nil
}

// ClimateVideos fetches the climate-domain video list.
func (b *BackendClient) ClimateVideos(ctx context.Context) ([]models.Video, error) {
	return b.videos(ctx, "/weather-forecast/youtube-videos", nil)
}

func (b *BackendClient) videos(ctx context.Context, endpoint string, params url.Values) ([]models.Video, error) {
	body, err := b.get(ctx, endpoint, params)
	if err != nil {
		return nil, err
	}
	var list []models.Video
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("%w: parse video list: %v", ErrDecode, err)
	}
	return video.Normalize(list), nil
}

// get performs one GET through the circuit breaker and returns the body.
func (b *BackendClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()
	u := b.baseURL + endpoint
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	result, err := b.breaker.Execute(func() (any, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return nil, fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := b.client.Do(req)
		if err != nil {
			return nil, classifyTransport(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return nil, &StatusError{Code: resp.StatusCode, Endpoint: endpoint}
		}
		return io.ReadAll(resp.Body)
	})

	observability.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err != nil {
		observability.FetchCallsTotal.WithLabelValues(endpoint, "error").Inc()
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	observability.FetchCallsTotal.WithLabelValues(endpoint, "success").Inc()
	return result.([]byte), nil
}
