// Package service orchestrates the data layer: keyed reads through the query
// cache, domain fetchers for misses, and one-way snapshot copies into the
// persisted store.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/fetch"
	"github.com/tuanvm/weather-companion/internal/models"
	"github.com/tuanvm/weather-companion/internal/querycache"
	"github.com/tuanvm/weather-companion/internal/store"
)

// MarketAnalyzer produces the rice-market analysis. Implemented by the AI
// backend client and by the direct Gemini analyzer.
type MarketAnalyzer interface {
	Analyze(ctx context.Context) (models.MarketAnalysis, error)
}

// BackendAPI is the subset of the AI backend used for climate data and
// video lists.
type BackendAPI interface {
	RiceVideos(ctx context.Context, query string, limit int) ([]models.Video, error)
	ClimateForecast(ctx context.Context) (models.ClimateForecast, error)
	ClimateVideos(ctx context.Context) ([]models.Video, error)
}

// Meta carries the cache-state flags alongside a value.
type Meta struct {
	Stale     bool `json:"stale,omitempty"`
	IsLoading bool `json:"isLoading,omitempty"`
}

// Service is the process-wide orchestrator.
type Service struct {
	cache    *querycache.Cache
	weather  fetch.WeatherClient
	backend  BackendAPI
	analyzer MarketAnalyzer
	store    *store.Store
	logger   *zap.Logger
}

// New wires the service. All dependencies are required except backend and
// analyzer, which may be nil when the corresponding endpoints are disabled.
func New(cache *querycache.Cache, weather fetch.WeatherClient, backend BackendAPI, analyzer MarketAnalyzer, st *store.Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		cache:    cache,
		weather:  weather,
		backend:  backend,
		analyzer: analyzer,
		store:    st,
		logger:   logger,
	}
}

// Store exposes the persisted store for the HTTP layer.
func (s *Service) Store() *store.Store {
	return s.store
}

func normalizeCity(city string) string {
	return strings.ToLower(strings.TrimSpace(city))
}

func keyCurrentCity(city string) string {
	return "weather:current:city:" + normalizeCity(city)
}

func keyCurrentCoords(lat, lon float64) string {
	return fmt.Sprintf("weather:current:coords:%.4f,%.4f", lat, lon)
}

func keyForecastCity(city string) string {
	return "forecast:city:" + normalizeCity(city)
}

func keyForecastCoords(lat, lon float64) string {
	return fmt.Sprintf("forecast:coords:%.4f,%.4f", lat, lon)
}

const (
	keyRiceMarket      = "analysis:rice-market"
	keyClimateForecast = "climate:forecast"
	keyClimateVideos   = "videos:climate"
)

func keyRiceVideos(query string, limit int) string {
	return fmt.Sprintf("videos:rice:%s:%d", normalizeCity(query), limit)
}

// CurrentByCity returns current conditions for a city, cache-aside.
func (s *Service) CurrentByCity(ctx context.Context, city string) (models.WeatherSnapshot, Meta, error) {
	res := s.cache.Get(ctx, keyCurrentCity(city), func(ctx context.Context) (any, error) {
		snap, err := s.weather.CurrentByCity(ctx, city)
		if err != nil {
			return nil, err
		}
		s.copySnapshotToFavorite(snap)
		return snap, nil
	}, querycache.WeatherCurrentOptions)
	return snapshotResult(res)
}

// CurrentByCoords returns current conditions for a coordinate pair.
func (s *Service) CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, Meta, error) {
	res := s.cache.Get(ctx, keyCurrentCoords(lat, lon), func(ctx context.Context) (any, error) {
		snap, err := s.weather.CurrentByCoords(ctx, lat, lon)
		if err != nil {
			return nil, err
		}
		s.copySnapshotToFavorite(snap)
		return snap, nil
	}, querycache.WeatherCurrentOptions)
	return snapshotResult(res)
}

func snapshotResult(res querycache.Result) (models.WeatherSnapshot, Meta, error) {
	meta := Meta{Stale: res.Stale, IsLoading: res.IsLoading}
	if res.Data == nil {
		return models.WeatherSnapshot{}, meta, res.Err
	}
	snap, ok := res.Data.(models.WeatherSnapshot)
	if !ok {
		return models.WeatherSnapshot{}, meta, fmt.Errorf("unexpected cached type %T", res.Data)
	}
	return snap, meta, res.Err
}

// ForecastByCity returns the forecast series for a city.
func (s *Service) ForecastByCity(ctx context.Context, city string) (models.ForecastSeries, Meta, error) {
	res := s.cache.Get(ctx, keyForecastCity(city), func(ctx context.Context) (any, error) {
		return s.weather.ForecastByCity(ctx, city)
	}, querycache.WeatherForecastOptions)
	return forecastResult(res)
}

// ForecastByCoords returns the forecast series for a coordinate pair.
func (s *Service) ForecastByCoords(ctx context.Context, lat, lon float64) (models.ForecastSeries, Meta, error) {
	res := s.cache.Get(ctx, keyForecastCoords(lat, lon), func(ctx context.Context) (any, error) {
		return s.weather.ForecastByCoords(ctx, lat, lon)
	}, querycache.WeatherForecastOptions)
	return forecastResult(res)
}

func forecastResult(res querycache.Result) (models.ForecastSeries, Meta, error) {
	meta := Meta{Stale: res.Stale, IsLoading: res.IsLoading}
	if res.Data == nil {
		return models.ForecastSeries{}, meta, res.Err
	}
	series, ok := res.Data.(models.ForecastSeries)
	if !ok {
		return models.ForecastSeries{}, meta, fmt.Errorf("unexpected cached type %T", res.Data)
	}
	return series, meta, res.Err
}

// MarketAnalysis returns the rice-market analysis through the cache.
func (s *Service) MarketAnalysis(ctx context.Context) (models.MarketAnalysis, Meta, error) {
	if s.analyzer == nil {
		return models.MarketAnalysis{}, Meta{}, fmt.Errorf("%w: no market analyzer configured", fetch.ErrConfiguration)
	}
	res := s.cache.Get(ctx, keyRiceMarket, func(ctx context.Context) (any, error) {
		return s.analyzer.Analyze(ctx)
	}, querycache.AnalysisOptions)

	meta := Meta{Stale: res.Stale, IsLoading: res.IsLoading}
	if res.Data == nil {
		return models.MarketAnalysis{}, meta, res.Err
	}
	a, ok := res.Data.(models.MarketAnalysis)
	if !ok {
		return models.MarketAnalysis{}, meta, fmt.Errorf("unexpected cached type %T", res.Data)
	}
	return a, meta, res.Err
}

// RiceVideos returns the rice-market video list through the cache.
func (s *Service) RiceVideos(ctx context.Context, query string, limit int) ([]models.Video, Meta, error) {
	if s.backend == nil {
		return nil, Meta{}, fmt.Errorf("%w: no AI backend configured", fetch.ErrConfiguration)
	}
	res := s.cache.Get(ctx, keyRiceVideos(query, limit), func(ctx context.Context) (any, error) {
		return s.backend.RiceVideos(ctx, query, limit)
	}, querycache.VideoOptions)
	return videosResult(res)
}

// ClimateForecast returns the climate payload through the cache.
func (s *Service) ClimateForecast(ctx context.Context) (models.ClimateForecast, Meta, error) {
	if s.backend == nil {
		return models.ClimateForecast{}, Meta{}, fmt.Errorf("%w: no AI backend configured", fetch.ErrConfiguration)
	}
	res := s.cache.Get(ctx, keyClimateForecast, func(ctx context.Context) (any, error) {
		return s.backend.ClimateForecast(ctx)
	}, querycache.WeatherForecastOptions)

	meta := Meta{Stale: res.Stale, IsLoading: res.IsLoading}
	if res.Data == nil {
		return models.ClimateForecast{}, meta, res.Err
	}
	forecast, ok := res.Data.(models.ClimateForecast)
	if !ok {
		return models.ClimateForecast{}, meta, fmt.Errorf("unexpected cached type %T", res.Data)
	}
	return forecast, meta, res.Err
}

// ClimateVideos returns the climate-domain video list through the cache.
func (s *Service) ClimateVideos(ctx context.Context) ([]models.Video, Meta, error) {
	if s.backend == nil {
		return nil, Meta{}, fmt.Errorf("%w: no AI backend configured", fetch.ErrConfiguration)
	}
	res := s.cache.Get(ctx, keyClimateVideos, func(ctx context.Context) (any, error) {
		return s.backend.ClimateVideos(ctx)
	}, querycache.VideoOptions)
	return videosResult(res)
}

func videosResult(res querycache.Result) ([]models.Video, Meta, error) {
	meta := Meta{Stale: res.Stale, IsLoading: res.IsLoading}
	if res.Data == nil {
		return nil, meta, res.Err
	}
	videos, ok := res.Data.([]models.Video)
	if !ok {
		return nil, meta, fmt.Errorf("unexpected cached type %T", res.Data)
	}
	return videos, meta, res.Err
}

// Refresh invalidates the weather entries for the active location and
// returns freshly revalidated conditions. Coordinates take precedence over
// the city name when both are set.
func (s *Service) Refresh(ctx context.Context, city string, coords *models.Coordinates) (models.WeatherSnapshot, Meta, error) {
	if coords != nil {
		s.cache.Invalidate(keyCurrentCoords(coords.Lat, coords.Lon))
		s.cache.Invalidate(keyForecastCoords(coords.Lat, coords.Lon))
		return s.CurrentByCoords(ctx, coords.Lat, coords.Lon)
	}
	if strings.TrimSpace(city) == "" {
		return models.WeatherSnapshot{}, Meta{}, fmt.Errorf("refresh needs a city name or coordinates")
	}
	s.cache.Invalidate(keyCurrentCity(city))
	s.cache.Invalidate(keyForecastCity(city))
	return s.CurrentByCity(ctx, city)
}

// RefreshFavorites refetches current conditions for every favorite city
// concurrently and copies the snapshots into the persisted records. Returns
// an aggregated error if any city failed.
func (s *Service) RefreshFavorites(ctx context.Context) error {
	favorites := s.store.Favorites()
	if len(favorites) == 0 {
		return nil
	}
	start := time.Now()
	s.logger.Info("refreshing favorites", zap.Int("cities", len(favorites)))

	var wg sync.WaitGroup
	errCh := make(chan error, len(favorites))
	for _, fav := range favorites {
		wg.Add(1)
		go func(fav models.FavoriteCity) {
			defer wg.Done()
			var err error
			if fav.Coords != nil {
				s.cache.Invalidate(keyCurrentCoords(fav.Coords.Lat, fav.Coords.Lon))
				_, _, err = s.CurrentByCoords(ctx, fav.Coords.Lat, fav.Coords.Lon)
			} else {
				s.cache.Invalidate(keyCurrentCity(fav.Name))
				_, _, err = s.CurrentByCity(ctx, fav.Name)
			}
			if err != nil {
				errCh <- fmt.Errorf("refresh %s: %w", fav.Name, err)
			}
		}(fav)
	}
	wg.Wait()
	close(errCh)

	var errs []error
	for err := range errCh {
		errs = append(errs, err)
	}
	s.logger.Info("favorites refresh complete",
		zap.Int("cities", len(favorites)),
		zap.Int("errors", len(errs)),
		zap.Duration("duration", time.Since(start)))
	if len(errs) > 0 {
		return fmt.Errorf("favorites refresh: %v", errs)
	}
	return nil
}

// copySnapshotToFavorite copies a freshly fetched snapshot into the matching
// favorite, if one exists. One-way: the persisted record never feeds back
// into the cache.
func (s *Service) copySnapshotToFavorite(snap models.WeatherSnapshot) {
	for _, fav := range s.store.Favorites() {
		if !strings.EqualFold(fav.Name, snap.Location) {
			continue
		}
		if fav.Country != "" && snap.Country != "" && !strings.EqualFold(fav.Country, snap.Country) {
			continue
		}
		temp := snap.Temperature
		condition := snap.Condition
		coords := snap.Coords
		s.store.UpdateFavoriteWeather(fav.ID, store.FavoriteWeather{
			Temp:      &temp,
			Condition: &condition,
			Coords:    &coords,
		})
		return
	}
}
