package http

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tuanvm/weather-companion/internal/observability"
)

// RouterConfig holds the knobs applied when assembling the router.
type RouterConfig struct {
	// Limiter guards the upstream-backed routes. Nil disables rate limiting.
	Limiter *rate.Limiter
	// RequestTimeout bounds each upstream-backed request. Zero disables the
	// timeout middleware.
	RequestTimeout time.Duration
}

// NewRouter assembles the full route table. Correlation-id and metrics
// middleware apply everywhere; rate limiting and the per-request timeout
// apply only to routes that reach an upstream.
func NewRouter(h *Handler, logger *zap.Logger, cfg RouterConfig) *mux.Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	router := mux.NewRouter()
	router.Use(CorrelationIDMiddleware(logger))
	router.Use(MetricsMiddleware)

	router.HandleFunc("/health", h.GetHealth).Methods(http.MethodGet)
	router.Handle("/metrics", observability.MetricsHandler())

	// Local-state routes never touch an upstream, so the rate limiter and
	// timeout stay out of their path.
	router.HandleFunc("/favorites", h.GetFavorites).Methods(http.MethodGet)
	router.HandleFunc("/favorites", h.PostFavorite).Methods(http.MethodPost)
	router.HandleFunc("/favorites", h.DeleteFavorites).Methods(http.MethodDelete)
	router.HandleFunc("/favorites/{id}", h.DeleteFavorite).Methods(http.MethodDelete)
	router.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/history", h.PostHistory).Methods(http.MethodPost)
	router.HandleFunc("/history", h.DeleteHistory).Methods(http.MethodDelete)
	router.HandleFunc("/history/{id}", h.DeleteHistoryItem).Methods(http.MethodDelete)
	router.HandleFunc("/settings", h.GetSettings).Methods(http.MethodGet)
	router.HandleFunc("/settings", h.PatchSettings).Methods(http.MethodPatch)
	router.HandleFunc("/settings/reset", h.PostSettingsReset).Methods(http.MethodPost)

	upstream := router.NewRoute().Subrouter()
	upstream.Use(RateLimitMiddleware(cfg.Limiter))
	if cfg.RequestTimeout > 0 {
		upstream.Use(TimeoutMiddleware(cfg.RequestTimeout))
	}
	upstream.HandleFunc("/weather", h.GetWeatherByCoords).Methods(http.MethodGet)
	upstream.HandleFunc("/weather/{location}", h.GetWeather).Methods(http.MethodGet)
	upstream.HandleFunc("/forecast", h.GetForecastByCoords).Methods(http.MethodGet)
	upstream.HandleFunc("/forecast/{location}", h.GetForecast).Methods(http.MethodGet)
	upstream.HandleFunc("/ai-analysis/rice-market", h.GetMarketAnalysis).Methods(http.MethodGet)
	upstream.HandleFunc("/ai-analysis/rice-market/speech", h.GetMarketAnalysisSpeech).Methods(http.MethodGet)
	upstream.HandleFunc("/ai-analysis/youtube-videos", h.GetRiceVideos).Methods(http.MethodGet)
	upstream.HandleFunc("/weather-forecast/climate-forecasting", h.GetClimateForecast).Methods(http.MethodGet)
	upstream.HandleFunc("/weather-forecast/youtube-videos", h.GetClimateVideos).Methods(http.MethodGet)
	upstream.HandleFunc("/favorites/refresh", h.PostFavoritesRefresh).Methods(http.MethodPost)
	upstream.HandleFunc("/refresh", h.PostRefresh).Methods(http.MethodPost)

	return router
}
