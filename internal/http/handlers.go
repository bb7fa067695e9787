package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/analysis"
	"github.com/tuanvm/weather-companion/internal/derive"
	"github.com/tuanvm/weather-companion/internal/fetch"
	"github.com/tuanvm/weather-companion/internal/health"
	"github.com/tuanvm/weather-companion/internal/models"
	"github.com/tuanvm/weather-companion/internal/service"
	"github.com/tuanvm/weather-companion/internal/validation"
)

// HealthConfig holds the thresholds for the health handler.
type HealthConfig struct {
	DegradedWindow   time.Duration
	DegradedErrorPct int
	OverloadWindow   time.Duration
	OverloadDenials  int
	StartTime        time.Time
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	svc          *service.Service
	healthConfig *HealthConfig
	logger       *zap.Logger
}

// NewHandler returns a new Handler.
func NewHandler(svc *service.Service, healthConfig *HealthConfig, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, healthConfig: healthConfig, logger: logger}
}

// weatherResponse is a snapshot plus display strings in the caller's unit and
// the cache-state flags.
type weatherResponse struct {
	models.WeatherSnapshot
	Display struct {
		Temperature string `json:"temperature"`
		FeelsLike   string `json:"feelsLike"`
	} `json:"display"`
	Stale     bool `json:"stale,omitempty"`
	IsLoading bool `json:"isLoading,omitempty"`
}

func (h *Handler) weatherResponse(r *http.Request, snap models.WeatherSnapshot, meta service.Meta) weatherResponse {
	unit := h.displayUnit(r)
	resp := weatherResponse{WeatherSnapshot: snap, Stale: meta.Stale, IsLoading: meta.IsLoading}
	resp.Display.Temperature = derive.FormatTemperature(snap.Temperature, unit)
	resp.Display.FeelsLike = derive.FormatTemperature(snap.FeelsLike, unit)
	return resp
}

// displayUnit resolves the unit for display strings: the unit query parameter
// when valid, otherwise the persisted settings.
func (h *Handler) displayUnit(r *http.Request) string {
	switch r.URL.Query().Get("unit") {
	case models.UnitCelsius:
		return models.UnitCelsius
	case models.UnitFahrenheit:
		return models.UnitFahrenheit
	}
	return h.svc.Store().Settings().TemperatureUnit
}

// GetWeather handles GET /weather/{location}.
func (h *Handler) GetWeather(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["location"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	snap, meta, err := h.svc.CurrentByCity(r.Context(), city)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.weatherResponse(r, snap, meta))
}

// GetWeatherByCoords handles GET /weather?lat=&lon=.
func (h *Handler) GetWeatherByCoords(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	snap, meta, err := h.svc.CurrentByCoords(r.Context(), lat, lon)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.weatherResponse(r, snap, meta))
}

// dailyEntry is one day in the derived daily view of a forecast series.
type dailyEntry struct {
	models.ForecastPoint
	Rain        derive.RainInfo `json:"rain"`
	DisplayTemp string          `json:"displayTemp"`
}

// forecastResponse is a forecast series plus the derived per-day view.
type forecastResponse struct {
	models.ForecastSeries
	Daily     []dailyEntry `json:"daily"`
	Stale     bool         `json:"stale,omitempty"`
	IsLoading bool         `json:"isLoading,omitempty"`
}

func (h *Handler) forecastResponse(r *http.Request, series models.ForecastSeries, meta service.Meta) forecastResponse {
	unit := h.displayUnit(r)
	resp := forecastResponse{ForecastSeries: series, Stale: meta.Stale, IsLoading: meta.IsLoading}
	daily := derive.DailyForecast(series.Points, time.Local)
	resp.Daily = make([]dailyEntry, 0, len(daily))
	for _, p := range daily {
		resp.Daily = append(resp.Daily, dailyEntry{
			ForecastPoint: p,
			Rain:          derive.RainLevel(p.RainProbability),
			DisplayTemp:   derive.FormatTemperature(p.Temperature, unit),
		})
	}
	return resp
}

// GetForecast handles GET /forecast/{location}.
func (h *Handler) GetForecast(w http.ResponseWriter, r *http.Request) {
	city, err := validation.ValidateCity(mux.Vars(r)["location"])
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	series, meta, err := h.svc.ForecastByCity(r.Context(), city)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.forecastResponse(r, series, meta))
}

// GetForecastByCoords handles GET /forecast?lat=&lon=.
func (h *Handler) GetForecastByCoords(w http.ResponseWriter, r *http.Request) {
	lat, lon, err := validation.ParseCoordinates(r.URL.Query().Get("lat"), r.URL.Query().Get("lon"))
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_COORDINATES", err.Error())
		return
	}

	series, meta, err := h.svc.ForecastByCoords(r.Context(), lat, lon)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.forecastResponse(r, series, meta))
}

// GetMarketAnalysis handles GET /ai-analysis/rice-market.
func (h *Handler) GetMarketAnalysis(w http.ResponseWriter, r *http.Request) {
	a, meta, err := h.svc.MarketAnalysis(r.Context())
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, struct {
		models.MarketAnalysis
		Stale     bool `json:"stale,omitempty"`
		IsLoading bool `json:"isLoading,omitempty"`
	}{a, meta.Stale, meta.IsLoading})
}

// GetMarketAnalysisSpeech handles GET /ai-analysis/rice-market/speech. Returns
// the analysis rendered as the Vietnamese read-aloud script.
func (h *Handler) GetMarketAnalysisSpeech(w http.ResponseWriter, r *http.Request) {
	a, _, err := h.svc.MarketAnalysis(r.Context())
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, map[string]string{
		"text":        analysis.SpeechText(a),
		"language":    models.LanguageVietnamese,
		"lastUpdated": a.LastUpdated,
	})
}

// defaultVideoLimit matches the backend's page size for rice video searches.
const defaultVideoLimit = 10

// GetRiceVideos handles GET /ai-analysis/youtube-videos?query=&limit=.
func (h *Handler) GetRiceVideos(w http.ResponseWriter, r *http.Request) {
	query := strings.TrimSpace(r.URL.Query().Get("query"))
	if query == "" {
		query = "giá lúa gạo hôm nay"
	}
	limit := defaultVideoLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 50 {
			writeError(w, r, http.StatusBadRequest, "INVALID_LIMIT", "limit must be between 1 and 50")
			return
		}
		limit = n
	}

	videos, meta, err := h.svc.RiceVideos(r.Context(), query, limit)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeVideos(w, videos, meta)
}

// GetClimateForecast handles GET /weather-forecast/climate-forecasting.
func (h *Handler) GetClimateForecast(w http.ResponseWriter, r *http.Request) {
	forecast, meta, err := h.svc.ClimateForecast(r.Context())
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, struct {
		models.ClimateForecast
		Stale     bool `json:"stale,omitempty"`
		IsLoading bool `json:"isLoading,omitempty"`
	}{forecast, meta.Stale, meta.IsLoading})
}

// GetClimateVideos handles GET /weather-forecast/youtube-videos.
func (h *Handler) GetClimateVideos(w http.ResponseWriter, r *http.Request) {
	videos, meta, err := h.svc.ClimateVideos(r.Context())
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeVideos(w, videos, meta)
}

func writeVideos(w http.ResponseWriter, videos []models.Video, meta service.Meta) {
	if videos == nil {
		videos = []models.Video{}
	}
	writeJSON(w, http.StatusOK, struct {
		Videos    []models.Video `json:"videos"`
		Stale     bool           `json:"stale,omitempty"`
		IsLoading bool           `json:"isLoading,omitempty"`
	}{videos, meta.Stale, meta.IsLoading})
}

// GetFavorites handles GET /favorites.
func (h *Handler) GetFavorites(w http.ResponseWriter, r *http.Request) {
	favorites := h.svc.Store().Favorites()
	if favorites == nil {
		favorites = []models.FavoriteCity{}
	}
	writeJSON(w, http.StatusOK, favorites)
}

// PostFavorite handles POST /favorites.
func (h *Handler) PostFavorite(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Name    string              `json:"name"`
		Country string              `json:"country"`
		Coords  *models.Coordinates `json:"coords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	name, err := validation.ValidateCity(body.Name)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", err.Error())
		return
	}

	fav, added := h.svc.Store().AddFavorite(name, strings.TrimSpace(body.Country), body.Coords)
	status := http.StatusCreated
	if !added {
		// Duplicate adds are idempotent: return the existing record.
		status = http.StatusOK
	}
	writeJSON(w, status, fav)
}

// DeleteFavorite handles DELETE /favorites/{id}.
func (h *Handler) DeleteFavorite(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Store().RemoveFavorite(mux.Vars(r)["id"]) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no favorite with that id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteFavorites handles DELETE /favorites.
func (h *Handler) DeleteFavorites(w http.ResponseWriter, r *http.Request) {
	h.svc.Store().ClearFavorites()
	w.WriteHeader(http.StatusNoContent)
}

// PostFavoritesRefresh handles POST /favorites/refresh: refetches current
// conditions for every favorite and copies the snapshots into the persisted
// records.
func (h *Handler) PostFavoritesRefresh(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RefreshFavorites(r.Context()); err != nil {
		health.RecordError()
		writeError(w, r, http.StatusBadGateway, "REFRESH_INCOMPLETE", "some favorites could not be refreshed")
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.svc.Store().Favorites())
}

// GetHistory handles GET /history.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	items := h.svc.Store().History()
	if items == nil {
		items = []models.SearchHistoryItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// PostHistory handles POST /history.
func (h *Handler) PostHistory(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Query       string `json:"query"`
		ResultCount *int   `json:"resultCount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	item, ok := h.svc.Store().AddSearch(body.Query, body.ResultCount)
	if !ok {
		writeError(w, r, http.StatusBadRequest, "INVALID_QUERY", "query is required")
		return
	}
	writeJSON(w, http.StatusCreated, item)
}

// DeleteHistoryItem handles DELETE /history/{id}.
func (h *Handler) DeleteHistoryItem(w http.ResponseWriter, r *http.Request) {
	if !h.svc.Store().RemoveSearch(mux.Vars(r)["id"]) {
		writeError(w, r, http.StatusNotFound, "NOT_FOUND", "no history item with that id")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteHistory handles DELETE /history.
func (h *Handler) DeleteHistory(w http.ResponseWriter, r *http.Request) {
	h.svc.Store().ClearHistory()
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().Settings())
}

// PatchSettings handles PATCH /settings. The body carries only the fields to
// change; absent fields keep their current values.
func (h *Handler) PatchSettings(w http.ResponseWriter, r *http.Request) {
	var patch struct {
		Theme              *string `json:"theme"`
		Language           *string `json:"language"`
		TemperatureUnit    *string `json:"temperatureUnit"`
		ShowNotifications  *bool   `json:"showNotifications"`
		SoundEnabled       *bool   `json:"soundEnabled"`
		VibrationEnabled   *bool   `json:"vibrationEnabled"`
		AutoRefresh        *bool   `json:"autoRefresh"`
		RefreshIntervalMin *int    `json:"refreshInterval"`
		ShowSplashScreen   *bool   `json:"showSplashScreen"`
		CompactMode        *bool   `json:"compactMode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}

	updated, err := h.svc.Store().UpdateSettings(func(s *models.AppSettings) {
		if patch.Theme != nil {
			s.Theme = *patch.Theme
		}
		if patch.Language != nil {
			s.Language = *patch.Language
		}
		if patch.TemperatureUnit != nil {
			s.TemperatureUnit = *patch.TemperatureUnit
		}
		if patch.ShowNotifications != nil {
			s.ShowNotifications = *patch.ShowNotifications
		}
		if patch.SoundEnabled != nil {
			s.SoundEnabled = *patch.SoundEnabled
		}
		if patch.VibrationEnabled != nil {
			s.VibrationEnabled = *patch.VibrationEnabled
		}
		if patch.AutoRefresh != nil {
			s.AutoRefresh = *patch.AutoRefresh
		}
		if patch.RefreshIntervalMin != nil {
			s.RefreshIntervalMin = *patch.RefreshIntervalMin
		}
		if patch.ShowSplashScreen != nil {
			s.ShowSplashScreen = *patch.ShowSplashScreen
		}
		if patch.CompactMode != nil {
			s.CompactMode = *patch.CompactMode
		}
	})
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_SETTINGS", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// PostSettingsReset handles POST /settings/reset.
func (h *Handler) PostSettingsReset(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Store().ResetSettings())
}

// PostRefresh handles POST /refresh: invalidates the active location's weather
// entries and returns freshly revalidated conditions. Coordinates take
// precedence over the city name when both are present.
func (h *Handler) PostRefresh(w http.ResponseWriter, r *http.Request) {
	var body struct {
		City   string              `json:"city"`
		Coords *models.Coordinates `json:"coords"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, r, http.StatusBadRequest, "INVALID_BODY", "malformed JSON body")
		return
	}
	if body.Coords == nil && strings.TrimSpace(body.City) == "" {
		writeError(w, r, http.StatusBadRequest, "INVALID_LOCATION", "city or coords is required")
		return
	}

	snap, meta, err := h.svc.Refresh(r.Context(), body.City, body.Coords)
	if err != nil {
		health.RecordError()
		writeUpstreamError(w, r, err)
		return
	}
	health.RecordSuccess()
	writeJSON(w, http.StatusOK, h.weatherResponse(r, snap, meta))
}

// healthResult holds the computed health status and metadata for logging.
type healthResult struct {
	status     string
	statusCode int
	reason     string
}

// GetHealth handles GET /health.
// Decision order: shutting-down > overloaded > degraded > healthy.
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	result := h.computeHealthStatus()

	checks := map[string]string{"weatherApi": "healthy"}
	if result.status == "degraded" {
		checks["weatherApi"] = "unhealthy"
	}
	resp := map[string]interface{}{
		"status":    result.status,
		"service":   "weather-companion",
		"checks":    checks,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if h.healthConfig != nil && !h.healthConfig.StartTime.IsZero() {
		resp["uptime"] = time.Since(h.healthConfig.StartTime).Round(time.Second).String()
	}
	if result.reason != "" {
		resp["reason"] = result.reason
	}
	writeJSON(w, result.statusCode, resp)
}

func (h *Handler) computeHealthStatus() healthResult {
	if health.IsShuttingDown() {
		return healthResult{"shutting-down", http.StatusServiceUnavailable, "signal"}
	}
	if h.healthConfig == nil {
		return healthResult{"healthy", http.StatusOK, ""}
	}
	if h.healthConfig.OverloadWindow > 0 && h.healthConfig.OverloadDenials > 0 {
		if health.DenialCount(h.healthConfig.OverloadWindow) >= h.healthConfig.OverloadDenials {
			return healthResult{"overloaded", http.StatusServiceUnavailable, "rate_limit_denials"}
		}
	}
	if h.healthConfig.DegradedWindow > 0 && h.healthConfig.DegradedErrorPct > 0 {
		errs, total := health.ErrorRate(h.healthConfig.DegradedWindow)
		if total > 0 && errs*100/total >= h.healthConfig.DegradedErrorPct {
			return healthResult{"degraded", http.StatusServiceUnavailable, "error_rate_breach"}
		}
	}
	return healthResult{"healthy", http.StatusOK, ""}
}

// writeJSON writes a JSON response with the specified HTTP status code.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes an error response in the standard error format with code,
// message, and requestId (correlation ID) if available in request context.
func writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	corrID := ""
	if v := r.Context().Value(correlationIDKey); v != nil {
		corrID = v.(string)
	}
	writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":      code,
			"message":   message,
			"requestId": corrID,
		},
	})
}

// writeUpstreamError maps a fetch-layer error to an HTTP error response and
// logs the underlying cause at DEBUG level.
func writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusServiceUnavailable
	code := "UPSTREAM_UNAVAILABLE"
	message := "Unable to fetch data"

	var statusErr *fetch.StatusError
	switch {
	case errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound:
		status, code, message = http.StatusNotFound, "CITY_NOT_FOUND", "No data for that location"
	case errors.Is(err, fetch.ErrConfiguration):
		code, message = "NOT_CONFIGURED", "This feature is not configured"
	case errors.Is(err, fetch.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		status, code, message = http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "Upstream request timed out"
	case errors.Is(err, fetch.ErrDecode):
		status, code, message = http.StatusBadGateway, "UPSTREAM_DECODE", "Upstream returned an unexpected payload"
	case errors.Is(err, fetch.ErrCircuitOpen):
		code, message = "CIRCUIT_OPEN", "Upstream temporarily disabled after repeated failures"
	}

	writeError(w, r, status, code, message)
	if logger, ok := r.Context().Value(loggerKey).(*zap.Logger); ok && logger != nil {
		logger.Debug("upstream error",
			zap.String("category", string(fetch.CategorizeError(err))),
			zap.Error(err))
	}
}
