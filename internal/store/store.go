// Package store owns the persisted local state: application settings, the
// favorite-city list, and search history. State lives in memory, every
// mutation mirrors the persistable subset to durable storage, and listeners
// are notified synchronously after each mutation. Transient fetch state never
// enters this store.
package store

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/models"
	"github.com/tuanvm/weather-companion/internal/observability"
)

// maxSearchHistory caps the history list, newest first.
const maxSearchHistory = 20

// EventKind identifies which slice of state a mutation touched.
type EventKind string

const (
	EventSettings  EventKind = "settings"
	EventFavorites EventKind = "favorites"
	EventHistory   EventKind = "history"
)

// Listener receives store change notifications after a mutation completes.
type Listener func(EventKind)

// weatherDataRecord is the persisted shape of favorites + history.
type weatherDataRecord struct {
	FavoriteCities []models.FavoriteCity      `json:"favoriteCities"`
	SearchHistory  []models.SearchHistoryItem `json:"searchHistory"`
}

// settingsRecord shadows AppSettings with pointer fields so missing keys in a
// persisted blob fall back to defaults instead of zero values.
type settingsRecord struct {
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

// FavoriteWeather is the partial snapshot merged into a favorite city after a
// successful weather fetch. Nil fields are left untouched.
type FavoriteWeather struct {
	Temp      *float64
	Condition *string
	Coords    *models.Coordinates
}

// Store is the process-wide persisted store.
type Store struct {
	mu        sync.Mutex
	settings  models.AppSettings
	favorites []models.FavoriteCity
	history   []models.SearchHistoryItem

	kv       KV
	logger   *zap.Logger
	validate *validator.Validate

	listenerMu sync.Mutex
	listeners  []Listener

	now   func() time.Time
	newID func() string
}

// New returns a Store over kv with compiled-in defaults. Call Load before
// first use to merge persisted state.
func New(kv KV, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		settings: models.DefaultAppSettings(),
		kv:       kv,
		logger:   logger,
		validate: validator.New(),
		now:      time.Now,
		newID:    uuid.NewString,
	}
}

// Load reads the persisted subset and merges it over defaults. Missing or
// corrupt records never fail startup; they are logged and replaced with
// defaults.
func (s *Store) Load() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadSettingsLocked()
	s.loadWeatherDataLocked()
}

func (s *Store) loadSettingsLocked() {
	data, err := s.kv.Load(KeySettings)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("settings record unreadable, using defaults", zap.Error(err))
		}
		return
	}

	var rec settingsRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("settings record corrupt, using defaults", zap.Error(err))
		return
	}

	merged := models.DefaultAppSettings()
	if rec.Theme != nil {
		merged.Theme = *rec.Theme
	}
	if rec.Language != nil {
		merged.Language = *rec.Language
	}
	if rec.TemperatureUnit != nil {
		merged.TemperatureUnit = *rec.TemperatureUnit
	}
	if rec.ShowNotifications != nil {
		merged.ShowNotifications = *rec.ShowNotifications
	}
	if rec.SoundEnabled != nil {
		merged.SoundEnabled = *rec.SoundEnabled
	}
	if rec.VibrationEnabled != nil {
		merged.VibrationEnabled = *rec.VibrationEnabled
	}
	if rec.AutoRefresh != nil {
		merged.AutoRefresh = *rec.AutoRefresh
	}
	if rec.RefreshIntervalMin != nil {
		merged.RefreshIntervalMin = *rec.RefreshIntervalMin
	}
	if rec.ShowSplashScreen != nil {
		merged.ShowSplashScreen = *rec.ShowSplashScreen
	}
	if rec.CompactMode != nil {
		merged.CompactMode = *rec.CompactMode
	}

	s.settings = s.sanitizeSettings(merged)
}

// sanitizeSettings resets any field that fails validation back to its
// default. Persisted garbage must never surface as an error.
func (s *Store) sanitizeSettings(settings models.AppSettings) models.AppSettings {
	err := s.validate.Struct(settings)
	if err == nil {
		return settings
	}

	defaults := models.DefaultAppSettings()
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		s.logger.Warn("settings validation failed, using defaults", zap.Error(err))
		return defaults
	}
	for _, fe := range fieldErrs {
		s.logger.Warn("persisted setting out of range, using default",
			zap.String("field", fe.StructField()), zap.Any("value", fe.Value()))
		switch fe.StructField() {
		case "Theme":
			settings.Theme = defaults.Theme
		case "Language":
			settings.Language = defaults.Language
		case "TemperatureUnit":
			settings.TemperatureUnit = defaults.TemperatureUnit
		case "RefreshIntervalMin":
			settings.RefreshIntervalMin = defaults.RefreshIntervalMin
		}
	}
	return settings
}

func (s *Store) loadWeatherDataLocked() {
	data, err := s.kv.Load(KeyWeatherData)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			s.logger.Warn("weather-data record unreadable, starting empty", zap.Error(err))
		}
		return
	}

	var rec weatherDataRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		s.logger.Warn("weather-data record corrupt, starting empty", zap.Error(err))
		return
	}
	s.favorites = rec.FavoriteCities
	s.history = rec.SearchHistory
	if len(s.history) > maxSearchHistory {
		s.history = s.history[:maxSearchHistory]
	}
}

// Subscribe registers a listener invoked synchronously after every mutation.
func (s *Store) Subscribe(l Listener) {
	s.listenerMu.Lock()
	defer s.listenerMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *Store) notify(kind EventKind) {
	s.listenerMu.Lock()
	listeners := make([]Listener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenerMu.Unlock()
	for _, l := range listeners {
		l(kind)
	}
}

// persistSettingsLocked writes the settings blob. Failures are logged, never
// raised: in-memory state stays authoritative for the session.
func (s *Store) persistSettingsLocked() {
	data, err := json.Marshal(s.settings)
	if err == nil {
		err = s.kv.Save(KeySettings, data)
	}
	if err != nil {
		observability.StorePersistErrorsTotal.Inc()
		s.logger.Warn("persist settings failed", zap.Error(err))
	}
}

func (s *Store) persistWeatherDataLocked() {
	data, err := json.Marshal(weatherDataRecord{
		FavoriteCities: s.favorites,
		SearchHistory:  s.history,
	})
	if err == nil {
		err = s.kv.Save(KeyWeatherData, data)
	}
	if err != nil {
		observability.StorePersistErrorsTotal.Inc()
		s.logger.Warn("persist weather data failed", zap.Error(err))
	}
}

// Settings returns a copy of the current settings.
func (s *Store) Settings() models.AppSettings {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.settings
}

// UpdateSettings applies mutate to the current settings, rejecting the result
// if it fails validation. Each setter endpoint replaces exactly one field.
func (s *Store) UpdateSettings(mutate func(*models.AppSettings)) (models.AppSettings, error) {
	s.mu.Lock()
	updated := s.settings
	mutate(&updated)
	if err := s.validate.Struct(updated); err != nil {
		current := s.settings
		s.mu.Unlock()
		return current, err
	}
	s.settings = updated
	s.persistSettingsLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("update_settings").Inc()
	s.notify(EventSettings)
	return updated, nil
}

// ResetSettings restores the compiled-in defaults.
func (s *Store) ResetSettings() models.AppSettings {
	s.mu.Lock()
	s.settings = models.DefaultAppSettings()
	s.persistSettingsLocked()
	defaults := s.settings
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("reset_settings").Inc()
	s.logger.Info("app settings reset to defaults")
	s.notify(EventSettings)
	return defaults
}

// Favorites returns a copy of the favorite-city list.
func (s *Store) Favorites() []models.FavoriteCity {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.FavoriteCity, len(s.favorites))
	copy(out, s.favorites)
	return out
}

// AddFavorite appends a favorite unless a case-insensitive (name, country)
// match already exists, in which case the existing entry is returned with
// added=false.
func (s *Store) AddFavorite(name, country string, coords *models.Coordinates) (models.FavoriteCity, bool) {
	name = strings.TrimSpace(name)
	country = strings.TrimSpace(country)

	s.mu.Lock()
	for _, c := range s.favorites {
		if strings.EqualFold(c.Name, name) && strings.EqualFold(c.Country, country) {
			s.mu.Unlock()
			s.logger.Debug("favorite already present", zap.String("city", name), zap.String("country", country))
			return c, false
		}
	}
	city := models.FavoriteCity{
		ID:      s.newID(),
		Name:    name,
		Country: country,
		Coords:  coords,
		AddedAt: s.now(),
	}
	s.favorites = append(s.favorites, city)
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("add_favorite").Inc()
	s.logger.Info("favorite added", zap.String("city", name), zap.String("country", country))
	s.notify(EventFavorites)
	return city, true
}

// RemoveFavorite deletes the favorite with the given id. Returns false when
// no favorite matched.
func (s *Store) RemoveFavorite(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, c := range s.favorites {
		if c.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.favorites = append(s.favorites[:idx], s.favorites[idx+1:]...)
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("remove_favorite").Inc()
	s.notify(EventFavorites)
	return true
}

// ClearFavorites removes every favorite city.
func (s *Store) ClearFavorites() {
	s.mu.Lock()
	s.favorites = nil
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("clear_favorites").Inc()
	s.notify(EventFavorites)
}

// UpdateFavoriteWeather merges a partial weather snapshot into the favorite
// with the given id and stamps LastWeatherUpdate. No-op if the id is unknown.
// This is a one-way copy out of the query cache, not a shared reference.
func (s *Store) UpdateFavoriteWeather(id string, update FavoriteWeather) bool {
	s.mu.Lock()
	found := false
	for i := range s.favorites {
		if s.favorites[i].ID != id {
			continue
		}
		if update.Temp != nil {
			s.favorites[i].CurrentTemp = update.Temp
		}
		if update.Condition != nil {
			s.favorites[i].Condition = *update.Condition
		}
		if update.Coords != nil {
			s.favorites[i].Coords = update.Coords
		}
		t := s.now()
		s.favorites[i].LastWeatherUpdate = &t
		found = true
		break
	}
	if !found {
		s.mu.Unlock()
		return false
	}
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("update_favorite_weather").Inc()
	s.notify(EventFavorites)
	return true
}

// History returns a copy of the search history, newest first.
func (s *Store) History() []models.SearchHistoryItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.SearchHistoryItem, len(s.history))
	copy(out, s.history)
	return out
}

// AddSearch records a search query at the front of the history. The query is
// trimmed; empty queries are rejected. A case-insensitive repeat replaces its
// prior entry's position. The list is capped at the 20 most recent.
func (s *Store) AddSearch(query string, resultCount *int) (models.SearchHistoryItem, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return models.SearchHistoryItem{}, false
	}

	s.mu.Lock()
	filtered := s.history[:0:0]
	for _, item := range s.history {
		if !strings.EqualFold(item.Query, query) {
			filtered = append(filtered, item)
		}
	}
	item := models.SearchHistoryItem{
		ID:          s.newID(),
		Query:       query,
		Timestamp:   s.now(),
		ResultCount: resultCount,
	}
	s.history = append([]models.SearchHistoryItem{item}, filtered...)
	if len(s.history) > maxSearchHistory {
		s.history = s.history[:maxSearchHistory]
	}
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("add_search").Inc()
	s.notify(EventHistory)
	return item, true
}

// RemoveSearch deletes one history entry by id.
func (s *Store) RemoveSearch(id string) bool {
	s.mu.Lock()
	idx := -1
	for i, item := range s.history {
		if item.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		s.mu.Unlock()
		return false
	}
	s.history = append(s.history[:idx], s.history[idx+1:]...)
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("remove_search").Inc()
	s.notify(EventHistory)
	return true
}

// ClearHistory removes every history entry.
func (s *Store) ClearHistory() {
	s.mu.Lock()
	s.history = nil
	s.persistWeatherDataLocked()
	s.mu.Unlock()

	observability.StoreMutationsTotal.WithLabelValues("clear_history").Inc()
	s.notify(EventHistory)
}
