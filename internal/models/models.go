package models

import "time"

// Coordinates is a latitude/longitude pair in decimal degrees.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// WeatherSnapshot is the decoded current-conditions response for one location.
// Held only in the query cache, never persisted.
type WeatherSnapshot struct {
	Location    string      `json:"location"`
	Country     string      `json:"country"`
	Coords      Coordinates `json:"coords"`
	Temperature float64     `json:"temperature"` // Celsius
	FeelsLike   float64     `json:"feelsLike"`
	TempMin     float64     `json:"tempMin"`
	TempMax     float64     `json:"tempMax"`
	Pressure    int         `json:"pressure"`
	Humidity    int         `json:"humidity"`
	WindSpeed   float64     `json:"windSpeed"`
	WindDeg     int         `json:"windDeg"`
	Condition   string      `json:"condition"`
	Description string      `json:"description"`
	Icon        string      `json:"icon"`
	IconURL     string      `json:"iconUrl"`
	Visibility  int         `json:"visibility"`
	Sunrise     time.Time   `json:"sunrise"`
	Sunset      time.Time   `json:"sunset"`
	ObservedAt  time.Time   `json:"observedAt"`
}

// ForecastPoint is one 3-hour forecast interval.
type ForecastPoint struct {
	Time            time.Time `json:"time"`
	Temperature     float64   `json:"temperature"`
	FeelsLike       float64   `json:"feelsLike"`
	TempMin         float64   `json:"tempMin"`
	TempMax         float64   `json:"tempMax"`
	Pressure        int       `json:"pressure"`
	Humidity        int       `json:"humidity"`
	Condition       string    `json:"condition"`
	Description     string    `json:"description"`
	Icon            string    `json:"icon"`
	WindSpeed       float64   `json:"windSpeed"`
	RainProbability int       `json:"rainProbability"` // 0-100
}

// ForecastSeries is the decoded multi-point forecast for one location,
// one point per 3-hour interval (8 points per day).
type ForecastSeries struct {
	City    string          `json:"city"`
	Country string          `json:"country"`
	Coords  Coordinates     `json:"coords"`
	Points  []ForecastPoint `json:"points"`
}

// FavoriteCity is a user-saved location. Uniqueness is case-insensitive
// (name, country). The weather snapshot fields are a one-way copy from the
// query cache, stamped by LastWeatherUpdate.
type FavoriteCity struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Country           string       `json:"country"`
	Coords            *Coordinates `json:"coords,omitempty"`
	AddedAt           time.Time    `json:"addedAt"`
	CurrentTemp       *float64     `json:"currentTemp,omitempty"`
	Condition         string       `json:"condition,omitempty"`
	LastWeatherUpdate *time.Time   `json:"lastWeatherUpdate,omitempty"`
}

// SearchHistoryItem is one past search query, newest first in the list.
type SearchHistoryItem struct {
	ID          string    `json:"id"`
	Query       string    `json:"query"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount *int      `json:"resultCount,omitempty"`
}

// Temperature units, themes and languages accepted by AppSettings.
const (
	UnitCelsius    = "celsius"
	UnitFahrenheit = "fahrenheit"

	ThemeLight = "light"
	ThemeDark  = "dark"
	ThemeAuto  = "auto"

	LanguageVietnamese = "vi"
	LanguageEnglish    = "en"
)

// AppSettings is the persisted singleton of user preferences.
type AppSettings struct {
	Theme              string `json:"theme" validate:"oneof=light dark auto"`
	Language           string `json:"language" validate:"oneof=vi en"`
	TemperatureUnit    string `json:"temperatureUnit" validate:"oneof=celsius fahrenheit"`
	ShowNotifications  bool   `json:"showNotifications"`
	SoundEnabled       bool   `json:"soundEnabled"`
	VibrationEnabled   bool   `json:"vibrationEnabled"`
	AutoRefresh        bool   `json:"autoRefresh"`
	RefreshIntervalMin int    `json:"refreshInterval" validate:"min=1,max=1440"`
	ShowSplashScreen   bool   `json:"showSplashScreen"`
	CompactMode        bool   `json:"compactMode"`
}

// DefaultAppSettings returns the compiled-in defaults used on first launch
// and as the merge base when loading persisted settings.
func DefaultAppSettings() AppSettings {
	return AppSettings{
		Theme:              ThemeAuto,
		Language:           LanguageVietnamese,
		TemperatureUnit:    UnitCelsius,
		ShowNotifications:  true,
		SoundEnabled:       true,
		VibrationEnabled:   true,
		AutoRefresh:        true,
		RefreshIntervalMin: 30,
		ShowSplashScreen:   true,
		CompactMode:        false,
	}
}

// MarketPrices holds the headline rice price figures as display strings.
type MarketPrices struct {
	FreshRice    string `json:"freshRice"`
	ExportRice   string `json:"exportRice"`
	DomesticRice string `json:"domesticRice"`
	Trend        string `json:"trend"`
}

// RiceVariety is one (variety, price, province) tuple from the analysis.
type RiceVariety struct {
	Variety  string `json:"variety"`
	Price    string `json:"price"`
	Province string `json:"province"`
}

// Quality values for MarketAnalysis.
const (
	QualityStructured = "structured"
	QualityFallback   = "fallback"
)

// MarketAnalysis is the decoded rice-market summary. Quality records whether
// the upstream payload parsed as structured JSON or fell back to raw text.
type MarketAnalysis struct {
	Summary     string        `json:"summary"`
	Prices      MarketPrices  `json:"priceData"`
	Varieties   []RiceVariety `json:"riceVarieties"`
	Insights    []string      `json:"marketInsights"`
	LastUpdated string        `json:"lastUpdated"`
	Quality     string        `json:"quality"`
}

// DataQuality scores an upstream aggregation payload.
type DataQuality struct {
	Score       float64 `json:"score"`
	Reliability string  `json:"reliability"`
	SourcesUsed int     `json:"sourcesUsed"`
}

// ClimateForecast is the decoded climate-forecasting payload.
type ClimateForecast struct {
	ID             int         `json:"id"`
	Summary        string      `json:"summary"`
	HydrologyInfo  string      `json:"hydrologyInfo"`
	WaterLevelInfo string      `json:"waterLevelInfo"`
	StormsInfo     string      `json:"stormsAndTropicalDepressionsInfo"`
	LastUpdated    string      `json:"lastUpdated"`
	DataSources    []string    `json:"dataSources"`
	Quality        DataQuality `json:"dataQuality"`
}

// VideoChannel identifies the channel a video belongs to.
type VideoChannel struct {
	Name string `json:"name"`
}

// Video is one embeddable video descriptor. The wire shape is a bare JSON
// array of these.
type Video struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	URL         string       `json:"url"`
	Thumbnail   string       `json:"thumbnail"`
	Channel     VideoChannel `json:"channel"`
	Description string       `json:"description"`
	Duration    string       `json:"duration"`
	UploadTime  string       `json:"uploadTime"`
	Views       string       `json:"views"`
	IsLive      bool         `json:"isLive,omitempty"`
}
