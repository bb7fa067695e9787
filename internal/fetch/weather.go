// Package fetch holds the domain fetchers: typed clients that turn a domain
// request into exactly one HTTP call and decode the response. Retries belong
// to the cache layer, not to fetchers.
package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tuanvm/weather-companion/internal/models"
	"github.com/tuanvm/weather-companion/internal/observability"
)

// DefaultTimeout is the fixed per-call network timeout.
const DefaultTimeout = 10 * time.Second

// iconURLFormat maps a provider icon code to its image URL.
const iconURLFormat = "https://openweathermap.org/img/wn/%s@2x.png"

// WeatherClient fetches current conditions and forecasts from the weather
// provider.
type WeatherClient interface {
	CurrentByCity(ctx context.Context, city string) (models.WeatherSnapshot, error)
	CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error)
	ForecastByCity(ctx context.Context, city string) (models.ForecastSeries, error)
	ForecastByCoords(ctx context.Context, lat, lon float64) (models.ForecastSeries, error)
}

// OpenWeatherClient implements WeatherClient against the OpenWeatherMap API.
type OpenWeatherClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewOpenWeatherClient validates the credential and returns a client. A
// missing key fails fast instead of producing doomed requests later.
func NewOpenWeatherClient(apiKey, baseURL string, timeout time.Duration) (*OpenWeatherClient, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: weather API key is required", ErrConfiguration)
	}
	if baseURL == "" {
		baseURL = "https://api.openweathermap.org/data/2.5"
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &OpenWeatherClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
	}, nil
}

// IconURL returns the image URL for a provider icon code.
func IconURL(icon string) string {
	if icon == "" {
		return ""
	}
	return fmt.Sprintf(iconURLFormat, icon)
}

type currentResponse struct {
	Coord struct {
		Lon float64 `json:"lon"`
		Lat float64 `json:"lat"`
	} `json:"coord"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
		Icon        string `json:"icon"`
	} `json:"weather"`
	Main struct {
		Temp      float64 `json:"temp"`
		FeelsLike float64 `json:"feels_like"`
		TempMin   float64 `json:"temp_min"`
		TempMax   float64 `json:"temp_max"`
		Pressure  int     `json:"pressure"`
		Humidity  int     `json:"humidity"`
	} `json:"main"`
	Visibility int `json:"visibility"`
	Wind       struct {
		Speed float64 `json:"speed"`
		Deg   int     `json:"deg"`
	} `json:"wind"`
	Dt  int64 `json:"dt"`
	Sys struct {
		Country string `json:"country"`
		Sunrise int64  `json:"sunrise"`
		Sunset  int64  `json:"sunset"`
	} `json:"sys"`
	Name string `json:"name"`
}

type forecastResponse struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp      float64 `json:"temp"`
			FeelsLike float64 `json:"feels_like"`
			TempMin   float64 `json:"temp_min"`
			TempMax   float64 `json:"temp_max"`
			Pressure  int     `json:"pressure"`
			Humidity  int     `json:"humidity"`
		} `json:"main"`
		Weather []struct {
			Main        string `json:"main"`
			Description string `json:"description"`
			Icon        string `json:"icon"`
		} `json:"weather"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Pop float64 `json:"pop"` // 0..1
	} `json:"list"`
	City struct {
		Name  string `json:"name"`
		Coord struct {
			Lat float64 `json:"lat"`
			Lon float64 `json:"lon"`
		} `json:"coord"`
		Country string `json:"country"`
	} `json:"city"`
}

// CurrentByCity fetches current conditions for a city name.
func (c *OpenWeatherClient) CurrentByCity(ctx context.Context, city string) (models.WeatherSnapshot, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: city name is empty", ErrDecode)
	}
	params := url.Values{}
	params.Set("q", city)
	return c.current(ctx, params)
}

// CurrentByCoords fetches current conditions for a coordinate pair.
func (c *OpenWeatherClient) CurrentByCoords(ctx context.Context, lat, lon float64) (models.WeatherSnapshot, error) {
	params, err := coordParams(lat, lon)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}
	return c.current(ctx, params)
}

// ForecastByCity fetches the 3-hour forecast series for a city name.
func (c *OpenWeatherClient) ForecastByCity(ctx context.Context, city string) (models.ForecastSeries, error) {
	city = strings.TrimSpace(city)
	if city == "" {
		return models.ForecastSeries{}, fmt.Errorf("%w: city name is empty", ErrDecode)
	}
	params := url.Values{}
	params.Set("q", city)
	return c.forecast(ctx, params)
}

// ForecastByCoords fetches the 3-hour forecast series for a coordinate pair.
func (c *OpenWeatherClient) ForecastByCoords(ctx context.Context, lat, lon float64) (models.ForecastSeries, error) {
	params, err := coordParams(lat, lon)
	if err != nil {
		return models.ForecastSeries{}, err
	}
	return c.forecast(ctx, params)
}

func coordParams(lat, lon float64) (url.Values, error) {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return nil, fmt.Errorf("%w: coordinates must be finite", ErrDecode)
	}
	params := url.Values{}
	params.Set("lat", strconv.FormatFloat(lat, 'f', -1, 64))
	params.Set("lon", strconv.FormatFloat(lon, 'f', -1, 64))
	return params, nil
}

func (c *OpenWeatherClient) current(ctx context.Context, params url.Values) (models.WeatherSnapshot, error) {
	body, err := c.get(ctx, "/weather", params)
	if err != nil {
		return models.WeatherSnapshot{}, err
	}

	var resp currentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: parse current conditions: %v", ErrDecode, err)
	}
	if len(resp.Weather) == 0 || resp.Name == "" {
		return models.WeatherSnapshot{}, fmt.Errorf("%w: current conditions missing required fields", ErrDecode)
	}

	return models.WeatherSnapshot{
		Location:    resp.Name,
		Country:     resp.Sys.Country,
		Coords:      models.Coordinates{Lat: resp.Coord.Lat, Lon: resp.Coord.Lon},
		Temperature: resp.Main.Temp,
		FeelsLike:   resp.Main.FeelsLike,
		TempMin:     resp.Main.TempMin,
		TempMax:     resp.Main.TempMax,
		Pressure:    resp.Main.Pressure,
		Humidity:    resp.Main.Humidity,
		WindSpeed:   resp.Wind.Speed,
		WindDeg:     resp.Wind.Deg,
		Condition:   resp.Weather[0].Main,
		Description: resp.Weather[0].Description,
		Icon:        resp.Weather[0].Icon,
		IconURL:     IconURL(resp.Weather[0].Icon),
		Visibility:  resp.Visibility,
		Sunrise:     time.Unix(resp.Sys.Sunrise, 0).UTC(),
		Sunset:      time.Unix(resp.Sys.Sunset, 0).UTC(),
		ObservedAt:  time.Unix(resp.Dt, 0).UTC(),
	}, nil
}

func (c *OpenWeatherClient) forecast(ctx context.Context, params url.Values) (models.ForecastSeries, error) {
	body, err := c.get(ctx, "/forecast", params)
	if err != nil {
		return models.ForecastSeries{}, err
	}

	var resp forecastResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return models.ForecastSeries{}, fmt.Errorf("%w: parse forecast: %v", ErrDecode, err)
	}
	if len(resp.List) == 0 {
		return models.ForecastSeries{}, fmt.Errorf("%w: forecast has no points", ErrDecode)
	}

	series := models.ForecastSeries{
		City:    resp.City.Name,
		Country: resp.City.Country,
		Coords:  models.Coordinates{Lat: resp.City.Coord.Lat, Lon: resp.City.Coord.Lon},
		Points:  make([]models.ForecastPoint, 0, len(resp.List)),
	}
	for _, item := range resp.List {
		p := models.ForecastPoint{
			Time:            time.Unix(item.Dt, 0).UTC(),
			Temperature:     item.Main.Temp,
			FeelsLike:       item.Main.FeelsLike,
			TempMin:         item.Main.TempMin,
			TempMax:         item.Main.TempMax,
			Pressure:        item.Main.Pressure,
			Humidity:        item.Main.Humidity,
			WindSpeed:       item.Wind.Speed,
			RainProbability: int(math.Round(item.Pop * 100)),
		}
		if len(item.Weather) > 0 {
			p.Condition = item.Weather[0].Main
			p.Description = item.Weather[0].Description
			p.Icon = item.Weather[0].Icon
		}
		series.Points = append(series.Points, p)
	}
	return series, nil
}

// get performs one GET against the provider and returns the response body.
func (c *OpenWeatherClient) get(ctx context.Context, endpoint string, params url.Values) ([]byte, error) {
	start := time.Now()
	params.Set("appid", c.apiKey)
	params.Set("units", "metric")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		observability.FetchCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	observability.FetchDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observability.FetchCallsTotal.WithLabelValues(endpoint, "error").Inc()
		return nil, &StatusError{Code: resp.StatusCode, Endpoint: endpoint}
	}
	observability.FetchCallsTotal.WithLabelValues(endpoint, "success").Inc()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	return body, nil
}
