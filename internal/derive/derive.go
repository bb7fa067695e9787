// Package derive holds the pure helpers computed over fetched weather data:
// temperature unit conversion, rain-probability bucketing, and daily forecast
// slot selection.
package derive

import (
	"fmt"
	"math"
	"time"

	"github.com/tuanvm/weather-companion/internal/models"
)

// CelsiusToFahrenheit converts a temperature using F = C*9/5 + 32.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// FahrenheitToCelsius is the inverse of CelsiusToFahrenheit.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// ConvertTemperature returns the Celsius temperature in the requested unit.
func ConvertTemperature(celsius float64, unit string) float64 {
	if unit == models.UnitFahrenheit {
		return CelsiusToFahrenheit(celsius)
	}
	return celsius
}

// TemperatureSymbol returns the display symbol for a unit.
func TemperatureSymbol(unit string) string {
	if unit == models.UnitFahrenheit {
		return "°F"
	}
	return "°C"
}

// FormatTemperature renders a Celsius temperature in the requested unit,
// rounded to the nearest integer for display. The Celsius reading is rounded
// before conversion so both units describe the same displayed reading
// (28.4 shows as 28°C and 82°F, not 83°F).
func FormatTemperature(celsius float64, unit string) string {
	rounded := math.Round(celsius)
	return fmt.Sprintf("%d%s", int(math.Round(ConvertTemperature(rounded, unit))), TemperatureSymbol(unit))
}

// RainInfo describes one rain-probability tier with its fixed display colors.
type RainInfo struct {
	Label      string `json:"label"`
	Icon       string `json:"icon"`
	Color      string `json:"color"`
	Background string `json:"background"`
	Border     string `json:"border"`
}

// RainLevel buckets a rain probability (0-100) into four tiers:
// 0 -> no rain, 1-30 -> light, 31-60 -> moderate, 61-100 -> heavy.
func RainLevel(chance int) RainInfo {
	switch {
	case chance <= 0:
		return RainInfo{Label: "Không mưa", Icon: "☀️", Color: "#95a5a6", Background: "#ecf0f1", Border: "#bdc3c7"}
	case chance <= 30:
		return RainInfo{Label: "Mưa nhẹ", Icon: "🌦️", Color: "#3498db", Background: "#ebf3fd", Border: "#3498db"}
	case chance <= 60:
		return RainInfo{Label: "Mưa vừa", Icon: "🌧️", Color: "#f39c12", Background: "#fef9e7", Border: "#f39c12"}
	default:
		return RainInfo{Label: "Mưa to", Icon: "⛈️", Color: "#e74c3c", Background: "#fdedec", Border: "#e74c3c"}
	}
}

// maxForecastDays caps DailyForecast output; the provider returns 5 days of
// 3-hour points.
const maxForecastDays = 5

// DailyForecast picks one representative point per calendar day in loc time,
// preferring the point at local hour 12 and falling back to the first point
// of the day (the provider's 3-hour grid makes that every 8th entry when the
// series starts at midnight). Returns at most five days.
func DailyForecast(points []models.ForecastPoint, loc *time.Location) []models.ForecastPoint {
	if loc == nil {
		loc = time.Local
	}

	var days []string
	byDay := make(map[string]models.ForecastPoint)
	for _, p := range points {
		local := p.Time.In(loc)
		day := local.Format("2006-01-02")
		existing, seen := byDay[day]
		if !seen {
			days = append(days, day)
			byDay[day] = p
			continue
		}
		// Hour-12 point wins over whatever was picked first.
		if local.Hour() == 12 && existing.Time.In(loc).Hour() != 12 {
			byDay[day] = p
		}
	}

	if len(days) > maxForecastDays {
		days = days[:maxForecastDays]
	}
	result := make([]models.ForecastPoint, 0, len(days))
	for _, day := range days {
		result = append(result, byDay[day])
	}
	return result
}
