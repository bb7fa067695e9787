package derive

import (
	"math"
	"testing"
	"time"

	"github.com/tuanvm/weather-companion/internal/models"
)

func TestCelsiusFahrenheitRoundTrip(t *testing.T) {
	for _, c := range []float64{-40, -10.5, 0, 12.34, 28.4, 37, 100} {
		got := FahrenheitToCelsius(CelsiusToFahrenheit(c))
		if math.Abs(got-c) > 1e-9 {
			t.Errorf("round trip %v -> %v, want identity", c, got)
		}
	}
	if got := CelsiusToFahrenheit(-40); got != -40 {
		t.Errorf("CelsiusToFahrenheit(-40) = %v, want -40", got)
	}
	if got := CelsiusToFahrenheit(0); got != 32 {
		t.Errorf("CelsiusToFahrenheit(0) = %v, want 32", got)
	}
}

func TestFormatTemperature(t *testing.T) {
	tests := []struct {
		celsius float64
		unit    string
		want    string
	}{
		{28.4, models.UnitCelsius, "28°C"},
		{28.4, models.UnitFahrenheit, "82°F"},
		{0, models.UnitCelsius, "0°C"},
		{-5.6, models.UnitCelsius, "-6°C"},
		{36.5, models.UnitFahrenheit, "99°F"},
	}
	for _, tt := range tests {
		if got := FormatTemperature(tt.celsius, tt.unit); got != tt.want {
			t.Errorf("FormatTemperature(%v, %q) = %q, want %q", tt.celsius, tt.unit, got, tt.want)
		}
	}
}

func TestRainLevel_Boundaries(t *testing.T) {
	tests := []struct {
		chance    int
		wantLabel string
		wantColor string
	}{
		{0, "Không mưa", "#95a5a6"},
		{1, "Mưa nhẹ", "#3498db"},
		{30, "Mưa nhẹ", "#3498db"},
		{31, "Mưa vừa", "#f39c12"},
		{60, "Mưa vừa", "#f39c12"},
		{61, "Mưa to", "#e74c3c"},
		{100, "Mưa to", "#e74c3c"},
	}
	for _, tt := range tests {
		got := RainLevel(tt.chance)
		if got.Label != tt.wantLabel {
			t.Errorf("RainLevel(%d).Label = %q, want %q", tt.chance, got.Label, tt.wantLabel)
		}
		if got.Color != tt.wantColor {
			t.Errorf("RainLevel(%d).Color = %q, want %q", tt.chance, got.Color, tt.wantColor)
		}
	}
}

func TestRainLevel_ZeroHasDistinctPalette(t *testing.T) {
	got := RainLevel(0)
	if got.Background != "#ecf0f1" || got.Border != "#bdc3c7" {
		t.Errorf("RainLevel(0) palette = %q/%q, want #ecf0f1/#bdc3c7", got.Background, got.Border)
	}
}

// points returns a 3-hour grid of n points starting at start, temperature
// encoding the index for identification.
func points(start time.Time, n int) []models.ForecastPoint {
	out := make([]models.ForecastPoint, n)
	for i := range out {
		out[i] = models.ForecastPoint{
			Time:        start.Add(time.Duration(i) * 3 * time.Hour),
			Temperature: float64(i),
		}
	}
	return out
}

func TestDailyForecast_FiveDaysPreferringNoon(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	// 40 points = 5 full days on the provider's 3-hour grid.
	daily := DailyForecast(points(start, 40), time.UTC)

	if len(daily) != 5 {
		t.Fatalf("DailyForecast() len = %d, want 5", len(daily))
	}
	for i, p := range daily {
		if got := p.Time.In(time.UTC).Hour(); got != 12 {
			t.Errorf("day %d hour = %d, want 12", i, got)
		}
		wantDay := start.AddDate(0, 0, i).Day()
		if got := p.Time.In(time.UTC).Day(); got != wantDay {
			t.Errorf("day %d = %d, want %d", i, got, wantDay)
		}
	}
}

func TestDailyForecast_FallsBackWhenNoNoonPoint(t *testing.T) {
	// Series starting mid-afternoon: the first day has no hour-12 point.
	start := time.Date(2025, 6, 1, 15, 0, 0, 0, time.UTC)
	daily := DailyForecast(points(start, 8), time.UTC)

	if len(daily) != 2 {
		t.Fatalf("DailyForecast() len = %d, want 2", len(daily))
	}
	if got := daily[0].Time.Hour(); got != 15 {
		t.Errorf("first day hour = %d, want 15 (first point of the day)", got)
	}
	if got := daily[1].Time.Hour(); got != 12 {
		t.Errorf("second day hour = %d, want 12", got)
	}
}

func TestDailyForecast_CapsAtFiveDays(t *testing.T) {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	daily := DailyForecast(points(start, 56), time.UTC) // 7 days of points
	if len(daily) != 5 {
		t.Errorf("DailyForecast() len = %d, want 5", len(daily))
	}
}

func TestDailyForecast_Empty(t *testing.T) {
	if got := DailyForecast(nil, time.UTC); len(got) != 0 {
		t.Errorf("DailyForecast(nil) len = %d, want 0", len(got))
	}
}
