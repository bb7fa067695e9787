// Package analysis produces the rice-market summary: building the analyst
// prompt, parsing model output into a structured result, and calling the
// Gemini API when the service runs in direct-analysis mode.
package analysis

import (
	"encoding/json"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tuanvm/weather-companion/internal/models"
)

// Placeholder strings used when the structured payload is missing fields or
// fails to parse at all.
const (
	placeholderUpdating = "Đang cập nhật"
	placeholderPending  = "Chưa cập nhật"
	trendStable         = "ổn định"
	fallbackSummaryMax  = 500
)

// wireResult mirrors the JSON shape the model is asked to produce.
type wireResult struct {
	Summary   string `json:"summary"`
	PriceData struct {
		FreshRice    string `json:"freshRice"`
		ExportRice   string `json:"exportRice"`
		DomesticRice string `json:"domesticRice"`
		Trend        string `json:"trend"`
	} `json:"priceData"`
	RiceVarieties  []models.RiceVariety `json:"riceVarieties"`
	MarketInsights []string             `json:"marketInsights"`
	LastUpdated    string               `json:"lastUpdated"`
}

// ParseResult decodes an AI text response into a MarketAnalysis. The upstream
// response is not schema-guaranteed, so this decoder never fails: when the
// text does not parse as the expected JSON it returns a best-effort partial
// result using a prefix of the raw text as the summary and placeholders for
// every structured field, with Quality set to QualityFallback.
func ParseResult(text string, now time.Time) models.MarketAnalysis {
	cleaned := stripCodeFences(text)

	var wire wireResult
	if err := json.Unmarshal([]byte(cleaned), &wire); err != nil {
		return fallbackResult(text, now)
	}

	result := models.MarketAnalysis{
		Summary: wire.Summary,
		Prices: models.MarketPrices{
			FreshRice:    wire.PriceData.FreshRice,
			ExportRice:   wire.PriceData.ExportRice,
			DomesticRice: wire.PriceData.DomesticRice,
			Trend:        wire.PriceData.Trend,
		},
		Varieties:   wire.RiceVarieties,
		Insights:    wire.MarketInsights,
		LastUpdated: wire.LastUpdated,
		Quality:     models.QualityStructured,
	}

	if result.Summary == "" {
		result.Summary = "Không có thông tin tóm tắt"
	}
	if result.Prices.FreshRice == "" {
		result.Prices.FreshRice = placeholderPending
	}
	if result.Prices.ExportRice == "" {
		result.Prices.ExportRice = placeholderPending
	}
	if result.Prices.DomesticRice == "" {
		result.Prices.DomesticRice = placeholderPending
	}
	if result.Prices.Trend == "" {
		result.Prices.Trend = trendStable
	}
	if len(result.Varieties) == 0 {
		result.Varieties = []models.RiceVariety{placeholderVariety()}
	}
	if len(result.Insights) == 0 {
		result.Insights = []string{"Không có thông tin chi tiết"}
	}
	if result.LastUpdated == "" {
		result.LastUpdated = formatUpdated(now)
	}
	return result
}

func fallbackResult(text string, now time.Time) models.MarketAnalysis {
	summary := strings.TrimSpace(text)
	if len(summary) > fallbackSummaryMax {
		// The cut index is in bytes; back up so a multi-byte rune is never
		// split mid-sequence.
		cut := fallbackSummaryMax
		for cut > 0 && !utf8.RuneStart(summary[cut]) {
			cut--
		}
		summary = summary[:cut] + "..."
	}
	return models.MarketAnalysis{
		Summary: summary,
		Prices: models.MarketPrices{
			FreshRice:    placeholderUpdating,
			ExportRice:   placeholderUpdating,
			DomesticRice: placeholderUpdating,
			Trend:        trendStable,
		},
		Varieties:   []models.RiceVariety{placeholderVariety()},
		Insights:    []string{"Dữ liệu đang được xử lý"},
		LastUpdated: formatUpdated(now),
		Quality:     models.QualityFallback,
	}
}

func placeholderVariety() models.RiceVariety {
	return models.RiceVariety{
		Variety:  placeholderUpdating,
		Price:    placeholderUpdating,
		Province: placeholderUpdating,
	}
}

func formatUpdated(now time.Time) string {
	return now.Format("15:04 02/01/2006")
}

// stripCodeFences removes a surrounding markdown code block, which models
// routinely add despite being told not to.
func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "```json") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimSuffix(text, "```")
	} else if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```")
		text = strings.TrimSuffix(text, "```")
	}
	return strings.TrimSpace(text)
}

// SpeechText renders an analysis as the script read aloud by the client's
// text-to-speech feature.
func SpeechText(a models.MarketAnalysis) string {
	var b strings.Builder
	b.WriteString("Báo cáo thị trường lúa gạo hôm nay.\n\n")
	b.WriteString(a.Summary)
	b.WriteString("\n\nThông tin giá cụ thể:\n")
	b.WriteString("Lúa tươi: " + a.Prices.FreshRice + "\n")
	b.WriteString("Gạo xuất khẩu: " + a.Prices.ExportRice + "\n")
	b.WriteString("Gạo trong nước: " + a.Prices.DomesticRice + "\n")
	b.WriteString("Xu hướng thị trường: " + a.Prices.Trend + "\n\n")
	b.WriteString("Các thông tin quan trọng:\n")
	b.WriteString(strings.Join(a.Insights, ". "))
	b.WriteString("\n\nCập nhật lúc: " + a.LastUpdated)
	return b.String()
}
