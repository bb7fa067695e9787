package analysis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/tuanvm/weather-companion/internal/fetch"
	"github.com/tuanvm/weather-companion/internal/models"
)

// defaultModel is used when no model name is configured.
const defaultModel = "gemini-2.0-flash-001"

// GeminiAnalyzer produces MarketAnalysis results by asking the Gemini API to
// read the configured price sources directly.
type GeminiAnalyzer struct {
	client  *genai.Client
	model   string
	sources []string
	logger  *zap.Logger
	now     func() time.Time
}

// NewGeminiAnalyzer builds an analyzer with the given API key. The key is
// required; a missing key is a configuration error, not a retryable failure.
func NewGeminiAnalyzer(ctx context.Context, apiKey, model string, sources []string, logger *zap.Logger) (*GeminiAnalyzer, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, fmt.Errorf("%w: Gemini API key is required for direct analysis", fetch.ErrConfiguration)
	}
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiAnalyzer{
		client:  client,
		model:   model,
		sources: sources,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// Analyze runs one generation call and decodes the response. Transport-level
// failures are returned; a malformed text response is not an error, it
// degrades to the fallback result.
func (g *GeminiAnalyzer) Analyze(ctx context.Context) (models.MarketAnalysis, error) {
	start := time.Now()
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(BuildPrompt(g.sources)), nil)
	if err != nil {
		return models.MarketAnalysis{}, fmt.Errorf("%w: generate content: %v", fetch.ErrNetwork, err)
	}

	text := responseText(resp)
	if text == "" {
		return models.MarketAnalysis{}, fmt.Errorf("%w: empty response from model %s", fetch.ErrDecode, g.model)
	}

	result := ParseResult(text, g.now())
	g.logger.Debug("rice market analysis generated",
		zap.String("model", g.model),
		zap.String("quality", result.Quality),
		zap.Duration("duration", time.Since(start)))
	return result, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.Text != "" {
			sb.WriteString(part.Text)
		}
	}
	return sb.String()
}
