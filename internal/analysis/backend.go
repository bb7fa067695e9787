package analysis

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/tuanvm/weather-companion/internal/models"
)

// RawSource supplies unparsed rice-market analysis text. Implemented by the
// AI backend client, which relays whatever the upstream produced.
type RawSource interface {
	RawAnalysis(ctx context.Context) (string, error)
}

// BackendAnalyzer turns a raw text source into structured market analyses.
type BackendAnalyzer struct {
	source RawSource
	logger *zap.Logger
	now    func() time.Time
}

// NewBackendAnalyzer wraps source. The logger may be nil.
func NewBackendAnalyzer(source RawSource, logger *zap.Logger) *BackendAnalyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BackendAnalyzer{source: source, logger: logger, now: time.Now}
}

// Analyze fetches the raw analysis text and decodes it. Transport failures
// are returned as-is; an unparseable body degrades to the fallback result.
func (a *BackendAnalyzer) Analyze(ctx context.Context) (models.MarketAnalysis, error) {
	text, err := a.source.RawAnalysis(ctx)
	if err != nil {
		return models.MarketAnalysis{}, err
	}
	result := ParseResult(text, a.now())
	a.logger.Debug("rice market analysis decoded", zap.String("quality", result.Quality))
	return result, nil
}
