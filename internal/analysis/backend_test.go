package analysis

import (
	"context"
	"errors"
	"testing"

	"github.com/tuanvm/weather-companion/internal/models"
)

type fakeRawSource struct {
	body string
	err  error
}

func (f *fakeRawSource) RawAnalysis(ctx context.Context) (string, error) {
	return f.body, f.err
}

func TestBackendAnalyzer_Structured(t *testing.T) {
	src := &fakeRawSource{body: `{"summary": "Giá ổn định.", "priceData": {"freshRice": "8.000 đồng/kg"}}`}
	a := NewBackendAnalyzer(src, nil)

	got, err := a.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	if got.Quality != models.QualityStructured {
		t.Errorf("Quality = %q, want structured", got.Quality)
	}
	if got.Summary != "Giá ổn định." {
		t.Errorf("Summary = %q", got.Summary)
	}
}

func TestBackendAnalyzer_UnparseableBodyDegrades(t *testing.T) {
	raw := "Hôm nay thị trường lúa gạo biến động nhẹ."
	a := NewBackendAnalyzer(&fakeRawSource{body: raw}, nil)

	got, err := a.Analyze(context.Background())
	if err != nil {
		t.Fatalf("Analyze() error = %v, want nil (decode must never fail)", err)
	}
	if got.Quality != models.QualityFallback {
		t.Errorf("Quality = %q, want fallback", got.Quality)
	}
	if got.Summary != raw {
		t.Errorf("Summary = %q, want raw text", got.Summary)
	}
}

func TestBackendAnalyzer_SourceErrorPropagates(t *testing.T) {
	srcErr := errors.New("upstream down")
	a := NewBackendAnalyzer(&fakeRawSource{err: srcErr}, nil)

	_, err := a.Analyze(context.Background())
	if !errors.Is(err, srcErr) {
		t.Errorf("Analyze() error = %v, want the source error", err)
	}
}
