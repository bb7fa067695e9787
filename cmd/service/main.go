package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tuanvm/weather-companion/internal/analysis"
	"github.com/tuanvm/weather-companion/internal/config"
	"github.com/tuanvm/weather-companion/internal/fetch"
	"github.com/tuanvm/weather-companion/internal/health"
	httphandler "github.com/tuanvm/weather-companion/internal/http"
	"github.com/tuanvm/weather-companion/internal/observability"
	"github.com/tuanvm/weather-companion/internal/querycache"
	"github.com/tuanvm/weather-companion/internal/service"
	"github.com/tuanvm/weather-companion/internal/store"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("config", zap.Error(err))
	}

	weatherClient, err := fetch.NewOpenWeatherClient(cfg.WeatherAPIKey, cfg.WeatherBaseURL, cfg.FetchTimeout)
	if err != nil {
		logger.Fatal("weather client", zap.Error(err))
	}

	backendClient := fetch.NewBackendClient(cfg.BackendBaseURL, cfg.FetchTimeout, logger)

	var analyzer service.MarketAnalyzer
	switch cfg.AnalysisMode {
	case config.AnalysisModeGemini:
		gemini, err := analysis.NewGeminiAnalyzer(context.Background(), cfg.GeminiAPIKey, cfg.GeminiModel, analysis.DefaultPriceSources, logger)
		if err != nil {
			logger.Fatal("gemini analyzer", zap.Error(err))
		}
		analyzer = gemini
		logger.Info("analysis mode: gemini")
	default:
		analyzer = analysis.NewBackendAnalyzer(backendClient, logger)
		logger.Info("analysis mode: backend", zap.String("url", cfg.BackendBaseURL))
	}

	kv, err := store.NewFileKV(cfg.DataDir)
	if err != nil {
		logger.Fatal("store dir", zap.Error(err))
	}
	st := store.New(kv, logger)
	st.Load()

	cache := querycache.New(logger)
	svc := service.New(cache, weatherClient, backendClient, analyzer, st, logger)

	healthConfig := &httphandler.HealthConfig{
		DegradedWindow:   cfg.DegradedWindow,
		DegradedErrorPct: cfg.DegradedErrorPct,
		OverloadWindow:   cfg.OverloadWindow,
		OverloadDenials:  cfg.OverloadDenials,
		StartTime:        time.Now(),
	}

	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst)
	}
	handler := httphandler.NewHandler(svc, healthConfig, logger)
	router := httphandler.NewRouter(handler, logger, httphandler.RouterConfig{
		Limiter:        limiter,
		RequestTimeout: cfg.RequestTimeout,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
	}

	go func() {
		logger.Info("server starting", zap.String("addr", ":"+cfg.ServerPort))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	<-ctx.Done()
	stop()

	logger.Info("graceful shutdown triggered")
	health.SetShuttingDown(true)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	// Sync can fail on stderr in some environments; nothing to do about it here.
	_ = observability.FlushTelemetry(shutdownCtx, logger)
}
