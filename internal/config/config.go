package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Analysis modes: the rice-market analysis either proxies the AI backend or
// calls Gemini directly.
const (
	AnalysisModeBackend = "backend"
	AnalysisModeGemini  = "gemini"
)

// Config holds service configuration loaded from YAML and env.
type Config struct {
	ServerPort string

	WeatherAPIKey  string
	WeatherBaseURL string
	FetchTimeout   time.Duration

	BackendBaseURL string
	AnalysisMode   string // "backend" or "gemini"
	GeminiAPIKey   string
	GeminiModel    string

	RequestTimeout time.Duration
	RateLimitRPS   int
	RateLimitBurst int

	DataDir string

	ShutdownTimeout time.Duration

	DegradedWindow   time.Duration
	DegradedErrorPct int
	OverloadWindow   time.Duration
	OverloadDenials  int
}

type fileConfig struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`

	WeatherAPI struct {
		URL     string `yaml:"url"`
		Timeout string `yaml:"timeout"`
	} `yaml:"weather_api"`

	Backend struct {
		URL string `yaml:"url"`
	} `yaml:"backend"`

	Analysis struct {
		Mode  string `yaml:"mode"`
		Model string `yaml:"model"`
	} `yaml:"analysis"`

	Request struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"request"`

	Reliability struct {
		RateLimitRPS   int `yaml:"rate_limit_rps"`
		RateLimitBurst int `yaml:"rate_limit_burst"`
	} `yaml:"reliability"`

	Store struct {
		DataDir string `yaml:"data_dir"`
	} `yaml:"store"`

	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`

	Health struct {
		DegradedWindow   string `yaml:"degraded_window"`
		DegradedErrorPct int    `yaml:"degraded_error_pct"`
		OverloadWindow   string `yaml:"overload_window"`
		OverloadDenials  int    `yaml:"overload_denials"`
	} `yaml:"health"`
}

type secretsFile struct {
	WeatherAPIKey string `yaml:"weather_api_key"`
	GeminiAPIKey  string `yaml:"gemini_api_key"`
}

// Load reads configuration from config/{ENV_NAME}.yaml (default dev), a .env
// file when present, and the environment. The OpenWeather API key is
// required: WEATHER_API_KEY env or config/secrets.yaml. Call from project
// root.
func Load() (*Config, error) {
	// .env is a local-dev convenience; absence is normal.
	_ = godotenv.Load()

	env := os.Getenv("ENV_NAME")
	if env == "" {
		env = "dev"
	}

	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("config: get working directory: %w", err)
	}

	var fc fileConfig
	configPath := filepath.Join(cwd, "config", env+".yaml")
	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &fc); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	case os.IsNotExist(err):
		// Defaults plus env cover everything; the file is optional.
	default:
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}

	cfg.ServerPort = firstNonEmpty(os.Getenv("PORT"), fc.Server.Port, "8080")

	cfg.WeatherAPIKey = os.Getenv("WEATHER_API_KEY")
	cfg.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	if cfg.WeatherAPIKey == "" || cfg.GeminiAPIKey == "" {
		sec, err := loadSecrets(filepath.Join(cwd, "config", "secrets.yaml"))
		if err != nil {
			return nil, err
		}
		if cfg.WeatherAPIKey == "" {
			cfg.WeatherAPIKey = sec.WeatherAPIKey
		}
		if cfg.GeminiAPIKey == "" {
			cfg.GeminiAPIKey = sec.GeminiAPIKey
		}
	}
	if cfg.WeatherAPIKey == "" {
		return nil, fmt.Errorf("WEATHER_API_KEY required (set env or config/secrets.yaml weather_api_key)")
	}

	cfg.WeatherBaseURL = firstNonEmpty(os.Getenv("WEATHER_API_URL"), fc.WeatherAPI.URL, "https://api.openweathermap.org/data/2.5")
	cfg.FetchTimeout = parseDuration(fc.WeatherAPI.Timeout, 10*time.Second)

	cfg.BackendBaseURL = firstNonEmpty(os.Getenv("BACKEND_URL"), fc.Backend.URL, "http://localhost:3003")
	cfg.AnalysisMode = strings.TrimSpace(strings.ToLower(firstNonEmpty(os.Getenv("ANALYSIS_MODE"), fc.Analysis.Mode, AnalysisModeBackend)))
	cfg.GeminiModel = strings.TrimSpace(fc.Analysis.Model)

	cfg.RequestTimeout = parseDuration(fc.Request.Timeout, 15*time.Second)

	cfg.RateLimitRPS = fc.Reliability.RateLimitRPS
	if cfg.RateLimitRPS <= 0 {
		cfg.RateLimitRPS = 100
	}
	cfg.RateLimitBurst = fc.Reliability.RateLimitBurst
	if cfg.RateLimitBurst <= 0 {
		cfg.RateLimitBurst = 250
	}

	cfg.DataDir = firstNonEmpty(os.Getenv("DATA_DIR"), fc.Store.DataDir, "data")

	cfg.ShutdownTimeout = parseDuration(fc.Shutdown.Timeout, 30*time.Second)

	cfg.DegradedWindow = parseDuration(fc.Health.DegradedWindow, 60*time.Second)
	cfg.DegradedErrorPct = fc.Health.DegradedErrorPct
	if cfg.DegradedErrorPct <= 0 {
		cfg.DegradedErrorPct = 50
	}
	cfg.OverloadWindow = parseDuration(fc.Health.OverloadWindow, 60*time.Second)
	cfg.OverloadDenials = fc.Health.OverloadDenials
	if cfg.OverloadDenials <= 0 {
		cfg.OverloadDenials = 100
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadSecrets(path string) (secretsFile, error) {
	var sec secretsFile
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sec, nil
		}
		return sec, fmt.Errorf("read secrets file: %w", err)
	}
	if err := yaml.Unmarshal(data, &sec); err != nil {
		return sec, fmt.Errorf("parse secrets file: %w", err)
	}
	return sec, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// parseDuration parses a duration string and returns defaultVal if parsing
// fails or the result is <= 0.
func parseDuration(s string, defaultVal time.Duration) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return defaultVal
	}
	return d
}

// validate performs post-load validation. The request timeout must exceed the
// per-fetch timeout so a handler never cuts off a fetch it is waiting on;
// auto-adjusts RequestTimeout upward when needed.
func validate(cfg *Config) error {
	if cfg.FetchTimeout <= 0 {
		return fmt.Errorf("weather_api.timeout must be positive")
	}
	if cfg.RequestTimeout <= cfg.FetchTimeout {
		cfg.RequestTimeout = cfg.FetchTimeout + 5*time.Second
	}
	switch cfg.AnalysisMode {
	case AnalysisModeBackend, AnalysisModeGemini:
	default:
		return fmt.Errorf("analysis.mode must be backend or gemini, got %q", cfg.AnalysisMode)
	}
	if cfg.AnalysisMode == AnalysisModeGemini && cfg.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY required when analysis.mode is gemini")
	}
	return nil
}
