// Package config loads application settings from config/app.yaml, a .env file
// and environment overrides, in that order of increasing precedence.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"deal_valuation/pkg/core/assumption"
	"deal_valuation/pkg/core/logging"
	"deal_valuation/pkg/core/offer"
	"deal_valuation/pkg/core/valuation"
)

type Config struct {
	Server     ServerConfig    `yaml:"server"`
	Database   DatabaseConfig  `yaml:"database"`
	Logging    logging.Config  `yaml:"logging"`
	LLM        LLMConfig       `yaml:"llm"`
	Valuation  ValuationConfig `yaml:"valuation"`
	Offers     OfferConfig     `yaml:"offers"`
	Peers      PeersConfig     `yaml:"peers"`
	TermSheets TermSheetConfig `yaml:"term_sheets"`
}

type ServerConfig struct {
	ListenAddr     string        `yaml:"listen_addr"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	AllowOrigin    string        `yaml:"allow_origin"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	MaxConns    int32  `yaml:"max_conns"`
	FallbackDir string `yaml:"fallback_dir"` // JSON store used without a database
}

type LLMConfig struct {
	GeminiAPIKey   string `yaml:"gemini_api_key"`
	DeepSeekAPIKey string `yaml:"deepseek_api_key"`
	ModelsFile     string `yaml:"models_file"`
	PromptsDir     string `yaml:"prompts_dir"`
	Disabled       bool   `yaml:"disabled"`
}

type ValuationConfig struct {
	RiskFreeRate         float64                               `yaml:"risk_free_rate"`
	MarketRiskPremium    float64                               `yaml:"market_risk_premium"`
	Weights              valuation.MethodWeights               `yaml:"weights"`
	Industries           map[string]assumption.IndustryProfile `yaml:"industries"`
	MonteCarloIterations int                                   `yaml:"monte_carlo_iterations"`
	MonteCarloWorkers    int                                   `yaml:"monte_carlo_workers"`
}

type OfferConfig struct {
	IncludeOptional bool             `yaml:"include_optional"`
	Templates       []offer.Template `yaml:"templates"`
}

type PeersConfig struct {
	Files           []string `yaml:"files"`
	RefreshSchedule string   `yaml:"refresh_schedule"`
}

type TermSheetConfig struct {
	ExpirySchedule string `yaml:"expiry_schedule"`
}

// Default returns the settings used when no file is present.
func Default() Config {
	return Config{
		Server: ServerConfig{
			ListenAddr:     ":8080",
			RequestTimeout: 30 * time.Second,
			AllowOrigin:    "*",
		},
		Database: DatabaseConfig{MaxConns: 10, FallbackDir: ".cache/deal_valuation"},
		Logging:  logging.Config{Level: "info", Format: "console"},
		LLM: LLMConfig{
			ModelsFile: "config/models.yaml",
		},
		Valuation: ValuationConfig{
			RiskFreeRate:         assumption.DefaultRiskFreeRate,
			MarketRiskPremium:    assumption.DefaultMarketRiskPremium,
			Weights:              valuation.DefaultWeights(),
			MonteCarloIterations: 10000,
		},
		Peers:      PeersConfig{RefreshSchedule: "@every 1h"},
		TermSheets: TermSheetConfig{ExpirySchedule: "@every 15m"},
	}
}

// Load reads path (missing is fine), then .env, then the environment.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			// A weights block in the file replaces the defaults rather than merging.
			cfg.Valuation.Weights = nil
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
			if len(cfg.Valuation.Weights) == 0 {
				cfg.Valuation.Weights = valuation.DefaultWeights()
			}
		}
	}

	// .env is optional; real environment variables win over it.
	_ = godotenv.Load()
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("LISTEN_ADDR"); v != "" {
		c.Server.ListenAddr = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := getenv("GEMINI_API_KEY"); v != "" {
		c.LLM.GeminiAPIKey = v
	}
	if v := getenv("DEEPSEEK_API_KEY"); v != "" {
		c.LLM.DeepSeekAPIKey = v
	}
	if v := getenv("REQUEST_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("REQUEST_TIMEOUT: %w", err)
		}
		c.Server.RequestTimeout = d
	}
	if v := getenv("LLM_DISABLED"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("LLM_DISABLED: %w", err)
		}
		c.LLM.Disabled = b
	}
	return nil
}

// Validate rejects settings the services cannot run with.
func (c Config) Validate() error {
	if c.Server.RequestTimeout <= 0 {
		return fmt.Errorf("server.request_timeout must be positive")
	}
	for m, w := range c.Valuation.Weights {
		if w < 0 {
			return fmt.Errorf("valuation.weights.%s must not be negative", m)
		}
	}
	if c.Valuation.MonteCarloIterations < 0 {
		return fmt.Errorf("valuation.monte_carlo_iterations must not be negative")
	}
	for _, t := range c.Offers.Templates {
		if err := t.Validate(); err != nil {
			return fmt.Errorf("offers.templates: %w", err)
		}
	}
	return nil
}

// OfferTemplates returns the configured templates or the built-in set.
func (c Config) OfferTemplates() []offer.Template {
	if len(c.Offers.Templates) > 0 {
		return c.Offers.Templates
	}
	return offer.DefaultTemplates()
}
