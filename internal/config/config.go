package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/Skufu/medscore/internal/scoring"
)

const DefaultReferencePath = "data/2025 Midyear_Final ICD-10-CM Mappings.csv"

type Config struct {
	Port           string        `mapstructure:"PORT"`
	Env            string        `mapstructure:"ENV"`
	LogLevel       string        `mapstructure:"LOG_LEVEL"`
	ReferencePath  string        `mapstructure:"REFERENCE_TABLE_PATH"`
	MatchStrategy  string        `mapstructure:"MATCH_STRATEGY"`
	CORSOrigins    []string      `mapstructure:"-"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	MaxBodyBytes   int64         `mapstructure:"MAX_BODY_BYTES"`
	EnableDB       bool          `mapstructure:"ENABLE_DB"`
	DatabaseURL    string        `mapstructure:"DATABASE_URL"`
	GeminiAPIKey   string        `mapstructure:"GEMINI_API_KEY"`
	GeminiModel    string        `mapstructure:"GEMINI_MODEL"`
	GeminiBaseURL  string        `mapstructure:"GEMINI_BASE_URL"`
	LLMTimeout     time.Duration `mapstructure:"LLM_TIMEOUT"`
}

var keys = []string{
	"PORT", "ENV", "LOG_LEVEL", "REFERENCE_TABLE_PATH", "MATCH_STRATEGY", "CORS_ORIGINS",
	"RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "MAX_BODY_BYTES", "ENABLE_DB", "DATABASE_URL",
	"GEMINI_API_KEY", "GEMINI_MODEL", "GEMINI_BASE_URL", "LLM_TIMEOUT",
}

// Load reads configuration from the environment, after merging a .env file
// when one is present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("PORT", "8001")
	v.SetDefault("ENV", "production")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REFERENCE_TABLE_PATH", DefaultReferencePath)
	v.SetDefault("MATCH_STRATEGY", string(scoring.StrategyFuzzy))
	v.SetDefault("CORS_ORIGINS", "*")
	v.SetDefault("RATE_LIMIT_RPS", 50)
	v.SetDefault("RATE_LIMIT_BURST", 100)
	v.SetDefault("MAX_BODY_BYTES", 1<<20)
	v.SetDefault("ENABLE_DB", false)
	v.SetDefault("GEMINI_MODEL", "gemini-1.5-flash")
	v.SetDefault("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com")
	v.SetDefault("LLM_TIMEOUT", "30s")

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// Strategy returns the configured match strategy. Validate has already
// rejected unknown values.
func (c *Config) Strategy() scoring.Strategy {
	s, _ := scoring.ParseStrategy(c.MatchStrategy)
	return s
}

// LLMEnabled reports whether the analysis endpoint can reach a model.
func (c *Config) LLMEnabled() bool {
	return c.GeminiAPIKey != ""
}

func (c *Config) Validate() error {
	if _, err := scoring.ParseStrategy(c.MatchStrategy); err != nil {
		return fmt.Errorf("MATCH_STRATEGY: %w", err)
	}
	if c.EnableDB && c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required when ENABLE_DB=true")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", c.MaxBodyBytes)
	}
	for _, o := range c.CORSOrigins {
		if o != "*" && !strings.HasPrefix(o, "http://") && !strings.HasPrefix(o, "https://") {
			return fmt.Errorf("CORS_ORIGINS entry %q must be * or start with http:// or https://", o)
		}
	}
	if c.LLMTimeout <= 0 {
		return fmt.Errorf("LLM_TIMEOUT must be positive, got %s", c.LLMTimeout)
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
