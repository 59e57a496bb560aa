package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/MikeSquared-Agency/Ideality/internal/scoring"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Hermes   HermesConfig   `yaml:"hermes"`
	Scoring  ScoringConfig  `yaml:"scoring"`
	Rescore  RescoreConfig  `yaml:"rescore"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

type ServerConfig struct {
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
	AdminToken  string `yaml:"admin_token"`
	// HS256 key for session tokens. Empty trusts the X-User-ID header set
	// by an upstream gateway.
	JWTSecret string `yaml:"jwt_secret"`
}

type DatabaseConfig struct {
	URL            string `yaml:"url"`
	ConnectRetries int    `yaml:"connect_retries"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

// ScoringConfig mirrors scoring.NormalizationConfig plus the evaluation
// clock pin. EvaluationYear 0 means the system clock.
type ScoringConfig struct {
	PriceRange     scoring.Range          `yaml:"price_range"`
	CommuteRange   scoring.Range          `yaml:"commute_range"`
	FeatureWeights scoring.FeatureWeights `yaml:"feature_weights"`
	EvaluationYear int                    `yaml:"evaluation_year"`
}

type RescoreConfig struct {
	Enabled    bool `yaml:"enabled"`
	IntervalMs int  `yaml:"interval_ms"`
	BatchSize  int  `yaml:"batch_size"`
	// Store write retries per property before it counts as failed.
	MaxRetries uint64 `yaml:"max_retries"`
	// Consecutive write failures that open the store circuit breaker.
	BreakerThreshold uint32 `yaml:"breaker_threshold"`
}

type APIConfig struct {
	RateLimitPerMinute int      `yaml:"rate_limit_per_minute"`
	DefaultPageSize    int      `yaml:"default_page_size"`
	MaxPageSize        int      `yaml:"max_page_size"`
	AllowedOrigins     []string `yaml:"allowed_origins"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Normalization returns the scoring engine view of the config.
func (c *Config) Normalization() scoring.NormalizationConfig {
	return scoring.NormalizationConfig{
		PriceRange:     c.Scoring.PriceRange,
		CommuteRange:   c.Scoring.CommuteRange,
		FeatureWeights: c.Scoring.FeatureWeights,
	}
}

// Clock returns the evaluation clock for the scorer.
func (c *Config) Clock() func() time.Time {
	if c.Scoring.EvaluationYear > 0 {
		return scoring.FixedYear(c.Scoring.EvaluationYear)
	}
	return time.Now
}

func (c *Config) RescoreInterval() time.Duration {
	return time.Duration(c.Rescore.IntervalMs) * time.Millisecond
}

// LogLevel parses logging.level, defaulting to info.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Validate fails on any configuration the service must not start with.
func (c *Config) Validate() error {
	if err := c.Normalization().Validate(); err != nil {
		return fmt.Errorf("scoring: %w", err)
	}
	if c.Rescore.Enabled {
		if c.Rescore.IntervalMs <= 0 {
			return fmt.Errorf("rescore: interval_ms must be positive, got %d", c.Rescore.IntervalMs)
		}
		if c.Rescore.BatchSize <= 0 {
			return fmt.Errorf("rescore: batch_size must be positive, got %d", c.Rescore.BatchSize)
		}
		if c.Rescore.BreakerThreshold == 0 {
			return fmt.Errorf("rescore: breaker_threshold must be positive")
		}
	}
	if c.API.DefaultPageSize <= 0 || c.API.MaxPageSize < c.API.DefaultPageSize {
		return fmt.Errorf("api: invalid page sizes default=%d max=%d", c.API.DefaultPageSize, c.API.MaxPageSize)
	}
	return nil
}

func Load(path string) (*Config, error) {
	norm := scoring.DefaultNormalization()
	cfg := &Config{
		Server: ServerConfig{
			Port:        8700,
			MetricsPort: 8701,
		},
		Database: DatabaseConfig{
			ConnectRetries: 5,
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Scoring: ScoringConfig{
			PriceRange:     norm.PriceRange,
			CommuteRange:   norm.CommuteRange,
			FeatureWeights: norm.FeatureWeights,
		},
		Rescore: RescoreConfig{
			Enabled:          true,
			IntervalMs:       60000,
			BatchSize:        200,
			MaxRetries:       3,
			BreakerThreshold: 5,
		},
		API: APIConfig{
			RateLimitPerMinute: 120,
			DefaultPageSize:    20,
			MaxPageSize:        100,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("IDEALITY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("IDEALITY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("IDEALITY_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("IDEALITY_JWT_SECRET"); v != "" {
		cfg.Server.JWTSecret = v
	}
	if v := os.Getenv("IDEALITY_ALLOWED_ORIGINS"); v != "" {
		cfg.API.AllowedOrigins = strings.Split(v, ",")
	}
	if v := os.Getenv("IDEALITY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("IDEALITY_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("IDEALITY_EVALUATION_YEAR"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Scoring.EvaluationYear = n
		}
	}
	if v := os.Getenv("IDEALITY_RESCORE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Rescore.Enabled = b
		}
	}
	if v := os.Getenv("IDEALITY_RESCORE_INTERVAL_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Rescore.IntervalMs = n
		}
	}
	if v := os.Getenv("IDEALITY_RATE_LIMIT_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.API.RateLimitPerMinute = n
		}
	}
	if v := os.Getenv("IDEALITY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IDEALITY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
