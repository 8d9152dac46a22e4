package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Environment string `envconfig:"ENVIRONMENT" default:"local"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMinConns  int32  `envconfig:"CERT_DB_MIN_CONNS" default:"1"`
	DBMaxConns  int32  `envconfig:"CERT_DB_MAX_CONNS" default:"8"`

	AchahadaBaseURL string        `envconfig:"ACHAHADA_BASE_URL" default:"https://achahada.com"`
	AVSBaseURL      string        `envconfig:"AVS_BASE_URL" default:"https://avs.fr"`
	SourceTimeout   time.Duration `envconfig:"SOURCE_TIMEOUT" default:"30s"`

	RefreshCacheTTL    time.Duration `envconfig:"REFRESH_CACHE_TTL" default:"1h"`
	RefreshTokenBcrypt string        `envconfig:"REFRESH_TOKEN_BCRYPT" default:""`
	CORSAllowedOrigins string        `envconfig:"CORS_ALLOWED_ORIGINS" default:""`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if strings.TrimSpace(c.DatabaseURL) == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}
	if c.DBMinConns < 0 {
		return fmt.Errorf("CERT_DB_MIN_CONNS must be >= 0")
	}
	if c.DBMaxConns < 1 {
		return fmt.Errorf("CERT_DB_MAX_CONNS must be >= 1")
	}
	if c.DBMinConns > c.DBMaxConns {
		return fmt.Errorf("CERT_DB_MIN_CONNS (%d) cannot exceed CERT_DB_MAX_CONNS (%d)", c.DBMinConns, c.DBMaxConns)
	}
	if strings.TrimSpace(c.AchahadaBaseURL) == "" {
		return fmt.Errorf("ACHAHADA_BASE_URL is required")
	}
	if strings.TrimSpace(c.AVSBaseURL) == "" {
		return fmt.Errorf("AVS_BASE_URL is required")
	}
	if c.SourceTimeout <= 0 {
		return fmt.Errorf("SOURCE_TIMEOUT must be positive")
	}
	if c.RefreshCacheTTL <= 0 {
		return fmt.Errorf("REFRESH_CACHE_TTL must be positive")
	}
	return nil
}

func (c *Config) CORSAllowedOriginsList() []string {
	if c == nil {
		return nil
	}

	parts := strings.Split(c.CORSAllowedOrigins, ",")
	origins := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		origin := strings.TrimSpace(part)
		if origin == "" {
			continue
		}
		if _, exists := seen[origin]; exists {
			continue
		}
		seen[origin] = struct{}{}
		origins = append(origins, origin)
	}
	return origins
}
