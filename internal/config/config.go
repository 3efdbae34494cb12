// Package config loads the server configuration from PORTFOLIO_* environment
// variables, optionally seeded from a .env file.
package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// MinSecretLength is the minimum length of the token and session secrets.
const MinSecretLength = 32

type Config struct {
	Env      string `env:"PORTFOLIO_ENV" envDefault:"development"`
	Host     string `env:"PORTFOLIO_HOST" envDefault:"localhost"`
	Port     int    `env:"PORTFOLIO_PORT" envDefault:"3000"`
	LogLevel string `env:"PORTFOLIO_LOG_LEVEL" envDefault:"info"`

	DBDriver string `env:"PORTFOLIO_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"PORTFOLIO_DB_DSN" envDefault:"./data/portfolio.db"`

	JWTSecret     string        `env:"PORTFOLIO_JWT_SECRET,required"`
	TokenTTL      time.Duration `env:"PORTFOLIO_TOKEN_TTL" envDefault:"24h"`
	SessionSecret string        `env:"PORTFOLIO_SESSION_SECRET,required"`

	UploadsDir    string `env:"PORTFOLIO_UPLOADS_DIR" envDefault:"./uploads"`
	MaxUploadMB   int64  `env:"PORTFOLIO_MAX_UPLOAD_MB" envDefault:"10"`
	ImageMaxWidth int    `env:"PORTFOLIO_IMAGE_MAX_WIDTH" envDefault:"1920"`

	RedisURL string        `env:"PORTFOLIO_REDIS_URL"`
	CacheTTL time.Duration `env:"PORTFOLIO_CACHE_TTL" envDefault:"5m"`

	LoginRate  float64 `env:"PORTFOLIO_LOGIN_RATE" envDefault:"0.5"`
	LoginBurst int     `env:"PORTFOLIO_LOGIN_BURST" envDefault:"5"`

	// TrustedProxies may set X-Forwarded-For. Loopback covers the site, which
	// calls the API from this process on behalf of its visitors.
	TrustedProxies []string `env:"PORTFOLIO_TRUSTED_PROXIES" envDefault:"127.0.0.1,::1" envSeparator:","`

	SiteEnabled bool   `env:"PORTFOLIO_SITE_ENABLED" envDefault:"true"`
	APIBaseURL  string `env:"PORTFOLIO_API_BASE_URL"`

	UploadSweepSchedule string `env:"PORTFOLIO_UPLOAD_SWEEP_SCHEDULE" envDefault:"@daily"`
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// SiteAPIBaseURL is where the site's HTTP client sends its requests. Unless
// configured otherwise the site talks to the API served by this process.
func (c Config) SiteAPIBaseURL() string {
	if c.APIBaseURL != "" {
		return c.APIBaseURL
	}
	return fmt.Sprintf("http://%s/api", c.ServerAddr())
}

func (c Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

func (c Config) UseRedisCache() bool {
	return c.RedisURL != ""
}

// Load reads .env (when present) and parses the environment.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if len(c.JWTSecret) < MinSecretLength {
		return fmt.Errorf("PORTFOLIO_JWT_SECRET must be at least %d bytes long, got %d", MinSecretLength, len(c.JWTSecret))
	}
	if len(c.SessionSecret) < MinSecretLength {
		return fmt.Errorf("PORTFOLIO_SESSION_SECRET must be at least %d bytes long, got %d", MinSecretLength, len(c.SessionSecret))
	}

	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("PORTFOLIO_DB_DRIVER must be sqlite or postgres, got %q", c.DBDriver)
	}

	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORTFOLIO_PORT out of range: %d", c.Port)
	}
	if c.TokenTTL <= 0 {
		return fmt.Errorf("PORTFOLIO_TOKEN_TTL must be positive")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("PORTFOLIO_MAX_UPLOAD_MB must be positive")
	}
	if c.APIBaseURL != "" {
		if u, err := url.Parse(c.APIBaseURL); err != nil || u.Host == "" {
			return fmt.Errorf("PORTFOLIO_API_BASE_URL is not an absolute URL: %q", c.APIBaseURL)
		}
	}
	return nil
}
