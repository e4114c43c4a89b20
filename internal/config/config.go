package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// App holds the runtime configuration loaded from environment variables.
type App struct {
	Env      string `env:"APP_ENV"   envDefault:"dev"`
	HTTPPort string `env:"HTTP_PORT" envDefault:"8080"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	DBDriver    string `env:"DB_DRIVER"    envDefault:"sqlite"`
	DatabaseURL string `env:"DATABASE_URL" envDefault:"file:school_events.db?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	SessionSecret string        `env:"SESSION_SECRET"  envDefault:"dev-session-secret-change"`
	JWTIssuer     string        `env:"JWT_ISSUER"      envDefault:"school-events"`
	JWTSigningKey string        `env:"JWT_SIGNING_KEY" envDefault:"dev-signing-secret-change"`
	AccessTTL     time.Duration `env:"ACCESS_TTL"      envDefault:"15m"`

	RateLimitPerMin  int    `env:"RATE_LIMIT_PER_MIN" envDefault:"120"`
	RateLimitBackend string `env:"RATE_LIMIT_BACKEND" envDefault:"memory"`

	// Timezone is where event dates typed into forms are interpreted.
	Timezone string `env:"TIMEZONE" envDefault:"Local"`

	AdminUsername string `env:"ADMIN_USERNAME" envDefault:"admin"`
	AdminPassword string `env:"ADMIN_PASSWORD"`
}

// Load reads an optional .env file and then parses the environment. Values
// already set in the environment win over the file.
func Load() (App, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return App{}, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads the configuration from the environment only.
func Parse() (App, error) {
	var cfg App
	if err := env.Parse(&cfg); err != nil {
		return App{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return App{}, err
	}
	return cfg, nil
}

func (a App) validate() error {
	switch a.RateLimitBackend {
	case "memory":
	case "redis":
		if a.RedisAddr == "" {
			return errors.New("RATE_LIMIT_BACKEND=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown RATE_LIMIT_BACKEND %q", a.RateLimitBackend)
	}
	if a.RateLimitPerMin <= 0 {
		return fmt.Errorf("RATE_LIMIT_PER_MIN must be positive, got %d", a.RateLimitPerMin)
	}
	if a.IsProduction() && (a.SessionSecret == "dev-session-secret-change" || a.JWTSigningKey == "dev-signing-secret-change") {
		return errors.New("SESSION_SECRET and JWT_SIGNING_KEY must be set in production")
	}
	return nil
}

// IsProduction reports whether APP_ENV names a production deployment.
func (a App) IsProduction() bool {
	return a.Env == "production" || a.Env == "prod"
}

// Location resolves Timezone.
func (a App) Location() (*time.Location, error) {
	if a.Timezone == "" || a.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(a.Timezone)
	if err != nil {
		return nil, fmt.Errorf("load timezone %q: %w", a.Timezone, err)
	}
	return loc, nil
}
