package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	libconfig "evorchestrator/backend/libs/config"
)

// Config represents orchestrator configuration loaded from .env/YAML/env.
type Config struct {
	HTTP struct {
		Port            string        `yaml:"port" env:"PORT"`
		AllowedOrigins  []string      `yaml:"allowedOrigins" env:"FRONTEND_URL"`
		ShutdownTimeout time.Duration `yaml:"shutdownTimeout" env:"HTTP_SHUTDOWN_TIMEOUT"`
	} `yaml:"http"`
	Database struct {
		DSN          string `yaml:"dsn" env:"DATABASE_URL" required:"true"`
		AutoMigrate  bool   `yaml:"autoMigrate" env:"DATABASE_AUTO_MIGRATE"`
		MaxOpenConns int    `yaml:"maxOpenConns" env:"DATABASE_MAX_OPEN_CONNS"`
		MaxIdleConns int    `yaml:"maxIdleConns" env:"DATABASE_MAX_IDLE_CONNS"`
	} `yaml:"database"`
	Redis struct {
		Addr     string        `yaml:"addr" env:"REDIS_ADDR"`
		Password string        `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int           `yaml:"db" env:"REDIS_DB"`
		TTL      time.Duration `yaml:"availabilityTTL" env:"AVAILABILITY_CACHE_TTL"`
	} `yaml:"redis"`
	Auth struct {
		JWTSecret        string `yaml:"jwtSecret" env:"JWT_SECRET" required:"true"`
		ExpiresInMinutes int    `yaml:"expiresInMinutes" env:"JWT_EXPIRES_MINUTES"`
		AllowEmailHeader bool   `yaml:"allowEmailHeader" env:"AUTH_ALLOW_EMAIL_HEADER"`
	} `yaml:"auth"`
	OAuth struct {
		ClientID     string `yaml:"clientId" env:"GOOGLE_CLIENT_ID"`
		ClientSecret string `yaml:"clientSecret" env:"GOOGLE_CLIENT_SECRET"`
	} `yaml:"oauth"`
	RateLimit struct {
		RPS   float64 `yaml:"rps" env:"RATE_LIMIT_RPS"`
		Burst int     `yaml:"burst" env:"RATE_LIMIT_BURST"`
	} `yaml:"rateLimit"`
	Booking struct {
		Timezone    string        `yaml:"timezone" env:"BOOKING_TIMEZONE"`
		NoShowGrace time.Duration `yaml:"noShowGrace" env:"BOOKING_NO_SHOW_GRACE"`
	} `yaml:"booking"`
	Jobs struct {
		Enabled             bool   `yaml:"enabled" env:"JOBS_ENABLED"`
		NoShowSchedule      string `yaml:"noShowSchedule" env:"JOBS_NO_SHOW_SCHEDULE"`
		UtilizationSchedule string `yaml:"utilizationSchedule" env:"JOBS_UTILIZATION_SCHEDULE"`
	} `yaml:"jobs"`
	SendGrid struct {
		APIKey    string `yaml:"apiKey" env:"SENDGRID_API_KEY"`
		FromEmail string `yaml:"fromEmail" env:"SENDGRID_FROM_EMAIL"`
		FromName  string `yaml:"fromName" env:"SENDGRID_FROM_NAME"`
	} `yaml:"sendgrid"`
	Twilio struct {
		AccountSID string `yaml:"accountSid" env:"TWILIO_ACCOUNT_SID"`
		AuthToken  string `yaml:"authToken" env:"TWILIO_AUTH_TOKEN"`
		FromNumber string `yaml:"fromNumber" env:"TWILIO_FROM_NUMBER"`
	} `yaml:"twilio"`
}

// Load reads configuration using the shared config loader.
func Load() (*Config, error) {
	cfg := &Config{}
	cfg.HTTP.Port = "5000"
	cfg.HTTP.AllowedOrigins = []string{"http://localhost:3000"}
	cfg.HTTP.ShutdownTimeout = 10 * time.Second
	cfg.Database.AutoMigrate = true
	cfg.Redis.TTL = 30 * time.Second
	cfg.Auth.ExpiresInMinutes = 24 * 60
	cfg.RateLimit.RPS = 5
	cfg.RateLimit.Burst = 10
	cfg.Booking.Timezone = "Local"
	cfg.Booking.NoShowGrace = 15 * time.Minute
	cfg.Jobs.Enabled = true
	cfg.Jobs.NoShowSchedule = "@every 1m"
	cfg.Jobs.UtilizationSchedule = "0 * * * *"
	cfg.SendGrid.FromName = "EV Orchestrator"

	if err := libconfig.LoadConfig(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required values and normalises optional ones.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Database.DSN) == "" {
		return errors.New("config: database dsn required")
	}
	if strings.TrimSpace(c.Auth.JWTSecret) == "" {
		return errors.New("config: jwt secret required")
	}
	if c.Auth.ExpiresInMinutes <= 0 {
		c.Auth.ExpiresInMinutes = 24 * 60
	}
	if c.RateLimit.RPS <= 0 {
		c.RateLimit.RPS = 5
	}
	if c.RateLimit.Burst <= 0 {
		c.RateLimit.Burst = 10
	}
	if _, err := time.LoadLocation(c.Booking.Timezone); err != nil {
		return fmt.Errorf("config: booking timezone: %w", err)
	}
	return nil
}

// HTTPAddress ensures we always return host:port formatted string.
func (c *Config) HTTPAddress() string {
	port := strings.TrimSpace(c.HTTP.Port)
	if port == "" {
		port = "5000"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return fmt.Sprintf(":%s", port)
}

// JWTExpiration converts configured expiry to duration.
func (c *Config) JWTExpiration() time.Duration {
	if c.Auth.ExpiresInMinutes <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Auth.ExpiresInMinutes) * time.Minute
}

// AvailabilityTTL returns the availability cache ttl.
func (c *Config) AvailabilityTTL() time.Duration {
	if c.Redis.TTL <= 0 {
		return 30 * time.Second
	}
	return c.Redis.TTL
}

// Location resolves the timezone used when rendering arrival windows.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Booking.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// RedisEnabled reports whether the availability cache should be wired.
func (c *Config) RedisEnabled() bool {
	return strings.TrimSpace(c.Redis.Addr) != ""
}
