// Package config reads the runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"log"
	"net/url"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config is the process configuration. Every field maps to one CHECKIN_*
// variable.
type Config struct {
	Host string `env:"CHECKIN_HOST" envDefault:"127.0.0.1"`
	Port string `env:"CHECKIN_PORT" envDefault:"8087"`

	DBDriver string `env:"CHECKIN_DB_DRIVER" envDefault:"sqlite"`
	DBDSN    string `env:"CHECKIN_DB_DSN"    envDefault:"checkin.db"`
	// EncryptionKey seals session tokens at rest. Empty stores them as given.
	EncryptionKey string `env:"CHECKIN_ENCRYPTION_KEY"`

	Timezone     string `env:"CHECKIN_TIMEZONE"      envDefault:"Asia/Shanghai"`
	ScheduleTime string `env:"CHECKIN_SCHEDULE_TIME" envDefault:"00:05"`
	RunOnStart   bool   `env:"CHECKIN_RUN_ON_START"  envDefault:"false"`

	AccountDelay     time.Duration `env:"CHECKIN_ACCOUNT_DELAY"      envDefault:"2s"`
	UpstreamTimeout  time.Duration `env:"CHECKIN_UPSTREAM_TIMEOUT"   envDefault:"20s"`
	SigninRetryDelay time.Duration `env:"CHECKIN_SIGNIN_RETRY_DELAY" envDefault:"3s"`
	ParallelGames    bool          `env:"CHECKIN_PARALLEL_GAMES"     envDefault:"false"`

	NotifyAlreadySigned bool   `env:"CHECKIN_NOTIFY_ALREADY_SIGNED" envDefault:"true"`
	NotifyFailures      bool   `env:"CHECKIN_NOTIFY_FAILURES"       envDefault:"false"`
	DiscordBotToken     string `env:"CHECKIN_DISCORD_BOT_TOKEN"`
	DiscordAPIBase      string `env:"CHECKIN_DISCORD_API_BASE"      envDefault:"https://discord.com/api/v10"`
	DefaultWebhookURL   string `env:"CHECKIN_DISCORD_WEBHOOK"`

	Verbose bool `env:"CHECKIN_VERBOSE" envDefault:"false"`
	// OTLPEndpoint enables tracing when set, e.g. http://localhost:4318.
	OTLPEndpoint string `env:"CHECKIN_OTEL_ENDPOINT"`
}

// Load reads .env (when present) and the environment.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("⚠️ .env file not found, using environment variables")
	}
	return Parse()
}

// Parse reads the environment without touching .env.
func Parse() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

// Validate checks values env tags cannot express.
func (c Config) Validate() error {
	var errs []error
	switch c.DBDriver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("CHECKIN_DB_DRIVER: unsupported driver %q", c.DBDriver))
	}
	if c.DBDSN == "" {
		errs = append(errs, errors.New("CHECKIN_DB_DSN is required"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("CHECKIN_TIMEZONE: %w", err))
	}
	if _, _, err := c.ScheduleAt(); err != nil {
		errs = append(errs, fmt.Errorf("CHECKIN_SCHEDULE_TIME: %w", err))
	}
	if c.UpstreamTimeout < 15*time.Second || c.UpstreamTimeout > 30*time.Second {
		errs = append(errs, fmt.Errorf("CHECKIN_UPSTREAM_TIMEOUT must be between 15s and 30s, got %s", c.UpstreamTimeout))
	}
	if c.AccountDelay < 0 || c.SigninRetryDelay < 0 {
		errs = append(errs, errors.New("delays must not be negative"))
	}
	if c.EncryptionKey != "" && len(c.EncryptionKey) < 16 {
		errs = append(errs, errors.New("CHECKIN_ENCRYPTION_KEY must be at least 16 characters"))
	}
	if c.DefaultWebhookURL != "" {
		if u, err := url.Parse(c.DefaultWebhookURL); err != nil || u.Scheme != "https" {
			errs = append(errs, errors.New("CHECKIN_DISCORD_WEBHOOK must be an https URL"))
		}
	}
	return errors.Join(errs...)
}

func (c Config) Location() (*time.Location, error) {
	return time.LoadLocation(c.Timezone)
}

// ScheduleAt parses ScheduleTime as HH:MM.
func (c Config) ScheduleAt() (hour, minute uint, err error) {
	t, err := time.Parse("15:04", c.ScheduleTime)
	if err != nil {
		return 0, 0, fmt.Errorf("expected HH:MM, got %q", c.ScheduleTime)
	}
	return uint(t.Hour()), uint(t.Minute()), nil
}

func (c Config) Addr() string {
	return c.Host + ":" + c.Port
}
