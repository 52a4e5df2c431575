package config

import (
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBDriver != "sqlite" || cfg.AccountDelay != 2*time.Second || cfg.UpstreamTimeout != 20*time.Second {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
	if !cfg.NotifyAlreadySigned || cfg.NotifyFailures {
		t.Fatalf("unexpected notification defaults %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults must validate: %v", err)
	}
	if h, m, _ := cfg.ScheduleAt(); h != 0 || m != 5 {
		t.Fatalf("unexpected schedule %d:%d", h, m)
	}
}

func TestParse_FromEnv(t *testing.T) {
	t.Setenv("CHECKIN_DB_DRIVER", "postgres")
	t.Setenv("CHECKIN_DB_DSN", "host=localhost user=checkin dbname=checkin")
	t.Setenv("CHECKIN_SCHEDULE_TIME", "06:30")
	t.Setenv("CHECKIN_ACCOUNT_DELAY", "500ms")
	t.Setenv("CHECKIN_NOTIFY_FAILURES", "true")

	cfg, err := Parse()
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.DBDriver != "postgres" || cfg.AccountDelay != 500*time.Millisecond || !cfg.NotifyFailures {
		t.Fatalf("env not applied: %+v", cfg)
	}
	if h, m, err := cfg.ScheduleAt(); err != nil || h != 6 || m != 30 {
		t.Fatalf("unexpected schedule %d:%d %v", h, m, err)
	}
}

func TestParse_InvalidDuration(t *testing.T) {
	t.Setenv("CHECKIN_ACCOUNT_DELAY", "soon")
	if _, err := Parse(); err == nil {
		t.Fatal("expected a parse error")
	}
}

func TestValidate(t *testing.T) {
	base, _ := Parse()
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{name: "driver", mutate: func(c *Config) { c.DBDriver = "mysql" }, want: "CHECKIN_DB_DRIVER"},
		{name: "timezone", mutate: func(c *Config) { c.Timezone = "Mars/Olympus" }, want: "CHECKIN_TIMEZONE"},
		{name: "schedule", mutate: func(c *Config) { c.ScheduleTime = "25:00" }, want: "CHECKIN_SCHEDULE_TIME"},
		{name: "timeout", mutate: func(c *Config) { c.UpstreamTimeout = time.Minute }, want: "CHECKIN_UPSTREAM_TIMEOUT"},
		{name: "key", mutate: func(c *Config) { c.EncryptionKey = "short" }, want: "CHECKIN_ENCRYPTION_KEY"},
		{name: "webhook", mutate: func(c *Config) { c.DefaultWebhookURL = "http://insecure" }, want: "CHECKIN_DISCORD_WEBHOOK"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			tt.mutate(&cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error mentioning %s, got %v", tt.want, err)
			}
		})
	}
}
