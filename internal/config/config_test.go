package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  port: 9090
auth:
  enabled: true
  api_key: secret
crawler:
  concurrency: 6
  max_section_pages: 5
  queue_depth: 128
  request_delay_min_ms: 100
  request_delay_max_ms: 200
http:
  timeout_seconds: 45
  max_retries: 4
rate_limit:
  max_requests: 10
  window_seconds: 30
scheduler:
  tick_seconds: 15
summarizer:
  api_key: gemini-key
storage:
  provider: postgres
  dsn: postgres://crawler:pw@localhost:5432/siteintel
logging:
  development: false
`
	if err := os.WriteFile(path, []byte(configYAML), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Fatalf("expected port 9090, got %d", cfg.Server.Port)
	}
	if !cfg.Auth.Enabled || cfg.Auth.APIKey != "secret" {
		t.Fatalf("expected auth enabled with secret key")
	}
	if cfg.Crawler.Concurrency != 6 || cfg.Crawler.MaxSectionPages != 5 {
		t.Fatalf("expected crawler overrides to apply, got %+v", cfg.Crawler)
	}
	if cfg.RateLimit.MaxRequests != 10 {
		t.Fatalf("expected rate limit override, got %+v", cfg.RateLimit)
	}
	if cfg.Storage.Provider != "postgres" || cfg.Storage.DSN == "" {
		t.Fatalf("expected postgres storage config, got %+v", cfg.Storage)
	}
	if cfg.Summarizer.APIKey != "gemini-key" {
		t.Fatalf("expected summarizer key, got %+v", cfg.Summarizer)
	}
	if got := cfg.FetchTimeout(); got != 45*time.Second {
		t.Fatalf("expected fetch timeout 45s, got %v", got)
	}
	if got := cfg.RateLimitWindow(); got != 30*time.Second {
		t.Fatalf("expected rate limit window 30s, got %v", got)
	}
	if got := cfg.SchedulerTick(); got != 15*time.Second {
		t.Fatalf("expected scheduler tick 15s, got %v", got)
	}
}

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 8080 {
		t.Fatalf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.RateLimit.MaxRequests != 30 || cfg.RateLimit.WindowSeconds != 60 {
		t.Fatalf("expected default rate limit 30/60s, got %+v", cfg.RateLimit)
	}
	if cfg.Crawler.RequestDelayMinMs != 1000 || cfg.Crawler.PageDelayMaxMs != 5000 {
		t.Fatalf("expected default crawl pacing, got %+v", cfg.Crawler)
	}
	if cfg.Storage.Provider != "memory" {
		t.Fatalf("expected default memory storage, got %q", cfg.Storage.Provider)
	}
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Server:    ServerConfig{Port: 8080},
		Crawler:   CrawlerConfig{Concurrency: 1},
		HTTP:      HTTPConfig{TimeoutSeconds: 10},
		RateLimit: RateLimitConfig{MaxRequests: 30, WindowSeconds: 60},
		Storage:   StorageConfig{Provider: "memory"},
	}

	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{
			name: "invalid port",
			cfg: func() Config {
				c := base
				c.Server.Port = 0
				return c
			}(),
			want: "server.port",
		},
		{
			name: "invalid concurrency",
			cfg: func() Config {
				c := base
				c.Crawler.Concurrency = 0
				return c
			}(),
			want: "crawler.concurrency",
		},
		{
			name: "invalid timeout",
			cfg: func() Config {
				c := base
				c.HTTP.TimeoutSeconds = 0
				return c
			}(),
			want: "http.timeout_seconds",
		},
		{
			name: "invalid rate limit",
			cfg: func() Config {
				c := base
				c.RateLimit.MaxRequests = 0
				return c
			}(),
			want: "rate_limit.max_requests",
		},
		{
			name: "auth missing api key",
			cfg: func() Config {
				c := base
				c.Auth.Enabled = true
				return c
			}(),
			want: "auth.api_key",
		},
		{
			name: "postgres missing dsn",
			cfg: func() Config {
				c := base
				c.Storage.Provider = "postgres"
				return c
			}(),
			want: "storage.dsn",
		},
		{
			name: "unknown provider",
			cfg: func() Config {
				c := base
				c.Storage.Provider = "s3"
				return c
			}(),
			want: "storage.provider",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Fatalf("expected error containing %q, got %v", tt.want, err)
			}
		})
	}
}
