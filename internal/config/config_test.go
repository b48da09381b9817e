package config

import (
	"flag"
	"io"
	"os"
	"testing"
	"time"
)

func loadWithArgs(t *testing.T, args ...string) *Config {
	t.Helper()

	if len(args) == 0 {
		args = []string{"test"}
	}

	oldCommandLine := flag.CommandLine
	oldArgs := os.Args

	flag.CommandLine = flag.NewFlagSet(args[0], flag.ContinueOnError)
	flag.CommandLine.SetOutput(io.Discard)
	os.Args = args

	t.Cleanup(func() {
		flag.CommandLine = oldCommandLine
		os.Args = oldArgs
	})

	return Load()
}

func TestLoad_Defaults(t *testing.T) {
	cfg := loadWithArgs(t, "test")

	if cfg.Aggregation.Timeout != 30*time.Second {
		t.Fatalf("expected aggregation timeout 30s, got %s", cfg.Aggregation.Timeout)
	}
	if cfg.Aggregation.MaxConcurrency != 16 {
		t.Fatalf("expected max concurrency 16, got %d", cfg.Aggregation.MaxConcurrency)
	}
	if cfg.Cache.Backend != "memory" {
		t.Fatalf("expected memory cache backend, got %q", cfg.Cache.Backend)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestLoad_FromFlags(t *testing.T) {
	cfg := loadWithArgs(t, "test", "-max-concurrency", "4", "-aggregate-timeout", "5s", "-cache-backend", "lru")

	if cfg.Aggregation.MaxConcurrency != 4 {
		t.Fatalf("expected MaxConcurrency=4 from flag, got %d", cfg.Aggregation.MaxConcurrency)
	}
	if cfg.Aggregation.Timeout != 5*time.Second {
		t.Fatalf("expected aggregation timeout 5s from flag, got %s", cfg.Aggregation.Timeout)
	}
	if cfg.Cache.Backend != "lru" {
		t.Fatalf("expected lru backend from flag, got %q", cfg.Cache.Backend)
	}
}

func TestLoad_EnvOverridesFlags(t *testing.T) {
	t.Setenv("MAX_CONCURRENCY", "0")
	t.Setenv("CACHE_BACKEND", "redis")
	cfg := loadWithArgs(t, "test", "-max-concurrency", "4")

	if cfg.Aggregation.MaxConcurrency != 0 {
		t.Fatalf("expected MAX_CONCURRENCY=0 to win over flag, got %d", cfg.Aggregation.MaxConcurrency)
	}
	if cfg.Cache.Backend != "redis" {
		t.Fatalf("expected redis backend from env, got %q", cfg.Cache.Backend)
	}
}

func TestLoadEnv(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "key-123")
	t.Setenv("AGGREGATE_TIMEOUT", "not-a-duration")
	t.Setenv("DB_PORT", "6543")

	cfg := LoadEnv()

	if cfg.YouTube.APIKey != "key-123" {
		t.Fatalf("expected YouTube API key from env, got %q", cfg.YouTube.APIKey)
	}
	if cfg.Aggregation.Timeout != 30*time.Second {
		t.Fatalf("expected invalid duration to be ignored, got %s", cfg.Aggregation.Timeout)
	}
	if cfg.Database.Port != 6543 {
		t.Fatalf("expected DB port 6543, got %d", cfg.Database.Port)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Cache.Backend = "memcached" }, true},
		{"zero timeout", func(c *Config) { c.Aggregation.Timeout = 0 }, true},
		{"negative concurrency", func(c *Config) { c.Aggregation.MaxConcurrency = -1 }, true},
		{"unbounded concurrency", func(c *Config) { c.Aggregation.MaxConcurrency = 0 }, false},
		{"empty secret", func(c *Config) { c.Auth.JWTSecret = "" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := Default().Database
	want := "host=localhost port=5432 user=postgres password=postgres dbname=feedmix sslmode=disable"
	if got := d.DSN(); got != want {
		t.Fatalf("DSN() = %q, want %q", got, want)
	}
}
