package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds all application configuration
type Config struct {
	Server      ServerConfig
	Cache       CacheConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Auth        AuthConfig
	Fetch       FetchConfig
	Aggregation AggregationConfig
	YouTube     YouTubeConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	HTTPAddr        string
	ShutdownTimeout time.Duration
}

// CacheConfig holds cache configuration
type CacheConfig struct {
	Backend       string // "memory", "lru" or "redis"
	TTL           time.Duration
	Size          int // entry cap for the lru backend
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string
}

// AuthConfig holds token signing configuration
type AuthConfig struct {
	JWTSecret      string
	JWTIssuer      string
	JWTAudience    string
	AccessTokenTTL time.Duration
}

// FetchConfig controls outbound feed requests
type FetchConfig struct {
	Timeout   time.Duration
	UserAgent string
	AtomProxy string
	// RateLimit is the minimum delay between requests to the same host.
	RateLimit time.Duration
}

// AggregationConfig controls one feed aggregation
type AggregationConfig struct {
	Timeout        time.Duration
	MaxConcurrency int
}

// YouTubeConfig holds YouTube Data API settings used to resolve vanity URLs
type YouTubeConfig struct {
	APIKey string
}

// Default returns the configuration used when no flags or environment variables are set
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			HTTPAddr:        ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Cache: CacheConfig{
			Backend:   "memory",
			TTL:       5 * time.Minute,
			Size:      10000,
			RedisAddr: "localhost:6379",
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "postgres",
			Password: "postgres",
			Database: "feedmix",
			SSLMode:  "disable",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Auth: AuthConfig{
			JWTSecret:      "change-me-in-production",
			JWTIssuer:      "feedmix",
			JWTAudience:    "feedmix-users",
			AccessTokenTTL: 24 * time.Hour,
		},
		Fetch: FetchConfig{
			Timeout:   30 * time.Second,
			UserAgent: "feedmix/1.0",
			AtomProxy: "https://feedmix.novaclic.com/atom2rss.php",
			RateLimit: time.Second,
		},
		Aggregation: AggregationConfig{
			Timeout:        30 * time.Second,
			MaxConcurrency: 16,
		},
	}
}

// Load parses flags and environment variables to build configuration.
// Environment variables take precedence over flags.
func Load() *Config {
	cfg := Default()
	registerFlags(flag.CommandLine, cfg)
	flag.Parse()
	applyEnvOverrides(cfg)
	return cfg
}

// LoadEnv builds configuration from defaults and environment variables only.
// Used by the command line tool, which parses its own flags.
func LoadEnv() *Config {
	cfg := Default()
	applyEnvOverrides(cfg)
	return cfg
}

// Validate reports settings that would prevent the server from starting.
func (c *Config) Validate() error {
	switch c.Cache.Backend {
	case "memory", "lru", "redis":
	default:
		return fmt.Errorf("unknown cache backend %q (want memory, lru or redis)", c.Cache.Backend)
	}
	if c.Aggregation.Timeout <= 0 {
		return fmt.Errorf("aggregation timeout must be positive, got %s", c.Aggregation.Timeout)
	}
	if c.Aggregation.MaxConcurrency < 0 {
		return fmt.Errorf("aggregation max concurrency must not be negative, got %d", c.Aggregation.MaxConcurrency)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret must not be empty")
	}
	return nil
}

// DSN returns the lib/pq connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Database, d.SSLMode,
	)
}

func registerFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Server.HTTPAddr, "http", cfg.Server.HTTPAddr, "HTTP server address")
	fs.DurationVar(&cfg.Cache.TTL, "cache-ttl", cfg.Cache.TTL, "Cache TTL for feeds and posts")
	fs.StringVar(&cfg.Cache.Backend, "cache-backend", cfg.Cache.Backend, "Cache backend: memory, lru or redis")
	fs.IntVar(&cfg.Cache.Size, "cache-size", cfg.Cache.Size, "Maximum entries for the lru cache backend")
	fs.StringVar(&cfg.Cache.RedisAddr, "redis-addr", cfg.Cache.RedisAddr, "Redis server address")
	fs.DurationVar(&cfg.Fetch.RateLimit, "rate-limit", cfg.Fetch.RateLimit, "Minimum delay between requests to same host")
	fs.DurationVar(&cfg.Fetch.Timeout, "fetch-timeout", cfg.Fetch.Timeout, "Timeout for a single feed request")
	fs.StringVar(&cfg.Fetch.AtomProxy, "atom-proxy", cfg.Fetch.AtomProxy, "Atom to RSS conversion endpoint")
	fs.DurationVar(&cfg.Aggregation.Timeout, "aggregate-timeout", cfg.Aggregation.Timeout, "Deadline shared by all branches of one aggregation")
	fs.IntVar(&cfg.Aggregation.MaxConcurrency, "max-concurrency", cfg.Aggregation.MaxConcurrency, "Maximum concurrent branches per aggregation (0 = unbounded)")
	fs.StringVar(&cfg.Logging.Level, "log-level", cfg.Logging.Level, "Log level (debug, info, warn, error)")
	fs.StringVar(&cfg.Database.Host, "db-host", cfg.Database.Host, "PostgreSQL host")
	fs.IntVar(&cfg.Database.Port, "db-port", cfg.Database.Port, "PostgreSQL port")
	fs.StringVar(&cfg.Database.User, "db-user", cfg.Database.User, "PostgreSQL user")
	fs.StringVar(&cfg.Database.Password, "db-password", cfg.Database.Password, "PostgreSQL password")
	fs.StringVar(&cfg.Database.Database, "db-name", cfg.Database.Database, "PostgreSQL database name")
	fs.StringVar(&cfg.Database.SSLMode, "db-sslmode", cfg.Database.SSLMode, "PostgreSQL SSL mode")
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Server.HTTPAddr, "HTTP_ADDR")
	setDuration(&cfg.Server.ShutdownTimeout, "SHUTDOWN_TIMEOUT")

	setString(&cfg.Cache.Backend, "CACHE_BACKEND")
	setDuration(&cfg.Cache.TTL, "CACHE_TTL")
	setInt(&cfg.Cache.Size, "CACHE_SIZE")
	setString(&cfg.Cache.RedisAddr, "REDIS_ADDR")
	setString(&cfg.Cache.RedisPassword, "REDIS_PASSWORD")
	setInt(&cfg.Cache.RedisDB, "REDIS_DB")

	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.Database, "DB_NAME")
	setString(&cfg.Database.SSLMode, "DB_SSLMODE")

	setString(&cfg.Logging.Level, "LOG_LEVEL")

	setString(&cfg.Auth.JWTSecret, "AUTH_JWT_SECRET")
	setString(&cfg.Auth.JWTIssuer, "AUTH_JWT_ISSUER")
	setString(&cfg.Auth.JWTAudience, "AUTH_JWT_AUDIENCE")
	setDuration(&cfg.Auth.AccessTokenTTL, "AUTH_ACCESS_TOKEN_TTL")

	setDuration(&cfg.Fetch.Timeout, "FETCH_TIMEOUT")
	setString(&cfg.Fetch.UserAgent, "FETCH_USER_AGENT")
	setString(&cfg.Fetch.AtomProxy, "ATOM_PROXY")
	setDuration(&cfg.Fetch.RateLimit, "RATE_LIMIT")

	setDuration(&cfg.Aggregation.Timeout, "AGGREGATE_TIMEOUT")
	setInt(&cfg.Aggregation.MaxConcurrency, "MAX_CONCURRENCY")

	setString(&cfg.YouTube.APIKey, "YOUTUBE_API_KEY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Unparseable values are ignored and the previous value is kept.
func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}
