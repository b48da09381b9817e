package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/johnrirwin/feedmix/internal/aggregator"
	"github.com/johnrirwin/feedmix/internal/auth"
	"github.com/johnrirwin/feedmix/internal/cache"
	"github.com/johnrirwin/feedmix/internal/config"
	"github.com/johnrirwin/feedmix/internal/database"
	"github.com/johnrirwin/feedmix/internal/httpapi"
	"github.com/johnrirwin/feedmix/internal/logging"
	"github.com/johnrirwin/feedmix/internal/normalizer"
	"github.com/johnrirwin/feedmix/internal/ratelimit"
	"github.com/johnrirwin/feedmix/internal/sources"
)

// App holds all application dependencies
type App struct {
	Config         *config.Config
	Logger         *logging.Logger
	Cache          cache.Cache
	Store          *cache.Store
	Fetcher        *sources.FeedFetcher
	Normalizer     *normalizer.Normalizer
	Registry       *sources.Registry
	Channels       *sources.ChannelResolver
	Engine         *aggregator.Engine
	Accounts       *database.AccountStore
	Sources        *database.SourceStore
	Posts          *database.PostStore
	AuthService    *auth.Service
	AuthMiddleware *auth.Middleware
	HTTPServer     *httpapi.Server
	db             *database.DB
	sanitizer      *normalizer.PolicySanitizer
}

// NewPipeline builds the logger, cache and fetch/normalize pipeline without
// touching the database. Commands that only read feeds use it directly; its
// Engine aggregates sources only.
func NewPipeline(cfg *config.Config) *App {
	app := &App{Config: cfg}
	app.Logger = app.initLogger()
	app.Cache = app.initCache()
	app.Store = cache.NewStore(app.Cache)
	app.initPipeline()
	return app
}

// New creates and initializes a new App instance, connecting to PostgreSQL
// and applying pending migrations.
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := NewPipeline(cfg)

	if err := app.initDatabaseServices(ctx); err != nil {
		app.closeCache()
		return nil, err
	}

	app.Engine = aggregator.New(app.Fetcher, app.Normalizer, app.Store, app.Accounts, app.Posts, app.aggregationConfig(), app.Logger)

	app.initServers()
	return app, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("Starting HTTP server", logging.WithField("addr", a.Config.Server.HTTPAddr))

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.HTTPServer.Start(a.Config.Server.HTTPAddr)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		return nil
	}
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown(ctx context.Context) error {
	if a.HTTPServer != nil {
		if err := a.HTTPServer.Shutdown(ctx); err != nil {
			a.Logger.Error("HTTP server shutdown error", logging.WithField("error", err.Error()))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.Logger.Error("Database close error", logging.WithField("error", err.Error()))
		}
	}
	a.closeCache()
	return nil
}

func (a *App) initLogger() *logging.Logger {
	return logging.New(logging.ParseLevel(a.Config.Logging.Level))
}

func (a *App) initCache() cache.Cache {
	cfg := a.Config.Cache
	switch cfg.Backend {
	case "redis":
		a.Logger.Info("Using Redis cache backend", logging.WithField("addr", cfg.RedisAddr))
		redisCache, err := cache.NewRedis(cache.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Prefix:   "feedmix:",
		}, cfg.TTL)
		if err != nil {
			a.Logger.Error("Failed to connect to Redis, falling back to memory cache", logging.WithField("error", err.Error()))
			return cache.NewMemory(cfg.TTL)
		}
		return redisCache
	case "lru":
		a.Logger.Info("Using LRU cache backend", logging.WithField("size", cfg.Size))
		return cache.NewLRU(cfg.Size, cfg.TTL)
	default:
		a.Logger.Info("Using in-memory cache backend")
		return cache.NewMemory(cfg.TTL)
	}
}

func (a *App) closeCache() {
	switch c := a.Cache.(type) {
	case *cache.MemoryCache:
		c.Stop()
	case *cache.RedisCache:
		if err := c.Close(); err != nil {
			a.Logger.Warn("Redis close error", logging.WithField("error", err.Error()))
		}
	}
}

func (a *App) initPipeline() {
	cfg := a.Config.Fetch
	limiter := ratelimit.New(cfg.RateLimit)
	client := &http.Client{Timeout: cfg.Timeout}

	a.Fetcher = sources.NewFeedFetcher(client, limiter, sources.FetcherConfig{
		Timeout:   cfg.Timeout,
		UserAgent: cfg.UserAgent,
		AtomProxy: cfg.AtomProxy,
	}, a.Logger)
	a.sanitizer = normalizer.NewBasicSanitizer()
	a.Normalizer = normalizer.New(a.sanitizer, a.Store, a.Logger)
	a.Channels = sources.NewChannelResolver(client, a.Config.YouTube.APIKey, a.Logger)
	a.Registry = sources.NewRegistry(a.Channels)
	// Without a database there are no followed users to merge.
	a.Engine = aggregator.New(a.Fetcher, a.Normalizer, a.Store, nil, nil, a.aggregationConfig(), a.Logger)
}

func (a *App) aggregationConfig() aggregator.Config {
	return aggregator.Config{
		Timeout:        a.Config.Aggregation.Timeout,
		MaxConcurrency: a.Config.Aggregation.MaxConcurrency,
	}
}

func (a *App) initDatabaseServices(ctx context.Context) error {
	db, err := database.New(ctx, DatabaseConfig(a.Config.Database), a.Logger)
	if err != nil {
		return fmt.Errorf("connect to PostgreSQL: %w", err)
	}
	a.Logger.Info("Connected to PostgreSQL")

	version, err := db.Migrate()
	if err != nil {
		db.Close()
		return fmt.Errorf("run migrations: %w", err)
	}
	a.Logger.Info("Database migrated", logging.WithField("version", version))

	a.db = db
	a.Accounts = database.NewAccountStore(db)
	a.Sources = database.NewSourceStore(db)
	a.Posts = database.NewPostStore(db)

	a.AuthService = auth.NewService(a.Accounts, a.Config.Auth, a.Logger)
	a.AuthMiddleware = auth.NewMiddleware(a.AuthService)
	a.Logger.Info("Authentication service initialized")
	return nil
}

// DatabaseConfig maps the application settings onto the pool defaults.
func DatabaseConfig(c config.DatabaseConfig) database.Config {
	dbConfig := database.DefaultConfig()
	dbConfig.Host = c.Host
	dbConfig.Port = c.Port
	dbConfig.User = c.User
	dbConfig.Password = c.Password
	dbConfig.Database = c.Database
	dbConfig.SSLMode = c.SSLMode
	return dbConfig
}

func (a *App) initServers() {
	a.HTTPServer = httpapi.New(a.Engine, a.Accounts, a.Sources, a.Posts, a.Registry, a.sanitizer, a.AuthService, a.AuthMiddleware, a.Logger)
}
