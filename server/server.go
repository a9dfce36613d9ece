package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"truthlens-api/config"
	"truthlens-api/handlers"
	"truthlens-api/logging"
	"truthlens-api/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const shutdownTimeout = 30 * time.Second

// App holds the long-lived collaborators of a running service.
type App struct {
	Config   *config.Config
	Logger   logging.Logger
	KV       *services.KVStore
	DB       *gorm.DB
	Users    *services.UserStore
	Registry *prometheus.Registry
	Metrics  *services.Metrics
	Store    *services.PredictionStore
	Analyzer *services.Analyzer
	Limiter  *services.GuestLimiter
	Auth     *services.AuthService
	Feed     *services.NewsFeed
}

// New connects to Redis (required) and PostgreSQL (optional) and assembles
// the pipeline.
func New(cfg *config.Config, logger logging.Logger) (*App, error) {
	kv, err := services.NewKVStore(cfg.Redis, logger)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := services.NewMetrics(registry)

	store := services.NewPredictionStore(kv, logger)
	analyzer := NewAnalyzer(cfg, store, logger, metrics)

	app := &App{
		Config:   cfg,
		Logger:   logger,
		KV:       kv,
		Registry: registry,
		Metrics:  metrics,
		Store:    store,
		Analyzer: analyzer,
		Limiter: services.NewGuestLimiter(kv, cfg.Analysis.GuestRequestLimit,
			time.Duration(cfg.Analysis.GuestWindowHours)*time.Hour, logger, metrics),
		Auth: services.NewAuthService(cfg.JWT),
		Feed: services.NewNewsFeed(cfg.Feed, kv, logger),
	}

	if cfg.Database.Enabled {
		db, err := openDatabase(cfg.Database)
		if err != nil {
			logger.WithError(err).Warn("User database unavailable, auth and votes are disabled")
		} else {
			users := services.NewUserStore(db)
			if err := users.Migrate(); err != nil {
				logger.WithError(err).Warn("User database migration failed, auth and votes are disabled")
			} else {
				app.DB = db
				app.Users = users
			}
		}
	}

	return app, nil
}

// NewAnalyzer builds the verification pipeline from configuration. store may
// be nil when records are never persisted.
func NewAnalyzer(cfg *config.Config, store *services.PredictionStore, logger logging.Logger, metrics *services.Metrics) *services.Analyzer {
	model := services.NewLLMClient(cfg.LLM)

	var provider services.SearchProvider
	if cfg.Search.Provider == "tavily" {
		tavily, err := services.NewTavilyProvider(cfg.Search.APIKey, cfg.Search.APIURL)
		if err != nil {
			logger.WithError(err).Warn("Tavily search disabled, using generated sources")
		} else {
			provider = tavily
		}
	}

	fetcher := services.NewReadabilityFetcher(time.Duration(cfg.Analysis.URLFetchTimeoutSec) * time.Second)
	interval := time.Duration(cfg.Analysis.SearchIntervalMS) * time.Millisecond

	logger.WithFields(logging.Fields{
		"model_available": model.Available(),
		"model":           cfg.LLM.Model,
		"search_provider": cfg.Search.Provider,
	}).Info("Verification pipeline configured")

	return services.NewAnalyzer(services.AnalyzerDeps{
		Model:       model,
		Resolver:    services.NewContentResolver(fetcher, logger),
		Extractor:   services.NewClaimExtractor(model, logger, metrics),
		Searcher:    services.NewSourceSearcher(cfg.Analysis.TrustedDomains, interval, provider, logger, metrics),
		Synthesizer: services.NewVerdictSynthesizer(model, logger, metrics),
		Store:       store,
		Logger:      logger,
		Metrics:     metrics,
	})
}

func openDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(cfg.GetDSN()), &gorm.Config{
		TranslateError: true,
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sql handle: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return db, nil
}

// Router wires the HTTP surface. Database-backed endpoints answer 503 when
// no database is connected.
func (a *App) Router() *gin.Engine {
	deps := handlers.RouterDeps{
		Config:   a.Config,
		Logger:   a.Logger,
		Analyzer: a.Analyzer,
		Limiter:  a.Limiter,
		Store:    a.Store,
		KV:       a.KV,
		Auth:     a.Auth,
		Feed:     a.Feed,
		Gatherer: a.Registry,
	}
	if a.Users != nil {
		deps.Users = a.Users
		deps.Votes = a.Users
		deps.DB = a.Users
	}
	return handlers.NewRouter(deps)
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	scheduler, err := a.newScheduler(ctx)
	if err != nil {
		return err
	}
	scheduler.Start()
	defer func() { <-scheduler.Stop().Done() }()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:      a.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.WithFields(logging.Fields{
			"port":       a.Config.Server.Port,
			"api_prefix": a.Config.Server.APIPrefix,
		}).Info("Starting HTTP server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.Logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.Logger.Info("Server stopped")
	return nil
}

func (a *App) Close() {
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := a.KV.Close(); err != nil {
		a.Logger.WithError(err).Warn("Redis close failed")
	}
}
