package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"github.com/dominic-g/wp-api-rate-limiter/config"
	delivery "github.com/dominic-g/wp-api-rate-limiter/delivery/http"
	"github.com/dominic-g/wp-api-rate-limiter/domain/service"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/database/postgres"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/geoip"
	"github.com/dominic-g/wp-api-rate-limiter/infrastructure/ratelimit"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/logging"
	"github.com/dominic-g/wp-api-rate-limiter/pkg/metrics"
	"github.com/dominic-g/wp-api-rate-limiter/usecase"
)

const (
	ServiceName = "wp-api-rate-limiter"
	Version     = "1.0.0"
)

// Application wires the admission control service together.
type Application struct {
	config     *config.Config
	logger     *logging.Logger
	collector  *metrics.Collector
	httpServer *http.Server

	redisClient *redis.Client
	database    *postgres.ConnectionManager
	audit       *usecase.AuditService

	cancel   context.CancelFunc
	shutdown chan os.Signal
}

func main() {
	configPath := flag.String("config", "", "path to configuration file")
	flag.Parse()

	app, err := NewApplication(*configPath)
	if err != nil {
		fmt.Printf("Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	if err := app.Start(); err != nil {
		app.logger.Fatal("Failed to start application", zap.Error(err))
	}

	app.WaitForShutdown()

	if err := app.Stop(); err != nil {
		app.logger.Error("Error during shutdown", zap.Error(err))
		os.Exit(1)
	}

	app.logger.Info("Application stopped successfully")
}

// NewApplication creates a new application instance
func NewApplication(configPath string) (*Application, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	logger.Info("Starting admission control service",
		zap.String("service", ServiceName),
		zap.String("version", Version),
		zap.String("environment", cfg.Environment),
	)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	ctx, cancel := context.WithCancel(context.Background())

	app := &Application{
		config:    cfg,
		logger:    logger,
		collector: metrics.NewCollector(cfg.Metrics.Namespace),
		cancel:    cancel,
		shutdown:  shutdown,
	}

	if err := app.initDependencies(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	return app, nil
}

// initDependencies connects external systems and builds the object graph.
func (app *Application) initDependencies(ctx context.Context) error {
	cfg := app.config

	app.redisClient = redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.Database,
		PoolSize:     cfg.Redis.PoolSize,
		DialTimeout:  cfg.Redis.DialTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := app.redisClient.Ping(pingCtx).Err(); err != nil {
		// The counter store may come up later; the fallback counter keeps
		// limits enforced per instance until it does.
		app.logger.Warn("counter store unreachable at startup", zap.Error(err))
	}

	database, err := postgres.NewConnectionManager(&cfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.database = database

	if err := database.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	db := database.GetDB()
	auditRepo := postgres.NewAuditRepository(db)
	geoRepo := postgres.NewGeoRepository(db)
	settingsRepo := postgres.NewSettingsRepository(db)

	app.audit = usecase.NewAuditService(auditRepo, cfg.Audit, app.logger, app.collector)
	app.audit.Start(ctx)

	limits := usecase.NewSettingsLimitProvider(settingsRepo, cfg.RateLimit, app.logger, app.collector)

	var counters service.CounterStore = ratelimit.NewRedisCounter(app.redisClient, app.logger)
	if cfg.RateLimit.MemoryFallback {
		counters = ratelimit.NewFallbackCounter(counters, ratelimit.NewMemoryCounter(), app.logger, app.collector)
	}

	rules := usecase.NewRulesEngine(counters, limits, app.logger, app.collector)
	enforcer := usecase.NewPolicyEnforcer()

	geo, err := app.buildGeoResolver(geoRepo)
	if err != nil {
		return err
	}

	identity := delivery.NewIdentityExtractor(cfg.Auth)
	admission := delivery.NewAdmissionMiddleware(rules, enforcer, geo, app.audit, identity, app.logger)
	admin := delivery.NewAdminHandler(app.audit, limits, geo, app.logger)

	router := delivery.NewRouter(cfg, delivery.RouterDeps{
		Admission: admission,
		Admin:     admin,
		Identity:  identity,
		Collector: app.collector,
		Logger:    app.logger,
		HealthPingers: map[string]func() error{
			"redis": func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return app.redisClient.Ping(ctx).Err()
			},
			"postgres": func() error {
				ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
				defer cancel()
				return database.HealthCheck(ctx)
			},
		},
		Protected: map[string]gin.HandlerFunc{
			"GET /api/status": func(c *gin.Context) {
				c.JSON(http.StatusOK, gin.H{
					"service": ServiceName,
					"version": Version,
				})
			},
		},
	})

	app.httpServer = &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        router,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: cfg.Server.MaxHeaderBytes,
	}

	return nil
}

// buildGeoResolver assembles the tiered resolver from configuration.
func (app *Application) buildGeoResolver(repo service.GeoRepository) (service.GeoResolver, error) {
	cfg := app.config.GeoIP
	if !cfg.Enabled {
		return nil, nil
	}

	var providers []service.GeoProvider
	if cfg.ProviderAURL != "" {
		providers = append(providers, geoip.NewResilientProvider(
			geoip.NewIPAPIProvider(cfg.ProviderAURL, cfg.ProviderTimeout),
			cfg.ProviderRatePerMinute, app.logger))
	}
	if cfg.ProviderBURL != "" {
		providers = append(providers, geoip.NewResilientProvider(
			geoip.NewIPWhoisProvider(cfg.ProviderBURL, cfg.ProviderTimeout),
			cfg.ProviderRatePerMinute, app.logger))
	}

	var dataset service.RangeResolver
	if cfg.DatasetPath != "" {
		ds, err := geoip.LoadStaticDataset(cfg.DatasetPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load geoip dataset: %w", err)
		}
		app.logger.Info("loaded geoip fallback dataset",
			zap.String("path", cfg.DatasetPath),
			zap.Int("ranges", ds.Len()),
		)
		dataset = ds
	}

	return usecase.NewGeoResolver(usecase.GeoResolverOptions{
		Memory:     geoip.NewMemoryCache(cfg.MemoryCacheTTL),
		Repository: repo,
		Providers:  providers,
		Dataset:    dataset,
		Freshness:  cfg.FreshnessWindow,
	}, app.logger, app.collector), nil
}

// Start begins serving HTTP traffic.
func (app *Application) Start() error {
	go func() {
		app.logger.Info("HTTP server listening", zap.String("addr", app.httpServer.Addr))
		if err := app.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			app.logger.Error("HTTP server failed", zap.Error(err))
			app.shutdown <- syscall.SIGTERM
		}
	}()
	return nil
}

// WaitForShutdown blocks until a termination signal arrives.
func (app *Application) WaitForShutdown() {
	sig := <-app.shutdown
	app.logger.Info("Shutdown signal received", zap.String("signal", sig.String()))
}

// Stop drains the server and background workers.
func (app *Application) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	var firstErr error

	if err := app.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("failed to drain HTTP server: %w", err)
	}

	app.cancel()
	app.audit.Stop()

	if err := app.redisClient.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close redis client: %w", err)
	}
	if err := app.database.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("failed to close database: %w", err)
	}

	return firstErr
}
