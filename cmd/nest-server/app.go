package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"golang.org/x/sync/errgroup"

	_ "github.com/lib/pq"

	"nest/internal/config"
	"nest/internal/constants"
	"nest/internal/inbox"
	"nest/internal/logger"
	"nest/pkg/bootstrap"
	"nest/pkg/health"
	"nest/pkg/metrics"
	"nest/pkg/middleware"
	"nest/pkg/migrations"
	"nest/pkg/ratelimit"
	"nest/pkg/tracing"
)

type App struct {
	*bootstrap.Base
	dbConnector    *bootstrap.DatabaseConnector
	db             *sql.DB
	redis          *redis.Client
	binCache       *inbox.CachedBinRepository
	router         *gin.Engine
	server         *http.Server
	tracerProvider *tracing.Provider
}

func NewApp(cfg *config.Config, log logger.Logger) *App {
	return &App{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (a *App) Initialize(ctx context.Context) error {
	metrics.Register()

	tp, err := tracing.Init(a.Config.Tracing, constants.ServiceName)
	if err != nil {
		return fmt.Errorf("failed to initialize tracing: %w", err)
	}
	a.tracerProvider = tp

	if config.IsWeakToken(a.Config.Inbox.AdminToken) {
		a.Logger.WarnwCtx(ctx, "Admin token is weak; use a long random value")
	}

	if err := a.initDatabase(ctx); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	if err := a.InitPublisher(a.redisClient()); err != nil {
		return err
	}

	if err := a.initRouter(ctx); err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	a.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", a.Config.Server.Port),
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       a.Config.Server.ReadTimeout,
		WriteTimeout:      a.Config.Server.WriteTimeout,
	}
	return nil
}

// redisClient returns nil (not a typed nil) when redis is not configured.
func (a *App) redisClient() redis.UniversalClient {
	if a.redis == nil {
		return nil
	}
	return a.redis
}

func (a *App) initDatabase(ctx context.Context) error {
	if a.Config.Database.RunMigrations {
		if err := migrations.RunPostgres(a.Config.Database.Postgres.DSN()); err != nil {
			return fmt.Errorf("failed to run migrations: %w", err)
		}
		a.Logger.InfowCtx(ctx, "Database migrations applied")
	}

	db, err := a.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return err
	}
	a.db = db

	rdb, err := a.dbConnector.InitRedis(ctx)
	if err != nil {
		return err
	}
	a.redis = rdb

	go a.reportPoolStats(ctx)
	return nil
}

func (a *App) reportPoolStats(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := a.db.Stats()
			metrics.SetDatabaseConnections(stats.InUse, stats.Idle)
		}
	}
}

func (a *App) initRouter(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	router.Use(middleware.RequestID())
	router.Use(middleware.AccessLog(a.Logger))
	router.Use(middleware.Recover(a.Logger))
	if a.Config.Tracing.Enabled {
		router.Use(tracing.GinMiddleware(constants.ServiceName))
	}

	repo := inbox.NewRepository(a.db)
	guarded := inbox.NewCircuitBreakerRepository(repo, repo, a.Config.CircuitBreaker)

	binCache, err := inbox.NewCachedBinRepository(guarded, a.Config.Cache.BinCapacity)
	if err != nil {
		return err
	}
	a.binCache = binCache

	pipeline := inbox.NewIngestPipeline(binCache, guarded, a.Publisher, inbox.IngestConfig{
		MaxBodySize: a.Config.Inbox.MaxBodySize,
	}, a.Logger)

	svc := inbox.NewService(binCache, guarded, inbox.ServiceConfig{
		BaseURL:      a.Config.Server.BaseURL,
		DefaultLimit: a.Config.Inbox.DefaultLimit,
		MaxLimit:     a.Config.Inbox.MaxLimit,
	}, a.Logger)

	handler := inbox.NewHandler(svc, pipeline, inbox.HandlerConfig{
		RequestTimeout: a.Config.Server.RequestTimeout,
		MaxLimit:       a.Config.Inbox.MaxLimit,
	}, a.Logger)

	var ingestMiddleware []gin.HandlerFunc
	if rl := a.Config.RateLimit; rl.Enabled {
		ingestMiddleware = append(ingestMiddleware, ratelimit.RateLimitMiddleware(ctx, ratelimit.RateLimitConfig{
			RPS:             rl.RPS,
			Burst:           rl.Burst,
			CleanupInterval: time.Duration(rl.CleanupInterval) * time.Second,
			MaxAge:          time.Duration(rl.MaxAge) * time.Second,
			KeyFunc: func(c *gin.Context) string {
				if ip := inbox.ClientIP(c.Request); ip != nil {
					return *ip
				}
				return c.ClientIP()
			},
		}))
		a.Logger.InfowCtx(ctx, "Ingest rate limiting enabled", "rps", rl.RPS, "burst", rl.Burst)
	}

	handler.RegisterIngestRoutes(router, ingestMiddleware...)
	handler.RegisterAdminRoutes(router, middleware.AdminAuthMiddleware(a.Config.Inbox.AdminToken))

	probes := health.NewRegistry(constants.Version, 5*time.Second)
	probes.Add("postgresql", health.Ping(a.db))
	if a.redis != nil {
		probes.Add("redis", health.RedisPing(a.redis))
	}
	router.GET("/health", probes.LivenessHandler)
	router.GET("/ready", probes.ReadinessHandler)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	a.Logger.InfowCtx(ctx, "Routes registered",
		"notifier", a.Publisher.Name(),
		"circuit_breaker", guarded.State(),
		"max_body_size", a.Config.Inbox.MaxBodySize,
	)

	a.router = router
	return nil
}

func (a *App) Run(ctx context.Context) error {
	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.Logger.InfowCtx(ctx, "HTTP server starting", "port", a.Config.Server.Port)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gCtx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
		defer cancel()
		if err := a.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Base.Shutdown(ctx, func(ctx context.Context) []error {
		var errs []error

		if a.tracerProvider != nil {
			tCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := a.tracerProvider.Shutdown(tCtx); err != nil {
				errs = append(errs, fmt.Errorf("tracer provider shutdown error: %w", err))
			}
		}

		if a.binCache != nil {
			a.binCache.Close()
		}

		errs = append(errs, a.dbConnector.ShutdownDatabases(a.redis, a.db)...)
		return errs
	})
}
