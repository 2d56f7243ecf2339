package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/course-planner-api/internal/handler"
	"github.com/noah-isme/course-planner-api/internal/repository"
	"github.com/noah-isme/course-planner-api/internal/router"
	"github.com/noah-isme/course-planner-api/internal/service"
	"github.com/noah-isme/course-planner-api/pkg/cache"
	"github.com/noah-isme/course-planner-api/pkg/config"
	"github.com/noah-isme/course-planner-api/pkg/database"
	"github.com/noah-isme/course-planner-api/pkg/events"
	"github.com/noah-isme/course-planner-api/pkg/jobs"
	"github.com/noah-isme/course-planner-api/pkg/logger"
)

// @title Course Planner API
// @version 1.0.0
// @description Course catalog, personal plan with conflict detection, and rotating refresh sessions.
// @BasePath /api
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewPostgres(cfg.Database)
	if err != nil {
		logr.Fatal("database connection failed", zap.Error(err))
	}
	defer db.Close()

	if cfg.Database.RunMigrations {
		if err := database.RunMigrations(db.DB, logr); err != nil {
			logr.Fatal("database migration failed", zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache and rate limiting disabled", zap.Error(err))
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	metrics := service.NewMetricsService()
	publisher, closeEvents := newPublisher(ctx, cfg.Events, metrics, logr)
	defer closeEvents()

	users := repository.NewUserRepository(db)
	tokens := repository.NewRefreshTokenRepository(db)
	courses := repository.NewCourseRepository(db)
	sections := repository.NewSectionRepository(db)
	plans := repository.NewPlannerRepository(db)

	validate := validator.New()
	cacheSvc := service.NewCacheService(repository.NewCacheRepository(rdb, "planner", logr), metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && rdb != nil)

	authSvc := service.NewAuthService(users, tokens, validate, logr, service.AuthConfig{
		AccessTokenSecret:  cfg.JWT.AccessSecret,
		AccessTokenExpiry:  cfg.JWT.AccessTTL,
		RefreshTokenExpiry: cfg.JWT.RefreshTTL,
		Issuer:             cfg.JWT.Issuer,
	}, publisher, metrics)
	plannerSvc := service.NewPlannerService(courses, plans, validate, logr, publisher, metrics)
	catalogSvc := service.NewCatalogService(courses, sections, plans, cacheSvc, cfg.Catalog.CacheTTL, logr)
	exportSvc := service.NewPlanExportService(plannerSvc)

	engine := router.Setup(router.Deps{
		Config:  cfg,
		Logger:  logr,
		Metrics: metrics,
		Tokens:  authSvc,
		Redis:   rdb,
	}, router.Handlers{
		Auth: handler.NewAuthHandler(authSvc, handler.CookieConfig{
			Name:   cfg.Cookie.Name,
			Path:   cfg.Cookie.Path,
			Domain: cfg.Cookie.Domain,
			Secure: cfg.Cookie.Secure,
		}),
		Catalog: handler.NewCatalogHandler(catalogSvc),
		Planner: handler.NewPlannerHandler(plannerSvc, exportSvc),
		Ops:     handler.NewMetricsHandler(metrics, db),
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("server shutdown failed", zap.Error(err))
	}
	logr.Info("server stopped")
}

// newPublisher wires RabbitMQ behind the async worker queue when events are enabled.
func newPublisher(ctx context.Context, cfg config.EventsConfig, metrics *service.MetricsService, logr *zap.Logger) (events.Publisher, func()) {
	if !cfg.Enabled || cfg.URL == "" {
		return events.Nop{}, func() {}
	}
	broker := events.NewAMQPPublisher(cfg.URL, cfg.Queue, logr)
	async := events.NewAsyncPublisher(broker, jobs.QueueConfig{
		Workers:    cfg.Workers,
		MaxRetries: cfg.MaxRetries,
		RetryDelay: time.Second,
		Logger:     logr,
		Depth:      func(n int) { metrics.SetQueueDepth("events", n) },
	})
	async.Start(ctx)
	return async, func() {
		async.Stop()
		if err := broker.Close(); err != nil {
			logr.Warn("amqp close failed", zap.Error(err))
		}
	}
}
