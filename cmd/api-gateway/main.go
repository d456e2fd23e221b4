package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-records/api/swagger"
	"github.com/noah-isme/sma-records/internal/handler"
	internalmiddleware "github.com/noah-isme/sma-records/internal/middleware"
	"github.com/noah-isme/sma-records/internal/repository"
	"github.com/noah-isme/sma-records/internal/service"
	"github.com/noah-isme/sma-records/pkg/cache"
	"github.com/noah-isme/sma-records/pkg/config"
	"github.com/noah-isme/sma-records/pkg/database"
	"github.com/noah-isme/sma-records/pkg/export"
	"github.com/noah-isme/sma-records/pkg/jobs"
	"github.com/noah-isme/sma-records/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-records/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-records/pkg/middleware/requestid"
	"github.com/noah-isme/sma-records/pkg/storage"
)

const shutdownTimeout = 10 * time.Second

// @title SMA Records API
// @version 1.0.0
// @description Students, instructors and courses with two-sided relationship integrity.
// @BasePath /api/v1
// @schemes http

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg.Env, cfg.Log)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logr); err != nil {
		logr.Fatal("server failed", zap.Error(err))
	}
}

func run(ctx context.Context, cfg *config.Config, logr *zap.Logger) error {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	db, err := database.NewSQLite(cfg.Database)
	if err != nil {
		return err
	}

	metrics := service.NewMetricsService()
	store, err := repository.NewStore(db, logr, metrics)
	if err != nil {
		_ = db.Close()
		return err
	}
	defer store.Close() //nolint:errcheck
	store.SetPageSize(cfg.Database.ListPageSize)

	var cacheSvc *service.CacheService
	if cfg.Exports.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("export cache disabled", zap.String("addr", cache.Addr(cfg.Redis)), zap.Error(err))
		} else {
			cacheRepo := repository.NewCacheRepository(client, logr)
			defer cacheRepo.Close() //nolint:errcheck
			cacheSvc = service.NewCacheService(cacheRepo, metrics, cfg.Exports.CacheTTL, logr, true)
		}
	}

	files, err := storage.NewLocalStorage(cfg.Backups.Dir)
	if err != nil {
		return fmt.Errorf("prepare backup directory: %w", err)
	}

	validate := validator.New()
	records := service.NewRecordService(store, validate, metrics, logr)
	search := service.NewSearchService(store, logr)
	transfer := service.NewTransferService(store, cacheSvc, validate, metrics, logr, export.NewCSVExporter(), export.NewPDFExporter())
	backups := service.NewBackupService(store, files, service.BackupConfig{Retention: cfg.Backups.Retention}, logr)

	if cfg.Backups.Interval > 0 {
		queue := jobs.NewQueue("backups", backups.RunJob, jobs.QueueConfig{MaxRetries: 2, RetryDelay: 30 * time.Second, Logger: logr})
		queue.Start(ctx)
		defer queue.Stop()
		go queue.Every(ctx, cfg.Backups.Interval, service.BackupJobType)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics, "/metrics", "/health", "/ready"))

	handler.RegisterRoutes(r, cfg.APIPrefix, handler.Handlers{
		Records:  handler.NewRecordHandler(records),
		Search:   handler.NewSearchHandler(search),
		Transfer: handler.NewTransferHandler(transfer),
		Backups:  handler.NewBackupHandler(backups),
		Metrics:  handler.NewMetricsHandler(metrics, store),
	})

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env), zap.String("database", cfg.Database.Path))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
