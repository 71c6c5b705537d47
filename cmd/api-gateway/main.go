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

	_ "github.com/noah-isme/brosis-admin-api/api/swagger"
	"github.com/noah-isme/brosis-admin-api/internal/handler"
	internalmiddleware "github.com/noah-isme/brosis-admin-api/internal/middleware"
	"github.com/noah-isme/brosis-admin-api/internal/repository"
	"github.com/noah-isme/brosis-admin-api/internal/service"
	"github.com/noah-isme/brosis-admin-api/pkg/cache"
	"github.com/noah-isme/brosis-admin-api/pkg/config"
	"github.com/noah-isme/brosis-admin-api/pkg/database"
	"github.com/noah-isme/brosis-admin-api/pkg/jobs"
	"github.com/noah-isme/brosis-admin-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/brosis-admin-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/brosis-admin-api/pkg/middleware/requestid"
)

// @title BroSis Admin API
// @version 1.0.0
// @description Bulk onboarding, house distribution and BroSis matching for the admin console
// @BasePath /api/v1
// @schemes http
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

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

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer db.Close()

	redisClient, err := cache.NewRedis(ctx, cfg.Redis)
	if err != nil {
		logr.Warn("redis unavailable, catalog cache disabled", zap.Error(err))
		redisClient = nil
	}

	userRepo := repository.NewUserRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	catalogRepo := repository.NewCatalogRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	groupRepo := repository.NewGroupRepository(db)
	cacheRepo := repository.NewCacheRepository(redisClient, "brosis", logr)
	defer cacheRepo.Close() //nolint:errcheck

	metrics := service.NewMetricsService()
	validate := validator.New()

	var auditSvc *service.AuditService
	auditQueue := jobs.NewQueue("audit", func(ctx context.Context, job jobs.Job) error {
		return auditSvc.Handle(ctx, job)
	}, jobs.QueueConfig{
		Workers:    cfg.Audit.Workers,
		BufferSize: cfg.Audit.BufferSize,
		MaxRetries: cfg.Audit.MaxRetries,
		Logger:     logr,
	})
	auditSvc = service.NewAuditService(auditRepo, auditQueue, metrics, logr)
	auditQueue.Start(ctx)
	defer auditQueue.Stop()

	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Catalog.CacheTTL, logr, cfg.Catalog.CacheEnabled && redisClient != nil)
	authSvc := service.NewAuthService(userRepo, auditSvc, validate, logr, service.AuthConfig{
		AccessTokenSecret: cfg.JWT.Secret,
		AccessTokenExpiry: cfg.JWT.Expiration,
		Issuer:            cfg.JWT.Issuer,
	})
	catalogSvc := service.NewCatalogService(catalogRepo, cacheSvc, auditSvc, validate, logr)
	studentImportSvc := service.NewStudentImportService(studentRepo, catalogRepo, auditSvc, metrics, cfg.Import.ChunkSize, logr)
	userImportSvc := service.NewUserImportService(userRepo, catalogRepo, auditSvc, metrics, cfg.Import.ChunkSize, cfg.JWT.PasswordCost, logr)
	bulkUserSvc := service.NewBulkUserService(userRepo, auditSvc, metrics, validate, cfg.JWT.PasswordCost, logr)
	bulkStudentSvc := service.NewBulkStudentService(studentRepo, auditSvc, metrics, validate, logr)
	assignmentSvc := service.NewAssignmentService(studentRepo, userRepo, auditSvc, validate, logr)
	exportSvc := service.NewExportService(userRepo, auditSvc, validate, logr)
	studentSvc := service.NewStudentService(studentRepo, userRepo, catalogRepo, auditSvc, validate, logr)
	userSvc := service.NewUserService(userRepo, auditSvc, logr)
	groupSvc := service.NewGroupService(groupRepo, userRepo, auditSvc, validate, logr)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(internalmiddleware.Metrics(metrics))
	r.MaxMultipartMemory = cfg.Import.MaxUploadBytes

	metricsHandler := handler.NewMetricsHandler(metrics, map[string]handler.ReadinessCheck{
		"postgres": db.PingContext,
		"redis":    cacheRepo.Ping,
	})
	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Ready)
	r.GET("/metrics", metricsHandler.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	handler.Register(r.Group(cfg.APIPrefix), handler.Handlers{
		Auth:    handler.NewAuthHandler(authSvc),
		Catalog: handler.NewCatalogHandler(catalogSvc),
		Student: handler.NewStudentHandler(studentImportSvc, bulkStudentSvc, assignmentSvc, cfg.Import.MaxUploadBytes).WithRecords(studentSvc),
		User:    handler.NewUserHandler(userImportSvc, bulkUserSvc, exportSvc, cfg.Import.MaxUploadBytes).WithAccounts(userSvc),
		Group:   handler.NewGroupHandler(groupSvc),
		Metrics: metricsHandler,
	}, internalmiddleware.JWT(authSvc))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Sugar().Infow("server starting", "addr", srv.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Sugar().Errorw("server failed", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Sugar().Errorw("graceful shutdown failed", "error", err)
	}
	logr.Info("server stopped")
}
