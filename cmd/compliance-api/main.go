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
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	_ "github.com/noah-isme/sma-docs-api/api/swagger"
	"github.com/noah-isme/sma-docs-api/internal/handler"
	"github.com/noah-isme/sma-docs-api/internal/middleware"
	"github.com/noah-isme/sma-docs-api/internal/repository"
	"github.com/noah-isme/sma-docs-api/internal/service"
	"github.com/noah-isme/sma-docs-api/pkg/advisor"
	"github.com/noah-isme/sma-docs-api/pkg/cache"
	"github.com/noah-isme/sma-docs-api/pkg/config"
	"github.com/noah-isme/sma-docs-api/pkg/database"
	"github.com/noah-isme/sma-docs-api/pkg/events"
	"github.com/noah-isme/sma-docs-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/sma-docs-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/sma-docs-api/pkg/middleware/requestid"
	"github.com/noah-isme/sma-docs-api/pkg/storage"
)

// @title Student Document Compliance API
// @version 1.0.0
// @description Requirement catalog, document review workflow and per-student compliance views
// @BasePath /api/v1
// @schemes http https
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

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.NewPostgres(ctx, cfg.Database)
	if err != nil {
		logr.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer db.Close() //nolint:errcheck

	app, err := buildApp(ctx, cfg, db, logr)
	if err != nil {
		logr.Fatal("failed to wire application", zap.Error(err))
	}
	defer app.close()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Port),
		Handler:           app.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logr.Info("server starting", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logr.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logr.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logr.Error("graceful shutdown failed", zap.Error(err))
	}
}

type app struct {
	router     *gin.Engine
	dispatcher *service.EventDispatcher
	publisher  events.Publisher
	redis      *redis.Client
}

func (a *app) close() {
	a.dispatcher.Stop()
	if a.publisher != nil {
		_ = a.publisher.Close()
	}
	if a.redis != nil {
		_ = a.redis.Close()
	}
}

func buildApp(ctx context.Context, cfg *config.Config, db *sqlx.DB, logr *zap.Logger) (*app, error) {
	metrics := service.NewMetricsService()

	var redisClient *redis.Client
	if cfg.Compliance.CacheEnabled {
		client, err := cache.NewRedis(ctx, cfg.Redis)
		if err != nil {
			logr.Warn("redis unavailable, compliance cache disabled", zap.Error(err))
		} else {
			redisClient = client
		}
	}
	cacheRepo := repository.NewCacheRepository(redisClient, logr)
	cacheSvc := service.NewCacheService(cacheRepo, metrics, cfg.Compliance.CacheTTL, logr, redisClient != nil)

	blobs, err := storage.NewLocalStorage(cfg.Documents.StorageDir)
	if err != nil {
		return nil, err
	}
	signer := storage.NewSignedURLSigner(cfg.Documents.SignedURLSecret, cfg.Documents.SignedURLTTL)

	tokens, err := service.NewTokenService(cfg.JWT.Secret, cfg.JWT.Issuer)
	if err != nil {
		return nil, err
	}

	publisher, err := newPublisher(cfg.Events, logr)
	if err != nil {
		return nil, err
	}
	dispatcher := service.NewEventDispatcher(publisher, metrics, logr.Named("events"), service.EventDispatcherConfig{
		Workers:    cfg.Events.Workers,
		MaxRetries: cfg.Events.MaxRetries,
	})
	dispatcher.Start(ctx)

	requirementRepo := repository.NewRequirementRepository(db)
	documentRepo := repository.NewDocumentRepository(db)
	studentRepo := repository.NewStudentRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	validate := validator.New()
	catalogSvc := service.NewCatalogService(requirementRepo, auditRepo, cacheSvc, validate, logr.Named("catalog"))
	submissionSvc := service.NewSubmissionService(service.SubmissionServiceParams{
		Documents: documentRepo,
		Templates: requirementRepo,
		Students:  studentRepo,
		Blobs:     blobs,
		Signer:    signer,
		Events:    dispatcher,
		Audit:     auditRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr.Named("submission"),
		Config: service.SubmissionServiceConfig{
			MaxFileSize:        cfg.Documents.MaxFileSizeBytes,
			AllowedMIMEs:       cfg.Documents.AllowedMIMEs,
			APIPrefix:          cfg.APIPrefix,
			PublicBaseURL:      cfg.Documents.PublicBaseURL,
			AlertLookaheadDays: cfg.Compliance.AlertLookaheadDays,
		},
	})

	var oracle service.ReviewOracle
	if cfg.Advisor.Enabled {
		client, err := advisor.NewClient(advisor.Config{
			BaseURL:   cfg.Advisor.BaseURL,
			APIKey:    cfg.Advisor.APIKey,
			Timeout:   cfg.Advisor.Timeout,
			RateLimit: cfg.Advisor.RateLimit,
			Burst:     cfg.Advisor.Burst,
		})
		if err != nil {
			return nil, fmt.Errorf("advisor: %w", err)
		}
		oracle = client
	}
	reviewSvc := service.NewReviewService(service.ReviewServiceParams{
		Documents: documentRepo,
		Templates: requirementRepo,
		Blobs:     blobs,
		Oracle:    oracle,
		Linker:    submissionSvc,
		Events:    dispatcher,
		Audit:     auditRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Validator: validate,
		Logger:    logr.Named("review"),
	})
	complianceSvc := service.NewComplianceService(service.ComplianceServiceParams{
		Students:  studentRepo,
		Templates: requirementRepo,
		Documents: documentRepo,
		Cache:     cacheSvc,
		Metrics:   metrics,
		Logger:    logr.Named("compliance"),
		Config: service.ComplianceServiceConfig{
			AlertLookaheadDays: cfg.Compliance.AlertLookaheadDays,
			CacheTTL:           cfg.Compliance.CacheTTL,
		},
	})
	exportSvc := service.NewExportService(complianceSvc, studentRepo, logr.Named("export"))

	checks := map[string]handler.Pinger{"postgres": db}
	if redisClient != nil {
		checks["redis"] = handler.PingerFunc(cacheRepo.Ping)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metrics))

	registerRoutes(r, cfg, routes{
		tokens:       tokens,
		audit:        auditRepo,
		requirements: handler.NewRequirementHandler(catalogSvc),
		documents:    handler.NewDocumentHandler(submissionSvc, reviewSvc),
		reviews:      handler.NewReviewHandler(reviewSvc),
		compliance:   handler.NewComplianceHandler(complianceSvc, exportSvc),
		metrics:      handler.NewMetricsHandler(metrics, checks),
	})

	return &app{router: r, dispatcher: dispatcher, publisher: publisher, redis: redisClient}, nil
}

func newPublisher(cfg config.EventsConfig, logr *zap.Logger) (events.Publisher, error) {
	if !cfg.KafkaEnabled {
		return events.NewLogPublisher(logr.Named("events")), nil
	}
	publisher, err := events.NewKafkaPublisher(events.KafkaConfig{
		Brokers: cfg.KafkaBrokers,
		Topic:   cfg.KafkaTopic,
	})
	if err != nil {
		return nil, fmt.Errorf("kafka publisher: %w", err)
	}
	logr.Info("publishing document events to kafka", zap.Strings("brokers", cfg.KafkaBrokers), zap.String("topic", cfg.KafkaTopic))
	return publisher, nil
}
