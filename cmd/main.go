package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"document-portal/internal/app"
	"document-portal/internal/config"
	"document-portal/internal/logger"
	"document-portal/internal/queue"
	"document-portal/internal/scheduler"
	"document-portal/internal/telemetry"
	"document-portal/middleware"
	"document-portal/routes"
	"document-portal/services"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	ctx := context.Background()

	if cfg.TracingEnabled {
		shutdownTracer, err := telemetry.InitTracer(ctx, cfg.ServiceName, cfg.OTLPEndpoint, 1.0)
		if err != nil {
			logger.Warn("Tracing disabled", "error", err)
		} else {
			defer shutdownTracer()
		}
	}
	metrics, err := telemetry.InitMetrics(cfg.ServiceName)
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	// Redis backs the rate limiter, the redis history store and the task queue
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = config.NewRedisClient(cfg)
		if err != nil {
			if cfg.HistoryBackend == config.HistoryBackendRedis {
				log.Fatal("Failed to connect to Redis:", err)
			}
			logger.Warn("Redis unavailable, continuing without it", "error", err)
			rdb = nil
		} else {
			defer rdb.Close()
		}
	}

	providers, err := app.NewProviders(ctx, cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize providers:", err)
	}
	defer providers.Close()

	svc, err := app.NewServices(cfg, providers, rdb, metrics)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer svc.Close()

	// Optional report store
	var reports routes.ReportStore
	if cfg.MongoURI != "" {
		mongoClient, err := config.ConnectMongoDB(cfg)
		if err != nil {
			logger.Warn("Report store disabled", "error", err)
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				mongoClient.Disconnect(ctx)
			}()
			reports = services.NewReportStore(mongoClient.Database(cfg.DBName))
		}
	}

	// Optional async indexing
	chatDeps := routes.ChatDeps{Indexer: svc.Ingestor, Engine: svc.Engine}
	if rdb != nil {
		redisOpt, err := queue.RedisConnOpt(cfg)
		if err != nil {
			log.Fatal("Invalid Redis configuration:", err)
		}
		queueClient := asynq.NewClient(redisOpt)
		defer queueClient.Close()
		inspector := asynq.NewInspector(redisOpt)
		defer inspector.Close()
		chatDeps.Queue = queueClient
		chatDeps.Inspector = inspector
	}

	// Session cleanup
	sched := scheduler.New()
	if cfg.SessionCleanEvery > 0 {
		cleaner := svc.SessionCleaner(cfg)
		err := sched.Every("session-cleanup", cfg.SessionCleanEvery, func(context.Context) error {
			_, err := cleaner.Clean()
			return err
		})
		if err != nil {
			log.Fatal("Failed to schedule session cleanup:", err)
		}
	}
	sched.Start()
	defer sched.Stop()

	// Initialize Gin router
	if cfg.GinMode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))
	router.Use(middleware.TracingMiddleware(cfg.ServiceName))
	router.Use(middleware.EnrichTrace())
	router.Use(middleware.MetricsMiddleware(metrics))
	router.Use(middleware.RequestSizeLimit(cfg.MaxFileSize))
	if rdb != nil {
		router.Use(middleware.RateLimitMiddleware(rdb, cfg.RateLimitReqs, time.Duration(cfg.RateLimitWindow)*time.Second))
	}
	router.MaxMultipartMemory = 32 << 20

	// Setup routes
	routes.SetupHealthRoutes(router, cfg.ServiceName)
	routes.SetupDocumentRoutes(router, routes.DocumentDeps{
		Indexer:    svc.Ingestor,
		Analyzer:   svc.Analyzer,
		Comparator: svc.Comparator,
		Reports:    reports,
	})
	routes.SetupChatRoutes(router, cfg, chatDeps)
	if reports != nil {
		routes.SetupReportRoutes(router, reports)
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("Server starting", "port", cfg.Port, "llm_provider", cfg.LLMProvider, "history", cfg.HistoryBackend)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", "error", err)
	}

	logger.Info("Server exited")
}
