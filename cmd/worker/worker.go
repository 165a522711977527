package main

import (
	"context"
	"log"

	"document-portal/internal/app"
	"document-portal/internal/config"
	"document-portal/internal/logger"
	"document-portal/internal/queue"
	"document-portal/internal/telemetry"

	"github.com/hibiken/asynq"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal("Failed to load config:", err)
	}
	logger.InitLogger(cfg)

	if cfg.RedisURL == "" {
		log.Fatal("REDIS_URL is required for the worker")
	}

	metrics, err := telemetry.InitMetrics(cfg.ServiceName + "-worker")
	if err != nil {
		logger.Warn("Metrics disabled", "error", err)
	}

	providers, err := app.NewProviders(context.Background(), cfg, metrics)
	if err != nil {
		log.Fatal("Failed to initialize providers:", err)
	}
	defer providers.Close()

	// The worker only builds indexes and never reads chat history.
	workerCfg := *cfg
	workerCfg.HistoryBackend = config.HistoryBackendMemory
	svc, err := app.NewServices(&workerCfg, providers, nil, metrics)
	if err != nil {
		log.Fatal("Failed to initialize services:", err)
	}
	defer svc.Close()

	redisOpt, err := queue.RedisConnOpt(cfg)
	if err != nil {
		log.Fatal("Invalid Redis configuration:", err)
	}

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 4,
			Queues: map[string]int{
				queue.QueueCritical: 6,
				queue.QueueDefault:  3,
				queue.QueueLow:      1,
			},
			StrictPriority: true,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retried, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logger.Error("Task failed", "type", task.Type(), "retried", retried, "max_retry", maxRetry, "error", err)
			}),
		},
	)

	processor := queue.NewTaskProcessor(svc.Ingestor)

	logger.Info("Starting index worker", "concurrency", 4, "queues", "critical(6), default(3), low(1)")
	if err := server.Run(processor.Mux()); err != nil {
		log.Fatal("Failed to start worker:", err)
	}
}
