package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"document-portal/internal/config"
	"document-portal/internal/logger"
	"document-portal/models"
	"document-portal/services"

	"github.com/hibiken/asynq"
)

const (
	TaskBuildIndex = "index:build"

	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueLow      = "low"
)

type BuildIndexPayload struct {
	SessionID      string   `json:"session_id"`
	Paths          []string `json:"paths"`
	ChunkSize      int      `json:"chunk_size"`
	ChunkOverlap   int      `json:"chunk_overlap"`
	K              int      `json:"k,omitempty"`
	UseSessionDirs *bool    `json:"use_session_dirs,omitempty"`
}

// BuildIndexResult is written as the task result for status polling.
type BuildIndexResult struct {
	SessionID string `json:"session_id"`
	Added     int    `json:"added"`
	Total     int    `json:"total"`
}

func NewBuildIndexTask(p BuildIndexPayload) (*asynq.Task, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskBuildIndex,
		payload,
		asynq.MaxRetry(3),
		asynq.Timeout(10*time.Minute),
		asynq.Queue(QueueDefault),
		asynq.Retention(24*time.Hour),
	), nil
}

// RedisConnOpt accepts a redis:// URL or host:port, like the Redis client config.
func RedisConnOpt(cfg *config.Config) (asynq.RedisConnOpt, error) {
	if strings.HasPrefix(cfg.RedisURL, "redis://") || strings.HasPrefix(cfg.RedisURL, "rediss://") {
		opt, err := asynq.ParseRedisURI(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		return opt, nil
	}
	return asynq.RedisClientOpt{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, nil
}

// IndexBuilder is the part of the ingestor the worker needs.
type IndexBuilder interface {
	IndexFiles(ctx context.Context, req services.IndexRequest) (*services.IngestResult, error)
}

type TaskProcessor struct {
	indexer IndexBuilder
}

func NewTaskProcessor(indexer IndexBuilder) *TaskProcessor {
	return &TaskProcessor{indexer: indexer}
}

func (p *TaskProcessor) Mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TaskBuildIndex, p.BuildIndex)
	return mux
}

// BuildIndex indexes files saved by an earlier upload. Input problems are
// not retried; provider and storage failures are.
func (p *TaskProcessor) BuildIndex(ctx context.Context, t *asynq.Task) error {
	var payload BuildIndexPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal failed: %v: %w", err, asynq.SkipRetry)
	}
	if payload.SessionID == "" || len(payload.Paths) == 0 {
		return fmt.Errorf("payload needs a session id and paths: %w", asynq.SkipRetry)
	}

	logger.Info("Building index", "session_id", payload.SessionID, "files", len(payload.Paths))

	res, err := p.indexer.IndexFiles(ctx, services.IndexRequest{
		SessionID:      payload.SessionID,
		Paths:          payload.Paths,
		ChunkSize:      payload.ChunkSize,
		ChunkOverlap:   payload.ChunkOverlap,
		K:              payload.K,
		UseSessionDirs: payload.UseSessionDirs,
	})
	if err != nil {
		if permanent(err) {
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}

	if w := t.ResultWriter(); w != nil {
		data, _ := json.Marshal(BuildIndexResult{SessionID: res.SessionID, Added: res.Added, Total: res.Total})
		if _, err := w.Write(data); err != nil {
			logger.Warn("Failed to write task result", "task_id", w.TaskID(), "error", err)
		}
	}
	logger.Info("Index built", "session_id", res.SessionID, "added", res.Added, "total", res.Total)
	return nil
}

func permanent(err error) bool {
	return errors.Is(err, models.ErrUnsupportedInput) ||
		errors.Is(err, models.ErrDocumentNotFound) ||
		errors.Is(err, models.ErrConfiguration) ||
		errors.Is(err, models.ErrNoIndexNoSeed)
}
