package routes

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"document-portal/internal/config"
	"document-portal/internal/logger"
	"document-portal/internal/queue"
	"document-portal/middleware"
	"document-portal/models"
	"document-portal/services"
	"document-portal/utils"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
)

// DefaultSessionID keys the conversation when the shared index is used
// without a session id.
const DefaultSessionID = "default"

type ChatDeps struct {
	Indexer Indexer
	Engine  ChatEngine
	// Queue and Inspector are optional; without them ?async=true is rejected.
	Queue     TaskEnqueuer
	Inspector TaskInspector
}

type indexForm struct {
	SessionID      string `form:"session_id"`
	UseSessionDirs *bool  `form:"use_session_dirs"`
	ChunkSize      int    `form:"chunk_size"`
	ChunkOverlap   int    `form:"chunk_overlap"`
	K              int    `form:"k"`
}

func SetupChatRoutes(router *gin.Engine, cfg *config.Config, deps ChatDeps) {
	chat := router.Group("/chat")
	chat.POST("/index", handleChatIndex(cfg, deps))
	chat.GET("/index/tasks/:id", handleIndexTaskStatus(deps))
	chat.POST("/query", handleChatQuery(cfg, deps))
}

func handleChatIndex(cfg *config.Config, deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form indexForm
		if err := c.ShouldBind(&form); err != nil {
			utils.RespondWithBadRequest(c, "Invalid index request", gin.H{"error": err.Error()})
			return
		}
		if form.ChunkSize == 0 && form.ChunkOverlap == 0 {
			form.ChunkSize, form.ChunkOverlap = cfg.ChunkSize, cfg.ChunkOverlap
		}
		if form.K <= 0 {
			form.K = cfg.RetrieverK
		}
		scoped := cfg.UseSessionDirs
		if form.UseSessionDirs != nil {
			scoped = *form.UseSessionDirs
		}

		mf, err := c.MultipartForm()
		if err != nil || len(mf.File["files"]) == 0 {
			utils.RespondWithBadRequest(c, "At least one document is required in the 'files' field", nil)
			return
		}
		files := uploads(mf.File["files"])

		if c.Query("async") == "true" {
			enqueueIndex(c, deps, form, scoped, files)
			return
		}

		res, err := deps.Indexer.Ingest(c.Request.Context(), services.IngestRequest{
			SessionID:      form.SessionID,
			Files:          files,
			ChunkSize:      form.ChunkSize,
			ChunkOverlap:   form.ChunkOverlap,
			K:              form.K,
			UseSessionDirs: &scoped,
		})
		if err != nil {
			logger.Error("Indexing failed", "session_id", form.SessionID, "request_id", middleware.GetRequestID(c), "error", err)
			utils.RespondWithServiceError(c, "Indexing failed", err)
			return
		}

		c.JSON(http.StatusOK, models.IndexResponse{
			SessionID:      res.SessionID,
			K:              form.K,
			UseSessionDirs: scoped,
			Added:          res.Added,
			Total:          res.Total,
			Skipped:        res.Skipped,
		})
	}
}

func enqueueIndex(c *gin.Context, deps ChatDeps, form indexForm, scoped bool, files []services.Upload) {
	if deps.Queue == nil {
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
			"Asynchronous indexing is not configured", nil)
		return
	}

	sessionID, err := deps.Indexer.ResolveSession(form.SessionID)
	if err != nil {
		utils.RespondWithServiceError(c, "Indexing failed", err)
		return
	}
	paths, skipped, err := deps.Indexer.SaveUploads(sessionID, files, &scoped)
	if err != nil {
		utils.RespondWithServiceError(c, "Indexing failed", err)
		return
	}

	task, err := queue.NewBuildIndexTask(queue.BuildIndexPayload{
		SessionID:      sessionID,
		Paths:          paths,
		ChunkSize:      form.ChunkSize,
		ChunkOverlap:   form.ChunkOverlap,
		K:              form.K,
		UseSessionDirs: &scoped,
	})
	if err != nil {
		utils.RespondWithInternalError(c, "Failed to create indexing task", gin.H{"error": err.Error()})
		return
	}
	info, err := deps.Queue.EnqueueContext(c.Request.Context(), task)
	if err != nil {
		logger.Error("Failed to enqueue index build", "session_id", sessionID, "error", err)
		utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_error",
			"Failed to enqueue indexing task", gin.H{"error": err.Error()})
		return
	}

	logger.Info("Index build enqueued", "session_id", sessionID, "task_id", info.ID, "files", len(paths))
	c.JSON(http.StatusAccepted, models.IndexResponse{
		SessionID:      sessionID,
		K:              form.K,
		UseSessionDirs: scoped,
		Skipped:        skipped,
		TaskID:         info.ID,
		Queue:          info.Queue,
	})
}

func handleIndexTaskStatus(deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if deps.Inspector == nil {
			utils.RespondWithError(c, http.StatusServiceUnavailable, "queue_unavailable",
				"Asynchronous indexing is not configured", nil)
			return
		}

		info, err := deps.Inspector.GetTaskInfo(c.DefaultQuery("queue", queue.QueueDefault), c.Param("id"))
		if err != nil {
			if errors.Is(err, asynq.ErrTaskNotFound) || errors.Is(err, asynq.ErrQueueNotFound) {
				utils.RespondWithNotFound(c, "Task not found")
				return
			}
			utils.RespondWithInternalError(c, "Failed to read task status", gin.H{"error": err.Error()})
			return
		}

		resp := gin.H{
			"task_id":   info.ID,
			"queue":     info.Queue,
			"state":     info.State.String(),
			"retried":   info.Retried,
			"max_retry": info.MaxRetry,
		}
		if info.LastErr != "" {
			resp["last_error"] = info.LastErr
		}
		if !info.CompletedAt.IsZero() {
			resp["completed_at"] = info.CompletedAt
		}
		if len(info.Result) > 0 && json.Valid(info.Result) {
			resp["result"] = json.RawMessage(info.Result)
		}
		c.JSON(http.StatusOK, resp)
	}
}

func handleChatQuery(cfg *config.Config, deps ChatDeps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.QueryRequest
		if err := c.ShouldBind(&req); err != nil {
			utils.RespondWithBadRequest(c, "A question is required", gin.H{"error": err.Error()})
			return
		}

		scoped := cfg.UseSessionDirs
		if req.UseSessionDirs != nil {
			scoped = *req.UseSessionDirs
		}
		if scoped && req.SessionID == "" {
			utils.RespondWithBadRequest(c, "session_id is required when use_session_dirs=true", nil)
			return
		}
		if req.SessionID != "" && !utils.IsSessionID(req.SessionID) {
			utils.RespondWithBadRequest(c, "Invalid session_id", nil)
			return
		}
		sessionID := req.SessionID
		if sessionID == "" {
			sessionID = DefaultSessionID
		}
		k := req.K
		if k <= 0 {
			k = cfg.RetrieverK
		}

		_, indexDir := deps.Indexer.SessionDirs(sessionID, &scoped)

		ctx := c.Request.Context()
		var err error
		if deps.Engine.HasSession(sessionID) {
			err = deps.Engine.Reload(ctx, sessionID, indexDir, k)
		} else {
			err = deps.Engine.InitializeFromDir(ctx, sessionID, indexDir, k)
		}
		if err != nil {
			utils.RespondWithServiceError(c, "Index not available for this session", err)
			return
		}

		answer, err := deps.Engine.Query(ctx, sessionID, req.Question)
		if err != nil {
			logger.Error("Query failed", "session_id", sessionID, "request_id", middleware.GetRequestID(c), "error", err)
			utils.RespondWithServiceError(c, "Query failed", err)
			return
		}

		c.JSON(http.StatusOK, models.QueryResponse{
			Answer:    answer,
			SessionID: sessionID,
			K:         k,
			Engine:    services.EngineName,
			Timestamp: time.Now().UTC(),
		})
	}
}
