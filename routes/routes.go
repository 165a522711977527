package routes

import (
	"context"
	"mime/multipart"

	"document-portal/models"
	"document-portal/services"

	"github.com/hibiken/asynq"
)

// The handlers depend on these narrow views of the services so they can be
// exercised with stubs.

type Indexer interface {
	ResolveSession(id string) (string, error)
	SessionDirs(sessionID string, useSessionDirs *bool) (tempDir, indexDir string)
	SaveUploads(sessionID string, files []services.Upload, useSessionDirs *bool) (paths, skipped []string, err error)
	Ingest(ctx context.Context, req services.IngestRequest) (*services.IngestResult, error)
}

type ChatEngine interface {
	HasSession(sessionID string) bool
	InitializeFromDir(ctx context.Context, sessionID, dir string, k int) error
	Reload(ctx context.Context, sessionID, dir string, k int) error
	Query(ctx context.Context, sessionID, input string) (string, error)
}

type Analyzer interface {
	Analyze(ctx context.Context, text string) (*models.DocumentMetadata, error)
}

type Comparator interface {
	Compare(ctx context.Context, combined string) ([]models.PageChange, error)
}

type ReportStore interface {
	Save(ctx context.Context, report *models.Report) error
	Recent(ctx context.Context, kind string, limit int) ([]models.Report, error)
}

type TaskEnqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

type TaskInspector interface {
	GetTaskInfo(queue, id string) (*asynq.TaskInfo, error)
}

func uploads(files []*multipart.FileHeader) []services.Upload {
	out := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		out = append(out, services.UploadFromHeader(fh))
	}
	return out
}

func boolPtr(b bool) *bool {
	return &b
}
