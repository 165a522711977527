package services

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"time"

	"document-portal/internal/logger"
	"document-portal/internal/telemetry"
	"document-portal/models"
	"document-portal/utils"
)

// Upload is one user-supplied file waiting to be saved.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

func UploadFromHeader(fh *multipart.FileHeader) Upload {
	return Upload{
		Name: fh.Filename,
		Open: func() (io.ReadCloser, error) { return fh.Open() },
	}
}

func UploadFromPath(path string) Upload {
	return Upload{
		Name: filepath.Base(path),
		Open: func() (io.ReadCloser, error) { return os.Open(path) },
	}
}

type IngestorConfig struct {
	TempDir        string
	IndexDir       string
	UseSessionDirs bool
	ChunkSize      int
	ChunkOverlap   int
	K              int
}

type IngestRequest struct {
	SessionID    string
	Files        []Upload
	ChunkSize    int
	ChunkOverlap int
	K            int
	// UseSessionDirs overrides the configured default when set.
	UseSessionDirs *bool
}

// IndexRequest indexes files that are already on disk.
type IndexRequest struct {
	SessionID      string
	Paths          []string
	ChunkSize      int
	ChunkOverlap   int
	K              int
	UseSessionDirs *bool
}

type IngestResult struct {
	SessionID string
	IndexDir  string
	Retriever *IndexRetriever
	Added     int
	Total     int
	Skipped   []string
}

// Ingestor saves uploads into a session and builds or extends its index.
type Ingestor struct {
	store   *IndexStore
	cfg     IngestorConfig
	metrics *telemetry.Metrics
	now     func() time.Time
}

func NewIngestor(store *IndexStore, cfg IngestorConfig, metrics *telemetry.Metrics) *Ingestor {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize, cfg.ChunkOverlap = DefaultChunkSize, DefaultChunkOverlap
	}
	if cfg.K <= 0 {
		cfg.K = DefaultRetrieverK
	}
	return &Ingestor{store: store, cfg: cfg, metrics: metrics, now: time.Now}
}

func (i *Ingestor) Store() *IndexStore {
	return i.store
}

// SessionDirs returns the temp and index directories of a session.
func (i *Ingestor) SessionDirs(sessionID string, useSessionDirs *bool) (tempDir, indexDir string) {
	scoped := i.cfg.UseSessionDirs
	if useSessionDirs != nil {
		scoped = *useSessionDirs
	}
	if !scoped {
		return i.cfg.TempDir, i.cfg.IndexDir
	}
	return filepath.Join(i.cfg.TempDir, sessionID), filepath.Join(i.cfg.IndexDir, sessionID)
}

// ResolveSession returns id, or a fresh session id when id is empty.
func (i *Ingestor) ResolveSession(id string) (string, error) {
	if id == "" {
		return utils.NewSessionID(i.now()), nil
	}
	if !utils.IsSessionID(id) {
		return "", fmt.Errorf("session id %q: %w", id, models.ErrUnsupportedInput)
	}
	return id, nil
}

// Ingest saves the supported uploads and indexes them.
func (i *Ingestor) Ingest(ctx context.Context, req IngestRequest) (*IngestResult, error) {
	sessionID, err := i.ResolveSession(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("ingest: %w", err)
	}

	paths, skipped, err := i.SaveUploads(sessionID, req.Files, req.UseSessionDirs)
	if err != nil {
		return nil, err
	}

	res, err := i.IndexFiles(ctx, IndexRequest{
		SessionID:      sessionID,
		Paths:          paths,
		ChunkSize:      req.ChunkSize,
		ChunkOverlap:   req.ChunkOverlap,
		K:              req.K,
		UseSessionDirs: req.UseSessionDirs,
	})
	if err != nil {
		return nil, err
	}
	res.Skipped = skipped
	return res, nil
}

// SaveUploads writes the supported files into the session temp directory
// under safe names. Unsupported files are skipped and returned by name.
func (i *Ingestor) SaveUploads(sessionID string, files []Upload, useSessionDirs *bool) (paths, skipped []string, err error) {
	tempDir, _ := i.SessionDirs(sessionID, useSessionDirs)

	var accepted []Upload
	for _, f := range files {
		if _, ok := ReaderFor(f.Name); !ok {
			logger.Warn("Skipping unsupported file", "session_id", sessionID, "file", f.Name)
			skipped = append(skipped, f.Name)
			continue
		}
		accepted = append(accepted, f)
	}
	if len(accepted) == 0 {
		return nil, skipped, fmt.Errorf("save uploads for session %s: %w", sessionID, models.ErrNoValidDocuments)
	}

	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		return nil, skipped, fmt.Errorf("save uploads for session %s: %w", sessionID, err)
	}
	for _, f := range accepted {
		path := filepath.Join(tempDir, utils.SafeFileName(f.Name))
		if err := saveUpload(f, path); err != nil {
			return nil, skipped, fmt.Errorf("save uploads for session %s: %s: %w", sessionID, f.Name, err)
		}
		paths = append(paths, path)
	}

	logger.Info("Uploads saved", "session_id", sessionID, "dir", tempDir, "files", len(paths), "skipped", len(skipped))
	return paths, skipped, nil
}

func saveUpload(f Upload, path string) error {
	src, err := f.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return err
	}
	return dst.Close()
}

// IndexFiles reads, splits and indexes files already on disk.
func (i *Ingestor) IndexFiles(ctx context.Context, req IndexRequest) (*IngestResult, error) {
	start := time.Now()
	res, err := i.indexFiles(ctx, req)
	status := "success"
	if err != nil {
		status = "error"
	}
	added := 0
	if res != nil {
		added = res.Added
	}
	i.metrics.RecordIngestion(added, time.Since(start).Seconds(), status)
	return res, err
}

func (i *Ingestor) indexFiles(ctx context.Context, req IndexRequest) (*IngestResult, error) {
	sessionID, err := i.ResolveSession(req.SessionID)
	if err != nil {
		return nil, fmt.Errorf("index files: %w", err)
	}
	_, indexDir := i.SessionDirs(sessionID, req.UseSessionDirs)

	size, overlap := req.ChunkSize, req.ChunkOverlap
	if size == 0 {
		size, overlap = i.cfg.ChunkSize, i.cfg.ChunkOverlap
	}
	splitter, err := NewSplitter(size, overlap)
	if err != nil {
		return nil, fmt.Errorf("index files for session %s: %w", sessionID, err)
	}

	var chunks []models.Chunk
	for _, path := range req.Paths {
		docs, err := ReadDocument(ctx, path)
		if err != nil {
			return nil, fmt.Errorf("index files for session %s: %w", sessionID, err)
		}
		chunks = append(chunks, splitter.Split(docs)...)
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("index files for session %s: no text in %d file(s): %w",
			sessionID, len(req.Paths), models.ErrNoValidDocuments)
	}

	h, seeded, err := i.store.loadOrCreate(ctx, indexDir, chunks)
	if err != nil {
		return nil, fmt.Errorf("index files for session %s: %w", sessionID, err)
	}
	added, err := i.store.AddChunks(ctx, h, chunks)
	if err != nil {
		return nil, fmt.Errorf("index files for session %s: %w", sessionID, err)
	}

	k := req.K
	if k <= 0 {
		k = i.cfg.K
	}
	res := &IngestResult{
		SessionID: sessionID,
		IndexDir:  indexDir,
		Retriever: NewRetriever(h, k),
		Added:     seeded + added,
		Total:     h.Count(),
	}
	logger.Info("Index updated", "session_id", sessionID, "dir", indexDir,
		"chunks", len(chunks), "added", res.Added, "total", res.Total)
	return res, nil
}
