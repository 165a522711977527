package services

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"document-portal/internal/ai"
	"document-portal/internal/logger"
	"document-portal/models"

	_ "modernc.org/sqlite"
)

const (
	VectorsFile  = "vectors.db"
	ManifestFile = "manifest.json"
)

const schema = `CREATE TABLE IF NOT EXISTS chunks (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	fingerprint TEXT NOT NULL UNIQUE,
	content     TEXT NOT NULL,
	metadata    TEXT NOT NULL,
	embedding   BLOB NOT NULL
)`

const upsertChunk = `INSERT INTO chunks (fingerprint, content, metadata, embedding) VALUES (?, ?, ?, ?)
ON CONFLICT(fingerprint) DO UPDATE SET
	content = excluded.content,
	metadata = excluded.metadata,
	embedding = excluded.embedding`

// IndexStore owns the vector index and dedup manifest of every index
// directory it is asked about. Writes to one directory are serialized.
type IndexStore struct {
	embedder ai.Embedder

	mu      sync.Mutex
	locks   map[string]*sync.Mutex
	handles map[string]*IndexHandle

	// afterVectors runs between the vector commit and the manifest write.
	afterVectors func(dir string) error
}

func NewIndexStore(embedder ai.Embedder) *IndexStore {
	return &IndexStore{
		embedder: embedder,
		locks:    make(map[string]*sync.Mutex),
		handles:  make(map[string]*IndexHandle),
	}
}

// Exists reports whether dir holds a vector index.
func (s *IndexStore) Exists(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, VectorsFile))
	return err == nil && info.Mode().IsRegular()
}

func dirKey(dir string) string {
	key, err := filepath.Abs(dir)
	if err != nil {
		return filepath.Clean(dir)
	}
	return key
}

func (s *IndexStore) lockFor(dir string) *sync.Mutex {
	key := dirKey(dir)

	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	return l
}

// Load opens an existing index. A missing index is models.ErrIndexNotFound.
func (s *IndexStore) Load(dir string) (*IndexHandle, error) {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	if !s.Exists(dir) {
		return nil, fmt.Errorf("load index %s: %w", dir, models.ErrIndexNotFound)
	}
	return s.open(dir)
}

// LoadOrCreate opens the index in dir, or creates it from seed when there is
// none. Creating without seed chunks fails with models.ErrNoIndexNoSeed.
// Handles are shared: asking twice for one directory returns the same handle
// until it is closed.
func (s *IndexStore) LoadOrCreate(ctx context.Context, dir string, seed []models.Chunk) (*IndexHandle, error) {
	h, _, err := s.loadOrCreate(ctx, dir, seed)
	return h, err
}

// loadOrCreate also reports how many seed chunks went into a new index.
func (s *IndexStore) loadOrCreate(ctx context.Context, dir string, seed []models.Chunk) (*IndexHandle, int, error) {
	lock := s.lockFor(dir)
	lock.Lock()
	defer lock.Unlock()

	if s.Exists(dir) {
		h, err := s.open(dir)
		return h, 0, err
	}
	if len(seed) == 0 {
		return nil, 0, fmt.Errorf("create index %s: %w", dir, models.ErrNoIndexNoSeed)
	}
	h, err := s.create(ctx, dir, seed)
	if err != nil {
		return nil, 0, err
	}
	return h, h.Count(), nil
}

func (s *IndexStore) create(ctx context.Context, dir string, seed []models.Chunk) (*IndexHandle, error) {

	// Embed before touching disk so a provider failure leaves no index behind.
	fresh, fps := dedupBatch(seed, nil)
	vectors, err := s.embed(ctx, fresh)
	if err != nil {
		return nil, fmt.Errorf("create index %s: %w", dir, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create index dir %s: %w", dir, err)
	}
	db, err := openDB(dir)
	if err == nil {
		_, err = db.ExecContext(ctx, schema)
	}
	if err == nil {
		err = insertVectors(ctx, db, fresh, fps, vectors)
	}
	if err != nil {
		if db != nil {
			db.Close()
		}
		os.Remove(filepath.Join(dir, VectorsFile))
		return nil, fmt.Errorf("create index %s: %w", dir, err)
	}

	h := &IndexHandle{dir: dir, db: db, store: s}
	if err := h.refresh(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if s.afterVectors != nil {
		if err := s.afterVectors(dir); err != nil {
			db.Close()
			return nil, err
		}
	}

	m := manifest{Rows: make(map[string]bool, len(fps))}
	for _, fp := range fps {
		m.Rows[fp] = true
	}
	if err := writeManifest(dir, m); err != nil {
		db.Close()
		return nil, fmt.Errorf("create index %s: %w", dir, err)
	}

	s.remember(h)
	logger.Info("Index created", "dir", dir, "chunks", len(fresh))
	return h, nil
}

// AddChunks embeds and stores the chunks whose fingerprint the manifest does
// not know yet and returns how many were stored. Vectors are committed
// before the manifest is rewritten: an interruption in between leaves
// vectors the manifest does not list, and the next call re-embeds and
// overwrites them in place.
func (s *IndexStore) AddChunks(ctx context.Context, h *IndexHandle, chunks []models.Chunk) (int, error) {
	lock := s.lockFor(h.dir)
	lock.Lock()
	defer lock.Unlock()

	m := readManifest(h.dir)
	stored, err := h.storedFingerprints(ctx)
	if err != nil {
		return 0, err
	}
	for fp := range m.Rows {
		if !stored[fp] {
			logger.Warn("Re-embedding manifest entry without vector", "dir", h.dir, "fingerprint", fp,
				"error", models.ErrDedupInconsistency)
			delete(m.Rows, fp)
		}
	}

	fresh, fps := dedupBatch(chunks, m.Rows)
	if len(fresh) == 0 {
		return 0, nil
	}

	vectors, err := s.embed(ctx, fresh)
	if err != nil {
		return 0, fmt.Errorf("add chunks to %s: %w", h.dir, err)
	}
	if err := insertVectors(ctx, h.db, fresh, fps, vectors); err != nil {
		return 0, fmt.Errorf("add chunks to %s: %w", h.dir, err)
	}
	if err := h.refresh(ctx); err != nil {
		return 0, err
	}

	if s.afterVectors != nil {
		if err := s.afterVectors(h.dir); err != nil {
			return 0, err
		}
	}

	for _, fp := range fps {
		m.Rows[fp] = true
	}
	if err := writeManifest(h.dir, m); err != nil {
		return 0, fmt.Errorf("add chunks to %s: %w", h.dir, err)
	}
	return len(fresh), nil
}

func (s *IndexStore) embed(ctx context.Context, chunks []models.Chunk) ([][]float32, error) {
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed %d chunks: %w", len(texts), err)
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("embedder returned %d vectors for %d chunks: %w", len(vectors), len(texts), models.ErrProvider)
	}
	return vectors, nil
}

// Close closes every handle the store has open.
func (s *IndexStore) Close() error {
	s.mu.Lock()
	handles := make([]*IndexHandle, 0, len(s.handles))
	for _, h := range s.handles {
		handles = append(handles, h)
	}
	s.mu.Unlock()

	var errs []error
	for _, h := range handles {
		errs = append(errs, h.Close())
	}
	return errors.Join(errs...)
}

// Evict closes the cached handle of every index at or below dir.
func (s *IndexStore) Evict(dir string) {
	prefix := dirKey(dir)
	s.mu.Lock()
	var evicted []*IndexHandle
	for key, h := range s.handles {
		if key == prefix || strings.HasPrefix(key, prefix+string(filepath.Separator)) {
			evicted = append(evicted, h)
		}
	}
	s.mu.Unlock()

	for _, h := range evicted {
		lock := s.lockFor(h.dir)
		lock.Lock()
		h.Close()
		lock.Unlock()
	}
}

func (s *IndexStore) remember(h *IndexHandle) {
	s.mu.Lock()
	s.handles[dirKey(h.dir)] = h
	s.mu.Unlock()
}

func (s *IndexStore) forget(h *IndexHandle) {
	s.mu.Lock()
	key := dirKey(h.dir)
	if s.handles[key] == h {
		delete(s.handles, key)
	}
	s.mu.Unlock()
}

// open returns the cached handle for dir or opens a new one. Callers hold the
// directory lock.
func (s *IndexStore) open(dir string) (*IndexHandle, error) {
	s.mu.Lock()
	cached := s.handles[dirKey(dir)]
	s.mu.Unlock()
	if cached != nil {
		// Another process (worker, CLI) may have written since the last read.
		changed, err := cached.changed(context.Background())
		if err != nil {
			return nil, err
		}
		if changed {
			if err := cached.refresh(context.Background()); err != nil {
				return nil, err
			}
			logger.Debug("Index reloaded after outside write", "dir", dir, "chunks", cached.Count())
		}
		return cached, nil
	}

	db, err := openDB(dir)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w: %w", dir, models.ErrIndexCorrupt, err)
	}
	h := &IndexHandle{dir: dir, db: db, store: s}
	if err := h.refresh(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	h.checkManifest()
	s.remember(h)
	return h, nil
}

// dedupBatch drops chunks whose fingerprint is in known or repeats earlier
// in the batch.
func dedupBatch(chunks []models.Chunk, known map[string]bool) ([]models.Chunk, []string) {
	seen := make(map[string]bool, len(chunks))
	var fresh []models.Chunk
	var fps []string
	for _, c := range chunks {
		fp := Fingerprint(c.Text, c.Metadata)
		if known[fp] || seen[fp] {
			continue
		}
		seen[fp] = true
		fresh = append(fresh, c)
		fps = append(fps, fp)
	}
	return fresh, fps
}

func openDB(dir string) (*sql.DB, error) {
	path := filepath.Join(dir, VectorsFile)
	db, err := sql.Open("sqlite", "file:"+filepath.ToSlash(path)+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func insertVectors(ctx context.Context, db *sql.DB, chunks []models.Chunk, fps []string, vectors [][]float32) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertChunk)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, c := range chunks {
		meta, err := json.Marshal(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, fps[i], c.Text, string(meta), encodeVector(vectors[i])); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// IndexHandle is an open index directory. Search reads an in-memory copy of
// the stored vectors that is refreshed after every write through the store
// and whenever the store hands out the handle after an outside write.
type IndexHandle struct {
	dir   string
	db    *sql.DB
	store *IndexStore

	mu     sync.RWMutex
	rows   []indexedChunk
	lastID int64
}

type indexedChunk struct {
	chunk  models.Chunk
	vector []float32
	norm   float64
}

func (h *IndexHandle) Dir() string {
	return h.dir
}

// Count is the number of stored vectors.
func (h *IndexHandle) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rows)
}

func (h *IndexHandle) Close() error {
	h.store.forget(h)
	return h.db.Close()
}

// Search returns the k stored chunks most similar to query.
func (h *IndexHandle) Search(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	vectors, err := h.store.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query: %w", len(vectors), models.ErrProvider)
	}
	q := vectors[0]
	qNorm := norm(q)

	h.mu.RLock()
	hits := make([]models.ScoredChunk, 0, len(h.rows))
	for _, row := range h.rows {
		hits = append(hits, models.ScoredChunk{Chunk: row.chunk, Score: cosine(q, qNorm, row.vector, row.norm)})
	}
	h.mu.RUnlock()

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && k < len(hits) {
		hits = hits[:k]
	}
	return hits, nil
}

func (h *IndexHandle) refresh(ctx context.Context) error {
	rows, err := h.db.QueryContext(ctx, `SELECT id, content, metadata, embedding FROM chunks ORDER BY id`)
	if err != nil {
		return fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
	}
	defer rows.Close()

	var loaded []indexedChunk
	var lastID int64
	for rows.Next() {
		var id int64
		var content, meta string
		var blob []byte
		if err := rows.Scan(&id, &content, &meta, &blob); err != nil {
			return fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
		}
		row := indexedChunk{chunk: models.Chunk{Text: content}}
		if err := json.Unmarshal([]byte(meta), &row.chunk.Metadata); err != nil {
			return fmt.Errorf("read index %s: chunk metadata: %w: %w", h.dir, models.ErrIndexCorrupt, err)
		}
		if row.vector, err = decodeVector(blob); err != nil {
			return fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
		}
		row.norm = norm(row.vector)
		loaded = append(loaded, row)
		lastID = max(lastID, id)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
	}

	h.mu.Lock()
	h.rows = loaded
	h.lastID = lastID
	h.mu.Unlock()
	return nil
}

// changed reports whether the stored rows differ from the in-memory copy.
func (h *IndexHandle) changed(ctx context.Context) (bool, error) {
	var count int
	var lastID int64
	err := h.db.QueryRowContext(ctx, `SELECT COUNT(*), COALESCE(MAX(id), 0) FROM chunks`).Scan(&count, &lastID)
	if err != nil {
		return false, fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	return count != len(h.rows) || lastID != h.lastID, nil
}

// checkManifest logs manifest entries that have no stored vector. AddChunks
// drops them from the manifest it reads, so they are embedded again.
func (h *IndexHandle) checkManifest() {
	m := readManifest(h.dir)
	if len(m.Rows) == 0 {
		return
	}
	stored, err := h.storedFingerprints(context.Background())
	if err != nil {
		return
	}
	missing := 0
	for fp := range m.Rows {
		if !stored[fp] {
			missing++
		}
	}
	if missing > 0 {
		logger.Warn("Manifest lists fingerprints without vectors", "dir", h.dir, "missing", missing,
			"error", models.ErrDedupInconsistency)
	}
}

func (h *IndexHandle) storedFingerprints(ctx context.Context) (map[string]bool, error) {
	rows, err := h.db.QueryContext(ctx, `SELECT fingerprint FROM chunks`)
	if err != nil {
		return nil, fmt.Errorf("read index %s: %w: %w", h.dir, models.ErrIndexCorrupt, err)
	}
	defer rows.Close()

	out := make(map[string]bool)
	for rows.Next() {
		var fp string
		if err := rows.Scan(&fp); err != nil {
			return nil, err
		}
		out[fp] = true
	}
	return out, rows.Err()
}

// manifest is the {"rows": {fingerprint: true}} sidecar. Top-level keys other
// than "rows" are kept as they were.
type manifest struct {
	Rows  map[string]bool
	extra map[string]json.RawMessage
}

// readManifest treats a missing, empty or unreadable manifest as "nothing
// known yet". Entries whose marker is false are ignored.
func readManifest(dir string) manifest {
	m := manifest{Rows: make(map[string]bool)}

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Manifest unreadable, treating as empty", "dir", dir, "error", err)
		}
		return m
	}
	if strings.TrimSpace(string(data)) == "" {
		return m
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		logger.Warn("Manifest is not valid JSON, treating as empty", "dir", dir, "error", err)
		return m
	}

	var rows map[string]any
	if raw, ok := top["rows"]; ok {
		if err := json.Unmarshal(raw, &rows); err != nil {
			logger.Warn("Manifest rows malformed, treating as empty", "dir", dir, "error", err)
		}
		delete(top, "rows")
	}
	for fp, marker := range rows {
		if b, ok := marker.(bool); ok && !b {
			continue
		}
		m.Rows[fp] = true
	}
	m.extra = top
	return m
}

// writeManifest replaces the manifest atomically via a temp file and rename.
func writeManifest(dir string, m manifest) error {
	out := make(map[string]any, len(m.extra)+1)
	for k, v := range m.extra {
		out[k] = v
	}
	out["rows"] = m.Rows

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ManifestFile+".*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), filepath.Join(dir, ManifestFile))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) ([]float32, error) {
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("embedding blob of %d bytes", len(b))
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	return v, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, f := range v {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, aNorm float64, b []float32, bNorm float64) float64 {
	if aNorm == 0 || bNorm == 0 || len(a) != len(b) {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot / (aNorm * bNorm)
}
