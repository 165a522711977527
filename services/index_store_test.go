package services

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"document-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textChunks(texts ...string) []models.Chunk {
	out := make([]models.Chunk, len(texts))
	for i, t := range texts {
		out[i] = models.Chunk{Text: t, Metadata: models.ChunkMetadata{File: "notes.txt", Position: i}}
	}
	return out
}

func newTestIndex(t *testing.T, seed ...string) (*IndexStore, *wordEmbedder, *IndexHandle, string) {
	t.Helper()
	emb := &wordEmbedder{}
	store := NewIndexStore(emb)
	dir := filepath.Join(t.TempDir(), "index")
	h, err := store.LoadOrCreate(context.Background(), dir, textChunks(seed...))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return store, emb, h, dir
}

func reopen(t *testing.T, dir string) (*IndexStore, *wordEmbedder, *IndexHandle) {
	t.Helper()
	emb := &wordEmbedder{}
	store := NewIndexStore(emb)
	h, err := store.LoadOrCreate(context.Background(), dir, nil)
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return store, emb, h
}

func TestLoadOrCreate(t *testing.T) {
	ctx := context.Background()

	t.Run("no index and no seed", func(t *testing.T) {
		store := NewIndexStore(&wordEmbedder{})
		dir := filepath.Join(t.TempDir(), "index")

		_, err := store.LoadOrCreate(ctx, dir, nil)
		require.ErrorIs(t, err, models.ErrNoIndexNoSeed)
		assert.False(t, store.Exists(dir))
	})

	t.Run("creates from seed and reopens", func(t *testing.T) {
		store, _, h, dir := newTestIndex(t, "alpha", "beta", "gamma")
		assert.True(t, store.Exists(dir))
		assert.Equal(t, 3, h.Count())
		assert.Len(t, readManifest(dir).Rows, 3)

		_, _, again := reopen(t, dir)
		assert.Equal(t, 3, again.Count())
	})

	t.Run("seed duplicates stored once", func(t *testing.T) {
		_, emb, h, _ := newTestIndex(t, "alpha", "alpha", "beta")
		assert.Equal(t, 2, h.Count())
		assert.EqualValues(t, 2, emb.texts.Load())
	})

	t.Run("embedding failure leaves no index", func(t *testing.T) {
		emb := &wordEmbedder{err: errGeneration}
		store := NewIndexStore(emb)
		dir := filepath.Join(t.TempDir(), "index")

		_, err := store.LoadOrCreate(ctx, dir, textChunks("alpha"))
		require.ErrorIs(t, err, errGeneration)
		assert.False(t, store.Exists(dir))
	})

	t.Run("load without index", func(t *testing.T) {
		store := NewIndexStore(&wordEmbedder{})
		_, err := store.Load(t.TempDir())
		require.ErrorIs(t, err, models.ErrIndexNotFound)
	})
}

func TestLoadOrCreate_Corrupt(t *testing.T) {
	tests := []struct {
		name    string
		content []byte
	}{
		{"garbage", []byte(strings.Repeat("definitely not a database ", 200))},
		{"empty file", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			require.NoError(t, os.WriteFile(filepath.Join(dir, VectorsFile), tt.content, 0o644))

			store := NewIndexStore(&wordEmbedder{})
			require.True(t, store.Exists(dir))

			_, err := store.LoadOrCreate(context.Background(), dir, textChunks("alpha"))
			require.ErrorIs(t, err, models.ErrIndexCorrupt)
		})
	}
}

func TestAddChunks_Idempotent(t *testing.T) {
	ctx := context.Background()
	store, emb, h, _ := newTestIndex(t, "alpha", "beta")
	calls := emb.calls.Load()

	added, err := store.AddChunks(ctx, h, textChunks("alpha", "beta"))
	require.NoError(t, err)
	assert.Zero(t, added)
	assert.Equal(t, calls, emb.calls.Load(), "nothing new must not reach the embedder")

	added, err = store.AddChunks(ctx, h, textChunks("alpha", "beta", "gamma"))
	require.NoError(t, err)
	assert.Equal(t, 1, added)
	assert.Equal(t, 3, h.Count())
}

func TestAddChunks_Dedup(t *testing.T) {
	ctx := context.Background()

	t.Run("within batch", func(t *testing.T) {
		store, _, h, _ := newTestIndex(t, "alpha")
		added, err := store.AddChunks(ctx, h, textChunks("gamma", "gamma", "delta"))
		require.NoError(t, err)
		assert.Equal(t, 2, added)
		assert.Equal(t, 3, h.Count())
	})

	t.Run("same text from another file", func(t *testing.T) {
		store, _, h, _ := newTestIndex(t, "alpha")
		chunks := []models.Chunk{
			{Text: "shared paragraph", Metadata: models.ChunkMetadata{File: "a.pdf", Page: 1}},
			{Text: "shared paragraph", Metadata: models.ChunkMetadata{File: "b.pdf", Page: 7}},
		}
		added, err := store.AddChunks(ctx, h, chunks)
		require.NoError(t, err)
		assert.Equal(t, 1, added)
	})

	t.Run("row identity", func(t *testing.T) {
		store, _, h, _ := newTestIndex(t, "alpha")
		chunks := []models.Chunk{
			{Text: "price 10", Metadata: models.ChunkMetadata{Source: "catalog", RowID: "7"}},
			{Text: "price 12", Metadata: models.ChunkMetadata{Source: "catalog", RowID: "7"}},
		}
		added, err := store.AddChunks(ctx, h, chunks)
		require.NoError(t, err)
		assert.Equal(t, 1, added)
		assert.True(t, readManifest(h.Dir()).Rows["catalog::7"])
	})
}

func TestAddChunks_ManifestTolerance(t *testing.T) {
	tests := []struct {
		name     string
		manifest *string
	}{
		{"absent", nil},
		{"empty", ptr("")},
		{"empty object", ptr("{}")},
		{"unknown keys only", ptr(`{"legacy": 1}`)},
		{"rows of wrong type", ptr(`{"rows": []}`)},
		{"not json", ptr("rows: yes")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			_, _, h, dir := newTestIndex(t, "alpha", "beta")
			h.Close()

			path := filepath.Join(dir, ManifestFile)
			if tt.manifest == nil {
				require.NoError(t, os.Remove(path))
			} else {
				require.NoError(t, os.WriteFile(path, []byte(*tt.manifest), 0o644))
			}

			store, emb, h2 := reopen(t, dir)
			added, err := store.AddChunks(ctx, h2, textChunks("alpha", "beta"))
			require.NoError(t, err)
			assert.Equal(t, 2, added, "unknown chunks are embedded again")
			assert.EqualValues(t, 2, emb.texts.Load())
			assert.Equal(t, 2, h2.Count(), "re-embedding overwrites rows in place")
			assert.Len(t, readManifest(dir).Rows, 2)
		})
	}
}

func TestAddChunks_KeepsUnknownManifestKeys(t *testing.T) {
	_, _, h, dir := newTestIndex(t, "alpha")
	h.Close()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(`{"version": 2, "rows": {}}`), 0o644))

	store, _, h2 := reopen(t, dir)
	_, err := store.AddChunks(context.Background(), h2, textChunks("beta"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, ManifestFile))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"version": 2`)
}

func TestAddChunks_CrashBetweenPhases(t *testing.T) {
	ctx := context.Background()
	store, _, h, dir := newTestIndex(t, "alpha")
	before := readManifest(dir).Rows

	errCrash := errors.New("process killed")
	store.afterVectors = func(string) error { return errCrash }

	_, err := store.AddChunks(ctx, h, textChunks("beta", "gamma"))
	require.ErrorIs(t, err, errCrash)
	assert.Equal(t, before, readManifest(dir).Rows, "manifest is written only after vectors")
	h.Close()

	store2, emb, h2 := reopen(t, dir)
	assert.Equal(t, 3, h2.Count(), "vectors were committed")

	added, err := store2.AddChunks(ctx, h2, textChunks("alpha", "beta", "gamma"))
	require.NoError(t, err)
	assert.Equal(t, 2, added)
	assert.EqualValues(t, 2, emb.texts.Load())
	assert.Equal(t, 3, h2.Count(), "no duplicate vectors")

	added, err = store2.AddChunks(ctx, h2, textChunks("alpha", "beta", "gamma"))
	require.NoError(t, err)
	assert.Zero(t, added)
}

func TestAddChunks_DedupInconsistency(t *testing.T) {
	ctx := context.Background()
	_, _, h, dir := newTestIndex(t, "alpha")
	h.Close()

	ghost := textChunks("ghost")[0]
	ghostFP := Fingerprint(ghost.Text, ghost.Metadata)
	manifestJSON := fmt.Sprintf(`{"rows": {%q: true, %q: true}}`, Fingerprint("alpha", models.ChunkMetadata{}), ghostFP)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ManifestFile), []byte(manifestJSON), 0o644))

	store, _, h2 := reopen(t, dir)
	assert.Equal(t, 1, h2.Count())

	added, err := store.AddChunks(ctx, h2, []models.Chunk{ghost})
	require.NoError(t, err)
	assert.Equal(t, 1, added, "a manifest entry without a vector is embedded again")
	assert.Equal(t, 2, h2.Count())
}

func TestAddChunks_Concurrent(t *testing.T) {
	ctx := context.Background()
	store, _, h1, dir := newTestIndex(t, "seed")
	h2, err := store.LoadOrCreate(ctx, dir, nil)
	require.NoError(t, err)
	defer h2.Close()

	const workers = 8
	var wg sync.WaitGroup
	var mu sync.Mutex
	total := 0
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			var texts []string
			for i := 0; i < 10; i++ {
				texts = append(texts, fmt.Sprintf("worker %d chunk %d", w, i))
			}
			texts = append(texts, "shared one", "shared two")

			h := h1
			if w%2 == 1 {
				h = h2
			}
			added, err := store.AddChunks(ctx, h, textChunks(texts...))
			assert.NoError(t, err)
			mu.Lock()
			total += added
			mu.Unlock()
		}(w)
	}
	wg.Wait()

	assert.Equal(t, workers*10+2, total)
	assert.Len(t, readManifest(dir).Rows, workers*10+3)

	_, _, fresh := reopen(t, dir)
	assert.Equal(t, workers*10+3, fresh.Count())
}

func TestEvict_WaitsForWrite(t *testing.T) {
	ctx := context.Background()
	store, _, h, dir := newTestIndex(t, "alpha")

	entered := make(chan struct{})
	release := make(chan struct{})
	store.afterVectors = func(string) error {
		close(entered)
		<-release
		return nil
	}

	addErr := make(chan error, 1)
	go func() {
		_, err := store.AddChunks(ctx, h, textChunks("beta"))
		addErr <- err
	}()
	<-entered

	evicted := make(chan struct{})
	go func() {
		store.Evict(dir)
		close(evicted)
	}()

	select {
	case <-evicted:
		t.Fatal("evict closed the index during a write")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	require.NoError(t, <-addErr)
	<-evicted
	assert.Len(t, readManifest(dir).Rows, 2)

	_, _, reopened := reopen(t, dir)
	assert.Equal(t, 2, reopened.Count())
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	_, _, h, _ := newTestIndex(t,
		"apples and oranges are fruit",
		vaultFact,
		"the weather today is sunny",
	)

	hits, err := h.Search(ctx, "what is the vault code", 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, vaultFact, hits[0].Text)

	hits, err = h.Search(ctx, "vault", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestLoad_SeesOutsideWrites(t *testing.T) {
	ctx := context.Background()
	_, _, _, dir := newTestIndex(t, "apples and oranges are fruit")

	server := NewIndexStore(&wordEmbedder{})
	served, err := server.Load(dir)
	require.NoError(t, err)
	t.Cleanup(func() { served.Close() })
	assert.Equal(t, 1, served.Count())

	worker := NewIndexStore(&wordEmbedder{})
	written, err := worker.Load(dir)
	require.NoError(t, err)
	t.Cleanup(func() { written.Close() })
	added, err := worker.AddChunks(ctx, written, textChunks(vaultFact))
	require.NoError(t, err)
	require.Equal(t, 1, added)

	again, err := server.Load(dir)
	require.NoError(t, err)
	assert.Same(t, served, again)
	assert.Equal(t, 2, again.Count())

	hits, err := NewRetriever(again, 1).Retrieve(ctx, "what is the vault code")
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, vaultFact, hits[0].Text)

	unchanged, err := server.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 2, unchanged.Count())
}

func TestRetriever(t *testing.T) {
	_, _, h, _ := newTestIndex(t, "alpha", "beta", "gamma", "delta", "epsilon", "zeta")

	r := NewRetriever(h, 0)
	assert.Equal(t, DefaultRetrieverK, r.K())

	hits, err := r.Retrieve(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, hits, DefaultRetrieverK)
	assert.Equal(t, "alpha", hits[0].Text)

	hits, err = NewRetriever(h, 2).Retrieve(context.Background(), "alpha")
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func ptr(s string) *string { return &s }
