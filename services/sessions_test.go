package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"document-portal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeSessions(t *testing.T, base string, names ...string) {
	t.Helper()
	start := time.Now().Add(-time.Hour)
	for i, name := range names {
		dir := filepath.Join(base, name)
		require.NoError(t, os.MkdirAll(dir, 0o755))
		mod := start.Add(time.Duration(i) * time.Minute)
		require.NoError(t, os.Chtimes(dir, mod, mod))
	}
}

func TestCleanOldSessions(t *testing.T) {
	base := t.TempDir()
	makeSessions(t, base,
		"session_20250101_000000_aaaaaaaa",
		"session_20250102_000000_bbbbbbbb",
		"session_20250103_000000_cccccccc",
		"session_20250104_000000_dddddddd",
		"session_20250105_000000_eeeeeeee",
	)
	require.NoError(t, os.MkdirAll(filepath.Join(base, "shared"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "session_notes.txt"), []byte("x"), 0o644))

	removed, err := CleanOldSessions(base, DefaultKeepSessions)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(base, "session_20250101_000000_aaaaaaaa"),
		filepath.Join(base, "session_20250102_000000_bbbbbbbb"),
	}, removed)

	entries, err := os.ReadDir(base)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{
		"session_20250103_000000_cccccccc",
		"session_20250104_000000_dddddddd",
		"session_20250105_000000_eeeeeeee",
		"shared",
		"session_notes.txt",
	}, names)
}

func TestCleanOldSessions_EdgeCases(t *testing.T) {
	removed, err := CleanOldSessions(filepath.Join(t.TempDir(), "missing"), 3)
	require.NoError(t, err)
	assert.Empty(t, removed)

	_, err = CleanOldSessions(t.TempDir(), -1)
	require.ErrorIs(t, err, models.ErrConfiguration)

	base := t.TempDir()
	makeSessions(t, base, "session_a", "session_b")
	removed, err = CleanOldSessions(base, 3)
	require.NoError(t, err)
	assert.Empty(t, removed)

	removed, err = CleanOldSessions(base, 0)
	require.NoError(t, err)
	assert.Len(t, removed, 2)
}

func TestSessionCleaner_EvictsHandles(t *testing.T) {
	ctx := context.Background()
	base := t.TempDir()
	uploads, indexes := filepath.Join(base, "uploads"), filepath.Join(base, "indexes")
	makeSessions(t, uploads, "session_old", "session_new")
	makeSessions(t, indexes, "session_old")

	store := NewIndexStore(&wordEmbedder{})
	_, err := store.LoadOrCreate(ctx, filepath.Join(indexes, "session_old", "idx"), textChunks("alpha"))
	require.NoError(t, err)
	old := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(indexes, "session_old"), old, old))
	makeSessions(t, indexes, "session_new")
	kept, err := store.LoadOrCreate(ctx, filepath.Join(indexes, "session_new", "idx"), textChunks("beta"))
	require.NoError(t, err)
	t.Cleanup(func() { kept.Close() })

	cleaner := SessionCleaner{Dirs: []string{uploads, indexes}, Keep: 1, Store: store}
	removed, err := cleaner.Clean()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(uploads, "session_old"),
		filepath.Join(indexes, "session_old"),
	}, removed)
	assert.Len(t, store.handles, 1)
	again, err := store.Load(filepath.Join(indexes, "session_new", "idx"))
	require.NoError(t, err)
	assert.Same(t, kept, again)
}
