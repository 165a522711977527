package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCleanCommand(t *testing.T) {
	base := t.TempDir()
	uploads := filepath.Join(base, "uploads")
	indexes := filepath.Join(base, "indexes")
	t.Setenv("UPLOAD_BASE", uploads)
	t.Setenv("INDEX_BASE", indexes)
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("LLM_PROVIDER", "gemini")
	t.Setenv("EMBEDDING_PROVIDER", "google")

	now := time.Now()
	for i, name := range []string{"session_a", "session_b", "session_c"} {
		for _, dir := range []string{uploads, indexes} {
			path := filepath.Join(dir, name)
			require.NoError(t, os.MkdirAll(path, 0o755))
			mtime := now.Add(time.Duration(i) * time.Minute)
			require.NoError(t, os.Chtimes(path, mtime, mtime))
		}
	}

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs([]string{"clean", "--keep", "1"})
	require.NoError(t, rootCmd.Execute())

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Len(t, lines, 4)
	for _, dir := range []string{uploads, indexes} {
		entries, err := os.ReadDir(dir)
		require.NoError(t, err)
		require.Len(t, entries, 1)
		assert.Equal(t, "session_c", entries[0].Name())
	}
}
