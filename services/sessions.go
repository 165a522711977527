package services

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"document-portal/internal/logger"
	"document-portal/models"
	"document-portal/utils"
)

const DefaultKeepSessions = 3

// CleanOldSessions removes the session directories under baseDir except the
// keepLatest most recently modified ones, and returns the removed paths.
// A missing baseDir is not an error.
func CleanOldSessions(baseDir string, keepLatest int) ([]string, error) {
	stale, err := staleSessions(baseDir, keepLatest)
	if err != nil {
		return nil, err
	}
	removed, err := removeSessions(stale)
	if len(removed) > 0 {
		logger.Info("Old sessions removed", "dir", baseDir, "removed", len(removed), "kept", keepLatest)
	}
	return removed, err
}

func removeSessions(paths []string) ([]string, error) {
	var removed []string
	var errs []error
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			errs = append(errs, err)
			continue
		}
		removed = append(removed, path)
	}
	return removed, errors.Join(errs...)
}

// staleSessions lists the session directories of baseDir beyond the newest keepLatest.
func staleSessions(baseDir string, keepLatest int) ([]string, error) {
	if keepLatest < 0 {
		return nil, fmt.Errorf("keep %d sessions: %w", keepLatest, models.ErrConfiguration)
	}

	entries, err := os.ReadDir(baseDir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("clean sessions in %s: %w", baseDir, err)
	}

	type sessionDir struct {
		name    string
		modTime int64
	}
	var sessions []sessionDir
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), utils.SessionPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		sessions = append(sessions, sessionDir{name: e.Name(), modTime: info.ModTime().UnixNano()})
	}

	// Newest first; session names embed their creation time, so they break ties.
	sort.Slice(sessions, func(i, j int) bool {
		if sessions[i].modTime != sessions[j].modTime {
			return sessions[i].modTime > sessions[j].modTime
		}
		return sessions[i].name > sessions[j].name
	})

	var stale []string
	for i := keepLatest; i < len(sessions); i++ {
		stale = append(stale, filepath.Join(baseDir, sessions[i].name))
	}
	return stale, nil
}

// SessionCleaner prunes the upload and index bases together.
type SessionCleaner struct {
	Dirs  []string
	Keep  int
	Store *IndexStore
}

func (c SessionCleaner) Clean() ([]string, error) {
	var removed []string
	var errs []error
	for _, dir := range c.Dirs {
		stale, err := staleSessions(dir, c.Keep)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if c.Store != nil {
			for _, path := range stale {
				c.Store.Evict(path)
			}
		}
		paths, err := removeSessions(stale)
		if len(paths) > 0 {
			logger.Info("Old sessions removed", "dir", dir, "removed", len(paths), "kept", c.Keep)
		}
		removed = append(removed, paths...)
		if err != nil {
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
