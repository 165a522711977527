package utils

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

const SessionPrefix = "session_"

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// NewSessionID returns session_YYYYmmdd_HHMMSS_<hex8>.
func NewSessionID(now time.Time) string {
	return fmt.Sprintf("%s%s_%s", SessionPrefix, now.Format("20060102_150405"), randomHex(8))
}

// IsSessionID reports whether id is safe to use as a directory name.
func IsSessionID(id string) bool {
	return id != "" && id != "." && id != ".." && !unsafeChars.MatchString(id)
}

// SafeFileName keeps the stem readable and adds a random suffix:
// "Annual Report.PDF" -> "Annual_Report_1a2b3c.pdf".
func SafeFileName(name string) string {
	base := filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := strings.Trim(unsafeChars.ReplaceAllString(strings.TrimSuffix(base, filepath.Ext(base)), "_"), "_.")
	if stem == "" {
		stem = "file"
	}
	return fmt.Sprintf("%s_%s%s", stem, randomHex(6), ext)
}

// FileExtension returns the lowercase extension without the dot.
func FileExtension(name string) string {
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
}

func randomHex(n int) string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:n]
}
