package utils

import (
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewSessionID(t *testing.T) {
	now := time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
	id := NewSessionID(now)

	assert.Regexp(t, regexp.MustCompile(`^session_20240309_140507_[0-9a-f]{8}$`), id)
	assert.NotEqual(t, id, NewSessionID(now))
	assert.True(t, IsSessionID(id))
}

func TestIsSessionID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{"session_20240309_140507_deadbeef", true},
		{"my-session.1", true},
		{"", false},
		{"..", false},
		{"../etc", false},
		{"a/b", false},
	}
	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			assert.Equal(t, tt.want, IsSessionID(tt.id))
		})
	}
}

func TestSafeFileName(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
	}{
		{"Annual Report.PDF", `^Annual_Report_[0-9a-f]{6}\.pdf$`},
		{"../../etc/passwd.txt", `^passwd_[0-9a-f]{6}\.txt$`},
		{`C:\docs\notes.md`, `^notes_[0-9a-f]{6}\.md$`},
		{".docx", `^file_[0-9a-f]{6}\.docx$`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Regexp(t, regexp.MustCompile(tt.pattern), SafeFileName(tt.name))
		})
	}
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "pdf", FileExtension("a.PDF"))
	assert.Equal(t, "", FileExtension("README"))
}
