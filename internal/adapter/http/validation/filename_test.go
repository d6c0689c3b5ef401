package validation

import (
	"path/filepath"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "clip.mp4", "clip.mp4"},
		{"spaces", "my holiday video.mp4", "my_holiday_video.mp4"},
		{"surrounding whitespace", "  clip.mp4  ", "clip.mp4"},
		{"multiple dots", "part.1.final.mkv", "part.1.final.mkv"},
		{"unicode kept", "vidéo été.mov", "vidéo_été.mov"},
		{"unix traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\Users\me\Videos\clip.avi`, "clip.avi"},
		{"hidden file", ".bashrc.mp4", "bashrc.mp4"},
		{"header injection", "clip\r\nX-Evil: 1.mp4", "clip__X-Evil__1.mp4"},
		{"quotes", `say "hi".webm`, "say__hi_.webm"},
		{"shell characters", "a|b<c>d?.mp4", "a_b_c_d_.mp4"},
		{"empty", "", "video"},
		{"only dots", "...", "video"},
		{"only unsafe with extension", "???.mp4", "video.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilename_Truncates(t *testing.T) {
	long := strings.Repeat("a", 400) + ".mp4"
	got := SanitizeFilename(long)

	assert.Len(t, got, maxFilenameLength)
	assert.Equal(t, ".mp4", filepath.Ext(got))
}

func TestSanitizeFilename_TruncatesOnRuneBoundary(t *testing.T) {
	long := strings.Repeat("é", 150) + ".mkv"
	got := SanitizeFilename(long)

	assert.LessOrEqual(t, len(got), maxFilenameLength)
	assert.True(t, utf8.ValidString(got))
	assert.True(t, strings.HasSuffix(got, ".mkv"))
}

func TestSanitizeFilename_InvalidUTF8(t *testing.T) {
	got := SanitizeFilename("clip\xff\xfe.mp4")
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, "clip__.mp4", got)
}

func TestContentDisposition(t *testing.T) {
	assert.Equal(t, `attachment; filename="job_upscaled.mp4"`, ContentDisposition("job_upscaled.mp4"))
	assert.Equal(t, `attachment; filename="a_b.mp4"`, ContentDisposition("a\"b.mp4"))
}
