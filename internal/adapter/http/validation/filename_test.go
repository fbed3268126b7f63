package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"simple", "interview.mp3", "interview.mp3"},
		{"spaces", "team standup recording.wav", "team standup recording.wav"},
		{"unicode", "réunion.ogg", "réunion.ogg"},
		{"cjk", "会議.m4a", "会議.m4a"},
		{"forward slash", "a/b.mp3", "a_b.mp3"},
		{"backslash", `a\b.mp3`, "a_b.mp3"},
		{"colon", "a:b.mp3", "a_b.mp3"},
		{"double quote", `a"b.mp3`, "a_b.mp3"},
		{"newline", "a\nb.mp3", "a_b.mp3"},
		{"carriage return", "a\rb.mp3", "a_b.mp3"},
		{"nul byte", "a\x00b.mp3", "a_b.mp3"},
		{"path traversal", "../../../etc/passwd", ".._.._.._etc_passwd"},
		{"empty", "", "audio"},
		{"whitespace only", "   ", "audio"},
		{"dangerous only", `"/\:`, "audio"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, SanitizeFilename(tt.input))
		})
	}
}

func TestSanitizeFilenameTruncation(t *testing.T) {
	long := strings.Repeat("a", 300) + ".flac"
	got := SanitizeFilename(long)

	assert.Len(t, got, 255)
	assert.True(t, strings.HasSuffix(got, ".flac"))

	// Multi-byte runes must not be split at the cut point.
	unicodeLong := strings.Repeat("é", 200) + ".mp3"
	got = SanitizeFilename(unicodeLong)
	assert.LessOrEqual(t, len(got), 255)
	assert.True(t, strings.HasSuffix(got, ".mp3"))
	assert.True(t, strings.HasPrefix(got, "é"))
}
