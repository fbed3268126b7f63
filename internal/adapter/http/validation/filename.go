package validation

import (
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxFilenameLength is the maximum allowed filename length (common filesystem limit).
const maxFilenameLength = 255

// SanitizeFilename makes an uploaded filename safe to embed in an on-disk
// name. Path separators, control characters, and characters that break HTTP
// headers are replaced with underscore; Unicode letters are preserved. The
// result is truncated to 255 bytes keeping the extension, and empty or
// fully-replaced input yields "audio".
func SanitizeFilename(name string) string {
	var sb strings.Builder
	sb.Grow(len(name))

	for _, r := range name {
		if shouldReplace(r) {
			sb.WriteRune('_')
		} else {
			sb.WriteRune(r)
		}
	}

	result := strings.TrimSpace(sb.String())

	if strings.Trim(result, "_") == "" {
		return "audio"
	}

	if len(result) > maxFilenameLength {
		result = truncatePreservingExtension(result)
	}

	return result
}

func shouldReplace(r rune) bool {
	if r < 32 || r == 127 {
		return true
	}
	switch r {
	case '"', '\\', '/', ':':
		return true
	}
	return false
}

// truncatePreservingExtension shortens a filename to maxFilenameLength bytes,
// keeping the extension when it fits.
func truncatePreservingExtension(name string) string {
	ext := filepath.Ext(name)
	if len(ext) == 0 || len(ext) >= maxFilenameLength {
		return truncateToBytes(name, maxFilenameLength)
	}

	base := name[:len(name)-len(ext)]
	return truncateToBytes(base, maxFilenameLength-len(ext)) + ext
}

// truncateToBytes cuts a UTF-8 string to at most maxBytes without splitting
// a multi-byte rune.
func truncateToBytes(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	for maxBytes > 0 && !utf8.RuneStart(s[maxBytes]) {
		maxBytes--
	}
	return s[:maxBytes]
}
