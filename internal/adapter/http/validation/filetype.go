// Package validation provides upload validation utilities.
package validation

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strings"
)

// ErrDisallowedFileType is returned when a file type is not in the allowlist.
var ErrDisallowedFileType = errors.New("file type not allowed")

// allowedExtensions is the set of audio file extensions accepted for upload.
var allowedExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".ogg":  true,
	".m4a":  true,
	".flac": true,
	".aac":  true,
}

// allowedMIMETypes is the allowlist of audio MIME types accepted for upload.
var allowedMIMETypes = map[string]bool{
	"audio/mpeg":      true,
	"audio/ogg":       true,
	"application/ogg": true,
	"audio/wav":       true,
	"audio/wave":      true,
	"audio/x-wav":     true,
	"audio/flac":      true,
	"audio/x-flac":    true,
	"audio/aac":       true,
	"audio/mp4":       true,
}

// AllowedExtension reports whether the filename carries an accepted audio
// extension. The check is case-insensitive.
func AllowedExtension(filename string) bool {
	return allowedExtensions[strings.ToLower(filepath.Ext(filename))]
}

// magicBytesBufferSize is the number of bytes to read for content type detection.
const magicBytesBufferSize = 512

// ValidateMagicBytes validates a file's content type by reading its magic bytes.
// It uses http.DetectContentType for standard detection and includes custom
// detection for audio formats the standard library does not recognize.
//
// The function reads up to 512 bytes from the reader, detects the MIME type,
// and resets the reader position to the beginning.
func ValidateMagicBytes(reader io.ReadSeeker) (mime string, allowed bool, err error) {
	buf := make([]byte, magicBytesBufferSize)
	n, err := reader.Read(buf)
	if err != nil && !errors.Is(err, io.EOF) {
		return "", false, err
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return "", false, err
	}

	if n == 0 {
		return "application/octet-stream", false, nil
	}

	buf = buf[:n]

	mime = detectCustomMagicBytes(buf)
	if mime == "" {
		mime = http.DetectContentType(buf)
	}

	allowed = allowedMIMETypes[mime]

	return mime, allowed, nil
}

// detectCustomMagicBytes handles detection of audio types that
// http.DetectContentType may not recognize correctly.
func detectCustomMagicBytes(buf []byte) string {
	if len(buf) < 4 {
		return ""
	}

	// FLAC: starts with "fLaC"
	if buf[0] == 'f' && buf[1] == 'L' && buf[2] == 'a' && buf[3] == 'C' {
		return "audio/flac"
	}

	// MP3 without ID3: frame sync (0xFF 0xFB, 0xFF 0xFA, 0xFF 0xF3, 0xFF 0xF2)
	if buf[0] == 0xFF {
		switch buf[1] & 0xFE {
		case 0xFA, 0xF2: // MPEG1/2 Layer 3
			return "audio/mpeg"
		}
	}

	// ID3 tag (common for MP3): starts with "ID3"
	if buf[0] == 'I' && buf[1] == 'D' && buf[2] == '3' {
		return "audio/mpeg"
	}

	// ADTS AAC: 12-bit frame sync 0xFFF
	if buf[0] == 0xFF && buf[1]&0xF6 == 0xF0 {
		return "audio/aac"
	}

	// WAV: RIFF....WAVE (bytes 0-3: RIFF, bytes 8-11: WAVE)
	if len(buf) >= 12 {
		if buf[0] == 'R' && buf[1] == 'I' && buf[2] == 'F' && buf[3] == 'F' &&
			buf[8] == 'W' && buf[9] == 'A' && buf[10] == 'V' && buf[11] == 'E' {
			return "audio/wav"
		}
	}

	// M4A: ftyp box at offset 4 with an audio brand
	if len(buf) >= 12 {
		if buf[4] == 'f' && buf[5] == 't' && buf[6] == 'y' && buf[7] == 'p' {
			brand := string(buf[8:12])
			switch brand {
			case "M4A ", "M4B ", "mp42", "isom":
				return "audio/mp4"
			}
		}
	}

	return ""
}
