// Package ffmpeg shells out to ffmpeg to normalize audio into the 16 kHz
// mono PCM WAV encoding whisper requires, and to probe audio duration.
package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/port"
)

type Converter struct {
	binPath   string
	available bool
}

// NewConverter resolves the ffmpeg binary once. A bare name is looked up on
// PATH; anything with a path separator is checked on disk directly.
func NewConverter(binPath string) *Converter {
	if binPath == "" {
		binPath = "ffmpeg"
	}

	c := &Converter{binPath: binPath}
	if strings.ContainsRune(binPath, os.PathSeparator) {
		if _, err := os.Stat(binPath); err == nil {
			c.available = true
		}
	} else if resolved, err := exec.LookPath(binPath); err == nil {
		c.binPath = resolved
		c.available = true
	}
	return c
}

func (c *Converter) Available() bool {
	return c.available
}

func (c *Converter) IsWav(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".wav")
}

// ToWav converts the input into a sibling .wav file and returns its path.
// The caller owns the output file and is responsible for removing it.
func (c *Converter) ToWav(ctx context.Context, inputPath string) (string, error) {
	if !c.available {
		return "", fmt.Errorf("convert %s: %w", filepath.Base(inputPath), domain.ErrConverterUnavailable)
	}

	outputPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + ".wav"

	args := []string{
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-y", outputPath,
	}

	cmd := exec.CommandContext(ctx, c.binPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(outputPath)
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return "", fmt.Errorf("ffmpeg exited with code %d: %s",
				exitErr.ExitCode(), strings.TrimSpace(stderr.String()))
		}
		return "", fmt.Errorf("start ffmpeg: %w", err)
	}

	return outputPath, nil
}

// durationRe matches the "Duration: HH:MM:SS.cc" line ffmpeg prints on its
// diagnostic stream when analyzing a file.
var durationRe = regexp.MustCompile(`Duration:\s*(\d{2}):(\d{2}):(\d{2}\.\d+)`)

// Duration probes the audio length using ffmpeg's null-output analysis mode.
// Any failure yields (0, nil); duration is informational only.
func (c *Converter) Duration(ctx context.Context, path string) (float64, error) {
	if !c.available {
		return 0, nil
	}

	cmd := exec.CommandContext(ctx, c.binPath, "-i", path, "-f", "null", "-")
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	// ffmpeg still prints the Duration line when it errors out, so the run
	// result itself is ignored.
	_ = cmd.Run()

	if seconds, ok := ParseDurationOutput(stderr.String()); ok {
		return seconds, nil
	}
	return 0, nil
}

// ParseDurationOutput extracts total seconds from ffmpeg diagnostic output.
func ParseDurationOutput(output string) (float64, bool) {
	m := durationRe.FindStringSubmatch(output)
	if m == nil {
		return 0, false
	}

	hours, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	minutes, err := strconv.Atoi(m[2])
	if err != nil {
		return 0, false
	}
	seconds, err := strconv.ParseFloat(m[3], 64)
	if err != nil {
		return 0, false
	}

	return float64(hours)*3600 + float64(minutes)*60 + seconds, true
}

var _ port.AudioConverter = (*Converter)(nil)
