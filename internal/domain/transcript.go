package domain

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Segment is one timed span of transcript text. Start and End are seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the outcome of a completed transcription.
type Result struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments,omitempty"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

type jsonExport struct {
	Transcript string         `json:"transcript"`
	Metadata   jsonExportMeta `json:"metadata"`
	ExportedAt string         `json:"exportedAt"`
}

type jsonExportMeta struct {
	Segments []Segment `json:"segments,omitempty"`
	Language string    `json:"language,omitempty"`
	Duration float64   `json:"duration,omitempty"`
}

// ExportTranscript renders a result in the requested output format: plain
// text as-is, SRT with comma-decimal timestamps, WebVTT with dot-decimal
// timestamps, or a JSON envelope.
func ExportTranscript(result *Result, format OutputFormat) (string, error) {
	switch format {
	case OutputFormatText:
		return result.Text, nil
	case OutputFormatSRT:
		return formatSRT(result), nil
	case OutputFormatVTT:
		return formatVTT(result), nil
	case OutputFormatJSON:
		out, err := json.MarshalIndent(jsonExport{
			Transcript: result.Text,
			Metadata: jsonExportMeta{
				Segments: result.Segments,
				Language: result.Language,
				Duration: result.Duration,
			},
			ExportedAt: time.Now().UTC().Format(time.RFC3339),
		}, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode transcript: %w", err)
		}
		return string(out), nil
	default:
		return "", fmt.Errorf("unsupported export format: %q", format)
	}
}

func formatSRT(result *Result) string {
	if len(result.Segments) == 0 {
		return result.Text
	}

	var sb strings.Builder
	for i, seg := range result.Segments {
		fmt.Fprintf(&sb, "%d\n%s --> %s\n%s\n\n",
			i+1,
			FormatTimestamp(seg.Start, ','),
			FormatTimestamp(seg.End, ','),
			strings.TrimSpace(seg.Text))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

func formatVTT(result *Result) string {
	if len(result.Segments) == 0 {
		return "WEBVTT\n\n" + result.Text
	}

	var sb strings.Builder
	sb.WriteString("WEBVTT\n\n")
	for _, seg := range result.Segments {
		fmt.Fprintf(&sb, "%s --> %s\n%s\n\n",
			FormatTimestamp(seg.Start, '.'),
			FormatTimestamp(seg.End, '.'),
			strings.TrimSpace(seg.Text))
	}
	return strings.TrimSuffix(sb.String(), "\n")
}

// FormatTimestamp renders seconds as HH:MM:SS<sep>mmm, the cue timing form
// shared by SRT (comma separator) and WebVTT (dot separator).
func FormatTimestamp(seconds float64, sep byte) string {
	if seconds < 0 {
		seconds = 0
	}
	ms := int64(math.Round(seconds * 1000))
	h := ms / 3600000
	m := (ms % 3600000) / 60000
	s := (ms % 60000) / 1000
	frac := ms % 1000
	return fmt.Sprintf("%02d:%02d:%02d%c%03d", h, m, s, sep, frac)
}

// ParseTimestamp reads a cue timestamp back into seconds. Both comma and dot
// millisecond separators are accepted.
func ParseTimestamp(ts string) (float64, error) {
	normalized := strings.Replace(ts, ",", ".", 1)
	parts := strings.SplitN(normalized, ":", 3)
	if len(parts) != 3 {
		return 0, fmt.Errorf("invalid timestamp: %q", ts)
	}

	h, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %q", ts)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %q", ts)
	}
	s, err := strconv.ParseFloat(parts[2], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid timestamp: %q", ts)
	}

	return float64(h)*3600 + float64(m)*60 + s, nil
}
