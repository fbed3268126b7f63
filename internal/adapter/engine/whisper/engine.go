// Package whisper invokes the whisper.cpp binary as a subprocess and
// translates its output into structured transcription results.
package whisper

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/bnema/scribe/internal/port"
	"github.com/rs/zerolog"
)

// ExitError carries the full postmortem context of a failed engine run.
type ExitError struct {
	Code   int
	Stdout string
	Stderr string
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("whisper exited with code %d. Error: %s. Output: %s",
		e.Code, orNone(e.Stderr), orNone(e.Stdout))
}

func orNone(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return "(none)"
	}
	return s
}

type Engine struct {
	binPath   string
	modelsDir string
	converter port.AudioConverter
	log       zerolog.Logger
}

func NewEngine(binPath, modelsDir string, converter port.AudioConverter) *Engine {
	return &Engine{
		binPath:   binPath,
		modelsDir: modelsDir,
		converter: converter,
		log:       logger.WithComponent("whisper"),
	}
}

// Initialize verifies the engine binary is present and that at least one
// model is installed, downloading the tiny model when none are. A missing
// binary is a broken installation and is not retried.
func (e *Engine) Initialize(ctx context.Context) error {
	resolved, err := e.resolveBinary()
	if err != nil {
		return err
	}
	e.binPath = resolved

	if err := os.MkdirAll(e.modelsDir, 0755); err != nil {
		return fmt.Errorf("create models directory: %w", err)
	}

	if e.converter.Available() {
		e.log.Info().Msg("ffmpeg detected, multi-format audio support enabled")
	} else {
		e.log.Warn().Msg("ffmpeg not found, only WAV files will be supported")
	}

	installed, err := e.installedModels()
	if err != nil {
		return fmt.Errorf("scan models directory: %w", err)
	}
	if len(installed) == 0 {
		e.log.Info().Msg("no models installed, downloading tiny model")
		if err := e.DownloadModel(ctx, "tiny", nil); err != nil {
			return fmt.Errorf("download default model: %w", err)
		}
	}

	return nil
}

func (e *Engine) resolveBinary() (string, error) {
	if strings.ContainsRune(e.binPath, os.PathSeparator) {
		if _, err := os.Stat(e.binPath); err != nil {
			return "", fmt.Errorf("%w: %s", domain.ErrEngineMissing, e.binPath)
		}
		return e.binPath, nil
	}

	resolved, err := exec.LookPath(e.binPath)
	if err != nil {
		return "", fmt.Errorf("%w: %s", domain.ErrEngineMissing, e.binPath)
	}
	return resolved, nil
}

// Transcribe runs the engine once over the given audio file. Non-WAV input
// is normalized first and the temporary WAV is removed after the process
// exits, regardless of outcome.
func (e *Engine) Transcribe(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
	opts = opts.Normalized()

	modelPath := e.modelPath(opts.Model)
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model %q %w", opts.Model, domain.ErrModelNotFound)
	}

	inputPath := audioPath
	if !e.converter.IsWav(audioPath) {
		if !e.converter.Available() {
			return nil, fmt.Errorf("input %s: %w", audioPath, domain.ErrConverterUnavailable)
		}
		converted, err := e.converter.ToWav(ctx, audioPath)
		if err != nil {
			return nil, fmt.Errorf("audio conversion failed: %w", err)
		}
		inputPath = converted
		defer func() {
			if err := os.Remove(converted); err != nil {
				e.log.Warn().Err(err).Str("path", converted).Msg("failed to remove converted audio")
			}
		}()
	}

	args := buildArgs(modelPath, inputPath, opts)
	e.log.Debug().Str("bin", e.binPath).Strs("args", args).Msg("invoking whisper")

	cmd := exec.CommandContext(ctx, e.binPath, args...)

	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("open stdout pipe: %w", err)
	}
	stderrPipe, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("open stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start whisper: %w", err)
	}

	// Progress appears on either stream, so both drains share one filter.
	// The filter itself is not goroutine-safe; a mutex keeps the strictly
	// increasing guarantee across streams.
	var mu sync.Mutex
	filter := newProgressFilter(onProgress)
	scan := func(line string) {
		mu.Lock()
		filter.Scan(line)
		mu.Unlock()
	}

	var wg sync.WaitGroup
	var stdout, stderr strings.Builder
	wg.Add(2)
	go drain(stdoutPipe, &stdout, scan, &wg)
	go drain(stderrPipe, &stderr, scan, &wg)
	wg.Wait()

	waitErr := cmd.Wait()
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if waitErr != nil {
		code := -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			code = exitErr.ExitCode()
		}
		return nil, &ExitError{
			Code:   code,
			Stdout: stdout.String(),
			Stderr: stderr.String(),
		}
	}

	return parseOutput(stdout.String(), opts.OutputFormat, e.log), nil
}

func drain(r io.Reader, buf *strings.Builder, scan func(string), wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		buf.WriteString(line)
		buf.WriteByte('\n')
		scan(line)
	}
}

// parseOutput interprets the engine's stdout. Structured (JSON) output that
// fails to parse degrades to raw text rather than failing the job.
func parseOutput(output string, format domain.OutputFormat, log zerolog.Logger) *domain.Result {
	if format != domain.OutputFormatJSON {
		return &domain.Result{Text: output}
	}

	var parsed struct {
		Text     string           `json:"text"`
		Segments []domain.Segment `json:"segments"`
		Language string           `json:"language"`
		Duration float64          `json:"duration"`
	}
	if err := json.Unmarshal([]byte(output), &parsed); err != nil {
		log.Warn().Err(err).Msg("failed to parse JSON output, falling back to raw text")
		return &domain.Result{Text: output}
	}

	return &domain.Result{
		Text:     parsed.Text,
		Segments: parsed.Segments,
		Language: parsed.Language,
		Duration: parsed.Duration,
	}
}

func buildArgs(modelPath, audioPath string, opts domain.Options) []string {
	args := []string{
		"-m", modelPath,
		"-f", audioPath,
		"-t", strconv.Itoa(opts.Threads),
		"-p", strconv.Itoa(opts.Processors),
	}

	if lang := strings.TrimSpace(opts.Language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	if opts.Translate {
		args = append(args, "--translate")
	}

	switch opts.OutputFormat {
	case domain.OutputFormatJSON:
		args = append(args, "-oj")
	case domain.OutputFormatSRT:
		args = append(args, "-osrt")
	case domain.OutputFormatVTT:
		args = append(args, "-ovtt")
	}

	if !opts.Timestamps {
		args = append(args, "-nt")
	}

	return args
}

var _ port.Engine = (*Engine)(nil)
