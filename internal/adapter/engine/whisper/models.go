package whisper

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/bnema/scribe/internal/domain"
	"github.com/cavaliercoder/grab"
)

const modelURLBase = "https://huggingface.co/ggerganov/whisper.cpp/resolve/main/"

// catalog lists the supported whisper.cpp model presets.
var catalog = []domain.Model{
	{Name: "tiny", Size: "39 MB", Description: "Fastest, least accurate"},
	{Name: "base", Size: "74 MB", Description: "Fast, good accuracy"},
	{Name: "small", Size: "244 MB", Description: "Balanced speed/accuracy"},
	{Name: "medium", Size: "769 MB", Description: "Slower, better accuracy"},
	{Name: "large", Size: "1550 MB", Description: "Slowest, best accuracy"},
}

func modelFileName(name string) string {
	return "ggml-" + name + ".bin"
}

func (e *Engine) modelPath(name string) string {
	return filepath.Join(e.modelsDir, modelFileName(name))
}

// Models returns the static catalog merged with on-disk installed status.
func (e *Engine) Models() ([]domain.Model, error) {
	installed, err := e.installedModels()
	if err != nil {
		return nil, fmt.Errorf("scan models directory: %w", err)
	}

	models := make([]domain.Model, len(catalog))
	copy(models, catalog)
	for i := range models {
		models[i].Path = e.modelPath(models[i].Name)
		models[i].Installed = installed[models[i].Name]
	}
	return models, nil
}

func (e *Engine) installedModels() (map[string]bool, error) {
	entries, err := os.ReadDir(e.modelsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]bool{}, nil
		}
		return nil, err
	}

	installed := make(map[string]bool)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if len(name) > len("ggml-.bin") && name[:5] == "ggml-" && filepath.Ext(name) == ".bin" {
			installed[name[5:len(name)-4]] = true
		}
	}
	return installed, nil
}

// DownloadModel streams model data from the remote source to disk, following
// redirects and reporting fractional progress. The partial file is removed on
// failure.
func (e *Engine) DownloadModel(ctx context.Context, name string, onProgress func(float64)) error {
	if !knownModel(name) {
		return fmt.Errorf("%w: %q", domain.ErrUnknownModel, name)
	}

	if err := os.MkdirAll(e.modelsDir, 0755); err != nil {
		return fmt.Errorf("create models directory: %w", err)
	}

	dest := e.modelPath(name)
	req, err := grab.NewRequest(dest, modelURLBase+modelFileName(name))
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	req = req.WithContext(ctx)

	e.log.Info().Str("model", name).Str("dest", dest).Msg("downloading model")

	client := grab.NewClient()
	resp := client.Do(req)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if onProgress != nil {
				onProgress(resp.Progress())
			}
		case <-resp.Done:
			if err := resp.Err(); err != nil {
				_ = os.Remove(dest)
				return fmt.Errorf("download model %s: %w", name, err)
			}
			if onProgress != nil {
				onProgress(1)
			}
			e.log.Info().Str("model", name).Msg("model downloaded")
			return nil
		}
	}
}

func knownModel(name string) bool {
	for _, m := range catalog {
		if m.Name == name {
			return true
		}
	}
	return false
}
