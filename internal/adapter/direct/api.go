// Package direct exposes the transcription service as an in-process API for
// host applications that embed the engine instead of talking to it over HTTP.
package direct

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/service"
)

// JobService is the service surface the embedded transport consumes.
type JobService interface {
	Submit(filePath string, opts domain.Options) (*domain.Job, error)
	Get(jobID string) (*domain.Job, error)
	Cancel(jobID string) bool
	History() []*domain.Job
	Models() ([]domain.Model, error)
	DownloadModel(ctx context.Context, name string, onProgress func(float64)) error
}

type API struct {
	svc        JobService
	dispatcher *service.Dispatcher
}

func NewAPI(svc JobService, dispatcher *service.Dispatcher) *API {
	return &API{svc: svc, dispatcher: dispatcher}
}

// RegisterObserver installs the host's callback receiver. Events are
// delivered synchronously on the job's processing goroutine, so observers
// must return quickly.
func (a *API) RegisterObserver(obs service.Observer) {
	a.dispatcher.SetObserver(obs)
}

// TranscribeAudio submits a transcription job for a file already on disk.
func (a *API) TranscribeAudio(filePath string, opts domain.Options) (*domain.Job, error) {
	return a.svc.Submit(filePath, opts)
}

func (a *API) GetJobStatus(jobID string) (*domain.Job, error) {
	return a.svc.Get(jobID)
}

// CancelJob stops a pending or in-flight job. It reports false when the job
// is unknown or already finished.
func (a *API) CancelJob(jobID string) bool {
	return a.svc.Cancel(jobID)
}

func (a *API) GetHistory() []*domain.Job {
	return a.svc.History()
}

func (a *API) GetAvailableModels() ([]domain.Model, error) {
	return a.svc.Models()
}

func (a *API) DownloadModel(ctx context.Context, name string, onProgress func(float64)) error {
	return a.svc.DownloadModel(ctx, name, onProgress)
}

// SaveTranscript exports a result in the given format and writes it to
// destPath, creating parent directories as needed.
func (a *API) SaveTranscript(result *domain.Result, format domain.OutputFormat, destPath string) error {
	content, err := domain.ExportTranscript(result, format)
	if err != nil {
		return fmt.Errorf("export transcript: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}
	if err := os.WriteFile(destPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
