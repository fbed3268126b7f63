package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/bnema/scribe/internal/adapter/http/validation"
	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/google/uuid"
)

// TranscriptionService is the service surface the HTTP transport consumes.
type TranscriptionService interface {
	Submit(filePath string, opts domain.Options) (*domain.Job, error)
	Get(jobID string) (*domain.Job, error)
	Cancel(jobID string) bool
	History() []*domain.Job
	Models() ([]domain.Model, error)
	DownloadModel(ctx context.Context, name string, onProgress func(float64)) error
}

type Handlers struct {
	svc       TranscriptionService
	uploadDir string
	maxSizeMB int
}

func NewHandlers(svc TranscriptionService, uploadDir string, maxSizeMB int) *Handlers {
	return &Handlers{
		svc:       svc,
		uploadDir: uploadDir,
		maxSizeMB: maxSizeMB,
	}
}

// Process accepts a multipart audio upload plus option fields, stores the
// file under the upload directory, and submits a transcription job. The
// response carries the pending job snapshot.
func (h *Handlers) Process() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r.Body = http.MaxBytesReader(w, r.Body, int64(h.maxSizeMB)*1024*1024)

		if err := r.ParseMultipartForm(32 << 20); err != nil {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}

		file, header, err := r.FormFile("audio")
		if err != nil {
			writeError(w, http.StatusBadRequest, "Missing audio file")
			return
		}
		defer file.Close() //nolint:errcheck

		if !validation.AllowedExtension(header.Filename) {
			writeError(w, http.StatusBadRequest, "Unsupported file type")
			return
		}

		opts, err := parseOptions(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}

		destPath, err := h.saveUpload(file, header.Filename)
		if err != nil {
			if errors.Is(err, validation.ErrDisallowedFileType) {
				writeError(w, http.StatusBadRequest, "Unsupported file type")
				return
			}
			log := logger.WithComponent("http")
			log.Error().Err(err).Str("file", header.Filename).Msg("upload failed")
			writeError(w, http.StatusInternalServerError, "Failed to save upload")
			return
		}

		job, err := h.svc.Submit(destPath, opts)
		if err != nil {
			_ = os.Remove(destPath)
			log := logger.WithComponent("http")
			log.Error().Err(err).Msg("submit failed")
			writeError(w, http.StatusInternalServerError, "Failed to start transcription")
			return
		}

		writeJSON(w, http.StatusOK, job)
	}
}

// saveUpload writes the multipart file to a uniquely named path under the
// upload directory and verifies its magic bytes before accepting it.
func (h *Handlers) saveUpload(file io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		return "", err
	}

	name := fmt.Sprintf("%d-%s-%s",
		time.Now().UnixMilli(),
		uuid.NewString()[:8],
		validation.SanitizeFilename(filepath.Base(originalName)))
	destPath := filepath.Join(h.uploadDir, name)

	dest, err := os.Create(destPath)
	if err != nil {
		return "", err
	}

	if _, err := io.Copy(dest, file); err != nil {
		dest.Close() //nolint:errcheck
		_ = os.Remove(destPath)
		return "", err
	}

	if _, err := dest.Seek(0, io.SeekStart); err != nil {
		dest.Close() //nolint:errcheck
		_ = os.Remove(destPath)
		return "", err
	}
	_, allowed, err := validation.ValidateMagicBytes(dest)
	dest.Close() //nolint:errcheck
	if err != nil {
		_ = os.Remove(destPath)
		return "", err
	}
	if !allowed {
		_ = os.Remove(destPath)
		return "", validation.ErrDisallowedFileType
	}

	return destPath, nil
}

func parseOptions(r *http.Request) (domain.Options, error) {
	opts := domain.Options{
		Model:        r.FormValue("model"),
		Language:     r.FormValue("language"),
		Translate:    r.FormValue("translate") == "true",
		OutputFormat: domain.OutputFormat(r.FormValue("outputFormat")),
		Timestamps:   r.FormValue("timestamps") != "false",
	}

	if v := r.FormValue("threads"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New("invalid threads value")
		}
		opts.Threads = n
	}
	if v := r.FormValue("processors"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return opts, errors.New("invalid processors value")
		}
		opts.Processors = n
	}
	if opts.OutputFormat != "" && !opts.OutputFormat.Valid() {
		return opts, errors.New("invalid output format")
	}

	return opts.Normalized(), nil
}

func (h *Handlers) Status() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, err := h.svc.Get(r.PathValue("jobId"))
		if err != nil {
			writeError(w, http.StatusNotFound, "Job not found")
			return
		}
		writeJSON(w, http.StatusOK, job)
	}
}

func (h *Handlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, h.svc.History())
	}
}

func (h *Handlers) Models() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		models, err := h.svc.Models()
		if err != nil {
			log := logger.WithComponent("http")
			log.Error().Err(err).Msg("model listing failed")
			writeError(w, http.StatusInternalServerError, "Failed to list models")
			return
		}
		writeJSON(w, http.StatusOK, models)
	}
}

func (h *Handlers) DownloadModel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.PathValue("modelName")
		if err := h.svc.DownloadModel(r.Context(), name, nil); err != nil {
			if errors.Is(err, domain.ErrUnknownModel) {
				writeError(w, http.StatusNotFound, "Unknown model")
				return
			}
			log := logger.WithComponent("http")
			log.Error().Err(err).Str("model", name).Msg("model download failed")
			writeError(w, http.StatusInternalServerError, "Model download failed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"model": name})
	}
}

func (h *Handlers) Cancel() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.svc.Cancel(r.PathValue("jobId")) {
			writeError(w, http.StatusNotFound, "Job not found or already completed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]bool{"cancelled": true})
	}
}
