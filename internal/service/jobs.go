package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/infrastructure/logger"
	"github.com/bnema/scribe/internal/port"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
)

// historyLimit caps the retained job history; insertion evicts the oldest.
const historyLimit = 50

type jobEntry struct {
	job         *domain.Job
	cancel      context.CancelFunc
	fileDeleted bool
}

// JobService owns every Job record for its lifetime and is the single source
// of truth queried by all transports. Submission is non-blocking; each job's
// processing runs as an independent goroutine, gated by a weighted semaphore
// since the engine process is CPU-bound.
type JobService struct {
	engine    port.Engine
	converter port.AudioConverter
	notifier  port.Notifier
	sem       *semaphore.Weighted
	log       zerolog.Logger

	mu      sync.Mutex
	jobs    map[string]*jobEntry
	history *History
}

func NewJobService(engine port.Engine, converter port.AudioConverter, notifier port.Notifier, maxConcurrent int) *JobService {
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	return &JobService{
		engine:    engine,
		converter: converter,
		notifier:  notifier,
		sem:       semaphore.NewWeighted(int64(maxConcurrent)),
		log:       logger.WithComponent("jobs"),
		jobs:      make(map[string]*jobEntry),
		history:   NewHistory(historyLimit),
	}
}

// Submit registers a new pending job and begins processing asynchronously.
// The returned snapshot has status pending and progress 0.
func (s *JobService) Submit(filePath string, opts domain.Options) (*domain.Job, error) {
	if _, err := os.Stat(filePath); err != nil {
		return nil, fmt.Errorf("audio file: %w", err)
	}

	job := domain.NewJob(filePath, opts)
	ctx, cancel := context.WithCancel(context.Background())
	entry := &jobEntry{job: job, cancel: cancel}

	s.mu.Lock()
	s.jobs[job.ID] = entry
	s.mu.Unlock()

	s.log.Info().Str("job", job.ID).Str("file", job.FileName).Str("model", job.Options.Model).Msg("job submitted")
	go s.process(ctx, entry)

	return job.Clone(), nil
}

func (s *JobService) process(ctx context.Context, entry *jobEntry) {
	defer entry.cancel()

	if err := s.sem.Acquire(ctx, 1); err != nil {
		// Cancelled while pending; Cancel already finalized the record.
		return
	}
	defer s.sem.Release(1)

	s.mu.Lock()
	if entry.job.Terminal() {
		s.mu.Unlock()
		return
	}
	entry.job.MarkProcessing()
	filePath := entry.job.FilePath
	opts := entry.job.Options
	s.mu.Unlock()

	if duration, err := s.converter.Duration(ctx, filePath); err == nil && duration > 0 {
		s.mu.Lock()
		entry.job.AudioDuration = duration
		s.mu.Unlock()
	}

	s.advance(entry, 5, "Starting transcription")
	s.advance(entry, 10, "Loading model")

	result, err := s.engine.Transcribe(ctx, filePath, opts, func(enginePct int) {
		// Engine progress occupies the middle 80% of the job's bar; the
		// first 10% is setup and the last 10% finalization.
		s.advance(entry, 10+enginePct*80/100, "Transcribing audio")
	})
	if err != nil {
		s.finalizeFailure(ctx, entry, err)
		return
	}

	s.finalizeSuccess(entry, result)
}

// advance bumps the job's progress and notifies. Stale or non-increasing
// values are dropped so subscribers only ever see a non-decreasing sequence.
func (s *JobService) advance(entry *jobEntry, progress int, message string) {
	s.mu.Lock()
	if entry.job.Status != domain.JobStatusProcessing || !entry.job.SetProgress(progress) {
		s.mu.Unlock()
		return
	}
	stored := entry.job.Progress
	id := entry.job.ID
	s.mu.Unlock()

	s.notifier.Progress(id, stored, message)
}

func (s *JobService) finalizeSuccess(entry *jobEntry, result *domain.Result) {
	s.mu.Lock()
	if entry.job.Terminal() {
		// Cancelled while the engine was finishing; the cancel path already
		// emitted the terminal event and removed the file.
		s.mu.Unlock()
		return
	}
	entry.job.MarkCompleted(result)
	id := entry.job.ID
	snapshot := entry.job.Clone()
	s.mu.Unlock()

	s.history.Add(snapshot)
	s.notifier.Progress(id, 100, "Completed")
	s.notifier.Completed(id, result)
	s.deleteFile(entry)

	s.log.Info().Str("job", id).Int64("ms", snapshot.TranscriptionTime).Msg("job completed")
}

func (s *JobService) finalizeFailure(ctx context.Context, entry *jobEntry, err error) {
	if errors.Is(err, context.Canceled) || ctx.Err() != nil {
		// Killed by Cancel, which already finalized the record.
		return
	}

	s.mu.Lock()
	if entry.job.Terminal() {
		s.mu.Unlock()
		return
	}
	entry.job.MarkFailed(err.Error())
	id := entry.job.ID
	s.mu.Unlock()

	s.notifier.Failed(id, err.Error())
	s.deleteFile(entry)

	s.log.Error().Str("job", id).Err(err).Msg("job failed")
}

// deleteFile removes the job's source audio exactly once. Secondary failures
// are logged and swallowed; uploads are otherwise unbounded disk consumption.
func (s *JobService) deleteFile(entry *jobEntry) {
	s.mu.Lock()
	if entry.fileDeleted {
		s.mu.Unlock()
		return
	}
	entry.fileDeleted = true
	path := entry.job.FilePath
	s.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		s.log.Warn().Err(err).Str("path", path).Msg("failed to remove source file")
	}
}

// Get returns a snapshot of the job, or domain.ErrNotFound.
func (s *JobService) Get(jobID string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entry, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return entry.job.Clone(), nil
}

// Cancel transitions a pending or processing job to cancelled, kills the
// in-flight engine process, deletes the source file, and emits an
// error-style notification. It reports false for unknown jobs and for jobs
// already in a terminal state.
func (s *JobService) Cancel(jobID string) bool {
	s.mu.Lock()
	entry, ok := s.jobs[jobID]
	if !ok || entry.job.Terminal() {
		s.mu.Unlock()
		return false
	}
	entry.job.MarkCancelled()
	cancel := entry.cancel
	s.mu.Unlock()

	cancel()
	s.notifier.Failed(jobID, "Job cancelled by user")
	s.deleteFile(entry)

	s.log.Info().Str("job", jobID).Msg("job cancelled")
	return true
}

// History returns the capped, newest-first list of completed jobs.
func (s *JobService) History() []*domain.Job {
	return s.history.List()
}

func (s *JobService) Models() ([]domain.Model, error) {
	return s.engine.Models()
}

func (s *JobService) DownloadModel(ctx context.Context, name string, onProgress func(float64)) error {
	return s.engine.DownloadModel(ctx, name, onProgress)
}
