package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/bnema/scribe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	mu         sync.Mutex
	transcribe func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error)
	models     []domain.Model
	downloaded []string
}

func (e *stubEngine) Models() ([]domain.Model, error) {
	return e.models, nil
}

func (e *stubEngine) DownloadModel(ctx context.Context, name string, onProgress func(float64)) error {
	e.mu.Lock()
	e.downloaded = append(e.downloaded, name)
	e.mu.Unlock()
	if onProgress != nil {
		onProgress(1)
	}
	return nil
}

func (e *stubEngine) Transcribe(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
	return e.transcribe(ctx, audioPath, opts, onProgress)
}

type stubConverter struct {
	duration float64
}

func (c *stubConverter) Available() bool        { return true }
func (c *stubConverter) IsWav(path string) bool { return true }

func (c *stubConverter) ToWav(ctx context.Context, inputPath string) (string, error) {
	return inputPath, nil
}
func (c *stubConverter) Duration(ctx context.Context, path string) (float64, error) {
	return c.duration, nil
}

type progressCall struct {
	progress int
	message  string
}

// recordingNotifier captures the full event sequence and signals terminal
// events so tests can wait for async processing.
type recordingNotifier struct {
	mu        sync.Mutex
	progress  []progressCall
	completed []*domain.Result
	failed    []string
	terminal  chan struct{}
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{terminal: make(chan struct{}, 4)}
}

func (n *recordingNotifier) Progress(jobID string, progress int, message string) {
	n.mu.Lock()
	n.progress = append(n.progress, progressCall{progress, message})
	n.mu.Unlock()
}

func (n *recordingNotifier) Completed(jobID string, result *domain.Result) {
	n.mu.Lock()
	n.completed = append(n.completed, result)
	n.mu.Unlock()
	n.terminal <- struct{}{}
}

func (n *recordingNotifier) Failed(jobID string, errMsg string) {
	n.mu.Lock()
	n.failed = append(n.failed, errMsg)
	n.mu.Unlock()
	n.terminal <- struct{}{}
}

func (n *recordingNotifier) waitTerminal(t *testing.T) {
	t.Helper()
	select {
	case <-n.terminal:
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for terminal event")
	}
}

func tempAudioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audio.wav")
	require.NoError(t, os.WriteFile(path, []byte("RIFF fake wav"), 0o644))
	return path
}

func TestSubmitMissingFile(t *testing.T) {
	svc := NewJobService(&stubEngine{}, &stubConverter{}, newRecordingNotifier(), 2)

	_, err := svc.Submit("/nonexistent/audio.wav", domain.Options{})
	assert.Error(t, err)
}

func TestJobCompletes(t *testing.T) {
	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			onProgress(25)
			onProgress(50)
			onProgress(100)
			return &domain.Result{Text: "hello world", Language: "en"}, nil
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{duration: 42.5}, notifier, 2)

	path := tempAudioFile(t)
	job, err := svc.Submit(path, domain.Options{Model: "tiny"})
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusPending, job.Status)

	notifier.waitTerminal(t)

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
	require.NotNil(t, got.Result)
	assert.Equal(t, "hello world", got.Result.Text)
	assert.Empty(t, got.Error)
	assert.Equal(t, 42.5, got.AudioDuration)
	require.NotNil(t, got.CompletedAt)

	// Source audio is removed once the job finishes.
	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	// Exactly one terminal emission; progress never decreases and only the
	// completion update reports 100.
	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.completed, 1)
	assert.Empty(t, notifier.failed)

	last := -1
	for _, p := range notifier.progress {
		assert.Greater(t, p.progress, last)
		last = p.progress
	}
	assert.Equal(t, 100, notifier.progress[len(notifier.progress)-1].progress)

	// Engine progress maps into the middle of the bar: 50% -> 50 overall.
	assert.Contains(t, notifier.progress, progressCall{50, "Transcribing audio"})
	assert.Contains(t, notifier.progress, progressCall{10, "Loading model"})

	history := svc.History()
	require.Len(t, history, 1)
	assert.Equal(t, job.ID, history[0].ID)
}

func TestJobFails(t *testing.T) {
	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			return nil, errors.New("whisper exited with code 1")
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{}, notifier, 2)

	path := tempAudioFile(t)
	job, err := svc.Submit(path, domain.Options{})
	require.NoError(t, err)

	notifier.waitTerminal(t)

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusFailed, got.Status)
	assert.Equal(t, "whisper exited with code 1", got.Error)
	assert.Nil(t, got.Result)
	assert.Less(t, got.Progress, 100)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	// Failed jobs stay out of history.
	assert.Empty(t, svc.History())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.failed, 1)
	assert.Empty(t, notifier.completed)
}

func TestCancelRunningJob(t *testing.T) {
	started := make(chan struct{})
	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			close(started)
			<-ctx.Done()
			return nil, ctx.Err()
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{}, notifier, 2)

	path := tempAudioFile(t)
	job, err := svc.Submit(path, domain.Options{})
	require.NoError(t, err)

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("job never started processing")
	}

	require.True(t, svc.Cancel(job.ID))
	notifier.waitTerminal(t)

	got, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCancelled, got.Status)
	assert.Nil(t, got.Result)

	assert.Eventually(t, func() bool {
		_, err := os.Stat(path)
		return os.IsNotExist(err)
	}, 2*time.Second, 10*time.Millisecond)

	// Second cancel is rejected; the engine's context error never surfaces
	// as a failure event.
	assert.False(t, svc.Cancel(job.ID))
	assert.Empty(t, svc.History())

	notifier.mu.Lock()
	defer notifier.mu.Unlock()
	require.Len(t, notifier.failed, 1)
	assert.Equal(t, "Job cancelled by user", notifier.failed[0])
	assert.Empty(t, notifier.completed)
}

func TestCancelUnknownJob(t *testing.T) {
	svc := NewJobService(&stubEngine{}, &stubConverter{}, newRecordingNotifier(), 2)
	assert.False(t, svc.Cancel("no-such-job"))
}

func TestCancelCompletedJob(t *testing.T) {
	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			return &domain.Result{Text: "done"}, nil
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{}, notifier, 2)

	job, err := svc.Submit(tempAudioFile(t), domain.Options{})
	require.NoError(t, err)
	notifier.waitTerminal(t)

	assert.False(t, svc.Cancel(job.ID))
}

func TestGetUnknownJob(t *testing.T) {
	svc := NewJobService(&stubEngine{}, &stubConverter{}, newRecordingNotifier(), 2)

	_, err := svc.Get("no-such-job")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGetReturnsSnapshot(t *testing.T) {
	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			return &domain.Result{Text: "done"}, nil
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{}, notifier, 2)

	job, err := svc.Submit(tempAudioFile(t), domain.Options{})
	require.NoError(t, err)
	notifier.waitTerminal(t)

	first, err := svc.Get(job.ID)
	require.NoError(t, err)
	first.Status = domain.JobStatusPending
	first.Progress = 0

	second, err := svc.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.JobStatusCompleted, second.Status)
	assert.Equal(t, 100, second.Progress)
}

func TestBoundedConcurrency(t *testing.T) {
	var mu sync.Mutex
	running, peak := 0, 0
	release := make(chan struct{})

	engine := &stubEngine{
		transcribe: func(ctx context.Context, audioPath string, opts domain.Options, onProgress func(int)) (*domain.Result, error) {
			mu.Lock()
			running++
			if running > peak {
				peak = running
			}
			mu.Unlock()
			<-release
			mu.Lock()
			running--
			mu.Unlock()
			return &domain.Result{Text: "ok"}, nil
		},
	}
	notifier := newRecordingNotifier()
	svc := NewJobService(engine, &stubConverter{}, notifier, 2)

	for i := 0; i < 5; i++ {
		_, err := svc.Submit(tempAudioFile(t), domain.Options{})
		require.NoError(t, err)
	}

	// Give the workers time to hit the semaphore.
	time.Sleep(100 * time.Millisecond)
	close(release)

	for i := 0; i < 5; i++ {
		notifier.waitTerminal(t)
	}

	mu.Lock()
	defer mu.Unlock()
	assert.LessOrEqual(t, peak, 2)
	assert.GreaterOrEqual(t, peak, 1)
}

func TestModelDelegation(t *testing.T) {
	engine := &stubEngine{
		models: []domain.Model{{Name: "tiny", Installed: true}},
	}
	svc := NewJobService(engine, &stubConverter{}, newRecordingNotifier(), 2)

	models, err := svc.Models()
	require.NoError(t, err)
	require.Len(t, models, 1)
	assert.Equal(t, "tiny", models[0].Name)

	var reported float64
	require.NoError(t, svc.DownloadModel(context.Background(), "base", func(p float64) { reported = p }))
	assert.Equal(t, []string{"base"}, engine.downloaded)
	assert.Equal(t, float64(1), reported)
}
