package domain

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

type OutputFormat string

const (
	OutputFormatText OutputFormat = "txt"
	OutputFormatSRT  OutputFormat = "srt"
	OutputFormatVTT  OutputFormat = "vtt"
	OutputFormatJSON OutputFormat = "json"
)

func (f OutputFormat) Valid() bool {
	switch f {
	case OutputFormatText, OutputFormatSRT, OutputFormatVTT, OutputFormatJSON:
		return true
	}
	return false
}

// Options are the user-selectable knobs for one transcription run.
type Options struct {
	Model        string       `json:"model"`
	Language     string       `json:"language,omitempty"`
	Translate    bool         `json:"translate,omitempty"`
	Threads      int          `json:"threads,omitempty"`
	Processors   int          `json:"processors,omitempty"`
	OutputFormat OutputFormat `json:"outputFormat,omitempty"`
	Timestamps   bool         `json:"timestamps,omitempty"`
}

// Normalized fills in defaults for unset fields.
func (o Options) Normalized() Options {
	if o.Model == "" {
		o.Model = "base"
	}
	if o.Threads <= 0 {
		o.Threads = 4
	}
	if o.Processors <= 0 {
		o.Processors = 1
	}
	if o.OutputFormat == "" {
		o.OutputFormat = OutputFormatText
	}
	return o
}

// Job is one transcription request's lifecycle record. All mutation happens
// inside the job service under its lock; everything handed to transports is a
// snapshot.
type Job struct {
	ID       string    `json:"id"`
	Status   JobStatus `json:"status"`
	Progress int       `json:"progress"`
	FilePath string    `json:"filePath"`
	FileName string    `json:"fileName"`
	Options  Options   `json:"options"`
	Result   *Result   `json:"result,omitempty"`
	Error    string    `json:"error,omitempty"`

	StartedAt   time.Time  `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`

	// AudioDuration is the probed input length in seconds,
	// TranscriptionTime the wall-clock processing time in milliseconds.
	AudioDuration     float64 `json:"audioDuration,omitempty"`
	TranscriptionTime int64   `json:"transcriptionTime,omitempty"`
}

func NewJob(filePath string, opts Options) *Job {
	return &Job{
		ID:        uuid.NewString(),
		Status:    JobStatusPending,
		Progress:  0,
		FilePath:  filePath,
		FileName:  filepath.Base(filePath),
		Options:   opts.Normalized(),
		StartedAt: time.Now(),
	}
}

func (j *Job) Terminal() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func (j *Job) MarkProcessing() {
	j.Status = JobStatusProcessing
}

// SetProgress clamps to [0,100] and never lets a late-arriving lower value
// regress the display. Returns true when the stored value actually advanced.
func (j *Job) SetProgress(progress int) bool {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	if progress <= j.Progress {
		return false
	}
	j.Progress = progress
	return true
}

func (j *Job) MarkCompleted(result *Result) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Result = result
	j.Error = ""
	j.Progress = 100
	j.CompletedAt = &now
	j.TranscriptionTime = now.Sub(j.StartedAt).Milliseconds()
}

func (j *Job) MarkFailed(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.Error = errMsg
	j.Result = nil
	j.CompletedAt = &now
}

func (j *Job) MarkCancelled() {
	now := time.Now()
	j.Status = JobStatusCancelled
	j.CompletedAt = &now
}

// Clone returns a snapshot safe to hand outside the owning service. The
// result pointer is shared; results are immutable once set.
func (j *Job) Clone() *Job {
	c := *j
	if j.CompletedAt != nil {
		t := *j.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}
