package service

import (
	"testing"

	"github.com/bnema/scribe/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingObserver struct {
	events []Event
}

func (o *recordingObserver) OnProgress(jobID string, progress int, message string) {
	o.events = append(o.events, Event{Type: EventProgress, JobID: jobID, Progress: progress, Message: message})
}

func (o *recordingObserver) OnCompleted(jobID string, result *domain.Result) {
	o.events = append(o.events, Event{Type: EventCompleted, JobID: jobID, Result: result})
}

func (o *recordingObserver) OnError(jobID string, errMsg string) {
	o.events = append(o.events, Event{Type: EventError, JobID: jobID, Error: errMsg})
}

func TestDispatcherFansOutToBusAndObserver(t *testing.T) {
	bus := NewEventBus()
	d := NewDispatcher(bus)

	obs := &recordingObserver{}
	d.SetObserver(obs)
	ch := bus.Subscribe("job-1")

	result := &domain.Result{Text: "done"}
	d.Progress("job-1", 50, "Transcribing audio")
	d.Completed("job-1", result)
	d.Failed("job-1", "boom")

	want := []Event{
		{Type: EventProgress, JobID: "job-1", Progress: 50, Message: "Transcribing audio"},
		{Type: EventCompleted, JobID: "job-1", Result: result},
		{Type: EventError, JobID: "job-1", Error: "boom"},
	}

	// Observer got the sequence synchronously.
	assert.Equal(t, want, obs.events)

	// Push subscribers see the identical sequence.
	require.Len(t, ch, 3)
	for _, w := range want {
		assert.Equal(t, w, <-ch)
	}
}

func TestDispatcherWithoutObserver(t *testing.T) {
	bus := NewEventBus()
	d := NewDispatcher(bus)
	ch := bus.Subscribe("job-1")

	d.Progress("job-1", 10, "Loading model")

	require.Len(t, ch, 1)
	assert.Equal(t, 10, (<-ch).Progress)
}
