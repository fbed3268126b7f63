package service

import (
	"sync"

	"github.com/bnema/scribe/internal/domain"
	"github.com/bnema/scribe/internal/port"
)

// Observer receives job events synchronously in-process. There is at most
// one observer per process; the embedded transport registers it.
type Observer interface {
	OnProgress(jobID string, progress int, message string)
	OnCompleted(jobID string, result *domain.Result)
	OnError(jobID string, errMsg string)
}

// Dispatcher delivers every job event to both delivery models: the topic
// event bus (push subscribers) and the registered direct observer. Both see
// identical sequences.
type Dispatcher struct {
	bus *EventBus

	mu       sync.RWMutex
	observer Observer
}

func NewDispatcher(bus *EventBus) *Dispatcher {
	return &Dispatcher{bus: bus}
}

func (d *Dispatcher) SetObserver(o Observer) {
	d.mu.Lock()
	d.observer = o
	d.mu.Unlock()
}

func (d *Dispatcher) current() Observer {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.observer
}

func (d *Dispatcher) Progress(jobID string, progress int, message string) {
	d.bus.Publish(jobID, Event{
		Type:     EventProgress,
		JobID:    jobID,
		Progress: progress,
		Message:  message,
	})
	if o := d.current(); o != nil {
		o.OnProgress(jobID, progress, message)
	}
}

func (d *Dispatcher) Completed(jobID string, result *domain.Result) {
	d.bus.Publish(jobID, Event{
		Type:   EventCompleted,
		JobID:  jobID,
		Result: result,
	})
	if o := d.current(); o != nil {
		o.OnCompleted(jobID, result)
	}
}

func (d *Dispatcher) Failed(jobID string, errMsg string) {
	d.bus.Publish(jobID, Event{
		Type:  EventError,
		JobID: jobID,
		Error: errMsg,
	})
	if o := d.current(); o != nil {
		o.OnError(jobID, errMsg)
	}
}

var _ port.Notifier = (*Dispatcher)(nil)
