package service

import (
	"sync"

	"github.com/bnema/scribe/internal/domain"
)

type EventType string

const (
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventError     EventType = "error"
)

// Event is one job state change as seen by push subscribers. The JSON shape
// is the wire format forwarded verbatim on the push channel.
type Event struct {
	Type     EventType      `json:"type"`
	JobID    string         `json:"jobId"`
	Progress int            `json:"progress,omitempty"`
	Message  string         `json:"message,omitempty"`
	Result   *domain.Result `json:"result,omitempty"`
	Error    string         `json:"error,omitempty"`
}

// EventBus fans out job events to per-job topics. Every subscriber of a
// topic receives every event published to it (multicast, not competing
// consumers).
type EventBus struct {
	subscribers map[string][]chan Event
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]chan Event),
	}
}

func (eb *EventBus) Subscribe(jobID string) chan Event {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, 16)
	eb.subscribers[jobID] = append(eb.subscribers[jobID], ch)
	return ch
}

func (eb *EventBus) Unsubscribe(jobID string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[jobID]
	for i, sub := range subs {
		if sub == ch {
			eb.subscribers[jobID] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[jobID]) == 0 {
		delete(eb.subscribers, jobID)
	}
}

func (eb *EventBus) Publish(jobID string, event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, ch := range eb.subscribers[jobID] {
		select {
		case ch <- event:
		default:
			// Drop event if subscriber is slow
		}
	}
}
