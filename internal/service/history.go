package service

import (
	"sync"

	"github.com/bnema/scribe/internal/domain"
)

// History is the bounded, newest-first list of past job outcomes. Insertion
// beyond the cap evicts the oldest entry by insertion order.
type History struct {
	mu   sync.Mutex
	max  int
	jobs []*domain.Job
}

func NewHistory(max int) *History {
	return &History{max: max}
}

func (h *History) Add(job *domain.Job) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.jobs = append([]*domain.Job{job}, h.jobs...)
	if len(h.jobs) > h.max {
		h.jobs = h.jobs[:h.max]
	}
}

func (h *History) List() []*domain.Job {
	h.mu.Lock()
	defer h.mu.Unlock()

	out := make([]*domain.Job, len(h.jobs))
	copy(out, h.jobs)
	return out
}

func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.jobs)
}
