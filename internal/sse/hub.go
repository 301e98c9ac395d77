package sse

import (
	"sync"

	"github.com/google/uuid"

	"github.com/devdex/devdex-backend/internal/logger"
	"github.com/devdex/devdex-backend/internal/types"
)

type JobEvent struct {
	JobID     uuid.UUID `json:"job_id"`
	ProjectID uuid.UUID `json:"project_id"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
}

type client struct {
	jobID    uuid.UUID
	outbound chan JobEvent
}

// Hub fans job state transitions out to SSE subscribers watching a job.
// It replaces polling the job row while a run is in flight.
type Hub struct {
	mu      sync.RWMutex
	log     *logger.Logger
	clients map[*client]bool
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:     log.With("component", "SSEHub"),
		clients: make(map[*client]bool),
	}
}

// Subscribe registers a watcher for one job. The returned channel closes
// when Unsubscribe is called.
func (h *Hub) Subscribe(jobID uuid.UUID) (<-chan JobEvent, func()) {
	c := &client{jobID: jobID, outbound: make(chan JobEvent, 8)}
	h.mu.Lock()
	h.clients[c] = true
	h.mu.Unlock()
	h.log.Debug("SSE client subscribed", "job_id", jobID)

	cancel := func() {
		h.mu.Lock()
		if _, ok := h.clients[c]; ok {
			delete(h.clients, c)
			close(c.outbound)
		}
		h.mu.Unlock()
	}
	return c.outbound, cancel
}

// JobUpdated implements services.JobNotifier. Slow subscribers drop events
// rather than blocking a job transition.
func (h *Hub) JobUpdated(job *types.AIJob) {
	event := JobEvent{
		JobID:     job.ID,
		ProjectID: job.ProjectID,
		Status:    job.Status,
		Error:     job.Error,
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if c.jobID != job.ID {
			continue
		}
		select {
		case c.outbound <- event:
		default:
			h.log.Warn("Dropping SSE event for slow client", "job_id", job.ID)
		}
	}
}
