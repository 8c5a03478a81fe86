package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProgressEvent represents a progress update for a running fit.
type ProgressEvent struct {
	JobID     string    `json:"jobId"`
	State     JobState  `json:"state"`
	Round     int       `json:"round"`
	BestCost  float64   `json:"bestCost"`
	RSquared  float64   `json:"rSquared,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// EventBroadcaster manages SSE connections for a job
type EventBroadcaster struct {
	mu        sync.RWMutex
	clients   map[string]map[chan ProgressEvent]bool // jobID -> set of client channels
	lastEvent map[string]ProgressEvent               // jobID -> last event for new clients
}

// NewEventBroadcaster creates a new event broadcaster
func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		clients:   make(map[string]map[chan ProgressEvent]bool),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe adds a client channel for a specific job
func (eb *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan ProgressEvent, 10)

	if eb.clients[jobID] == nil {
		eb.clients[jobID] = make(map[chan ProgressEvent]bool)
	}
	eb.clients[jobID][ch] = true

	// Replay the last event so late subscribers catch up immediately.
	if last, exists := eb.lastEvent[jobID]; exists {
		select {
		case ch <- last:
		default:
		}
	}

	return ch
}

// Unsubscribe removes a client channel
func (eb *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, exists := eb.clients[jobID]; exists {
		delete(clients, ch)
		close(ch)

		if len(clients) == 0 {
			delete(eb.clients, jobID)
		}
	}
}

// Broadcast sends an event to all subscribers of a job
func (eb *EventBroadcaster) Broadcast(event ProgressEvent) {
	eb.mu.Lock()
	eb.lastEvent[event.JobID] = event
	clients := eb.clients[event.JobID]
	eb.mu.Unlock()

	// Non-blocking send: slow clients miss intermediate events.
	for ch := range clients {
		select {
		case ch <- event:
		default:
		}
	}
}

// CleanupJob removes all subscriptions and cached events for a job
func (eb *EventBroadcaster) CleanupJob(jobID string) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	if clients, exists := eb.clients[jobID]; exists {
		for ch := range clients {
			close(ch)
		}
		delete(eb.clients, jobID)
	}
	delete(eb.lastEvent, jobID)
}

// handleJobStream streams progress events for a job via SSE.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	// Send the current state right away so clients never start blind.
	initial := ProgressEvent{
		JobID:     job.ID,
		State:     job.State,
		Round:     job.Rounds,
		BestCost:  job.BestCost,
		RSquared:  job.RSquared,
		Timestamp: time.Now(),
	}
	if err := writeSSEEvent(w, initial); err != nil {
		slog.Debug("sse write failed", "job_id", jobID, "error", err)
		return
	}
	flusher.Flush()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Debug("sse write failed", "job_id", jobID, "error", err)
				return
			}
			flusher.Flush()

			// Terminal states end the stream.
			if event.State == StateCompleted || event.State == StateFailed || event.State == StateCancelled {
				return
			}

		case <-ping.C:
			if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
