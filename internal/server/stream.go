package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

// ProgressEvent is one progress sample of a running job, pushed to SSE
// subscribers.
type ProgressEvent struct {
	JobID           string    `json:"jobId"`
	State           JobState  `json:"state"`
	Iterations      int       `json:"iterations"`
	BestScore       float64   `json:"bestScore"`
	AcceptanceRatio float64   `json:"acceptanceRatio"`
	Timestamp       time.Time `json:"timestamp"`
}

// EventBroadcaster fans progress events out to per-job subscriber channels.
// The most recent event per job is cached so a reconnecting client sees the
// current state immediately.
type EventBroadcaster struct {
	mu        sync.RWMutex
	subs      map[string]map[chan ProgressEvent]struct{}
	lastEvent map[string]ProgressEvent
}

func NewEventBroadcaster() *EventBroadcaster {
	return &EventBroadcaster{
		subs:      make(map[string]map[chan ProgressEvent]struct{}),
		lastEvent: make(map[string]ProgressEvent),
	}
}

// Subscribe registers a new listener for the job and returns its channel.
// The channel is buffered; slow listeners miss events rather than block
// the broadcaster.
func (b *EventBroadcaster) Subscribe(jobID string) chan ProgressEvent {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan ProgressEvent, 10)
	if b.subs[jobID] == nil {
		b.subs[jobID] = make(map[chan ProgressEvent]struct{})
	}
	b.subs[jobID][ch] = struct{}{}

	// Replay the cached event so late subscribers start from current state.
	if last, ok := b.lastEvent[jobID]; ok {
		select {
		case ch <- last:
		default:
		}
	}

	slog.Debug("SSE client subscribed", "jobID", jobID, "total_clients", len(b.subs[jobID]))
	return ch
}

// Unsubscribe removes a listener and closes its channel.
func (b *EventBroadcaster) Unsubscribe(jobID string, ch chan ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	listeners, ok := b.subs[jobID]
	if !ok {
		return
	}
	if _, ok := listeners[ch]; !ok {
		return
	}
	delete(listeners, ch)
	close(ch)
	if len(listeners) == 0 {
		delete(b.subs, jobID)
	}
	slog.Debug("SSE client unsubscribed", "jobID", jobID)
}

// Broadcast caches the event and delivers it to every listener of the job.
// Full channels are skipped.
func (b *EventBroadcaster) Broadcast(event ProgressEvent) {
	b.mu.Lock()
	b.lastEvent[event.JobID] = event
	b.mu.Unlock()

	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subs[event.JobID] {
		select {
		case ch <- event:
		default:
			slog.Warn("SSE channel full, dropping event", "jobID", event.JobID)
		}
	}
}

// CleanupJob closes every listener of the job and drops its cached event.
func (b *EventBroadcaster) CleanupJob(jobID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for ch := range b.subs[jobID] {
		close(ch)
	}
	delete(b.subs, jobID)
	delete(b.lastEvent, jobID)
}

// handleJobStream serves the SSE progress stream of one job.
func (s *Server) handleJobStream(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	events := s.jobManager.broadcaster.Subscribe(jobID)
	defer s.jobManager.broadcaster.Unsubscribe(jobID, events)

	// First frame reflects the job state at connect time.
	snapshot := ProgressEvent{
		JobID:           job.ID,
		State:           job.State,
		Iterations:      job.Iterations,
		BestScore:       job.BestScore,
		AcceptanceRatio: job.AcceptanceRatio,
		Timestamp:       time.Now(),
	}
	if err := writeSSEEvent(w, snapshot); err != nil {
		slog.Error("Failed to write initial SSE event", "error", err)
		return
	}
	flusher.Flush()

	ping := time.NewTicker(30 * time.Second)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			slog.Debug("SSE client disconnected", "jobID", jobID)
			return

		case event, ok := <-events:
			if !ok {
				return
			}
			if err := writeSSEEvent(w, event); err != nil {
				slog.Error("Failed to write SSE event", "error", err)
				return
			}
			flusher.Flush()

		case <-ping.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		}
	}
}

func writeSSEEvent(w http.ResponseWriter, event ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	_, err = fmt.Fprintf(w, "data: %s\n\n", data)
	return err
}
