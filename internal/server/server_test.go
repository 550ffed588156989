package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cwbudde/localsearch/internal/store"
)

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dataDir := t.TempDir()
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return NewServer(":8080", st, dataDir)
}

func testConfig() RunConfig {
	return RunConfig{
		Problem:   "quadratic",
		Algorithm: "hill-climbing",
		Iters:     200,
		NTrials:   4,
		Seed:      42,
	}
}

func TestServer_CreateJob(t *testing.T) {
	s := newTestServer(t)

	body, _ := json.Marshal(testConfig())
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateJob(w, req)

	if w.Code != http.StatusCreated {
		t.Errorf("Expected status 201, got %d", w.Code)
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}

	// State should be pending or running (since worker starts immediately)
	if job.State != StatePending && job.State != StateRunning {
		t.Errorf("Expected pending or running state, got %s", job.State)
	}
}

func TestServer_CreateJob_UnknownProblem(t *testing.T) {
	s := newTestServer(t)

	config := testConfig()
	config.Problem = "knapsack"
	body, _ := json.Marshal(config)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateJob(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_CreateJob_UnknownAlgorithm(t *testing.T) {
	s := newTestServer(t)

	config := testConfig()
	config.Algorithm = "gradient-descent"
	body, _ := json.Marshal(config)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs", bytes.NewReader(body))
	w := httptest.NewRecorder()

	s.handleCreateJob(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", w.Code)
	}
}

func TestServer_ListJobs(t *testing.T) {
	s := newTestServer(t)

	// Create two jobs
	s.jobManager.CreateJob(testConfig())
	s.jobManager.CreateJob(testConfig())

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs", nil)
	w := httptest.NewRecorder()

	s.handleListJobs(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var jobs []*Job
	if err := json.NewDecoder(w.Body).Decode(&jobs); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if len(jobs) != 2 {
		t.Errorf("Expected 2 jobs, got %d", len(jobs))
	}
}

func TestServer_GetJobStatus(t *testing.T) {
	s := newTestServer(t)

	job := s.jobManager.CreateJob(testConfig())

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/status", job.ID), nil)
	w := httptest.NewRecorder()

	s.handleGetJobStatus(w, req, job.ID)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var response map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response["id"] != job.ID {
		t.Error("Response should contain job ID")
	}

	if response["state"] != string(StatePending) {
		t.Errorf("Expected pending state, got %v", response["state"])
	}
}

func TestServer_GetJobStatus_NotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/status", nil)
	w := httptest.NewRecorder()

	s.handleGetJobStatus(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_CancelJob(t *testing.T) {
	s := newTestServer(t)

	// A long job so it is still running when the cancel arrives.
	config := testConfig()
	config.Algorithm = "metropolis"
	config.Iters = 50_000_000
	job := s.jobManager.CreateJob(config)

	go runJob(context.Background(), s.jobManager, s.checkpointStore, s.dataDir, job.ID, nil)

	// Wait for the job to actually start
	deadline := time.After(5 * time.Second)
	for {
		current, _ := s.jobManager.GetJob(job.ID)
		if current.State == StateRunning {
			break
		}
		select {
		case <-deadline:
			t.Fatal("Job did not start in time")
		case <-time.After(10 * time.Millisecond):
		}
	}

	req := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/jobs/%s", job.ID), nil)
	w := httptest.NewRecorder()

	s.handleCancelJob(w, req, job.ID)

	if w.Code != http.StatusAccepted {
		t.Errorf("Expected status 202, got %d", w.Code)
	}

	// The worker observes cancellation once per iteration.
	deadline = time.After(5 * time.Second)
	for {
		current, _ := s.jobManager.GetJob(job.ID)
		if current.State == StateCancelled {
			break
		}
		select {
		case <-deadline:
			current, _ := s.jobManager.GetJob(job.ID)
			t.Fatalf("Job was not cancelled in time, state %s", current.State)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestServer_CancelJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/jobs/nonexistent", nil)
	w := httptest.NewRecorder()

	s.handleCancelJob(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_Integration(t *testing.T) {
	// Skip in short mode
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	s := newTestServer(t)
	srv := httptest.NewServer(s.corsMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/v1/jobs" && r.Method == http.MethodPost {
			s.handleCreateJob(w, r)
		} else if r.URL.Path == "/api/v1/jobs" && r.Method == http.MethodGet {
			s.handleListJobs(w, r)
		} else {
			s.handleJobsWithID(w, r)
		}
	})))
	defer srv.Close()

	// Create job
	body, _ := json.Marshal(testConfig())
	resp, err := http.Post(srv.URL+"/api/v1/jobs", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("Failed to create job: %v", err)
	}
	defer resp.Body.Close()

	var job Job
	json.NewDecoder(resp.Body).Decode(&job)

	// Poll status until completed
	maxAttempts := 50
	for i := 0; i < maxAttempts; i++ {
		resp, err := http.Get(srv.URL + "/api/v1/jobs/" + job.ID + "/status")
		if err != nil {
			t.Fatalf("Failed to get status: %v", err)
		}

		var status map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&status)
		resp.Body.Close()

		if status["state"] == string(StateCompleted) {
			best, ok := status["bestScore"].(float64)
			if !ok {
				t.Fatal("Completed job should report a numeric best score")
			}
			initial, _ := status["initialScore"].(float64)
			if best > initial {
				t.Errorf("Best score %f should not exceed initial score %f", best, initial)
			}
			break
		}

		if status["state"] == string(StateFailed) {
			t.Fatalf("Job failed: %v", status["error"])
		}

		if i == maxAttempts-1 {
			t.Fatal("Job did not complete in time")
		}

		time.Sleep(100 * time.Millisecond)
	}
}

func TestServer_ResumeJob(t *testing.T) {
	s := newTestServer(t)

	config := testConfig()
	checkpoint := store.NewCheckpoint("job-1", []float64{1.0, 0.5, -2.0}, 3.5, 40.0, 150, config)
	if err := s.checkpointStore.SaveCheckpoint("job-1", checkpoint); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/job-1/resume", bytes.NewBufferString(`{"iters": 500}`))
	w := httptest.NewRecorder()

	s.handleResumeJob(w, req, "job-1")

	if w.Code != http.StatusCreated {
		t.Fatalf("Expected status 201, got %d: %s", w.Code, w.Body.String())
	}

	var job Job
	if err := json.NewDecoder(w.Body).Decode(&job); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if job.ID == "job-1" {
		t.Error("Resumed job should get a fresh ID")
	}
	if job.Config.Iters != 500 {
		t.Errorf("Expected budget override 500, got %d", job.Config.Iters)
	}

	// The resumed run can only improve on the checkpointed best score.
	deadline := time.After(10 * time.Second)
	for {
		current, _ := s.jobManager.GetJob(job.ID)
		if current.State == StateCompleted {
			if current.BestScore > checkpoint.BestScore {
				t.Errorf("Resumed best score %f should not exceed checkpoint score %f",
					current.BestScore, checkpoint.BestScore)
			}
			break
		}
		if current.State == StateFailed {
			t.Fatalf("Resumed job failed: %s", current.Error)
		}
		select {
		case <-deadline:
			t.Fatal("Resumed job did not complete in time")
		case <-time.After(20 * time.Millisecond):
		}
	}
}

func TestServer_ResumeJob_NotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/jobs/nonexistent/resume", nil)
	w := httptest.NewRecorder()

	s.handleResumeJob(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestServer_ListCheckpoints(t *testing.T) {
	s := newTestServer(t)

	config := testConfig()
	for i := 0; i < 3; i++ {
		id := fmt.Sprintf("job-%d", i)
		cp := store.NewCheckpoint(id, []float64{1, 2, 3}, float64(i), 10.0, 100, config)
		if err := s.checkpointStore.SaveCheckpoint(id, cp); err != nil {
			t.Fatalf("Failed to save checkpoint: %v", err)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/checkpoints", nil)
	w := httptest.NewRecorder()

	s.handleListCheckpoints(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}

	var infos []store.CheckpointInfo
	if err := json.NewDecoder(w.Body).Decode(&infos); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(infos) != 3 {
		t.Errorf("Expected 3 checkpoints, got %d", len(infos))
	}
}

func TestServer_DeleteCheckpoint(t *testing.T) {
	s := newTestServer(t)

	cp := store.NewCheckpoint("job-1", []float64{1, 2, 3}, 1.0, 10.0, 100, testConfig())
	if err := s.checkpointStore.SaveCheckpoint("job-1", cp); err != nil {
		t.Fatalf("Failed to save checkpoint: %v", err)
	}

	req := httptest.NewRequest(http.MethodDelete, "/api/v1/checkpoints/job-1", nil)
	w := httptest.NewRecorder()

	s.handleCheckpointsWithID(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("Expected status 204, got %d", w.Code)
	}

	// Second delete should report not found
	w = httptest.NewRecorder()
	s.handleCheckpointsWithID(w, httptest.NewRequest(http.MethodDelete, "/api/v1/checkpoints/job-1", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404 on second delete, got %d", w.Code)
	}
}

func TestServer_JobStream_SSE(t *testing.T) {
	// Skip in short mode
	if testing.Short() {
		t.Skip("Skipping SSE test in short mode")
	}

	s := newTestServer(t)

	config := testConfig()
	config.Algorithm = "metropolis"
	config.Iters = 2_000_000
	job := s.jobManager.CreateJob(config)

	// Start worker in background
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	go runJob(ctx, s.jobManager, s.checkpointStore, s.dataDir, job.ID, nil)

	// Wait a bit for job to start
	time.Sleep(100 * time.Millisecond)

	// Create SSE request
	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/jobs/%s/stream", job.ID), nil)
	w := httptest.NewRecorder()

	// Run handler in goroutine
	done := make(chan bool)
	go func() {
		s.handleJobStream(w, req, job.ID)
		done <- true
	}()

	// Wait for some data or timeout
	timeout := time.After(3 * time.Second)
	select {
	case <-done:
		// Handler completed
	case <-timeout:
		// Timeout - that's ok, we just want to check we got some events
	}

	// Check headers
	if w.Header().Get("Content-Type") != "text/event-stream" {
		t.Error("Expected text/event-stream content type")
	}

	// Check we got some SSE data
	body := w.Body.String()
	if !containsString(body, "data:") {
		t.Error("Expected SSE data in response")
	}
}

func TestServer_JobStream_NotFound(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/jobs/nonexistent/stream", nil)
	w := httptest.NewRecorder()

	s.handleJobStream(w, req, "nonexistent")

	if w.Code != http.StatusNotFound {
		t.Errorf("Expected status 404, got %d", w.Code)
	}
}

func TestEventBroadcaster(t *testing.T) {
	eb := NewEventBroadcaster()

	// Subscribe to events
	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	// Broadcast an event
	event := ProgressEvent{
		JobID:           "job1",
		State:           StateRunning,
		Iterations:      10,
		BestScore:       100.5,
		AcceptanceRatio: 0.42,
		Timestamp:       time.Now(),
	}
	eb.Broadcast(event)

	// Receive event
	select {
	case received := <-ch:
		if received.JobID != "job1" {
			t.Errorf("Expected jobID job1, got %s", received.JobID)
		}
		if received.Iterations != 10 {
			t.Errorf("Expected 10 iterations, got %d", received.Iterations)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for event")
	}

	// Cleanup
	eb.CleanupJob("job1")
}

func TestEventBroadcaster_ReplayLastEvent(t *testing.T) {
	eb := NewEventBroadcaster()

	eb.Broadcast(ProgressEvent{JobID: "job1", State: StateRunning, Iterations: 7})

	// A late subscriber gets the last event immediately.
	ch := eb.Subscribe("job1")
	defer eb.Unsubscribe("job1", ch)

	select {
	case received := <-ch:
		if received.Iterations != 7 {
			t.Errorf("Expected replayed event with 7 iterations, got %d", received.Iterations)
		}
	case <-time.After(1 * time.Second):
		t.Error("Timeout waiting for replayed event")
	}
}

func containsString(haystack, needle string) bool {
	return bytes.Contains([]byte(haystack), []byte(needle))
}
