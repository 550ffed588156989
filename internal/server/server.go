package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cwbudde/localsearch/internal/store"
)

// Server represents the HTTP server
type Server struct {
	jobManager      *JobManager
	checkpointStore store.Store
	dataDir         string
	addr            string
	server          *http.Server
}

// NewServer creates a new HTTP server. checkpointStore may be nil to run
// without persistence; dataDir is the root for trace logs (empty disables
// tracing).
func NewServer(addr string, checkpointStore store.Store, dataDir string) *Server {
	return &Server{
		jobManager:      NewJobManager(),
		checkpointStore: checkpointStore,
		dataDir:         dataDir,
		addr:            addr,
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register API routes
	mux.HandleFunc("/api/v1/jobs", s.handleJobs)
	mux.HandleFunc("/api/v1/jobs/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("/api/v1/checkpoints/", s.handleCheckpointsWithID)

	// Wrap with middleware
	handler := s.loggingMiddleware(s.corsMiddleware(mux))

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: handler,
	}

	slog.Info("Starting HTTP server", "addr", s.addr)
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleJobs handles /api/v1/jobs
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/jobs/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	// Parse job ID from path
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/jobs/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]

	// Route based on subpath
	switch {
	case len(parts) == 1 && r.Method == http.MethodDelete:
		s.handleCancelJob(w, r, jobID)
	case len(parts) == 1 || parts[1] == "status":
		s.handleGetJobStatus(w, r, jobID)
	case parts[1] == "stream":
		s.handleJobStream(w, r, jobID)
	case parts[1] == "resume" && r.Method == http.MethodPost:
		s.handleResumeJob(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// applyConfigDefaults fills zero-valued required fields.
func applyConfigDefaults(config *RunConfig) {
	if config.Problem == "" {
		config.Problem = "quadratic"
	}
	if config.Algorithm == "" {
		config.Algorithm = "hill-climbing"
	}
	if config.Iters <= 0 {
		config.Iters = 10000
	}
	if config.NTrials <= 0 {
		config.NTrials = 8
	}
	if config.Seed == 0 {
		config.Seed = time.Now().UnixNano()
	}
}

// handleCreateJob handles POST /api/v1/jobs
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var config RunConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	applyConfigDefaults(&config)

	if config.Problem != "quadratic" && config.Problem != "tsp" {
		http.Error(w, fmt.Sprintf("unknown problem: %s", config.Problem), http.StatusBadRequest)
		return
	}
	if _, err := buildOptimizer[[]float64, struct{}](config, nil); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	// Create job
	job := s.jobManager.CreateJob(config)

	// Start worker in background
	go runJob(context.Background(), s.jobManager, s.checkpointStore, s.dataDir, job.ID, nil)

	// Return job
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListJobs handles GET /api/v1/jobs
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJobStatus handles GET /api/v1/jobs/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	// Compute elapsed time
	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	// Create response
	response := map[string]interface{}{
		"id":              job.ID,
		"state":           job.State,
		"config":          job.Config,
		"bestScore":       job.BestScore,
		"bestSolution":    job.BestSolution,
		"initialScore":    job.InitialScore,
		"iterations":      job.Iterations,
		"acceptanceRatio": job.AcceptanceRatio,
		"elapsed":         elapsed.Seconds(),
		"startTime":       job.StartTime,
		"endTime":         job.EndTime,
		"error":           job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelJob handles DELETE /api/v1/jobs/:id
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	if !s.jobManager.CancelJob(jobID) {
		http.Error(w, "Job is not running", http.StatusConflict)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]string{"id": jobID, "state": "cancelling"})
}

// handleResumeJob handles POST /api/v1/jobs/:id/resume. It creates a new
// job that continues from the checkpoint of a previous one.
func (s *Server) handleResumeJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if s.checkpointStore == nil {
		http.Error(w, "Checkpointing is disabled", http.StatusConflict)
		return
	}

	checkpoint, err := s.checkpointStore.LoadCheckpoint(jobID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Checkpoint not found", http.StatusNotFound)
			return
		}
		http.Error(w, fmt.Sprintf("Failed to load checkpoint: %v", err), http.StatusInternalServerError)
		return
	}

	// Budget overrides are allowed; everything else must match.
	config := checkpoint.Config
	var overrides struct {
		Iters    int `json:"iters"`
		Patience int `json:"patience"`
	}
	if r.Body != nil {
		// An empty body means "same budget as before".
		_ = json.NewDecoder(r.Body).Decode(&overrides)
	}
	if overrides.Iters > 0 {
		config.Iters = overrides.Iters
	}
	if overrides.Patience > 0 {
		config.Patience = overrides.Patience
	}

	if err := checkpoint.IsCompatible(config); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(config)
	s.jobManager.UpdateJob(job.ID, func(j *Job) {
		j.InitialScore = checkpoint.InitialScore
	})

	go runJob(context.Background(), s.jobManager, s.checkpointStore, s.dataDir, job.ID, checkpoint)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListCheckpoints handles GET /api/v1/checkpoints
func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.checkpointStore == nil {
		http.Error(w, "Checkpointing is disabled", http.StatusConflict)
		return
	}

	infos, err := s.checkpointStore.ListCheckpoints()
	if err != nil {
		http.Error(w, fmt.Sprintf("Failed to list checkpoints: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleCheckpointsWithID handles /api/v1/checkpoints/:id
func (s *Server) handleCheckpointsWithID(w http.ResponseWriter, r *http.Request) {
	if s.checkpointStore == nil {
		http.Error(w, "Checkpointing is disabled", http.StatusConflict)
		return
	}

	jobID := strings.TrimPrefix(r.URL.Path, "/api/v1/checkpoints/")
	if jobID == "" || strings.Contains(jobID, "/") {
		http.Error(w, "Checkpoint ID required", http.StatusBadRequest)
		return
	}

	switch r.Method {
	case http.MethodGet:
		checkpoint, err := s.checkpointStore.LoadCheckpoint(jobID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "Checkpoint not found", http.StatusNotFound)
				return
			}
			http.Error(w, fmt.Sprintf("Failed to load checkpoint: %v", err), http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(checkpoint)

	case http.MethodDelete:
		if err := s.checkpointStore.DeleteCheckpoint(jobID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				http.Error(w, "Checkpoint not found", http.StatusNotFound)
				return
			}
			http.Error(w, fmt.Sprintf("Failed to delete checkpoint: %v", err), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
