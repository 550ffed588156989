package server

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/cwbudde/localsearch/internal/store"
)

func TestRunJob_Success(t *testing.T) {
	jm := NewJobManager()
	config := RunConfig{
		Problem:   "quadratic",
		Algorithm: "hill-climbing",
		Iters:     500,
		NTrials:   4,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	ctx := context.Background()
	err := runJob(ctx, jm, nil, "", job.ID, nil)

	if err != nil {
		t.Errorf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}

	if len(updated.BestSolution) != 3 {
		t.Errorf("Expected 3-dimensional solution, got %d", len(updated.BestSolution))
	}

	if updated.BestScore > updated.InitialScore {
		t.Errorf("Best score %f should not exceed initial score %f",
			updated.BestScore, updated.InitialScore)
	}

	if updated.Iterations == 0 {
		t.Error("Iterations should be set")
	}

	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}
}

func TestRunJob_TimeLimit(t *testing.T) {
	jm := NewJobManager()
	config := RunConfig{
		Problem:      "quadratic",
		Algorithm:    "metropolis",
		Iters:        50_000_000,
		NTrials:      4,
		Seed:         13,
		TimeLimitSec: 0.2,
	}

	job := jm.CreateJob(config)

	start := time.Now()
	err := runJob(context.Background(), jm, nil, "", job.ID, nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("Hitting the time limit should not be an error: %v", err)
	}
	if elapsed > 10*time.Second {
		t.Fatalf("Run ignored the time limit, took %s", elapsed)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Errorf("Job should be completed, got %s", updated.State)
	}
	if updated.Iterations >= config.Iters {
		t.Errorf("Expected early stop, ran all %d iterations", updated.Iterations)
	}
}

func TestRunJob_TSP(t *testing.T) {
	jm := NewJobManager()
	config := RunConfig{
		Problem:   "tsp",
		Algorithm: "tabu-search",
		Cities:    12,
		Iters:     300,
		NTrials:   4,
		Seed:      7,
	}

	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, nil, "", job.ID, nil); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s", updated.State)
	}

	// A closed tour over 12 cities has 13 stops.
	if len(updated.BestSolution) != 13 {
		t.Errorf("Expected 13 tour stops, got %d", len(updated.BestSolution))
	}
	if updated.BestScore <= 0 {
		t.Errorf("Tour length should be positive, got %f", updated.BestScore)
	}
}

func TestRunJob_UnknownProblem(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(RunConfig{
		Problem:   "sudoku",
		Algorithm: "hill-climbing",
		Iters:     10,
		NTrials:   2,
	})

	err := runJob(context.Background(), jm, nil, "", job.ID, nil)
	if err == nil {
		t.Error("runJob should fail for an unknown problem")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
	if updated.Error == "" {
		t.Error("Error message should be set")
	}
}

func TestRunJob_UnknownAlgorithm(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(RunConfig{
		Problem:   "quadratic",
		Algorithm: "newton",
		Iters:     10,
		NTrials:   2,
	})

	err := runJob(context.Background(), jm, nil, "", job.ID, nil)
	if err == nil {
		t.Error("runJob should fail for an unknown algorithm")
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateFailed {
		t.Errorf("Job should be failed, got %s", updated.State)
	}
}

func TestRunJob_Cancellation(t *testing.T) {
	jm := NewJobManager()
	config := RunConfig{
		Problem:   "quadratic",
		Algorithm: "metropolis",
		Iters:     50_000_000, // Long-running job
		NTrials:   4,
		Seed:      42,
	}

	job := jm.CreateJob(config)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error)
	go func() {
		done <- runJob(ctx, jm, nil, "", job.ID, nil)
	}()

	// Give it time to start
	time.Sleep(50 * time.Millisecond)

	// Cancel the job
	cancel()

	// Wait for completion
	err := <-done

	if !errors.Is(err, context.Canceled) {
		t.Errorf("runJob should return context.Canceled, got %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Job should be cancelled, got %s", updated.State)
	}

	// The best found so far is preserved.
	if len(updated.BestSolution) == 0 {
		t.Error("Cancelled job should keep its best solution")
	}
}

func TestRunJob_SavesFinalCheckpoint(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	jm := NewJobManager()
	config := RunConfig{
		Problem:   "quadratic",
		Algorithm: "simulated-annealing",
		Iters:     500,
		NTrials:   4,
		Seed:      42,
	}
	job := jm.CreateJob(config)

	if err := runJob(context.Background(), jm, st, dataDir, job.ID, nil); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	checkpoint, err := st.LoadCheckpoint(job.ID)
	if err != nil {
		t.Fatalf("Final checkpoint should exist: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if checkpoint.BestScore != updated.BestScore {
		t.Errorf("Checkpoint score %f should match job score %f",
			checkpoint.BestScore, updated.BestScore)
	}
	if checkpoint.Config.Algorithm != "simulated-annealing" {
		t.Errorf("Checkpoint should carry the job config, got algorithm %s",
			checkpoint.Config.Algorithm)
	}
}

func TestRunJob_ResumeImprovesOnCheckpoint(t *testing.T) {
	jm := NewJobManager()
	config := RunConfig{
		Problem:   "quadratic",
		Algorithm: "hill-climbing",
		Iters:     500,
		NTrials:   4,
		Seed:      42,
	}

	resume := store.NewCheckpoint("old-job", []float64{1.5, 0.5, -3.0}, 0.75, 40.0, 200, config)

	job := jm.CreateJob(config)
	jm.UpdateJob(job.ID, func(j *Job) { j.InitialScore = resume.InitialScore })

	if err := runJob(context.Background(), jm, nil, "", job.ID, resume); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s", updated.State)
	}

	if updated.BestScore > resume.BestScore {
		t.Errorf("Resumed best score %f should not exceed checkpoint score %f",
			updated.BestScore, resume.BestScore)
	}

	// The improvement baseline of the original run is kept.
	if updated.InitialScore != 40.0 {
		t.Errorf("Expected initial score 40.0 from original run, got %f", updated.InitialScore)
	}
}

func TestRunJob_WritesTrace(t *testing.T) {
	dataDir := t.TempDir()
	st, err := store.NewFSStore(dataDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	jm := NewJobManager()
	config := RunConfig{
		Problem:   "quadratic",
		Algorithm: "metropolis",
		Iters:     3_000_000, // Long enough for at least one monitor tick
		NTrials:   2,
		Patience:  3_000_000,
		Seed:      42,
	}
	job := jm.CreateJob(config)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	runJob(ctx, jm, st, dataDir, job.ID, nil)

	reader, err := store.NewTraceReader(dataDir, job.ID)
	if err != nil {
		t.Fatalf("Trace file should exist: %v", err)
	}
	defer reader.Close()

	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("Failed to read trace: %v", err)
	}
	if len(entries) == 0 {
		t.Fatal("Expected at least one trace entry")
	}
	for i := 1; i < len(entries); i++ {
		if entries[i].Iteration < entries[i-1].Iteration {
			t.Errorf("Trace iterations should not decrease: %d after %d",
				entries[i].Iteration, entries[i-1].Iteration)
		}
	}
}

func TestBuildOptimizer_AllAlgorithms(t *testing.T) {
	algorithms := []string{
		"random",
		"hill-climbing",
		"epsilon-greedy",
		"metropolis",
		"simulated-annealing",
		"adaptive-annealing",
		"reannealing",
		"logistic-annealing",
		"relative-annealing",
		"tsallis-annealing",
		"great-deluge",
		"tabu-search",
		"population-annealing",
		"parallel-tempering",
	}

	for _, name := range algorithms {
		cfg := RunConfig{Problem: "quadratic", Algorithm: name, Iters: 10, NTrials: 2}
		opt, err := buildOptimizer[[]float64, struct{}](cfg, nil)
		if err != nil {
			t.Errorf("buildOptimizer(%q) failed: %v", name, err)
		}
		if opt == nil {
			t.Errorf("buildOptimizer(%q) returned nil optimizer", name)
		}
	}

	if _, err := buildOptimizer[[]float64, struct{}](RunConfig{Algorithm: "no-such"}, nil); err == nil {
		t.Error("buildOptimizer should reject unknown algorithm names")
	}
}
