package store

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// setupTestStore creates a temporary directory and returns an FSStore for testing.
func setupTestStore(t *testing.T) (*FSStore, string) {
	t.Helper()

	tempDir := t.TempDir()
	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("Failed to create test store: %v", err)
	}
	return store, tempDir
}

// createTestCheckpoint creates a checkpoint with test data.
func createTestCheckpoint(jobID string) *Checkpoint {
	return &Checkpoint{
		JobID:        jobID,
		BestSolution: []float64{2.01, -0.02, -3.48},
		BestScore:    0.0234,
		InitialScore: 16.25,
		Iteration:    500,
		Timestamp:    time.Now(),
		Config: RunConfig{
			Problem:   "quadratic",
			Algorithm: "simulated-annealing",
			Iters:     10000,
			NTrials:   4,
			Seed:      42,
		},
	}
}

func TestNewFSStore(t *testing.T) {
	tempDir := t.TempDir()

	store, err := NewFSStore(tempDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	if store == nil {
		t.Fatal("Expected non-nil store")
	}
	if _, err := os.Stat(tempDir); os.IsNotExist(err) {
		t.Fatal("Base directory was not created")
	}
}

func TestSaveAndLoadCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "test-job-123"
	checkpoint := createTestCheckpoint(jobID)

	if err := store.SaveCheckpoint(jobID, checkpoint); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	expectedPath := filepath.Join(tempDir, "jobs", jobID, "checkpoint.json")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Fatalf("Checkpoint file was not created at %s", expectedPath)
	}

	// No temp file should be left behind after the atomic rename.
	if _, err := os.Stat(expectedPath + ".tmp"); !os.IsNotExist(err) {
		t.Error("Temp file was not cleaned up")
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.JobID != checkpoint.JobID {
		t.Errorf("JobID mismatch: expected %s, got %s", checkpoint.JobID, loaded.JobID)
	}
	if loaded.BestScore != checkpoint.BestScore {
		t.Errorf("BestScore mismatch: expected %f, got %f", checkpoint.BestScore, loaded.BestScore)
	}
	if len(loaded.BestSolution) != len(checkpoint.BestSolution) {
		t.Fatalf("BestSolution length mismatch: expected %d, got %d",
			len(checkpoint.BestSolution), len(loaded.BestSolution))
	}
	for i := range loaded.BestSolution {
		if loaded.BestSolution[i] != checkpoint.BestSolution[i] {
			t.Errorf("BestSolution[%d] mismatch: expected %f, got %f",
				i, checkpoint.BestSolution[i], loaded.BestSolution[i])
		}
	}
	if loaded.Config.Algorithm != "simulated-annealing" {
		t.Errorf("Config.Algorithm mismatch: got %s", loaded.Config.Algorithm)
	}
}

func TestSaveCheckpointOverwrites(t *testing.T) {
	store, _ := setupTestStore(t)

	jobID := "overwrite-job"
	first := createTestCheckpoint(jobID)
	if err := store.SaveCheckpoint(jobID, first); err != nil {
		t.Fatalf("First save failed: %v", err)
	}

	second := createTestCheckpoint(jobID)
	second.BestScore = 0.001
	second.Iteration = 2000
	if err := store.SaveCheckpoint(jobID, second); err != nil {
		t.Fatalf("Second save failed: %v", err)
	}

	loaded, err := store.LoadCheckpoint(jobID)
	if err != nil {
		t.Fatalf("LoadCheckpoint failed: %v", err)
	}
	if loaded.BestScore != 0.001 || loaded.Iteration != 2000 {
		t.Errorf("Expected the overwritten checkpoint, got %+v", loaded)
	}
}

func TestSaveCheckpointInvalidInput(t *testing.T) {
	store, _ := setupTestStore(t)

	if err := store.SaveCheckpoint("", createTestCheckpoint("x")); err == nil {
		t.Error("Expected error for empty jobID")
	}
	if err := store.SaveCheckpoint("job", nil); err == nil {
		t.Error("Expected error for nil checkpoint")
	}
}

func TestLoadCheckpointNotFound(t *testing.T) {
	store, _ := setupTestStore(t)

	_, err := store.LoadCheckpoint("no-such-job")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}
}

func TestListCheckpoints(t *testing.T) {
	store, tempDir := setupTestStore(t)

	// Empty store lists nothing.
	infos, err := store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 0 {
		t.Fatalf("Expected 0 checkpoints, got %d", len(infos))
	}

	for _, jobID := range []string{"job-a", "job-b", "job-c"} {
		if err := store.SaveCheckpoint(jobID, createTestCheckpoint(jobID)); err != nil {
			t.Fatalf("SaveCheckpoint(%s) failed: %v", jobID, err)
		}
	}

	// A corrupted checkpoint must be skipped, not fail the listing.
	badDir := filepath.Join(tempDir, "jobs", "job-corrupt")
	if err := os.MkdirAll(badDir, 0755); err != nil {
		t.Fatalf("Failed to create corrupt job dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(badDir, "checkpoint.json"), []byte("{not json"), 0644); err != nil {
		t.Fatalf("Failed to write corrupt checkpoint: %v", err)
	}

	infos, err = store.ListCheckpoints()
	if err != nil {
		t.Fatalf("ListCheckpoints failed: %v", err)
	}
	if len(infos) != 3 {
		t.Fatalf("Expected 3 checkpoints, got %d", len(infos))
	}
	for _, info := range infos {
		if info.Problem != "quadratic" || info.Algorithm != "simulated-annealing" {
			t.Errorf("Unexpected metadata: %+v", info)
		}
	}
}

func TestDeleteCheckpoint(t *testing.T) {
	store, tempDir := setupTestStore(t)

	jobID := "delete-me"
	if err := store.SaveCheckpoint(jobID, createTestCheckpoint(jobID)); err != nil {
		t.Fatalf("SaveCheckpoint failed: %v", err)
	}

	// Deleting removes the whole job directory, trace included.
	tw, err := NewTraceWriter(tempDir, jobID, false)
	if err != nil {
		t.Fatalf("NewTraceWriter failed: %v", err)
	}
	tw.Close()

	if err := store.DeleteCheckpoint(jobID); err != nil {
		t.Fatalf("DeleteCheckpoint failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "jobs", jobID)); !os.IsNotExist(err) {
		t.Error("Job directory still exists after delete")
	}

	if err := store.DeleteCheckpoint(jobID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound on second delete, got %v", err)
	}
}
