package store

import (
	"fmt"
	"math"
	"time"
)

// RunConfig holds the configuration of an optimization job (checkpoint
// copy). It lives here rather than in the server package to avoid import
// cycles.
type RunConfig struct {
	Problem   string `json:"problem"`   // quadratic, tsp
	Algorithm string `json:"algorithm"` // hill-climbing, simulated-annealing, ...
	Cities    int    `json:"cities,omitempty"` // tsp instance size
	Iters     int    `json:"iters"`
	NTrials   int    `json:"nTrials"`
	Patience  int    `json:"patience,omitempty"`   // 0 = unlimited
	ReturnIter int   `json:"returnIter,omitempty"` // 0 = unlimited
	Seed      int64  `json:"seed"`

	// TimeLimitSec is the advisory wall-clock limit in seconds (0 = none).
	// The run stops after the first iteration that exceeds it.
	TimeLimitSec float64 `json:"timeLimitSec,omitempty"`

	// Algorithm-specific knobs; zero values mean "use the default".
	Epsilon         float64 `json:"epsilon,omitempty"`
	Beta            float64 `json:"beta,omitempty"`
	CoolingRate     float64 `json:"coolingRate,omitempty"`
	UpdateFrequency int     `json:"updateFrequency,omitempty"`
	PopulationSize  int     `json:"populationSize,omitempty"`
	Replicas        int     `json:"replicas,omitempty"`
	TabuCapacity    int     `json:"tabuCapacity,omitempty"`
	LevelFactor     float64 `json:"levelFactor,omitempty"`

	// CheckpointInterval is the number of seconds between periodic
	// checkpoints (0 = disabled).
	CheckpointInterval int `json:"checkpointInterval,omitempty"`
}

// Checkpoint is a saved optimization state that can be resumed later.
//
// Only the best solution found so far is saved, not the internal optimizer
// state (temperature, tabu list, population). Resuming restarts the search
// from the best solution: the best score can never get worse, but the
// trajectory will diverge from an uninterrupted run. Persisting optimizer
// internals would tie the checkpoint format to each algorithm's private
// state for little practical gain.
//
// TSP tours are stored as city IDs widened to float64.
type Checkpoint struct {
	// JobID is the unique identifier for this optimization job.
	JobID string `json:"jobId"`

	// BestSolution is the solution vector that achieved BestScore.
	BestSolution []float64 `json:"bestSolution"`

	// BestScore is the lowest score observed so far.
	BestScore float64 `json:"bestScore"`

	// InitialScore is the starting score, kept for improvement tracking.
	InitialScore float64 `json:"initialScore"`

	// Iteration is the iteration count when this checkpoint was created.
	Iteration int `json:"iteration"`

	// Timestamp records when this checkpoint was created.
	Timestamp time.Time `json:"timestamp"`

	// Config holds the job configuration, needed for validation on resume.
	Config RunConfig `json:"config"`
}

// CheckpointInfo is checkpoint metadata without the solution vector, used
// for listing without loading large solutions.
type CheckpointInfo struct {
	JobID     string    `json:"jobId"`
	BestScore float64   `json:"bestScore"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
	Problem   string    `json:"problem"`
	Algorithm string    `json:"algorithm"`
}

// NewCheckpoint converts runtime job state to a persistable checkpoint.
func NewCheckpoint(jobID string, bestSolution []float64, bestScore, initialScore float64,
	iteration int, config RunConfig) *Checkpoint {

	return &Checkpoint{
		JobID:        jobID,
		BestSolution: bestSolution,
		BestScore:    bestScore,
		InitialScore: initialScore,
		Iteration:    iteration,
		Timestamp:    time.Now(),
		Config:       config,
	}
}

// ToInfo strips the checkpoint down to its metadata.
func (c *Checkpoint) ToInfo() CheckpointInfo {
	return CheckpointInfo{
		JobID:     c.JobID,
		BestScore: c.BestScore,
		Iteration: c.Iteration,
		Timestamp: c.Timestamp,
		Problem:   c.Config.Problem,
		Algorithm: c.Config.Algorithm,
	}
}

// Validate checks that the checkpoint has usable data.
func (c *Checkpoint) Validate() error {
	if c.JobID == "" {
		return &ValidationError{Field: "JobID", Reason: "cannot be empty"}
	}
	if len(c.BestSolution) == 0 {
		return &ValidationError{Field: "BestSolution", Reason: "cannot be empty"}
	}
	if math.IsNaN(c.BestScore) {
		return &ValidationError{Field: "BestScore", Reason: "cannot be NaN"}
	}
	if math.IsNaN(c.InitialScore) {
		return &ValidationError{Field: "InitialScore", Reason: "cannot be NaN"}
	}
	if c.Iteration < 0 {
		return &ValidationError{Field: "Iteration", Reason: "cannot be negative"}
	}
	if c.Timestamp.IsZero() {
		return &ValidationError{Field: "Timestamp", Reason: "cannot be zero"}
	}
	if c.Config.Problem == "" {
		return &ValidationError{Field: "Config.Problem", Reason: "cannot be empty"}
	}
	if c.Config.Algorithm == "" {
		return &ValidationError{Field: "Config.Algorithm", Reason: "cannot be empty"}
	}
	if c.Config.Iters <= 0 {
		return &ValidationError{Field: "Config.Iters", Reason: "must be positive"}
	}
	if c.Config.NTrials <= 0 {
		return &ValidationError{Field: "Config.NTrials", Reason: "must be positive"}
	}
	return nil
}

// ValidationError reports an invalid checkpoint field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}

// IsCompatible checks whether this checkpoint can be resumed with the given
// config. Problem and algorithm must match; budget fields are free to
// change between runs.
func (c *Checkpoint) IsCompatible(config RunConfig) error {
	if c.Config.Problem != config.Problem {
		return &CompatibilityError{
			Field:    "Problem",
			Expected: c.Config.Problem,
			Actual:   config.Problem,
		}
	}
	if c.Config.Algorithm != config.Algorithm {
		return &CompatibilityError{
			Field:    "Algorithm",
			Expected: c.Config.Algorithm,
			Actual:   config.Algorithm,
		}
	}
	if c.Config.Cities != config.Cities {
		return &CompatibilityError{
			Field:    "Cities",
			Expected: fmt.Sprintf("%d", c.Config.Cities),
			Actual:   fmt.Sprintf("%d", config.Cities),
		}
	}
	if c.Config.PopulationSize != config.PopulationSize {
		return &CompatibilityError{
			Field:    "PopulationSize",
			Expected: fmt.Sprintf("%d", c.Config.PopulationSize),
			Actual:   fmt.Sprintf("%d", config.PopulationSize),
		}
	}
	return nil
}

// CompatibilityError reports a config mismatch on resume.
type CompatibilityError struct {
	Field    string
	Expected string
	Actual   string
}

func (e *CompatibilityError) Error() string {
	return "compatibility error: " + e.Field + " mismatch (expected " + e.Expected + ", got " + e.Actual + ")"
}
