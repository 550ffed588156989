package search

import (
	"fmt"
	"math"
	"math/rand"
)

// Model defines the problem-specific contract consumed by every optimizer.
// S is the solution type and Tr describes how a trial solution was derived
// from the current one (only tabu search inspects transitions).
//
// Scores follow the "lower is better" convention and must never be NaN;
// optimizers validate scores at this boundary and fail fast instead of
// letting unordered values corrupt best-tracking.
//
// GenerateTrialSolution must be safe to call concurrently: it is invoked
// from worker goroutines, each with its own *rand.Rand.
type Model[S, Tr any] interface {
	// GenerateRandomSolution produces a fresh solution and its score.
	// It should only fail if the problem setup itself is invalid.
	GenerateRandomSolution(rng *rand.Rand) (S, float64, error)

	// GenerateTrialSolution derives a candidate solution from the current
	// one, returning the candidate, the transition that produced it and the
	// candidate's score. It must not mutate the current solution.
	GenerateTrialSolution(current S, currentScore float64, rng *rand.Rand) (S, Tr, float64)
}

// ProcessingModel is an optional extension of Model. When implemented,
// PreprocessSolution runs once before a full run (e.g. to repair or
// normalize the initial solution) and PostprocessSolution once after.
type ProcessingModel[S any] interface {
	PreprocessSolution(solution S, score float64) (S, float64, error)
	PostprocessSolution(solution S, score float64) (S, float64)
}

// Initial carries an explicit starting point for a run. A nil *Initial asks
// the optimizer to generate a random solution instead.
type Initial[S any] struct {
	Solution S
	Score    float64
}

// ValidateScore rejects NaN scores at the model boundary.
func ValidateScore(score float64) error {
	if math.IsNaN(score) {
		return fmt.Errorf("%w: score is NaN", ErrInvalidScore)
	}
	return nil
}
