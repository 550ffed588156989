package search

import (
	"context"
	"math/rand"
	"time"
)

// HillClimbing is the strictly greedy strategy: only improving transitions
// are accepted. It is epsilon-greedy with epsilon fixed at 0.
type HillClimbing[S, Tr any] struct {
	patience int
	nTrials  int
}

// NewHillClimbing builds a hill-climbing optimizer.
func NewHillClimbing[S, Tr any](patience, nTrials int) *HillClimbing[S, Tr] {
	return &HillClimbing[S, Tr]{patience: patience, nTrials: nTrials}
}

// Optimize implements Optimizer.
func (o *HillClimbing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	greedy := NewEpsilonGreedy[S, Tr](o.patience, o.nTrials, Unlimited, 0.0)
	return greedy.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
