package search

import (
	"context"
	"math/rand"
	"time"
)

// RandomSearch accepts every transition: epsilon-greedy with epsilon 1 and
// a single trial per iteration. Useful as a sanity baseline.
type RandomSearch[S, Tr any] struct {
	patience int
}

// NewRandomSearch builds a random-search optimizer.
func NewRandomSearch[S, Tr any](patience int) *RandomSearch[S, Tr] {
	return &RandomSearch[S, Tr]{patience: patience}
}

// Optimize implements Optimizer.
func (o *RandomSearch[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	greedy := NewEpsilonGreedy[S, Tr](o.patience, 1, Unlimited, 1.0)
	return greedy.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
