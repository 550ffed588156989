package search

import (
	"context"
	"math/rand"
	"time"
)

func epsilonGreedyProb(current, trial, epsilon float64) float64 {
	if trial <= current {
		return 1.0
	}
	return epsilon
}

// EpsilonGreedy accepts improving transitions always and worsening
// transitions with a fixed probability epsilon. Epsilon 0 degenerates to
// hill climbing, epsilon 1 to a pure random walk.
type EpsilonGreedy[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	epsilon    float64
}

// NewEpsilonGreedy builds an epsilon-greedy optimizer. Epsilon must be in
// [0, 1]; it is the probability of accepting a worsening transition.
func NewEpsilonGreedy[S, Tr any](patience, nTrials, returnIter int, epsilon float64) *EpsilonGreedy[S, Tr] {
	return &EpsilonGreedy[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		epsilon:    epsilon,
	}
}

// Optimize implements Optimizer.
func (o *EpsilonGreedy[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	generic := NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, func(current, trial float64) float64 {
		return epsilonGreedyProb(current, trial, o.epsilon)
	})
	return generic.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
