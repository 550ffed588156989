package search

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// RelativeTransform converts a relative score difference to an acceptance
// probability.
type RelativeTransform func(d float64) float64

// RelativeExp returns exp(-w*d) as the transform.
func RelativeExp(w float64) RelativeTransform {
	return func(d float64) float64 { return math.Exp(-w * d) }
}

// RelativeLogistic returns 2/(1+exp(w*d)) as the transform.
func RelativeLogistic(w float64) RelativeTransform {
	return func(d float64) float64 { return 2.0 / (1.0 + math.Exp(w*d)) }
}

// RelativeAnnealing accepts transitions based on the relative score
// difference (trial-current)/current passed through a caller-supplied
// transform.
type RelativeAnnealing[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	transform  RelativeTransform
}

// NewRelativeAnnealing builds a relative-annealing optimizer.
func NewRelativeAnnealing[S, Tr any](patience, nTrials, returnIter int, transform RelativeTransform) *RelativeAnnealing[S, Tr] {
	return &RelativeAnnealing[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		transform:  transform,
	}
}

// Optimize implements Optimizer.
func (o *RelativeAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	generic := NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, func(current, trial float64) float64 {
		return o.transform((trial - current) / current)
	})
	return generic.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
