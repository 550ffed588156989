package search

import (
	"context"
	"math"
	"math/rand"
	"time"
)

func logisticProb(current, trial, w float64) float64 {
	d := (trial - current) / current
	return 2.0 / (1.0 + math.Exp(w*d))
}

// LogisticAnnealing accepts transitions based on the relative score
// difference passed through a logistic sigmoid:
//
//	d = (trial - current) / current
//	p = 2 / (1 + exp(w*d))
//
// The relative scaling makes w far less sensitive to the magnitude of the
// objective than an absolute-delta temperature would be.
type LogisticAnnealing[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	w          float64
}

// NewLogisticAnnealing builds a logistic-annealing optimizer. w is the
// weight multiplied with the relative score difference.
func NewLogisticAnnealing[S, Tr any](patience, nTrials, returnIter int, w float64) *LogisticAnnealing[S, Tr] {
	return &LogisticAnnealing[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		w:          w,
	}
}

// Optimize implements Optimizer.
func (o *LogisticAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	generic := NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, func(current, trial float64) float64 {
		return logisticProb(current, trial, o.w)
	})
	return generic.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
