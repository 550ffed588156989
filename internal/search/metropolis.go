package search

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// metropolisAccept returns the Metropolis criterion for a fixed inverse
// temperature beta: 1 for improving moves, exp(-beta*delta) otherwise.
func metropolisAccept(beta float64) AcceptFunc {
	return func(current, trial float64) float64 {
		delta := trial - current
		if delta <= 0 {
			return 1.0
		}
		return math.Exp(-beta * delta)
	}
}

// Metropolis runs the constant-temperature Metropolis algorithm. It is the
// building block the annealing variants run in fixed-length segments.
type Metropolis[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	beta       float64
}

// NewMetropolis builds a Metropolis optimizer with a fixed inverse
// temperature beta.
func NewMetropolis[S, Tr any](patience, nTrials, returnIter int, beta float64) *Metropolis[S, Tr] {
	return &Metropolis[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		beta:       beta,
	}
}

func (o *Metropolis[S, Tr]) generic() *Generic[S, Tr] {
	return NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, metropolisAccept(o.beta))
}

// Optimize implements Optimizer.
func (o *Metropolis[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	return o.generic().Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, callback)
}
