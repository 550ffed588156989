package search

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// tsallisProb is the Tsallis power-law acceptance probability
// [1 - (1-q)*beta*d]^(1/(1-q)) with d = delta/(current-offset+xi), floored
// at 0.01 so the search never freezes completely.
func tsallisProb(current, trial, offset, beta, q, xi float64) float64 {
	delta := trial - current
	if delta <= 0 {
		return 1.0
	}
	d := delta / (current - offset + xi)
	arg := 1.0 - (1.0-q)*beta*d
	if arg <= 0 {
		return 0.01
	}
	p := math.Pow(arg, 1.0/(1.0-q))
	if p < 0.01 || math.IsNaN(p) {
		return 0.01
	}
	return p
}

// TsallisAnnealing generalizes relative annealing with Tsallis statistics.
// The relative difference is taken against the best score found so far
// (the offset) and beta is steered by an adaptive scheduler so the
// acceptance rate tracks a constant target. Assumes q > 1.
type TsallisAnnealing[S, Tr any] struct {
	patience        int
	nTrials         int
	returnIter      int
	beta            float64
	q               float64
	xi              float64
	updateFrequency int
	scheduler       AdaptiveScheduler
}

// NewTsallisAnnealing builds a Tsallis-annealing optimizer.
//
//   - beta: initial weight for the relative difference; the reciprocal of
//     the expected relative difference is a reasonable starting point.
//   - q: Tsallis parameter, > 1 (2.5 works well in practice).
//   - xi: regularizer in the denominator; 1.0 for integer objectives,
//     roughly 0.1% of the objective value for continuous ones.
//   - updateFrequency: iterations between beta updates.
func NewTsallisAnnealing[S, Tr any](patience, nTrials, returnIter int,
	beta, q, xi float64, updateFrequency int) *TsallisAnnealing[S, Tr] {

	return &TsallisAnnealing[S, Tr]{
		patience:        patience,
		nTrials:         nTrials,
		returnIter:      returnIter,
		beta:            beta,
		q:               q,
		xi:              xi,
		updateFrequency: updateFrequency,
		scheduler:       NewAdaptiveScheduler(0.3, 0.3, ScheduleConstant, 0.05),
	}
}

// WithScheduler returns a copy using the given beta scheduler.
func (o *TsallisAnnealing[S, Tr]) WithScheduler(scheduler AdaptiveScheduler) *TsallisAnnealing[S, Tr] {
	tuned := *o
	tuned.scheduler = scheduler
	return &tuned
}

// Optimize implements Optimizer.
func (o *TsallisAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	// Both values are read by the accept function and written by the
	// wrapped callback; the generic loop invokes both on the control
	// goroutine, so plain locals are safe.
	offset := initialScore
	beta := o.beta

	accept := func(current, trial float64) float64 {
		return tsallisProb(current, trial, offset, beta, o.q, o.xi)
	}

	wrapped := func(p Progress[S]) {
		offset = p.BestScore
		if o.updateFrequency > 0 && p.Iter%o.updateFrequency == 0 {
			beta = o.scheduler.updateBeta(beta, p.Iter, nIter, p.AcceptanceRatio)
		}
		if callback != nil {
			callback(p)
		}
	}

	generic := NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, accept)
	return generic.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, wrapped)
}
