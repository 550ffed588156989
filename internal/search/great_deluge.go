package search

import (
	"context"
	"math/rand"
	"time"
)

// GreatDeluge accepts any trial whose score lies below a monotonically
// decreasing water level. The level starts at initialScore*levelFactor and
// decays linearly toward the best score found so far, so no randomness is
// involved in the acceptance decision itself.
type GreatDeluge[S, Tr any] struct {
	patience    int
	nTrials     int
	returnIter  int
	levelFactor float64
}

// NewGreatDeluge builds a great-deluge optimizer. levelFactor scales the
// initial score into the starting water level; values slightly above 1.0
// (for positive scores) give the search some initial slack.
func NewGreatDeluge[S, Tr any](patience, nTrials, returnIter int, levelFactor float64) *GreatDeluge[S, Tr] {
	return &GreatDeluge[S, Tr]{
		patience:    patience,
		nTrials:     nTrials,
		returnIter:  returnIter,
		levelFactor: levelFactor,
	}
}

// Optimize implements Optimizer.
func (o *GreatDeluge[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	initialLevel := initialScore * o.levelFactor
	level := initialLevel

	accept := func(current, trial float64) float64 {
		if trial < level {
			return 1.0
		}
		return 0.0
	}

	wrapped := func(p Progress[S]) {
		frac := float64(p.Iter) / float64(nIter)
		level = initialLevel - (initialLevel-p.BestScore)*frac
		if callback != nil {
			callback(p)
		}
	}

	generic := NewGeneric[S, Tr](o.patience, o.nTrials, o.returnIter, accept)
	return generic.Optimize(ctx, model, initial, initialScore, nIter, timeLimit, rng, wrapped)
}
