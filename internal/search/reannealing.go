package search

import (
	"context"
	"math/rand"
	"time"
)

// Reannealing is simulated annealing that restarts its cooling schedule
// every reannealInterval iterations: each segment cools from the initial
// beta to the final beta, then the temperature snaps back and the search
// re-anneals from wherever it currently stands.
type Reannealing[S, Tr any] struct {
	patience         int
	nTrials          int
	returnIter       int
	initialBeta      float64
	coolingRate      float64
	reannealInterval int
}

// NewReannealing builds a re-annealing optimizer.
func NewReannealing[S, Tr any](patience, nTrials, returnIter int,
	initialBeta, coolingRate float64, reannealInterval int) *Reannealing[S, Tr] {

	if reannealInterval < 1 {
		reannealInterval = 1
	}
	return &Reannealing[S, Tr]{
		patience:         patience,
		nTrials:          nTrials,
		returnIter:       returnIter,
		initialBeta:      initialBeta,
		coolingRate:      coolingRate,
		reannealInterval: reannealInterval,
	}
}

// WithTunedBeta returns a copy whose initial beta targets the given uphill
// acceptance probability.
func (o *Reannealing[S, Tr]) WithTunedBeta(model Model[S, Tr], initial *Initial[S],
	nWarmup int, targetProb float64, rng *rand.Rand) (*Reannealing[S, Tr], error) {

	beta, err := TuneBeta(model, initial, nWarmup, targetProb, rng)
	if err != nil {
		return nil, err
	}
	tuned := *o
	tuned.initialBeta = beta
	return &tuned, nil
}

// WithTunedCoolingRate returns a copy whose cooling rate reaches the final
// beta within one re-annealing interval.
func (o *Reannealing[S, Tr]) WithTunedCoolingRate() *Reannealing[S, Tr] {
	tuned := *o
	tuned.coolingRate = TuneCoolingRate(o.initialBeta, finalBeta, o.reannealInterval)
	return &tuned
}

// Optimize implements Optimizer.
func (o *Reannealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}

	start := time.Now()
	current := initial
	currentScore := initialScore
	best := initial
	bestScore := initialScore
	counter := NewAcceptanceCounter(acceptanceWindow)
	returnStagnation := 0
	patienceStagnation := 0
	iter := 0

	for iter < nIter {
		remaining := timeLimit
		if timeLimit > 0 {
			elapsed := time.Since(start)
			if elapsed >= timeLimit {
				break
			}
			remaining = timeLimit - elapsed
		}
		if ctx.Err() != nil {
			break
		}

		// One full cooling sweep from the initial beta.
		beta := o.initialBeta
		res := stepResult[S]{lastSolution: current, lastScore: currentScore,
			bestSolution: current, bestScore: currentScore}
		segBest := current
		segBestScore := currentScore
		for i := 0; i < o.reannealInterval; i++ {
			seg := NewGeneric[S, Tr](Unlimited, o.nTrials, Unlimited, metropolisAccept(beta))
			res = seg.step(ctx, model, res.lastSolution, res.lastScore, 1, remaining, rng, counter, nil)
			if res.bestScore < segBestScore {
				segBest = res.bestSolution
				segBestScore = res.bestScore
			}
			beta *= o.coolingRate
		}
		iter += o.reannealInterval

		current = res.lastSolution
		currentScore = res.lastScore

		if segBestScore < bestScore {
			best = segBest
			bestScore = segBestScore
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation += o.reannealInterval
			patienceStagnation += o.reannealInterval
		}

		if returnStagnation >= o.returnIter {
			current = best
			currentScore = bestScore
			returnStagnation = 0
		}
		if patienceStagnation >= o.patience {
			break
		}

		if callback != nil {
			callback(Progress[S]{
				Iter:            iter,
				AcceptanceRatio: counter.AcceptanceRatio(),
				BestSolution:    best,
				BestScore:       bestScore,
			})
		}
	}

	return Result[S]{
		BestSolution:    best,
		BestScore:       bestScore,
		LastSolution:    current,
		LastScore:       currentScore,
		AcceptanceRatio: counter.AcceptanceRatio(),
		Iterations:      iter,
	}, ctx.Err()
}
