package search

import (
	"context"
	"math/rand"
	"time"
)

// finalBeta is the inverse temperature the tuned geometric schedule reaches
// by the end of a run.
const finalBeta = 1e2

// SimulatedAnnealing runs the Metropolis algorithm in fixed-length segments
// and multiplies the inverse temperature by a constant cooling rate after
// each segment, so beta grows monotonically toward the greedy regime.
type SimulatedAnnealing[S, Tr any] struct {
	patience        int
	nTrials         int
	returnIter      int
	initialBeta     float64
	coolingRate     float64
	updateFrequency int
}

// NewSimulatedAnnealing builds a simulated-annealing optimizer.
//
//   - initialBeta: starting inverse temperature.
//   - coolingRate: factor applied to beta every updateFrequency iterations;
//     must be > 1 for beta to increase.
//   - updateFrequency: iterations per Metropolis segment.
func NewSimulatedAnnealing[S, Tr any](patience, nTrials, returnIter int,
	initialBeta, coolingRate float64, updateFrequency int) *SimulatedAnnealing[S, Tr] {

	if updateFrequency < 1 {
		updateFrequency = 1
	}
	return &SimulatedAnnealing[S, Tr]{
		patience:        patience,
		nTrials:         nTrials,
		returnIter:      returnIter,
		initialBeta:     initialBeta,
		coolingRate:     coolingRate,
		updateFrequency: updateFrequency,
	}
}

// WithTunedBeta returns a copy whose initial beta targets the given uphill
// acceptance probability, estimated from nWarmup warm-up trials.
func (o *SimulatedAnnealing[S, Tr]) WithTunedBeta(model Model[S, Tr], initial *Initial[S],
	nWarmup int, targetProb float64, rng *rand.Rand) (*SimulatedAnnealing[S, Tr], error) {

	beta, err := TuneBeta(model, initial, nWarmup, targetProb, rng)
	if err != nil {
		return nil, err
	}
	tuned := *o
	tuned.initialBeta = beta
	return &tuned, nil
}

// WithTunedCoolingRate returns a copy whose cooling rate moves beta from
// its current initial value to the standard final beta over nIter
// iterations.
func (o *SimulatedAnnealing[S, Tr]) WithTunedCoolingRate(nIter int) *SimulatedAnnealing[S, Tr] {
	tuned := *o
	tuned.coolingRate = TuneCoolingRate(o.initialBeta, finalBeta, nIter/o.updateFrequency)
	return &tuned
}

// Optimize implements Optimizer.
func (o *SimulatedAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}

	start := time.Now()
	beta := o.initialBeta
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

		segment := NewGeneric[S, Tr](Unlimited, o.nTrials, Unlimited, metropolisAccept(beta))
		res := segment.step(ctx, model, current, currentScore, o.updateFrequency, remaining, rng, counter, nil)
		iter += o.updateFrequency

		current = res.lastSolution
		currentScore = res.lastScore

		if res.bestScore < bestScore {
			best = res.bestSolution
			bestScore = res.bestScore
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation += o.updateFrequency
			patienceStagnation += o.updateFrequency
		}

		if returnStagnation >= o.returnIter {
			current = best
			currentScore = bestScore
			returnStagnation = 0
		}
		if patienceStagnation >= o.patience {
			break
		}

		beta *= o.coolingRate

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
