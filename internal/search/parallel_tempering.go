package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// swapProbability is the replica-exchange criterion for adjacent rungs:
// min(1, exp((betaHigh-betaLow)*(scoreHigh-scoreLow))).
func swapProbability(betaLow, betaHigh, scoreLow, scoreHigh float64) float64 {
	exponent := (betaHigh - betaLow) * (scoreHigh - scoreLow)
	if exponent >= 0 {
		return 1.0
	}
	return math.Exp(exponent)
}

// NewGeometricLadder spaces nReplicas inverse temperatures geometrically
// between betaMin and betaMax (inclusive), ascending.
func NewGeometricLadder(nReplicas int, betaMin, betaMax float64) []float64 {
	betas := make([]float64, nReplicas)
	if nReplicas == 1 {
		betas[0] = betaMin
		return betas
	}
	ratio := math.Pow(betaMax/betaMin, 1.0/float64(nReplicas-1))
	beta := betaMin
	for i := range betas {
		betas[i] = beta
		beta *= ratio
	}
	return betas
}

// ParallelTempering runs one Metropolis walker per rung of a fixed inverse
// temperature ladder. After each round, adjacent replicas may swap their
// configurations with the standard replica-exchange probability, letting
// low-beta replicas explore broadly and hand promising regions down to
// greedier rungs.
type ParallelTempering[S, Tr any] struct {
	patience        int
	returnIter      int
	betas           []float64
	updateFrequency int
}

// NewParallelTempering builds a replica-exchange optimizer over the given
// ladder. Betas are sorted ascending; each replica stays pinned to its rung
// for the whole run.
func NewParallelTempering[S, Tr any](patience, returnIter int, betas []float64,
	updateFrequency int) *ParallelTempering[S, Tr] {

	if updateFrequency < 1 {
		updateFrequency = 1
	}
	ladder := make([]float64, len(betas))
	copy(ladder, betas)
	sort.Float64s(ladder)
	return &ParallelTempering[S, Tr]{
		patience:        patience,
		returnIter:      returnIter,
		betas:           ladder,
		updateFrequency: updateFrequency,
	}
}

// WithTunedLadder returns a copy whose ladder spans the betas matching the
// given acceptance probabilities at the hot and cold end, estimated from
// nWarmup warm-up trials. hotProb must exceed coldProb.
func (o *ParallelTempering[S, Tr]) WithTunedLadder(model Model[S, Tr], initial *Initial[S],
	nWarmup int, hotProb, coldProb float64, rng *rand.Rand) (*ParallelTempering[S, Tr], error) {

	diffs, err := gatherEnergyDiffs(model, initial, nWarmup, rng)
	if err != nil {
		return nil, err
	}
	betaMin, betaMax := 1.0, finalBeta
	if len(diffs) > 0 {
		betaMin = betaFromAcceptanceProb(diffs, hotProb)
		betaMax = betaFromAcceptanceProb(diffs, coldProb)
	}
	tuned := *o
	tuned.betas = NewGeometricLadder(len(o.betas), betaMin, betaMax)
	return &tuned, nil
}

func (o *ParallelTempering[S, Tr]) validate() error {
	if len(o.betas) < 2 {
		return fmt.Errorf("%w: need at least 2 replicas, got %d", ErrInvalidConfig, len(o.betas))
	}
	for i, b := range o.betas {
		if b <= 0 || math.IsNaN(b) {
			return fmt.Errorf("%w: beta[%d] = %v, must be positive", ErrInvalidConfig, i, b)
		}
	}
	return nil
}

// Optimize implements Optimizer.
func (o *ParallelTempering[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := o.validate(); err != nil {
		return Result[S]{}, err
	}
	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}

	start := time.Now()
	nReplicas := len(o.betas)
	best := initial
	bestScore := initialScore
	counter := NewAcceptanceCounter(acceptanceWindow)
	returnStagnation := 0
	patienceStagnation := 0
	iter := 0

	replicas := make([]member[S], nReplicas)
	for i := range replicas {
		replicas[i] = member[S]{solution: initial, score: initialScore}
	}

	maxWorkers := runtime.GOMAXPROCS(0)
	if nReplicas < maxWorkers {
		maxWorkers = nReplicas
	}
	walks := make([]walkResult[S], nReplicas)
	seeds := make([]int64, nReplicas)

	for iter < nIter {
		if timeLimit > 0 && time.Since(start) >= timeLimit {
			break
		}
		if ctx.Err() != nil {
			break
		}

		for i := range seeds {
			seeds[i] = rng.Int63()
		}
		p := pool.New().WithMaxGoroutines(maxWorkers)
		for i := 0; i < nReplicas; i++ {
			i := i
			p.Go(func() {
				walkRng := rand.New(rand.NewSource(seeds[i]))
				walks[i] = metropolisWalk(model, replicas[i].solution, replicas[i].score,
					o.betas[i], o.updateFrequency, walkRng)
			})
		}
		p.Wait()
		iter += o.updateFrequency

		improved := false
		for i, w := range walks {
			replicas[i] = member[S]{solution: w.last, score: w.lastScore}
			if w.bestScore < bestScore {
				best = w.best
				bestScore = w.bestScore
				improved = true
			}
			for j := 0; j < w.accepted; j++ {
				counter.Enqueue(true)
			}
			for j := w.accepted; j < w.steps; j++ {
				counter.Enqueue(false)
			}
		}

		// Replica-exchange step between adjacent rungs.
		for i := 0; i < nReplicas-1; i++ {
			p := swapProbability(o.betas[i], o.betas[i+1], replicas[i].score, replicas[i+1].score)
			if p >= 1.0 || p > rng.Float64() {
				replicas[i], replicas[i+1] = replicas[i+1], replicas[i]
			}
		}

		if improved {
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation += o.updateFrequency
			patienceStagnation += o.updateFrequency
		}

		if returnStagnation >= o.returnIter {
			replicas[rng.Intn(nReplicas)] = member[S]{solution: best, score: bestScore}
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

	// The coldest replica is the natural final answer of the ladder.
	last := replicas[nReplicas-1]

	return Result[S]{
		BestSolution:    best,
		BestScore:       bestScore,
		LastSolution:    last.solution,
		LastScore:       last.score,
		AcceptanceRatio: counter.AcceptanceRatio(),
		Iterations:      iter,
	}, ctx.Err()
}
