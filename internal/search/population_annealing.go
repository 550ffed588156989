package search

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// weightFloor keeps resampling weights strictly positive so the population
// never collapses onto a zero-probability member.
const weightFloor = 1e-8

// walkResult is the outcome of one sequential Metropolis walk, used by the
// population and replica-exchange optimizers whose parallelism unit is a
// whole walk rather than a single trial.
type walkResult[S any] struct {
	last      S
	lastScore float64
	best      S
	bestScore float64
	accepted  int
	steps     int
}

// metropolisWalk runs a fixed-temperature Metropolis chain for the given
// number of steps using a private generator.
func metropolisWalk[S, Tr any](model Model[S, Tr], start S, startScore, beta float64,
	steps int, rng *rand.Rand) walkResult[S] {

	current := start
	currentScore := startScore
	res := walkResult[S]{best: start, bestScore: startScore, steps: steps}

	for i := 0; i < steps; i++ {
		solution, _, score := model.GenerateTrialSolution(current, currentScore, rng)
		accepted := score < currentScore
		if !accepted {
			accepted = math.Exp(-beta*(score-currentScore)) > rng.Float64()
		}
		if accepted {
			current = solution
			currentScore = score
			res.accepted++
			if score < res.bestScore {
				res.best = solution
				res.bestScore = score
			}
		}
	}
	res.last = current
	res.lastScore = currentScore
	return res
}

// PopulationAnnealing evolves a fixed-size population of Metropolis walkers
// at a shared inverse temperature. After every round the temperature is
// cooled and the population is resampled with replacement proportionally to
// the Boltzmann weight exp(-beta*score), concentrating walkers on low-score
// regions as beta grows.
type PopulationAnnealing[S, Tr any] struct {
	patience        int
	returnIter      int
	populationSize  int
	initialBeta     float64
	coolingRate     float64
	updateFrequency int
}

// NewPopulationAnnealing builds a population-annealing optimizer.
//
//   - populationSize: number of walkers, constant for the whole run.
//   - initialBeta: shared starting inverse temperature.
//   - coolingRate: factor applied to beta after every round; must be > 1.
//   - updateFrequency: Metropolis steps per walker per round.
func NewPopulationAnnealing[S, Tr any](patience, returnIter, populationSize int,
	initialBeta, coolingRate float64, updateFrequency int) *PopulationAnnealing[S, Tr] {

	if updateFrequency < 1 {
		updateFrequency = 1
	}
	return &PopulationAnnealing[S, Tr]{
		patience:        patience,
		returnIter:      returnIter,
		populationSize:  populationSize,
		initialBeta:     initialBeta,
		coolingRate:     coolingRate,
		updateFrequency: updateFrequency,
	}
}

// WithTunedBeta returns a copy whose initial beta targets the given uphill
// acceptance probability, estimated from nWarmup warm-up trials.
func (o *PopulationAnnealing[S, Tr]) WithTunedBeta(model Model[S, Tr], initial *Initial[S],
	nWarmup int, targetProb float64, rng *rand.Rand) (*PopulationAnnealing[S, Tr], error) {

	beta, err := TuneBeta(model, initial, nWarmup, targetProb, rng)
	if err != nil {
		return nil, err
	}
	tuned := *o
	tuned.initialBeta = beta
	return &tuned, nil
}

// WithTunedCoolingRate returns a copy whose cooling rate moves beta from its
// current initial value to the standard final beta over nIter iterations.
func (o *PopulationAnnealing[S, Tr]) WithTunedCoolingRate(nIter int) *PopulationAnnealing[S, Tr] {
	tuned := *o
	tuned.coolingRate = TuneCoolingRate(o.initialBeta, finalBeta, nIter/o.updateFrequency)
	return &tuned
}

func (o *PopulationAnnealing[S, Tr]) validate() error {
	if o.populationSize < 1 {
		return fmt.Errorf("%w: populationSize must be >= 1, got %d", ErrInvalidConfig, o.populationSize)
	}
	return nil
}

type member[S any] struct {
	solution S
	score    float64
}

// Optimize implements Optimizer.
func (o *PopulationAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := o.validate(); err != nil {
		return Result[S]{}, err
	}
	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}

	start := time.Now()
	beta := o.initialBeta
	best := initial
	bestScore := initialScore
	counter := NewAcceptanceCounter(acceptanceWindow)
	returnStagnation := 0
	patienceStagnation := 0
	iter := 0

	// Seed the population from the initial solution's neighborhood so the
	// walkers start spread out rather than perfectly correlated.
	members := make([]member[S], o.populationSize)
	members[0] = member[S]{solution: initial, score: initialScore}
	for i := 1; i < o.populationSize; i++ {
		solution, _, score := model.GenerateTrialSolution(initial, initialScore, rng)
		members[i] = member[S]{solution: solution, score: score}
		if score < bestScore {
			best = solution
			bestScore = score
		}
	}

	maxWorkers := runtime.GOMAXPROCS(0)
	if o.populationSize < maxWorkers {
		maxWorkers = o.populationSize
	}
	walks := make([]walkResult[S], o.populationSize)
	seeds := make([]int64, o.populationSize)
	weights := make([]float64, o.populationSize)

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
		for i := 0; i < o.populationSize; i++ {
			i := i
			p.Go(func() {
				walkRng := rand.New(rand.NewSource(seeds[i]))
				walks[i] = metropolisWalk(model, members[i].solution, members[i].score,
					beta, o.updateFrequency, walkRng)
			})
		}
		p.Wait()
		iter += o.updateFrequency

		improved := false
		for i, w := range walks {
			members[i] = member[S]{solution: w.last, score: w.lastScore}
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

		beta *= o.coolingRate
		o.resample(members, weights, beta, rng)

		if improved {
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation += o.updateFrequency
			patienceStagnation += o.updateFrequency
		}

		if returnStagnation >= o.returnIter {
			members[rng.Intn(o.populationSize)] = member[S]{solution: best, score: bestScore}
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

	// The resampled population is interchangeable; report the lowest-score
	// member as the last solution.
	last := members[0]
	for _, m := range members[1:] {
		if m.score < last.score {
			last = m
		}
	}

	return Result[S]{
		BestSolution:    best,
		BestScore:       bestScore,
		LastSolution:    last.solution,
		LastScore:       last.score,
		AcceptanceRatio: counter.AcceptanceRatio(),
		Iterations:      iter,
	}, ctx.Err()
}

// resample replaces the population with a Boltzmann-weighted draw with
// replacement. Weights are shifted by the minimum score before
// exponentiation for numerical stability; the replacement probabilities are
// unchanged by the common factor.
func (o *PopulationAnnealing[S, Tr]) resample(members []member[S], weights []float64,
	beta float64, rng *rand.Rand) {

	minScore := members[0].score
	for _, m := range members[1:] {
		if m.score < minScore {
			minScore = m.score
		}
	}

	total := 0.0
	for i, m := range members {
		w := math.Exp(-beta * (m.score - minScore))
		if w < weightFloor || math.IsNaN(w) {
			w = weightFloor
		}
		weights[i] = w
		total += w
	}

	resampled := make([]member[S], len(members))
	for i := range resampled {
		u := rng.Float64() * total
		cum := 0.0
		picked := len(members) - 1
		for j, w := range weights {
			cum += w
			if u < cum {
				picked = j
				break
			}
		}
		resampled[i] = members[picked]
	}
	copy(members, resampled)
}
