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

// Unlimited disables patience or return-to-best when used for those fields.
const Unlimited = math.MaxInt

// acceptanceWindow is the sliding-window size used for the rolling
// acceptance ratio reported to callbacks and results.
const acceptanceWindow = 100

// AcceptFunc maps a (current, trial) score pair to an acceptance
// probability in [0, 1]. Implementations must be pure: any state they need
// (e.g. the current temperature) is threaded in by the owning optimizer.
type AcceptFunc func(current, trial float64) float64

// Result holds the outcome of one optimization run.
type Result[S any] struct {
	// BestSolution is the best solution observed during the run.
	BestSolution S
	// BestScore is the score of BestSolution.
	BestScore float64
	// LastSolution is the current solution when the run stopped.
	LastSolution S
	// LastScore is the score of LastSolution.
	LastScore float64
	// AcceptanceRatio is the rolling-window acceptance ratio at the end of
	// the run.
	AcceptanceRatio float64
	// Iterations is the number of outer iterations executed.
	Iterations int
}

// Optimizer is the common surface of all local-search algorithms. Optimize
// starts from an explicit solution; Run (the package-level helper) layers
// random initialization and pre/postprocessing on top.
//
// Budget exhaustion (iterations, time limit, patience) is not an error: the
// best solution found so far is returned. Context cancellation is advisory
// and observed once per outer iteration; a cancelled run returns the best
// result so far together with the context's error.
type Optimizer[S, Tr any] interface {
	Optimize(ctx context.Context, model Model[S, Tr], initial S, initialScore float64,
		nIter int, timeLimit time.Duration, rng *rand.Rand, callback ProgressFunc[S]) (Result[S], error)
}

// Run starts a full optimization: it generates a random solution when
// initial is nil, applies the model's preprocessing hook if present, runs
// the optimizer and applies postprocessing to the best solution found.
func Run[S, Tr any](ctx context.Context, opt Optimizer[S, Tr], model Model[S, Tr],
	initial *Initial[S], nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}

	var solution S
	var score float64
	if initial != nil {
		solution = initial.Solution
		score = initial.Score
	} else {
		var err error
		solution, score, err = model.GenerateRandomSolution(rng)
		if err != nil {
			return Result[S]{}, fmt.Errorf("%w: %v", ErrRandomGeneration, err)
		}
	}
	if err := ValidateScore(score); err != nil {
		return Result[S]{}, err
	}

	if pm, ok := any(model).(ProcessingModel[S]); ok {
		var err error
		solution, score, err = pm.PreprocessSolution(solution, score)
		if err != nil {
			return Result[S]{}, fmt.Errorf("%w: %v", ErrPreprocess, err)
		}
	}

	result, err := opt.Optimize(ctx, model, solution, score, nIter, timeLimit, rng, callback)
	if err != nil && result.Iterations == 0 {
		return result, err
	}

	if pm, ok := any(model).(ProcessingModel[S]); ok {
		result.BestSolution, result.BestScore = pm.PostprocessSolution(result.BestSolution, result.BestScore)
	}
	return result, err
}

// Generic implements the acceptance-driven search loop shared by the whole
// strategy family. It proposes NTrials candidates in parallel, picks the
// best one and accepts it either unconditionally (strict improvement) or
// with the probability returned by the accept function.
type Generic[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	accept     AcceptFunc
}

// NewGeneric builds a generic local-search optimizer.
//
//   - patience: give up after this many iterations without improvement of
//     the best score (Unlimited to never give up).
//   - nTrials: trial solutions generated and evaluated per iteration.
//   - returnIter: revert to the best solution after this many iterations
//     without improvement (Unlimited to never revert).
//   - accept: transition probability function.
func NewGeneric[S, Tr any](patience, nTrials, returnIter int, accept AcceptFunc) *Generic[S, Tr] {
	return &Generic[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		accept:     accept,
	}
}

func (g *Generic[S, Tr]) validate() error {
	if g.nTrials < 1 {
		return fmt.Errorf("%w: nTrials must be >= 1, got %d", ErrInvalidConfig, g.nTrials)
	}
	if g.accept == nil {
		return fmt.Errorf("%w: accept function is nil", ErrInvalidConfig)
	}
	return nil
}

// Optimize runs the generic loop. See Optimizer for the error contract.
func (g *Generic[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := g.validate(); err != nil {
		return Result[S]{}, err
	}
	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}
	counter := NewAcceptanceCounter(acceptanceWindow)
	res := g.step(ctx, model, initial, initialScore, nIter, timeLimit, rng, counter, callback)
	return res.toResult(counter), ctx.Err()
}

// stepResult is the outcome of one call to step, used by composed
// optimizers (simulated/adaptive annealing, population annealing, parallel
// tempering) that run the generic loop in fixed-length segments.
type stepResult[S any] struct {
	bestSolution S
	bestScore    float64
	lastSolution S
	lastScore    float64
	iterations   int
}

func (r stepResult[S]) toResult(counter *AcceptanceCounter) Result[S] {
	return Result[S]{
		BestSolution:    r.bestSolution,
		BestScore:       r.bestScore,
		LastSolution:    r.lastSolution,
		LastScore:       r.lastScore,
		AcceptanceRatio: counter.AcceptanceRatio(),
		Iterations:      r.iterations,
	}
}

// step executes up to nIter iterations of the loop. The acceptance counter
// outlives a single call so that segment-based optimizers keep one rolling
// window for the whole run.
//
// Per iteration:
//  1. stop if the time limit elapsed or ctx is cancelled (advisory,
//     checked only between iterations);
//  2. generate nTrials candidates in parallel and keep the first minimum;
//  3. on strict improvement of the best score, reset both stagnation
//     counters, otherwise advance both;
//  4. accept unconditionally on strict improvement of the current score,
//     otherwise with probability accept(current, trial);
//  5. record the outcome and move to the trial if accepted;
//  6. revert to the best solution every returnIter stagnant iterations;
//  7. give up after patience stagnant iterations;
//  8. invoke the progress callback.
func (g *Generic[S, Tr]) step(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	counter *AcceptanceCounter, callback ProgressFunc[S]) stepResult[S] {

	start := time.Now()
	current := initial
	currentScore := initialScore
	best := initial
	bestScore := initialScore
	returnStagnation := 0
	patienceStagnation := 0
	iterations := 0

	maxWorkers := runtime.GOMAXPROCS(0)
	if g.nTrials < maxWorkers {
		maxWorkers = g.nTrials
	}

	type trial struct {
		solution S
		score    float64
	}
	trials := make([]trial, g.nTrials)
	seeds := make([]int64, g.nTrials)

	for it := 0; it < nIter; it++ {
		if timeLimit > 0 && time.Since(start) >= timeLimit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		iterations++

		// Fork-join trial generation. Seeds are drawn from the control
		// goroutine's generator so runs are reproducible for a fixed seed,
		// each worker then owns an independent generator.
		for i := range seeds {
			seeds[i] = rng.Int63()
		}
		p := pool.New().WithMaxGoroutines(maxWorkers)
		for i := 0; i < g.nTrials; i++ {
			i := i
			p.Go(func() {
				trialRng := rand.New(rand.NewSource(seeds[i]))
				solution, _, score := model.GenerateTrialSolution(current, currentScore, trialRng)
				trials[i] = trial{solution: solution, score: score}
			})
		}
		p.Wait()

		bestTrial := trials[0]
		for _, t := range trials[1:] {
			if t.score < bestTrial.score {
				bestTrial = t
			}
		}

		if bestTrial.score < bestScore {
			best = bestTrial.solution
			bestScore = bestTrial.score
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation++
			patienceStagnation++
		}

		accepted := bestTrial.score < currentScore
		if !accepted {
			accepted = g.accept(currentScore, bestTrial.score) > rng.Float64()
		}
		counter.Enqueue(accepted)
		if accepted {
			current = bestTrial.solution
			currentScore = bestTrial.score
		}

		if returnStagnation == g.returnIter {
			current = best
			currentScore = bestScore
			returnStagnation = 0
		}

		if patienceStagnation == g.patience {
			break
		}

		if callback != nil {
			callback(Progress[S]{
				Iter:            it,
				AcceptanceRatio: counter.AcceptanceRatio(),
				BestSolution:    best,
				BestScore:       bestScore,
			})
		}
	}

	return stepResult[S]{
		bestSolution: best,
		bestScore:    bestScore,
		lastSolution: current,
		lastScore:    currentScore,
		iterations:   iterations,
	}
}
