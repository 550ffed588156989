package search

import (
	"context"
	"fmt"
	"math/rand"
	"runtime"
	"sort"
	"time"

	"github.com/sourcegraph/conc/pool"
)

// TabuList remembers recent moves so the search does not immediately undo
// them. Implementations decide whether to key on the solution, the
// transition or both.
type TabuList[S, Tr any] interface {
	// Contains reports whether the move to solution via transition is
	// currently forbidden.
	Contains(solution S, transition Tr) bool
	// Append records an accepted move, evicting the oldest entry once the
	// list is full.
	Append(solution S, transition Tr)
}

// RingTabuList is a fixed-capacity FIFO tabu list keyed on transitions. Two
// transitions are considered the same move when the match function returns
// true.
type RingTabuList[S, Tr any] struct {
	entries []Tr
	head    int
	count   int
	match   func(a, b Tr) bool
}

// NewRingTabuList builds a ring tabu list holding the last capacity
// transitions.
func NewRingTabuList[S, Tr any](capacity int, match func(a, b Tr) bool) *RingTabuList[S, Tr] {
	return &RingTabuList[S, Tr]{
		entries: make([]Tr, capacity),
		match:   match,
	}
}

// Contains implements TabuList.
func (l *RingTabuList[S, Tr]) Contains(_ S, transition Tr) bool {
	for i := 0; i < l.count; i++ {
		if l.match(l.entries[i], transition) {
			return true
		}
	}
	return false
}

// Append implements TabuList.
func (l *RingTabuList[S, Tr]) Append(_ S, transition Tr) {
	if len(l.entries) == 0 {
		return
	}
	l.entries[l.head] = transition
	l.head = (l.head + 1) % len(l.entries)
	if l.count < len(l.entries) {
		l.count++
	}
}

// TabuSearch evaluates the trial candidates from best to worst and moves to
// the first one that is either better than the best score seen so far (the
// aspiration criterion) or not on the tabu list. An iteration where every
// candidate is tabu leaves the current solution in place.
type TabuSearch[S, Tr any] struct {
	patience   int
	nTrials    int
	returnIter int
	tabu       TabuList[S, Tr]
}

// NewTabuSearch builds a tabu-search optimizer around the given tabu list.
func NewTabuSearch[S, Tr any](patience, nTrials, returnIter int, tabu TabuList[S, Tr]) *TabuSearch[S, Tr] {
	return &TabuSearch[S, Tr]{
		patience:   patience,
		nTrials:    nTrials,
		returnIter: returnIter,
		tabu:       tabu,
	}
}

func (o *TabuSearch[S, Tr]) validate() error {
	if o.nTrials < 1 {
		return fmt.Errorf("%w: nTrials must be >= 1, got %d", ErrInvalidConfig, o.nTrials)
	}
	if o.tabu == nil {
		return fmt.Errorf("%w: tabu list is nil", ErrInvalidConfig)
	}
	return nil
}

// Optimize implements Optimizer.
func (o *TabuSearch[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := o.validate(); err != nil {
		return Result[S]{}, err
	}
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
	iterations := 0

	maxWorkers := runtime.GOMAXPROCS(0)
	if o.nTrials < maxWorkers {
		maxWorkers = o.nTrials
	}

	type trial struct {
		solution   S
		transition Tr
		score      float64
	}
	trials := make([]trial, o.nTrials)
	seeds := make([]int64, o.nTrials)

	for it := 0; it < nIter; it++ {
		if timeLimit > 0 && time.Since(start) >= timeLimit {
			break
		}
		if ctx.Err() != nil {
			break
		}
		iterations++

		for i := range seeds {
			seeds[i] = rng.Int63()
		}
		p := pool.New().WithMaxGoroutines(maxWorkers)
		for i := 0; i < o.nTrials; i++ {
			i := i
			p.Go(func() {
				trialRng := rand.New(rand.NewSource(seeds[i]))
				solution, transition, score := model.GenerateTrialSolution(current, currentScore, trialRng)
				trials[i] = trial{solution: solution, transition: transition, score: score}
			})
		}
		p.Wait()

		// Stable sort keeps candidate order deterministic for equal scores.
		sort.SliceStable(trials, func(a, b int) bool {
			return trials[a].score < trials[b].score
		})

		accepted := false
		for _, t := range trials {
			aspiration := t.score < bestScore
			if aspiration || !o.tabu.Contains(t.solution, t.transition) {
				o.tabu.Append(t.solution, t.transition)
				current = t.solution
				currentScore = t.score
				accepted = true
				break
			}
		}
		counter.Enqueue(accepted)

		if currentScore < bestScore {
			best = current
			bestScore = currentScore
			returnStagnation = 0
			patienceStagnation = 0
		} else {
			returnStagnation++
			patienceStagnation++
		}

		if returnStagnation == o.returnIter {
			current = best
			currentScore = bestScore
			returnStagnation = 0
		}

		if patienceStagnation == o.patience {
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

	return Result[S]{
		BestSolution:    best,
		BestScore:       bestScore,
		LastSolution:    current,
		LastScore:       currentScore,
		AcceptanceRatio: counter.AcceptanceRatio(),
		Iterations:      iterations,
	}, ctx.Err()
}
