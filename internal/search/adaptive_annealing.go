package search

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// TargetAccScheduleMode selects how the target acceptance rate evolves over
// the course of a run.
type TargetAccScheduleMode int

const (
	// ScheduleCosine follows a half cosine from the initial to the final
	// target acceptance rate.
	ScheduleCosine TargetAccScheduleMode = iota
	// ScheduleLinear interpolates linearly.
	ScheduleLinear
	// ScheduleExponential decays geometrically.
	ScheduleExponential
	// ScheduleConstant keeps the initial target acceptance rate.
	ScheduleConstant
)

// AdaptiveScheduler drives the inverse temperature toward a scheduled
// target acceptance rate. After each segment beta is scaled by
// exp(gamma * (measured - target) / target): too many accepts cool the
// system down, too few heat it up.
type AdaptiveScheduler struct {
	initialTargetAcc float64
	finalTargetAcc   float64
	mode             TargetAccScheduleMode
	gamma            float64
}

// NewAdaptiveScheduler builds a scheduler. Gamma controls how aggressively
// beta reacts to the deviation from the target acceptance rate.
func NewAdaptiveScheduler(initialTargetAcc, finalTargetAcc float64, mode TargetAccScheduleMode, gamma float64) AdaptiveScheduler {
	return AdaptiveScheduler{
		initialTargetAcc: initialTargetAcc,
		finalTargetAcc:   finalTargetAcc,
		mode:             mode,
		gamma:            gamma,
	}
}

// DefaultAdaptiveScheduler cools the target acceptance rate from 0.5 to
// 0.05 on a cosine schedule.
func DefaultAdaptiveScheduler() AdaptiveScheduler {
	return NewAdaptiveScheduler(0.5, 0.05, ScheduleCosine, 0.05)
}

func (s AdaptiveScheduler) targetAcc(currentIter, totalIter int) float64 {
	fraction := float64(currentIter) / float64(totalIter)
	switch s.mode {
	case ScheduleLinear:
		return s.initialTargetAcc + fraction*(s.finalTargetAcc-s.initialTargetAcc)
	case ScheduleExponential:
		return s.initialTargetAcc * math.Pow(s.finalTargetAcc/s.initialTargetAcc, fraction)
	case ScheduleConstant:
		return s.initialTargetAcc
	default:
		return s.finalTargetAcc + 0.5*(s.initialTargetAcc-s.finalTargetAcc)*(1.0+math.Cos(math.Pi*fraction))
	}
}

// updateBeta adjusts beta from the measured acceptance rate of the last
// segment against the scheduled target.
func (s AdaptiveScheduler) updateBeta(beta float64, currentIter, totalIter int, measuredAcc float64) float64 {
	target := s.targetAcc(currentIter, totalIter)
	if target <= 0 {
		return beta
	}
	return beta * math.Exp(s.gamma*(measuredAcc-target)/target)
}

// AdaptiveAnnealing is simulated annealing without an explicit cooling
// schedule: the inverse temperature is continuously adjusted so that the
// measured acceptance rate follows the scheduler's target.
type AdaptiveAnnealing[S, Tr any] struct {
	patience        int
	nTrials         int
	returnIter      int
	updateFrequency int
	scheduler       AdaptiveScheduler
}

// NewAdaptiveAnnealing builds an adaptive-annealing optimizer. The initial
// beta is calibrated from a warm-up phase against the scheduler's initial
// target acceptance rate.
func NewAdaptiveAnnealing[S, Tr any](patience, nTrials, returnIter, updateFrequency int,
	scheduler AdaptiveScheduler) *AdaptiveAnnealing[S, Tr] {

	if updateFrequency < 1 {
		updateFrequency = 1
	}
	return &AdaptiveAnnealing[S, Tr]{
		patience:        patience,
		nTrials:         nTrials,
		returnIter:      returnIter,
		updateFrequency: updateFrequency,
		scheduler:       scheduler,
	}
}

// Optimize implements Optimizer.
func (o *AdaptiveAnnealing[S, Tr]) Optimize(ctx context.Context, model Model[S, Tr], initial S,
	initialScore float64, nIter int, timeLimit time.Duration, rng *rand.Rand,
	callback ProgressFunc[S]) (Result[S], error) {

	if err := ValidateScore(initialScore); err != nil {
		return Result[S]{}, err
	}

	beta, err := TuneBeta(model, &Initial[S]{Solution: initial, Score: initialScore},
		o.updateFrequency, o.scheduler.initialTargetAcc, rng)
	if err != nil {
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

		beta = o.scheduler.updateBeta(beta, iter, nIter, counter.AcceptanceRatio())

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
