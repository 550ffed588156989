package search

import (
	"math"
	"math/rand"
)

// gatherEnergyDiffs runs nWarmup trial generations from the initial
// solution and collects the uphill score differences, walking along the
// sampled trajectory like a random search would.
func gatherEnergyDiffs[S, Tr any](model Model[S, Tr], initial *Initial[S], nWarmup int, rng *rand.Rand) ([]float64, error) {
	var solution S
	var score float64
	if initial != nil {
		solution = initial.Solution
		score = initial.Score
	} else {
		var err error
		solution, score, err = model.GenerateRandomSolution(rng)
		if err != nil {
			return nil, err
		}
	}

	diffs := make([]float64, 0, nWarmup)
	for i := 0; i < nWarmup; i++ {
		trial, _, trialScore := model.GenerateTrialSolution(solution, score, rng)
		delta := trialScore - score
		if delta <= 0 {
			continue
		}
		diffs = append(diffs, delta)
		solution = trial
		score = trialScore
	}
	return diffs, nil
}

// betaFromAcceptanceProb solves exp(-beta * mean(diffs)) = targetProb for
// beta. The log is clamped so degenerate target probabilities cannot yield
// a zero or runaway beta.
func betaFromAcceptanceProb(diffs []float64, targetProb float64) float64 {
	sum := 0.0
	for _, d := range diffs {
		sum += d
	}
	mean := sum / float64(len(diffs))
	lnProb := math.Log(targetProb)
	if lnProb < -100.0 {
		lnProb = -100.0
	}
	if lnProb > -0.01 {
		lnProb = -0.01
	}
	return -lnProb / mean
}

// TuneBeta estimates an initial inverse temperature so that uphill moves
// sampled during a warm-up phase are accepted with probability targetProb.
// If the warm-up finds no uphill samples the neutral default 1.0 is
// returned rather than failing the run.
func TuneBeta[S, Tr any](model Model[S, Tr], initial *Initial[S], nWarmup int, targetProb float64, rng *rand.Rand) (float64, error) {
	diffs, err := gatherEnergyDiffs(model, initial, nWarmup, rng)
	if err != nil {
		return 0, err
	}
	if len(diffs) == 0 {
		return 1.0, nil
	}
	return betaFromAcceptanceProb(diffs, targetProb), nil
}

// TuneCoolingRate derives the constant multiplicative factor that moves a
// temperature (or beta) from start to end over n update steps.
func TuneCoolingRate(start, end float64, n int) float64 {
	if n < 1 {
		n = 1
	}
	return math.Pow(end/start, 1.0/float64(n))
}
