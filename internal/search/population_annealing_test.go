package search

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"
)

func TestResampleFollowsBoltzmannWeights(t *testing.T) {
	const rounds = 2000
	beta := 1.0
	scores := []float64{0.0, 1.0, 2.0}

	// Expected replacement probabilities proportional to exp(-beta*score).
	weights := make([]float64, len(scores))
	total := 0.0
	for i, s := range scores {
		weights[i] = math.Exp(-beta * s)
		total += weights[i]
	}

	o := &PopulationAnnealing[int, int]{populationSize: len(scores)}
	rng := rand.New(rand.NewSource(99))
	counts := make([]int, len(scores))
	scratch := make([]float64, len(scores))

	for r := 0; r < rounds; r++ {
		members := make([]member[int], len(scores))
		for i, s := range scores {
			members[i] = member[int]{solution: i, score: s}
		}
		o.resample(members, scratch, beta, rng)
		for _, m := range members {
			counts[m.solution]++
		}
	}

	draws := float64(rounds * len(scores))
	for i := range scores {
		want := weights[i] / total
		got := float64(counts[i]) / draws
		if math.Abs(got-want) > 0.03 {
			t.Errorf("Member %d resampled with frequency %f, expected %f", i, got, want)
		}
	}
}

func TestResampleNeverDropsToZeroProbability(t *testing.T) {
	// A huge score gap pushes the raw weight below the floor; resampling
	// must still be able to pick the bad member occasionally, and must
	// never produce NaN weights.
	members := []member[int]{
		{solution: 0, score: 0},
		{solution: 1, score: 1e12},
	}
	scratch := make([]float64, 2)
	o := &PopulationAnnealing[int, int]{populationSize: 2}
	o.resample(members, scratch, 1.0, rand.New(rand.NewSource(1)))

	for i, w := range scratch {
		if math.IsNaN(w) || w < weightFloor {
			t.Errorf("Weight %d = %v, expected at least the floor %v", i, w, weightFloor)
		}
	}
}

func TestPopulationAnnealingValidatesPopulationSize(t *testing.T) {
	opt := NewPopulationAnnealing[int, int](Unlimited, Unlimited, 0, 1.0, 1.01, 10)
	_, err := opt.Optimize(context.Background(), worseningModel{}, 0, 0, 100, 0,
		rand.New(rand.NewSource(1)), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestPopulationAnnealingTracksGlobalBest(t *testing.T) {
	model := newQuadraticModel()
	x0, s0 := model.initial()

	var reported []float64
	callback := func(p Progress[[]float64]) {
		reported = append(reported, p.BestScore)
	}

	opt := NewPopulationAnnealing[[]float64, coordMove](Unlimited, 2000, 4, 0.1, 1.02, 50)
	res, err := opt.Optimize(context.Background(), model, x0, s0, 10000, 0,
		rand.New(rand.NewSource(8)), callback)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}

	for i := 1; i < len(reported); i++ {
		if reported[i] > reported[i-1] {
			t.Fatalf("Global best regressed from %f to %f", reported[i-1], reported[i])
		}
	}
	if res.BestScore > s0 {
		t.Errorf("Best score %f worse than initial %f", res.BestScore, s0)
	}
	if res.LastScore < res.BestScore {
		t.Errorf("Last score %f below tracked best %f", res.LastScore, res.BestScore)
	}
}
