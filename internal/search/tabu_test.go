package search

import (
	"context"
	"errors"
	"math/rand"
	"testing"
)

func intMatch(a, b int) bool { return a == b }

func TestRingTabuListEvictsOldestFirst(t *testing.T) {
	l := NewRingTabuList[int, int](2, intMatch)

	l.Append(0, 1)
	l.Append(0, 2)
	if !l.Contains(0, 1) || !l.Contains(0, 2) {
		t.Fatal("Expected both entries to be present")
	}

	l.Append(0, 3)
	if l.Contains(0, 1) {
		t.Error("Oldest entry should have been evicted")
	}
	if !l.Contains(0, 2) || !l.Contains(0, 3) {
		t.Error("Newer entries should still be present")
	}
}

func TestRingTabuListZeroCapacity(t *testing.T) {
	l := NewRingTabuList[int, int](0, intMatch)
	l.Append(0, 1)
	if l.Contains(0, 1) {
		t.Error("Zero-capacity list must never contain anything")
	}
}

// repeatMoveModel always proposes the same move with a worse score, so
// after the first acceptance the move is tabu and every later iteration is
// a no-op.
type repeatMoveModel struct{}

func (repeatMoveModel) GenerateRandomSolution(*rand.Rand) (int, float64, error) {
	return 0, 0, nil
}

func (repeatMoveModel) GenerateTrialSolution(current int, currentScore float64, _ *rand.Rand) (int, int, float64) {
	return current + 1, 42, currentScore + 1
}

func TestTabuSearchNoOpWhenAllCandidatesTabu(t *testing.T) {
	const patience = 5
	tabu := NewRingTabuList[int, int](10, intMatch)
	opt := NewTabuSearch[int, int](patience, 1, Unlimited, tabu)

	res, err := opt.Optimize(context.Background(), repeatMoveModel{}, 0, 0, 1000, 0,
		rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	// Only the first iteration moves; the stagnation counters advance on
	// every iteration because the best score never improves.
	if res.Iterations != patience {
		t.Errorf("Expected %d iterations at patience, got %d", patience, res.Iterations)
	}
	if res.LastScore != 1 {
		t.Errorf("Expected a single accepted move to score 1, got %f", res.LastScore)
	}
	if res.BestScore != 0 {
		t.Errorf("Best score should remain 0, got %f", res.BestScore)
	}
	want := 1.0 / float64(patience)
	if res.AcceptanceRatio != want {
		t.Errorf("Expected acceptance ratio %f, got %f", want, res.AcceptanceRatio)
	}
}

// improvingMoveModel always proposes the same move with a better score, so
// acceptance must keep happening through the aspiration criterion.
type improvingMoveModel struct{}

func (improvingMoveModel) GenerateRandomSolution(*rand.Rand) (int, float64, error) {
	return 0, 0, nil
}

func (improvingMoveModel) GenerateTrialSolution(current int, currentScore float64, _ *rand.Rand) (int, int, float64) {
	return current + 1, 42, currentScore - 1
}

func TestTabuSearchAspirationOverridesTabuStatus(t *testing.T) {
	tabu := NewRingTabuList[int, int](10, intMatch)
	opt := NewTabuSearch[int, int](Unlimited, 1, Unlimited, tabu)

	res, err := opt.Optimize(context.Background(), improvingMoveModel{}, 0, 0, 10, 0,
		rand.New(rand.NewSource(1)), nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if res.BestScore != -10 {
		t.Errorf("Expected every improving move to be accepted via aspiration, best %f", res.BestScore)
	}
	if res.AcceptanceRatio != 1.0 {
		t.Errorf("Expected acceptance ratio 1.0, got %f", res.AcceptanceRatio)
	}
}

func TestTabuSearchNilListRejected(t *testing.T) {
	opt := NewTabuSearch[int, int](Unlimited, 1, Unlimited, nil)
	_, err := opt.Optimize(context.Background(), repeatMoveModel{}, 0, 0, 10, 0,
		rand.New(rand.NewSource(1)), nil)
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Expected ErrInvalidConfig, got %v", err)
	}
}

func TestTabuSearchPicksBestNonTabuCandidate(t *testing.T) {
	model := newQuadraticModel()
	x0, s0 := model.initial()
	tabu := NewRingTabuList[[]float64, coordMove](50, func(a, b coordMove) bool { return a == b })
	opt := NewTabuSearch[[]float64, coordMove](Unlimited, 4, 200, tabu)

	res, err := opt.Optimize(context.Background(), model, x0, s0, 5000, 0,
		rand.New(rand.NewSource(4)), nil)
	if err != nil {
		t.Fatalf("Optimize failed: %v", err)
	}
	if res.BestScore > 0.2 {
		t.Errorf("Expected convergence, best score %f", res.BestScore)
	}
}
