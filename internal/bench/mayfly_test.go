package bench

import (
	"testing"
)

func TestMayflyBaselineOnQuadratic(t *testing.T) {
	q := DefaultQuadratic()
	baseline := NewMayflyBaseline(100, 20)

	best, cost := baseline.Minimize(q.Score, len(q.Centers), q.Low, q.High, 42)
	if len(best) != len(q.Centers) {
		t.Fatalf("Expected %d parameters, got %d", len(q.Centers), len(best))
	}
	if cost > 0.5 {
		t.Errorf("Expected cost near 0, got %f", cost)
	}
}

func TestMayflyBaselineDeterministic(t *testing.T) {
	q := DefaultQuadratic()
	baseline := NewMayflyBaseline(50, 20)

	_, cost1 := baseline.Minimize(q.Score, len(q.Centers), q.Low, q.High, 123)
	_, cost2 := baseline.Minimize(q.Score, len(q.Centers), q.Low, q.High, 123)
	if cost1 != cost2 {
		t.Errorf("Non-deterministic: %f vs %f", cost1, cost2)
	}
}

func TestMayflyBaselineSummarize(t *testing.T) {
	q := DefaultQuadratic()
	baseline := NewMayflyBaseline(50, 20)

	s := baseline.Summarize(q, Seeds(1, 3))
	if s.Runs != 3 {
		t.Errorf("Expected 3 runs, got %d", s.Runs)
	}
	if s.MinScore > s.MeanScore || s.MeanScore > s.MaxScore {
		t.Errorf("Inconsistent aggregates: %+v", s)
	}
}

func TestMayflyBaselineEnforcesMinimumPopulation(t *testing.T) {
	baseline := NewMayflyBaseline(10, 5)
	if baseline.PopSize != 20 {
		t.Errorf("Expected population raised to 20, got %d", baseline.PopSize)
	}
}

func TestMayflyBaselineZeroPopulationStillOptimizes(t *testing.T) {
	q := DefaultQuadratic()

	// A struct literal leaves PopSize at 0; Minimize must clamp it instead
	// of tripping the library error and returning the box-center fallback
	// (cost 16.25 on the default quadratic).
	baseline := &MayflyBaseline{MaxIters: 200}

	best, cost := baseline.Minimize(q.Score, len(q.Centers), q.Low, q.High, 1)
	if len(best) != len(q.Centers) {
		t.Fatalf("Expected %d parameters, got %d", len(q.Centers), len(best))
	}
	if cost > 0.5 {
		t.Errorf("Expected a real swarm result near 0, got %f", cost)
	}
	center := make([]float64, len(q.Centers))
	if cost == q.Score(center) {
		t.Errorf("Got the box-center fallback cost %f instead of an optimized result", cost)
	}
}
