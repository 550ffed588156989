package bench

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/cwbudde/localsearch/internal/search"
)

func TestCompareOnQuadratic(t *testing.T) {
	model := DefaultQuadratic()
	candidates := []Candidate[[]float64, CoordMove]{
		{
			Name: "hill-climbing",
			Build: func() (search.Optimizer[[]float64, CoordMove], error) {
				return search.NewHillClimbing[[]float64, CoordMove](1000, 4), nil
			},
		},
		{
			Name: "epsilon-greedy",
			Build: func() (search.Optimizer[[]float64, CoordMove], error) {
				return search.NewEpsilonGreedy[[]float64, CoordMove](1000, 4, 100, 0.05), nil
			},
		},
	}

	summaries, err := Compare(context.Background(), model, candidates, 3000, 0, Seeds(42, 3))
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("Expected 2 summaries, got %d", len(summaries))
	}
	for _, s := range summaries {
		if s.Runs != 3 {
			t.Errorf("%s: expected 3 runs, got %d", s.Name, s.Runs)
		}
		if s.MinScore > s.MeanScore || s.MeanScore > s.MaxScore {
			t.Errorf("%s: inconsistent aggregate scores %+v", s.Name, s)
		}
		if s.MeanScore > 1.0 {
			t.Errorf("%s: expected rough convergence, mean score %f", s.Name, s.MeanScore)
		}
	}
}

func TestCompareIsReproducible(t *testing.T) {
	model := DefaultQuadratic()
	candidates := []Candidate[[]float64, CoordMove]{{
		Name: "metropolis",
		Build: func() (search.Optimizer[[]float64, CoordMove], error) {
			return search.NewMetropolis[[]float64, CoordMove](search.Unlimited, 2, 100, 2.0), nil
		},
	}}

	a, err := Compare(context.Background(), model, candidates, 1000, 0, Seeds(7, 2))
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	b, err := Compare(context.Background(), model, candidates, 1000, 0, Seeds(7, 2))
	if err != nil {
		t.Fatalf("Compare failed: %v", err)
	}
	if a[0].MeanScore != b[0].MeanScore || a[0].MinScore != b[0].MinScore {
		t.Errorf("Same seeds produced different aggregates: %+v vs %+v", a[0], b[0])
	}
}

func TestSeedsDeterministic(t *testing.T) {
	a := Seeds(123, 5)
	b := Seeds(123, 5)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("Seed %d differs: %d vs %d", i, a[i], b[i])
		}
	}
	if a[0] == Seeds(124, 1)[0] {
		t.Error("Different base seeds should give different run seeds")
	}
}

func TestRenderTable(t *testing.T) {
	var buf bytes.Buffer
	RenderTable(&buf, []Summary{{Name: "hill-climbing", Runs: 3, MeanScore: 0.01}})
	out := buf.String()
	if !strings.Contains(out, "hill-climbing") {
		t.Errorf("Table output missing algorithm name:\n%s", out)
	}
	if !strings.Contains(out, "ALGORITHM") && !strings.Contains(out, "Algorithm") {
		t.Errorf("Table output missing header:\n%s", out)
	}
}
