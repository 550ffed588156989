package bench

import (
	"math/rand"
	"time"

	"github.com/cwbudde/mayfly"
)

// MayflyBaseline runs the external mayfly swarm optimizer on the quadratic
// benchmark so the acceptance-driven algorithms can be compared against a
// population method that is not part of this module.
type MayflyBaseline struct {
	MaxIters int
	PopSize  int
}

// NewMayflyBaseline builds a baseline with the library's minimum viable
// population size when popSize is too small.
func NewMayflyBaseline(maxIters, popSize int) *MayflyBaseline {
	if popSize < 20 {
		popSize = 20
	}
	return &MayflyBaseline{MaxIters: maxIters, PopSize: popSize}
}

// Minimize runs one optimization of the objective over the box
// [low, high]^dim with the given seed and returns the best position and
// cost. Zero-value population and iteration settings are clamped to the
// library's minimums so a struct literal behaves like NewMayflyBaseline.
// A library failure falls back to the box center.
func (b *MayflyBaseline) Minimize(objective func([]float64) float64, dim int,
	low, high float64, seed int64) ([]float64, float64) {

	popSize := b.PopSize
	if popSize < 20 {
		popSize = 20
	}
	maxIters := b.MaxIters
	if maxIters < 1 {
		maxIters = 1
	}

	config := mayfly.NewDefaultConfig()
	config.ObjectiveFunc = objective
	config.ProblemSize = dim
	config.MaxIterations = maxIters
	config.NPop = popSize
	config.LowerBound = low
	config.UpperBound = high
	config.Rand = rand.New(rand.NewSource(seed))

	result, err := mayfly.Optimize(config)
	if err != nil {
		center := make([]float64, dim)
		for i := range center {
			center[i] = (low + high) / 2
		}
		return center, objective(center)
	}
	return result.GlobalBest.Position, result.GlobalBest.Cost
}

// Summarize runs the baseline once per seed on the quadratic benchmark and
// aggregates the results like Compare does for in-module candidates.
func (b *MayflyBaseline) Summarize(q *Quadratic, seeds []int64) Summary {
	scores := make([]float64, 0, len(seeds))
	begin := time.Now()
	for _, seed := range seeds {
		_, cost := b.Minimize(q.Score, len(q.Centers), q.Low, q.High, seed)
		scores = append(scores, cost)
	}
	return Summary{
		Name:      "Mayfly (baseline)",
		Runs:      len(seeds),
		MeanScore: Mean(scores),
		StdScore:  StdDev(scores),
		MinScore:  Min(scores),
		MaxScore:  Max(scores),
		MeanIters: float64(b.MaxIters),
		Elapsed:   time.Since(begin),
	}
}
