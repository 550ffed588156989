package bench

import (
	"math/rand"
)

// CoordMove describes a single-coordinate replacement in a continuous
// solution vector.
type CoordMove struct {
	Index    int
	From, To float64
}

// Quadratic is a shifted sphere benchmark: f(x) = sum((x_i - c_i)^2) with
// its minimum of 0 at the centers. Solutions live in the box [Low, High]^k.
type Quadratic struct {
	Centers []float64
	Low     float64
	High    float64
}

// NewQuadratic builds the benchmark around the given centers and box.
func NewQuadratic(centers []float64, low, high float64) *Quadratic {
	return &Quadratic{Centers: centers, Low: low, High: high}
}

// DefaultQuadratic is the canonical 3-dimensional instance used by the CLI.
func DefaultQuadratic() *Quadratic {
	return NewQuadratic([]float64{2.0, 0.0, -3.5}, -10.0, 10.0)
}

// Score evaluates a solution vector.
func (q *Quadratic) Score(x []float64) float64 {
	var sum float64
	for i, v := range x {
		d := v - q.Centers[i]
		sum += d * d
	}
	return sum
}

func (q *Quadratic) sample(rng *rand.Rand) float64 {
	return q.Low + (q.High-q.Low)*rng.Float64()
}

// GenerateRandomSolution draws a uniform point in the box.
func (q *Quadratic) GenerateRandomSolution(rng *rand.Rand) ([]float64, float64, error) {
	x := make([]float64, len(q.Centers))
	for i := range x {
		x[i] = q.sample(rng)
	}
	return x, q.Score(x), nil
}

// GenerateTrialSolution resamples one coordinate uniformly within the box.
func (q *Quadratic) GenerateTrialSolution(current []float64, _ float64, rng *rand.Rand) ([]float64, CoordMove, float64) {
	next := make([]float64, len(current))
	copy(next, current)
	i := rng.Intn(len(next))
	from := next[i]
	next[i] = q.sample(rng)
	return next, CoordMove{Index: i, From: from, To: next[i]}, q.Score(next)
}
