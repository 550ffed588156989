package bench

import (
	"math"

	"golang.org/x/exp/constraints"
)

// Mean returns the arithmetic mean, or 0 for an empty slice.
func Mean[T constraints.Float](xs []T) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += float64(x)
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation, or 0 for fewer than two
// samples.
func StdDev[T constraints.Float](xs []T) float64 {
	if len(xs) < 2 {
		return 0
	}
	mean := Mean(xs)
	var sum float64
	for _, x := range xs {
		d := float64(x) - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(xs)))
}

// Min returns the smallest value, or 0 for an empty slice.
func Min[T constraints.Float | constraints.Integer](xs []T) T {
	var min T
	if len(xs) == 0 {
		return min
	}
	min = xs[0]
	for _, x := range xs[1:] {
		if x < min {
			min = x
		}
	}
	return min
}

// Max returns the largest value, or 0 for an empty slice.
func Max[T constraints.Float | constraints.Integer](xs []T) T {
	var max T
	if len(xs) == 0 {
		return max
	}
	max = xs[0]
	for _, x := range xs[1:] {
		if x > max {
			max = x
		}
	}
	return max
}
