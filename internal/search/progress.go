package search

// Progress is delivered to the progress callback once per outer iteration.
// BestSolution is a read-only snapshot owned by the optimizer's control
// goroutine; callbacks must not mutate or retain it past the call.
type Progress[S any] struct {
	// Iter is the zero-based outer iteration index.
	Iter int
	// AcceptanceRatio is the accept fraction over the rolling window.
	AcceptanceRatio float64
	// BestSolution is the best solution found so far.
	BestSolution S
	// BestScore is the score of BestSolution.
	BestScore float64
}

// ProgressFunc is invoked synchronously on the control goroutine at the end
// of each outer iteration. It must not block for long.
type ProgressFunc[S any] func(Progress[S])
