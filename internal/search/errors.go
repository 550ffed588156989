package search

import "errors"

// Setup failures surfaced before any iteration runs. All of them abort the
// run; none are retried silently.
var (
	// ErrRandomGeneration indicates that no valid random solution could be
	// generated by the model.
	ErrRandomGeneration = errors.New("failed to generate random solution")

	// ErrPreprocess indicates that the model's preprocessing hook failed.
	ErrPreprocess = errors.New("preprocessing failed")

	// ErrInvalidScore indicates that the model produced an unordered (NaN)
	// score.
	ErrInvalidScore = errors.New("invalid score")

	// ErrInvalidConfig indicates an invalid optimizer parameter, e.g. a
	// trial count of zero.
	ErrInvalidConfig = errors.New("invalid optimizer configuration")
)
