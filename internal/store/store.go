package store

// Store persists run checkpoints. Implementations must be safe for
// concurrent use and must write atomically, so a crash cannot leave a
// corrupt checkpoint behind.
//
// Load and Delete report a missing checkpoint with an error matching
// ErrNotFound via errors.Is; all other failures are wrapped with context.
type Store interface {
	// SaveCheckpoint stores the checkpoint for the given job, replacing
	// any existing one.
	SaveCheckpoint(jobID string, checkpoint *Checkpoint) error

	// LoadCheckpoint retrieves the checkpoint for the given job.
	LoadCheckpoint(jobID string) (*Checkpoint, error)

	// ListCheckpoints returns metadata for every stored checkpoint. The
	// slice is empty when nothing is stored.
	ListCheckpoints() ([]CheckpointInfo, error)

	// DeleteCheckpoint removes the checkpoint and all associated run
	// artifacts (the progress trace included).
	DeleteCheckpoint(jobID string) error
}

// ErrNotFound matches any missing-checkpoint error under errors.Is.
var ErrNotFound = &NotFoundError{}

// NotFoundError reports a missing checkpoint, optionally naming the job.
type NotFoundError struct {
	JobID string
}

func (e *NotFoundError) Error() string {
	if e.JobID != "" {
		return "checkpoint not found: " + e.JobID
	}
	return "checkpoint not found"
}

func (e *NotFoundError) Is(target error) bool {
	_, ok := target.(*NotFoundError)
	return ok
}
