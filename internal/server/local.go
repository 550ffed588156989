package server

import (
	"context"

	"github.com/cwbudde/localsearch/internal/store"
)

// ExecuteLocal runs a single optimization job synchronously, outside the
// HTTP server. It drives the same worker the server uses, so checkpointing,
// tracing and resume behave identically for CLI runs. Progress events are
// delivered to onProgress when it is non-nil. The finished job record is
// returned even when the run ends with an error.
func ExecuteLocal(ctx context.Context, config RunConfig, checkpointStore store.Store,
	dataDir string, resume *store.Checkpoint, onProgress func(ProgressEvent)) (*Job, error) {

	jm := NewJobManager()
	job := jm.CreateJob(config)
	if resume != nil {
		jm.UpdateJob(job.ID, func(j *Job) {
			j.InitialScore = resume.InitialScore
		})
	}

	forwarded := make(chan struct{})
	var events chan ProgressEvent
	if onProgress != nil {
		events = jm.broadcaster.Subscribe(job.ID)
		go func() {
			defer close(forwarded)
			for event := range events {
				onProgress(event)
			}
		}()
	} else {
		close(forwarded)
	}

	err := runJob(ctx, jm, checkpointStore, dataDir, job.ID, resume)

	if onProgress != nil {
		jm.broadcaster.Unsubscribe(job.ID, events)
	}
	<-forwarded

	finished, _ := jm.GetJob(job.ID)
	return finished, err
}
