package index

import (
	"errors"
	"fmt"

	"github.com/meghashyamc/searchsync/db/jobqueue"
)

var ErrJobFailed = errors.New("index job failed")

// JobError is a failure of a single job. It does not stop the rest of the run, and the job stays queued.
type JobError struct {
	JobID      uint64
	EntityType string
	EntityID   uint64
	Action     jobqueue.Action
	Err        error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("index job %d (%s %s-%d) failed: %v", e.JobID, e.Action, e.EntityType, e.EntityID, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

func (e *JobError) Is(target error) bool {
	return target == ErrJobFailed
}
