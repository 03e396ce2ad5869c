package jobqueue

import (
	"errors"
	"fmt"
	"time"
)

type Action string

const (
	ActionUpdate  Action = "update"
	ActionDestroy Action = "destroy"
)

// Job records that a record changed and its index document must be regenerated or removed.
type Job struct {
	ID         uint64    `json:"id"`
	EntityType string    `json:"entity_type"`
	EntityID   uint64    `json:"entity_id"`
	Action     Action    `json:"action"`
	CreatedAt  time.Time `json:"created_at"`
}

var (
	ErrNotFound      = errors.New("job not found")
	ErrUnknownAction = errors.New("unknown job action")
)

type NotFoundError struct {
	ID uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("job not found: %d", e.ID)
}

func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

type UnknownActionError struct {
	JobID  uint64
	Action Action
}

func (e *UnknownActionError) Error() string {
	return fmt.Sprintf("unknown index job action '%s' for job %d", e.Action, e.JobID)
}

func (e *UnknownActionError) Is(target error) bool {
	return target == ErrUnknownAction
}
