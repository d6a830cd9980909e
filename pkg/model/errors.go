package model

import (
	"errors"
	"fmt"
)

var (
	// ErrRunNotFound is returned when the API has no run under the
	// requested entity/project/id.
	ErrRunNotFound = errors.New("run not found")

	// ErrNotRunning is returned when an observation is recorded against a
	// run whose carbs state is not "running".
	ErrNotRunning = errors.New("run is not in running state")
)

// StateConflictError reports a run that already carries a carbs state, which
// means another sweeper instance owns (or owned) it.
type StateConflictError struct {
	Run   string
	State string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("run %s already has carbs state %q", e.Run, e.State)
}
