package jobcontrol

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound  = errors.New("no such job")
	ErrNoCurrentJob = errors.New("no current job")
	ErrEmptyJob     = errors.New("job has no processes")
)

// InvalidStateError is returned when a job control operation does not apply
// to the Job's current state, e.g. bg on a job already running in the
// background.
type InvalidStateError struct {
	number int
	reason string
}

func (e InvalidStateError) Error() string {
	return fmt.Sprintf("job %d %s", e.number, e.reason)
}

func NewInvalidStateError(number int, reason string) InvalidStateError {
	return InvalidStateError{number, reason}
}

// ExecError is returned for a pipeline stage whose program could not be
// executed. Only that stage fails; the rest of the pipeline still runs.
type ExecError struct {
	Program string
	Code    int
	Err     error
}

func (e *ExecError) Error() string {
	if e.Code == ExitNotFound {
		return fmt.Sprintf("%s: command not found", e.Program)
	}

	return fmt.Sprintf("%s: %v", e.Program, e.Err)
}

func (e *ExecError) Unwrap() error {
	return e.Err
}

// SpawnError is returned when a child could not be created at all. Stages
// after Stage were not started.
type SpawnError struct {
	Stage int
	Err   error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("spawn stage %d: %v", e.Stage, e.Err)
}

func (e *SpawnError) Unwrap() error {
	return e.Err
}
