package jobcontrol

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// NoGroup is the pgid of a Job that has not forked any process yet.
const NoGroup = -1

// Process is one OS process within a pipeline.
type Process struct {
	pid    int
	argv   []string
	status Status
}

// NewProcess creates a Process for the given argument vector. The argv is
// copied and never modified afterwards.
func NewProcess(argv []string) *Process {
	return &Process{
		argv:   append([]string(nil), argv...),
		status: Status{State: ProcessStateCreated},
	}
}

// Pid returns the process id, or 0 if the process was never forked.
func (p *Process) Pid() int {
	return p.pid
}

// Argv returns the argument vector of the process.
func (p *Process) Argv() []string {
	return p.argv
}

// Status returns the last known status of the process.
func (p *Process) Status() Status {
	return p.status
}

// Completed reports whether the process exited or was killed by a signal.
func (p *Process) Completed() bool {
	return p.status.State == ProcessStateExited ||
		p.status.State == ProcessStateSignaled
}

// Stopped reports whether the process is stopped.
func (p *Process) Stopped() bool {
	return p.status.State == ProcessStateStopped
}

func (p *Process) running() bool {
	return p.status.State == ProcessStateRunning
}

// Job is one pipeline, the unit tracked by a Table.
type Job struct {
	id      string
	number  int
	pgid    int
	procs   []*Process
	command string

	background bool
	notified   bool
}

// NewJob creates a Job with one Process per argument vector in pipeline
// order. command is the original text of the pipeline, used in reports.
func NewJob(command string, background bool, stages ...[]string) (*Job, error) {
	if len(stages) == 0 {
		return nil, ErrEmptyJob
	}

	j := &Job{
		id:         uuid.NewString(),
		pgid:       NoGroup,
		command:    strings.TrimSpace(command),
		background: background,
	}

	for i, argv := range stages {
		if len(argv) == 0 {
			return nil, fmt.Errorf("stage %d: %w", i, ErrEmptyJob)
		}

		j.procs = append(j.procs, NewProcess(argv))
	}

	return j, nil
}

// ID returns the unique ID of the Job.
func (j *Job) ID() string {
	return j.id
}

// Number returns the job number assigned by the Table, or 0 if the Job has
// never been added to one.
func (j *Job) Number() int {
	return j.number
}

// Pgid returns the process group of the Job, or NoGroup.
func (j *Job) Pgid() int {
	return j.pgid
}

// Processes returns the processes of the Job in pipeline order.
func (j *Job) Processes() []*Process {
	return j.procs
}

// Command returns the original text of the Job.
func (j *Job) Command() string {
	return j.command
}

// Background reports whether the Job runs detached from the terminal.
func (j *Job) Background() bool {
	return j.background
}

// Notified reports whether the current stop or completion of the Job has
// already been reported.
func (j *Job) Notified() bool {
	return j.notified
}

// Completed reports whether every process of the Job exited or was killed.
func (j *Job) Completed() bool {
	for _, p := range j.procs {
		if !p.Completed() {
			return false
		}
	}

	return true
}

// Stopped reports whether no process of the Job is running and at least one
// is stopped.
func (j *Job) Stopped() bool {
	stopped := false

	for _, p := range j.procs {
		if p.running() || p.status.State == ProcessStateCreated {
			return false
		}

		if p.Stopped() {
			stopped = true
		}
	}

	return stopped
}

// ExitStatus returns the shell-style status of the last stage of the
// pipeline: the exit code, or 128 plus the signal number if it was killed or
// stopped. It returns -1 if the last stage is still running.
func (j *Job) ExitStatus() int {
	if len(j.procs) == 0 {
		return -1
	}

	s := j.procs[len(j.procs)-1].status

	switch s.State {
	case ProcessStateExited:
		return s.Code
	case ProcessStateSignaled, ProcessStateStopped:
		return 128 + int(s.Signal)
	default:
		return -1
	}
}

// StatusText describes the Job the way it is shown by the jobs built-in.
func (j *Job) StatusText() string {
	switch {
	case j.Completed():
		s := j.procs[len(j.procs)-1].status
		if s.State == ProcessStateSignaled {
			return describeSignal(s.Signal)
		}

		if s.Code == 0 {
			return "Done"
		}

		return fmt.Sprintf("Exit %d", s.Code)
	case j.Stopped():
		return "Stopped"
	default:
		return "Running"
	}
}

// String formats the Job for diagnostics, one line per process.
func (j *Job) String() string {
	var b strings.Builder

	fmt.Fprintf(
		&b,
		"job %d (%s) pgid=%d background=%t: %s\n",
		j.number,
		j.id,
		j.pgid,
		j.background,
		j.command,
	)

	for _, p := range j.procs {
		fmt.Fprintf(
			&b,
			"  pid=%d %s %s\n",
			p.pid,
			p.status,
			strings.Join(p.argv, " "),
		)
	}

	return b.String()
}

// markRunning marks every stopped process as running again and clears the
// notification flag, used when the Job is continued.
func (j *Job) markRunning() {
	for _, p := range j.procs {
		if p.Stopped() {
			p.status = Status{State: ProcessStateRunning}
		}
	}

	j.notified = false
}

// lose marks every process that has not completed as exited with code -1.
// Used when the kernel has no more status to report for the Job.
func (j *Job) lose() {
	for _, p := range j.procs {
		if !p.Completed() {
			p.status = Status{State: ProcessStateExited, Code: -1}
		}
	}
}

// abandon drops the processes from index i onwards. They were never forked.
func (j *Job) abandon(i int) {
	j.procs = j.procs[:i]
}

// SetBackground marks the Job as running in the background or foreground.
func (j *Job) SetBackground(background bool) {
	j.background = background
}

// SetNotified records whether the current state of the Job has been
// reported.
func (j *Job) SetNotified(notified bool) {
	j.notified = notified
}
