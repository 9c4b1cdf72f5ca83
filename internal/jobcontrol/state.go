package jobcontrol

import (
	"fmt"
	"strings"

	"golang.org/x/sys/unix"
)

type ProcessState int

const (
	// ProcessStateUnknown is the zero value for functions that return a
	// (possibly absent) ProcessState.
	ProcessStateUnknown ProcessState = iota

	// ProcessStateCreated indicates the process has been described by the
	// parser but not yet forked.
	ProcessStateCreated

	// ProcessStateRunning indicates the process has been forked and has not
	// reported a stop or termination since.
	ProcessStateRunning

	// ProcessStateStopped indicates the process was stopped by a signal, e.g.
	// SIGTSTP from the terminal. It can be continued with SIGCONT.
	ProcessStateStopped

	// ProcessStateExited indicates the process exited with an exit code.
	ProcessStateExited

	// ProcessStateSignaled indicates the process was terminated by a signal.
	ProcessStateSignaled
)

// NOTE: This slice needs to be kept in sync with any changes to the
// ProcessState values.
var processStates = []string{
	"Unknown",
	"Created",
	"Running",
	"Stopped",
	"Exited",
	"Signaled",
}

// String implements the Stringer interface for ProcessState.
func (s ProcessState) String() string {
	if int(s) < 0 || int(s) >= len(processStates) {
		return processStates[0]
	}

	return processStates[s]
}

// Status is the last known run state of a Process. Code is meaningful for
// ProcessStateExited, Signal for ProcessStateStopped and ProcessStateSignaled.
type Status struct {
	State  ProcessState
	Code   int
	Signal unix.Signal
}

func (s Status) String() string {
	switch s.State {
	case ProcessStateExited:
		return fmt.Sprintf("Exited(%d)", s.Code)
	case ProcessStateSignaled:
		return fmt.Sprintf("Signaled(%s)", unix.SignalName(s.Signal))
	case ProcessStateStopped:
		return fmt.Sprintf("Stopped(%s)", unix.SignalName(s.Signal))
	default:
		return s.State.String()
	}
}

// statusFromWait translates a wait status reported by the kernel. The second
// return value is false when ws carries no state change we track.
func statusFromWait(ws unix.WaitStatus) (Status, bool) {
	switch {
	case ws.Exited():
		return Status{State: ProcessStateExited, Code: ws.ExitStatus()}, true
	case ws.Signaled():
		return Status{State: ProcessStateSignaled, Signal: ws.Signal()}, true
	case ws.Stopped():
		return Status{State: ProcessStateStopped, Signal: ws.StopSignal()}, true
	case ws.Continued():
		return Status{State: ProcessStateRunning}, true
	default:
		return Status{}, false
	}
}

// describeSignal returns the strsignal(3)-style description of sig with the
// first letter capitalised, e.g. "Terminated".
func describeSignal(sig unix.Signal) string {
	desc := sig.String()
	if desc == "" {
		return unix.SignalName(sig)
	}

	return strings.ToUpper(desc[:1]) + desc[1:]
}
