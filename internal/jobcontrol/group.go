package jobcontrol

import (
	"errors"
	"fmt"

	"golang.org/x/sys/unix"
)

// AssignGroup puts p into the process group of j. The first process to be
// assigned becomes the group leader and its pid becomes the pgid of j.
//
// The child establishes the same group itself between fork and exec (see
// groupAttr), so which side runs first is a race. AssignGroup treats the
// outcomes of losing that race as success: EACCES when the child has already
// exec'd into the right group, and ESRCH when it has already been reaped.
func AssignGroup(j *Job, p *Process) error {
	if p.pid <= 0 {
		return fmt.Errorf("assign group: process not started")
	}

	if j.pgid == NoGroup {
		j.pgid = p.pid
	}

	err := unix.Setpgid(p.pid, j.pgid)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, unix.ESRCH):
		return nil
	case errors.Is(err, unix.EACCES):
		pgid, gerr := unix.Getpgid(p.pid)
		if gerr == nil && pgid == j.pgid {
			return nil
		}
	}

	return fmt.Errorf("setpgid %d to %d: %w", p.pid, j.pgid, err)
}

// groupAttr returns the attributes the child applies to itself before exec:
// join the group of j, or lead a new one if j has no group yet. When
// foreground is set the child also makes its group the foreground group of
// the terminal open on ctty (a descriptor number in the child).
func groupAttr(j *Job, foreground bool, ctty int) *unix.SysProcAttr {
	attr := &unix.SysProcAttr{Setpgid: true}

	if j.pgid != NoGroup {
		attr.Pgid = j.pgid
	}

	if foreground {
		attr.Foreground = true
		attr.Ctty = ctty
	}

	return attr
}

// Continue sends SIGCONT to the process group of j and marks its stopped
// processes as running.
func Continue(j *Job) error {
	if j.pgid == NoGroup {
		return NewInvalidStateError(j.number, "has no process group")
	}

	if err := unix.Kill(-j.pgid, unix.SIGCONT); err != nil {
		return fmt.Errorf("kill(SIGCONT) %d: %w", j.pgid, err)
	}

	j.markRunning()

	return nil
}
