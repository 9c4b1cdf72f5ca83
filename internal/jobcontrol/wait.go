package jobcontrol

import (
	"errors"

	"golang.org/x/sys/unix"
)

// Waiter retrieves child status changes from the kernel. pid follows wait4(2):
// -1 for any child, -pgid for any member of a process group.
type Waiter interface {
	Wait(pid int, options int) (int, unix.WaitStatus, error)
}

// SysWaiter is the Waiter backed by wait4(2).
type SysWaiter struct{}

func (SysWaiter) Wait(pid int, options int) (int, unix.WaitStatus, error) {
	var ws unix.WaitStatus

	for {
		wpid, err := unix.Wait4(pid, &ws, options, nil)
		if errors.Is(err, unix.EINTR) {
			continue
		}

		return wpid, ws, err
	}
}
