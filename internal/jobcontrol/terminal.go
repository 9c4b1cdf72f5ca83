package jobcontrol

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"unsafe"

	"golang.org/x/sys/unix"
	"golang.org/x/term"
)

// Terminal arbitrates ownership of the controlling terminal between the shell
// and its jobs.
type Terminal interface {
	// Interactive reports whether job control over a terminal is enabled.
	Interactive() bool

	// Seize makes pgid the foreground process group of the terminal.
	Seize(pgid int) error

	// Reclaim gives the terminal back to the shell.
	Reclaim() error
}

// Controller is the Terminal implementation for the terminal open on the
// shell's standard input.
type Controller struct {
	fd          int
	interactive bool
	shellPgid   int
	sigs        chan os.Signal
	logger      *slog.Logger
}

// NewController creates a Controller for tty. Job control is only enabled if
// tty is a terminal; otherwise Init, Seize and Reclaim do nothing.
func NewController(tty *os.File, logger *slog.Logger) *Controller {
	fd := int(tty.Fd())

	return &Controller{
		fd:          fd,
		interactive: term.IsTerminal(fd),
		shellPgid:   unix.Getpgrp(),
		sigs:        make(chan os.Signal, 1),
		logger:      logger,
	}
}

// Init prepares the shell for job control: it waits until the shell is in
// the foreground, moves it into its own process group, takes the terminal
// and catches the job control signals.
//
// The signals are caught rather than ignored so that children start with the
// default disposition: the runtime resets caught signals to SIG_DFL in the
// child after fork, but ignored signals stay ignored across exec.
func (c *Controller) Init() error {
	if !c.interactive {
		return nil
	}

	for {
		fg, err := c.Foreground()
		if err != nil {
			return fmt.Errorf("get terminal foreground group: %w", err)
		}

		pgrp := unix.Getpgrp()
		if fg == pgrp {
			break
		}

		// Stops until whoever owns the terminal puts us in the foreground.
		if err := unix.Kill(-pgrp, unix.SIGTTIN); err != nil {
			return fmt.Errorf("kill(SIGTTIN): %w", err)
		}
	}

	signal.Notify(
		c.sigs,
		unix.SIGQUIT,
		unix.SIGTSTP,
		unix.SIGTTIN,
		unix.SIGTTOU,
	)

	go func() {
		for sig := range c.sigs {
			c.logger.Debug("caught job control signal", "signal", sig)
		}
	}()

	pid := unix.Getpid()

	// EPERM means the shell is a session leader, which already leads its own
	// process group.
	if err := unix.Setpgid(pid, pid); err != nil && !errors.Is(err, unix.EPERM) {
		return fmt.Errorf("put shell in its own process group: %w", err)
	}

	c.shellPgid = unix.Getpgrp()

	return c.Seize(c.shellPgid)
}

// Close stops catching job control signals.
func (c *Controller) Close() {
	signal.Stop(c.sigs)
}

func (c *Controller) Interactive() bool {
	return c.interactive
}

// ShellPgid returns the process group of the shell.
func (c *Controller) ShellPgid() int {
	return c.shellPgid
}

// Foreground returns the current foreground process group of the terminal.
func (c *Controller) Foreground() (int, error) {
	return unix.IoctlGetInt(c.fd, unix.TIOCGPGRP)
}

// Seize makes pgid the foreground process group of the terminal.
//
// The shell calls this from the background when it reclaims the terminal, so
// SIGTTOU is blocked on the calling thread for the duration of the ioctl.
// Otherwise the kernel would signal the shell's group and restart the call.
func (c *Controller) Seize(pgid int) error {
	if !c.interactive {
		return nil
	}

	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	var block, old unix.Sigset_t
	sigaddset(&block, unix.SIGTTOU)

	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &block, &old); err != nil {
		return fmt.Errorf("block SIGTTOU: %w", err)
	}

	err := unix.IoctlSetPointerInt(c.fd, unix.TIOCSPGRP, pgid)

	if merr := unix.PthreadSigmask(unix.SIG_SETMASK, &old, nil); merr != nil {
		c.logger.Warn("restore signal mask", "err", merr)
	}

	if err != nil {
		// Losing a race with the child seizing the terminal for its own group
		// is not a failure.
		if fg, ferr := c.Foreground(); ferr == nil && fg == pgid {
			return nil
		}

		return fmt.Errorf("tcsetpgrp %d: %w", pgid, err)
	}

	c.logger.Debug("seized terminal", "pgid", pgid)

	return nil
}

// Reclaim gives the terminal back to the shell's process group. The shell's
// group outlives every job, so the terminal cannot be left with a dead group.
func (c *Controller) Reclaim() error {
	return c.Seize(c.shellPgid)
}

func sigaddset(set *unix.Sigset_t, sig unix.Signal) {
	bits := uint(unsafe.Sizeof(set.Val[0]) * 8)
	n := uint(sig) - 1
	set.Val[n/bits] |= 1 << (n % bits)
}
