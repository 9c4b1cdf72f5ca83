package jobcontrol

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

const (
	// ExitNotFound is recorded for a stage whose program does not exist.
	ExitNotFound = 127

	// ExitNotExecutable is recorded for a stage whose program exists but
	// cannot be executed.
	ExitNotExecutable = 126
)

// Stdio holds the shell's standard streams. The first stage of a pipeline
// reads Stdin, the last writes Stdout, and every stage writes Stderr.
// Shell messages are written to Stdout and Stderr too.
type Stdio struct {
	Stdin  *os.File
	Stdout *os.File
	Stderr *os.File
}

// Spawner starts Jobs as process groups and waits for foreground Jobs.
type Spawner struct {
	table    *Table
	terminal Terminal
	reaper   *Reaper
	stdio    Stdio
	logger   *slog.Logger
}

// NewSpawner creates a Spawner that adds the Jobs it starts to table.
func NewSpawner(
	table *Table,
	terminal Terminal,
	reaper *Reaper,
	stdio Stdio,
	logger *slog.Logger,
) *Spawner {
	return &Spawner{
		table:    table,
		terminal: terminal,
		reaper:   reaper,
		stdio:    stdio,
		logger:   logger,
	}
}

// Spawn starts one process per stage of j, all in one process group, and
// adds j to the Table.
//
// A background Job is left running and Spawn returns immediately. For a
// foreground Job, Spawn blocks until the Job completes or stops and returns
// its exit status; the terminal is back with the shell when it returns.
//
// Errors are reported to Stderr as they happen and returned joined. A stage
// that cannot be executed fails alone with an *ExecError. A *SpawnError means
// the remaining stages were abandoned; the stages already started stay in
// the Table and are reaped as usual.
func (s *Spawner) Spawn(j *Job) (int, error) {
	s.table.Add(j)

	s.logger.Debug(
		"spawn job",
		"id", j.id,
		"command", j.command,
		"background", j.background,
	)

	err := s.start(j)

	if len(j.procs) == 0 {
		s.table.Remove(j)
		return 1, err
	}

	if j.background {
		if j.pgid != NoGroup {
			fmt.Fprintf(s.stdio.Stdout, "[%d] %d\n", j.number, j.pgid)
		}

		// No stage could be executed, so there is no child left to reap.
		if j.Completed() {
			s.reaper.queue(j)
		}

		return 0, err
	}

	return s.Foreground(j, false), err
}

// Foreground gives j the terminal and blocks until it completes or stops.
// If cont is set the Job is sent SIGCONT first, as the fg built-in does.
// It returns the exit status of the Job.
func (s *Spawner) Foreground(j *Job, cont bool) int {
	j.background = false

	if j.pgid != NoGroup {
		if err := s.terminal.Seize(j.pgid); err != nil {
			s.report(err)
		}

		if cont {
			if err := Continue(j); err != nil {
				s.report(err)
			}
		}
	}

	s.reaper.WaitFor(j)

	if err := s.terminal.Reclaim(); err != nil {
		s.report(err)
	}

	s.finish(j)

	return j.ExitStatus()
}

// finish reports a foreground Job that stopped or was killed by a signal and
// removes it from the Table if it completed.
func (s *Spawner) finish(j *Job) {
	switch {
	case j.Stopped():
		fmt.Fprintf(s.stdio.Stdout, "\n%s\n", FormatJob(s.table, j))
		j.notified = true
	case j.Completed():
		last := j.procs[len(j.procs)-1].status
		if last.State == ProcessStateSignaled {
			switch last.Signal {
			case unix.SIGINT:
				// Ends the line the terminal echoed ^C on.
				fmt.Fprintln(s.stdio.Stdout)
			case unix.SIGPIPE:
			default:
				fmt.Fprintln(s.stdio.Stdout, describeSignal(last.Signal))
			}
		}

		j.notified = true
		s.table.Remove(j)
	}
}

func (s *Spawner) start(j *Job) error {
	var (
		errs []error
		prev *os.File
	)

	defer func() {
		if prev != nil {
			prev.Close()
		}
	}()

	for i := 0; i < len(j.procs); i++ {
		p := j.procs[i]

		stdin := s.stdio.Stdin
		if prev != nil {
			stdin = prev
		} else if j.background && !s.terminal.Interactive() {
			// Without job control a background job must not compete with the
			// shell for input.
			devNull, err := os.Open(os.DevNull)
			if err != nil {
				errs = append(errs, s.abandon(j, i, err))
				break
			}
			defer devNull.Close()

			stdin = devNull
		}

		stdout := s.stdio.Stdout

		var next, w *os.File
		if i < len(j.procs)-1 {
			var err error

			next, w, err = os.Pipe()
			if err != nil {
				errs = append(errs, s.abandon(j, i, err))
				break
			}

			stdout = w
		}

		err := s.startProcess(j, p, i, stdin, stdout)

		// The children hold their own copies of the pipe ends.
		if w != nil {
			w.Close()
		}

		if prev != nil {
			prev.Close()
		}

		prev = next

		if err != nil {
			var execErr *ExecError
			if errors.As(err, &execErr) {
				p.status = Status{State: ProcessStateExited, Code: execErr.Code}
				s.report(execErr)
				errs = append(errs, execErr)

				continue
			}

			errs = append(errs, s.abandon(j, i, err))

			break
		}
	}

	return errors.Join(errs...)
}

func (s *Spawner) startProcess(
	j *Job,
	p *Process,
	stage int,
	stdin *os.File,
	stdout *os.File,
) error {
	// Only the first stage reads the terminal, so only it can name it as its
	// controlling terminal (descriptor 0 in the child).
	foreground := !j.background && stage == 0 && s.terminal.Interactive()

	cmd := exec.Command(p.argv[0], p.argv[1:]...)
	cmd.Stdin = stdin
	cmd.Stdout = stdout
	cmd.Stderr = s.stdio.Stderr
	cmd.SysProcAttr = groupAttr(j, foreground, 0)

	if err := cmd.Start(); err != nil {
		return classifyStartError(p.argv[0], err)
	}

	p.pid = cmd.Process.Pid
	p.status = Status{State: ProcessStateRunning}

	// The Reaper collects the child with wait4, so the handle is not needed.
	if err := cmd.Process.Release(); err != nil {
		s.logger.Debug("release process", "pid", p.pid, "err", err)
	}

	if err := AssignGroup(j, p); err != nil {
		s.report(err)
	}

	s.logger.Debug(
		"started process",
		"id", j.id,
		"pid", p.pid,
		"pgid", j.pgid,
		"argv", p.argv,
	)

	return nil
}

// abandon drops the stages of j from i onwards after the child for stage i
// could not be created.
func (s *Spawner) abandon(j *Job, i int, err error) error {
	spawnErr := &SpawnError{Stage: i, Err: err}

	j.abandon(i)
	s.report(spawnErr)

	return spawnErr
}

func (s *Spawner) report(err error) {
	fmt.Fprintf(s.stdio.Stderr, "dsh: %v\n", err)
	s.logger.Warn("job control", "err", err)
}

func classifyStartError(program string, err error) error {
	switch {
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return &ExecError{Program: program, Code: ExitNotFound, Err: err}
	case errors.Is(err, exec.ErrDot),
		errors.Is(err, fs.ErrPermission),
		errors.Is(err, unix.ENOEXEC):
		return &ExecError{Program: program, Code: ExitNotExecutable, Err: err}
	default:
		return err
	}
}
