package jobcontrol

import (
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Table is the ordered registry of Jobs that have not yet completed and been
// reported. Insertion order is launch order.
//
// A Table is owned by the prompt loop and is not safe for concurrent use.
type Table struct {
	jobs   []*Job
	logger *slog.Logger
}

// NewTable creates an empty Table.
func NewTable(logger *slog.Logger) *Table {
	return &Table{logger: logger}
}

// Add appends j to the Table and assigns it the next job number: one more
// than the highest number in use.
func (t *Table) Add(j *Job) {
	if slices.Contains(t.jobs, j) {
		return
	}

	next := 1
	for _, existing := range t.jobs {
		next = max(next, existing.number+1)
	}

	j.number = next
	t.jobs = append(t.jobs, j)

	t.logger.Debug(
		"add job",
		"id", j.id,
		"number", j.number,
		"command", j.command,
	)
}

// Remove deletes j from the Table, preserving the order of the remaining
// Jobs. Removing a Job that is not in the Table is a no-op.
func (t *Table) Remove(j *Job) {
	i := slices.Index(t.jobs, j)
	if i < 0 {
		return
	}

	t.jobs = slices.Delete(t.jobs, i, i+1)

	t.logger.Debug("remove job", "id", j.id, "number", j.number)
}

// Jobs returns a snapshot of the Jobs in launch order.
func (t *Table) Jobs() []*Job {
	return slices.Clone(t.jobs)
}

// Len returns the number of Jobs in the Table.
func (t *Table) Len() int {
	return len(t.jobs)
}

// Current returns the most recently launched Job, or nil.
func (t *Table) Current() *Job {
	if len(t.jobs) == 0 {
		return nil
	}

	return t.jobs[len(t.jobs)-1]
}

// Previous returns the Job launched before the current one, or nil.
func (t *Table) Previous() *Job {
	if len(t.jobs) < 2 {
		return nil
	}

	return t.jobs[len(t.jobs)-2]
}

// Marker returns '+' for the current Job, '-' for the previous one and ' '
// otherwise, as shown by the jobs built-in.
func (t *Table) Marker(j *Job) byte {
	switch j {
	case t.Current():
		return '+'
	case t.Previous():
		return '-'
	default:
		return ' '
	}
}

// Get resolves a job reference:
//
//	""  %%  %+   the current job
//	%-           the previous job
//	%N  N        job number N
//	%prefix      the job whose command starts with prefix
//
// It returns ErrNoCurrentJob if the Table is empty and ErrJobNotFound if
// ref does not match any Job.
func (t *Table) Get(ref string) (*Job, error) {
	if len(t.jobs) == 0 {
		return nil, ErrNoCurrentJob
	}

	switch ref {
	case "", "%", "%%", "%+":
		return t.Current(), nil
	case "%-":
		if j := t.Previous(); j != nil {
			return j, nil
		}

		return nil, ErrJobNotFound
	}

	key := strings.TrimPrefix(ref, "%")

	if n, err := strconv.Atoi(key); err == nil {
		for _, j := range t.jobs {
			if j.number == n {
				return j, nil
			}
		}

		return nil, ErrJobNotFound
	}

	if !strings.HasPrefix(ref, "%") {
		return nil, ErrJobNotFound
	}

	for i := len(t.jobs) - 1; i >= 0; i-- {
		if strings.HasPrefix(t.jobs[i].command, key) {
			return t.jobs[i], nil
		}
	}

	return nil, ErrJobNotFound
}

// FindProcess returns the Job and Process with the given pid, or nil values
// if no tracked process has it.
func (t *Table) FindProcess(pid int) (*Job, *Process) {
	if pid <= 0 {
		return nil, nil
	}

	for _, j := range t.jobs {
		for _, p := range j.procs {
			if p.pid == pid {
				return j, p
			}
		}
	}

	return nil, nil
}

// Shutdown hangs up the stopped Jobs in the Table when the shell exits and
// continues them so they can act on SIGHUP. Running Jobs are left alone.
func (t *Table) Shutdown() {
	for _, j := range t.jobs {
		if j.pgid == NoGroup || !j.Stopped() {
			continue
		}

		if err := unix.Kill(-j.pgid, unix.SIGHUP); err != nil {
			// NOTE: The group may have exited since the last sweep. Treating
			// the hang-up as best effort.
			t.logger.Debug("hang up job", "id", j.id, "pgid", j.pgid, "err", err)
			continue
		}

		if err := unix.Kill(-j.pgid, unix.SIGCONT); err != nil {
			t.logger.Debug("continue job", "id", j.id, "pgid", j.pgid, "err", err)
		}
	}
}
