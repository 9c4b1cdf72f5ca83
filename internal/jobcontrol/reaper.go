package jobcontrol

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"

	"golang.org/x/sys/unix"
)

// Reaper synchronises the Table with child status changes reported by the
// kernel and reports jobs that stop or complete.
type Reaper struct {
	table  *Table
	waiter Waiter
	out    io.Writer
	logger *slog.Logger

	// pending holds jobs that stopped or completed, in discovery order, until
	// they are reported by Notify.
	pending []*Job
}

// NewReaper creates a Reaper that updates table and writes notifications to
// out.
func NewReaper(
	table *Table,
	waiter Waiter,
	out io.Writer,
	logger *slog.Logger,
) *Reaper {
	return &Reaper{
		table:  table,
		waiter: waiter,
		out:    out,
		logger: logger,
	}
}

// Reap records every pending status change of any child without blocking.
// It is a no-op when nothing has changed.
func (r *Reaper) Reap() {
	for {
		pid, ws, err := r.waiter.Wait(
			-1,
			unix.WNOHANG|unix.WUNTRACED|unix.WCONTINUED,
		)
		if err != nil {
			if !errors.Is(err, unix.ECHILD) {
				r.logger.Warn("reap children", "err", err)
			}

			return
		}

		if pid <= 0 {
			return
		}

		r.record(pid, ws, nil)
	}
}

// Sweep reaps pending status changes and reports the jobs that stopped or
// completed since the last report.
func (r *Reaper) Sweep() {
	r.Reap()
	r.Notify()
}

// Notify reports each job that stopped or completed since the last call, in
// the order the change was discovered. Completed jobs are removed from the
// Table; stopped jobs stay so they can be resumed. A job is only reported
// once per transition.
func (r *Reaper) Notify() {
	pending := r.pending
	r.pending = nil

	for _, j := range pending {
		if j.notified {
			continue
		}

		switch {
		case j.Completed():
			fmt.Fprintln(r.out, FormatJob(r.table, j))
			j.notified = true
			r.table.Remove(j)
		case j.Stopped():
			fmt.Fprintln(r.out, FormatJob(r.table, j))
			j.notified = true
		}
	}
}

// WaitFor blocks until every process of j has completed or j is stopped.
// Only members of the process group of j are reaped; status changes of other
// jobs are left for the next Sweep.
func (r *Reaper) WaitFor(j *Job) {
	for !j.Completed() && !j.Stopped() {
		if j.pgid == NoGroup {
			j.lose()
			return
		}

		pid, ws, err := r.waiter.Wait(-j.pgid, unix.WUNTRACED)
		if err != nil {
			// ECHILD with processes still marked alive means they were reaped
			// elsewhere. Give up on them rather than block forever.
			r.logger.Warn(
				"wait for job",
				"id", j.id,
				"pgid", j.pgid,
				"err", err,
			)
			j.lose()

			return
		}

		r.record(pid, ws, j)
	}
}

// record applies the status change ws of pid to the owning Process. hint is
// searched before the Table. Unknown pids are ignored.
func (r *Reaper) record(pid int, ws unix.WaitStatus, hint *Job) {
	status, ok := statusFromWait(ws)
	if !ok {
		return
	}

	var (
		j *Job
		p *Process
	)

	if hint != nil {
		for _, hp := range hint.procs {
			if hp.pid == pid {
				j, p = hint, hp
				break
			}
		}
	}

	if p == nil {
		j, p = r.table.FindProcess(pid)
	}

	if p == nil {
		r.logger.Debug("ignore untracked child", "pid", pid, "status", status)
		return
	}

	wasCompleted, wasStopped := j.Completed(), j.Stopped()

	p.status = status

	r.logger.Debug(
		"child status changed",
		"id", j.id,
		"pid", pid,
		"status", status,
	)

	switch {
	case j.Completed() && !wasCompleted,
		j.Stopped() && !wasStopped:
		r.queue(j)
	case wasStopped && !j.Stopped():
		j.notified = false
	}
}

// queue marks j as due to be reported by the next Notify.
func (r *Reaper) queue(j *Job) {
	j.notified = false

	if !slices.Contains(r.pending, j) {
		r.pending = append(r.pending, j)
	}
}

// FormatJob formats j the way the jobs built-in and notifications show it,
// e.g. "[1]+  Running                 sleep 5 &".
func FormatJob(t *Table, j *Job) string {
	command := j.command
	if j.background && !j.Completed() && !j.Stopped() {
		command += " &"
	}

	return fmt.Sprintf(
		"[%d]%c  %-24s%s",
		j.number,
		t.Marker(j),
		j.StatusText(),
		command,
	)
}
