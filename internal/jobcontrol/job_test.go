package jobcontrol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

var (
	running = Status{State: ProcessStateRunning}
	stopped = Status{State: ProcessStateStopped, Signal: unix.SIGTSTP}
	exited0 = Status{State: ProcessStateExited, Code: 0}
	exited1 = Status{State: ProcessStateExited, Code: 1}
	killed  = Status{State: ProcessStateSignaled, Signal: unix.SIGKILL}
)

// newTestJob returns a job with one process per status, as if it had been
// spawned with pids starting at firstPid.
func newTestJob(t *testing.T, firstPid int, statuses ...Status) *Job {
	t.Helper()

	stages := make([][]string, len(statuses))
	for i := range stages {
		stages[i] = []string{"sleep", "5"}
	}

	j, err := NewJob("sleep 5", false, stages...)
	require.NoError(t, err)

	for i, p := range j.procs {
		p.pid = firstPid + i
		p.status = statuses[i]
	}

	j.pgid = firstPid

	return j
}

func TestNewJob(t *testing.T) {
	t.Run("Test pipeline", func(t *testing.T) {
		j, err := NewJob(
			"  ls | wc -l  ",
			true,
			[]string{"ls"},
			[]string{"wc", "-l"},
		)
		require.NoError(t, err)

		assert.Equal(t, "ls | wc -l", j.Command())
		assert.Equal(t, NoGroup, j.Pgid())
		assert.True(t, j.Background())
		assert.NotEmpty(t, j.ID())
		require.Len(t, j.Processes(), 2)

		for _, p := range j.Processes() {
			assert.Zero(t, p.Pid())
			assert.Equal(t, ProcessStateCreated, p.Status().State)
		}

		assert.Equal(t, []string{"wc", "-l"}, j.Processes()[1].Argv())
	})

	t.Run("Test no stages", func(t *testing.T) {
		_, err := NewJob("", false)
		assert.ErrorIs(t, err, ErrEmptyJob)
	})

	t.Run("Test empty stage", func(t *testing.T) {
		_, err := NewJob("ls |", false, []string{"ls"}, nil)
		assert.ErrorIs(t, err, ErrEmptyJob)
	})

	t.Run("Test argv is copied", func(t *testing.T) {
		argv := []string{"echo", "a"}

		j, err := NewJob("echo a", false, argv)
		require.NoError(t, err)

		argv[1] = "b"
		assert.Equal(t, "a", j.Processes()[0].Argv()[1])
	})
}

func TestJobDerivedState(t *testing.T) {
	scenarios := map[string]struct {
		statuses      []Status
		wantCompleted bool
		wantStopped   bool
	}{
		"All running": {
			statuses: []Status{running, running},
		},
		"All exited": {
			statuses:      []Status{exited0, exited1},
			wantCompleted: true,
		},
		"Exited and signaled": {
			statuses:      []Status{killed, exited0},
			wantCompleted: true,
		},
		"One still running": {
			statuses: []Status{exited0, running},
		},
		"All stopped": {
			statuses:    []Status{stopped, stopped},
			wantStopped: true,
		},
		"Stopped and exited": {
			statuses:    []Status{exited0, stopped},
			wantStopped: true,
		},
		"Stopped and running": {
			statuses: []Status{stopped, running},
		},
	}

	for scenario, config := range scenarios {
		t.Run(scenario, func(t *testing.T) {
			j := newTestJob(t, 100, config.statuses...)

			assert.Equal(t, config.wantCompleted, j.Completed(), "completed")
			assert.Equal(t, config.wantStopped, j.Stopped(), "stopped")
		})
	}
}

func TestJobStatusText(t *testing.T) {
	scenarios := map[string]struct {
		statuses   []Status
		wantText   string
		wantStatus int
	}{
		"Running": {
			statuses:   []Status{running},
			wantText:   "Running",
			wantStatus: -1,
		},
		"Done": {
			statuses:   []Status{exited1, exited0},
			wantText:   "Done",
			wantStatus: 0,
		},
		"Exit code": {
			statuses:   []Status{exited1},
			wantText:   "Exit 1",
			wantStatus: 1,
		},
		"Killed": {
			statuses:   []Status{killed},
			wantText:   "Killed",
			wantStatus: 128 + int(unix.SIGKILL),
		},
		"Stopped": {
			statuses:   []Status{stopped},
			wantText:   "Stopped",
			wantStatus: 128 + int(unix.SIGTSTP),
		},
	}

	for scenario, config := range scenarios {
		t.Run(scenario, func(t *testing.T) {
			j := newTestJob(t, 100, config.statuses...)

			assert.Equal(t, config.wantText, j.StatusText())
			assert.Equal(t, config.wantStatus, j.ExitStatus())
		})
	}
}

func TestJobTransitions(t *testing.T) {
	t.Run("Test markRunning continues stopped processes", func(t *testing.T) {
		j := newTestJob(t, 100, stopped, exited0)
		j.notified = true

		j.markRunning()

		assert.Equal(t, ProcessStateRunning, j.procs[0].status.State)
		assert.Equal(t, ProcessStateExited, j.procs[1].status.State)
		assert.False(t, j.Notified())
		assert.False(t, j.Stopped())
	})

	t.Run("Test lose completes the job", func(t *testing.T) {
		j := newTestJob(t, 100, running, exited0)

		j.lose()

		assert.True(t, j.Completed())
		assert.Equal(t, -1, j.procs[0].status.Code)
	})

	t.Run("Test abandon drops unstarted stages", func(t *testing.T) {
		j := newTestJob(t, 100, running, running, running)
		j.procs[2].pid = 0

		j.abandon(2)

		assert.Len(t, j.Processes(), 2)
	})
}

func TestAssignGroupUnstarted(t *testing.T) {
	j := newTestJob(t, 100, running)
	p := NewProcess([]string{"true"})

	err := AssignGroup(j, p)
	assert.Error(t, err)
	assert.Equal(t, 100, j.Pgid())
}

func TestContinueWithoutGroup(t *testing.T) {
	j, err := NewJob("true", false, []string{"true"})
	require.NoError(t, err)

	err = Continue(j)
	assert.True(t, errors.As(err, &InvalidStateError{}))
}
