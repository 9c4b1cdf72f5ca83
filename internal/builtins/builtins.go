// Package builtins implements the shell commands that act on the shell
// process itself and its job table.
package builtins

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/nixpig/dsh/internal/jobcontrol"
)

// Result tells the prompt loop what became of a command line.
type Result int

const (
	// NotBuiltin means the line should be spawned as an external job.
	NotBuiltin Result = iota

	// Handled means the built-in ran and the loop should prompt again.
	Handled

	// Quit means the shell should exit.
	Quit
)

var (
	ErrMissingArgument = errors.New("missing argument")
	ErrTooManyArgs     = errors.New("too many arguments")
)

// Handler runs built-ins against a job table.
type Handler struct {
	table   *jobcontrol.Table
	spawner *jobcontrol.Spawner
	reaper  *jobcontrol.Reaper
	out     io.Writer
	errOut  io.Writer
	logger  *slog.Logger
}

func NewHandler(
	table *jobcontrol.Table,
	spawner *jobcontrol.Spawner,
	reaper *jobcontrol.Reaper,
	out io.Writer,
	errOut io.Writer,
	logger *slog.Logger,
) *Handler {
	return &Handler{
		table:   table,
		spawner: spawner,
		reaper:  reaper,
		out:     out,
		errOut:  errOut,
		logger:  logger,
	}
}

// Handle runs argv if it names a built-in and returns the exit status of the
// built-in. Anything else is reported as NotBuiltin.
func (h *Handler) Handle(argv []string) (Result, int) {
	if len(argv) == 0 {
		return Handled, 0
	}

	switch argv[0] {
	case "quit", "exit":
		h.table.Shutdown()
		return Quit, 0
	case "jobs":
		return Handled, h.jobs()
	case "cd":
		return Handled, h.cd(argv)
	case "fg":
		return Handled, h.fg(argv)
	case "bg":
		return Handled, h.bg(argv)
	default:
		return NotBuiltin, 0
	}
}

// jobs prints every job in launch order. Completed jobs are printed once
// more and removed.
func (h *Handler) jobs() int {
	h.reaper.Reap()

	jobs := h.table.Jobs()

	for _, j := range jobs {
		fmt.Fprintln(h.out, jobcontrol.FormatJob(h.table, j))
	}

	for _, j := range jobs {
		switch {
		case j.Completed():
			j.SetNotified(true)
			h.table.Remove(j)
		case j.Stopped():
			j.SetNotified(true)
		}
	}

	return 0
}

func (h *Handler) cd(argv []string) int {
	switch {
	case len(argv) < 2:
		return h.report("cd", ErrMissingArgument)
	case len(argv) > 2:
		return h.report("cd", ErrTooManyArgs)
	}

	if err := os.Chdir(argv[1]); err != nil {
		return h.report("cd", err)
	}

	return 0
}

func (h *Handler) fg(argv []string) int {
	j, err := h.table.Get(jobRef(argv))
	if err != nil {
		return h.report("fg", err)
	}

	fmt.Fprintln(h.out, j.Command())

	return h.spawner.Foreground(j, true)
}

func (h *Handler) bg(argv []string) int {
	j, err := h.table.Get(jobRef(argv))
	if err != nil {
		return h.report("bg", err)
	}

	if !j.Stopped() {
		return h.report(
			"bg",
			jobcontrol.NewInvalidStateError(j.Number(), "already in background"),
		)
	}

	if err := jobcontrol.Continue(j); err != nil {
		return h.report("bg", err)
	}

	j.SetBackground(true)

	fmt.Fprintf(
		h.out,
		"[%d]%c %s &\n",
		j.Number(),
		h.table.Marker(j),
		j.Command(),
	)

	return 0
}

func (h *Handler) report(builtin string, err error) int {
	fmt.Fprintf(h.errOut, "dsh: %s: %v\n", builtin, err)
	h.logger.Warn("builtin failed", "builtin", builtin, "err", err)

	return 1
}

func jobRef(argv []string) string {
	if len(argv) < 2 {
		return ""
	}

	return argv[1]
}
