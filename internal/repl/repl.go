// Package repl implements the shell's read-eval loop.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"

	"github.com/nixpig/dsh/internal/builtins"
	"github.com/nixpig/dsh/internal/jobcontrol"
	"github.com/nixpig/dsh/internal/parser"
)

// DefaultPrompt shows the shell's pid, e.g. "dsh-4242$ ".
const DefaultPrompt = "dsh-{pid}$ "

// ExitSyntax is the status of a line that could not be parsed.
const ExitSyntax = 2

type Config struct {
	// Prompt is printed before each line in interactive mode. "{pid}" and
	// "{cwd}" are replaced with the shell's pid and working directory.
	Prompt string

	// Interactive enables the prompt, the SIGINT handler and hanging up jobs
	// on end of input.
	Interactive bool

	// PrintJobInfo prints every spawned job and its processes after it is
	// dispatched.
	PrintJobInfo bool
}

// Shell reads command lines and dispatches them to the built-ins or the
// Spawner.
type Shell struct {
	in      *bufio.Reader
	out     io.Writer
	errOut  io.Writer
	table   *jobcontrol.Table
	handler *builtins.Handler
	spawner *jobcontrol.Spawner
	reaper  *jobcontrol.Reaper
	cfg     Config
	logger  *slog.Logger

	status int
}

func New(
	in io.Reader,
	out io.Writer,
	errOut io.Writer,
	table *jobcontrol.Table,
	handler *builtins.Handler,
	spawner *jobcontrol.Spawner,
	reaper *jobcontrol.Reaper,
	cfg Config,
	logger *slog.Logger,
) *Shell {
	if cfg.Prompt == "" {
		cfg.Prompt = DefaultPrompt
	}

	return &Shell{
		in:      bufio.NewReader(in),
		out:     out,
		errOut:  errOut,
		table:   table,
		handler: handler,
		spawner: spawner,
		reaper:  reaper,
		cfg:     cfg,
		logger:  logger,
	}
}

// Run reads and evaluates lines until quit or end of input and returns the
// exit status of the shell: 0 after quit or an interactive end of input,
// otherwise the status of the last command.
func (s *Shell) Run() int {
	if s.cfg.Interactive {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt)
		defer signal.Stop(sigChan)

		// Foreground jobs own the terminal, so SIGINT only reaches the shell
		// while it is waiting at the prompt.
		go func() {
			for range sigChan {
				fmt.Fprint(s.out, "\n"+s.prompt())
			}
		}()
	}

	for {
		s.reaper.Sweep()

		if s.cfg.Interactive {
			fmt.Fprint(s.out, s.prompt())
		}

		line, err := s.in.ReadString('\n')
		if line != "" {
			if quit := s.Eval(line); quit {
				return 0
			}
		}

		if err != nil {
			if !errors.Is(err, io.EOF) {
				s.logger.Warn("read command line", "err", err)
			}

			if s.cfg.Interactive {
				fmt.Fprintln(s.out)
				s.table.Shutdown()

				return 0
			}

			return s.status
		}
	}
}

// Eval parses line and runs each job on it in turn. It returns true if the
// shell should exit.
func (s *Shell) Eval(line string) bool {
	jobs, err := parser.Parse(line)
	if err != nil {
		fmt.Fprintf(s.errOut, "dsh: %v\n", err)
		s.status = ExitSyntax

		return false
	}

	for _, j := range jobs {
		if procs := j.Processes(); len(procs) == 1 {
			result, status := s.handler.Handle(procs[0].Argv())

			switch result {
			case builtins.Quit:
				return true
			case builtins.Handled:
				s.status = status
				continue
			}
		}

		// Spawn errors have already been reported to the user.
		status, err := s.spawner.Spawn(j)
		if err != nil {
			s.logger.Debug("spawn job", "id", j.ID(), "err", err)
		}

		s.status = status

		if s.cfg.PrintJobInfo {
			fmt.Fprint(s.out, j)
		}
	}

	return false
}

// Status returns the exit status of the last command.
func (s *Shell) Status() int {
	return s.status
}

func (s *Shell) prompt() string {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = "?"
	}

	return strings.NewReplacer(
		"{pid}", strconv.Itoa(os.Getpid()),
		"{cwd}", cwd,
	).Replace(s.cfg.Prompt)
}
