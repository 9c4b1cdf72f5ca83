package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/nixpig/dsh/internal/builtins"
	"github.com/nixpig/dsh/internal/jobcontrol"
	"github.com/nixpig/dsh/internal/repl"
	"github.com/spf13/cobra"
)

// exitError carries the exit status of the shell out of cobra.
type exitError struct {
	code int
}

func (e exitError) Error() string {
	return fmt.Sprintf("exit status %d", e.code)
}

func rootCmd(stdio jobcontrol.Stdio) *cobra.Command {
	cfg := &config{}

	c := &cobra.Command{
		Use:           "dsh",
		Short:         "Interactive shell with job control",
		Example:       "  dsh\n  dsh -c 'sleep 5 | sleep 5 &; jobs'",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.load(cmd.Flags()); err != nil {
				return err
			}

			if err := cfg.validate(); err != nil {
				return err
			}

			status, err := runShell(cfg, stdio)
			if err != nil {
				return err
			}

			if status != 0 {
				return exitError{status}
			}

			return nil
		},
	}

	c.CompletionOptions.HiddenDefaultCmd = true
	c.SetOut(stdio.Stdout)
	c.SetErr(stdio.Stderr)

	cfg.addFlags(c.Flags())

	return c
}

func runShell(cfg *config, stdio jobcontrol.Stdio) (int, error) {
	logger, closeLog, err := cfg.newLogger()
	if err != nil {
		return 0, err
	}
	defer closeLog()

	oneShot := cfg.command != ""

	// Jobs always run in their own process groups, so they must be handed the
	// terminal in one-shot mode too.
	terminal := jobcontrol.NewController(stdio.Stdin, logger)
	if err := terminal.Init(); err != nil {
		// The shell is still usable; only terminal hand-off is affected.
		fmt.Fprintf(stdio.Stderr, "dsh: job control: %v\n", err)
		logger.Warn("init job control", "err", err)
	}
	defer terminal.Close()

	logger.Info(
		"shell started",
		"interactive", terminal.Interactive(),
		"pgid", terminal.ShellPgid(),
	)

	table := jobcontrol.NewTable(logger)
	reaper := jobcontrol.NewReaper(
		table,
		jobcontrol.SysWaiter{},
		stdio.Stdout,
		logger,
	)
	spawner := jobcontrol.NewSpawner(table, terminal, reaper, stdio, logger)
	handler := builtins.NewHandler(
		table,
		spawner,
		reaper,
		stdio.Stdout,
		stdio.Stderr,
		logger,
	)

	var in io.Reader = stdio.Stdin
	if oneShot {
		in = strings.NewReader(cfg.command)
	}

	shell := repl.New(
		in,
		stdio.Stdout,
		stdio.Stderr,
		table,
		handler,
		spawner,
		reaper,
		repl.Config{
			Prompt:       cfg.Prompt,
			Interactive:  terminal.Interactive() && !oneShot,
			PrintJobInfo: cfg.PrintJobInfo,
		},
		logger,
	)

	status := shell.Run()

	logger.Info("shell exited", "status", status)

	return status, nil
}
