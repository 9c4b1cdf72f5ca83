package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/nixpig/dsh/internal/repl"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

const defaultConfigFile = ".dshrc.yaml"

// config holds the shell settings. Values come from the optional YAML file
// and are overridden by flags set explicitly on the command line.
type config struct {
	Prompt       string `yaml:"prompt"`
	LogFile      string `yaml:"log_file"`
	Debug        bool   `yaml:"debug"`
	PrintJobInfo bool   `yaml:"print_job_info"`

	path    string
	command string
}

func (c *config) addFlags(fs *pflag.FlagSet) {
	fs.StringVar(
		&c.path,
		"config",
		defaultConfigPath(),
		"Path to YAML config file",
	)
	fs.StringVar(&c.Prompt, "prompt", repl.DefaultPrompt, "Prompt string")
	fs.StringVar(&c.LogFile, "log-file", "", "Append logs to this file")
	fs.BoolVar(&c.Debug, "debug", false, "Enable debug logs")
	fs.BoolVar(
		&c.PrintJobInfo,
		"print-job-info",
		false,
		"Print each job and its processes after it is dispatched",
	)
	fs.StringVarP(
		&c.command,
		"command",
		"c",
		"",
		"Run the given command line and exit",
	)
}

// load reads the config file, if there is one. Flags changed on fs keep their
// command line values.
func (c *config) load(fs *pflag.FlagSet) error {
	if c.path == "" {
		return nil
	}

	data, err := os.ReadFile(c.path)
	if err != nil {
		// The default file is optional; an explicit one is not.
		if errors.Is(err, os.ErrNotExist) && !fs.Changed("config") {
			return nil
		}

		return fmt.Errorf("read config: %w", err)
	}

	var file config
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse config %s: %w", c.path, err)
	}

	if !fs.Changed("prompt") && file.Prompt != "" {
		c.Prompt = file.Prompt
	}

	if !fs.Changed("log-file") && file.LogFile != "" {
		c.LogFile = file.LogFile
	}

	if !fs.Changed("debug") {
		c.Debug = c.Debug || file.Debug
	}

	if !fs.Changed("print-job-info") {
		c.PrintJobInfo = c.PrintJobInfo || file.PrintJobInfo
	}

	return nil
}

func (c *config) validate() error {
	if c.Prompt == "" {
		return errors.New("prompt cannot be empty")
	}

	if c.LogFile != "" {
		dir := filepath.Dir(c.LogFile)
		if _, err := os.Stat(dir); err != nil {
			return fmt.Errorf("failed to stat log-file directory: %w", err)
		}
	}

	return nil
}

// newLogger returns the shell's logger and a function that closes its output.
// Logs are discarded unless a log file is configured, since the terminal
// belongs to the user and their jobs.
func (c *config) newLogger() (*slog.Logger, func(), error) {
	if c.LogFile == "" {
		return slog.New(slog.DiscardHandler), func() {}, nil
	}

	f, err := os.OpenFile(
		c.LogFile,
		os.O_CREATE|os.O_APPEND|os.O_WRONLY,
		0644,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}

	level := slog.LevelInfo
	if c.Debug {
		level = slog.LevelDebug
	}

	logger := slog.New(
		slog.NewTextHandler(f, &slog.HandlerOptions{Level: level}),
	).With("pid", os.Getpid())

	return logger, func() { f.Close() }, nil
}

func defaultConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, defaultConfigFile)
}
