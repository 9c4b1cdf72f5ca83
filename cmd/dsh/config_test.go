package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nixpig/dsh/internal/repl"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "dshrc.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	return path
}

func parseFlags(t *testing.T, args ...string) (*config, *pflag.FlagSet) {
	t.Helper()

	cfg := &config{}
	fs := pflag.NewFlagSet("dsh", pflag.ContinueOnError)
	cfg.addFlags(fs)

	require.NoError(t, fs.Parse(args))

	return cfg, fs
}

func TestConfigLoad(t *testing.T) {
	t.Run("Test defaults", func(t *testing.T) {
		cfg, fs := parseFlags(t, "--config", "")

		require.NoError(t, cfg.load(fs))

		assert.Equal(t, repl.DefaultPrompt, cfg.Prompt)
		assert.Empty(t, cfg.LogFile)
		assert.False(t, cfg.Debug)
		assert.False(t, cfg.PrintJobInfo)
	})

	t.Run("Test missing default file", func(t *testing.T) {
		cfg, fs := parseFlags(t)
		cfg.path = filepath.Join(t.TempDir(), "missing.yaml")

		assert.NoError(t, cfg.load(fs))
	})

	t.Run("Test missing explicit file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "missing.yaml")
		cfg, fs := parseFlags(t, "--config", path)

		assert.ErrorIs(t, cfg.load(fs), os.ErrNotExist)
	})

	t.Run("Test values from file", func(t *testing.T) {
		path := writeConfig(t, strings.Join([]string{
			`prompt: "{cwd} % "`,
			"log_file: /tmp/dsh.log",
			"debug: true",
			"print_job_info: true",
		}, "\n"))

		cfg, fs := parseFlags(t, "--config", path)

		require.NoError(t, cfg.load(fs))

		assert.Equal(t, "{cwd} % ", cfg.Prompt)
		assert.Equal(t, "/tmp/dsh.log", cfg.LogFile)
		assert.True(t, cfg.Debug)
		assert.True(t, cfg.PrintJobInfo)
	})

	t.Run("Test flags override file", func(t *testing.T) {
		path := writeConfig(t, "prompt: from-file\ndebug: true\n")

		cfg, fs := parseFlags(
			t,
			"--config", path,
			"--prompt", "from-flag",
			"--debug=false",
		)

		require.NoError(t, cfg.load(fs))

		assert.Equal(t, "from-flag", cfg.Prompt)
		assert.False(t, cfg.Debug)
	})

	t.Run("Test invalid yaml", func(t *testing.T) {
		path := writeConfig(t, "prompt: [unclosed\n")

		cfg, fs := parseFlags(t, "--config", path)

		err := cfg.load(fs)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse config")
	})

	t.Run("Test command flag", func(t *testing.T) {
		cfg, _ := parseFlags(t, "-c", "sleep 1 &; jobs")

		assert.Equal(t, "sleep 1 &; jobs", cfg.command)
	})
}

func TestConfigValidate(t *testing.T) {
	scenarios := map[string]struct {
		cfg     config
		wantErr bool
	}{
		"Valid": {
			cfg: config{Prompt: "$ "},
		},
		"Empty prompt": {
			cfg:     config{},
			wantErr: true,
		},
		"Log file in existing directory": {
			cfg: config{Prompt: "$ ", LogFile: filepath.Join(os.TempDir(), "dsh.log")},
		},
		"Log file in missing directory": {
			cfg:     config{Prompt: "$ ", LogFile: "/nonexistent/dir/dsh.log"},
			wantErr: true,
		},
	}

	for scenario, config := range scenarios {
		t.Run(scenario, func(t *testing.T) {
			err := config.cfg.validate()

			if config.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestNewLogger(t *testing.T) {
	t.Run("Test discard without log file", func(t *testing.T) {
		cfg := &config{}

		logger, closeLog, err := cfg.newLogger()
		require.NoError(t, err)
		defer closeLog()

		assert.False(t, logger.Enabled(t.Context(), 0))
	})

	t.Run("Test writes to log file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "dsh.log")
		cfg := &config{LogFile: path, Debug: true}

		logger, closeLog, err := cfg.newLogger()
		require.NoError(t, err)

		logger.Debug("spawn job", "command", "sleep 5")
		closeLog()

		data, err := os.ReadFile(path)
		require.NoError(t, err)

		assert.Contains(t, string(data), "level=DEBUG")
		assert.Contains(t, string(data), `msg="spawn job"`)
		assert.Contains(t, string(data), `command="sleep 5"`)
		assert.Contains(t, string(data), "pid=")
	})
}
