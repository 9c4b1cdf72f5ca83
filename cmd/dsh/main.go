// Command dsh is an interactive shell with job control.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/nixpig/dsh/internal/jobcontrol"
)

// TODO: Inject version at build time.
const version = "0.0.1"

func main() {
	stdio := jobcontrol.Stdio{
		Stdin:  os.Stdin,
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}

	if err := rootCmd(stdio).Execute(); err != nil {
		var exitErr exitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.code)
		}

		fmt.Fprintf(os.Stderr, "%s\n", err.Error())
		os.Exit(1)
	}
}
