// Command relaunch is the responsibility shim for the suite's restricted
// executable. It is installed under the wrapped command's name; see the
// relaunch package for the two-phase protocol.
//
// On success the process image is replaced and this program never returns;
// any failure exits with the underlying OS error number.
package main

import (
	"fmt"
	"os"

	"github.com/nixpig/launchdsync/internal/relaunch"
)

const (
	allowedCommand = "agentupdate"
	interpreter    = "/usr/local/opsagent/python/bin/python3"
)

func main() {
	// Run only returns on failure; falling back to ordinary execution
	// here would defeat the responsibility handoff.
	if err := relaunch.Run(os.Args, os.Environ(), relaunch.NewSpawner(), relaunch.Config{
		AllowedCommand: allowedCommand,
		Interpreter:    interpreter,
	}); err != nil {
		fmt.Fprintf(os.Stderr, "relaunch: %v\n", err)
		os.Exit(relaunch.ExitCode(err))
	}
}
