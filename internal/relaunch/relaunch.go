// Package relaunch implements the two-phase responsibility shim for the
// suite's restricted executable.
//
// The shim binary is installed in place of the wrapped command. Invoked
// normally (unmarked phase), it re-executes itself with a marker argument
// while disclaiming responsibility for the new image, so the re-invocation
// (not whatever launched the wrapper) becomes the process the OS attributes
// privacy and policy approvals to. The marked phase then checks the
// originally-requested command against a fixed allow-list and replaces the
// image with the suite's interpreter running the command's hidden script
// sibling. The allow-list is what keeps the disclaim step from becoming an
// arbitrary-execution gadget.
package relaunch

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"
)

// Marker is inserted as the second argument of the re-invocation; its
// presence alone distinguishes the two phases.
const Marker = "--relaunch-shimmed"

// ErrNotAllowed is returned by the marked phase when the original command is
// not on the allow-list. It maps to a permission-denied exit code.
var ErrNotAllowed = errors.New("command is not on the relaunch allow-list")

// Spawner replaces the current process image. Neither method returns on
// success; a nil error is only ever observed from test fakes.
type Spawner interface {
	// DisclaimExec execs path with the OS instructed to treat the new
	// image as responsible for its own privacy/policy approvals, with the
	// signal mask emptied and all dispositions reset to default.
	DisclaimExec(path string, argv, env []string) error

	// Exec is a plain image replacement.
	Exec(path string, argv, env []string) error
}

// Config names the single allow-listed command and the interpreter that runs
// its hidden script.
type Config struct {
	// AllowedCommand is the base name of the one executable the shim will
	// relaunch.
	AllowedCommand string

	// Interpreter is the absolute path of the interpreter for the hidden
	// script.
	Interpreter string
}

// Run executes one shim phase for the given argv and environment. On
// success it does not return. Any failure is fatal to the caller: a failed
// responsibility handoff must never fall back to ordinary execution.
func Run(argv, env []string, sp Spawner, cfg Config) error {
	if len(argv) == 0 {
		return errors.New("empty argv")
	}

	if len(argv) >= 2 && argv[1] == Marker {
		return runMarked(argv, env, sp, cfg)
	}

	return runUnmarked(argv, env, sp)
}

// runUnmarked re-executes this same binary with the marker inserted as the
// second argument and all other arguments preserved, disclaiming
// responsibility for the new image.
func runUnmarked(argv, env []string, sp Spawner) error {
	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locate own executable: %w", err)
	}

	marked := make([]string, 0, len(argv)+1)
	marked = append(marked, argv[0], Marker)
	marked = append(marked, argv[1:]...)

	if err := sp.DisclaimExec(self, marked, env); err != nil {
		return fmt.Errorf("disclaiming exec: %w", err)
	}

	return nil
}

// runMarked validates the originally-requested command and replaces the
// image with the interpreter running the command's hidden script sibling
// (<dir>/.<name>.py), passing the remaining arguments through unchanged.
func runMarked(argv, env []string, sp Spawner, cfg Config) error {
	original := argv[0]

	if filepath.Base(original) != cfg.AllowedCommand {
		return fmt.Errorf("%w: %s", ErrNotAllowed, original)
	}

	script := filepath.Join(
		filepath.Dir(original),
		"."+filepath.Base(original)+".py",
	)

	rewritten := make([]string, 0, len(argv))
	rewritten = append(rewritten, cfg.Interpreter, script)
	rewritten = append(rewritten, argv[2:]...)

	if err := sp.Exec(cfg.Interpreter, rewritten, env); err != nil {
		return fmt.Errorf("exec interpreter: %w", err)
	}

	return nil
}

// ExitCode maps a Run error to the shim's exit code: the underlying OS
// error number where there is one, permission denied for allow-list
// rejections, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}

	if errors.Is(err, ErrNotAllowed) {
		return int(unix.EPERM)
	}

	var errno unix.Errno
	if errors.As(err, &errno) {
		return int(errno)
	}

	return 1
}
