package relaunch_test

import (
	"errors"
	"os"
	"slices"
	"testing"

	"github.com/nixpig/launchdsync/internal/relaunch"
	"golang.org/x/sys/unix"
)

type spawnCall struct {
	method string
	path   string
	argv   []string
}

// fakeSpawner records image replacement requests. Returning nil stands in
// for "the image was replaced"; the real spawner never returns nil.
type fakeSpawner struct {
	calls []spawnCall
	err   error
}

func (s *fakeSpawner) DisclaimExec(path string, argv, env []string) error {
	s.calls = append(s.calls, spawnCall{"disclaim", path, slices.Clone(argv)})
	return s.err
}

func (s *fakeSpawner) Exec(path string, argv, env []string) error {
	s.calls = append(s.calls, spawnCall{"exec", path, slices.Clone(argv)})
	return s.err
}

func testShimConfig() relaunch.Config {
	return relaunch.Config{
		AllowedCommand: "agentupdate",
		Interpreter:    "/usr/local/opsagent/python/bin/python3",
	}
}

func TestUnmarkedPhase(t *testing.T) {
	t.Parallel()

	sp := &fakeSpawner{}

	err := relaunch.Run(
		[]string{"/usr/local/opsagent/agentupdate", "--auto", "-v"},
		os.Environ(),
		sp,
		testShimConfig(),
	)
	if err != nil {
		t.Fatalf("expected not to receive error: got '%v'", err)
	}

	if len(sp.calls) != 1 {
		t.Fatalf("expected one spawn call: got '%d'", len(sp.calls))
	}

	call := sp.calls[0]

	if call.method != "disclaim" {
		t.Errorf("expected disclaiming exec: got '%s'", call.method)
	}

	self, err := os.Executable()
	if err != nil {
		t.Fatalf("expected to locate test binary: got '%v'", err)
	}

	if call.path != self {
		t.Errorf("expected re-exec of the wrapper itself: got '%s'", call.path)
	}

	want := []string{
		"/usr/local/opsagent/agentupdate",
		relaunch.Marker,
		"--auto",
		"-v",
	}

	if !slices.Equal(call.argv, want) {
		t.Errorf("expected argv: got '%v', want '%v'", call.argv, want)
	}
}

func TestMarkedPhaseAllowed(t *testing.T) {
	t.Parallel()

	sp := &fakeSpawner{}
	cfg := testShimConfig()

	err := relaunch.Run(
		[]string{"/usr/local/opsagent/agentupdate", relaunch.Marker, "--auto", "-v"},
		os.Environ(),
		sp,
		cfg,
	)
	if err != nil {
		t.Fatalf("expected not to receive error: got '%v'", err)
	}

	if len(sp.calls) != 1 {
		t.Fatalf("expected one spawn call: got '%d'", len(sp.calls))
	}

	call := sp.calls[0]

	if call.method != "exec" {
		t.Errorf("expected plain exec: got '%s'", call.method)
	}

	if call.path != cfg.Interpreter {
		t.Errorf("expected interpreter path: got '%s'", call.path)
	}

	want := []string{
		cfg.Interpreter,
		"/usr/local/opsagent/.agentupdate.py",
		"--auto",
		"-v",
	}

	if !slices.Equal(call.argv, want) {
		t.Errorf("expected argv: got '%v', want '%v'", call.argv, want)
	}
}

func TestMarkedPhaseRejected(t *testing.T) {
	t.Parallel()

	sp := &fakeSpawner{}

	err := relaunch.Run(
		[]string{"/usr/local/opsagent/othertool", relaunch.Marker},
		os.Environ(),
		sp,
		testShimConfig(),
	)

	if !errors.Is(err, relaunch.ErrNotAllowed) {
		t.Fatalf("expected ErrNotAllowed: got '%v'", err)
	}

	if len(sp.calls) != 0 {
		t.Errorf("expected no image replacement: got '%v'", sp.calls)
	}

	if relaunch.ExitCode(err) != int(unix.EPERM) {
		t.Errorf("expected permission-denied exit code: got '%d'", relaunch.ExitCode(err))
	}
}

func TestSpawnFailureIsFatal(t *testing.T) {
	t.Parallel()

	sp := &fakeSpawner{err: unix.ENOEXEC}

	err := relaunch.Run(
		[]string{"/usr/local/opsagent/agentupdate"},
		os.Environ(),
		sp,
		testShimConfig(),
	)
	if err == nil {
		t.Fatal("expected to receive error")
	}

	if relaunch.ExitCode(err) != int(unix.ENOEXEC) {
		t.Errorf("expected errno exit code: got '%d'", relaunch.ExitCode(err))
	}
}

func TestExitCode(t *testing.T) {
	t.Parallel()

	if got := relaunch.ExitCode(nil); got != 0 {
		t.Errorf("expected zero exit code: got '%d'", got)
	}

	if got := relaunch.ExitCode(errors.New("other")); got != 1 {
		t.Errorf("expected generic exit code: got '%d'", got)
	}
}
