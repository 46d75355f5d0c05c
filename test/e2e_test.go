//go:build e2e

package e2e_test

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/nixpig/launchdsync/internal/descriptor"
	"github.com/nixpig/launchdsync/internal/launchd"
	"github.com/nixpig/launchdsync/internal/procscan"
	"github.com/nixpig/launchdsync/internal/reconcile"
)

const labelPrefix = "com.nixpig.opsagent."

type testEnv struct {
	daemonsDir string
	agentsDir  string
	callLog    string
	store      *descriptor.Store
	client     *launchd.Client
}

// setupTestEnv builds a real descriptor store over temp directories and a
// real launchd client pointed at a launchctl stub that records every
// invocation and plays back a canned system-domain job list.
func setupTestEnv(t *testing.T, activeSystemLabels []string) *testEnv {
	t.Helper()

	env := &testEnv{
		daemonsDir: t.TempDir(),
		agentsDir:  t.TempDir(),
	}

	stubDir := t.TempDir()
	env.callLog = filepath.Join(stubDir, "calls")

	var printOut strings.Builder
	printOut.WriteString("services = {\n")
	for _, label := range activeSystemLabels {
		fmt.Fprintf(&printOut, "\t\t-\t0\t%s\n", label)
	}
	printOut.WriteString("}\n")

	printFile := filepath.Join(stubDir, "print-output")
	if err := os.WriteFile(printFile, []byte(printOut.String()), 0o644); err != nil {
		t.Fatalf("expected to write stub output: got '%v'", err)
	}

	// The stub only has jobs in the system domain; print for any other
	// domain returns nothing.
	script := fmt.Sprintf(`#!/bin/sh
echo "$@" >> %s
if [ "$1" = "print" ] && [ "$2" = "system" ]; then
	cat %s
fi
exit 0
`, env.callLog, printFile)

	stubPath := filepath.Join(stubDir, "launchctl")
	if err := os.WriteFile(stubPath, []byte(script), 0o755); err != nil {
		t.Fatalf("expected to write stub script: got '%v'", err)
	}

	env.store = descriptor.NewStore(env.daemonsDir, env.agentsDir, labelPrefix)
	env.client = launchd.NewClientWithPath(stubPath, labelPrefix)

	return env
}

func (env *testEnv) writeDescriptor(t *testing.T, dir, label string, sessionTypes descriptor.SessionTypes) {
	t.Helper()

	d := &descriptor.JobDescriptor{
		Label:                  label,
		ProgramArguments:       []string{"/usr/local/opsagent/" + filepath.Base(label)},
		RunAtLoad:              true,
		LimitLoadToSessionType: sessionTypes,
	}

	err := env.store.Write(d, filepath.Join(dir, label+".plist"))
	if err != nil && !strings.Contains(err.Error(), "chown") {
		t.Fatalf("expected only a chown error as non-root: got '%v'", err)
	}
}

func (env *testEnv) calls(t *testing.T) []string {
	t.Helper()

	data, err := os.ReadFile(env.callLog)
	if err != nil {
		return nil
	}

	var calls []string
	for line := range strings.Lines(string(data)) {
		if line := strings.TrimSpace(line); line != "" {
			calls = append(calls, line)
		}
	}

	return calls
}

type staticScanner struct {
	procs []procscan.Process
}

func (s *staticScanner) Snapshot() []procscan.Process {
	return s.procs
}

// TestReconcileAgainstStubLaunchctl drives a Reconciler through the real
// descriptor store and launchctl client, with only launchctl itself stubbed.
func TestReconcileAgainstStubLaunchctl(t *testing.T) {
	env := setupTestEnv(t, []string{
		labelPrefix + "agentd",
		labelPrefix + "stale",
	})

	env.writeDescriptor(t, env.daemonsDir, labelPrefix+"agentd", nil)
	env.writeDescriptor(t, env.daemonsDir, labelPrefix+"appusaged", nil)
	env.writeDescriptor(t, env.agentsDir, labelPrefix+"lwagent",
		descriptor.SessionTypes{descriptor.SessionTypeLoginWindow})

	r := reconcile.New(env.client, env.store, &staticScanner{}, reconcile.Config{
		PrimaryProcess:      "agentupdate",
		SessionLauncher:     "loginwindow",
		AppUsageAgentLabel:  labelPrefix + "app_usage_monitor",
		AppUsageDaemonLabel: labelPrefix + "appusaged",
		TriggerLabelFamily:  labelPrefix + "launchdsync",
		DaemonsDir:          env.daemonsDir,
		ExecutablePath:      "/usr/local/opsagent/launchdsync",
		PollInterval:        time.Second,
	}, slog.New(slog.DiscardHandler))

	r.Reconcile(reconcile.GroupGeneral)

	calls := env.calls(t)

	want := []string{
		// No logged-in users: straight to the loginwindow scope.
		"print loginwindow",
		"bootstrap loginwindow " + filepath.Join(env.agentsDir, labelPrefix+"lwagent.plist"),
		"enable loginwindow/" + labelPrefix + "lwagent",
		// System scope: stop everything active, restart the on-disk set.
		"print system",
		"bootout system/" + labelPrefix + "agentd",
		"bootout system/" + labelPrefix + "stale",
		"bootstrap system " + filepath.Join(env.daemonsDir, labelPrefix+"agentd.plist"),
		"enable system/" + labelPrefix + "agentd",
		// appusaged is on disk but not eligible for the general group.
	}

	if !slices.Equal(calls, want) {
		t.Errorf("expected launchctl calls:\ngot  %v\nwant %v", calls, want)
	}
}
