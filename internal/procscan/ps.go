package procscan

import (
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
)

const psPath = "/bin/ps"

// PSScanner reads the process table by running ps. This is the same
// mechanism the rest of the agent suite has always used and works on any
// Unix; it costs a subprocess per snapshot.
type PSScanner struct {
	path string
}

// NewPSScanner returns a PSScanner using the standard ps path.
func NewPSScanner() *PSScanner {
	return &PSScanner{path: psPath}
}

// Snapshot runs `ps -axo pid=,uid=,comm=` and parses the output. On any
// error it returns an empty slice.
func (s *PSScanner) Snapshot() []Process {
	out, err := exec.Command(s.path, "-axo", "pid=,uid=,comm=").Output()
	if err != nil {
		return nil
	}

	return parsePS(string(out))
}

// parsePS parses headerless `ps -axo pid=,uid=,comm=` output. Malformed
// lines are skipped. The command column may be a full path; only the base
// name is kept.
func parsePS(out string) []Process {
	var procs []Process

	for line := range strings.Lines(out) {
		fields := strings.Fields(line)
		if len(fields) < 3 {
			continue
		}

		pid, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}

		uid, err := strconv.ParseUint(fields[1], 10, 32)
		if err != nil {
			continue
		}

		// Command names can contain spaces; rejoin everything after
		// the uid column.
		command := strings.Join(fields[2:], " ")

		procs = append(procs, Process{
			PID:     pid,
			UID:     uint32(uid),
			Command: filepath.Base(command),
		})
	}

	return procs
}
