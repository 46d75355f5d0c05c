package procscan

import (
	"bytes"

	"golang.org/x/sys/unix"
)

// SysctlScanner reads the BSD process table directly via sysctl, avoiding a
// ps subprocess per snapshot.
type SysctlScanner struct{}

// New returns the preferred Scanner for this platform.
func New() Scanner {
	return &SysctlScanner{}
}

// Snapshot returns the current process table, or an empty slice on error.
func (s *SysctlScanner) Snapshot() []Process {
	kprocs, err := unix.SysctlKinfoProcSlice("kern.proc.all")
	if err != nil {
		return nil
	}

	procs := make([]Process, 0, len(kprocs))
	for _, kp := range kprocs {
		procs = append(procs, Process{
			PID:     int(kp.Proc.P_pid),
			UID:     kp.Eproc.Ucred.Uid,
			Command: commString(kp.Proc.P_comm[:]),
		})
	}

	return procs
}

// commString converts the fixed-size NUL-terminated p_comm field. The kernel
// truncates command names to 16 characters, which is long enough for every
// name this suite matches on.
func commString(comm []byte) string {
	if i := bytes.IndexByte(comm, 0); i >= 0 {
		comm = comm[:i]
	}

	return string(comm)
}
