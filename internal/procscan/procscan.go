// Package procscan provides point-in-time snapshots of the live process
// table. Snapshots are never cached; every caller that needs to know what is
// running right now takes a fresh one.
package procscan

// Process is a single record from a process table snapshot. Command is the
// executable name without its directory.
type Process struct {
	PID     int
	UID     uint32
	Command string
}

// Scanner takes process table snapshots.
type Scanner interface {
	// Snapshot returns the current process table. It never fails; on error
	// it returns an empty slice.
	Snapshot() []Process
}

// IsRunning reports whether any process in the snapshot has the given
// command name.
func IsRunning(procs []Process, command string) bool {
	for _, p := range procs {
		if p.Command == command {
			return true
		}
	}

	return false
}

// ConsoleUserUIDs returns the deduplicated UIDs of processes whose command
// equals the GUI session launcher name. Root is excluded: a launcher process
// owned by uid 0 is the pre-login instance, not a user session. (This also
// excludes the edge case of someone logging in to the GUI as root, a known
// simplification.)
func ConsoleUserUIDs(procs []Process, launcher string) []uint32 {
	seen := make(map[uint32]struct{})
	var uids []uint32

	for _, p := range procs {
		if p.Command != launcher || p.UID == 0 {
			continue
		}

		if _, ok := seen[p.UID]; ok {
			continue
		}

		seen[p.UID] = struct{}{}
		uids = append(uids, p.UID)
	}

	return uids
}
