//go:build !darwin || !cgo

package relaunch

import (
	"golang.org/x/sys/unix"
)

// OSSpawner performs real process image replacement. Responsibility
// disclaiming only exists on darwin.
type OSSpawner struct{}

// NewSpawner returns the platform Spawner.
func NewSpawner() Spawner {
	return &OSSpawner{}
}

// DisclaimExec is unsupported without the darwin spawn SPI.
func (s *OSSpawner) DisclaimExec(path string, argv, env []string) error {
	return unix.ENOSYS
}

// Exec is a plain execve. Only returns on failure.
func (s *OSSpawner) Exec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}
