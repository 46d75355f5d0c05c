//go:build darwin && cgo

package relaunch

/*
#include <spawn.h>
#include <signal.h>
#include <stdlib.h>

// Not in any public header, but stable SPI since macOS 10.14; it is the only
// way to hand responsibility to the spawned image.
int posix_spawnattr_set_disclaim(posix_spawnattr_t *attr, int disclaim);

static int
disclaim_exec(const char *path, char *const argv[], char *const envp[])
{
	posix_spawnattr_t attr;
	sigset_t empty_set, full_set;
	int err;

	err = posix_spawnattr_init(&attr);
	if (err != 0) {
		return err;
	}

	sigemptyset(&empty_set);
	sigfillset(&full_set);
	posix_spawnattr_setsigmask(&attr, &empty_set);
	posix_spawnattr_setsigdefault(&attr, &full_set);

	err = posix_spawnattr_setflags(&attr,
	    POSIX_SPAWN_SETEXEC | POSIX_SPAWN_SETSIGMASK | POSIX_SPAWN_SETSIGDEF);
	if (err == 0) {
		err = posix_spawnattr_set_disclaim(&attr, 1);
	}

	if (err == 0) {
		// SETEXEC: does not return on success.
		err = posix_spawn(NULL, path, NULL, &attr, argv, envp);
	}

	posix_spawnattr_destroy(&attr);
	return err;
}
*/
import "C"

import (
	"unsafe"

	"golang.org/x/sys/unix"
)

// OSSpawner performs real process image replacement.
type OSSpawner struct{}

// NewSpawner returns the platform Spawner.
func NewSpawner() Spawner {
	return &OSSpawner{}
}

// DisclaimExec replaces the process image via posix_spawn with SETEXEC and
// responsibility disclaimed, signal state reset to a clean slate. Only
// returns on failure.
func (s *OSSpawner) DisclaimExec(path string, argv, env []string) error {
	cPath := C.CString(path)
	defer C.free(unsafe.Pointer(cPath))

	cArgv, freeArgv := cStringArray(argv)
	defer freeArgv()

	cEnv, freeEnv := cStringArray(env)
	defer freeEnv()

	if ret := C.disclaim_exec(cPath, &cArgv[0], &cEnv[0]); ret != 0 {
		return unix.Errno(ret)
	}

	return nil
}

// Exec is a plain execve. Only returns on failure.
func (s *OSSpawner) Exec(path string, argv, env []string) error {
	return unix.Exec(path, argv, env)
}

// cStringArray converts a string slice to a NULL-terminated C array.
func cStringArray(strs []string) ([]*C.char, func()) {
	arr := make([]*C.char, len(strs)+1)
	for i, s := range strs {
		arr[i] = C.CString(s)
	}

	return arr, func() {
		for _, p := range arr {
			if p != nil {
				C.free(unsafe.Pointer(p))
			}
		}
	}
}
