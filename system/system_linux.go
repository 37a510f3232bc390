//go:build linux

// Package system provides the privilege-restriction bootstrap and small
// prctl helpers.
package system

import (
	"runtime"

	"golang.org/x/sys/unix"

	"github.com/Kijewski/goextrasafe/capabilities"
	"github.com/Kijewski/goextrasafe/internal/linux"
)

// RestrictPrivileges applies basic hardening to prevent bootstrapping
// attacks. It is meant to run once, as early as possible, before any
// untrusted input is processed and before additional threads exist:
//
//   - unshare the open file descriptor table, filesystem attributes
//     (cwd, root) and System V semaphore undo list from the parent, so
//     changes on either side are no longer observed by the other;
//   - clear the ambient capability set, so capabilities do not leak
//     into executed programs;
//   - set the no-new-privileges bit, which is irreversible for the rest
//     of the process tree's life and blocks privilege gain through
//     set-uid and file-capability executables.
//
// Each step is attempted independently and failures are discarded: this
// runs before the caller's error handling can be assumed to work, and
// partial hardening beats none at all. Calling it again repeats the
// kernel work but is harmless.
//
// The unshare step scopes to the calling thread, so the goroutine is
// pinned to it and stays pinned; callers are expected to keep running on
// the restricted thread anyway.
func RestrictPrivileges() {
	runtime.LockOSThread()
	_ = unix.Unshare(unix.CLONE_FILES | unix.CLONE_FS | unix.CLONE_SYSVSEM)
	_ = capabilities.ClearAmbient()
	_ = unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0)
}

// NoNewPrivs reports whether the no-new-privileges bit is set for the
// calling thread.
func NoNewPrivs() (bool, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	v, err := unix.PrctlRetInt(unix.PR_GET_NO_NEW_PRIVS, 0, 0, 0, 0)
	if err != nil {
		return false, err
	}
	return v != 0, nil
}

// Exec replaces the current process image, retrying on EINTR.
func Exec(cmd string, args []string, env []string) error {
	return linux.Exec(cmd, args, env)
}
