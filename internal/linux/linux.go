//go:build linux

// Package linux wraps the raw syscalls used by the pid file guard with
// EINTR retries and os error wrapping.
package linux

import (
	"os"

	"golang.org/x/sys/unix"
)

// Open wraps [unix.Open].
func Open(path string, mode int, perm uint32) (fd int, err error) {
	fd, err = retryOnEINTR2(func() (int, error) {
		return unix.Open(path, mode, perm)
	})
	if err != nil {
		return -1, &os.PathError{Op: "open", Path: path, Err: err}
	}
	return fd, nil
}

// Openat2 wraps [unix.Openat2].
func Openat2(dirfd int, path string, how *unix.OpenHow) (fd int, err error) {
	fd, err = retryOnEINTR2(func() (int, error) {
		return unix.Openat2(dirfd, path, how)
	})
	if err != nil {
		return -1, &os.PathError{Op: "openat2", Path: path, Err: err}
	}
	return fd, nil
}

// Flock wraps [unix.Flock].
func Flock(fd int, how int) error {
	err := retryOnEINTR(func() error {
		return unix.Flock(fd, how)
	})
	return os.NewSyscallError("flock", err)
}

// Ftruncate wraps [unix.Ftruncate].
func Ftruncate(fd int, length int64) error {
	err := retryOnEINTR(func() error {
		return unix.Ftruncate(fd, length)
	})
	return os.NewSyscallError("ftruncate", err)
}

// Write wraps [unix.Write]. A write interrupted after transferring some
// bytes returns the partial count rather than EINTR, so retrying here
// cannot drop data.
func Write(fd int, p []byte) (n int, err error) {
	n, err = retryOnEINTR2(func() (int, error) {
		return unix.Write(fd, p)
	})
	if err != nil {
		return n, os.NewSyscallError("write", err)
	}
	return n, nil
}

// Close wraps [unix.Close]. Close is not retried: after EINTR the
// descriptor state is unspecified and a retry could race with a reuse of
// the same number.
func Close(fd int) error {
	return os.NewSyscallError("close", unix.Close(fd))
}

// Exec wraps [unix.Exec].
func Exec(cmd string, args []string, env []string) error {
	err := retryOnEINTR(func() error {
		return unix.Exec(cmd, args, env)
	})
	if err != nil {
		return &os.PathError{Op: "exec", Path: cmd, Err: err}
	}
	return nil
}
