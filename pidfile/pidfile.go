//go:build linux

// Package pidfile implements a single-instance guard: a pid file held
// under an exclusive advisory lock. The lock is whole-file, non-blocking
// and cooperative, and the kernel drops it when the last descriptor
// referencing the file is closed, so it can never outlive the holding
// process, crashes included.
package pidfile

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"

	"github.com/Kijewski/goextrasafe/internal/linux"
)

// DefaultMode is the permission applied to a newly created pid file when
// Options.Mode is zero: owner read/write, group read.
const DefaultMode os.FileMode = 0o640

// Permission bits Lock accepts; anything else in Options.Mode fails with
// ErrInvalidMode.
const validModeBits = os.ModePerm | os.ModeSetuid | os.ModeSetgid | os.ModeSticky

var (
	// ErrInvalidMode is returned when Options.Mode contains bits other
	// than permission, setuid/setgid and sticky bits.
	ErrInvalidMode = errors.New("pidfile: mode contains unknown bits")

	// ErrLockHeld is matched (via errors.Is) by the error returned when
	// another process holds the lock.
	ErrLockHeld = errors.New("pidfile: already locked by another process")

	// ErrWriteIncomplete is returned when the pid file content could
	// not be written in full: two consecutive writes made no progress.
	ErrWriteIncomplete = errors.New("pidfile: could not write all data")
)

// LockHeldError carries the originating OS error alongside the path. It
// matches ErrLockHeld with errors.Is.
type LockHeldError struct {
	Path string
	Err  error
}

func (e *LockHeldError) Error() string {
	return fmt.Sprintf("pidfile: %s is locked by another process: %v", e.Path, e.Err)
}

func (e *LockHeldError) Unwrap() error { return e.Err }

func (e *LockHeldError) Is(target error) bool { return target == ErrLockHeld }

// Options configures Lock. The zero value gives the usual behavior:
// mode 0640 on creation, pid and newline as content, descriptor closed on
// exec, lock held for the remaining life of the process even if the
// returned Handle is dropped.
type Options struct {
	// Mode is applied only if the file is newly created; zero means
	// DefaultMode. The mode must keep the file readable and writable
	// for the owner or every later Lock call on the same path will
	// fail; that is the caller's obligation, only bit validity is
	// checked here.
	Mode os.FileMode

	// AutoClose releases the lock when the Handle is garbage collected.
	// The default is to keep the descriptor open without any live
	// reference, which is the point of a pid file: the lock should be
	// held until the process terminates.
	AutoClose bool

	// InheritOnExec leaves the descriptor open across execve, keeping
	// the lock held by the replacement program. By default the
	// descriptor is opened close-on-exec.
	InheritOnExec bool

	// Contents replaces the default "<pid>\n" file content. The file is
	// truncated first either way, so previous content never leaks
	// through.
	Contents []byte
}

// Handle owns the locked descriptor. The lock persists exactly as long
// as the descriptor is open.
type Handle struct {
	fd   int
	file *os.File // non-nil only with Options.AutoClose
	path string
}

// Fd returns the locked descriptor.
func (h *Handle) Fd() int { return h.fd }

// Path returns the pid file path the handle was locked on.
func (h *Handle) Path() string { return h.path }

// Close releases the lock by closing the descriptor.
func (h *Handle) Close() error {
	if h.fd < 0 {
		return os.ErrClosed
	}
	fd := h.fd
	h.fd = -1
	if h.file != nil {
		f := h.file
		h.file = nil
		return f.Close()
	}
	return linux.Close(fd)
}

// Lock opens, locks and rewrites the pid file at path.
//
// The file is opened read-write, created if absent, with a resolve mode
// that refuses to traverse "magic" /proc-style links in the final
// component, so the path cannot be swapped for a descriptor link between
// resolution and use. If another process holds the advisory lock, Lock
// fails with an error matching ErrLockHeld. On success the file contains
// exactly the configured content and the caller owns the lock through
// the returned Handle.
func Lock(path string, opts Options) (*Handle, error) {
	mode := opts.Mode
	if mode == 0 {
		mode = DefaultMode
	}
	if mode&^validModeBits != 0 {
		return nil, fmt.Errorf("%w: %v", ErrInvalidMode, opts.Mode)
	}

	contents := opts.Contents
	if contents == nil {
		contents = strconv.AppendInt(nil, int64(os.Getpid()), 10)
		contents = append(contents, '\n')
	}

	flags := unix.O_RDWR | unix.O_CREAT | unix.O_NOCTTY
	if !opts.InheritOnExec {
		flags |= unix.O_CLOEXEC
	}

	fd, err := open(path, flags, unixMode(mode))
	if err != nil {
		return nil, err
	}

	if err := linux.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		linux.Close(fd)
		if errors.Is(err, unix.EWOULDBLOCK) {
			return nil, &LockHeldError{Path: path, Err: err}
		}
		return nil, fmt.Errorf("lock %s: %w", path, err)
	}

	if err := linux.Ftruncate(fd, 0); err != nil {
		linux.Close(fd)
		return nil, fmt.Errorf("truncate %s: %w", path, err)
	}

	if err := writeFull(func(p []byte) (int, error) { return linux.Write(fd, p) }, contents); err != nil {
		linux.Close(fd)
		return nil, fmt.Errorf("write %s: %w", path, err)
	}

	h := &Handle{fd: fd, path: path}
	if opts.AutoClose {
		// os.File carries a finalizer, so dropping the handle closes
		// the descriptor and releases the lock.
		h.file = os.NewFile(uintptr(fd), path)
	}
	return h, nil
}

// open resolves and opens the pid file. openat2 is preferred for its
// resolve restrictions; kernels before 5.6 fall back to openNoFollow.
func open(path string, flags int, mode uint32) (int, error) {
	fd, err := linux.Openat2(unix.AT_FDCWD, path, &unix.OpenHow{
		Flags:   uint64(flags),
		Mode:    uint64(mode),
		Resolve: unix.RESOLVE_NO_MAGICLINKS,
	})
	if err == nil {
		return fd, nil
	}
	if !errors.Is(err, unix.ENOSYS) {
		return -1, err
	}
	return openNoFollow(path, flags, mode)
}

// openNoFollow is the pre-openat2 fallback. O_NOFOLLOW keeps the final
// component from being resolved through a link of any kind, magic links
// included, so the fallback never weakens the path guarantee of the
// openat2 branch; it only also refuses ordinary symlinks.
func openNoFollow(path string, flags int, mode uint32) (int, error) {
	return linux.Open(path, flags|unix.O_NOFOLLOW, mode)
}

// writeFull writes buf completely, resuming after short writes. Two
// zero-byte writes in a row mean the descriptor is stuck; that is
// surfaced as ErrWriteIncomplete instead of looping forever.
func writeFull(write func([]byte) (int, error), buf []byte) error {
	hadZero := false
	for len(buf) > 0 {
		n, err := write(buf)
		if err != nil {
			return err
		}
		switch {
		case n > 0:
			buf = buf[n:]
			hadZero = false
		case !hadZero:
			hadZero = true
		default:
			return ErrWriteIncomplete
		}
	}
	return nil
}

// unixMode converts permission, setuid/setgid and sticky bits of an
// os.FileMode to the raw mode_t encoding.
func unixMode(mode os.FileMode) uint32 {
	m := uint32(mode.Perm())
	if mode&os.ModeSetuid != 0 {
		m |= unix.S_ISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= unix.S_ISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= unix.S_ISVTX
	}
	return m
}
