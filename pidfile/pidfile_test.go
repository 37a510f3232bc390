//go:build linux

package pidfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestLockCreatesPIDFile(t *testing.T) {
	oldmask := unix.Umask(0)
	defer unix.Umask(oldmask)

	path := filepath.Join(t.TempDir(), "test.pid")
	h, err := Lock(path, Options{Mode: 0o600})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := fmt.Sprintf("%d\n", os.Getpid())
	if string(data) != want {
		t.Errorf("expected content %q, got %q", want, data)
	}

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != 0o600 {
		t.Errorf("expected mode 0600, got %o", perm)
	}
}

func TestLockDefaultMode(t *testing.T) {
	oldmask := unix.Umask(0)
	defer unix.Umask(oldmask)

	path := filepath.Join(t.TempDir(), "test.pid")
	h, err := Lock(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	fi, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if perm := fi.Mode().Perm(); perm != DefaultMode {
		t.Errorf("expected default mode %o, got %o", DefaultMode, perm)
	}
}

func TestCloseOnExecFlag(t *testing.T) {
	getfd := func(fd int) int {
		flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
		if err != nil {
			t.Fatal(err)
		}
		return flags
	}

	path := filepath.Join(t.TempDir(), "default.pid")
	h, err := Lock(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if getfd(h.Fd())&unix.FD_CLOEXEC == 0 {
		t.Error("expected the descriptor to be close-on-exec by default")
	}
	h.Close()

	path = filepath.Join(t.TempDir(), "inherit.pid")
	h, err = Lock(path, Options{InheritOnExec: true})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()
	if getfd(h.Fd())&unix.FD_CLOEXEC != 0 {
		t.Error("expected the descriptor to survive exec with InheritOnExec")
	}
}

func TestLockHeld(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	h1, err := Lock(path, Options{})
	if err != nil {
		t.Fatal(err)
	}

	_, err = Lock(path, Options{})
	if !errors.Is(err, ErrLockHeld) {
		t.Fatalf("second lock: expected ErrLockHeld, got %v", err)
	}
	var lerr *LockHeldError
	if !errors.As(err, &lerr) {
		t.Fatalf("expected *LockHeldError, got %T", err)
	}
	if !errors.Is(lerr.Err, unix.EWOULDBLOCK) {
		t.Errorf("expected the originating EWOULDBLOCK, got %v", lerr.Err)
	}

	if err := h1.Close(); err != nil {
		t.Fatal(err)
	}
	h2, err := Lock(path, Options{})
	if err != nil {
		t.Fatalf("lock after release: %v", err)
	}
	h2.Close()
}

func TestLockReplacesLongerContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	if err := os.WriteFile(path, []byte("something much longer than the replacement"), 0o640); err != nil {
		t.Fatal(err)
	}

	h, err := Lock(path, Options{Contents: []byte("hello")})
	if err != nil {
		t.Fatal(err)
	}
	defer h.Close()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("expected content %q, got %q", "hello", data)
	}
}

func TestLockRejectsUnknownModeBits(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	_, err := Lock(path, Options{Mode: os.ModeDir | 0o600})
	if !errors.Is(err, ErrInvalidMode) {
		t.Fatalf("expected ErrInvalidMode, got %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("mode validation must run before any syscall, but the file exists")
	}
}

func TestHandleCloseIsFinal(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	h, err := Lock(path, Options{})
	if err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
	if err := h.Close(); !errors.Is(err, os.ErrClosed) {
		t.Errorf("expected os.ErrClosed on double close, got %v", err)
	}
}

func TestAutoCloseHandle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.pid")
	h, err := Lock(path, Options{AutoClose: true})
	if err != nil {
		t.Fatal(err)
	}
	if h.Fd() < 0 {
		t.Errorf("expected a valid descriptor, got %d", h.Fd())
	}
	if err := h.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestOpenFallbackRefusesFinalSymlink(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "target.pid")
	if err := os.WriteFile(target, []byte("x"), 0o640); err != nil {
		t.Fatal(err)
	}
	link := filepath.Join(dir, "link.pid")
	if err := os.Symlink(target, link); err != nil {
		t.Fatal(err)
	}

	_, err := openNoFollow(link, unix.O_RDWR, 0o640)
	if !errors.Is(err, unix.ELOOP) {
		t.Errorf("expected ELOOP on a symlink final component, got %v", err)
	}

	fd, err := openNoFollow(target, unix.O_RDWR, 0o640)
	if err != nil {
		t.Fatalf("regular file: %v", err)
	}
	unix.Close(fd)
}

func TestWriteFullResumesShortWrites(t *testing.T) {
	var got []byte
	// Write at most three bytes per call.
	write := func(p []byte) (int, error) {
		n := len(p)
		if n > 3 {
			n = 3
		}
		got = append(got, p[:n]...)
		return n, nil
	}

	want := []byte("0123456789")
	if err := writeFull(write, want); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(want) {
		t.Errorf("expected %q to be written exactly once, got %q", want, got)
	}
}

func TestWriteFullSingleZeroWriteRecovers(t *testing.T) {
	var got []byte
	calls := 0
	write := func(p []byte) (int, error) {
		calls++
		if calls%2 == 0 {
			return 0, nil
		}
		got = append(got, p[0])
		return 1, nil
	}

	if err := writeFull(write, []byte("abc")); err != nil {
		t.Fatal(err)
	}
	if string(got) != "abc" {
		t.Errorf("expected %q, got %q", "abc", got)
	}
}

func TestWriteFullGivesUpAfterTwoZeroWrites(t *testing.T) {
	write := func(p []byte) (int, error) { return 0, nil }
	err := writeFull(write, []byte("abc"))
	if !errors.Is(err, ErrWriteIncomplete) {
		t.Errorf("expected ErrWriteIncomplete, got %v", err)
	}
}
