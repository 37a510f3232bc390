package extrasafe

import (
	"fmt"
	"sort"

	"golang.org/x/sys/unix"

	"github.com/Kijewski/goextrasafe/filter"
)

const (
	ioAllowClose flagSet = 1 << iota
	ioAllowIoctl
	ioAllowMetadata
	ioAllowOpen
	ioAllowOpenReadonly
	ioAllowRead
	ioAllowStderr
	ioAllowStdin
	ioAllowStdout
	ioAllowWrite

	ioAllFlags = ioAllowClose | ioAllowIoctl | ioAllowMetadata | ioAllowOpen |
		ioAllowOpenReadonly | ioAllowRead | ioAllowStderr | ioAllowStdin |
		ioAllowStdout | ioAllowWrite
)

var (
	metadataSyscalls = []string{"stat", "fstat", "lstat", "newfstatat", "statx", "getdents", "getdents64"}
	readSyscalls     = []string{"read", "pread64", "readv", "preadv", "preadv2", "lseek"}
	writeSyscalls    = []string{"write", "pwrite64", "writev", "pwritev", "pwritev2", "fsync", "fdatasync", "lseek"}
)

// Syscalls restricted to a single descriptor by AllowFileRead and
// AllowFileWrite. lseek is in both sets; the duplicate conditional rules
// are harmless.
var (
	fdReadSyscalls  = []string{"read", "pread64", "readv", "preadv", "lseek"}
	fdWriteSyscalls = []string{"write", "pwrite64", "writev", "pwritev", "lseek"}
)

// SystemIO controls file and descriptor I/O. Besides the flag
// permissions it can whitelist individual file descriptors for reading or
// writing; those are kept deduplicated in ascending order.
type SystemIO struct {
	flags flagSet
	rd    []int
	wr    []int
}

func NewSystemIO() SystemIO { return SystemIO{} }

// SystemIOEverything returns a SystemIO with every flag permission set
// and empty descriptor lists.
func SystemIOEverything() SystemIO {
	return SystemIO{flags: ioAllFlags}
}

func (s SystemIO) Kind() Kind { return KindSystemIO }

func (s SystemIO) String() string {
	return fmt.Sprintf("<SystemIO(%#x, rd=%v, wr=%v)>", uint32(s.flags), s.rd, s.wr)
}

func (s SystemIO) data() ruleData {
	return ruleData{kind: KindSystemIO, flags: s.flags, rd: s.rd, wr: s.wr}
}

// AllowClose permits closing descriptors.
func (s SystemIO) AllowClose() SystemIO {
	s.flags |= ioAllowClose
	return s
}

// AllowIoctl permits ioctl on any descriptor.
func (s SystemIO) AllowIoctl() SystemIO {
	s.flags |= ioAllowIoctl
	return s
}

// AllowMetadata permits stat-family and directory listing syscalls.
func (s SystemIO) AllowMetadata() SystemIO {
	s.flags |= ioAllowMetadata
	return s
}

// AllowOpen permits opening files with any flags. Arbitrary opens defeat
// most of what an I/O sandbox is for, so the underlying permission is
// confirmed-dangerous; calling this builder is the confirmation.
func (s SystemIO) AllowOpen() SystemIO {
	s.flags |= ioAllowOpen
	return s
}

// AllowOpenReadonly permits opening files, but only read-only.
func (s SystemIO) AllowOpenReadonly() SystemIO {
	s.flags |= ioAllowOpenReadonly
	return s
}

// AllowRead permits reading from any descriptor.
func (s SystemIO) AllowRead() SystemIO {
	s.flags |= ioAllowRead
	return s
}

// AllowStderr permits writing to stderr.
func (s SystemIO) AllowStderr() SystemIO {
	s.flags |= ioAllowStderr
	return s
}

// AllowStdin permits reading from stdin.
func (s SystemIO) AllowStdin() SystemIO {
	s.flags |= ioAllowStdin
	return s
}

// AllowStdout permits writing to stdout.
func (s SystemIO) AllowStdout() SystemIO {
	s.flags |= ioAllowStdout
	return s
}

// AllowWrite permits writing to any descriptor.
func (s SystemIO) AllowWrite() SystemIO {
	s.flags |= ioAllowWrite
	return s
}

// AllowFileRead whitelists fd for reading. A negative descriptor
// (including the -1 "no descriptor" sentinel) fails with
// ErrInvalidArgument and leaves the rule set unchanged.
func (s SystemIO) AllowFileRead(fd int) (SystemIO, error) {
	if fd < 0 {
		return s, fmt.Errorf("%w: illegal file descriptor %d", ErrInvalidArgument, fd)
	}
	s.rd = insertFD(s.rd, fd)
	return s, nil
}

// AllowFileWrite whitelists fd for writing. A negative descriptor fails
// with ErrInvalidArgument and leaves the rule set unchanged.
func (s SystemIO) AllowFileWrite(fd int) (SystemIO, error) {
	if fd < 0 {
		return s, fmt.Errorf("%w: illegal file descriptor %d", ErrInvalidArgument, fd)
	}
	s.wr = insertFD(s.wr, fd)
	return s, nil
}

// insertFD inserts fd into the sorted set, returning a fresh slice so
// copies of the rule set never share mutable state.
func insertFD(fds []int, fd int) []int {
	i := sort.SearchInts(fds, fd)
	if i < len(fds) && fds[i] == fd {
		return fds
	}
	out := make([]int, 0, len(fds)+1)
	out = append(out, fds[:i]...)
	out = append(out, fd)
	out = append(out, fds[i:]...)
	return out
}

func fdCond(fd int) []filter.Condition {
	return []filter.Condition{{Index: 0, Op: filter.EqualTo, Value: uint64(fd)}}
}

// openReadonlyConds matches open flags without a write mode. flagArg is
// the index of the flags argument (1 for open, 2 for openat).
func openReadonlyConds(flagArg uint) []filter.Condition {
	return []filter.Condition{{
		Index:    flagArg,
		Op:       filter.MaskEqualTo,
		Value:    unix.O_WRONLY | unix.O_RDWR | unix.O_CREAT | unix.O_TRUNC,
		ValueTwo: 0,
	}}
}

func (s SystemIO) enableTo(f *filter.Filter, origin string) error {
	if s.flags.has(ioAllowClose) {
		if err := f.Allow(origin, "close"); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowIoctl) {
		if err := f.Allow(origin, "ioctl"); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowMetadata) {
		if err := f.Allow(origin, metadataSyscalls...); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowOpen) {
		if err := f.AllowDangerous(origin, "open", "openat", "openat2"); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowOpenReadonly) && !s.flags.has(ioAllowOpen) {
		if err := f.AllowDangerousConditional(origin, "open", openReadonlyConds(1)); err != nil {
			return err
		}
		if err := f.AllowDangerousConditional(origin, "openat", openReadonlyConds(2)); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowRead) {
		if err := f.Allow(origin, readSyscalls...); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowStderr) {
		if err := f.AllowConditional(origin, "write", fdCond(2)); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowStdin) {
		if err := f.AllowConditional(origin, "read", fdCond(0)); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowStdout) {
		if err := f.AllowConditional(origin, "write", fdCond(1)); err != nil {
			return err
		}
	}
	if s.flags.has(ioAllowWrite) {
		if err := f.Allow(origin, writeSyscalls...); err != nil {
			return err
		}
	}

	for _, fd := range s.rd {
		for _, name := range fdReadSyscalls {
			if err := f.AllowConditional(origin, name, fdCond(fd)); err != nil {
				return err
			}
		}
	}
	for _, fd := range s.wr {
		for _, name := range fdWriteSyscalls {
			if err := f.AllowConditional(origin, name, fdCond(fd)); err != nil {
				return err
			}
		}
	}
	return nil
}
