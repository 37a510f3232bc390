//go:build linux && cgo && seccomp

package filter

import (
	"fmt"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"
)

// Load compiles the accumulated rules and installs the resulting seccomp
// filter. Syscalls outside the filter fail with EPERM. With allThreads
// set the kernel synchronizes the filter to every thread in the process
// (TSYNC); otherwise only the calling thread is affected.
//
// Syscall names unknown to the running kernel's libseccomp are skipped:
// a syscall that cannot be resolved cannot be invoked either, so leaving
// it out of the allow list loses nothing.
func (f *Filter) Load(allThreads bool) error {
	scmp, err := libseccomp.NewFilter(libseccomp.ActErrno.SetReturnCode(int16(unix.EPERM)))
	if err != nil {
		return fmt.Errorf("create seccomp filter: %w", err)
	}
	defer scmp.Release()

	if err := scmp.SetTsync(allThreads); err != nil {
		return fmt.Errorf("set seccomp tsync=%v: %w", allThreads, err)
	}

	for _, name := range f.order {
		sysno, err := libseccomp.GetSyscallFromName(name)
		if err != nil {
			logrus.Debugf("seccomp: skipping unresolvable syscall %q", name)
			continue
		}
		e := f.entries[name]
		if e.simpleOrigin != "" {
			if err := scmp.AddRule(sysno, libseccomp.ActAllow); err != nil {
				return fmt.Errorf("add rule for %q: %w", name, err)
			}
			continue
		}
		for _, cr := range e.cond {
			conds := make([]libseccomp.ScmpCondition, 0, len(cr.conds))
			for _, c := range cr.conds {
				sc, err := makeCondition(c)
				if err != nil {
					return fmt.Errorf("condition on %q from %s: %w", name, cr.origin, err)
				}
				conds = append(conds, sc)
			}
			if err := scmp.AddRuleConditional(sysno, libseccomp.ActAllow, conds); err != nil {
				return fmt.Errorf("add conditional rule for %q: %w", name, err)
			}
		}
	}

	if err := scmp.Load(); err != nil {
		return fmt.Errorf("load seccomp filter: %w", err)
	}
	logrus.Debugf("seccomp: loaded filter with %d syscalls (tsync=%v)", len(f.order), allThreads)
	return nil
}

func makeCondition(c Condition) (libseccomp.ScmpCondition, error) {
	switch c.Op {
	case EqualTo:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareEqual, c.Value)
	case NotEqualTo:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareNotEqual, c.Value)
	case GreaterThan:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareGreater, c.Value)
	case GreaterThanOrEqualTo:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareGreaterEqual, c.Value)
	case LessThan:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareLess, c.Value)
	case LessThanOrEqualTo:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareLessOrEqual, c.Value)
	case MaskEqualTo:
		return libseccomp.MakeCondition(c.Index, libseccomp.CompareMaskedEqual, c.Value, c.ValueTwo)
	default:
		return libseccomp.ScmpCondition{}, fmt.Errorf("unknown operator %d", c.Op)
	}
}

// Version reports the linked libseccomp version.
func Version() (major, minor, micro uint) {
	return libseccomp.GetLibraryVersion()
}
